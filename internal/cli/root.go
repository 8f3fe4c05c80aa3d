// Package cli wires repomapper's cobra command tree to the repomap library.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the repomapper command tree: map (default) and init.
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "repomapper",
		Short: "Generate a token-budgeted repository map for LLM context",
		Long: `repomapper parses a repository with tree-sitter, builds a weighted
reference graph between files, ranks files with personalized PageRank, and
renders the highest-ranked definitions into a map that fits a token budget.`,
		SilenceUsage: true,
	}

	mapCmd := newMapCommand()
	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("repomapper " + version)
		},
	})

	// map is the default action: `repomapper [path]` behaves like
	// `repomapper map [path]`.
	rootCmd.RunE = mapCmd.RunE
	rootCmd.Flags().AddFlagSet(mapCmd.Flags())
	rootCmd.Args = mapCmd.Args

	return rootCmd
}
