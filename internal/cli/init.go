package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	sentinelStart = "<!-- repomapper:start -->"
	sentinelEnd   = "<!-- repomapper:end -->"
)

// newInitCommand builds the `repomapper init` subcommand, which writes (or
// updates) a repomapper usage section in a CLAUDE.md file.
func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path-to-CLAUDE.md]",
		Short: "Write a repomapper usage section to a CLAUDE.md file",
		Long: `Write a repomapper usage section to a CLAUDE.md file. The section is
wrapped in sentinel comments so it can be updated in place on subsequent
runs without touching surrounding content. Creates the file if it does not
exist.

path-to-CLAUDE.md defaults to ./CLAUDE.md.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}
	cmd.Flags().Bool("dry-run", false, "print what would be written without modifying the file")
	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	section := generateSection()

	if dryRun && len(args) == 0 {
		cmd.Println(section)
		return nil
	}

	path := "CLAUDE.md"
	if len(args) > 0 {
		path = args[0]
	}

	existing, _ := os.ReadFile(path)
	updated := applySection(string(existing), section)

	if dryRun {
		cmd.Print(updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return err
	}

	cmd.PrintErrf("wrote repomapper section to %s\n", path)
	return nil
}

func generateSection() string {
	body := `## repomapper — Repository Map

Run ` + "`repomapper`" + ` via the Bash tool at the start of any task on an unfamiliar
codebase. It produces a ranked map of the most central files and their
definitions, sized to fit a token budget, so you don't have to explore the
whole tree up front.

**Availability:** Check with ` + "`repomapper version`" + ` first; skip gracefully if
not found.

**Run it:**
` + "```" + `bash
repomapper                                       # current directory
repomapper /path/to/repo                         # explicit path
repomapper --lang go,python                      # filter by language
repomapper --max-map-tokens 2048                 # larger budget
repomapper --chat-file internal/foo/foo.go       # bias ranking toward files in focus
repomapper --mentioned-ident HandleRequest       # bias ranking toward a named symbol
repomapper --overview                            # skip ranking, just report exclusions
` + "```" + `

**Caching:** Tag extraction is cached on disk per repository under
` + "`.repomap.tags.cache.v1/`" + `; add it to ` + "`.gitignore`" + `. Use ` + "`--force-refresh`" + `
if a file's tags seem stale, or ` + "`--no-cache`" + ` to disable caching entirely.

**All flags:** ` + "`repomapper map --help`" + `

**How to use the output — follow these rules:**

1. **Read files in the order they appear.** Each file's definitions are
   ranked by centrality; files earlier in the map are referenced more.

2. **Use ` + "`--mentioned-ident`" + ` and ` + "`--mentioned-fname`" + ` to steer the map** toward
   symbols or files already under discussion before falling back to a
   broader search.

3. **Only fall back to Glob/Grep for things repomapper cannot answer** — e.g.,
   finding every call site of a symbol, or searching within a file you've
   already identified.`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
