package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	repomap "github.com/repomapper/repomapper"
	"github.com/repomapper/repomapper/internal/discover"
	"github.com/repomapper/repomapper/internal/tagcache"
	"github.com/repomapper/repomapper/internal/tagmodel"
)

const defaultMaxMapTokens = 1024

func newMapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map [path]",
		Short: "Render a ranked repository map",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMap,
	}

	cmd.Flags().StringSlice("chat-file", nil, "file currently in focus, relative to path (repeatable)")
	cmd.Flags().StringSlice("mentioned-fname", nil, "filename mentioned in the current conversation (repeatable)")
	cmd.Flags().StringSlice("mentioned-ident", nil, "identifier mentioned in the current conversation (repeatable)")
	cmd.Flags().StringSlice("lang", nil, "restrict discovery to these languages (repeatable)")
	cmd.Flags().Int("max-map-tokens", defaultMaxMapTokens, "token budget for the rendered map")
	cmd.Flags().Int("max-context-window", 0, "model context window, used to scale the budget when no chat files are set")
	cmd.Flags().Float64("map-mul-no-files", repomap.DefaultMapMulNoFiles, "budget multiplier applied when no chat files are set and --max-context-window is positive")
	cmd.Flags().String("model-name", "", "model name, used to pick a tiktoken encoding for token counting")
	cmd.Flags().Bool("exclude-unranked", false, "drop definitions that received no PageRank score")
	cmd.Flags().Bool("force-refresh", false, "bypass the on-disk tag cache")
	cmd.Flags().Bool("no-cache", false, "disable the on-disk tag cache entirely")
	cmd.Flags().Bool("overview", false, "skip the ranked-map pipeline and report per-file exclusions only")
	cmd.Flags().BoolP("verbose", "v", false, "log diagnostics and append a file overview section")

	return cmd
}

func runMap(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	langs, _ := flags.GetStringSlice("lang")
	chatFiles, _ := flags.GetStringSlice("chat-file")
	mentionedFnames, _ := flags.GetStringSlice("mentioned-fname")
	mentionedIdents, _ := flags.GetStringSlice("mentioned-ident")
	maxMapTokens, _ := flags.GetInt("max-map-tokens")
	maxContextWindow, _ := flags.GetInt("max-context-window")
	mapMulNoFiles, _ := flags.GetFloat64("map-mul-no-files")
	modelName, _ := flags.GetString("model-name")
	excludeUnranked, _ := flags.GetBool("exclude-unranked")
	forceRefresh, _ := flags.GetBool("force-refresh")
	noCache, _ := flags.GetBool("no-cache")
	overview, _ := flags.GetBool("overview")
	verbose, _ := flags.GetBool("verbose")

	logger := newLogger(verbose)

	entries, err := discover.Files(root, langs)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}

	chatSet := make(map[string]bool, len(chatFiles))
	for _, f := range chatFiles {
		chatSet[f] = true
	}

	var allRel, chat, other []string
	for _, e := range entries {
		allRel = append(allRel, e.Path)
		if chatSet[e.Path] {
			chat = append(chat, e.Path)
		} else {
			other = append(other, e.Path)
		}
	}

	if overview {
		report := repomap.Overview(root, allRel)
		printReport(cmd, report)
		return nil
	}

	var cache *tagcache.Cache
	if !noCache {
		cache, err = tagcache.Open(root, tagcache.CurrentVersion, logger)
		if err != nil {
			logger.Warn("tag cache unavailable; continuing without persistence", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	counter, err := newTokenCounter(modelName)
	if err != nil {
		return fmt.Errorf("resolving token counter: %w", err)
	}

	result, report := repomap.GetRepoMap(root, repomap.Options{
		ChatFiles:        chat,
		OtherFiles:       other,
		MentionedFnames:  mentionedFnames,
		MentionedIdents:  mentionedIdents,
		ForceRefresh:     forceRefresh,
		MaxMapTokens:     maxMapTokens,
		MaxContextWindow: maxContextWindow,
		ModelName:        modelName,
		ExcludeUnranked:  excludeUnranked,
		TokenCounter:     counter,
		MapMulNoFiles:    mapMulNoFiles,
	}, cache)

	if result == nil {
		cmd.Println("No repository map generated.")
		if verbose {
			printReport(cmd, report)
		}
		return nil
	}

	cmd.Println(result.Text)

	if verbose {
		tokens := counter(result.Text)
		cmd.Printf("\nGenerated map: %d chars, ~%d tokens\n", len(result.Text), tokens)

		appendix := buildFileOverview(root, allRel, result, report)
		if appendix != "" {
			cmd.Println()
			cmd.Println(appendix)
		}
	}

	return nil
}

// buildFileOverview resolves discovered relative paths and the rendered
// map's tags into the absolute-path key space FileOverview expects.
func buildFileOverview(root string, allRel []string, result *repomap.Map, report *tagmodel.FileReport) string {
	allAbs := make([]string, len(allRel))
	for i, rel := range allRel {
		allAbs[i] = filepath.Join(root, rel)
	}

	inMap := make(map[string]bool, len(result.Tags))
	for _, t := range result.Tags {
		inMap[t.AbsPath] = true
	}

	return repomap.FileOverview(allAbs, inMap, report)
}

func printReport(cmd *cobra.Command, report *tagmodel.FileReport) {
	cmd.Printf("File report: %d files considered, %d definitions, %d references\n",
		report.TotalFilesConsidered, report.DefinitionMatches, report.ReferenceMatches)

	if len(report.Excluded) == 0 {
		return
	}

	paths := make([]string, 0, len(report.Excluded))
	for p := range report.Excluded {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	cmd.Printf("Excluded: %d\n", len(paths))
	for _, p := range paths {
		cmd.Printf("  [x] %s (%s)\n", p, report.Excluded[p])
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
