// Package repomap is the library entry point: it wires TagExtractor,
// TagCache, GraphBuilder, Ranker, and BudgetFitter into the single
// operation described in spec §6, get_repo_map.
package repomap

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/repomapper/repomapper/internal/budget"
	"github.com/repomapper/repomapper/internal/rank"
	"github.com/repomapper/repomapper/internal/refgraph"
	"github.com/repomapper/repomapper/internal/tagcache"
	"github.com/repomapper/repomapper/internal/tagmodel"
)

// sampledTokenCountThreshold is the text length above which sampledTokenCount
// estimates rather than counts exactly, matching the original's token_count.
const sampledTokenCountThreshold = 200

// sampledLineStride is how finely sampledTokenCount samples lines for
// estimation: roughly one in every (numLines / sampledLineStride) lines.
const sampledLineStride = 100

// DefaultMapMulNoFiles is the budget multiplier applied when no chat files
// are supplied, matching aider's original default.
const DefaultMapMulNoFiles = 8

// DefaultContextPadding is reserved headroom subtracted from
// MaxContextWindow when computing the no-chat-files effective budget.
const DefaultContextPadding = 1024

// TokenCounter measures the token cost of rendered text.
type TokenCounter = budget.TokenCounter

// Options configures one GetRepoMap call, mirroring spec §6's option table.
type Options struct {
	ChatFiles        []string // relative to GetRepoMap's root
	OtherFiles       []string // relative to GetRepoMap's root
	MentionedFnames  []string
	MentionedIdents  []string
	ForceRefresh     bool
	MaxMapTokens     int
	MaxContextWindow int
	ModelName        string // opaque to the core; informs the caller's TokenCounter choice
	ExcludeUnranked  bool
	TokenCounter     TokenCounter
	MapMulNoFiles    float64 // 0 means DefaultMapMulNoFiles
}

// Map is the rendered repo map alongside the tags it selected.
type Map struct {
	Text string
	Tags []tagmodel.Tag
}

// GetRepoMap runs the full ranked-map pipeline over the repository rooted
// at root. It never panics or exits the process: every failure mode is
// reflected in the returned FileReport, and a nil Map means the graph was
// empty or the budget admitted nothing.
func GetRepoMap(root string, opts Options, cache *tagcache.Cache) (*Map, *tagmodel.FileReport) {
	if opts.MaxMapTokens < 0 {
		opts.MaxMapTokens = 0
	}

	chatInputs := toFileInputs(root, opts.ChatFiles)
	otherInputs := toFileInputs(root, opts.OtherFiles)

	if len(chatInputs) == 0 && len(otherInputs) == 0 {
		return nil, tagmodel.NewFileReport()
	}
	if opts.MaxMapTokens == 0 {
		return nil, tagmodel.NewFileReport()
	}

	mentionedFnames := toSet(opts.MentionedFnames)
	mentionedIdents := toSet(opts.MentionedIdents)

	builder := refgraph.NewBuilder(cache, opts.ForceRefresh)
	built := builder.Build(chatInputs, otherInputs, mentionedFnames, mentionedIdents)

	rankedTags, fellBack := rank.Rank(built.Graph, built.Personalization, built.DefTags)
	built.Report.RankFallbackUsed = fellBack

	if opts.ExcludeUnranked {
		rankedTags = excludeZeroScore(rankedTags)
	}

	if len(rankedTags) == 0 {
		return nil, built.Report
	}

	counter := opts.TokenCounter
	if counter == nil {
		counter = func(s string) int { return len(s) }
	}
	counter = sampledTokenCount(counter)

	chatAbs := make(map[string]bool, len(chatInputs))
	for _, f := range chatInputs {
		chatAbs[f.AbsPath] = true
	}

	tokenBudget := effectiveBudget(opts)
	result := budget.Fit(rankedTags, chatAbs, tokenBudget, counter)
	if result.Text == "" {
		return nil, built.Report
	}

	return &Map{Text: result.Text, Tags: result.Tags}, built.Report
}

// Overview implements the supplemental --overview fast path: it reports
// which candidate files would be excluded and why, without running the
// tree-sitter/PageRank pipeline at all.
func Overview(root string, otherFiles []string) *tagmodel.FileReport {
	report := tagmodel.NewFileReport()
	inputs := toFileInputs(root, otherFiles)
	report.TotalFilesConsidered = len(inputs)

	for _, f := range inputs {
		info, err := os.Stat(f.AbsPath)
		if err != nil {
			report.Excluded[f.AbsPath] = "file not found"
			continue
		}
		if info.IsDir() {
			report.Excluded[f.AbsPath] = "is a directory"
		}
	}
	return report
}

func effectiveBudget(opts Options) int {
	if len(opts.ChatFiles) > 0 || opts.MaxContextWindow <= 0 {
		return opts.MaxMapTokens
	}

	mul := opts.MapMulNoFiles
	if mul <= 0 {
		mul = DefaultMapMulNoFiles
	}

	available := opts.MaxContextWindow - DefaultContextPadding
	if available < 0 {
		available = 0
	}

	scaled := int(float64(opts.MaxMapTokens) * mul)
	if scaled > available {
		scaled = available
	}
	return scaled
}

// sampledTokenCount wraps counter so repeated calls against long rendered
// maps don't pay the full tokenizer cost on every binary-search probe: texts
// at or above sampledTokenCountThreshold are estimated from a sampled subset
// of their lines rather than counted in full.
func sampledTokenCount(counter TokenCounter) TokenCounter {
	return func(text string) int {
		if len(text) < sampledTokenCountThreshold {
			return counter(text)
		}

		lines := splitKeepEnds(text)
		step := len(lines) / sampledLineStride
		if step < 1 {
			step = 1
		}

		var sample strings.Builder
		for i := 0; i < len(lines); i += step {
			sample.WriteString(lines[i])
		}
		sampleText := sample.String()
		if sampleText == "" {
			return counter(text)
		}

		sampleTokens := counter(sampleText)
		estimate := (float64(sampleTokens) / float64(len(sampleText))) * float64(len(text))
		return int(estimate)
	}
}

// splitKeepEnds splits text into lines, each retaining its trailing newline
// (the last line keeps none if the text doesn't end in one), mirroring
// Python's str.splitlines(keepends=True).
func splitKeepEnds(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

// FileOverview renders the verbose-mode appendix listing files cut from the
// map for budget reasons separately from files excluded for cause. allFiles
// and filesInMap must use the same absolute-path key space as
// FileReport.Excluded.
func FileOverview(allFiles []string, filesInMap map[string]bool, report *tagmodel.FileReport) string {
	if len(allFiles) == 0 {
		return ""
	}

	sorted := append([]string(nil), allFiles...)
	sort.Strings(sorted)

	var cutoff []string
	var excluded [][2]string
	for _, f := range sorted {
		if filesInMap[f] {
			continue
		}
		if reason, ok := report.Excluded[f]; ok {
			excluded = append(excluded, [2]string{f, reason})
		} else {
			cutoff = append(cutoff, f)
		}
	}

	if len(cutoff) == 0 && len(excluded) == 0 {
		return ""
	}

	var b strings.Builder
	if len(cutoff) > 0 {
		b.WriteString("Files not shown (token limit): " + strconv.Itoa(len(cutoff)) + "\n")
		for _, f := range cutoff {
			b.WriteString("  [-] " + f + "\n")
		}
		b.WriteString("\n")
	}
	if len(excluded) > 0 {
		b.WriteString("Files excluded: " + strconv.Itoa(len(excluded)) + "\n")
		for _, pair := range excluded {
			b.WriteString("  [x] " + pair[0] + " (" + pair[1] + ")\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func excludeZeroScore(tags []tagmodel.RankedTag) []tagmodel.RankedTag {
	out := make([]tagmodel.RankedTag, 0, len(tags))
	for _, t := range tags {
		if t.Score == 0 {
			continue
		}
		out = append(out, t)
	}
	return out
}

func toFileInputs(root string, relPaths []string) []refgraph.FileInput {
	seen := make(map[string]bool, len(relPaths))
	out := make([]refgraph.FileInput, 0, len(relPaths))
	for _, rel := range relPaths {
		if seen[rel] {
			continue
		}
		seen[rel] = true
		out = append(out, refgraph.FileInput{
			AbsPath: filepath.Join(root, rel),
			RelPath: rel,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}
