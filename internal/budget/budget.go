// Package budget implements the binary-search selection of the largest
// prefix of a ranked tag list whose rendered form fits a token budget.
package budget

import (
	"github.com/repomapper/repomapper/internal/render"
	"github.com/repomapper/repomapper/internal/tagmodel"
)

// toleranceBand is how far under the budget is "good enough" to stop
// searching early, per spec §4.5.
const toleranceBand = 0.10

// TokenCounter measures the token cost of rendered text. Injected by the
// caller; the core has no opinion on tokenization.
type TokenCounter func(string) int

// Result is the outcome of a fit: the selected tags (at most one prefix of
// the input) and their rendered text. Result.Tags is nil and Text is ""
// when nothing fits.
type Result struct {
	Tags []tagmodel.Tag
	Text string
}

// Fit implements the BudgetFitter contract of spec §4.5. rankedTags must
// already be sorted by descending score (the Ranker's output order).
// chatFiles holds absolute paths that must never appear in the output
// regardless of rank.
func Fit(rankedTags []tagmodel.RankedTag, chatFiles map[string]bool, tokenBudget int, counter TokenCounter) Result {
	if tokenBudget <= 0 {
		return Result{}
	}

	candidates := excludeChatFiles(rankedTags, chatFiles)
	if len(candidates) == 0 {
		return Result{}
	}

	lo, hi := 0, len(candidates)
	bestK := 0
	bestText := ""

	for lo <= hi {
		mid := lo + (hi-lo+1)/2 // integer bisection, ties resolve upward

		tags := tagsForPrefix(candidates, mid)
		text, _ := render.Render(tags)
		tokens := counter(text)

		if tokens <= tokenBudget {
			bestK = mid
			bestText = text
			if float64(tokens) >= float64(tokenBudget)*(1-toleranceBand) {
				return Result{Tags: tagsForPrefix(candidates, mid), Text: text}
			}
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	if bestK == 0 {
		return Result{}
	}
	return Result{Tags: tagsForPrefix(candidates, bestK), Text: bestText}
}

func excludeChatFiles(rankedTags []tagmodel.RankedTag, chatFiles map[string]bool) []tagmodel.RankedTag {
	if len(chatFiles) == 0 {
		return rankedTags
	}
	out := make([]tagmodel.RankedTag, 0, len(rankedTags))
	for _, t := range rankedTags {
		if chatFiles[t.AbsPath] {
			continue
		}
		out = append(out, t)
	}
	return out
}

func tagsForPrefix(ranked []tagmodel.RankedTag, k int) []tagmodel.Tag {
	out := make([]tagmodel.Tag, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].Tag
	}
	return out
}
