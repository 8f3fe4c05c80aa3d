// Package render formats a set of selected tags into the final repo map
// text: grouped by file, each definition shown with a small window of
// surrounding lines, non-contiguous windows separated by an elision marker.
package render

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/repomapper/repomapper/internal/tagmodel"
)

const (
	contextBefore = 2
	contextAfter  = 2
	elisionMarker = "⋮..."
)

type lineRange struct {
	start, end int // inclusive, 0-based
}

// Render implements the Renderer contract of spec §4.6. Tags are grouped by
// file in first-appearance order; within a file, the output is always the
// same for the same set of tags and file contents, regardless of the order
// tags were supplied in.
func Render(tags []tagmodel.Tag) (string, error) {
	order, byFile := groupByFile(tags)

	var out strings.Builder
	for i, path := range order {
		if i > 0 {
			out.WriteString("\n")
		}

		section, err := renderFile(path, byFile[path])
		if err != nil {
			// Unreadable files are excluded earlier in the pipeline; if one
			// slips through, skip its section rather than fail the whole map.
			continue
		}
		out.WriteString(section)
	}
	return out.String(), nil
}

func groupByFile(tags []tagmodel.Tag) ([]string, map[string][]tagmodel.Tag) {
	var order []string
	byFile := make(map[string][]tagmodel.Tag)
	seen := make(map[string]bool)

	for _, t := range tags {
		if !seen[t.RelPath] {
			seen[t.RelPath] = true
			order = append(order, t.RelPath)
		}
		byFile[t.RelPath] = append(byFile[t.RelPath], t)
	}
	return order, byFile
}

func renderFile(relPath string, tags []tagmodel.Tag) (string, error) {
	var absPath string
	for _, t := range tags {
		absPath = t.AbsPath
		break
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(content), "\n")

	ranges := mergedRanges(tags, len(lines))
	if len(ranges) == 0 {
		return relPath + ":\n", nil
	}

	maxLine := ranges[len(ranges)-1].end + 1 // 1-based display
	width := len(strconv.Itoa(maxLine))

	var b strings.Builder
	b.WriteString(relPath + ":\n")
	for i, r := range ranges {
		if i > 0 {
			b.WriteString(elisionMarker + "\n")
		}
		for ln := r.start; ln <= r.end; ln++ {
			fmt.Fprintf(&b, "%*d: %s\n", width, ln+1, lines[ln])
		}
	}
	return b.String(), nil
}

func mergedRanges(tags []tagmodel.Tag, lineCount int) []lineRange {
	var windows []lineRange
	for _, t := range tags {
		start := t.Line - contextBefore
		if start < 0 {
			start = 0
		}
		end := t.Line + contextAfter
		if end > lineCount-1 {
			end = lineCount - 1
		}
		if end < start {
			continue
		}
		windows = append(windows, lineRange{start: start, end: end})
	}
	if len(windows) == 0 {
		return nil
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].start < windows[j].start })

	merged := []lineRange{windows[0]}
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		if w.start <= last.end+1 {
			if w.end > last.end {
				last.end = w.end
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
