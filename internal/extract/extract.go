// Package extract parses source files with tree-sitter and emits tags.
package extract

import (
	"context"
	"errors"
	"os"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/repomapper/repomapper/internal/lang"
	"github.com/repomapper/repomapper/internal/tagmodel"
)

// ErrNoGrammar indicates no tree-sitter grammar or query is registered for
// the requested language name.
var ErrNoGrammar = errors.New("no grammar or query for language")

var identifierRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// Extractor parses files into tags. It is stateless and safe for concurrent
// use; callers running extraction in a worker pool should give each
// goroutine its own tree-sitter parser, which Extract already does
// internally per call.
type Extractor struct{}

// New returns a ready-to-use Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses the file at absPath using the grammar and query registered
// for language, and returns its definition and reference tags. relPath is
// stored on every tag for display purposes only.
//
// If language has no registered grammar or a query fails to compile, Extract
// returns ErrNoGrammar and an empty tag slice; callers should record the
// file as excluded with reason "no-grammar" rather than treat this as fatal.
// Parse errors from tree-sitter itself are not surfaced: partial captures
// are returned and the residual error is dropped, per the graceful
// degradation the core requires.
func (e *Extractor) Extract(absPath, relPath, language string) ([]tagmodel.Tag, error) {
	langCfg, ok := lang.Languages[language]
	if !ok {
		return nil, ErrNoGrammar
	}
	query, err := langCfg.GetTagQuery()
	if err != nil {
		return nil, ErrNoGrammar
	}

	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	tags := parseCaptures(langCfg, query, source, relPath, absPath)

	if !langCfg.HasReferenceCaptures() {
		tags = append(tags, lexicalFallback(source, relPath, absPath, tags)...)
	}

	return tags, nil
}

func parseCaptures(langCfg *lang.Language, query *sitter.Query, source []byte, relPath, absPath string) []tagmodel.Tag {
	parser := langCfg.NewParser()
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var tags []tagmodel.Tag
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)
		for _, c := range match.Captures {
			name := query.CaptureNameForId(c.Index)

			var kind tagmodel.Kind
			switch {
			case strings.HasPrefix(name, "definition."):
				kind = tagmodel.Definition
			case strings.HasPrefix(name, "reference.") || strings.HasPrefix(name, "name.reference."):
				kind = tagmodel.Reference
			default:
				continue
			}

			text := lang.NodeText(c.Node, source)
			if text == "" {
				continue
			}
			tags = append(tags, tagmodel.Tag{
				RelPath: relPath,
				AbsPath: absPath,
				Line:    int(c.Node.StartPoint().Row),
				Name:    text,
				Kind:    kind,
			})
		}
	}
	return tags
}

// lexicalFallback tokenizes source and emits a reference tag for every
// identifier-like token not already emitted as a definition on the same
// line. Used only for languages whose query ships no reference captures.
func lexicalFallback(source []byte, relPath, absPath string, existing []tagmodel.Tag) []tagmodel.Tag {
	defsByLine := make(map[int]map[string]bool)
	for _, t := range existing {
		if t.Kind != tagmodel.Definition {
			continue
		}
		if defsByLine[t.Line] == nil {
			defsByLine[t.Line] = make(map[string]bool)
		}
		defsByLine[t.Line][t.Name] = true
	}

	var out []tagmodel.Tag
	for i, line := range strings.Split(string(source), "\n") {
		for _, tok := range identifierRe.FindAllString(line, -1) {
			if defsByLine[i][tok] {
				continue
			}
			out = append(out, tagmodel.Tag{
				RelPath: relPath,
				AbsPath: absPath,
				Line:    i,
				Name:    tok,
				Kind:    tagmodel.Reference,
			})
		}
	}
	return out
}
