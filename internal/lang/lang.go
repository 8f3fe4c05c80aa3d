// Package lang provides a language registry mapping file extensions to
// tree-sitter languages and their embedded query files.
package lang

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

//go:embed queries/*.scm
var queryFS embed.FS

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language

	queryOnce sync.Once
	query     *sitter.Query
	queryErr  error

	refOnce     sync.Once
	hasRefCaptures bool
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser; *sitter.Parser is not thread-safe.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// GetTagQuery returns the compiled tree-sitter query, shared across goroutines.
func (l *Language) GetTagQuery() (*sitter.Query, error) {
	l.queryOnce.Do(func() {
		data, err := queryFS.ReadFile(fmt.Sprintf("queries/%s.scm", l.Name))
		if err != nil {
			l.queryErr = fmt.Errorf("reading query file: %w", err)
			return
		}
		q, err := sitter.NewQuery(data, l.lang)
		if err != nil {
			l.queryErr = fmt.Errorf("compiling query: %w", err)
			return
		}
		l.query = q
	})
	return l.query, l.queryErr
}

// HasReferenceCaptures reports whether this language's query file defines
// any reference.* or name.reference.* captures. Languages without one rely
// on the extractor's lexical fallback to produce reference tags.
func (l *Language) HasReferenceCaptures() bool {
	l.refOnce.Do(func() {
		q, err := l.GetTagQuery()
		if err != nil {
			return
		}
		for i := uint32(0); i < q.CaptureCount(); i++ {
			name := q.CaptureNameForId(i)
			if strings.HasPrefix(name, "reference.") || strings.HasPrefix(name, "name.reference.") {
				l.hasRefCaptures = true
				return
			}
		}
	})
	return l.hasRefCaptures
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
