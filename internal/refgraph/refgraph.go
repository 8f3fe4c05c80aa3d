// Package refgraph builds a weighted reference graph over a set of files by
// aggregating the tags each file contributes, then linking files that
// reference identifiers defined elsewhere.
package refgraph

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/repomapper/repomapper/internal/extract"
	"github.com/repomapper/repomapper/internal/lang"
	"github.com/repomapper/repomapper/internal/tagcache"
	"github.com/repomapper/repomapper/internal/tagmodel"
)

// FileInput identifies one candidate file by its absolute and repo-relative
// paths.
type FileInput struct {
	AbsPath string
	RelPath string
}

// Edge is a directed, identifier-labeled link from a referencing file to a
// defining file.
type Edge struct {
	From   string // abs path of the referencing file
	To     string // abs path of the defining file
	Ident  string
	Weight float64
}

// Graph is the weighted directed multigraph described in spec §3: nodes are
// absolute file paths, multi-edges carry distinct identifier labels.
type Graph struct {
	Nodes []string
	Edges []Edge
}

// DefKey identifies the set of definition tags for one identifier in one
// file, the unit the Ranker accumulates score onto.
type DefKey struct {
	AbsPath string
	Ident   string
}

// Result is everything GraphBuilder hands to the Ranker.
type Result struct {
	Graph           *Graph
	Personalization map[string]float64 // abs path -> weight; empty means no bias
	DefTags         map[DefKey][]tagmodel.Tag
	Report          *tagmodel.FileReport
}

// Builder collects tags (via the cache, falling back to the extractor) and
// assembles the reference graph described in spec §4.3.
type Builder struct {
	Extractor    *extract.Extractor
	Cache        *tagcache.Cache // nil is valid: every file is always recomputed
	ForceRefresh bool
}

// NewBuilder returns a Builder with a fresh Extractor.
func NewBuilder(cache *tagcache.Cache, forceRefresh bool) *Builder {
	return &Builder{Extractor: extract.New(), Cache: cache, ForceRefresh: forceRefresh}
}

// Build implements the GraphBuilder contract. chatFiles and otherFiles are
// both candidate inputs; mentionedFnames holds relative paths receiving a
// personalization boost, mentionedIdents holds identifiers receiving an
// edge-weight boost.
func (b *Builder) Build(chatFiles, otherFiles []FileInput, mentionedFnames, mentionedIdents map[string]bool) Result {
	report := tagmodel.NewFileReport()

	all := dedupeFiles(chatFiles, otherFiles)
	report.TotalFilesConsidered = len(all)

	chatAbs := make(map[string]bool, len(chatFiles))
	for _, f := range chatFiles {
		chatAbs[f.AbsPath] = true
	}

	// ident -> set of defining abs paths
	defFiles := make(map[string]map[string]bool)
	// ident -> abs path -> occurrence count of references
	refCounts := make(map[string]map[string]int)
	// every tag ever seen, by (abs path, ident), definitions only
	defTags := make(map[DefKey][]tagmodel.Tag)

	nodeSet := make(map[string]bool)

	for _, f := range all {
		tags, err := b.tagsFor(f)
		if err != nil {
			report.Excluded[f.AbsPath] = excludeReason(err)
			continue
		}

		for _, t := range tags {
			switch t.Kind {
			case tagmodel.Definition:
				report.DefinitionMatches++
				if defFiles[t.Name] == nil {
					defFiles[t.Name] = make(map[string]bool)
				}
				defFiles[t.Name][f.AbsPath] = true
				key := DefKey{AbsPath: f.AbsPath, Ident: t.Name}
				defTags[key] = append(defTags[key], t)
				nodeSet[f.AbsPath] = true
			case tagmodel.Reference:
				report.ReferenceMatches++
				if refCounts[t.Name] == nil {
					refCounts[t.Name] = make(map[string]int)
				}
				refCounts[t.Name][f.AbsPath]++
				nodeSet[f.AbsPath] = true
			}
		}
	}

	var edges []Edge
	for ident, refsByFile := range refCounts {
		defs := defFiles[ident]
		if len(defs) == 0 {
			continue // pure external reference; no edge, tags are irrelevant here
		}
		for refFile, count := range refsByFile {
			weight := edgeWeight(ident, count, mentionedIdents)
			for defFile := range defs {
				if defFile == refFile {
					continue // no self-edges
				}
				edges = append(edges, Edge{From: refFile, To: defFile, Ident: ident, Weight: weight})
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Ident < edges[j].Ident
	})

	nodes := make([]string, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	personalization := buildPersonalization(chatAbs, mentionedFnames, all)

	return Result{
		Graph:           &Graph{Nodes: nodes, Edges: edges},
		Personalization: personalization,
		DefTags:         defTags,
		Report:          report,
	}
}

func (b *Builder) tagsFor(f FileInput) ([]tagmodel.Tag, error) {
	info, err := os.Stat(f.AbsPath)
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(f.AbsPath)
	language := lang.ForExtension(ext)
	if language == "" {
		return nil, errNoGrammar
	}

	compute := func() ([]tagmodel.Tag, error) {
		return b.Extractor.Extract(f.AbsPath, f.RelPath, language)
	}

	if b.Cache == nil {
		return compute()
	}
	return b.Cache.GetOrCompute(f.AbsPath, info.ModTime().UnixNano(), b.ForceRefresh, compute)
}

var errNoGrammar = extract.ErrNoGrammar

func excludeReason(err error) string {
	if err == errNoGrammar {
		return "no-grammar"
	}
	return err.Error()
}

// edgeWeight implements spec §4.3's weight formula exactly.
func edgeWeight(ident string, occurrenceCount int, mentionedIdents map[string]bool) float64 {
	w := math.Sqrt(float64(occurrenceCount))
	if mentionedIdents[ident] {
		w *= 10
	}
	if isUpperLeading(ident) {
		w *= 10
	}
	if len(ident) <= 2 || strings.HasPrefix(ident, "_") {
		w *= 0.1
	}
	return w
}

func isUpperLeading(ident string) bool {
	if ident == "" {
		return false
	}
	r := ident[0]
	return r >= 'A' && r <= 'Z'
}

func buildPersonalization(chatAbs map[string]bool, mentionedFnames map[string]bool, all []FileInput) map[string]float64 {
	p := make(map[string]float64)
	for _, f := range all {
		if chatAbs[f.AbsPath] || mentionedFnames[f.RelPath] {
			p[f.AbsPath] = 1.0
		}
	}
	if len(p) == 0 {
		return p
	}
	total := float64(len(p))
	for k := range p {
		p[k] = 1.0 / total
	}
	return p
}

func dedupeFiles(chatFiles, otherFiles []FileInput) []FileInput {
	seen := make(map[string]bool)
	var out []FileInput
	for _, group := range [][]FileInput{chatFiles, otherFiles} {
		for _, f := range group {
			if seen[f.AbsPath] {
				continue
			}
			seen[f.AbsPath] = true
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AbsPath < out[j].AbsPath })
	return out
}
