// Package rank scores files with personalized PageRank and distributes each
// file's rank across the definitions it contains.
package rank

import (
	"math"
	"sort"

	"github.com/repomapper/repomapper/internal/refgraph"
	"github.com/repomapper/repomapper/internal/tagmodel"
)

const (
	damping   = 0.85
	maxIter   = 100
	tolerance = 1e-6
)

type weightedEdge struct {
	to     string
	weight float64
}

// Rank implements the Ranker contract of spec §4.4: it runs personalized
// PageRank over graph, distributes each node's rank across its outgoing
// edges to the definitions they name, and returns the definitions ordered
// by score descending then (rel path, line) ascending. The second return
// value reports whether PageRank diverged and a uniform fallback was used.
func Rank(graph *refgraph.Graph, personalization map[string]float64, defTags map[refgraph.DefKey][]tagmodel.Tag) ([]tagmodel.RankedTag, bool) {
	scores, fellBack := scoresByDefKey(graph, personalization, defTags)

	var out []tagmodel.RankedTag
	for key, tags := range defTags {
		score := scores[key]
		for _, t := range tags {
			out = append(out, tagmodel.RankedTag{Tag: t, Score: score})
		}
	}

	sort.Slice(out, func(i, j int) bool { return tagmodel.Less(out[i], out[j]) })
	return out, fellBack
}

func scoresByDefKey(graph *refgraph.Graph, personalization map[string]float64, defTags map[refgraph.DefKey][]tagmodel.Tag) (map[refgraph.DefKey]float64, bool) {
	scores := make(map[refgraph.DefKey]float64)
	if graph == nil || len(graph.Nodes) == 0 {
		return scores, false
	}

	outWeight := make(map[string]float64, len(graph.Nodes))
	edgesBySrc := make(map[string][]weightedEdge)

	for _, e := range graph.Edges {
		outWeight[e.From] += e.Weight
		edgesBySrc[e.From] = append(edgesBySrc[e.From], weightedEdge{to: e.To, weight: e.Weight})
	}

	fileRanks, fellBack := pageRank(graph.Nodes, outWeight, edgesBySrc, personalization, damping, maxIter, tolerance)
	if fellBack {
		uniform := 1.0 / float64(len(graph.Nodes))
		fileRanks = make(map[string]float64, len(graph.Nodes))
		for _, n := range graph.Nodes {
			fileRanks[n] = uniform
		}
	}

	// Distribute each node's rank across its outgoing edges proportional to
	// edge weight; each (src, dst, ident) edge accumulates its own share
	// onto the definition it names.
	for _, e := range graph.Edges {
		ow := outWeight[e.From]
		if ow == 0 {
			continue
		}
		contribution := fileRanks[e.From] * e.Weight / ow
		key := refgraph.DefKey{AbsPath: e.To, Ident: e.Ident}
		scores[key] += contribution
	}

	return scores, fellBack
}

// pageRank runs weighted, personalized power-iteration PageRank until the
// L1 delta between iterations drops below tol or maxIter is reached.
func pageRank(nodes []string, outWeight map[string]float64, edgesBySrc map[string][]weightedEdge, personalization map[string]float64, alpha float64, maxIter int, tol float64) (map[string]float64, bool) {
	n := len(nodes)
	if n == 0 {
		return nil, false
	}

	teleport := make(map[string]float64, n)
	if len(personalization) > 0 {
		for _, nd := range nodes {
			teleport[nd] = personalization[nd]
		}
	} else {
		uniform := 1.0 / float64(n)
		for _, nd := range nodes {
			teleport[nd] = uniform
		}
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for _, nd := range nodes {
		rank[nd] = initial
	}

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		var danglingSum float64
		for _, nd := range nodes {
			if outWeight[nd] == 0 {
				danglingSum += rank[nd]
			}
		}

		for _, nd := range nodes {
			newRank[nd] = (1-alpha)*teleport[nd] + alpha*danglingSum*teleport[nd]
		}

		for _, nd := range nodes {
			ow := outWeight[nd]
			if ow == 0 {
				continue
			}
			base := alpha * rank[nd] / ow
			for _, e := range edgesBySrc[nd] {
				newRank[e.to] += base * e.weight
			}
		}

		var delta float64
		for _, nd := range nodes {
			delta += math.Abs(newRank[nd] - rank[nd])
		}
		rank = newRank
		if delta < tol {
			break
		}
	}

	for _, nd := range nodes {
		if math.IsNaN(rank[nd]) || math.IsInf(rank[nd], 0) {
			return nil, true
		}
	}
	return rank, false
}
