package rank

import (
	"testing"

	"github.com/repomapper/repomapper/internal/refgraph"
	"github.com/repomapper/repomapper/internal/tagmodel"
)

func TestRankSingleEdgeBoostsDefiner(t *testing.T) {
	t.Parallel()

	graph := &refgraph.Graph{
		Nodes: []string{"/a.py", "/b.py"},
		Edges: []refgraph.Edge{
			{From: "/b.py", To: "/a.py", Ident: "foo", Weight: 1.0},
		},
	}
	defTags := map[refgraph.DefKey][]tagmodel.Tag{
		{AbsPath: "/a.py", Ident: "foo"}: {{RelPath: "a.py", AbsPath: "/a.py", Line: 0, Name: "foo", Kind: tagmodel.Definition}},
		{AbsPath: "/b.py", Ident: "bar"}: {{RelPath: "b.py", AbsPath: "/b.py", Line: 0, Name: "bar", Kind: tagmodel.Definition}},
	}

	ranked, fellBack := Rank(graph, nil, defTags)
	if fellBack {
		t.Fatal("did not expect a PageRank fallback")
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked tags, got %d", len(ranked))
	}
	if ranked[0].Name != "foo" {
		t.Errorf("top tag = %q, want foo (it receives inbound rank from b.py)", ranked[0].Name)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Errorf("foo score %v should exceed bar score %v", ranked[0].Score, ranked[1].Score)
	}
}

func TestRankNoEdgesTiebreaksByPathThenLine(t *testing.T) {
	t.Parallel()

	graph := &refgraph.Graph{Nodes: []string{"/a.py", "/b.py"}}
	defTags := map[refgraph.DefKey][]tagmodel.Tag{
		{AbsPath: "/b.py", Ident: "z"}: {{RelPath: "b.py", AbsPath: "/b.py", Line: 3, Name: "z", Kind: tagmodel.Definition}},
		{AbsPath: "/a.py", Ident: "y"}: {{RelPath: "a.py", AbsPath: "/a.py", Line: 1, Name: "y", Kind: tagmodel.Definition}},
		{AbsPath: "/a.py", Ident: "x"}: {{RelPath: "a.py", AbsPath: "/a.py", Line: 0, Name: "x", Kind: tagmodel.Definition}},
	}

	ranked, _ := Rank(graph, nil, defTags)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked tags, got %d", len(ranked))
	}
	// All scores are 0 (no inbound edges), so order falls back to (rel path, line).
	want := []string{"x", "y", "z"}
	for i, name := range want {
		if ranked[i].Name != name {
			t.Errorf("ranked[%d] = %q, want %q", i, ranked[i].Name, name)
		}
	}
}

func TestRankEmptyGraph(t *testing.T) {
	t.Parallel()

	ranked, fellBack := Rank(&refgraph.Graph{}, nil, nil)
	if len(ranked) != 0 {
		t.Errorf("expected no ranked tags, got %d", len(ranked))
	}
	if fellBack {
		t.Error("empty graph should not report a fallback")
	}
}
