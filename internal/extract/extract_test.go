package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/repomapper/repomapper/internal/tagmodel"
)

func writeSource(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	abs := filepath.Join(dir, name)
	if err := os.WriteFile(abs, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return abs
}

func filterKind(tags []tagmodel.Tag, kind tagmodel.Kind) []tagmodel.Tag {
	var out []tagmodel.Tag
	for _, t := range tags {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

func TestExtractPythonFunction(t *testing.T) {
	t.Parallel()
	abs := writeSource(t, "a.py", "def hello(name):\n    pass\n")

	e := New()
	tags, err := e.Extract(abs, "a.py", "python")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	defs := filterKind(tags, tagmodel.Definition)
	if len(defs) != 1 {
		t.Fatalf("expected 1 def, got %d: %+v", len(defs), defs)
	}
	if defs[0].Name != "hello" {
		t.Errorf("name = %q, want hello", defs[0].Name)
	}
	if defs[0].Line != 0 {
		t.Errorf("line = %d, want 0", defs[0].Line)
	}
}

func TestExtractGoReferencesAndDefinitions(t *testing.T) {
	t.Parallel()
	src := "package main\n\nfunc greet() {}\n\nfunc main() {\n\tgreet()\n}\n"
	abs := writeSource(t, "main.go", src)

	e := New()
	tags, err := e.Extract(abs, "main.go", "go")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	defs := filterKind(tags, tagmodel.Definition)
	refs := filterKind(tags, tagmodel.Reference)
	if len(defs) != 2 {
		t.Fatalf("expected 2 defs (greet, main), got %d: %+v", len(defs), defs)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 ref (greet call), got %d: %+v", len(refs), refs)
	}
	if refs[0].Name != "greet" {
		t.Errorf("ref name = %q, want greet", refs[0].Name)
	}
}

func TestExtractUnknownLanguage(t *testing.T) {
	t.Parallel()
	abs := writeSource(t, "f.txt", "whatever")

	e := New()
	tags, err := e.Extract(abs, "f.txt", "cobol")
	if err != ErrNoGrammar {
		t.Fatalf("err = %v, want ErrNoGrammar", err)
	}
	if tags != nil {
		t.Errorf("tags = %v, want nil", tags)
	}
}

func TestExtractRubyUsesLexicalFallback(t *testing.T) {
	t.Parallel()
	src := "class Greeter\n  def hello(name)\n    puts name\n  end\nend\n"
	abs := writeSource(t, "greeter.rb", src)

	e := New()
	tags, err := e.Extract(abs, "greeter.rb", "ruby")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	defs := filterKind(tags, tagmodel.Definition)
	refs := filterKind(tags, tagmodel.Reference)
	if len(defs) == 0 {
		t.Fatal("expected at least one definition from the ruby grammar")
	}
	if len(refs) == 0 {
		t.Fatal("expected lexical fallback to produce reference tags for ruby")
	}
	for _, r := range refs {
		if r.Name == "hello" && r.Line == 1 {
			t.Errorf("lexical fallback emitted a ref for %q on its own definition line", r.Name)
		}
	}
}
