package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootVersionCommand(t *testing.T) {
	t.Parallel()
	root := NewRootCommand("1.2.3")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "1.2.3") {
		t.Errorf("expected version in output, got %q", out.String())
	}
}

func TestRootBareInvocationRunsMap(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	root := NewRootCommand("dev")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--no-cache", dir})
	if err := root.Execute(); err != nil {
		t.Fatalf("bare invocation: %v", err)
	}
	if !strings.Contains(out.String(), "models.py") {
		t.Errorf("expected bare invocation to render a map, got:\n%s", out.String())
	}
}
