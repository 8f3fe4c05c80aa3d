package tagcache

import (
	"errors"
	"testing"

	"github.com/repomapper/repomapper/internal/tagmodel"
)

func TestGetOrComputeHitAndMiss(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	c, err := Open(dir, CurrentVersion, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	calls := 0
	compute := func() ([]tagmodel.Tag, error) {
		calls++
		return []tagmodel.Tag{{RelPath: "a.py", AbsPath: "/x/a.py", Line: 0, Name: "foo", Kind: tagmodel.Definition}}, nil
	}

	tags, err := c.GetOrCompute("/x/a.py", 100, false, compute)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "foo" {
		t.Fatalf("unexpected tags: %+v", tags)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	// Second call with the same key should hit the cache and not recompute.
	tags2, err := c.GetOrCompute("/x/a.py", 100, false, compute)
	if err != nil {
		t.Fatalf("GetOrCompute (hit): %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls after hit = %d, want 1", calls)
	}
	if len(tags2) != 1 || tags2[0].Name != "foo" {
		t.Fatalf("unexpected tags on hit: %+v", tags2)
	}
}

func TestGetOrComputeMtimeChangeMisses(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	c, err := Open(dir, CurrentVersion, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	calls := 0
	compute := func() ([]tagmodel.Tag, error) {
		calls++
		return nil, nil
	}

	if _, err := c.GetOrCompute("/x/a.py", 100, false, compute); err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if _, err := c.GetOrCompute("/x/a.py", 200, false, compute); err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (mtime change should force recomputation)", calls)
	}
}

func TestGetOrComputeForceRefresh(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	c, err := Open(dir, CurrentVersion, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	calls := 0
	compute := func() ([]tagmodel.Tag, error) {
		calls++
		return nil, nil
	}

	if _, err := c.GetOrCompute("/x/a.py", 100, false, compute); err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if _, err := c.GetOrCompute("/x/a.py", 100, true, compute); err != nil {
		t.Fatalf("GetOrCompute (forced): %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (force_refresh must bypass the read)", calls)
	}
}

func TestGetOrComputeComputeErrorPropagates(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	c, err := Open(dir, CurrentVersion, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	wantErr := errors.New("boom")
	_, err = c.GetOrCompute("/x/a.py", 100, false, func() ([]tagmodel.Tag, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestNilCacheAlwaysComputes(t *testing.T) {
	t.Parallel()

	var c *Cache
	calls := 0
	_, err := c.GetOrCompute("/x/a.py", 100, false, func() ([]tagmodel.Tag, error) {
		calls++
		return nil, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute on nil cache: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
