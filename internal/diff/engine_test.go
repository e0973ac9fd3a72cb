package diff

import (
	"testing"
)

func TestCompareScalarChange(t *testing.T) {
	before := map[string]any{"config": map[string]any{"db": map[string]any{"host": "a"}}}
	after := map[string]any{"config": map[string]any{"db": map[string]any{"host": "b"}}}

	d := Compare(before, after)
	if len(d.Changed) != 1 || len(d.Added) != 0 || len(d.Removed) != 0 {
		t.Fatalf("Compare() groupings = %d/%d/%d, want 1/0/0", len(d.Changed), len(d.Added), len(d.Removed))
	}
	e := d.Changed[0]
	if e.Path != "root['config']['db']['host']" {
		t.Fatalf("path = %q", e.Path)
	}
	if string(e.OldValue) != `"a"` || string(e.NewValue) != `"b"` {
		t.Fatalf("values = %s/%s", e.OldValue, e.NewValue)
	}
}

func TestCompareAddedAndRemovedKeys(t *testing.T) {
	before := map[string]any{"keep": 1, "gone": "x"}
	after := map[string]any{"keep": 1, "fresh": "y"}

	d := Compare(before, after)
	if len(d.Changed) != 0 {
		t.Fatalf("unexpected changed entries: %v", d.Changed)
	}
	if len(d.Added) != 1 || d.Added[0].Path != "root['fresh']" {
		t.Fatalf("added = %+v", d.Added)
	}
	if len(d.Removed) != 1 || d.Removed[0].Path != "root['gone']" {
		t.Fatalf("removed = %+v", d.Removed)
	}
}

func TestCompareTypeMismatchIsSingleLeaf(t *testing.T) {
	before := map[string]any{"env": map[string]any{"PATH": "/bin"}}
	after := map[string]any{"env": "broken"}

	d := Compare(before, after)
	if len(d.Changed) != 1 {
		t.Fatalf("changed = %+v, want single entry", d.Changed)
	}
	if d.Changed[0].Path != "root['env']" {
		t.Fatalf("path = %q", d.Changed[0].Path)
	}
}

func TestCompareEqualDocuments(t *testing.T) {
	doc := map[string]any{"a": []any{1.0, 2.0}, "b": map[string]any{"c": "d"}}
	if d := Compare(doc, doc); !d.Empty() {
		t.Fatalf("Compare(doc, doc) not empty: %+v", d)
	}
}

func TestCompareDeterministicKeyOrder(t *testing.T) {
	before := map[string]any{"b": 1, "a": 1, "c": 1}
	after := map[string]any{"b": 2, "a": 2, "c": 2}

	d := Compare(before, after)
	wantOrder := []string{"root['a']", "root['b']", "root['c']"}
	if len(d.Changed) != len(wantOrder) {
		t.Fatalf("changed count = %d", len(d.Changed))
	}
	for i, e := range d.Changed {
		if e.Path != wantOrder[i] {
			t.Fatalf("entry %d path = %q, want %q", i, e.Path, wantOrder[i])
		}
	}
}
