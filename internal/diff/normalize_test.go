package diff

import (
	"encoding/json"
	"testing"
)

func TestNormalizeChangedOnlyKeepsInputOrder(t *testing.T) {
	raw, err := ParseRawDiff([]byte(`{
		"values_changed": {
			"root['z']": {"old_value": 1, "new_value": 2},
			"root['a']": {"old_value": "x", "new_value": "y"},
			"root['m']": {"old_value": true, "new_value": false}
		}
	}`))
	if err != nil {
		t.Fatalf("ParseRawDiff() error = %v", err)
	}

	records := Normalize(raw)
	if len(records) != 3 {
		t.Fatalf("Normalize() returned %d records, want 3", len(records))
	}
	wantPaths := []string{"z", "a", "m"}
	for i, rec := range records {
		if rec.Kind != KindChanged {
			t.Fatalf("record %d kind = %q, want Changed", i, rec.Kind)
		}
		if rec.Path != wantPaths[i] {
			t.Fatalf("record %d path = %q, want %q", i, rec.Path, wantPaths[i])
		}
	}
}

func TestNormalizeBlockOrder(t *testing.T) {
	raw, err := ParseRawDiff([]byte(`{
		"dictionary_item_removed": {"root['gone']": "old"},
		"dictionary_item_added": {"root['fresh']": "new"},
		"values_changed": {"root['port']": {"old_value": 80, "new_value": 8080}}
	}`))
	if err != nil {
		t.Fatalf("ParseRawDiff() error = %v", err)
	}

	records := Normalize(raw)
	if len(records) != 3 {
		t.Fatalf("Normalize() returned %d records, want 3", len(records))
	}
	wantKinds := []Kind{KindChanged, KindAdded, KindRemoved}
	for i, rec := range records {
		if rec.Kind != wantKinds[i] {
			t.Fatalf("record %d kind = %q, want %q", i, rec.Kind, wantKinds[i])
		}
	}

	if records[0].OldValue != "80" || records[0].NewValue != "8080" {
		t.Fatalf("changed values = %q/%q, want 80/8080", records[0].OldValue, records[0].NewValue)
	}
	if records[1].OldValue != MissingValue {
		t.Fatalf("added old value = %q, want %q", records[1].OldValue, MissingValue)
	}
	if records[2].NewValue != MissingValue {
		t.Fatalf("removed new value = %q, want %q", records[2].NewValue, MissingValue)
	}
}

func TestNormalizeEmptyDiff(t *testing.T) {
	for _, doc := range []string{"{}", "", "null"} {
		raw, err := ParseRawDiff([]byte(doc))
		if err != nil {
			t.Fatalf("ParseRawDiff(%q) error = %v", doc, err)
		}
		if !raw.Empty() {
			t.Fatalf("ParseRawDiff(%q) not empty", doc)
		}
		if got := Normalize(raw); len(got) != 0 {
			t.Fatalf("Normalize(%q) returned %d records, want 0", doc, len(got))
		}
	}
}

func TestPrettifyPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"root['config']['db']['host']", "config > db > host"},
		{"root['a']", "a"},
		{"root['servers'][0]['port']", "servers > 0 > port"},
		{"root", ""},
	}
	for _, tc := range cases {
		if got := PrettifyPath(tc.in); got != tc.want {
			t.Fatalf("PrettifyPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRenderValue(t *testing.T) {
	if got := RenderValue(nil); got != MissingValue {
		t.Fatalf("RenderValue(nil) = %q, want %q", got, MissingValue)
	}
	if got := RenderValue(json.RawMessage(`null`)); got != MissingValue {
		t.Fatalf("RenderValue(null) = %q, want %q", got, MissingValue)
	}
	if got := RenderValue(json.RawMessage(`"hello"`)); got != "hello" {
		t.Fatalf("RenderValue(string) = %q, want hello", got)
	}
	if got := RenderValue(json.RawMessage(`42`)); got != "42" {
		t.Fatalf("RenderValue(number) = %q, want 42", got)
	}

	structured := RenderValue(json.RawMessage(`{"b":1,"a":2}`))
	want := "{\n  \"b\": 1,\n  \"a\": 2\n}"
	if structured != want {
		t.Fatalf("RenderValue(object) = %q, want %q", structured, want)
	}
}

func TestRawDiffRoundTrip(t *testing.T) {
	src := []byte(`{"values_changed":{"root['a']":{"old_value":1,"new_value":2}},"dictionary_item_added":{"root['b']":"x"}}`)
	raw, err := ParseRawDiff(src)
	if err != nil {
		t.Fatalf("ParseRawDiff() error = %v", err)
	}
	out, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != string(src) {
		t.Fatalf("round trip = %s, want %s", out, src)
	}
}
