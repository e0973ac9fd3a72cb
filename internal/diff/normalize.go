package diff

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind classifies a normalized diff record.
type Kind string

const (
	KindAdded   Kind = "Added"
	KindRemoved Kind = "Removed"
	KindChanged Kind = "Changed"
)

// MissingValue marks the absent side of an Added or Removed record.
const MissingValue = "-"

// Record is one display-ready row of a snapshot comparison. Records are
// built once per comparison and never mutated.
type Record struct {
	Kind     Kind   `json:"kind"`
	Path     string `json:"path"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Normalize flattens a raw diff into ordered records: all Changed entries
// first, then Added, then Removed, each block keeping the input order.
// Changed entries are listed first because they are the most actionable
// rows when triaging a broken environment.
func Normalize(raw RawDiff) []Record {
	if raw.Empty() {
		return []Record{}
	}
	records := make([]Record, 0, len(raw.Changed)+len(raw.Added)+len(raw.Removed))
	for _, e := range raw.Changed {
		records = append(records, Record{
			Kind:     KindChanged,
			Path:     PrettifyPath(e.Path),
			OldValue: RenderValue(e.OldValue),
			NewValue: RenderValue(e.NewValue),
		})
	}
	for _, e := range raw.Added {
		records = append(records, Record{
			Kind:     KindAdded,
			Path:     PrettifyPath(e.Path),
			OldValue: MissingValue,
			NewValue: RenderValue(e.Value),
		})
	}
	for _, e := range raw.Removed {
		records = append(records, Record{
			Kind:     KindRemoved,
			Path:     PrettifyPath(e.Path),
			OldValue: RenderValue(e.Value),
			NewValue: MissingValue,
		})
	}
	return records
}

// PrettifyPath turns the engine's bracket notation into a breadcrumb:
//
//	root['config']['db']['host'] -> config > db > host
//	root['servers'][0]['port']   -> servers > 0 > port
//
// Pure string transformation; two distinct raw paths stay distinct rows
// even if they happen to render the same (callers keep insertion order).
func PrettifyPath(path string) string {
	p := strings.TrimPrefix(path, "root")
	p = strings.ReplaceAll(p, "['", " > ")
	p = strings.ReplaceAll(p, "']", "")
	// Bare numeric indexes: ["a"][0] style.
	p = strings.ReplaceAll(p, "[", " > ")
	p = strings.ReplaceAll(p, "]", "")
	p = strings.TrimPrefix(p, " > ")
	return strings.TrimSpace(p)
}

// RenderValue produces the display form of a diff value: "-" for absent or
// null, the bare text for scalars, and an indented serialization for
// objects and arrays. json.Indent works on the raw bytes, so key order is
// exactly what the engine emitted.
func RenderValue(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return MissingValue
	}
	switch trimmed[0] {
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
			return string(trimmed)
		}
		return buf.String()
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return string(trimmed)
		}
		return s
	default:
		return string(trimmed)
	}
}
