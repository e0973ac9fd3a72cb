package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Grouping keys emitted by the diff engine. The names follow the snapshot
// comparison wire format consumed by the dashboard.
const (
	groupChanged = "values_changed"
	groupAdded   = "dictionary_item_added"
	groupRemoved = "dictionary_item_removed"
)

// ChangedEntry is one entry of the values_changed grouping.
type ChangedEntry struct {
	Path     string
	OldValue json.RawMessage
	NewValue json.RawMessage
}

// ValueEntry is one entry of the added/removed groupings.
type ValueEntry struct {
	Path  string
	Value json.RawMessage
}

// RawDiff is the nested diff structure exchanged with clients. Entries keep
// the order in which they appeared in the source document; a plain
// map[string]any would lose it.
type RawDiff struct {
	Changed []ChangedEntry
	Added   []ValueEntry
	Removed []ValueEntry
}

// Empty reports whether no grouping carries any entry.
func (d RawDiff) Empty() bool {
	return len(d.Changed) == 0 && len(d.Added) == 0 && len(d.Removed) == 0
}

// ParseRawDiff decodes a raw diff object. Missing groupings are fine; an
// empty or null document yields an empty diff.
func ParseRawDiff(data []byte) (RawDiff, error) {
	var out RawDiff
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return out, fmt.Errorf("diff: parse raw diff: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return out, fmt.Errorf("diff: raw diff must be a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return out, fmt.Errorf("diff: parse raw diff: %w", err)
		}
		key, _ := keyTok.(string)
		switch key {
		case groupChanged:
			entries, err := decodeChangedGroup(dec)
			if err != nil {
				return out, err
			}
			out.Changed = entries
		case groupAdded:
			entries, err := decodeValueGroup(dec)
			if err != nil {
				return out, err
			}
			out.Added = entries
		case groupRemoved:
			entries, err := decodeValueGroup(dec)
			if err != nil {
				return out, err
			}
			out.Removed = entries
		default:
			// Unknown groupings (type_changes, iterable_item_*) are skipped.
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return out, fmt.Errorf("diff: skip grouping %q: %w", key, err)
			}
		}
	}
	return out, nil
}

// decodeChangedGroup reads a {"path": {"old_value":..,"new_value":..}, ...}
// object in document order.
func decodeChangedGroup(dec *json.Decoder) ([]ChangedEntry, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("diff: changed grouping: %w", err)
	}
	if tok == nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("diff: changed grouping must be an object")
	}
	var entries []ChangedEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("diff: changed grouping: %w", err)
		}
		path, _ := keyTok.(string)
		var change struct {
			OldValue json.RawMessage `json:"old_value"`
			NewValue json.RawMessage `json:"new_value"`
		}
		if err := dec.Decode(&change); err != nil {
			return nil, fmt.Errorf("diff: changed entry %q: %w", path, err)
		}
		entries = append(entries, ChangedEntry{
			Path:     path,
			OldValue: change.OldValue,
			NewValue: change.NewValue,
		})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("diff: changed grouping: %w", err)
	}
	return entries, nil
}

// decodeValueGroup reads a {"path": value, ...} object in document order.
func decodeValueGroup(dec *json.Decoder) ([]ValueEntry, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("diff: value grouping: %w", err)
	}
	if tok == nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("diff: value grouping must be an object")
	}
	var entries []ValueEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("diff: value grouping: %w", err)
		}
		path, _ := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("diff: value entry %q: %w", path, err)
		}
		entries = append(entries, ValueEntry{Path: path, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("diff: value grouping: %w", err)
	}
	return entries, nil
}

// MarshalJSON emits the grouping object with entries in their recorded order.
func (d RawDiff) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true

	writeKey := func(key string) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, _ := json.Marshal(key)
		buf.Write(kb)
		buf.WriteByte(':')
	}

	if len(d.Changed) > 0 {
		writeKey(groupChanged)
		buf.WriteByte('{')
		for i, e := range d.Changed {
			if i > 0 {
				buf.WriteByte(',')
			}
			pb, _ := json.Marshal(e.Path)
			buf.Write(pb)
			buf.WriteString(`:{"old_value":`)
			buf.Write(orNull(e.OldValue))
			buf.WriteString(`,"new_value":`)
			buf.Write(orNull(e.NewValue))
			buf.WriteByte('}')
		}
		buf.WriteByte('}')
	}
	if len(d.Added) > 0 {
		writeKey(groupAdded)
		writeValueGroup(&buf, d.Added)
	}
	if len(d.Removed) > 0 {
		writeKey(groupRemoved)
		writeValueGroup(&buf, d.Removed)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON mirrors ParseRawDiff so RawDiff can sit inside request bodies.
func (d *RawDiff) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRawDiff(data)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func writeValueGroup(buf *bytes.Buffer, entries []ValueEntry) {
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		pb, _ := json.Marshal(e.Path)
		buf.Write(pb)
		buf.WriteByte(':')
		buf.Write(orNull(e.Value))
	}
	buf.WriteByte('}')
}

func orNull(raw json.RawMessage) []byte {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("null")
	}
	return raw
}
