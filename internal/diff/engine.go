package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Compare walks two JSON-compatible documents and records leaf-level
// differences in the three groupings consumed by Normalize. Map keys are
// visited in sorted order so the output is deterministic for a given pair
// of inputs.
//
// Recursion stops at the deepest changed leaf: a scalar mismatch, a type
// mismatch, or an array mismatch is recorded as a single values_changed
// entry carrying both sides.
func Compare(before, after map[string]any) RawDiff {
	var d RawDiff
	compareMaps("root", normalizeJSON(before), normalizeJSON(after), &d)
	return d
}

func compareMaps(path string, before, after map[string]any, d *RawDiff) {
	for _, k := range sortedKeys(before) {
		bv := before[k]
		av, exists := after[k]
		childPath := bracketPath(path, k)
		if !exists {
			d.Removed = append(d.Removed, ValueEntry{Path: childPath, Value: mustRaw(bv)})
			continue
		}
		compareAny(childPath, bv, av, d)
	}
	for _, k := range sortedKeys(after) {
		if _, exists := before[k]; exists {
			continue
		}
		d.Added = append(d.Added, ValueEntry{Path: bracketPath(path, k), Value: mustRaw(after[k])})
	}
}

func compareAny(path string, before, after any, d *RawDiff) {
	if reflect.DeepEqual(before, after) {
		return
	}
	bm, bok := before.(map[string]any)
	am, aok := after.(map[string]any)
	if bok && aok {
		compareMaps(path, bm, am, d)
		return
	}
	ba, bok := before.([]any)
	aa, aok := after.([]any)
	if bok && aok && len(ba) == len(aa) {
		for i := range ba {
			compareAny(fmt.Sprintf("%s[%d]", path, i), ba[i], aa[i], d)
		}
		return
	}
	d.Changed = append(d.Changed, ChangedEntry{
		Path:     path,
		OldValue: mustRaw(before),
		NewValue: mustRaw(after),
	})
}

func bracketPath(base, key string) string {
	return base + "['" + key + "']"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizeJSON coerces arbitrary values into the generic map/slice/scalar
// shapes produced by encoding/json, so DeepEqual comparisons behave.
func normalizeJSON(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return m
	}
	return out
}

func mustRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}
