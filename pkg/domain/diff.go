package domain

import "reflect"

// Diff is the minimal field-level difference between two versions of a
// datum's fields. A key present in Original but absent from New means the
// field was removed; present only in New means it was added. Keys with equal
// values on both sides never appear.
type Diff struct {
	Original map[string]any `json:"original"`
	New      map[string]any `json:"new"`
}

// Empty reports whether the diff carries no changes.
func (d Diff) Empty() bool {
	return len(d.Original) == 0 && len(d.New) == 0
}

// GetDiff computes the minimal diff from original to updated field maps.
// Equality is canonical: key order is irrelevant and numeric values compare
// by magnitude regardless of concrete type.
func GetDiff(original, updated map[string]any) Diff {
	diff := Diff{Original: map[string]any{}, New: map[string]any{}}
	for key, oldVal := range original {
		newVal, ok := updated[key]
		if !ok {
			diff.Original[key] = oldVal
			continue
		}
		if !DeepEqual(oldVal, newVal) {
			diff.Original[key] = oldVal
			diff.New[key] = newVal
		}
	}
	for key, newVal := range updated {
		if _, ok := original[key]; !ok {
			diff.New[key] = newVal
		}
	}
	return diff
}

// HasChanges reports whether the two field maps differ and how many
// top-level fields differ between them.
func HasChanges(original, updated map[string]any) (bool, int) {
	diff := GetDiff(original, updated)
	changed := map[string]struct{}{}
	for key := range diff.Original {
		changed[key] = struct{}{}
	}
	for key := range diff.New {
		changed[key] = struct{}{}
	}
	return len(changed) > 0, len(changed)
}

// DeepEqual compares two values with JSON semantics: maps compare per key,
// slices element-wise, and numbers by magnitude after normalization.
func DeepEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := asNumber(a); aok {
		bf, bok := asNumber(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for key, aval := range av {
			bval, ok := bv[key]
			if !ok || !DeepEqual(aval, bval) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
