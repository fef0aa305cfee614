// internal/domain/docstore/batch.go
package docstore

import (
	"fmt"
	"reflect"
)

// Write is the planned effect of a batch on one document
type Write struct {
	Path string
	// Sets holds merged fields with their new values
	Sets map[string]any
	// Deltas holds the increments applied to numeric fields
	Deltas map[string]int64
	// Result is the complete document after the batch
	Result map[string]any
}

// Plan evaluates ops against the current documents (missing paths map to nil) without writing.
// Bounds are checked first, then preconditions, so a LimitError reflects stored state.
// Backends that lock or transact over the touched paths call Plan and persist the writes.
func Plan(current map[string]map[string]any, ops []Op) ([]Write, error) {
	if err := Validate(ops); err != nil {
		return nil, err
	}

	// running totals so two increments on one field see each other
	totals := make(map[string]map[string]int64)
	for _, op := range ops {
		inc := op.Increment
		if inc == nil {
			continue
		}
		if totals[inc.Path] == nil {
			totals[inc.Path] = make(map[string]int64)
		}
		base, ok := totals[inc.Path][inc.Field]
		if !ok {
			v, err := fieldInt(current[inc.Path], inc.Field)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", inc.Path, err)
			}
			base = v
		}
		next := base + inc.Delta
		if inc.Max != nil && next > *inc.Max {
			return nil, &LimitError{Path: inc.Path, Field: inc.Field, Current: base, Max: *inc.Max}
		}
		totals[inc.Path][inc.Field] = next
	}

	for _, op := range ops {
		req := op.Require
		if req == nil {
			continue
		}
		if !fieldEquals(current[req.Path], req.Field, req.Equals) {
			return nil, ErrConflict
		}
	}

	writes := make(map[string]*Write)
	var order []string
	get := func(path string) *Write {
		w, ok := writes[path]
		if !ok {
			w = &Write{Path: path, Sets: map[string]any{}, Deltas: map[string]int64{}}
			writes[path] = w
			order = append(order, path)
		}
		return w
	}

	for _, op := range ops {
		switch {
		case op.Increment != nil:
			w := get(op.Increment.Path)
			w.Deltas[op.Increment.Field] += op.Increment.Delta
		case op.Set != nil:
			w := get(op.Set.Path)
			for k, v := range op.Set.Patch {
				w.Sets[k] = v
			}
		}
	}

	out := make([]Write, 0, len(order))
	for _, path := range order {
		w := writes[path]
		result := make(map[string]any, len(current[path])+len(w.Sets))
		for k, v := range current[path] {
			result[k] = v
		}
		for k, v := range w.Sets {
			result[k] = v
		}
		for field := range w.Deltas {
			result[field] = totals[path][field]
		}
		w.Result = result
		out = append(out, *w)
	}
	return out, nil
}

// Merge returns a copy of doc with patch applied at the top level
func Merge(doc, patch map[string]any) map[string]any {
	out := make(map[string]any, len(doc)+len(patch))
	for k, v := range doc {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func fieldInt(doc map[string]any, field string) (int64, error) {
	if doc == nil {
		return 0, nil
	}
	v, ok := doc[field]
	if !ok || v == nil {
		return 0, nil
	}
	n, ok := ToInt64(v)
	if !ok {
		return 0, fmt.Errorf("field %s is not numeric (%T)", field, v)
	}
	return n, nil
}

func fieldEquals(doc map[string]any, field string, want any) bool {
	var got any
	if doc != nil {
		got = doc[field]
	}
	if want == nil || got == nil {
		if want == nil && got == nil {
			return true
		}
		// a missing counter equals an expected zero
		if n, ok := ToInt64(want); ok && got == nil {
			return n == 0
		}
		if n, ok := ToInt64(got); ok && want == nil {
			return n == 0
		}
		return false
	}
	if a, ok := ToInt64(got); ok {
		if b, ok := ToInt64(want); ok {
			return a == b
		}
	}
	return reflect.DeepEqual(got, want)
}

// ToInt64 converts the integer and integral float shapes backends decode numbers into
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		if float32(int64(n)) == n {
			return int64(n), true
		}
	case float64:
		if float64(int64(n)) == n {
			return int64(n), true
		}
	}
	return 0, false
}

// Matches reports whether doc has field equal to value, comparing numbers by value
func Matches(doc map[string]any, field string, value any) bool {
	if _, ok := doc[field]; !ok {
		return false
	}
	return fieldEquals(doc, field, value)
}
