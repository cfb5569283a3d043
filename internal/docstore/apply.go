package docstore

import (
	"fmt"
	"math"
	"reflect"

	"github.com/eternalApril/objectdb/internal/document"
)

// apply returns doc with u applied. doc itself is left untouched, so a failing
// operator never leaves a half-updated record behind.
func apply(doc document.Document, u Update) (document.Document, error) {
	out := doc.Clone()
	if out == nil {
		out = document.Document{}
	}

	for field, v := range u.Set {
		out[field] = document.CloneValue(v)
	}

	for _, field := range u.Unset {
		delete(out, field)
	}

	for field, delta := range u.Inc {
		sum, err := add(out[field], out.Has(field), delta)
		if err != nil {
			return nil, fmt.Errorf("inc %q: %w", field, err)
		}
		out[field] = sum
	}

	for field, values := range u.AddToSet {
		arr, err := arrayField(out, field)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			if !contains(arr, v) {
				arr = append(arr, v)
			}
		}
		out[field] = arr
	}

	for field, values := range u.PullAll {
		if !out.Has(field) {
			continue
		}
		arr, err := arrayField(out, field)
		if err != nil {
			return nil, err
		}
		kept := arr[:0]
		for _, el := range arr {
			if !contains(values, el) {
				kept = append(kept, el)
			}
		}
		out[field] = kept
	}

	for field, values := range u.Push {
		arr, err := arrayField(out, field)
		if err != nil {
			return nil, err
		}
		out[field] = append(arr, values...)
	}

	for field, values := range u.PushFront {
		arr, err := arrayField(out, field)
		if err != nil {
			return nil, err
		}
		merged := make([]any, 0, len(values)+len(arr))
		merged = append(merged, values...)
		out[field] = append(merged, arr...)
	}

	for field, end := range u.Pop {
		if !out.Has(field) {
			continue
		}
		arr, err := arrayField(out, field)
		if err != nil {
			return nil, err
		}
		if len(arr) == 0 {
			continue
		}
		if end < 0 {
			out[field] = arr[1:]
		} else {
			out[field] = arr[:len(arr)-1]
		}
	}

	return out, nil
}

// add sums two numbers the way a document store does: integers stay integers,
// anything involving a float becomes a float
func add(cur any, present bool, delta any) (any, error) {
	if !document.IsNumeric(delta) {
		return nil, ErrNotNumeric
	}
	if !present {
		return normalizeNumber(delta), nil
	}
	if !document.IsNumeric(cur) {
		return nil, ErrNotNumeric
	}

	a, aErr := document.ToInt64(cur)
	b, bErr := document.ToInt64(delta)
	if aErr == nil && bErr == nil && !isFloat(cur) && !isFloat(delta) {
		if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
			return nil, ErrOverflow
		}
		return a + b, nil
	}

	fa, _ := document.ToFloat64(cur)   //nolint:errcheck
	fb, _ := document.ToFloat64(delta) //nolint:errcheck
	return fa + fb, nil
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}

func normalizeNumber(v any) any {
	if isFloat(v) {
		f, _ := document.ToFloat64(v) //nolint:errcheck
		return f
	}
	i, _ := document.ToInt64(v) //nolint:errcheck
	return i
}

// arrayField returns a copy of the array stored in field, an empty array when
// the field is missing, or ErrNotArray
func arrayField(doc document.Document, field string) ([]any, error) {
	v, ok := doc[field]
	if !ok || v == nil {
		return []any{}, nil
	}
	switch t := v.(type) {
	case []any:
		return append([]any(nil), t...), nil
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%q: %w", field, ErrNotArray)
}

func contains(arr []any, v any) bool {
	for _, el := range arr {
		if reflect.DeepEqual(el, v) {
			return true
		}
	}
	return false
}
