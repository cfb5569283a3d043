package document

import (
	"strings"
	"time"
)

// Reserved field names of a stored record
const (
	FieldKey      = "_key"
	FieldID       = "_id"
	FieldExpireAt = "expireAt"

	FieldData    = "data"
	FieldMembers = "members"
	FieldArray   = "array"
	FieldValue   = "value"
	FieldScore   = "score"

	// FieldLegacyData is where scalar payloads lived before they moved to "data"
	FieldLegacyData = FieldValue
)

// MaxExpireMillis is the latest representable expiration, in Unix milliseconds (year 275760)
const MaxExpireMillis int64 = 8_640_000_000_000_000

// Document is one physical record of the objects collection
type Document map[string]any

// Key returns the object key the record belongs to
func (d Document) Key() string {
	k, _ := d[FieldKey].(string)
	return k
}

// Has reports whether the field is present, regardless of its value
func (d Document) Has(field string) bool {
	_, ok := d[field]
	return ok
}

// ExpireAt returns the absolute expiration of the record, if any
func (d Document) ExpireAt() (time.Time, bool) {
	t, ok := d[FieldExpireAt].(time.Time)
	return t, ok
}

// Clone returns a deep copy, so cached or returned records never alias store state
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies the slices and maps inside a stored value
func CloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		c := make([]any, len(t))
		for i, el := range t {
			c[i] = CloneValue(el)
		}
		return c
	case []string:
		c := make([]string, len(t))
		copy(c, t)
		return c
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, el := range t {
			c[k] = CloneValue(el)
		}
		return c
	case Document:
		return t.Clone()
	default:
		return v
	}
}

// EscapeField makes a hash field name safe for storage: dots are not allowed in
// stored field names and are replaced by a full-width dot
func EscapeField(field string) string {
	return strings.ReplaceAll(field, ".", "．")
}

// UnescapeField reverses EscapeField
func UnescapeField(field string) string {
	return strings.ReplaceAll(field, "．", ".")
}
