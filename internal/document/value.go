package document

import (
	"fmt"
	"sort"
)

// Value is the logical content of a key, decoded from its records
type Value interface {
	Type() DataType
}

// Scalar is a plain value
type Scalar struct {
	Data any
}

// Hash maps field names to values
type Hash map[string]any

// Set is an unordered collection of unique members
type Set []string

// List is an ordered sequence of elements
type List []string

// Member is a single sorted set entry
type Member struct {
	Value string
	Score float64
}

// SortedSet holds members ordered by ascending score
type SortedSet []Member

func (Scalar) Type() DataType    { return TypeString }
func (Hash) Type() DataType      { return TypeHash }
func (Set) Type() DataType       { return TypeSet }
func (List) Type() DataType      { return TypeList }
func (SortedSet) Type() DataType { return TypeZSet }

// Decode turns the records stored under one key into its logical value.
// No records (or a nil first record) decode to nil. Sorted sets span many
// records; every other type lives in the first record.
func Decode(docs []Document) (Value, error) {
	if len(docs) == 0 || docs[0] == nil {
		return nil, nil
	}

	first := docs[0]
	switch TypeOf(first) {
	case TypeZSet:
		return decodeSortedSet(docs)
	case TypeSet:
		return Set(Strings(first[FieldMembers])), nil
	case TypeList:
		return List(Strings(first[FieldArray])), nil
	case TypeString:
		return Scalar{Data: first[FieldData]}, nil
	default:
		return DecodeHash(first), nil
	}
}

// DecodeHash returns the user fields of a record with their original names
func DecodeHash(doc Document) Hash {
	if doc == nil {
		return nil
	}
	h := make(Hash, len(doc))
	for field, v := range doc {
		switch field {
		case FieldKey, FieldID, FieldExpireAt:
			continue
		}
		h[UnescapeField(field)] = CloneValue(v)
	}
	return h
}

func decodeSortedSet(docs []Document) (SortedSet, error) {
	out := make(SortedSet, 0, len(docs))
	for _, doc := range docs {
		if TypeOf(doc) != TypeZSet {
			continue
		}
		m, err := DecodeMember(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

// DecodeMember reads a single sorted set record
func DecodeMember(doc Document) (Member, error) {
	score, err := ToFloat64(doc[FieldScore])
	if err != nil {
		return Member{}, fmt.Errorf("sorted set %q: score of %v: %w", doc.Key(), doc[FieldValue], err)
	}
	return Member{Value: ToString(doc[FieldValue]), Score: score}, nil
}

// Strings converts a stored array field into its string elements
func Strings(v any) []string {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, len(t))
		for i, el := range t {
			out[i] = ToString(el)
		}
		return out
	}
	return nil
}
