package document

// DataType is the logical type a key holds
type DataType byte

const (
	// TypeNone means no record exists for the key
	TypeNone DataType = iota
	TypeString
	TypeList
	TypeSet
	TypeHash
	TypeZSet
)

// String returns the type name as the TYPE command reports it
func (t DataType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeSet:
		return "set"
	case TypeHash:
		return "hash"
	case TypeZSet:
		return "zset"
	default:
		return "none"
	}
}

// TypeOf infers the logical type of a record from its field set.
// _key, _id and expireAt never take part in the decision. Shapes are checked
// in fixed priority: zset, set, list, string; anything else is a hash.
// A nil record has TypeNone.
func TypeOf(doc Document) DataType {
	if doc == nil {
		return TypeNone
	}

	n := 0
	for field := range doc {
		switch field {
		case FieldKey, FieldID, FieldExpireAt:
		default:
			n++
		}
	}

	switch {
	case n == 2 && doc.Has(FieldValue) && doc.Has(FieldScore):
		return TypeZSet
	case n == 1 && doc.Has(FieldMembers):
		return TypeSet
	case n == 1 && doc.Has(FieldArray):
		return TypeList
	case n == 1 && doc.Has(FieldData):
		return TypeString
	}
	return TypeHash
}
