// Package resp implements the Redis serialization protocol (RESP2)
package resp

const (
	TypeSimpleString = '+'
	TypeError        = '-'
	TypeInteger      = ':'
	TypeBulkString   = '$'
	TypeArray        = '*'
)

type Value struct {
	String  []byte // SimpleString, Error, BulkString
	Array   []Value
	Integer int64
	Type    byte
	IsNull  bool // For nil BulkString and nil Array
}

// Text returns the payload of a string-like value
func (v Value) Text() string {
	return string(v.String)
}
