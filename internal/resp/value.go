package resp

import "fmt"

// MakeSimpleString construct SimpleString Value from string
func MakeSimpleString(s string) Value {
	return Value{
		Type:   TypeSimpleString,
		String: []byte(s),
	}
}

// MakeOK is the +OK reply
func MakeOK() Value {
	return MakeSimpleString("OK")
}

// MakeError construct Error Value from string
func MakeError(s string) Value {
	return Value{
		Type:   TypeError,
		String: []byte(s),
	}
}

// MakeErrorWrongNumberOfArguments construct Error Value that command had wrong number of arguments for command
func MakeErrorWrongNumberOfArguments(cmd string) Value {
	return MakeError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", cmd))
}

// MakeBulkString construct BulkString Value from string
func MakeBulkString(s string) Value {
	return Value{
		Type:   TypeBulkString,
		String: []byte(s),
	}
}

// MakeNilBulkString construct nil BulkSting Value
func MakeNilBulkString() Value {
	return Value{
		Type:   TypeBulkString,
		IsNull: true,
	}
}

// MakeInteger construct Integer Value from int64
func MakeInteger(n int64) Value {
	return Value{
		Type:    TypeInteger,
		Integer: n,
	}
}

// MakeBool replies 1 or 0
func MakeBool(b bool) Value {
	if b {
		return MakeInteger(1)
	}
	return MakeInteger(0)
}

// MakeArray creates a standard RESP array containing the provided elements
func MakeArray(values []Value) Value {
	return Value{
		Type:  TypeArray,
		Array: values,
	}
}

// MakeBulkArray creates an array of bulk strings
func MakeBulkArray(items []string) Value {
	values := make([]Value, len(items))
	for i, s := range items {
		values[i] = MakeBulkString(s)
	}
	return MakeArray(values)
}

// MakeCommand builds the array a client sends for a command
func MakeCommand(name string, args ...string) Value {
	return MakeBulkArray(append([]string{name}, args...))
}
