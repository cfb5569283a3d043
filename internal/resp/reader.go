package resp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	// MaxBulkLength caps a single bulk string, as Redis does
	MaxBulkLength = 512 << 20
	// MaxArrayLength caps the number of elements of one array
	MaxArrayLength = 1 << 20
	// readBufferSize also caps an inline command line
	readBufferSize = 64 << 10
)

var (
	ErrInvalidEnding = errors.New("invalid line ending")
	ErrInvalidLength = errors.New("invalid length")
	ErrUnknownType   = errors.New("unknown type byte")
	ErrInlineTooLong = errors.New("inline command too long")
)

// Decoder reads RESP values from a stream. Lines not starting with a type
// byte are parsed as inline commands, as typed into telnet.
type Decoder struct {
	rd *bufio.Reader
}

func NewDecoder(rd io.Reader) *Decoder {
	return &Decoder{rd: bufio.NewReaderSize(rd, readBufferSize)}
}

// Buffered returns the number of bytes that can be read from the current buffer
func (d *Decoder) Buffered() int {
	return d.rd.Buffered()
}

// Read decodes the next value
func (d *Decoder) Read() (Value, error) {
	typ, err := d.rd.ReadByte()
	if err != nil {
		return Value{}, err
	}

	switch typ {
	case TypeSimpleString, TypeError:
		line, err := d.readLine()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: typ, String: line}, nil

	case TypeInteger:
		n, err := d.readInteger()
		if err != nil {
			return Value{}, err
		}
		return MakeInteger(n), nil

	case TypeBulkString:
		return d.readBulkString()

	case TypeArray:
		return d.readArray()
	}

	if err := d.rd.UnreadByte(); err != nil {
		return Value{}, err
	}
	return d.readInline()
}

// readLine reads up to CRLF and returns the line without it
func (d *Decoder) readLine() ([]byte, error) {
	line, err := d.rd.ReadBytes('\n')
	if err != nil {
		return nil, err
	}

	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, ErrInvalidEnding
	}

	return line[:len(line)-2], nil
}

func (d *Decoder) readInteger() (int64, error) {
	line, err := d.readLine()
	if err != nil {
		return 0, err
	}

	// Command with integer cant be empty
	if len(line) == 0 {
		return 0, ErrInvalidLength
	}

	return strconv.ParseInt(string(line), 10, 64)
}

func (d *Decoder) readBulkString() (Value, error) {
	n, err := d.readInteger()
	if err != nil {
		return Value{}, err
	}

	if n == -1 {
		return MakeNilBulkString(), nil
	}
	if n < 0 || n > MaxBulkLength {
		return Value{}, fmt.Errorf("bulk string of %d bytes: %w", n, ErrInvalidLength)
	}

	buf, err := d.readExactly(int(n) + 2)
	if err != nil {
		return Value{}, err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return Value{}, ErrInvalidEnding
	}

	return Value{Type: TypeBulkString, String: buf[:n]}, nil
}

func (d *Decoder) readArray() (Value, error) {
	n, err := d.readInteger()
	if err != nil {
		return Value{}, err
	}

	if n == -1 {
		return Value{Type: TypeArray, IsNull: true}, nil
	}
	if n < 0 || n > MaxArrayLength {
		return Value{}, fmt.Errorf("array of %d elements: %w", n, ErrInvalidLength)
	}

	// the declared length is untrusted, so the slice grows as elements arrive
	values := make([]Value, 0, min(n, 1024))
	for range n {
		v, err := d.Read()
		if err != nil {
			return Value{}, err
		}
		values = append(values, v)
	}

	return MakeArray(values), nil
}

// readExactly reads n bytes. Large payloads are buffered as they arrive
// instead of being allocated up front.
func (d *Decoder) readExactly(n int) ([]byte, error) {
	if n <= readBufferSize {
		buf := make([]byte, n)
		if _, err := io.ReadFull(d.rd, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, d.rd, int64(n)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// readInline parses a space separated command line. A bare LF ending is accepted.
func (d *Decoder) readInline() (Value, error) {
	line, err := d.rd.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return Value{}, ErrInlineTooLong
	}
	if err != nil {
		return Value{}, err
	}

	fields := bytes.Fields(line)
	values := make([]Value, len(fields))
	for i, f := range fields {
		values[i] = Value{Type: TypeBulkString, String: bytes.Clone(f)}
	}

	return MakeArray(values), nil
}
