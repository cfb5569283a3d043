package resp

import (
	"bufio"
	"io"
	"strconv"
)

// Encoder handles the serialization of RESP Value objects into an output stream.
// Writes are buffered until Flush.
type Encoder struct {
	writer *bufio.Writer
}

// NewEncoder initializes an Encoder with a buffered writer
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		writer: bufio.NewWriter(w)}
}

// Write serializes a RESP Value into the buffer
func (e *Encoder) Write(v Value) error {
	switch v.Type {
	case TypeInteger:
		return e.writeHeader(TypeInteger, v.Integer)

	case TypeSimpleString, TypeError:
		return e.writeRaw(v.Type, v.String)

	case TypeBulkString:
		if v.IsNull {
			_, err := e.writer.WriteString("$-1\r\n")
			return err
		}
		if err := e.writeHeader(TypeBulkString, int64(len(v.String))); err != nil {
			return err
		}
		if _, err := e.writer.Write(v.String); err != nil {
			return err
		}
		_, err := e.writer.WriteString("\r\n")
		return err

	case TypeArray:
		if v.IsNull {
			_, err := e.writer.WriteString("*-1\r\n")
			return err
		}
		if err := e.writeHeader(TypeArray, int64(len(v.Array))); err != nil {
			return err
		}
		for _, el := range v.Array {
			if err := e.Write(el); err != nil {
				return err
			}
		}
		return nil
	}

	return ErrUnknownType
}

// Flush sends buffered replies to the underlying stream
func (e *Encoder) Flush() error {
	return e.writer.Flush()
}

// writeHeader writes the type prefix, numeric value, and CRLF
func (e *Encoder) writeHeader(prefix byte, n int64) error {
	if err := e.writer.WriteByte(prefix); err != nil {
		return err
	}
	if _, err := e.writer.Write(strconv.AppendInt(e.writer.AvailableBuffer(), n, 10)); err != nil {
		return err
	}
	_, err := e.writer.WriteString("\r\n")
	return err
}

// writeRaw writes the type prefix, raw bytes, and CRLF (for SimpleString and Error)
func (e *Encoder) writeRaw(prefix byte, b []byte) error {
	if err := e.writer.WriteByte(prefix); err != nil {
		return err
	}
	if _, err := e.writer.Write(b); err != nil {
		return err
	}
	_, err := e.writer.WriteString("\r\n")
	return err
}
