package server

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eternalApril/objectdb/internal/resp"
)

// Peer represents a connected client.
// It wraps a network connection and provides synchronized methods for reading and writing RESP-encoded data
type Peer struct {
	id     string
	conn   net.Conn
	reader *resp.Decoder
	writer *resp.Encoder
	mu     sync.Mutex
}

// NewPeer initializes a new client peer from a network connection
func NewPeer(conn net.Conn) *Peer {
	return &Peer{
		id:     uuid.NewString(),
		conn:   conn,
		reader: resp.NewDecoder(conn),
		writer: resp.NewEncoder(conn),
	}
}

// ID identifies the connection in logs
func (p *Peer) ID() string {
	return p.id
}

// RemoteAddr returns the client address
func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// Send encodes a RESP value into the output buffer.
// This method is thread-safe and can be called from multiple goroutines
func (p *Peer) Send(v resp.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Write(v)
}

// ReadCommand reads and decodes the next RESP value from the client's input stream
func (p *Peer) ReadCommand() (resp.Value, error) {
	return p.reader.Read()
}

// Close terminates the underlying network connection
func (p *Peer) Close() error {
	return p.conn.Close()
}

// Flush sends all buffered data to the client
func (p *Peer) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Flush()
}

// InputBuffered returns the number of bytes that can be read from the current buffer
func (p *Peer) InputBuffered() int {
	return p.reader.Buffered()
}

// interruptRead makes a pending ReadCommand return, so an idle client can be let go
func (p *Peer) interruptRead() {
	p.conn.SetReadDeadline(time.Now()) //nolint:errcheck
}
