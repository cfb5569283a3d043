package docstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
)

// maxRecordSize bounds a single encoded record, matching the BSON document limit
const maxRecordSize = 16 * 1024 * 1024

// Snapshot writes every record as a BSON document. Shards are visited one at a
// time, so the snapshot is consistent per shard.
func (m *Memory) Snapshot(w io.Writer) error {
	for _, s := range m.shards {
		if err := s.snapshot(w); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryShard) snapshot(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, recs := range s.records {
		for _, rec := range recs {
			raw, err := bson.Marshal(map[string]any(rec))
			if err != nil {
				return fmt.Errorf("encode record %q: %w", rec.Key(), err)
			}
			if _, err := w.Write(raw); err != nil {
				return err
			}
		}
	}
	return nil
}

// Restore reads a stream written by Snapshot and adds its records
func (m *Memory) Restore(r io.Reader) error {
	header := make([]byte, 4)

	for {
		_, err := io.ReadFull(r, header)
		if err == io.EOF {
			return nil // end of stream
		}
		if err != nil {
			return err
		}

		size := binary.LittleEndian.Uint32(header)
		if size < 5 || size > maxRecordSize {
			return fmt.Errorf("invalid record size %d", size)
		}

		raw := make([]byte, size)
		copy(raw, header)
		if _, err := io.ReadFull(r, raw[4:]); err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}

		var decoded bson.M
		if err := bson.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		m.insert(fromBSON(decoded))
	}
}
