// Package persistence saves the memory backend to disk
package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eternalApril/objectdb/internal/docstore"
)

// snapshotMagic opens every snapshot file; the BSON record stream follows
const snapshotMagic = "OBJSNAP1"

var (
	ErrBadHeader      = errors.New("snapshot: invalid header")
	ErrSaveInProgress = errors.New("snapshot: background save already in progress")
)

// Snapshots saves and loads a collection to a single file.
// Saves are serialized; a save never leaves a partially written file behind.
type Snapshots struct {
	filename string
	logger   *zap.Logger

	mu         sync.Mutex
	background atomic.Bool
	lastSave   atomic.Int64 // unix seconds of the last successful save
}

func NewSnapshots(filename string, logger *zap.Logger) *Snapshots {
	return &Snapshots{
		filename: filename,
		logger:   logger.Named("snapshot"),
	}
}

// Save performs an atomic save operation: write a temp file, sync, rename
func (s *Snapshots) Save(src docstore.Snapshotter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	tmpFile := s.filename + ".tmp"

	f, err := os.Create(tmpFile)
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile) //nolint:errcheck
	defer f.Close()          //nolint:errcheck

	writer := bufio.NewWriterSize(f, 4*1024*1024)

	if _, err := writer.WriteString(snapshotMagic); err != nil {
		return err
	}

	if err := src.Snapshot(writer); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpFile, s.filename); err != nil {
		return err
	}

	s.lastSave.Store(time.Now().Unix())
	s.logger.Info("snapshot saved",
		zap.String("file", s.filename),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// SaveInBackground starts a save unless one started this way is still running.
// The outcome is logged.
func (s *Snapshots) SaveInBackground(src docstore.Snapshotter) error {
	if !s.background.CompareAndSwap(false, true) {
		return ErrSaveInProgress
	}

	go func() {
		defer s.background.Store(false)
		if err := s.Save(src); err != nil {
			s.logger.Error("background save failed", zap.Error(err))
		}
	}()
	return nil
}

// InProgress reports whether a background save is running
func (s *Snapshots) InProgress() bool {
	return s.background.Load()
}

// LastSave returns when the last successful save finished, zero if none
func (s *Snapshots) LastSave() time.Time {
	if ts := s.lastSave.Load(); ts != 0 {
		return time.Unix(ts, 0)
	}
	return time.Time{}
}

// Load restores the snapshot file into dst. A missing file is a fresh start.
func (s *Snapshots) Load(dst docstore.Snapshotter) error {
	f, err := os.Open(s.filename)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no snapshot found, starting empty", zap.String("file", s.filename))
			return nil
		}
		return err
	}
	defer f.Close() //nolint:errcheck

	reader := bufio.NewReader(f)

	header := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(reader, header); err != nil {
		return fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	if string(header) != snapshotMagic {
		return fmt.Errorf("%w: %q", ErrBadHeader, header)
	}

	start := time.Now()
	if err := dst.Restore(reader); err != nil {
		return fmt.Errorf("restore %s: %w", s.filename, err)
	}

	s.logger.Info("snapshot loaded",
		zap.String("file", s.filename),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
