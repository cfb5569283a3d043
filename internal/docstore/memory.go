package docstore

import (
	"context"
	"errors"
	"hash/fnv"
	"math/bits"
	"sort"
	"sync"
	"time"

	"github.com/eternalApril/objectdb/internal/document"
)

// memoryShard holds the records of the keys hashed to it
type memoryShard struct {
	records map[string][]document.Document // key - records in insertion order
	expires map[string]struct{}            // keys with at least one record carrying expireAt
	mu      sync.RWMutex
}

func newMemoryShard() *memoryShard {
	return &memoryShard{
		records: make(map[string][]document.Document),
		expires: make(map[string]struct{}),
	}
}

// Memory is a thread-safe in-memory collection,
// divided into segments (shards) to reduce contention for locking
type Memory struct {
	shards    []*memoryShard
	shardMask uint32
	now       func() time.Time
}

// NewMemory creates an empty in-memory collection.
// The requestedShards parameter must be a power of two for efficient allocation.
// The maximum allowed number of shards is 64.
func NewMemory(requestedShards uint) (*Memory, error) {
	if bits.OnesCount(requestedShards) != 1 {
		return nil, errors.New("requested shards must be a power of 2")
	}

	if requestedShards > 64 {
		return nil, errors.New("requested shards must be less or equal than 64")
	}

	m := &Memory{
		shards:    make([]*memoryShard, requestedShards),
		shardMask: uint32(requestedShards - 1),
		now:       time.Now,
	}

	for i := range m.shards {
		m.shards[i] = newMemoryShard()
	}

	return m, nil
}

// getShardIndex returns index of shard by key
func (m *Memory) getShardIndex(key string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(key)) //nolint:errcheck

	return hash.Sum32() & m.shardMask
}

func (m *Memory) shard(key string) *memoryShard {
	return m.shards[m.getShardIndex(key)]
}

// FindOne returns the first record matching f
func (m *Memory) FindOne(ctx context.Context, f Filter) (document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, key := range f.Keys {
		s := m.shard(key)
		s.mu.RLock()
		for _, rec := range s.records[key] {
			if f.matches(rec) {
				doc := rec.Clone()
				s.mu.RUnlock()
				return doc, nil
			}
		}
		s.mu.RUnlock()
	}

	return nil, ErrNotFound
}

// Find returns every record matching f
func (m *Memory) Find(ctx context.Context, f Filter, opts FindOptions) ([]document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []document.Document
	for _, key := range distinct(f.Keys) {
		s := m.shard(key)
		s.mu.RLock()
		for _, rec := range s.records[key] {
			if f.matches(rec) {
				out = append(out, rec.Clone())
			}
		}
		s.mu.RUnlock()
	}

	sortByScore(out, opts.Sort)

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(out)) {
			return nil, nil
		}
		out = out[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < int64(len(out)) {
		out = out[:opts.Limit]
	}

	return out, nil
}

// UpdateOne applies u to the first record matching f
func (m *Memory) UpdateOne(ctx context.Context, f Filter, u Update, upsert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.IsEmpty() {
		return nil
	}

	_, err := m.modifyOne(f, u, upsert)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// FindOneAndUpdate applies u to the first record matching f and returns the result
func (m *Memory) FindOneAndUpdate(ctx context.Context, f Filter, u Update, upsert bool) (document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return m.modifyOne(f, u, upsert)
}

// modifyOne finds and updates a single record. An upsert runs under one shard
// lock, so concurrent upserts of the same key never create two records.
func (m *Memory) modifyOne(f Filter, u Update, upsert bool) (document.Document, error) {
	if upsert && (len(f.Keys) != 1 || len(f.Values) > 1) {
		return nil, ErrBadFilter
	}

	for _, key := range f.Keys {
		s := m.shard(key)
		s.mu.Lock()

		idx := s.find(key, f)
		if idx < 0 && !upsert {
			s.mu.Unlock()
			continue
		}

		base := newRecord(f)
		if idx >= 0 {
			base = s.records[key][idx]
		}

		updated, err := apply(base, u)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}

		moved := updated.Key() != key
		switch {
		case idx >= 0 && moved:
			s.removeAt(key, idx)
		case idx >= 0:
			s.records[key][idx] = updated
			s.index(key)
		case !moved:
			s.insert(updated)
		}
		s.mu.Unlock()

		if moved {
			m.insert(updated)
		}
		return updated.Clone(), nil
	}

	return nil, ErrNotFound
}

// UpdateMany applies u to every record matching f. Records whose key changes
// are moved to their new shard after the source shard is released.
func (m *Memory) UpdateMany(ctx context.Context, f Filter, u Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.IsEmpty() {
		return nil
	}

	var (
		moved    []document.Document
		firstErr error
	)

	for _, key := range distinct(f.Keys) {
		s := m.shard(key)
		s.mu.Lock()

		recs := s.records[key]
		kept := make([]document.Document, 0, len(recs))
		for _, rec := range recs {
			if firstErr != nil || !f.matches(rec) {
				kept = append(kept, rec)
				continue
			}

			updated, err := apply(rec, u)
			if err != nil {
				firstErr = err
				kept = append(kept, rec)
				continue
			}

			if updated.Key() == key {
				kept = append(kept, updated)
			} else {
				moved = append(moved, updated)
			}
		}
		s.set(key, kept)

		s.mu.Unlock()
	}

	for _, doc := range moved {
		m.insert(doc)
	}

	return firstErr
}

// DeleteMany removes every record matching f
func (m *Memory) DeleteMany(ctx context.Context, f Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, key := range distinct(f.Keys) {
		s := m.shard(key)
		s.mu.Lock()
		if len(f.Values) == 0 && f.EmptyArray == "" {
			s.set(key, nil)
		} else {
			kept := make([]document.Document, 0, len(s.records[key]))
			for _, rec := range s.records[key] {
				if !f.matches(rec) {
					kept = append(kept, rec)
				}
			}
			s.set(key, kept)
		}
		s.mu.Unlock()
	}

	return nil
}

// Clear removes every record
func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, s := range m.shards {
		s.mu.Lock()
		s.records = make(map[string][]document.Document)
		s.expires = make(map[string]struct{})
		s.mu.Unlock()
	}
	return nil
}

// Drop removes every record; an in-memory collection is its own store
func (m *Memory) Drop(ctx context.Context) error {
	return m.Clear(ctx)
}

// Len returns the number of stored records
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		for _, recs := range s.records {
			n += len(recs)
		}
		s.mu.RUnlock()
	}
	return n
}

// DeleteExpired samples up to limit expiring keys from each shard in parallel,
// deletes the records whose expireAt has passed and returns the average ratio
// of expired to sampled keys
func (m *Memory) DeleteExpired(limit int) float64 {
	var wg sync.WaitGroup
	var totalRatio float64
	var mu sync.Mutex // protects totalRatio

	now := m.now()
	wg.Add(len(m.shards))

	for _, shard := range m.shards {
		go func(s *memoryShard) {
			defer wg.Done()
			ratio := s.deleteExpired(limit, now)

			mu.Lock()
			totalRatio += ratio
			mu.Unlock()
		}(shard)
	}

	wg.Wait()

	return totalRatio / float64(len(m.shards))
}

func (m *Memory) insert(doc document.Document) {
	s := m.shard(doc.Key())
	s.mu.Lock()
	s.insert(doc)
	s.mu.Unlock()
}

func (s *memoryShard) deleteExpired(limit int, now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.expires) == 0 {
		return 0.0
	}

	checked := 0
	expired := 0

	// go map iteration is randomized, which makes this a random sample
	for key := range s.expires {
		checked++

		recs := s.records[key]
		kept := make([]document.Document, 0, len(recs))
		for _, rec := range recs {
			if at, ok := rec.ExpireAt(); ok && !now.Before(at) {
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) != len(recs) {
			expired++
			s.set(key, kept)
		}

		if checked >= limit {
			break
		}
	}

	return float64(expired) / float64(checked)
}

// find returns the index of the first record of key matching f, or -1.
// Must be called with the lock held.
func (s *memoryShard) find(key string, f Filter) int {
	for i, rec := range s.records[key] {
		if f.matches(rec) {
			return i
		}
	}
	return -1
}

// set replaces the records of key. Must be called with the lock held.
func (s *memoryShard) set(key string, recs []document.Document) {
	if len(recs) == 0 {
		delete(s.records, key)
	} else {
		s.records[key] = recs
	}
	s.index(key)
}

func (s *memoryShard) insert(doc document.Document) {
	key := doc.Key()
	s.records[key] = append(s.records[key], doc)
	s.index(key)
}

func (s *memoryShard) removeAt(key string, idx int) {
	recs := s.records[key]
	kept := make([]document.Document, 0, len(recs)-1)
	kept = append(kept, recs[:idx]...)
	kept = append(kept, recs[idx+1:]...)
	s.set(key, kept)
}

// index keeps the expiring key set in sync with the records of key
func (s *memoryShard) index(key string) {
	for _, rec := range s.records[key] {
		if rec.Has(document.FieldExpireAt) {
			s.expires[key] = struct{}{}
			return
		}
	}
	delete(s.expires, key)
}

func (f Filter) matches(doc document.Document) bool {
	if f.EmptyArray != "" && !isEmptyArray(doc[f.EmptyArray]) {
		return false
	}
	if len(f.Values) == 0 {
		return true
	}
	if !doc.Has(document.FieldValue) {
		return false
	}
	v := document.ToString(doc[document.FieldValue])
	for _, want := range f.Values {
		if v == want {
			return true
		}
	}
	return false
}

func isEmptyArray(v any) bool {
	switch t := v.(type) {
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func newRecord(f Filter) document.Document {
	doc := document.Document{document.FieldKey: f.Keys[0]}
	if len(f.Values) == 1 {
		doc[document.FieldValue] = f.Values[0]
	}
	return doc
}

func distinct(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func sortByScore(docs []document.Document, order SortOrder) {
	if order == Unsorted {
		return
	}

	score := func(d document.Document) float64 {
		f, _ := document.ToFloat64(d[document.FieldScore]) //nolint:errcheck
		return f
	}
	value := func(d document.Document) string {
		return document.ToString(d[document.FieldValue])
	}

	sort.SliceStable(docs, func(i, j int) bool {
		si, sj := score(docs[i]), score(docs[j])
		if si == sj {
			if order == ScoreDesc {
				return value(docs[i]) > value(docs[j])
			}
			return value(docs[i]) < value(docs[j])
		}
		if order == ScoreDesc {
			return si > sj
		}
		return si < sj
	})
}
