// Package database exposes Redis-like logical data types (strings, hashes,
// sets, lists and sorted sets) over a single document collection.
//
// Each key lives in one record, except sorted sets which keep one record per
// member. The logical type of a key is inferred from the fields its record
// carries (see document.TypeOf). Every mutation invalidates the cache entries
// of the keys it touched once the store call returns.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
)

// ErrWrongType is returned when a typed operation meets a key holding another type
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// ObjectCache keeps recently read records in process memory.
// A Get hit with a nil record means the key is known to be absent.
type ObjectCache interface {
	Get(key string) (document.Document, bool)
	Set(key string, doc document.Document)
	Delete(key string)
	DeleteMany(keys []string)
	Reset()
}

// DB is the object database
type DB struct {
	objects docstore.Collection
	cache   ObjectCache
	logger  *zap.Logger
	now     func() time.Time

	// existingOnly keeps expirations from creating missing keys
	existingOnly bool
}

// Option configures a DB
type Option func(*DB)

// WithClock replaces the wall clock used by relative expirations and TTL
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.now = now
	}
}

// New creates a DB storing objects in the collection and caching hash reads in cache
func New(objects docstore.Collection, cache ObjectCache, logger *zap.Logger, opts ...Option) *DB {
	db := &DB{
		objects: objects,
		cache:   cache,
		logger:  logger.Named("database"),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(db)
	}

	return db
}

// FlushDB drops the whole underlying store
func (db *DB) FlushDB(ctx context.Context) error {
	err := db.objects.Drop(ctx)
	db.cache.Reset()
	if err != nil {
		return fmt.Errorf("flushdb: %w", err)
	}

	db.logger.Info("store dropped")
	return nil
}

// EmptyDB removes every object and resets the cache
func (db *DB) EmptyDB(ctx context.Context) error {
	err := db.objects.Clear(ctx)
	db.cache.Reset()
	if err != nil {
		return fmt.Errorf("emptydb: %w", err)
	}

	db.logger.Info("objects collection cleared")
	return nil
}

// findOne returns the first record of key, nil when the key is absent
func (db *DB) findOne(ctx context.Context, key string) (document.Document, error) {
	doc, err := db.objects.FindOne(ctx, docstore.ByKey(key))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// findValue decodes the record of key as T, the zero T when the key is absent
func findValue[T document.Value](ctx context.Context, db *DB, key string) (T, error) {
	doc, err := db.findOne(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeAs[T](doc)
}

// decodeAs decodes the records of one key into the variant T.
// No records give the zero T; another variant is ErrWrongType.
func decodeAs[T document.Value](docs ...document.Document) (T, error) {
	var zero T
	v, err := document.Decode(docs)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, ErrWrongType
	}
	return t, nil
}

// cached reads the record of key through the cache, filling it on a miss
func (db *DB) cached(ctx context.Context, key string) (document.Document, error) {
	if doc, ok := db.cache.Get(key); ok {
		return doc, nil
	}

	doc, err := db.findOne(ctx, key)
	if err != nil {
		return nil, err
	}

	db.cache.Set(key, doc)
	return doc, nil
}

// updateOne applies u to the record of key and invalidates the key.
// The key is invalidated even on error: a failed call may still have been applied.
func (db *DB) updateOne(ctx context.Context, key string, u docstore.Update, upsert bool) error {
	err := db.objects.UpdateOne(ctx, docstore.ByKey(key), u, upsert)
	db.cache.Delete(key)
	return err
}

func (db *DB) findOneAndUpdate(ctx context.Context, f docstore.Filter, u docstore.Update, upsert bool) (document.Document, error) {
	doc, err := db.objects.FindOneAndUpdate(ctx, f, u, upsert)
	db.cache.Delete(f.Keys[0])
	return doc, err
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
