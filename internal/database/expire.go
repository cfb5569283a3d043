package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
)

const (
	// TTLMissing is reported by TTL and PTTL for a key that does not exist
	TTLMissing int64 = -2
	// TTLPersistent is reported by TTL and PTTL for a key without expiration
	TTLPersistent int64 = -1
)

// Expire makes key expire seconds from now
func (db *DB) Expire(ctx context.Context, key string, seconds int64) error {
	nowSeconds := (db.now().UnixMilli() + 500) / 1000
	return db.ExpireAt(ctx, key, addSaturating(nowSeconds, seconds))
}

// PExpire makes key expire ms milliseconds from now
func (db *DB) PExpire(ctx context.Context, key string, ms int64) error {
	return db.PExpireAt(ctx, key, addSaturating(db.now().UnixMilli(), ms))
}

// ExpireAt makes key expire at the given Unix time in seconds
func (db *DB) ExpireAt(ctx context.Context, key string, unixSeconds int64) error {
	const maxSeconds = document.MaxExpireMillis / 1000
	unixSeconds = max(min(unixSeconds, maxSeconds), -maxSeconds)
	return db.setExpireAt(ctx, key, time.Unix(unixSeconds, 0).UTC())
}

// PExpireAt makes key expire at the given Unix time in milliseconds.
// Instants past year 275760 are clamped to it.
func (db *DB) PExpireAt(ctx context.Context, key string, unixMillis int64) error {
	unixMillis = max(min(unixMillis, document.MaxExpireMillis), -document.MaxExpireMillis)
	return db.setExpireAt(ctx, key, time.UnixMilli(unixMillis).UTC())
}

// ExistingOnly returns a view of db whose expirations only touch keys that
// still exist when the write lands. A key deleted concurrently stays deleted.
func (db *DB) ExistingOnly() *DB {
	view := *db
	view.existingOnly = true
	return &view
}

// setExpireAt is the single primitive behind every expiration: a field-level
// write of expireAt, the same write SetObjectField does. It upserts unless db
// is an ExistingOnly view.
func (db *DB) setExpireAt(ctx context.Context, key string, at time.Time) error {
	if key == "" {
		return nil
	}

	err := db.updateOne(ctx, key, docstore.Update{
		Set: map[string]any{document.FieldExpireAt: at},
	}, !db.existingOnly)
	if err != nil {
		return fmt.Errorf("expire %q: %w", key, err)
	}
	return nil
}

// TTL returns the seconds left before key expires, TTLMissing or TTLPersistent
func (db *DB) TTL(ctx context.Context, key string) (int64, error) {
	ms, err := db.PTTL(ctx, key)
	if err != nil || ms < 0 {
		return ms, err
	}
	return (ms + 500) / 1000, nil
}

// PTTL returns the milliseconds left before key expires, TTLMissing or TTLPersistent.
// A key past its expiration that has not been swept yet reports TTLMissing.
func (db *DB) PTTL(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return TTLMissing, nil
	}

	doc, err := db.findOne(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("ttl %q: %w", key, err)
	}
	if doc == nil {
		return TTLMissing, nil
	}

	at, ok := doc.ExpireAt()
	if !ok {
		return TTLPersistent, nil
	}

	left := at.Sub(db.now()).Milliseconds()
	if left < 0 {
		return TTLMissing, nil
	}
	return left, nil
}

// Persist removes the expiration of key and reports whether there was one
func (db *DB) Persist(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	doc, err := db.findOne(ctx, key)
	if err != nil {
		return false, fmt.Errorf("persist %q: %w", key, err)
	}
	if !doc.Has(document.FieldExpireAt) {
		return false, nil
	}

	err = db.objects.UpdateMany(ctx, docstore.ByKey(key), docstore.Update{
		Unset: []string{document.FieldExpireAt},
	})
	db.cache.Delete(key)
	if err != nil {
		return false, fmt.Errorf("persist %q: %w", key, err)
	}
	return true, nil
}

// addSaturating adds b to a, sticking to the int64 bounds instead of wrapping
func addSaturating(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}
