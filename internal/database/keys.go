package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
)

// Exists reports whether key holds a value
func (db *DB) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	doc, err := db.findOne(ctx, key)
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", key, err)
	}
	return doc != nil, nil
}

// ExistsMany reports, for each key in order, whether it holds a value.
// All keys are looked up in a single request.
func (db *DB) ExistsMany(ctx context.Context, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	docs, err := db.objects.Find(ctx, docstore.ByKeys(keys), docstore.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("exists: %w", err)
	}

	present := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		present[doc.Key()] = struct{}{}
	}

	out := make([]bool, len(keys))
	for i, key := range keys {
		_, out[i] = present[key]
	}
	return out, nil
}

// Delete removes key whatever it holds. Deleting a missing key is not an error.
func (db *DB) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	err := db.objects.DeleteMany(ctx, docstore.ByKey(key))
	db.cache.Delete(key)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// DeleteAll removes every listed key in a single request
func (db *DB) DeleteAll(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	err := db.objects.DeleteMany(ctx, docstore.ByKeys(keys))
	db.cache.DeleteMany(keys)
	if err != nil {
		return fmt.Errorf("delete %d keys: %w", len(keys), err)
	}
	return nil
}

// Rename moves every record of oldKey, expiration included, to newKey.
// Both keys are invalidated even when oldKey does not exist.
func (db *DB) Rename(ctx context.Context, oldKey, newKey string) error {
	if oldKey == "" || newKey == "" {
		return nil
	}

	err := db.objects.UpdateMany(ctx, docstore.ByKey(oldKey), docstore.Update{
		Set: map[string]any{document.FieldKey: newKey},
	})
	db.cache.DeleteMany([]string{oldKey, newKey})
	if err != nil {
		return fmt.Errorf("rename %q to %q: %w", oldKey, newKey, err)
	}

	if db.logger.Core().Enabled(zap.DebugLevel) {
		db.logger.Debug("key renamed", zap.String("from", oldKey), zap.String("to", newKey))
	}
	return nil
}

// Type returns the logical type held by key, read from the store
func (db *DB) Type(ctx context.Context, key string) (document.DataType, error) {
	if key == "" {
		return document.TypeNone, nil
	}

	doc, err := db.findOne(ctx, key)
	if err != nil {
		return document.TypeNone, fmt.Errorf("type %q: %w", key, err)
	}
	return document.TypeOf(doc), nil
}
