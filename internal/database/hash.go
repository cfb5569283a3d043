package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
)

// ErrReservedField is returned when a hash write names a field the store manages itself
var ErrReservedField = errors.New("field name is reserved")

// SetObject merges fields into the hash at key, creating it when missing
func (db *DB) SetObject(ctx context.Context, key string, fields map[string]any) error {
	if key == "" || len(fields) == 0 {
		return nil
	}

	set := make(map[string]any, len(fields))
	for field, v := range fields {
		switch field {
		case "":
			continue
		case document.FieldKey, document.FieldID:
			return fmt.Errorf("hset %q %q: %w", key, field, ErrReservedField)
		}
		set[document.EscapeField(field)] = v
	}
	if len(set) == 0 {
		return nil
	}

	if err := db.updateOne(ctx, key, docstore.Update{Set: set}, true); err != nil {
		return fmt.Errorf("hset %q: %w", key, err)
	}
	return nil
}

// SetObjectField sets a single hash field
func (db *DB) SetObjectField(ctx context.Context, key, field string, value any) error {
	return db.SetObject(ctx, key, map[string]any{field: value})
}

// GetObject returns the hash at key, nil when the key is absent.
// Reads go through the object cache.
func (db *DB) GetObject(ctx context.Context, key string) (document.Hash, error) {
	if key == "" {
		return nil, nil
	}

	doc, err := db.cached(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %q: %w", key, err)
	}
	h, err := decodeAs[document.Hash](doc)
	if err != nil {
		return nil, fmt.Errorf("hgetall %q: %w", key, err)
	}
	return h, nil
}

// GetObjects returns the hashes of keys in order. Absent keys and keys holding
// another type yield nil. Cache misses are fetched in a single request.
func (db *DB) GetObjects(ctx context.Context, keys []string) ([]document.Hash, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	docs := make(map[string]document.Document, len(keys))
	var missing []string
	for _, key := range keys {
		if _, seen := docs[key]; seen {
			continue
		}
		if doc, ok := db.cache.Get(key); ok {
			docs[key] = doc
			continue
		}
		docs[key] = nil
		missing = append(missing, key)
	}

	if len(missing) > 0 {
		found, err := db.objects.Find(ctx, docstore.ByKeys(missing), docstore.FindOptions{})
		if err != nil {
			return nil, fmt.Errorf("hgetall %d keys: %w", len(missing), err)
		}
		for _, doc := range found {
			if docs[doc.Key()] == nil {
				docs[doc.Key()] = doc
			}
		}
		for _, key := range missing {
			db.cache.Set(key, docs[key])
		}
	}

	out := make([]document.Hash, len(keys))
	for i, key := range keys {
		if h, err := decodeAs[document.Hash](docs[key]); err == nil {
			out[i] = h
		}
	}
	return out, nil
}

// GetObjectField returns one hash field, nil when the key or the field is absent
func (db *DB) GetObjectField(ctx context.Context, key, field string) (any, error) {
	h, err := db.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	return h[field], nil
}

// IsObjectField reports whether the hash at key has field
func (db *DB) IsObjectField(ctx context.Context, key, field string) (bool, error) {
	h, err := db.GetObject(ctx, key)
	if err != nil {
		return false, err
	}
	_, ok := h[field]
	return ok, nil
}

// DeleteObjectFields removes fields from the hash at key and returns how many existed
func (db *DB) DeleteObjectFields(ctx context.Context, key string, fields ...string) (int64, error) {
	if key == "" || len(fields) == 0 {
		return 0, nil
	}

	h, err := findValue[document.Hash](ctx, db, key)
	if err != nil {
		return 0, fmt.Errorf("hdel %q: %w", key, err)
	}

	var unset []string
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if _, ok := h[field]; !ok {
			continue
		}
		escaped := document.EscapeField(field)
		if _, dup := seen[escaped]; dup {
			continue
		}
		seen[escaped] = struct{}{}
		unset = append(unset, escaped)
	}
	if len(unset) == 0 {
		return 0, nil
	}

	if err := db.updateOne(ctx, key, docstore.Update{Unset: unset}, false); err != nil {
		return 0, fmt.Errorf("hdel %q: %w", key, err)
	}
	return int64(len(unset)), nil
}

// IncrObjectFieldBy atomically adds delta to a hash field and returns the result
func (db *DB) IncrObjectFieldBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	if key == "" || field == "" {
		return 0, nil
	}

	escaped := document.EscapeField(field)
	doc, err := db.findOneAndUpdate(ctx, docstore.ByKey(key), docstore.Update{
		Inc: map[string]any{escaped: delta},
	}, true)
	if err != nil {
		return 0, fmt.Errorf("hincrby %q %q: %w", key, field, err)
	}

	n, err := document.ToInt64(doc[escaped])
	if err != nil {
		return 0, fmt.Errorf("hincrby %q %q: %w", key, field, err)
	}
	return n, nil
}
