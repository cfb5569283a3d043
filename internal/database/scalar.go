package database

import (
	"context"
	"fmt"

	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
)

// Get returns the plain value of key, nil when the key is absent or holds no value.
// Records written before payloads moved to "data" are read from "value".
func (db *DB) Get(ctx context.Context, key string) (any, error) {
	if key == "" {
		return nil, nil
	}

	doc, err := db.findOne(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	v, err := document.Decode([]document.Document{doc})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return scalarOf(v), nil
}

// scalarOf resolves the payload of a decoded value: "data" first, then the
// legacy "value" field. Shapes carrying neither have no payload.
func scalarOf(v document.Value) any {
	switch t := v.(type) {
	case document.Scalar:
		return t.Data
	case document.Hash:
		if data, ok := t[document.FieldData]; ok {
			return data
		}
		return t[document.FieldLegacyData]
	case document.SortedSet:
		if len(t) > 0 {
			return t[0].Value
		}
	}
	return nil
}

// Set stores value as the plain value of key, keeping other fields such as expireAt
func (db *DB) Set(ctx context.Context, key string, value any) error {
	if key == "" {
		return nil
	}

	err := db.updateOne(ctx, key, docstore.Update{
		Set: map[string]any{document.FieldData: value},
	}, true)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Increment atomically adds one to the plain value of key and returns the result.
// A missing key counts as zero.
func (db *DB) Increment(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, nil
	}

	doc, err := db.findOneAndUpdate(ctx, docstore.ByKey(key), docstore.Update{
		Inc: map[string]any{document.FieldData: int64(1)},
	}, true)
	if err != nil {
		return 0, fmt.Errorf("increment %q: %w", key, err)
	}

	n, err := document.ToInt64(doc[document.FieldData])
	if err != nil {
		return 0, fmt.Errorf("increment %q: %w", key, err)
	}
	return n, nil
}
