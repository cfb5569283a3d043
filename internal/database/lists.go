package database

import (
	"context"
	"fmt"
	"slices"

	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
)

// ListAppend pushes values to the tail of the list at key, creating it when missing
func (db *DB) ListAppend(ctx context.Context, key string, values ...string) error {
	if key == "" || len(values) == 0 {
		return nil
	}

	err := db.updateOne(ctx, key, docstore.Update{
		Push: map[string][]any{document.FieldArray: toAny(values)},
	}, true)
	if err != nil {
		return fmt.Errorf("rpush %q: %w", key, err)
	}
	return nil
}

// ListPrepend pushes values one by one to the head of the list at key,
// so the last value ends up first
func (db *DB) ListPrepend(ctx context.Context, key string, values ...string) error {
	if key == "" || len(values) == 0 {
		return nil
	}

	reversed := slices.Clone(values)
	slices.Reverse(reversed)

	err := db.updateOne(ctx, key, docstore.Update{
		PushFront: map[string][]any{document.FieldArray: toAny(reversed)},
	}, true)
	if err != nil {
		return fmt.Errorf("lpush %q: %w", key, err)
	}
	return nil
}

// ListRemoveLast pops the tail of the list at key.
// The boolean is false when the list is absent or empty.
func (db *DB) ListRemoveLast(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}

	elements, err := findValue[document.List](ctx, db, key)
	if err != nil {
		return "", false, fmt.Errorf("rpop %q: %w", key, err)
	}
	if len(elements) == 0 {
		return "", false, nil
	}

	err = db.updateOne(ctx, key, docstore.Update{
		Pop: map[string]int{document.FieldArray: 1},
	}, false)
	if err != nil {
		return "", false, fmt.Errorf("rpop %q: %w", key, err)
	}
	return elements[len(elements)-1], true, nil
}

// ListRemoveAll removes every occurrence of values from the list at key
func (db *DB) ListRemoveAll(ctx context.Context, key string, values ...string) error {
	if key == "" || len(values) == 0 {
		return nil
	}

	err := db.updateOne(ctx, key, docstore.Update{
		PullAll: map[string][]any{document.FieldArray: toAny(values)},
	}, false)
	if err != nil {
		return fmt.Errorf("lrem %q: %w", key, err)
	}
	return nil
}

// GetListRange returns the elements between start and stop, both inclusive.
// Negative indexes count from the tail.
func (db *DB) GetListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	elements, err := db.listElements(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lrange %q: %w", key, err)
	}

	lo, hi, ok := normalizeRange(start, stop, int64(len(elements)))
	if !ok {
		return []string{}, nil
	}
	return elements[lo : hi+1], nil
}

// ListLength returns the number of elements of the list at key
func (db *DB) ListLength(ctx context.Context, key string) (int64, error) {
	elements, err := db.listElements(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("llen %q: %w", key, err)
	}
	return int64(len(elements)), nil
}

func (db *DB) listElements(ctx context.Context, key string) ([]string, error) {
	if key == "" {
		return nil, nil
	}

	list, err := findValue[document.List](ctx, db, key)
	return []string(list), err
}

// normalizeRange resolves inclusive, possibly negative, indexes against length
func normalizeRange(start, stop, length int64) (lo, hi int64, ok bool) {
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	start = max(start, 0)
	stop = min(stop, length-1)

	if start > stop || start >= length {
		return 0, 0, false
	}
	return start, stop, true
}
