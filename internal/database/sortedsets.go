package database

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
)

// SortedSetAdd adds members to the sorted set at key, updating the score of
// members already present. Each member is its own record.
func (db *DB) SortedSetAdd(ctx context.Context, key string, members ...document.Member) error {
	if key == "" || len(members) == 0 {
		return nil
	}
	defer db.cache.Delete(key)

	for _, m := range members {
		err := db.objects.UpdateOne(ctx, docstore.ByMembers(key, m.Value), docstore.Update{
			Set: map[string]any{document.FieldScore: m.Score},
		}, true)
		if err != nil {
			return fmt.Errorf("zadd %q %q: %w", key, m.Value, err)
		}
	}
	return nil
}

// SortedSetRemove removes members from the sorted set at key in a single request
func (db *DB) SortedSetRemove(ctx context.Context, key string, values ...string) error {
	if key == "" || len(values) == 0 {
		return nil
	}

	err := db.objects.DeleteMany(ctx, docstore.ByMembers(key, values...))
	db.cache.Delete(key)
	if err != nil {
		return fmt.Errorf("zrem %q: %w", key, err)
	}
	return nil
}

// SortedSetScore returns the score of a member. The boolean is false when the
// member is absent.
func (db *DB) SortedSetScore(ctx context.Context, key, value string) (float64, bool, error) {
	if key == "" {
		return 0, false, nil
	}

	doc, err := db.objects.FindOne(ctx, docstore.ByMembers(key, value))
	if errors.Is(err, docstore.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("zscore %q %q: %w", key, value, err)
	}
	set, err := decodeAs[document.SortedSet](doc)
	if err != nil {
		return 0, false, fmt.Errorf("zscore %q %q: %w", key, value, err)
	}
	return set[0].Score, true, nil
}

// SortedSetIncrBy atomically adds delta to the score of a member and returns
// the new score. A missing member starts at zero.
func (db *DB) SortedSetIncrBy(ctx context.Context, key, value string, delta float64) (float64, error) {
	if key == "" {
		return 0, nil
	}

	doc, err := db.findOneAndUpdate(ctx, docstore.ByMembers(key, value), docstore.Update{
		Inc: map[string]any{document.FieldScore: delta},
	}, true)
	if err != nil {
		return 0, fmt.Errorf("zincrby %q %q: %w", key, value, err)
	}
	return document.ToFloat64(doc[document.FieldScore])
}

// GetSortedSetRange returns members from start to stop (inclusive) by ascending score
func (db *DB) GetSortedSetRange(ctx context.Context, key string, start, stop int64) ([]document.Member, error) {
	return db.sortedSetRange(ctx, key, start, stop, docstore.ScoreAsc)
}

// GetSortedSetRevRange returns members from start to stop (inclusive) by descending score
func (db *DB) GetSortedSetRevRange(ctx context.Context, key string, start, stop int64) ([]document.Member, error) {
	return db.sortedSetRange(ctx, key, start, stop, docstore.ScoreDesc)
}

// SortedSetCard returns the number of members of the sorted set at key
func (db *DB) SortedSetCard(ctx context.Context, key string) (int64, error) {
	members, err := db.sortedSetRange(ctx, key, 0, -1, docstore.Unsorted)
	if err != nil {
		return 0, err
	}
	return int64(len(members)), nil
}

func (db *DB) sortedSetRange(ctx context.Context, key string, start, stop int64, order docstore.SortOrder) ([]document.Member, error) {
	if key == "" {
		return nil, nil
	}

	// Non-negative bounds are resolved by the store, others need the full set
	opts := docstore.FindOptions{Sort: order}
	window := start >= 0 && stop >= 0
	if window {
		if stop < start {
			return []document.Member{}, nil
		}
		opts.Skip = start
		opts.Limit = stop - start + 1
	}

	docs, err := db.objects.Find(ctx, docstore.ByKey(key), opts)
	if err != nil {
		return nil, fmt.Errorf("zrange %q: %w", key, err)
	}

	// every record of a sorted set key must be a member
	for _, doc := range docs {
		if document.TypeOf(doc) != document.TypeZSet {
			return nil, ErrWrongType
		}
	}

	set, err := decodeAs[document.SortedSet](docs...)
	if err != nil {
		return nil, fmt.Errorf("zrange %q: %w", key, err)
	}
	members := []document.Member(set)
	if members == nil {
		members = []document.Member{}
	}
	if order == docstore.ScoreDesc {
		slices.Reverse(members)
	}

	if window {
		return members, nil
	}

	lo, hi, ok := normalizeRange(start, stop, int64(len(members)))
	if !ok {
		return []document.Member{}, nil
	}
	return members[lo : hi+1], nil
}
