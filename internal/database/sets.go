package database

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
)

// SetAdd adds members to the set at key, creating it when missing
func (db *DB) SetAdd(ctx context.Context, key string, members ...string) error {
	if key == "" || len(members) == 0 {
		return nil
	}

	err := db.updateOne(ctx, key, docstore.Update{
		AddToSet: map[string][]any{document.FieldMembers: toAny(members)},
	}, true)
	if err != nil {
		return fmt.Errorf("sadd %q: %w", key, err)
	}
	return nil
}

// SetRemove removes members from the set at key. A set left empty is deleted.
func (db *DB) SetRemove(ctx context.Context, key string, members ...string) error {
	if key == "" || len(members) == 0 {
		return nil
	}

	doc, err := db.findOneAndUpdate(ctx, docstore.ByKey(key), docstore.Update{
		PullAll: map[string][]any{document.FieldMembers: toAny(members)},
	}, false)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("srem %q: %w", key, err)
	}

	if set, err := decodeAs[document.Set](doc); err != nil || len(set) > 0 {
		return nil
	}

	// Only a set that is still empty is removed, members added since the pull survive
	err = db.objects.DeleteMany(ctx, docstore.ByKey(key).WhereEmpty(document.FieldMembers))
	db.cache.Delete(key)
	if err != nil {
		return fmt.Errorf("srem %q: %w", key, err)
	}
	return nil
}

// IsSetMember reports whether member belongs to the set at key
func (db *DB) IsSetMember(ctx context.Context, key, member string) (bool, error) {
	members, err := db.GetSetMembers(ctx, key)
	if err != nil {
		return false, err
	}
	return slices.Contains(members, member), nil
}

// GetSetMembers returns the members of the set at key, nil when the key is absent
func (db *DB) GetSetMembers(ctx context.Context, key string) ([]string, error) {
	if key == "" {
		return nil, nil
	}

	set, err := findValue[document.Set](ctx, db, key)
	if err != nil {
		return nil, fmt.Errorf("smembers %q: %w", key, err)
	}
	return []string(set), nil
}

// SetCount returns the number of members of the set at key
func (db *DB) SetCount(ctx context.Context, key string) (int64, error) {
	members, err := db.GetSetMembers(ctx, key)
	if err != nil {
		return 0, err
	}
	return int64(len(members)), nil
}
