package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
)

// interleavingCollection runs afterPull once, right after the next
// FindOneAndUpdate, to stand in for a concurrent writer
type interleavingCollection struct {
	docstore.Collection
	afterPull func()
}

func (c *interleavingCollection) FindOneAndUpdate(ctx context.Context, f docstore.Filter, u docstore.Update, upsert bool) (document.Document, error) {
	doc, err := c.Collection.FindOneAndUpdate(ctx, f, u, upsert)
	if hook := c.afterPull; hook != nil {
		c.afterPull = nil
		hook()
	}
	return doc, err
}

func TestDB_Sets(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.db.SetAdd(ctx, "tags", "go", "db"))
	require.NoError(t, env.db.SetAdd(ctx, "tags", "db", "cache"))

	members, err := env.db.GetSetMembers(ctx, "tags")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"go", "db", "cache"}, members)

	n, err := env.db.SetCount(ctx, "tags")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	ok, err := env.db.IsSetMember(ctx, "tags", "db")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.db.IsSetMember(ctx, "tags", "rust")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, env.db.SetRemove(ctx, "tags", "db", "never-added"))
	members, err = env.db.GetSetMembers(ctx, "tags")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"go", "cache"}, members)
}

func TestDB_SetRemoveDeletesEmptySet(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.db.SetAdd(ctx, "s", "only"))
	require.NoError(t, env.db.SetRemove(ctx, "s", "only"))

	exists, err := env.db.Exists(ctx, "s")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, env.db.SetRemove(ctx, "missing", "x"), "removing from a missing set is a no-op")
}

func TestDB_SetRemoveKeepsConcurrentAdd(t *testing.T) {
	ctx := context.Background()
	store, err := docstore.NewMemory(1)
	require.NoError(t, err)

	coll := &interleavingCollection{Collection: store}
	db := New(coll, newSpyCache(t), zap.NewNop(), WithClock(func() time.Time { return fixedNow }))

	require.NoError(t, db.SetAdd(ctx, "s", "a"))

	coll.afterPull = func() {
		require.NoError(t, store.UpdateOne(ctx, docstore.ByKey("s"), docstore.Update{
			AddToSet: map[string][]any{document.FieldMembers: {"b"}},
		}, false))
	}
	require.NoError(t, db.SetRemove(ctx, "s", "a"))

	members, err := db.GetSetMembers(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members, "a member added between the pull and the cleanup survives")
}

func TestDB_SetsMissingAndWrongType(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	members, err := env.db.GetSetMembers(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, members)

	require.NoError(t, env.db.Set(ctx, "str", "v"))
	_, err = env.db.GetSetMembers(ctx, "str")
	assert.ErrorIs(t, err, ErrWrongType)
	_, err = env.db.SetCount(ctx, "str")
	assert.ErrorIs(t, err, ErrWrongType)
}
