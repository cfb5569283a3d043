package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
)

func TestDB_SetObjectGetObject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.db.SetObject(ctx, "user:1", map[string]any{"name": "ann", "age": 31}))
	require.NoError(t, env.db.SetObjectField(ctx, "user:1", "email", "ann@example.com"))

	h, err := env.db.GetObject(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, document.Hash{"name": "ann", "age": 31, "email": "ann@example.com"}, h)

	v, err := env.db.GetObjectField(ctx, "user:1", "age")
	require.NoError(t, err)
	assert.Equal(t, 31, v)

	v, err = env.db.GetObjectField(ctx, "user:1", "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	ok, err := env.db.IsObjectField(ctx, "user:1", "email")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDB_GetObjectIsCached(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.db.SetObject(ctx, "h", map[string]any{"a": 1}))
	_, err := env.db.GetObject(ctx, "h")
	require.NoError(t, err)
	_, err = env.db.GetObject(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"delete h", "set h", "set missing"}, env.cache.Calls())

	// a write behind the database's back stays invisible until invalidation
	require.NoError(t, env.store.UpdateOne(ctx, docstore.ByKey("h"), docstore.Update{
		Set: map[string]any{"a": 2},
	}, false))
	h, err := env.db.GetObject(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, 1, h["a"])
	assert.Empty(t, env.cache.Calls(), "hits do not refill the cache")

	require.NoError(t, env.db.SetObjectField(ctx, "h", "b", 3))
	h, err = env.db.GetObject(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, document.Hash{"a": 2, "b": 3}, h)
}

func TestDB_DottedFieldNames(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.db.SetObjectField(ctx, "cfg", "site.title", "home"))

	doc := env.raw(t, "cfg")
	assert.NotContains(t, doc, "site.title", "dots never reach the store")

	v, err := env.db.GetObjectField(ctx, "cfg", "site.title")
	require.NoError(t, err)
	assert.Equal(t, "home", v)

	n, err := env.db.DeleteObjectFields(ctx, "cfg", "site.title")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDB_SetObjectReservedField(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	err := env.db.SetObject(ctx, "h", map[string]any{document.FieldKey: "other"})
	assert.ErrorIs(t, err, ErrReservedField)

	exists, err := env.db.Exists(ctx, "h")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDB_GetObjects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.db.SetObject(ctx, "a", map[string]any{"n": 1}))
	require.NoError(t, env.db.SetObject(ctx, "b", map[string]any{"n": 2}))
	require.NoError(t, env.db.Set(ctx, "s", "plain"))

	_, err := env.db.GetObject(ctx, "a")
	require.NoError(t, err)
	env.cache.Calls()

	got, err := env.db.GetObjects(ctx, []string{"a", "missing", "b", "s", "b"})
	require.NoError(t, err)
	assert.Equal(t, []document.Hash{{"n": 1}, nil, {"n": 2}, nil, {"n": 2}}, got)
	assert.Equal(t, []string{"set missing", "set b", "set s"}, env.cache.Calls(), "only misses are filled")

	got, err = env.db.GetObjects(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDB_DeleteObjectFields(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.db.SetObject(ctx, "h", map[string]any{"a": 1, "b": 2, "c": 3}))
	require.NoError(t, env.db.Expire(ctx, "h", 100))

	n, err := env.db.DeleteObjectFields(ctx, "h", "a", "a", "nope", document.FieldExpireAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	h, err := env.db.GetObject(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, document.Hash{"b": 2, "c": 3}, h)

	ttl, err := env.db.TTL(ctx, "h")
	require.NoError(t, err)
	assert.Positive(t, ttl, "expiration is not a hash field")

	n, err = env.db.DeleteObjectFields(ctx, "missing", "a")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDB_IncrObjectFieldBy(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	n, err := env.db.IncrObjectFieldBy(ctx, "stats", "views", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = env.db.IncrObjectFieldBy(ctx, "stats", "views", -2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, env.db.SetObjectField(ctx, "stats", "name", "x"))
	_, err = env.db.IncrObjectFieldBy(ctx, "stats", "name", 1)
	assert.ErrorIs(t, err, docstore.ErrNotNumeric)
}

func TestDB_HashWrongType(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.db.ListAppend(ctx, "list", "x"))

	_, err := env.db.GetObject(ctx, "list")
	assert.ErrorIs(t, err, ErrWrongType)
	_, err = env.db.DeleteObjectFields(ctx, "list", "array")
	assert.ErrorIs(t, err, ErrWrongType)
}
