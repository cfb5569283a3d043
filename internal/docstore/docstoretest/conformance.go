// Package docstoretest provides conformance tests for docstore.Collection implementations
package docstoretest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
)

// CollectionFactory creates an empty collection for one test
type CollectionFactory func(t *testing.T) docstore.Collection

// RunConformanceTests runs every conformance test against a Collection implementation
func RunConformanceTests(t *testing.T, factory CollectionFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, c docstore.Collection)
	}{
		{"FindOneMissing", testFindOneMissing},
		{"UpsertMergesFields", testUpsertMergesFields},
		{"UpdateWithoutUpsert", testUpdateWithoutUpsert},
		{"IncrementUpsert", testIncrementUpsert},
		{"IncrementNonNumeric", testIncrementNonNumeric},
		{"IncrementOverflow", testIncrementOverflow},
		{"FindByKeys", testFindByKeys},
		{"UpdateManyRenames", testUpdateManyRenames},
		{"DeleteManyByKeys", testDeleteManyByKeys},
		{"DeleteManyByMembers", testDeleteManyByMembers},
		{"DeleteManyWhereEmpty", testDeleteManyWhereEmpty},
		{"SetOperators", testSetOperators},
		{"ListOperators", testListOperators},
		{"SortedFind", testSortedFind},
		{"Unset", testUnset},
		{"ExpireAtRoundTrip", testExpireAtRoundTrip},
		{"Clear", testClear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.test(t, factory(t))
		})
	}
}

func testFindOneMissing(t *testing.T, c docstore.Collection) {
	_, err := c.FindOne(context.Background(), docstore.ByKey("missing"))
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testUpsertMergesFields(t *testing.T, c docstore.Collection) {
	ctx := context.Background()

	require.NoError(t, c.UpdateOne(ctx, docstore.ByKey("k"), docstore.Update{Set: map[string]any{"a": "1"}}, true))
	require.NoError(t, c.UpdateOne(ctx, docstore.ByKey("k"), docstore.Update{Set: map[string]any{"b": "2"}}, true))

	doc, err := c.FindOne(ctx, docstore.ByKey("k"))
	require.NoError(t, err)
	assert.Equal(t, document.Document{"_key": "k", "a": "1", "b": "2"}, doc)
	assert.False(t, doc.Has(document.FieldID), "store id must not leak")
}

func testUpdateWithoutUpsert(t *testing.T, c docstore.Collection) {
	ctx := context.Background()

	require.NoError(t, c.UpdateOne(ctx, docstore.ByKey("k"), docstore.Update{Set: map[string]any{"a": "1"}}, false))
	_, err := c.FindOne(ctx, docstore.ByKey("k"))
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = c.FindOneAndUpdate(ctx, docstore.ByKey("k"), docstore.Update{Set: map[string]any{"a": "1"}}, false)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testIncrementUpsert(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	inc := docstore.Update{Inc: map[string]any{"data": 1}}

	for want := int64(1); want <= 3; want++ {
		doc, err := c.FindOneAndUpdate(ctx, docstore.ByKey("counter"), inc, true)
		require.NoError(t, err)
		got, err := document.ToInt64(doc["data"])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func testIncrementNonNumeric(t *testing.T, c docstore.Collection) {
	ctx := context.Background()

	require.NoError(t, c.UpdateOne(ctx, docstore.ByKey("s"), docstore.Update{Set: map[string]any{"data": "abc"}}, true))
	_, err := c.FindOneAndUpdate(ctx, docstore.ByKey("s"), docstore.Update{Inc: map[string]any{"data": 1}}, true)
	assert.ErrorIs(t, err, docstore.ErrNotNumeric)

	doc, err := c.FindOne(ctx, docstore.ByKey("s"))
	require.NoError(t, err)
	assert.Equal(t, "abc", doc["data"], "failed increment must not modify the record")
}

func testIncrementOverflow(t *testing.T, c docstore.Collection) {
	ctx := context.Background()

	tests := []struct {
		name  string
		start int64
		delta int64
	}{
		{"past max", math.MaxInt64, 1},
		{"past min", math.MinInt64, -1},
		{"large delta", math.MaxInt64 - 5, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := docstore.ByKey("n:" + tt.name)
			require.NoError(t, c.UpdateOne(ctx, f, docstore.Update{Set: map[string]any{"data": tt.start}}, true))

			_, err := c.FindOneAndUpdate(ctx, f, docstore.Update{Inc: map[string]any{"data": tt.delta}}, true)
			assert.ErrorIs(t, err, docstore.ErrOverflow)

			doc, err := c.FindOne(ctx, f)
			require.NoError(t, err)
			got, err := document.ToInt64(doc["data"])
			require.NoError(t, err)
			assert.Equal(t, tt.start, got, "failed increment must not modify the record")
		})
	}
}

func testFindByKeys(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	for _, k := range []string{"a", "c"} {
		require.NoError(t, c.UpdateOne(ctx, docstore.ByKey(k), docstore.Update{Set: map[string]any{"data": k}}, true))
	}

	docs, err := c.Find(ctx, docstore.ByKeys([]string{"a", "b", "c", "a"}), docstore.FindOptions{})
	require.NoError(t, err)

	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.Key())
	}
	assert.ElementsMatch(t, []string{"a", "c"}, keys)
}

func testUpdateManyRenames(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	for i, v := range []string{"x", "y", "z"} {
		require.NoError(t, c.UpdateOne(ctx, docstore.ByMembers("old", v),
			docstore.Update{Set: map[string]any{"score": float64(i)}}, true))
	}

	require.NoError(t, c.UpdateMany(ctx, docstore.ByKey("old"), docstore.Update{Set: map[string]any{"_key": "new"}}))

	_, err := c.FindOne(ctx, docstore.ByKey("old"))
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	docs, err := c.Find(ctx, docstore.ByKey("new"), docstore.FindOptions{Sort: docstore.ScoreAsc})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "x", docs[0]["value"])
	assert.Equal(t, "z", docs[2]["value"])
}

func testDeleteManyByKeys(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.UpdateOne(ctx, docstore.ByKey(k), docstore.Update{Set: map[string]any{"data": k}}, true))
	}

	require.NoError(t, c.DeleteMany(ctx, docstore.ByKeys([]string{"a", "c", "missing"})))

	docs, err := c.Find(ctx, docstore.ByKeys([]string{"a", "b", "c"}), docstore.FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].Key())
}

func testDeleteManyByMembers(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	for _, v := range []string{"m1", "m2", "m3"} {
		require.NoError(t, c.UpdateOne(ctx, docstore.ByMembers("z", v),
			docstore.Update{Set: map[string]any{"score": 1.0}}, true))
	}

	require.NoError(t, c.DeleteMany(ctx, docstore.ByMembers("z", "m1", "m3")))

	docs, err := c.Find(ctx, docstore.ByKey("z"), docstore.FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "m2", docs[0]["value"])
}

func testDeleteManyWhereEmpty(t *testing.T, c docstore.Collection) {
	ctx := context.Background()

	require.NoError(t, c.UpdateOne(ctx, docstore.ByKey("empty"),
		docstore.Update{Set: map[string]any{"members": []any{}}}, true))
	require.NoError(t, c.UpdateOne(ctx, docstore.ByKey("full"),
		docstore.Update{AddToSet: map[string][]any{"members": {"a"}}}, true))
	require.NoError(t, c.UpdateOne(ctx, docstore.ByKey("none"),
		docstore.Update{Set: map[string]any{"data": "v"}}, true))

	for _, key := range []string{"empty", "full", "none"} {
		require.NoError(t, c.DeleteMany(ctx, docstore.ByKey(key).WhereEmpty("members")))
	}

	_, err := c.FindOne(ctx, docstore.ByKey("empty"))
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	doc, err := c.FindOne(ctx, docstore.ByKey("full"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, document.Strings(doc["members"]))

	_, err = c.FindOne(ctx, docstore.ByKey("none"))
	assert.NoError(t, err, "a record without the array is kept")
}

func testSetOperators(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	f := docstore.ByKey("s")

	require.NoError(t, c.UpdateOne(ctx, f, docstore.Update{AddToSet: map[string][]any{"members": {"a", "b", "a"}}}, true))
	require.NoError(t, c.UpdateOne(ctx, f, docstore.Update{AddToSet: map[string][]any{"members": {"b", "c"}}}, true))

	doc, err := c.FindOne(ctx, f)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, document.Strings(doc["members"]))

	doc, err = c.FindOneAndUpdate(ctx, f, docstore.Update{PullAll: map[string][]any{"members": {"a", "c", "zzz"}}}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, document.Strings(doc["members"]))
}

func testListOperators(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	f := docstore.ByKey("l")

	require.NoError(t, c.UpdateOne(ctx, f, docstore.Update{Push: map[string][]any{"array": {"b", "c"}}}, true))
	require.NoError(t, c.UpdateOne(ctx, f, docstore.Update{PushFront: map[string][]any{"array": {"a"}}}, true))
	require.NoError(t, c.UpdateOne(ctx, f, docstore.Update{Push: map[string][]any{"array": {"b"}}}, true))

	doc, err := c.FindOne(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "b"}, document.Strings(doc["array"]))

	doc, err = c.FindOneAndUpdate(ctx, f, docstore.Update{Pop: map[string]int{"array": 1}}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, document.Strings(doc["array"]))

	doc, err = c.FindOneAndUpdate(ctx, f, docstore.Update{PullAll: map[string][]any{"array": {"b"}}}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, document.Strings(doc["array"]))
}

func testSortedFind(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	scores := map[string]float64{"d": 4, "a": 1, "c": 3, "b": 2}
	for v, s := range scores {
		require.NoError(t, c.UpdateOne(ctx, docstore.ByMembers("z", v),
			docstore.Update{Set: map[string]any{"score": s}}, true))
	}

	values := func(docs []document.Document) []string {
		out := make([]string, len(docs))
		for i, d := range docs {
			out[i] = document.ToString(d["value"])
		}
		return out
	}

	asc, err := c.Find(ctx, docstore.ByKey("z"), docstore.FindOptions{Sort: docstore.ScoreAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, values(asc))

	desc, err := c.Find(ctx, docstore.ByKey("z"), docstore.FindOptions{Sort: docstore.ScoreDesc, Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, values(desc))
}

func testUnset(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	f := docstore.ByKey("h")

	require.NoError(t, c.UpdateOne(ctx, f, docstore.Update{Set: map[string]any{"a": 1, "b": 2}}, true))
	require.NoError(t, c.UpdateOne(ctx, f, docstore.Update{Unset: []string{"a", "nope"}}, false))

	doc, err := c.FindOne(ctx, f)
	require.NoError(t, err)
	assert.False(t, doc.Has("a"))
	assert.True(t, doc.Has("b"))
}

func testExpireAtRoundTrip(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	at := time.UnixMilli(time.Now().Add(time.Hour).UnixMilli())

	require.NoError(t, c.UpdateOne(ctx, docstore.ByKey("k"), docstore.Update{Set: map[string]any{"data": "v"}}, true))
	require.NoError(t, c.UpdateOne(ctx, docstore.ByKey("k"), docstore.Update{Set: map[string]any{"expireAt": at}}, true))

	doc, err := c.FindOne(ctx, docstore.ByKey("k"))
	require.NoError(t, err)
	got, ok := doc.ExpireAt()
	require.True(t, ok)
	assert.Equal(t, at.UnixMilli(), got.UnixMilli())
	assert.Equal(t, "v", doc["data"])
}

func testClear(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	require.NoError(t, c.UpdateOne(ctx, docstore.ByKey("k"), docstore.Update{Set: map[string]any{"data": 1}}, true))

	require.NoError(t, c.Clear(ctx))

	_, err := c.FindOne(ctx, docstore.ByKey("k"))
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
