package document

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("no records", func(t *testing.T) {
		v, err := Decode(nil)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("absent record", func(t *testing.T) {
		v, err := Decode([]Document{nil})
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("scalar", func(t *testing.T) {
		v, err := Decode([]Document{{FieldKey: "k", FieldData: int64(5)}})
		require.NoError(t, err)
		assert.Equal(t, Scalar{Data: int64(5)}, v)
		assert.Equal(t, TypeString, v.Type())
	})

	t.Run("set", func(t *testing.T) {
		v, err := Decode([]Document{{FieldKey: "s", FieldMembers: []any{"a", int32(2)}}})
		require.NoError(t, err)
		assert.Equal(t, Set{"a", "2"}, v)
	})

	t.Run("list keeps order", func(t *testing.T) {
		v, err := Decode([]Document{{FieldKey: "l", FieldArray: []any{"c", "a", "b"}}})
		require.NoError(t, err)
		assert.Equal(t, List{"c", "a", "b"}, v)
	})

	t.Run("sorted set spans records", func(t *testing.T) {
		v, err := Decode([]Document{
			{FieldKey: "z", FieldValue: "b", FieldScore: 2.0},
			{FieldKey: "z", FieldValue: "a", FieldScore: int32(1)},
			{FieldKey: "z", FieldValue: "c", FieldScore: 2.0},
		})
		require.NoError(t, err)
		assert.Equal(t, SortedSet{{"a", 1}, {"b", 2}, {"c", 2}}, v)
	})

	t.Run("sorted set with bad score", func(t *testing.T) {
		_, err := Decode([]Document{{FieldKey: "z", FieldValue: "a", FieldScore: "nope"}})
		assert.ErrorIs(t, err, ErrNotFloat)
	})

	t.Run("hash drops reserved fields and unescapes names", func(t *testing.T) {
		v, err := Decode([]Document{{
			FieldID:          "x",
			FieldKey:         "h",
			FieldExpireAt:    time.Now(),
			EscapeField("a.b"): "1",
			"c":              2,
		}})
		require.NoError(t, err)
		assert.Equal(t, Hash{"a.b": "1", "c": 2}, v)
	})
}

func TestDocument_CloneIsDeep(t *testing.T) {
	orig := Document{FieldKey: "l", FieldArray: []any{"a"}, "m": map[string]any{"x": 1}}
	c := orig.Clone()
	c[FieldArray].([]any)[0] = "changed"
	c["m"].(map[string]any)["x"] = 2

	assert.Equal(t, "a", orig[FieldArray].([]any)[0])
	assert.Equal(t, 1, orig["m"].(map[string]any)["x"])
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{int(3), 3, false},
		{int32(-4), -4, false},
		{int64(1 << 40), 1 << 40, false},
		{float64(6), 6, false},
		{6.5, 0, true},
		{"12", 12, false},
		{"x", 0, true},
		{nil, 0, true},
		{float64(math.MaxInt64), 0, true},
		{math.Nextafter(1<<63, 0), 1<<63 - 1024, false},
		{float64(math.MinInt64), math.MinInt64, false},
		{uint64(math.MaxUint64), 0, true},
	}

	for _, tt := range tests {
		got, err := ToInt64(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrNotInteger, "input %v", tt.in)
			continue
		}
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestToString(t *testing.T) {
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "abc", ToString("abc"))
	assert.Equal(t, "42", ToString(int32(42)))
	assert.Equal(t, "1.5", ToString(1.5))
	assert.Equal(t, "2", ToString(2.0))
	assert.Equal(t, "true", ToString(true))
}

func TestEscapeField(t *testing.T) {
	assert.Equal(t, "a．b", EscapeField("a.b"))
	assert.Equal(t, "a.b", UnescapeField(EscapeField("a.b")))
	assert.Equal(t, "plain", EscapeField("plain"))
}
