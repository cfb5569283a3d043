// Package docstore defines the document collection the object database is
// stored in and provides its implementations: a sharded in-memory collection
// and a MongoDB collection.
//
// Every record carries its object key in the "_key" field. Sorted sets keep
// one record per member, so a key can match several records.
package docstore

import (
	"context"
	"errors"
	"io"

	"github.com/eternalApril/objectdb/internal/document"
)

var (
	// ErrNotFound is returned when no record matches a filter
	ErrNotFound = errors.New("docstore: no matching record")
	// ErrNotNumeric is returned when an increment meets a non-numeric field
	ErrNotNumeric = errors.New("docstore: cannot increment a non-numeric field")
	// ErrOverflow is returned when an integer increment leaves the int64 range
	ErrOverflow = errors.New("docstore: increment or decrement would overflow")
	// ErrNotArray is returned when an array operator meets a non-array field
	ErrNotArray = errors.New("docstore: field is not an array")
	// ErrBadFilter is returned when an upsert filter does not name a single key
	ErrBadFilter = errors.New("docstore: upsert needs exactly one key")
)

// Filter selects records by object key and, optionally, by sorted set member.
// EmptyArray, when set, names an array field that must be present and empty.
type Filter struct {
	Keys       []string
	Values     []string
	EmptyArray string
}

// ByKey matches every record of one key
func ByKey(key string) Filter {
	return Filter{Keys: []string{key}}
}

// ByKeys matches every record of any listed key
func ByKeys(keys []string) Filter {
	return Filter{Keys: keys}
}

// ByMembers matches the sorted set records of key whose value is listed
func ByMembers(key string, values ...string) Filter {
	return Filter{Keys: []string{key}, Values: values}
}

// WhereEmpty narrows f to records whose array field is present and empty
func (f Filter) WhereEmpty(field string) Filter {
	f.EmptyArray = field
	return f
}

// Update is a field-level modification applied to every matched record.
// Operators follow document store semantics: Set assigns, Unset removes,
// Inc adds to a number (a missing field counts as 0), AddToSet appends values
// not yet present, PullAll removes every occurrence, Push appends, PushFront
// prepends keeping the given order, Pop removes the last (1) or first (-1)
// array element.
type Update struct {
	Set       map[string]any
	Unset     []string
	Inc       map[string]any
	AddToSet  map[string][]any
	PullAll   map[string][]any
	Push      map[string][]any
	PushFront map[string][]any
	Pop       map[string]int
}

// IsEmpty reports whether the update carries no operator
func (u Update) IsEmpty() bool {
	return len(u.Set) == 0 && len(u.Unset) == 0 && len(u.Inc) == 0 &&
		len(u.AddToSet) == 0 && len(u.PullAll) == 0 && len(u.Push) == 0 &&
		len(u.PushFront) == 0 && len(u.Pop) == 0
}

// SortOrder orders Find results by the sorted set score
type SortOrder int

const (
	Unsorted SortOrder = iota
	ScoreAsc
	ScoreDesc
)

// FindOptions shape a Find result. Zero Limit means no limit.
type FindOptions struct {
	Sort  SortOrder
	Skip  int64
	Limit int64
}

// Collection is the objects collection. Returned records never expose the
// store-internal "_id" field and never alias store state.
type Collection interface {
	// FindOne returns the first record matching f, or ErrNotFound
	FindOne(ctx context.Context, f Filter) (document.Document, error)

	// Find returns every record matching f in a single round trip
	Find(ctx context.Context, f Filter, opts FindOptions) ([]document.Document, error)

	// UpdateOne applies u to the first record matching f. With upsert, a missing
	// record is created from the filter's key (and member value) plus u.
	UpdateOne(ctx context.Context, f Filter, u Update, upsert bool) error

	// FindOneAndUpdate is UpdateOne returning the record after the update,
	// or ErrNotFound when nothing matched and upsert is false
	FindOneAndUpdate(ctx context.Context, f Filter, u Update, upsert bool) (document.Document, error)

	// UpdateMany applies u to every record matching f in one request.
	// There is no atomicity across records.
	UpdateMany(ctx context.Context, f Filter, u Update) error

	// DeleteMany removes every record matching f
	DeleteMany(ctx context.Context, f Filter) error

	// Clear removes every record of the collection
	Clear(ctx context.Context) error

	// Drop removes the whole store the collection lives in
	Drop(ctx context.Context) error
}

// Sweeper is implemented by collections that enforce expireAt themselves
type Sweeper interface {
	// DeleteExpired samples up to limit expiring keys per shard, deletes the
	// expired ones and returns the expired/sampled ratio
	DeleteExpired(limit int) float64
}

// Snapshotter is implemented by collections that can be saved to a stream
type Snapshotter interface {
	Snapshot(w io.Writer) error
	Restore(r io.Reader) error
}
