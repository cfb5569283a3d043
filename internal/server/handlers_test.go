package server

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eternalApril/objectdb/internal/config"
	"github.com/eternalApril/objectdb/internal/database"
	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
	"github.com/eternalApril/objectdb/internal/objectcache"
	"github.com/eternalApril/objectdb/internal/resp"
)

// testEngine wraps an engine over a fresh single-shard memory store
type testEngine struct {
	*Engine
	store *docstore.Memory
}

func newTestEngine(t *testing.T, cfg *config.Config, opts ...EngineOption) testEngine {
	t.Helper()

	store, err := docstore.NewMemory(1)
	require.NoError(t, err)

	cache, err := objectcache.New(128)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	e, err := NewEngine(database.New(store, cache, log), store, cfg, log, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Shutdown)

	return testEngine{Engine: e, store: store}
}

// setupEngine creates an engine with snapshots and the sweep disabled
func setupEngine(t *testing.T) testEngine {
	return newTestEngine(t, &config.Config{})
}

// run executes one command given as name and arguments
func (e testEngine) run(name string, args ...string) resp.Value {
	vals := make([]resp.Value, len(args))
	for i, arg := range args {
		vals[i] = resp.MakeBulkString(arg)
	}
	return e.Execute(context.Background(), name, vals)
}

func (e testEngine) mustRun(t *testing.T, name string, args ...string) resp.Value {
	t.Helper()
	res := e.run(name, args...)
	require.NotEqual(t, byte(resp.TypeError), res.Type, "%s %v: %s", name, args, res.String)
	return res
}

// texts flattens an array reply into its strings
func texts(t *testing.T, v resp.Value) []string {
	t.Helper()
	require.Equal(t, byte(resp.TypeArray), v.Type)
	out := make([]string, len(v.Array))
	for i, item := range v.Array {
		out[i] = string(item.String)
	}
	return out
}

func assertError(t *testing.T, v resp.Value, prefix string) {
	t.Helper()
	require.Equal(t, byte(resp.TypeError), v.Type, "expected an error reply, got %q", v.String)
	assert.True(t, strings.HasPrefix(string(v.String), prefix), "got %q, want prefix %q", v.String, prefix)
}

func TestPing(t *testing.T) {
	e := setupEngine(t)

	tests := []struct {
		name     string
		args     []string
		wantType byte
		wantStr  string
	}{
		{"simple PING", nil, resp.TypeSimpleString, "PONG"},
		{"PING with message", []string{"Hello"}, resp.TypeBulkString, "Hello"},
		{"PING too many args", []string{"a", "b"}, resp.TypeError, "ERR wrong number of arguments for 'ping' command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.run("ping", tt.args...)
			assert.Equal(t, tt.wantType, res.Type)
			assert.Equal(t, tt.wantStr, string(res.String))
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	e := setupEngine(t)
	res := e.run("nope", "x")
	assertError(t, res, "ERR unknown command 'NOPE'")
}

func TestArity(t *testing.T) {
	e := setupEngine(t)

	tests := []struct {
		name string
		args []string
	}{
		{"GET", nil},
		{"GET", []string{"a", "b"}},
		{"SET", []string{"k"}},
		{"HSET", []string{"h", "f"}},
		{"HSET", []string{"h", "f", "v", "g"}},
		{"LREM", []string{"l", "0"}},
		{"ZRANGE", []string{"z", "0"}},
		{"RENAME", []string{"a"}},
		{"SAVE", []string{"now"}},
	}

	for _, tt := range tests {
		t.Run(tt.name+" "+strings.Join(tt.args, " "), func(t *testing.T) {
			res := e.run(tt.name, tt.args...)
			assertError(t, res, "ERR wrong number of arguments for '"+strings.ToLower(tt.name)+"' command")
		})
	}
}

func TestStringCommands(t *testing.T) {
	e := setupEngine(t)

	res := e.run("GET", "mykey")
	assert.True(t, res.IsNull, "missing key reads as nil")

	res = e.run("SET", "mykey", "myvalue")
	assert.Equal(t, "OK", string(res.String))

	res = e.run("get", "mykey")
	assert.Equal(t, "myvalue", string(res.String))

	e.mustRun(t, "SET", "counter", "10")
	assert.Equal(t, int64(11), e.run("INCR", "counter").Integer)
	assert.Equal(t, "11", string(e.run("GET", "counter").String))

	assert.Equal(t, int64(1), e.run("INCR", "fresh").Integer)

	assertError(t, e.run("INCR", "mykey"), "ERR value is not an integer")

	e.mustRun(t, "SET", "max", "9223372036854775807")
	assertError(t, e.run("INCR", "max"), "ERR increment or decrement would overflow")
	assert.Equal(t, "9223372036854775807", string(e.run("GET", "max").String))

	e.mustRun(t, "HSET", "h", "n", "-9223372036854775808")
	assertError(t, e.run("HINCRBY", "h", "n", "-1"), "ERR increment or decrement would overflow")
}

func TestSetOptions(t *testing.T) {
	e := setupEngine(t)

	e.mustRun(t, "SET", "a", "1", "ex", "100")
	assert.InDelta(t, 100, e.run("TTL", "a").Integer, 1)

	e.mustRun(t, "SET", "b", "1", "PX", "5000")
	pttl := e.run("PTTL", "b").Integer
	assert.LessOrEqual(t, pttl, int64(5000))
	assert.Greater(t, pttl, int64(4000))

	// plain SET keeps the expiration
	e.mustRun(t, "SET", "a", "2")
	assert.Greater(t, e.run("TTL", "a").Integer, int64(0))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown option", []string{"k", "v", "NX"}, "ERR syntax error"},
		{"missing value", []string{"k", "v", "EX"}, "ERR syntax error"},
		{"two expirations", []string{"k", "v", "EX", "1", "PX", "1"}, "ERR syntax error"},
		{"not a number", []string{"k", "v", "EX", "soon"}, "ERR value is not an integer"},
		{"zero", []string{"k", "v", "EX", "0"}, "ERR invalid expire time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, e.run("SET", tt.args...), tt.want)
		})
	}

	assert.Equal(t, int64(0), e.run("EXISTS", "k").Integer, "a rejected SET writes nothing")
}

func TestKeyCommands(t *testing.T) {
	e := setupEngine(t)

	e.mustRun(t, "SET", "a", "1")
	e.mustRun(t, "SET", "b", "2")

	assert.Equal(t, int64(2), e.run("EXISTS", "a", "b", "c").Integer)
	assert.Equal(t, int64(2), e.run("DEL", "a", "b", "c", "a").Integer)
	assert.Equal(t, int64(0), e.run("EXISTS", "a", "b").Integer)

	assertError(t, e.run("RENAME", "a", "z"), "ERR no such key")

	e.mustRun(t, "SADD", "old", "x", "y")
	e.mustRun(t, "RENAME", "old", "new")
	assert.Equal(t, int64(0), e.run("EXISTS", "old").Integer)
	assert.Equal(t, []string{"x", "y"}, texts(t, e.run("SMEMBERS", "new")))
}

func TestType(t *testing.T) {
	e := setupEngine(t)

	e.mustRun(t, "SET", "s", "v")
	e.mustRun(t, "HSET", "h", "f", "v")
	e.mustRun(t, "SADD", "set", "m")
	e.mustRun(t, "RPUSH", "l", "a")
	e.mustRun(t, "ZADD", "z", "1", "m")

	tests := []struct {
		key  string
		want string
	}{
		{"s", "string"},
		{"h", "hash"},
		{"set", "set"},
		{"l", "list"},
		{"z", "zset"},
		{"missing", "none"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			res := e.run("TYPE", tt.key)
			assert.Equal(t, byte(resp.TypeSimpleString), res.Type)
			assert.Equal(t, tt.want, string(res.String))
		})
	}
}

func TestExpireCommands(t *testing.T) {
	e := setupEngine(t)

	assert.Equal(t, int64(0), e.run("EXPIRE", "missing", "10").Integer)
	assert.Equal(t, "none", string(e.run("TYPE", "missing").String), "expiring a missing key creates nothing")
	assert.Equal(t, int64(-2), e.run("TTL", "missing").Integer)

	e.mustRun(t, "SET", "k", "v")
	assert.Equal(t, int64(-1), e.run("TTL", "k").Integer)

	assert.Equal(t, int64(1), e.run("EXPIRE", "k", "100").Integer)
	assert.InDelta(t, 100, e.run("TTL", "k").Integer, 1)

	assert.Equal(t, int64(1), e.run("PEXPIRE", "k", "20000").Integer)
	assert.InDelta(t, 20000, e.run("PTTL", "k").Integer, 1000)

	at := time.Now().Add(time.Hour)
	assert.Equal(t, int64(1), e.run("PEXPIREAT", "k", itoa(at.UnixMilli())).Integer)
	assert.InDelta(t, 3600, e.run("TTL", "k").Integer, 2)

	assert.Equal(t, int64(1), e.run("EXPIREAT", "k", itoa(at.Unix())).Integer)
	assert.InDelta(t, 3600, e.run("TTL", "k").Integer, 2)

	assert.Equal(t, int64(1), e.run("PERSIST", "k").Integer)
	assert.Equal(t, int64(-1), e.run("TTL", "k").Integer)
	assert.Equal(t, int64(0), e.run("PERSIST", "k").Integer)

	assertError(t, e.run("EXPIRE", "k", "later"), "ERR value is not an integer")
}

// deletingCollection removes a key right after the first lookup of it,
// as a concurrent DEL landing between two steps of a command would
type deletingCollection struct {
	docstore.Collection
	key  string
	done bool
}

func (c *deletingCollection) FindOne(ctx context.Context, f docstore.Filter) (document.Document, error) {
	doc, err := c.Collection.FindOne(ctx, f)
	if !c.done && len(f.Keys) == 1 && f.Keys[0] == c.key {
		c.done = true
		if delErr := c.Collection.DeleteMany(ctx, docstore.ByKey(c.key)); delErr != nil {
			return nil, delErr
		}
	}
	return doc, err
}

func TestExpireKeepsConcurrentlyDeletedKeyDeleted(t *testing.T) {
	for _, cmd := range []string{"EXPIRE", "PEXPIRE", "EXPIREAT", "PEXPIREAT"} {
		t.Run(cmd, func(t *testing.T) {
			store, err := docstore.NewMemory(1)
			require.NoError(t, err)
			coll := &deletingCollection{Collection: store, key: "k"}

			log := zaptest.NewLogger(t)
			e, err := NewEngine(database.New(coll, objectcache.Nop{}, log), coll, &config.Config{}, log)
			require.NoError(t, err)
			t.Cleanup(e.Shutdown)

			ctx := context.Background()
			e.Execute(ctx, "SET", []resp.Value{resp.MakeBulkString("k"), resp.MakeBulkString("v")})
			e.Execute(ctx, cmd, []resp.Value{resp.MakeBulkString("k"), resp.MakeBulkString(itoa(time.Now().Add(time.Hour).Unix()))})

			_, err = store.FindOne(ctx, docstore.ByKey("k"))
			assert.ErrorIs(t, err, docstore.ErrNotFound, "the expiration must not recreate the key")
		})
	}
}

func TestHashCommands(t *testing.T) {
	e := setupEngine(t)

	assert.Equal(t, int64(2), e.run("HSET", "h", "a", "1", "b", "2").Integer)
	assert.Equal(t, int64(1), e.run("HSET", "h", "a", "3", "c", "x").Integer)

	assert.Equal(t, "3", string(e.run("HGET", "h", "a").String))
	assert.True(t, e.run("HGET", "h", "zz").IsNull)
	assert.True(t, e.run("HGET", "missing", "a").IsNull)

	assert.Equal(t, []string{"a", "3", "b", "2", "c", "x"}, texts(t, e.run("HGETALL", "h")))
	assert.Empty(t, e.run("HGETALL", "missing").Array)

	assert.Equal(t, int64(1), e.run("HEXISTS", "h", "c").Integer)
	assert.Equal(t, int64(0), e.run("HEXISTS", "h", "zz").Integer)

	assert.Equal(t, int64(7), e.run("HINCRBY", "h", "b", "5").Integer)
	assert.Equal(t, int64(-1), e.run("HINCRBY", "h", "new", "-1").Integer)
	assertError(t, e.run("HINCRBY", "h", "b", "x"), "ERR value is not an integer")
	assertError(t, e.run("HINCRBY", "h", "c", "1"), "ERR value is not an integer")

	assert.Equal(t, int64(2), e.run("HDEL", "h", "a", "c", "zz").Integer)
	assert.Equal(t, []string{"b", "7", "new", "-1"}, texts(t, e.run("HGETALL", "h")))
}

func TestSetCommands(t *testing.T) {
	e := setupEngine(t)

	assert.Equal(t, int64(2), e.run("SADD", "s", "a", "b", "a").Integer)
	assert.Equal(t, int64(1), e.run("SADD", "s", "b", "c").Integer)
	assert.Equal(t, []string{"a", "b", "c"}, texts(t, e.run("SMEMBERS", "s")))
	assert.Equal(t, int64(3), e.run("SCARD", "s").Integer)

	assert.Equal(t, int64(1), e.run("SISMEMBER", "s", "a").Integer)
	assert.Equal(t, int64(0), e.run("SISMEMBER", "s", "zz").Integer)

	assert.Equal(t, int64(1), e.run("SREM", "s", "a", "zz").Integer)
	assert.Equal(t, int64(0), e.run("SREM", "s", "zz").Integer)
	assert.Equal(t, int64(2), e.run("SREM", "s", "b", "c").Integer)
	assert.Equal(t, int64(0), e.run("EXISTS", "s").Integer, "an emptied set is removed")

	assert.Empty(t, e.run("SMEMBERS", "missing").Array)
	assert.Equal(t, int64(0), e.run("SCARD", "missing").Integer)
}

func TestListCommands(t *testing.T) {
	e := setupEngine(t)

	assert.Equal(t, int64(2), e.run("RPUSH", "l", "a", "b").Integer)
	assert.Equal(t, int64(4), e.run("LPUSH", "l", "x", "y").Integer)
	assert.Equal(t, []string{"y", "x", "a", "b"}, texts(t, e.run("LRANGE", "l", "0", "-1")))
	assert.Equal(t, []string{"x", "a"}, texts(t, e.run("LRANGE", "l", "1", "2")))
	assert.Empty(t, e.run("LRANGE", "l", "5", "10").Array)

	assert.Equal(t, "b", string(e.run("RPOP", "l").String))
	assert.Equal(t, int64(3), e.run("LLEN", "l").Integer)

	e.mustRun(t, "RPUSH", "l", "x")
	assert.Equal(t, int64(2), e.run("LREM", "l", "0", "x").Integer)
	assert.Equal(t, []string{"y", "a"}, texts(t, e.run("LRANGE", "l", "0", "-1")))
	assertError(t, e.run("LREM", "l", "1", "a"), "ERR only a count of 0")
	assertError(t, e.run("LRANGE", "l", "a", "1"), "ERR value is not an integer")

	assert.True(t, e.run("RPOP", "missing").IsNull)
	assert.Equal(t, int64(0), e.run("LLEN", "missing").Integer)
}

func TestSortedSetCommands(t *testing.T) {
	e := setupEngine(t)

	assert.Equal(t, int64(3), e.run("ZADD", "z", "1", "a", "2", "b", "3", "c").Integer)
	assert.Equal(t, int64(1), e.run("ZADD", "z", "5", "a", "4", "d").Integer)
	assert.Equal(t, int64(4), e.run("ZCARD", "z").Integer)

	tests := []struct {
		name string
		cmd  string
		args []string
		want []string
	}{
		{"all ascending", "ZRANGE", []string{"z", "0", "-1"}, []string{"b", "c", "d", "a"}},
		{"with scores", "ZRANGE", []string{"z", "0", "1", "withscores"}, []string{"b", "2", "c", "3"}},
		{"negative window", "ZRANGE", []string{"z", "-2", "-1"}, []string{"d", "a"}},
		{"top one", "ZREVRANGE", []string{"z", "0", "0"}, []string{"a"}},
		{"descending with scores", "ZREVRANGE", []string{"z", "0", "1", "WITHSCORES"}, []string{"a", "5", "d", "4"}},
		{"out of range", "ZRANGE", []string{"z", "10", "20"}, []string{}},
		{"missing key", "ZRANGE", []string{"nope", "0", "-1"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, texts(t, e.run(tt.cmd, tt.args...)))
		})
	}

	assert.Equal(t, "5", string(e.run("ZSCORE", "z", "a").String))
	assert.True(t, e.run("ZSCORE", "z", "zz").IsNull)
	assert.Equal(t, "3.5", string(e.run("ZINCRBY", "z", "1.5", "b").String))

	assert.Equal(t, int64(1), e.run("ZREM", "z", "a", "zz").Integer)
	assert.Equal(t, int64(3), e.run("ZCARD", "z").Integer)

	assertError(t, e.run("ZADD", "z", "x", "a"), "ERR value is not a valid float")
	assertError(t, e.run("ZADD", "z", "1", "a", "2"), "ERR syntax error")
	assertError(t, e.run("ZRANGE", "z", "0", "1", "BYSCORE"), "ERR syntax error")
	assertError(t, e.run("ZINCRBY", "z", "lots", "b"), "ERR value is not a valid float")
}

func TestWrongType(t *testing.T) {
	e := setupEngine(t)
	e.mustRun(t, "SET", "k", "v")

	tests := [][]string{
		{"SADD", "k", "a"},
		{"SMEMBERS", "k"},
		{"LPUSH", "k", "a"},
		{"LLEN", "k"},
		{"HGETALL", "k"},
		{"ZRANGE", "k", "0", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt[0], func(t *testing.T) {
			assertError(t, e.run(tt[0], tt[1:]...), "WRONGTYPE")
		})
	}

	assert.Equal(t, "v", string(e.run("GET", "k").String), "rejected commands leave the value alone")
}

func TestFlush(t *testing.T) {
	for _, name := range []string{"FLUSHDB", "FLUSHALL"} {
		t.Run(name, func(t *testing.T) {
			e := setupEngine(t)
			e.mustRun(t, "SET", "a", "1")
			e.mustRun(t, "HSET", "h", "f", "v")
			e.mustRun(t, "HGETALL", "h")

			assert.Equal(t, "OK", string(e.run(name).String))
			assert.Equal(t, int64(0), e.run("EXISTS", "a", "h").Integer)
			assert.Empty(t, e.run("HGETALL", "h").Array, "the cache is reset too")
		})
	}
}

func TestCommandIntrospection(t *testing.T) {
	e := setupEngine(t)

	assert.Equal(t, int64(len(commandRegistry)), e.run("COMMAND", "COUNT").Integer)
	assert.Len(t, e.run("COMMAND").Array, len(commandRegistry))
	assertError(t, e.run("COMMAND", "BOGUS"), "ERR unknown subcommand")

	docs := e.run("COMMAND", "DOCS", "get")
	require.Len(t, docs.Array, 2)
	assert.Equal(t, "get", string(docs.Array[0].String))

	// every handler is described and every description has a handler
	for name := range e.commands {
		assert.Contains(t, commandRegistry, name)
		assert.Contains(t, commandDocsRegistry, name)
	}
	assert.Len(t, commandRegistry, len(e.commands))
	assert.Len(t, commandDocsRegistry, len(e.commands))
}

func TestCommandMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, &config.Config{}, WithRegisterer(reg))

	e.mustRun(t, "SET", "k", "v")
	e.run("INCR", "k")
	e.run("nope")

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.commands.WithLabelValues("SET", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.commands.WithLabelValues("INCR", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(e.metrics.commands), "unknown commands are not counted")
	assert.Equal(t, 2, testutil.CollectAndCount(e.metrics.duration))

	store, err := docstore.NewMemory(1)
	require.NoError(t, err)
	_, err = NewEngine(database.New(store, objectcache.Nop{}, zaptest.NewLogger(t)), store, &config.Config{}, zaptest.NewLogger(t), WithRegisterer(reg))
	assert.Error(t, err, "metrics cannot be registered twice")
}

func TestSweep(t *testing.T) {
	e := setupEngine(t)
	e.cfg.Sweep = config.DefaultSweepConfig()

	e.mustRun(t, "SET", "gone", "1")
	e.mustRun(t, "SET", "kept", "1")
	e.mustRun(t, "EXPIRE", "kept", "100")
	assert.Equal(t, int64(1), e.run("PEXPIREAT", "gone", "1").Integer)

	// expired records stay visible until swept
	assert.Equal(t, int64(-2), e.run("PTTL", "gone").Integer)
	assert.Equal(t, int64(2), e.run("EXISTS", "gone", "kept").Integer)

	e.sweep(e.store)

	assert.Equal(t, int64(0), e.run("EXISTS", "gone").Integer)
	assert.Equal(t, int64(1), e.run("EXISTS", "kept").Integer)
}

func TestSweepLoop(t *testing.T) {
	cfg := &config.Config{Sweep: config.DefaultSweepConfig()}
	cfg.Sweep.Interval = 10 * time.Millisecond
	e := newTestEngine(t, cfg)

	e.mustRun(t, "SET", "k", "v")
	e.mustRun(t, "PEXPIRE", "k", "1")

	require.Eventually(t, func() bool {
		return e.run("EXISTS", "k").Integer == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSnapshots(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "objects.snapshot")
	cfg := &config.Config{Snapshot: config.SnapshotConfig{Enabled: true, Filename: filename}}

	e := newTestEngine(t, cfg)
	e.mustRun(t, "SET", "k", "v")
	e.mustRun(t, "ZADD", "z", "1", "a", "2", "b")
	assert.Equal(t, "OK", string(e.run("SAVE").String))

	restored := newTestEngine(t, cfg)
	assert.Equal(t, "v", string(restored.run("GET", "k").String))
	assert.Equal(t, []string{"a", "b"}, texts(t, restored.run("ZRANGE", "z", "0", "-1")))

	e.mustRun(t, "SET", "later", "1")
	assert.Equal(t, "Background saving started", string(e.run("BGSAVE").String))
	require.Eventually(t, func() bool { return !e.snapshots.InProgress() }, 2*time.Second, 5*time.Millisecond)

	again := newTestEngine(t, cfg)
	assert.Equal(t, "1", string(again.run("GET", "later").String))
}

func TestSnapshotsDisabled(t *testing.T) {
	e := setupEngine(t)
	assertError(t, e.run("SAVE"), "ERR snapshots are disabled")
	assertError(t, e.run("BGSAVE"), "ERR snapshots are disabled")
}

func TestShutdownWritesFinalSnapshot(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "objects.snapshot")
	cfg := &config.Config{Snapshot: config.SnapshotConfig{Enabled: true, Filename: filename, Interval: time.Hour}}

	e := newTestEngine(t, cfg)
	e.mustRun(t, "HSET", "h", "f", "v")
	e.Shutdown()
	e.Shutdown()

	restored := newTestEngine(t, cfg)
	assert.Equal(t, "v", string(restored.run("HGET", "h", "f").String))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
