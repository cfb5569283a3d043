package server

import (
	"errors"
	"strconv"

	"github.com/eternalApril/objectdb/internal/database"
	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/document"
	"github.com/eternalApril/objectdb/internal/resp"
)

var (
	errNotInteger = resp.MakeError("ERR value is not an integer or out of range")
	errNotFloat   = resp.MakeError("ERR value is not a valid float")
	errSyntax     = resp.MakeError("ERR syntax error")
	errOverflow   = resp.MakeError("ERR increment or decrement would overflow")
)

// registerCommands fills the registry with every supported command
func (e *Engine) registerCommands() {
	e.register("PING", commandFunc(ping))
	e.register("COMMAND", commandFunc(cmd))
	e.register("SAVE", commandFunc(e.save))
	e.register("BGSAVE", commandFunc(e.bgsave))

	e.register("GET", commandFunc(get))
	e.register("SET", commandFunc(set))
	e.register("INCR", commandFunc(incr))

	e.register("DEL", commandFunc(del))
	e.register("EXISTS", commandFunc(exists))
	e.register("RENAME", commandFunc(rename))
	e.register("TYPE", commandFunc(typ))
	e.register("EXPIRE", commandFunc(expire))
	e.register("PEXPIRE", commandFunc(pexpire))
	e.register("EXPIREAT", commandFunc(expireat))
	e.register("PEXPIREAT", commandFunc(pexpireat))
	e.register("TTL", commandFunc(ttl))
	e.register("PTTL", commandFunc(pttl))
	e.register("PERSIST", commandFunc(persist))
	e.register("FLUSHDB", commandFunc(flushdb))
	e.register("FLUSHALL", commandFunc(flushall))

	e.register("HSET", commandFunc(hset))
	e.register("HGET", commandFunc(hget))
	e.register("HGETALL", commandFunc(hgetall))
	e.register("HDEL", commandFunc(hdel))
	e.register("HEXISTS", commandFunc(hexists))
	e.register("HINCRBY", commandFunc(hincrby))

	e.register("SADD", commandFunc(sadd))
	e.register("SREM", commandFunc(srem))
	e.register("SISMEMBER", commandFunc(sismember))
	e.register("SMEMBERS", commandFunc(smembers))
	e.register("SCARD", commandFunc(scard))

	e.register("LPUSH", commandFunc(lpush))
	e.register("RPUSH", commandFunc(rpush))
	e.register("RPOP", commandFunc(rpop))
	e.register("LRANGE", commandFunc(lrange))
	e.register("LREM", commandFunc(lrem))
	e.register("LLEN", commandFunc(llen))

	e.register("ZADD", commandFunc(zadd))
	e.register("ZREM", commandFunc(zrem))
	e.register("ZSCORE", commandFunc(zscore))
	e.register("ZINCRBY", commandFunc(zincrby))
	e.register("ZRANGE", commandFunc(zrange))
	e.register("ZREVRANGE", commandFunc(zrevrange))
	e.register("ZCARD", commandFunc(zcard))
}

// replyError translates a database error into a RESP error
func replyError(err error) resp.Value {
	switch {
	case errors.Is(err, database.ErrWrongType):
		return resp.MakeError(database.ErrWrongType.Error())
	case errors.Is(err, docstore.ErrOverflow):
		return errOverflow
	case errors.Is(err, docstore.ErrNotNumeric), errors.Is(err, document.ErrNotInteger):
		return errNotInteger
	case errors.Is(err, document.ErrNotFloat):
		return errNotFloat
	}
	return resp.MakeError("ERR " + err.Error())
}

func parseInt(v resp.Value) (int64, bool) {
	n, err := strconv.ParseInt(string(v.String), 10, 64)
	return n, err == nil
}

func parseFloat(v resp.Value) (float64, bool) {
	f, err := strconv.ParseFloat(string(v.String), 64)
	return f, err == nil
}

// storedValue keeps canonical integers numeric, so the store can increment them
func storedValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return n
	}
	return s
}

// replyValue renders a stored value, nil as a nil bulk string
func replyValue(v any) resp.Value {
	if v == nil {
		return resp.MakeNilBulkString()
	}
	return resp.MakeBulkString(document.ToString(v))
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
