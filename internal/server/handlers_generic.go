package server

import (
	"errors"
	"strings"

	"github.com/eternalApril/objectdb/internal/database"
	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/persistence"
	"github.com/eternalApril/objectdb/internal/resp"
)

func ping(ctx *commandContext) resp.Value {
	if len(ctx.args) == 0 {
		return resp.MakeSimpleString("PONG")
	}
	if len(ctx.args) == 1 {
		return resp.MakeBulkString(ctx.arg(0))
	}
	return resp.MakeErrorWrongNumberOfArguments("ping")
}

func cmd(ctx *commandContext) resp.Value {
	if len(ctx.args) == 0 {
		return getAllCommands()
	}

	switch strings.ToUpper(ctx.arg(0)) {
	case "DOCS":
		return getCommandsDocs(ctx.args[1:])
	case "COUNT":
		return resp.MakeInteger(int64(len(commandRegistry)))
	}
	return resp.MakeError("ERR unknown subcommand '" + ctx.arg(0) + "'")
}

func del(ctx *commandContext) resp.Value {
	keys := ctx.argsFrom(0)

	present, err := ctx.db.ExistsMany(ctx.ctx, keys)
	if err != nil {
		return replyError(err)
	}

	deleted := make(map[string]struct{}, len(keys))
	for i, ok := range present {
		if ok {
			deleted[keys[i]] = struct{}{}
		}
	}

	if err := ctx.db.DeleteAll(ctx.ctx, keys); err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(int64(len(deleted)))
}

func exists(ctx *commandContext) resp.Value {
	present, err := ctx.db.ExistsMany(ctx.ctx, ctx.argsFrom(0))
	if err != nil {
		return replyError(err)
	}

	var n int64
	for _, ok := range present {
		if ok {
			n++
		}
	}
	return resp.MakeInteger(n)
}

func rename(ctx *commandContext) resp.Value {
	ok, err := ctx.db.Exists(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	if !ok {
		return resp.MakeError("ERR no such key")
	}

	if err := ctx.db.Rename(ctx.ctx, ctx.arg(0), ctx.arg(1)); err != nil {
		return replyError(err)
	}
	return resp.MakeOK()
}

func typ(ctx *commandContext) resp.Value {
	t, err := ctx.db.Type(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	return resp.MakeSimpleString(t.String())
}

// expireWith runs an expiration on an existing key. Missing keys reply 0
// and are left alone, including keys deleted after the existence check.
func expireWith(ctx *commandContext, apply func(db *database.DB, key string, n int64) error) resp.Value {
	n, ok := parseInt(ctx.args[1])
	if !ok {
		return errNotInteger
	}

	exists, err := ctx.db.Exists(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	if !exists {
		return resp.MakeInteger(0)
	}

	if err := apply(ctx.db.ExistingOnly(), ctx.arg(0), n); err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(1)
}

func expire(ctx *commandContext) resp.Value {
	return expireWith(ctx, func(db *database.DB, key string, n int64) error { return db.Expire(ctx.ctx, key, n) })
}

func pexpire(ctx *commandContext) resp.Value {
	return expireWith(ctx, func(db *database.DB, key string, n int64) error { return db.PExpire(ctx.ctx, key, n) })
}

func expireat(ctx *commandContext) resp.Value {
	return expireWith(ctx, func(db *database.DB, key string, n int64) error { return db.ExpireAt(ctx.ctx, key, n) })
}

func pexpireat(ctx *commandContext) resp.Value {
	return expireWith(ctx, func(db *database.DB, key string, n int64) error { return db.PExpireAt(ctx.ctx, key, n) })
}

func ttl(ctx *commandContext) resp.Value {
	n, err := ctx.db.TTL(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(n)
}

func pttl(ctx *commandContext) resp.Value {
	n, err := ctx.db.PTTL(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(n)
}

func persist(ctx *commandContext) resp.Value {
	removed, err := ctx.db.Persist(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	return resp.MakeBool(removed)
}

func flushdb(ctx *commandContext) resp.Value {
	if err := ctx.db.EmptyDB(ctx.ctx); err != nil {
		return replyError(err)
	}
	return resp.MakeOK()
}

func flushall(ctx *commandContext) resp.Value {
	if err := ctx.db.FlushDB(ctx.ctx); err != nil {
		return replyError(err)
	}
	return resp.MakeOK()
}

func (e *Engine) snapshotter() (docstore.Snapshotter, bool) {
	if e.snapshots == nil {
		return nil, false
	}
	src, ok := e.store.(docstore.Snapshotter)
	return src, ok
}

func (e *Engine) save(_ *commandContext) resp.Value {
	src, ok := e.snapshotter()
	if !ok {
		return resp.MakeError("ERR snapshots are disabled")
	}
	if err := e.snapshots.Save(src); err != nil {
		return replyError(err)
	}
	return resp.MakeOK()
}

func (e *Engine) bgsave(_ *commandContext) resp.Value {
	src, ok := e.snapshotter()
	if !ok {
		return resp.MakeError("ERR snapshots are disabled")
	}
	if err := e.snapshots.SaveInBackground(src); err != nil {
		if errors.Is(err, persistence.ErrSaveInProgress) {
			return resp.MakeError("ERR Background save already in progress")
		}
		return replyError(err)
	}
	return resp.MakeSimpleString("Background saving started")
}
