package server

import (
	"context"

	"github.com/eternalApril/objectdb/internal/resp"
)

// push appends or prepends and replies the new length
func push(ctx *commandContext, apply func(ctx context.Context, key string, values ...string) error) resp.Value {
	key := ctx.arg(0)

	if _, err := ctx.db.ListLength(ctx.ctx, key); err != nil {
		return replyError(err)
	}
	if err := apply(ctx.ctx, key, ctx.argsFrom(1)...); err != nil {
		return replyError(err)
	}

	n, err := ctx.db.ListLength(ctx.ctx, key)
	if err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(n)
}

func lpush(ctx *commandContext) resp.Value {
	return push(ctx, ctx.db.ListPrepend)
}

func rpush(ctx *commandContext) resp.Value {
	return push(ctx, ctx.db.ListAppend)
}

func rpop(ctx *commandContext) resp.Value {
	v, ok, err := ctx.db.ListRemoveLast(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	if !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeBulkString(v)
}

func lrange(ctx *commandContext) resp.Value {
	start, ok := parseInt(ctx.args[1])
	if !ok {
		return errNotInteger
	}
	stop, ok := parseInt(ctx.args[2])
	if !ok {
		return errNotInteger
	}

	elements, err := ctx.db.GetListRange(ctx.ctx, ctx.arg(0), start, stop)
	if err != nil {
		return replyError(err)
	}
	return resp.MakeBulkArray(elements)
}

// lrem handles LREM key 0 element, removing every occurrence
func lrem(ctx *commandContext) resp.Value {
	count, ok := parseInt(ctx.args[1])
	if !ok {
		return errNotInteger
	}
	if count != 0 {
		return resp.MakeError("ERR only a count of 0 is supported")
	}
	key := ctx.arg(0)

	before, err := ctx.db.ListLength(ctx.ctx, key)
	if err != nil {
		return replyError(err)
	}
	if err := ctx.db.ListRemoveAll(ctx.ctx, key, ctx.arg(2)); err != nil {
		return replyError(err)
	}
	after, err := ctx.db.ListLength(ctx.ctx, key)
	if err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(before - after)
}

func llen(ctx *commandContext) resp.Value {
	n, err := ctx.db.ListLength(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(n)
}
