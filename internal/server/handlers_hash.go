package server

import (
	"sort"

	"github.com/eternalApril/objectdb/internal/resp"
)

func hset(ctx *commandContext) resp.Value {
	if len(ctx.args)%2 == 0 {
		return resp.MakeErrorWrongNumberOfArguments("hset")
	}
	key := ctx.arg(0)

	before, err := ctx.db.GetObject(ctx.ctx, key)
	if err != nil {
		return replyError(err)
	}

	fields := make(map[string]any, (len(ctx.args)-1)/2)
	for i := 1; i < len(ctx.args); i += 2 {
		fields[ctx.arg(i)] = storedValue(ctx.arg(i + 1))
	}

	var added int64
	for field := range fields {
		if _, ok := before[field]; !ok {
			added++
		}
	}

	if err := ctx.db.SetObject(ctx.ctx, key, fields); err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(added)
}

func hget(ctx *commandContext) resp.Value {
	v, err := ctx.db.GetObjectField(ctx.ctx, ctx.arg(0), ctx.arg(1))
	if err != nil {
		return replyError(err)
	}
	return replyValue(v)
}

func hgetall(ctx *commandContext) resp.Value {
	h, err := ctx.db.GetObject(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}

	fields := make([]string, 0, len(h))
	for field := range h {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	out := make([]resp.Value, 0, 2*len(fields))
	for _, field := range fields {
		out = append(out, resp.MakeBulkString(field), replyValue(h[field]))
	}
	return resp.MakeArray(out)
}

func hdel(ctx *commandContext) resp.Value {
	n, err := ctx.db.DeleteObjectFields(ctx.ctx, ctx.arg(0), ctx.argsFrom(1)...)
	if err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(n)
}

func hexists(ctx *commandContext) resp.Value {
	ok, err := ctx.db.IsObjectField(ctx.ctx, ctx.arg(0), ctx.arg(1))
	if err != nil {
		return replyError(err)
	}
	return resp.MakeBool(ok)
}

func hincrby(ctx *commandContext) resp.Value {
	delta, ok := parseInt(ctx.args[2])
	if !ok {
		return errNotInteger
	}

	n, err := ctx.db.IncrObjectFieldBy(ctx.ctx, ctx.arg(0), ctx.arg(1), delta)
	if err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(n)
}
