package server

import (
	"github.com/eternalApril/objectdb/internal/resp"
)

// membership returns the current members of the set at key as a lookup table
func membership(ctx *commandContext, key string) (map[string]struct{}, error) {
	members, err := ctx.db.GetSetMembers(ctx.ctx, key)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(members))
	for _, m := range members {
		out[m] = struct{}{}
	}
	return out, nil
}

func sadd(ctx *commandContext) resp.Value {
	key, members := ctx.arg(0), ctx.argsFrom(1)

	current, err := membership(ctx, key)
	if err != nil {
		return replyError(err)
	}

	var added int64
	for _, m := range members {
		if _, ok := current[m]; !ok {
			current[m] = struct{}{}
			added++
		}
	}

	if err := ctx.db.SetAdd(ctx.ctx, key, members...); err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(added)
}

func srem(ctx *commandContext) resp.Value {
	key, members := ctx.arg(0), ctx.argsFrom(1)

	current, err := membership(ctx, key)
	if err != nil {
		return replyError(err)
	}

	var removed int64
	for _, m := range members {
		if _, ok := current[m]; ok {
			delete(current, m)
			removed++
		}
	}
	if removed == 0 {
		return resp.MakeInteger(0)
	}

	if err := ctx.db.SetRemove(ctx.ctx, key, members...); err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(removed)
}

func sismember(ctx *commandContext) resp.Value {
	ok, err := ctx.db.IsSetMember(ctx.ctx, ctx.arg(0), ctx.arg(1))
	if err != nil {
		return replyError(err)
	}
	return resp.MakeBool(ok)
}

func smembers(ctx *commandContext) resp.Value {
	members, err := ctx.db.GetSetMembers(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	return resp.MakeBulkArray(members)
}

func scard(ctx *commandContext) resp.Value {
	n, err := ctx.db.SetCount(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(n)
}
