package server

import (
	"context"
	"strings"

	"github.com/eternalApril/objectdb/internal/document"
	"github.com/eternalApril/objectdb/internal/resp"
)

// zadd handles ZADD key score member [score member ...]
func zadd(ctx *commandContext) resp.Value {
	if len(ctx.args)%2 == 0 {
		return errSyntax
	}
	key := ctx.arg(0)

	members := make([]document.Member, 0, (len(ctx.args)-1)/2)
	for i := 1; i < len(ctx.args); i += 2 {
		score, ok := parseFloat(ctx.args[i])
		if !ok {
			return errNotFloat
		}
		members = append(members, document.Member{Value: ctx.arg(i + 1), Score: score})
	}

	var added int64
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if _, dup := seen[m.Value]; dup {
			continue
		}
		seen[m.Value] = struct{}{}

		_, exists, err := ctx.db.SortedSetScore(ctx.ctx, key, m.Value)
		if err != nil {
			return replyError(err)
		}
		if !exists {
			added++
		}
	}

	if err := ctx.db.SortedSetAdd(ctx.ctx, key, members...); err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(added)
}

func zrem(ctx *commandContext) resp.Value {
	key, values := ctx.arg(0), ctx.argsFrom(1)

	var removed int64
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}

		_, exists, err := ctx.db.SortedSetScore(ctx.ctx, key, v)
		if err != nil {
			return replyError(err)
		}
		if exists {
			removed++
		}
	}

	if err := ctx.db.SortedSetRemove(ctx.ctx, key, values...); err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(removed)
}

func zscore(ctx *commandContext) resp.Value {
	score, ok, err := ctx.db.SortedSetScore(ctx.ctx, ctx.arg(0), ctx.arg(1))
	if err != nil {
		return replyError(err)
	}
	if !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeBulkString(formatScore(score))
}

func zincrby(ctx *commandContext) resp.Value {
	delta, ok := parseFloat(ctx.args[1])
	if !ok {
		return errNotFloat
	}

	score, err := ctx.db.SortedSetIncrBy(ctx.ctx, ctx.arg(0), ctx.arg(2), delta)
	if err != nil {
		return replyError(err)
	}
	return resp.MakeBulkString(formatScore(score))
}

type rangeFunc func(ctx context.Context, key string, start, stop int64) ([]document.Member, error)

// zrangeWith handles key start stop [WITHSCORES]
func zrangeWith(ctx *commandContext, fetch rangeFunc) resp.Value {
	start, ok := parseInt(ctx.args[1])
	if !ok {
		return errNotInteger
	}
	stop, ok := parseInt(ctx.args[2])
	if !ok {
		return errNotInteger
	}

	withScores := false
	switch len(ctx.args) {
	case 3:
	case 4:
		if !strings.EqualFold(ctx.arg(3), "WITHSCORES") {
			return errSyntax
		}
		withScores = true
	default:
		return errSyntax
	}

	members, err := fetch(ctx.ctx, ctx.arg(0), start, stop)
	if err != nil {
		return replyError(err)
	}

	out := make([]resp.Value, 0, len(members)*2)
	for _, m := range members {
		out = append(out, resp.MakeBulkString(m.Value))
		if withScores {
			out = append(out, resp.MakeBulkString(formatScore(m.Score)))
		}
	}
	return resp.MakeArray(out)
}

func zrange(ctx *commandContext) resp.Value {
	return zrangeWith(ctx, ctx.db.GetSortedSetRange)
}

func zrevrange(ctx *commandContext) resp.Value {
	return zrangeWith(ctx, ctx.db.GetSortedSetRevRange)
}

func zcard(ctx *commandContext) resp.Value {
	n, err := ctx.db.SortedSetCard(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(n)
}
