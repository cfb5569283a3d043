package server

import (
	"strings"

	"github.com/eternalApril/objectdb/internal/resp"
)

func get(ctx *commandContext) resp.Value {
	v, err := ctx.db.Get(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	return replyValue(v)
}

// set handles SET key value [EX seconds | PX milliseconds].
// An existing expiration is kept unless a new one is given.
func set(ctx *commandContext) resp.Value {
	key := ctx.arg(0)

	var applyExpire func() error
	for i := 2; i < len(ctx.args); i++ {
		opt := strings.ToUpper(ctx.arg(i))
		if (opt != "EX" && opt != "PX") || applyExpire != nil || i+1 >= len(ctx.args) {
			return errSyntax
		}

		n, ok := parseInt(ctx.args[i+1])
		if !ok {
			return errNotInteger
		}
		if n <= 0 {
			return resp.MakeError("ERR invalid expire time in 'set' command")
		}

		if opt == "EX" {
			applyExpire = func() error { return ctx.db.Expire(ctx.ctx, key, n) }
		} else {
			applyExpire = func() error { return ctx.db.PExpire(ctx.ctx, key, n) }
		}
		i++
	}

	if err := ctx.db.Set(ctx.ctx, key, storedValue(ctx.arg(1))); err != nil {
		return replyError(err)
	}
	if applyExpire != nil {
		if err := applyExpire(); err != nil {
			return replyError(err)
		}
	}
	return resp.MakeOK()
}

func incr(ctx *commandContext) resp.Value {
	n, err := ctx.db.Increment(ctx.ctx, ctx.arg(0))
	if err != nil {
		return replyError(err)
	}
	return resp.MakeInteger(n)
}
