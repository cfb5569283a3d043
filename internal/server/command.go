package server

import (
	"context"

	"github.com/eternalApril/objectdb/internal/database"
	"github.com/eternalApril/objectdb/internal/resp"
)

// commandContext carries one command invocation. Arguments exclude the command name.
type commandContext struct {
	ctx  context.Context
	args []resp.Value
	db   *database.DB
}

// arg returns argument i as a string
func (c *commandContext) arg(i int) string {
	return c.args[i].Text()
}

// argsFrom returns every argument starting at i as strings
func (c *commandContext) argsFrom(i int) []string {
	out := make([]string, 0, len(c.args)-i)
	for _, v := range c.args[i:] {
		out = append(out, v.Text())
	}
	return out
}

type command interface {
	execute(ctx *commandContext) resp.Value
}

type commandFunc func(ctx *commandContext) resp.Value

func (f commandFunc) execute(ctx *commandContext) resp.Value {
	return f(ctx)
}
