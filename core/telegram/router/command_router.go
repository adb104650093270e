package router

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/logger"
	tg "github.com/m3rciful/communitybot/core/telegram"
	"github.com/m3rciful/communitybot/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	// OnReject runs when a command's Access check denies the sender; nil drops silently.
	OnReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
// Commands carrying an Access predicate are gated on every invocation.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	gated := 0
	for cmd, def := range cmds {
		h := wrapCommand(cmd, def.Handler)
		if def.Access != nil {
			gated++
			h = middleware.AccessMiddleware(middleware.AccessOptions{
				Allow:    def.Access,
				OnReject: opts.OnReject,
			})(h)
		}
		h = guarded(h)
		routes = append(routes, tg.Route{Endpoint: cmd, Handler: h})
		for _, alias := range def.Aliases {
			routes = append(routes, tg.Route{Endpoint: alias, Handler: h})
		}
	}

	logger.Info(context.Background(), "tg.wire", "commands.routed",
		slog.Int("commands", len(cmds)),
		slog.Int("gated", gated),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}

func wrapCommand(cmd string, h tele.HandlerFunc) tele.HandlerFunc {
	name := handlerName("command", cmd)
	return func(c tele.Context) error {
		return traced(c, name, time.Now(), func() error { return h(c) })
	}
}
