package router

import (
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/communitybot/core/telegram"
)

// EventRoute binds h to a non-message endpoint such as tele.OnChatMember with
// the same recovery and summary logging as commands.
func EventRoute(endpoint string, name string, h tele.HandlerFunc) tg.Route {
	name = handlerName("event", name)
	return tg.Route{
		Endpoint: endpoint,
		Handler: guarded(func(c tele.Context) error {
			return traced(c, name, time.Now(), func() error { return h(c) })
		}),
	}
}
