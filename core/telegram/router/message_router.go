package router

import (
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/communitybot/core/telegram"
)

// Conversation is a multi-step dialogue that may own the next message of a chat.
type Conversation interface {
	Name() string
	// Claims reports whether the conversation is waiting for a message in c's chat.
	Claims(c tele.Context) (bool, error)
	HandleMessage(c tele.Context) error
}

// MessageOptions controls fallback behaviour for text and media updates.
type MessageOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

type messageRouter struct {
	reg   *tg.Registry
	convs []Conversation
	opts  MessageOptions
}

// MessageRoutes builds the text and media handlers. Conversations are asked
// in order and the first claiming one receives the message; plain text then
// falls back to public command aliases and the registry text fallback.
func MessageRoutes(reg *tg.Registry, convs []Conversation, opts MessageOptions) []tg.Route {
	r := &messageRouter{reg: reg, convs: convs, opts: opts}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: guarded(r.text)},
		{Endpoint: tele.OnMedia, Handler: guarded(r.media)},
	}
}

// claim hands c to the first conversation waiting for it.
func (r *messageRouter) claim(c tele.Context, start time.Time) (bool, error) {
	for _, conv := range r.convs {
		if conv == nil {
			continue
		}
		ok, err := conv.Claims(c)
		if err != nil {
			return true, err
		}
		if ok {
			return true, traced(c, handlerName("conversation", conv.Name()), start, func() error {
				return conv.HandleMessage(c)
			})
		}
	}
	return false, nil
}

func (r *messageRouter) text(c tele.Context) error {
	start := time.Now()
	if handled, err := r.claim(c, start); handled {
		return err
	}
	if r.reg != nil {
		// Gated commands only run through their own route, which checks access.
		if key, cmd, ok := r.reg.LookupCommand(c.Text()); ok && cmd.Access == nil {
			return traced(c, handlerName("command", key), start, func() error { return cmd.Handler(c) })
		}
		if fb := r.reg.TextFallback(); fb != nil {
			return traced(c, "fallback", start, func() error { return fb(c) })
		}
	}
	return r.fallback(c, "unknown_text", start, r.opts.UnknownText)
}

func (r *messageRouter) media(c tele.Context) error {
	start := time.Now()
	if handled, err := r.claim(c, start); handled {
		return err
	}
	return r.fallback(c, "unexpected_media", start, r.opts.UnknownMedia)
}

func (r *messageRouter) fallback(c tele.Context, name string, start time.Time, h tele.HandlerFunc) error {
	if h == nil {
		skipped(c, name, start)
		return nil
	}
	return traced(c, name, start, func() error { return h(c) })
}
