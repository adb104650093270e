package router

import (
	"context"
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/communitybot/core/telegram"
	"github.com/m3rciful/communitybot/core/telegram/commands"
)

func newBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}
	return b
}

func textCtx(b *tele.Bot, id int, userID int64, text string) tele.Context {
	user := &tele.User{ID: userID}
	return b.NewContext(tele.Update{
		ID: id,
		Message: &tele.Message{
			ID:     id,
			Sender: user,
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Text:   text,
		},
	})
}

func photoCtx(b *tele.Bot, id int, userID int64, album string) tele.Context {
	user := &tele.User{ID: userID}
	return b.NewContext(tele.Update{
		ID: id,
		Message: &tele.Message{
			ID:      id,
			Sender:  user,
			Chat:    &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Photo:   &tele.Photo{File: tele.File{FileID: "p"}},
			AlbumID: album,
		},
	})
}

func callbackCtx(b *tele.Bot, id int, userID int64, unique, data string) tele.Context {
	user := &tele.User{ID: userID}
	return b.NewContext(tele.Update{
		ID: id,
		Callback: &tele.Callback{
			ID:     "cb",
			Sender: user,
			Unique: unique,
			Data:   data,
			Message: &tele.Message{
				ID:   1,
				Chat: &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			},
		},
	})
}

func routeFor(t *testing.T, routes []tg.Route, endpoint any) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("no route for %v", endpoint)
	return nil
}

type fakeConversation struct {
	name    string
	claim   bool
	handled int
}

func (f *fakeConversation) Name() string                      { return f.name }
func (f *fakeConversation) Claims(tele.Context) (bool, error) { return f.claim, nil }
func (f *fakeConversation) HandleMessage(tele.Context) error {
	f.handled++
	return nil
}

func TestMessageRoutesPreferClaimingConversation(t *testing.T) {
	b := newBot(t)
	panel := &fakeConversation{name: "admin_panel"}
	manage := &fakeConversation{name: "admin_manage", claim: true}
	fallbacks := 0
	reg := tg.NewRegistry()
	reg.SetTextFallback(func(tele.Context) error { fallbacks++; return nil })

	routes := MessageRoutes(reg, []Conversation{panel, manage}, MessageOptions{})
	text := routeFor(t, routes, tele.OnText)
	media := routeFor(t, routes, tele.OnMedia)

	if err := text(textCtx(b, 1, 5, "12345")); err != nil {
		t.Fatalf("text: %v", err)
	}
	if err := media(photoCtx(b, 2, 5, "album")); err != nil {
		t.Fatalf("media: %v", err)
	}
	if manage.handled != 2 || panel.handled != 0 {
		t.Fatalf("handled panel=%d manage=%d", panel.handled, manage.handled)
	}

	manage.claim = false
	_ = text(textCtx(b, 3, 5, "hello"))
	if fallbacks != 1 {
		t.Fatalf("fallbacks = %d, want 1", fallbacks)
	}
}

func TestMessageRoutesResolveAliasesButNotGatedCommands(t *testing.T) {
	b := newBot(t)
	reg := tg.NewRegistry()
	started, admin := 0, 0
	reg.RegisterCommand("/start", commands.Command{
		Handler:     func(tele.Context) error { started++; return nil },
		Description: "Start",
		Aliases:     []string{"begin"},
	})
	reg.RegisterCommand("/admin", commands.Command{
		Handler:     func(tele.Context) error { admin++; return nil },
		Description: "Admin",
		Aliases:     []string{"panel"},
		Access:      func(context.Context, int64) (bool, error) { return false, nil },
	})

	text := routeFor(t, MessageRoutes(reg, nil, MessageOptions{}), tele.OnText)
	_ = text(textCtx(b, 1, 5, "begin"))
	_ = text(textCtx(b, 2, 5, "panel"))
	if started != 1 || admin != 0 {
		t.Fatalf("started=%d admin=%d", started, admin)
	}
}

func TestCommandRoutesApplyAccess(t *testing.T) {
	b := newBot(t)
	reg := tg.NewRegistry()
	admins := map[int64]bool{}
	calls, rejected := 0, 0
	reg.RegisterCommand("/admin", commands.Command{
		Handler:     func(tele.Context) error { calls++; return nil },
		Description: "Admin",
		Aliases:     []string{"panel"},
		Access:      func(_ context.Context, id int64) (bool, error) { return admins[id], nil },
	})

	routes := CommandRoutes(reg, CommandRouteOptions{OnReject: func(tele.Context) error { rejected++; return nil }})
	if len(routes) != 2 {
		t.Fatalf("routes = %d, want command plus alias", len(routes))
	}
	h := routeFor(t, routes, "/admin")

	_ = h(textCtx(b, 1, 7, "/admin"))
	admins[7] = true
	_ = h(textCtx(b, 2, 7, "/admin"))
	if calls != 1 || rejected != 1 {
		t.Fatalf("calls=%d rejected=%d", calls, rejected)
	}
}

func TestCallbackRouteDispatchesByUnique(t *testing.T) {
	b := newBot(t)
	reg := tg.NewRegistry()
	var gotPayload string
	if err := reg.RegisterCallback("target", func(c tele.Context) error {
		gotPayload = c.Callback().Data
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	missing := 0
	reg.SetCallbackNotFound(func(tele.Context) error { missing++; return nil })

	h := CallbackRoute(reg, CallbackOptions{}).Handler
	if err := h(callbackCtx(b, 1, 5, "target", "-1001")); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if gotPayload != "-1001" {
		t.Fatalf("payload = %q", gotPayload)
	}
	_ = h(callbackCtx(b, 2, 5, "nope", ""))
	if missing != 1 {
		t.Fatalf("not-found handler calls = %d", missing)
	}
}

type codedErr struct{ code string }

func (e codedErr) Error() string { return "coded" }
func (e codedErr) Code() string  { return e.code }

func TestDeriveErrorCode(t *testing.T) {
	wrapped := errors.Join(errors.New("ctx"), codedErr{code: "not found"})
	if got := deriveErrorCode(wrapped); got != "NOT_FOUND" {
		t.Fatalf("code = %q, want NOT_FOUND", got)
	}
	if got := deriveErrorCode(errors.New("x")); got != "ERRORSTRING" {
		t.Fatalf("code = %q, want ERRORSTRING", got)
	}
}
