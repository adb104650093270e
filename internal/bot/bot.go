// Package bot binds the community services to Telegram updates.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/logger"
	tg "github.com/m3rciful/communitybot/core/telegram"
	"github.com/m3rciful/communitybot/core/telegram/callbacks"
	"github.com/m3rciful/communitybot/core/telegram/commands"
	tghelpers "github.com/m3rciful/communitybot/core/telegram/helpers"
	"github.com/m3rciful/communitybot/core/telegram/router"
	"github.com/m3rciful/communitybot/internal/access"
	"github.com/m3rciful/communitybot/internal/adminmanage"
	"github.com/m3rciful/communitybot/internal/adminpanel"
	"github.com/m3rciful/communitybot/internal/conversation"
	"github.com/m3rciful/communitybot/internal/domain"
	"github.com/m3rciful/communitybot/internal/errreport"
	"github.com/m3rciful/communitybot/internal/membership"
	"github.com/m3rciful/communitybot/internal/welcome"
)

const component = "bot"

// Stale is the toast for a button whose dialogue step has passed.
const Stale = "This action is no longer available."

// Dialogue is a conversation machine driven by updates.
type Dialogue interface {
	Name() string
	Expects(ctx context.Context, chatID int64, a conversation.Action) (bool, error)
	Dispatch(ctx context.Context, ev conversation.Event) error
}

// Services are the features the handlers call.
type Services struct {
	Policy   *access.Policy
	Welcome  *welcome.Service
	Panel    *adminpanel.Panel
	Manage   *adminmanage.Manager
	Tracker  *membership.Tracker
	Reporter *errreport.Reporter
	// BotID tells bot-issued invite links apart; 0 treats every join as organic.
	BotID int64
}

// Handlers adapts Services to telebot handlers.
type Handlers struct {
	s Services
}

// New builds the handlers.
func New(s Services) *Handlers {
	return &Handlers{s: s}
}

var (
	panelButtons = []conversation.Action{
		adminpanel.ActionBroadcastStart,
		adminpanel.ActionShowStats,
		adminpanel.ActionSync,
		adminpanel.ActionBack,
		adminpanel.ActionCalculator,
		adminpanel.ActionCalculatorBack,
		adminpanel.ActionTarget,
		adminpanel.ActionTypeSingle,
		adminpanel.ActionTypeGroup,
		adminpanel.ActionGroupDone,
		adminpanel.ActionConfirm,
		adminpanel.ActionCancel,
	}
	manageButtons = []conversation.Action{
		adminmanage.ActionAdd,
		adminmanage.ActionRemoveMenu,
		adminmanage.ActionList,
		adminmanage.ActionRemove,
		adminmanage.ActionBack,
	}
)

// Register adds commands and button handlers to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	err := errors.Join(
		reg.RegisterCommand("/start", commands.Command{
			Handler:     h.start,
			Description: "Open the channel list",
		}),
		reg.RegisterCommand(string(adminpanel.ActionEntry), commands.Command{
			Handler:     h.command(h.s.Panel, adminpanel.ActionEntry),
			Description: "Admin panel",
			Access:      h.s.Policy.IsAuthorized,
		}),
		reg.RegisterCommand(string(adminmanage.ActionEntry), commands.Command{
			Handler:     h.command(h.s.Manage, adminmanage.ActionEntry),
			Description: "Manage admins",
			Access:      h.s.Policy.IsSuperAdmin,
		}),
		reg.RegisterCommand(string(adminpanel.ActionCancelCommand), commands.Command{
			Handler:     h.cancel,
			Description: "Cancel the current action",
			Hidden:      true,
		}),
	)
	if err != nil {
		return err
	}

	if err := reg.RegisterCallback(welcome.ActionJoin, h.join); err != nil {
		return err
	}
	for _, a := range panelButtons {
		if err := reg.RegisterCallback(string(a), h.command(h.s.Panel, a)); err != nil {
			return err
		}
	}
	for _, a := range manageButtons {
		if err := reg.RegisterCallback(string(a), h.command(h.s.Manage, a)); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: Stale})
	})
	return nil
}

// Routes returns every route of the bot; call after Register.
func (h *Handlers) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(reg, h.Conversations(), router.MessageOptions{})...)
	routes = append(routes, router.EventRoute(tele.OnChatMember, "chat_member", h.chatMember))
	return routes
}

// Conversations exposes the dialogues to the message router, panel first.
func (h *Handlers) Conversations() []router.Conversation {
	return []router.Conversation{dialogue{h.s.Panel}, dialogue{h.s.Manage}}
}

func (h *Handlers) start(c tele.Context) error {
	u := c.Sender()
	if u == nil || c.Chat() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	return h.s.Welcome.Start(ctx, c.Chat().ID, domain.User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
	})
}

func (h *Handlers) join(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	_, payload := callbacks.Parse(cb)
	return h.s.Welcome.Join(tghelpers.BuildContext(c), cb.ID, refOf(cb.Message), payload)
}

func (h *Handlers) command(d Dialogue, a conversation.Action) tele.HandlerFunc {
	return func(c tele.Context) error {
		return dispatch(c, d, a)
	}
}

// cancel goes to the first dialogue with an active session; without one it is a no-op.
func (h *Handlers) cancel(c tele.Context) error {
	if c.Chat() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	for _, d := range []Dialogue{h.s.Panel, h.s.Manage} {
		ok, err := d.Expects(ctx, c.Chat().ID, adminpanel.ActionCancelCommand)
		if err != nil {
			return err
		}
		if ok {
			return dispatch(c, d, adminpanel.ActionCancelCommand)
		}
	}
	return nil
}

func (h *Handlers) chatMember(c tele.Context) error {
	ch, ok := memberChange(c.ChatMember(), h.s.BotID)
	if !ok {
		return nil
	}
	return h.s.Tracker.Handle(tghelpers.BuildContext(c), ch)
}

// OnError reports handler errors and recovered panics to the admins.
func (h *Handlers) OnError(err error, c tele.Context) {
	ctx := context.Background()
	in := errreport.Incident{Err: err}
	if c != nil {
		ctx = tghelpers.BuildContext(c)
		in.UpdateID, in.ChatID, in.UserID = tghelpers.IDs(c)
		if chat := c.Chat(); chat != nil && chat.Type == tele.ChatPrivate {
			in.ReplyTo = chat.ID
		}
		if raw, jerr := json.MarshalIndent(c.Update(), "", "  "); jerr == nil {
			in.Update = string(raw)
		}
	}
	h.s.Reporter.Report(ctx, in)
}

func dispatch(c tele.Context, d Dialogue, a conversation.Action) error {
	ctx := tghelpers.BuildContext(c)
	err := d.Dispatch(ctx, eventOf(c, a))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrPermissionDenied):
		logger.Debug(ctx, component, "dialogue.denied",
			slog.String("dialogue", d.Name()),
			slog.String("action", string(a)),
		)
		if c.Callback() != nil {
			return c.Respond()
		}
		return nil
	case errors.Is(err, conversation.ErrNoTransition):
		logger.Debug(ctx, component, "dialogue.stale",
			slog.String("dialogue", d.Name()),
			slog.String("action", string(a)),
		)
		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: Stale})
		}
		return nil
	}
	return fmt.Errorf("%s %s: %w", d.Name(), a, err)
}

// dialogue lets a Dialogue claim plain messages of chats it is waiting on.
type dialogue struct {
	d Dialogue
}

func (g dialogue) Name() string { return g.d.Name() }

func (g dialogue) Claims(c tele.Context) (bool, error) {
	m := c.Message()
	if m == nil || c.Chat() == nil || c.Callback() != nil || isCommand(m) {
		return false, nil
	}
	return g.d.Expects(tghelpers.BuildContext(c), c.Chat().ID, conversation.ActionMessage)
}

func (g dialogue) HandleMessage(c tele.Context) error {
	return dispatch(c, g.d, conversation.ActionMessage)
}
