// Package adminmanage is the super-admin dialogue that edits the admin list.
package adminmanage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/core/telegram/format"
	"github.com/m3rciful/communitybot/core/telegram/state"
	"github.com/m3rciful/communitybot/internal/conversation"
	"github.com/m3rciful/communitybot/internal/domain"
	"github.com/m3rciful/communitybot/internal/platform"
)

// Name identifies the dialogue in logs and error reports.
const Name = "manage_admins"

const component = "service.admins"

// States.
const (
	StateChoosing    state.State = "CHOOSING_MANAGE_ACTION"
	StateGetIDToAdd  state.State = "GET_ID_TO_ADD"
	StateGetToRemove state.State = "GET_ID_TO_REMOVE"
)

// Commands and buttons.
const (
	ActionEntry         conversation.Action = "/manage_admins"
	ActionCancelCommand conversation.Action = "/cancel"
	ActionAdd           conversation.Action = "add_admin"
	ActionRemoveMenu    conversation.Action = "remove_admin"
	ActionList          conversation.Action = "list_admins"
	ActionRemove        conversation.Action = "remove"
	ActionBack          conversation.Action = "back_to_manage_menu"
)

// Session carries no data; the state is all the dialogue needs.
type Session struct{}

// Admins is the admin repository.
type Admins interface {
	AddAdmin(ctx context.Context, id int64) error
	RemoveAdmin(ctx context.Context, id int64) error
	AdminIDs(ctx context.Context) ([]int64, error)
}

// Deps wires the dialogue.
type Deps struct {
	Sessions  state.Store[Session]
	Admins    Admins
	Messenger platform.Messenger
	// Authorize admits the super-admin only.
	Authorize func(ctx context.Context, userID int64) (bool, error)
}

// Manager is the admin-management dialogue.
type Manager struct {
	*conversation.Machine[Session]
	deps Deps
}

// New builds the dialogue.
func New(deps Deps) *Manager {
	mg := &Manager{
		Machine: conversation.New[Session](Name, deps.Sessions, deps.Messenger),
		deps:    deps,
	}
	m := mg.Machine
	if deps.Authorize != nil {
		m.Guard(deps.Authorize)
	}

	m.Entry(ActionEntry, mg.start)
	m.On(StateChoosing, ActionAdd, mg.askID)
	m.On(StateChoosing, ActionRemoveMenu, mg.showRemoval)
	m.On(StateChoosing, ActionList, mg.list)
	m.On(StateGetIDToAdd, conversation.ActionMessage, mg.add)
	m.On(StateGetToRemove, ActionRemove, mg.remove)

	m.Fallback(ActionBack, mg.back)
	m.Fallback(ActionCancelCommand, mg.cancel)
	return mg
}

func menu() platform.Text {
	return platform.Text{
		Body: "Admin management menu:",
		Keyboard: platform.Keyboard{
			platform.Row(platform.Button{Text: "➕ Add admin", Action: string(ActionAdd)}),
			platform.Row(platform.Button{Text: "➖ Remove admin", Action: string(ActionRemoveMenu)}),
			platform.Row(platform.Button{Text: "📋 List admins", Action: string(ActionList)}),
		},
	}
}

func backRow() []platform.Button {
	return platform.Row(platform.Button{Text: "⬅️ Back", Action: string(ActionBack)})
}

func (mg *Manager) start(ctx context.Context, t *conversation.Turn[Session]) error {
	t.Goto(StateChoosing)
	_, err := mg.deps.Messenger.Send(ctx, t.Event.ChatID, menu())
	return err
}

func (mg *Manager) back(ctx context.Context, t *conversation.Turn[Session]) error {
	t.Goto(StateChoosing)
	if t.Event.IsCallback() && t.Event.Origin.MessageID != 0 {
		return mg.deps.Messenger.Edit(ctx, t.Event.Origin, menu())
	}
	_, err := mg.deps.Messenger.Send(ctx, t.Event.ChatID, menu())
	return err
}

func (mg *Manager) cancel(ctx context.Context, t *conversation.Turn[Session]) error {
	t.End()
	_, err := mg.deps.Messenger.Send(ctx, t.Event.ChatID, platform.Text{Body: "Action cancelled."})
	return err
}

func (mg *Manager) askID(ctx context.Context, t *conversation.Turn[Session]) error {
	t.Goto(StateGetIDToAdd)
	return mg.deps.Messenger.Edit(ctx, t.Event.Origin, platform.Text{
		Body:     "Send the ID of the user you want to make an admin.",
		Keyboard: platform.Keyboard{backRow()},
	})
}

// ParseID validates a user id typed by the super-admin.
func ParseID(input string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ValidationError("Please send a valid numeric ID.")
	}
	return id, nil
}

func (mg *Manager) add(ctx context.Context, t *conversation.Turn[Session]) error {
	text := ""
	if t.Event.Message != nil {
		text = t.Event.Message.Text
	}
	id, err := ParseID(text)
	if err != nil {
		msg, _ := domain.UserMessage(err)
		_, serr := mg.deps.Messenger.Send(ctx, t.Event.ChatID, platform.Text{Body: "❌ " + msg})
		return serr
	}

	var reply string
	switch err := mg.deps.Admins.AddAdmin(ctx, id); {
	case err == nil:
		reply = fmt.Sprintf("✅ User %d is now an admin.", id)
		logger.Info(ctx, component, "admin.added",
			slog.Int64("by", t.Event.UserID),
			slog.Int64("admin_id", id),
		)
	case errors.Is(err, domain.ErrAlreadyExists):
		reply = fmt.Sprintf("⚠️ User %d is already an admin.", id)
	default:
		return fmt.Errorf("manage admins: add %d: %w", id, err)
	}

	if _, err := mg.deps.Messenger.Send(ctx, t.Event.ChatID, platform.Text{Body: reply}); err != nil {
		return err
	}
	t.Goto(StateChoosing)
	_, err = mg.deps.Messenger.Send(ctx, t.Event.ChatID, menu())
	return err
}

func (mg *Manager) showRemoval(ctx context.Context, t *conversation.Turn[Session]) error {
	ids, err := mg.deps.Admins.AdminIDs(ctx)
	if err != nil {
		return fmt.Errorf("manage admins: list: %w", err)
	}
	if len(ids) == 0 {
		t.Goto(StateChoosing)
		return mg.deps.Messenger.Edit(ctx, t.Event.Origin, platform.Text{
			Body:     "The admin list is empty.",
			Keyboard: platform.Keyboard{backRow()},
		})
	}

	kb := make(platform.Keyboard, 0, len(ids)+1)
	for _, id := range ids {
		kb = append(kb, platform.Row(platform.Button{
			Text:    fmt.Sprintf("Remove %d", id),
			Action:  string(ActionRemove),
			Payload: strconv.FormatInt(id, 10),
		}))
	}
	kb = append(kb, backRow())
	t.Goto(StateGetToRemove)
	return mg.deps.Messenger.Edit(ctx, t.Event.Origin, platform.Text{
		Body:     "Choose the admin to remove:",
		Keyboard: kb,
	})
}

func (mg *Manager) remove(ctx context.Context, t *conversation.Turn[Session]) error {
	id, err := strconv.ParseInt(t.Event.Payload, 10, 64)
	if err != nil {
		mg.alert(ctx, t, "Could not remove the admin.")
		return mg.showRemoval(ctx, t)
	}

	switch err := mg.deps.Admins.RemoveAdmin(ctx, id); {
	case err == nil:
		mg.alert(ctx, t, fmt.Sprintf("Admin %d removed.", id))
		logger.Info(ctx, component, "admin.removed",
			slog.Int64("by", t.Event.UserID),
			slog.Int64("admin_id", id),
		)
	case errors.Is(err, domain.ErrNotFound):
		mg.alert(ctx, t, fmt.Sprintf("Admin %d was not found.", id))
	default:
		return fmt.Errorf("manage admins: remove %d: %w", id, err)
	}
	return mg.showRemoval(ctx, t)
}

func (mg *Manager) list(ctx context.Context, t *conversation.Turn[Session]) error {
	ids, err := mg.deps.Admins.AdminIDs(ctx)
	if err != nil {
		return fmt.Errorf("manage admins: list: %w", err)
	}
	return mg.deps.Messenger.Edit(ctx, t.Event.Origin, platform.Text{
		Body:     RenderList(ids),
		Mode:     platform.ModeMarkdownV2,
		Keyboard: platform.Keyboard{backRow()},
	})
}

// RenderList formats admin ids as MarkdownV2.
func RenderList(ids []int64) string {
	if len(ids) == 0 {
		return format.EscapeMarkdownV2("The admin list is empty.")
	}
	var b strings.Builder
	b.WriteString(format.EscapeMarkdownV2("Current admins:"))
	for _, id := range ids {
		b.WriteString("\n• `")
		b.WriteString(format.EscapeMarkdownV2(strconv.FormatInt(id, 10)))
		b.WriteString("`")
	}
	return b.String()
}

func (mg *Manager) alert(ctx context.Context, t *conversation.Turn[Session], text string) {
	if err := t.Answer(ctx, text, true); err != nil {
		logger.Debug(ctx, component, "callback.answer.fail", slog.String("err", err.Error()))
	}
}
