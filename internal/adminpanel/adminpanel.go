// Package adminpanel is the /admin dialogue: statistics, member resync,
// broadcasts and the commission calculator.
package adminpanel

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
	"github.com/m3rciful/communitybot/internal/broadcast"
	"github.com/m3rciful/communitybot/internal/commission"
	"github.com/m3rciful/communitybot/internal/config"
	"github.com/m3rciful/communitybot/internal/conversation"
	"github.com/m3rciful/communitybot/internal/domain"
	"github.com/m3rciful/communitybot/internal/platform"
)

// Name identifies the dialogue in logs and error reports.
const Name = "admin"

const component = "service.admin_panel"

// States.
const (
	StateChoosingAction   state.State = "CHOOSING_ACTION"
	StateShowingStats     state.State = "SHOWING_STATS"
	StateCalculatorInput  state.State = "CALCULATOR_INPUT"
	StateChooseTarget     state.State = "CHOOSE_TARGET"
	StateChooseType       state.State = "CHOOSE_TYPE"
	StateGetContent       state.State = "GET_CONTENT"
	StateConfirmBroadcast state.State = "CONFIRM_BROADCAST"
)

// Commands and buttons.
const (
	ActionEntry          conversation.Action = "/admin"
	ActionCancelCommand  conversation.Action = "/cancel"
	ActionBroadcastStart conversation.Action = "broadcast_start"
	ActionShowStats      conversation.Action = "show_stats"
	ActionSync           conversation.Action = "sync_subscribers"
	ActionBack           conversation.Action = "admin_back_to_main"
	ActionCalculator     conversation.Action = "admin_commission_calculator"
	ActionCalculatorBack conversation.Action = "admin_back_to_main_from_calculator"
	ActionTarget         conversation.Action = "target"
	ActionTypeSingle     conversation.Action = "type_single"
	ActionTypeGroup      conversation.Action = "type_group"
	ActionGroupDone      conversation.Action = "group_done"
	ActionConfirm        conversation.Action = "broadcast_confirm"
	ActionCancel         conversation.Action = "broadcast_cancel"
)

// TargetAll addresses every registered user.
const TargetAll = "all"

const (
	kindSingle = "single"
	kindGroup  = "group"
)

// Session is the per-chat payload of the dialogue.
type Session struct {
	Target      string               `json:"target,omitempty"`
	Kind        string               `json:"kind,omitempty"`
	Items       []broadcast.Item     `json:"items,omitempty"`
	LimitWarned bool                 `json:"limit_warned,omitempty"`
	AlbumWarned bool                 `json:"album_warned,omitempty"`
	Anchor      *platform.MessageRef `json:"calculator_anchor,omitempty"`
}

// Store is the read side the panel needs.
type Store interface {
	CountUsers(ctx context.Context) (int, error)
	SubscriberCounts(ctx context.Context) (map[int64]int, error)
	UserIDs(ctx context.Context) ([]int64, error)
	SubscriberIDs(ctx context.Context, channelID int64) ([]int64, error)
}

// Resyncer rebuilds subscriptions from live member statuses.
type Resyncer interface {
	Resync(ctx context.Context) (int, error)
}

// Deliverer runs a broadcast.
type Deliverer interface {
	Deliver(ctx context.Context, recipients []int64, items []broadcast.Item) (broadcast.Report, error)
}

// Deps wires the panel.
type Deps struct {
	Sessions  state.Store[Session]
	Store     Store
	Resync    Resyncer
	Broadcast Deliverer
	Messenger platform.Messenger
	Channels  config.ChannelList
	// Authorize is checked on every event.
	Authorize func(ctx context.Context, userID int64) (bool, error)
}

// Panel is the admin dialogue.
type Panel struct {
	*conversation.Machine[Session]
	deps Deps
}

// New builds the dialogue and its transition table.
func New(deps Deps) *Panel {
	p := &Panel{
		Machine: conversation.New[Session](Name, deps.Sessions, deps.Messenger),
		deps:    deps,
	}
	m := p.Machine
	if deps.Authorize != nil {
		m.Guard(deps.Authorize)
	}

	m.Entry(ActionEntry, p.start)

	m.On(StateChoosingAction, ActionBroadcastStart, p.askTarget)
	m.On(StateChoosingAction, ActionShowStats, p.showStats)
	m.On(StateChoosingAction, ActionSync, p.sync)
	m.On(StateChoosingAction, ActionCalculator, p.openCalculator)

	m.On(StateCalculatorInput, conversation.ActionMessage, p.calculate)
	m.On(StateCalculatorInput, ActionCalculatorBack, p.closeCalculator)

	m.On(StateChooseTarget, ActionTarget, p.chooseTarget)
	m.On(StateChooseType, ActionTypeSingle, p.chooseType)
	m.On(StateChooseType, ActionTypeGroup, p.chooseType)
	m.On(StateGetContent, conversation.ActionMessage, p.collect)
	m.On(StateGetContent, ActionGroupDone, p.groupDone)
	m.On(StateConfirmBroadcast, ActionConfirm, p.confirm)

	m.Fallback(ActionCancelCommand, p.cancel)
	m.Fallback(ActionCancel, p.cancel)
	m.Fallback(ActionBack, p.back)
	return p
}

func menuKeyboard() platform.Keyboard {
	return platform.Keyboard{
		platform.Row(platform.Button{Text: "Create broadcast 📬", Action: string(ActionBroadcastStart)}),
		platform.Row(platform.Button{Text: "Statistics 📊", Action: string(ActionShowStats)}),
		platform.Row(platform.Button{Text: "Commission calculator 🧮", Action: string(ActionCalculator)}),
		platform.Row(platform.Button{Text: "🔄 Sync subscribers", Action: string(ActionSync)}),
	}
}

func menu() platform.Text {
	return platform.Text{Body: "Welcome to the admin panel!", Keyboard: menuKeyboard()}
}

func cancelRow() []platform.Button {
	return platform.Row(platform.Button{Text: "❌ Cancel", Action: string(ActionCancel)})
}

// show edits the pressed message or sends a new one for commands and messages.
func (p *Panel) show(ctx context.Context, t *conversation.Turn[Session], msg platform.Text) error {
	if t.Event.IsCallback() && t.Event.Origin.MessageID != 0 {
		return p.deps.Messenger.Edit(ctx, t.Event.Origin, msg)
	}
	_, err := p.deps.Messenger.Send(ctx, t.Event.ChatID, msg)
	return err
}

func (p *Panel) toMenu(ctx context.Context, t *conversation.Turn[Session], edit bool) error {
	t.Reset()
	t.Goto(StateChoosingAction)
	if edit {
		return p.show(ctx, t, menu())
	}
	_, err := p.deps.Messenger.Send(ctx, t.Event.ChatID, menu())
	return err
}

func (p *Panel) start(ctx context.Context, t *conversation.Turn[Session]) error {
	t.Goto(StateChoosingAction)
	_, err := p.deps.Messenger.Send(ctx, t.Event.ChatID, menu())
	return err
}

func (p *Panel) back(ctx context.Context, t *conversation.Turn[Session]) error {
	return p.toMenu(ctx, t, true)
}

func (p *Panel) cancel(ctx context.Context, t *conversation.Turn[Session]) error {
	logger.Info(ctx, component, "dialog.cancelled",
		slog.String("state", string(t.State)),
		slog.Int64("user_id", t.Event.UserID),
	)
	if err := p.show(ctx, t, platform.Text{Body: "Action cancelled."}); err != nil {
		return err
	}
	return p.toMenu(ctx, t, false)
}

func (p *Panel) showStats(ctx context.Context, t *conversation.Turn[Session]) error {
	users, err := p.deps.Store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("admin panel: count users: %w", err)
	}
	counts, err := p.deps.Store.SubscriberCounts(ctx)
	if err != nil {
		return fmt.Errorf("admin panel: subscriber counts: %w", err)
	}

	var b strings.Builder
	b.WriteString("📊 <b>Statistics</b>\n\n")
	fmt.Fprintf(&b, "Users who started the bot: <code>%d</code>\n\n", users)
	b.WriteString("<b>Subscribers in tracked channels:</b>\n")
	if len(p.deps.Channels) == 0 {
		b.WriteString("<i>No channels are configured.</i>")
	}
	for _, ch := range p.deps.Channels {
		fmt.Fprintf(&b, "  • %s: <code>%d</code>\n", format.EscapeHTML(ch.Title()), counts[ch.ID])
	}

	t.Goto(StateShowingStats)
	return p.show(ctx, t, platform.Text{
		Body:     b.String(),
		Mode:     platform.ModeHTML,
		Keyboard: platform.Keyboard{platform.Row(platform.Button{Text: "⬅️ Back", Action: string(ActionBack)})},
	})
}

func (p *Panel) sync(ctx context.Context, t *conversation.Turn[Session]) error {
	p.answer(ctx, t, "Sync started... This may take a few minutes.")
	total, err := p.deps.Resync.Resync(ctx)
	if err != nil {
		return fmt.Errorf("admin panel: resync: %w", err)
	}
	t.Goto(StateChoosingAction)
	return p.show(ctx, t, platform.Text{
		Body:     fmt.Sprintf("✅ Sync finished!\n\nSubscriptions found and saved: %d.", total),
		Keyboard: menuKeyboard(),
	})
}

func calculatorKeyboard() platform.Keyboard {
	return platform.Keyboard{
		platform.Row(platform.Button{Text: "Back to the admin menu", Action: string(ActionCalculatorBack)}),
	}
}

func (p *Panel) openCalculator(ctx context.Context, t *conversation.Turn[Session]) error {
	anchor := t.Event.Origin
	if err := p.show(ctx, t, platform.Text{Body: "Enter an amount to calculate the commission:", Keyboard: calculatorKeyboard()}); err != nil {
		return err
	}
	if anchor.MessageID == 0 {
		return nil
	}
	t.Data.Anchor = &anchor
	t.Goto(StateCalculatorInput)
	return nil
}

func (p *Panel) calculate(ctx context.Context, t *conversation.Turn[Session]) error {
	in := t.Event.Message
	if in == nil {
		return nil
	}
	// The raw input is removed whatever the outcome.
	defer func() {
		if err := p.deps.Messenger.Delete(ctx, in.Ref); err != nil {
			logger.Warn(ctx, component, "calculator.delete_input.fail", slog.String("err", err.Error()))
		}
	}()

	if t.Data.Anchor == nil {
		logger.Error(ctx, component, "calculator.anchor.missing", slog.Int64("chat_id", t.Event.ChatID))
		return nil
	}

	var body string
	res, err := commission.Evaluate(in.Text)
	switch {
	case err == nil:
		body = res.HTML()
		logger.Info(ctx, component, "calculator.result",
			slog.Int64("user_id", t.Event.UserID),
			slog.Float64("price", res.Price),
			slog.Float64("percent", res.Percent),
			slog.Float64("amount", res.Amount),
		)
	default:
		reason := "Please send a numeric value."
		if msg, ok := domain.UserMessage(err); ok {
			reason = msg
		}
		body = fmt.Sprintf("❌ <b>Error:</b>\n%s\n\nPlease enter a valid amount.", format.EscapeHTML(reason))
		logger.Warn(ctx, component, "calculator.invalid_input",
			slog.Int64("user_id", t.Event.UserID),
			slog.String("err", err.Error()),
		)
	}

	msg := platform.Text{Body: body, Mode: platform.ModeHTML, Keyboard: calculatorKeyboard()}
	if err := p.deps.Messenger.Edit(ctx, *t.Data.Anchor, msg); err != nil {
		// Editing to identical text is refused by Telegram; the dialogue goes on.
		logger.Warn(ctx, component, "calculator.edit.fail", slog.String("err", err.Error()))
	}
	return nil
}

func (p *Panel) closeCalculator(ctx context.Context, t *conversation.Turn[Session]) error {
	t.Data.Anchor = nil
	return p.toMenu(ctx, t, true)
}

func (p *Panel) askTarget(ctx context.Context, t *conversation.Turn[Session]) error {
	kb := platform.Keyboard{
		platform.Row(platform.Button{Text: "All users", Action: string(ActionTarget), Payload: TargetAll}),
	}
	for _, ch := range p.deps.Channels {
		kb = append(kb, platform.Row(platform.Button{
			Text:    fmt.Sprintf("Subscribers of «%s»", ch.Title()),
			Action:  string(ActionTarget),
			Payload: strconv.FormatInt(ch.ID, 10),
		}))
	}
	kb = append(kb, cancelRow())
	t.Goto(StateChooseTarget)
	return p.show(ctx, t, platform.Text{Body: "Who should receive the broadcast?", Keyboard: kb})
}

func (p *Panel) chooseTarget(ctx context.Context, t *conversation.Turn[Session]) error {
	target := t.Event.Payload
	if target != TargetAll {
		id, err := strconv.ParseInt(target, 10, 64)
		if _, ok := p.deps.Channels.Lookup(id); err != nil || !ok {
			logger.Warn(ctx, component, "broadcast.target.unknown", slog.String("target", target))
			return t.Answer(ctx, "This channel is not configured.", true)
		}
	}
	t.Data.Target = target
	t.Goto(StateChooseType)
	return p.show(ctx, t, platform.Text{
		Body: "Which kind of broadcast do you want to create?",
		Keyboard: platform.Keyboard{
			platform.Row(platform.Button{Text: "Single message", Action: string(ActionTypeSingle)}),
			platform.Row(platform.Button{Text: "Group of photos/videos", Action: string(ActionTypeGroup)}),
			cancelRow(),
		},
	})
}

func (p *Panel) chooseType(ctx context.Context, t *conversation.Turn[Session]) error {
	t.Data.Items = nil
	t.Data.LimitWarned = false
	t.Data.AlbumWarned = false
	t.Goto(StateGetContent)

	if t.Event.Action == ActionTypeSingle {
		t.Data.Kind = kindSingle
		return p.show(ctx, t, platform.Text{
			Body: "Send the message to broadcast (text, photo, video, etc.).\n\nSend /cancel to abort.",
		})
	}
	t.Data.Kind = kindGroup
	return p.show(ctx, t, platform.Text{
		Body: fmt.Sprintf("Send up to %d photos and videos as one album. The text sent with the first file becomes the caption.\n\nPress 'Done' when you are finished.", broadcast.MaxAlbumItems),
		Keyboard: platform.Keyboard{
			platform.Row(platform.Button{Text: "✅ Done, everything is sent", Action: string(ActionGroupDone)}),
			cancelRow(),
		},
	})
}

func (p *Panel) collect(ctx context.Context, t *conversation.Turn[Session]) error {
	in := t.Event.Message
	if in == nil {
		return nil
	}
	item := broadcast.Item{Source: in.Ref, Media: in.MediaItem()}

	if t.Data.Kind == kindGroup && in.AlbumID != "" {
		if len(t.Data.Items) < broadcast.MaxAlbumItems {
			t.Data.Items = append(t.Data.Items, item)
			return nil
		}
		if t.Data.LimitWarned {
			return nil
		}
		t.Data.LimitWarned = true
		_, err := p.deps.Messenger.Send(ctx, t.Event.ChatID, platform.Text{
			Body: fmt.Sprintf("The limit of %d files is reached. Please press 'Done'.", broadcast.MaxAlbumItems),
		})
		return err
	}

	if in.AlbumID != "" {
		// A single broadcast takes the first message sent on its own.
		if t.Data.AlbumWarned {
			return nil
		}
		t.Data.AlbumWarned = true
		_, err := p.deps.Messenger.Send(ctx, t.Event.ChatID, platform.Text{
			Body: "Albums are not accepted for a single broadcast. Send one message, or /cancel and choose a group.",
		})
		return err
	}

	t.Data.Items = []broadcast.Item{item}
	t.Goto(StateConfirmBroadcast)
	return p.askConfirm(ctx, t)
}

func (p *Panel) groupDone(ctx context.Context, t *conversation.Turn[Session]) error {
	if len(t.Data.Items) == 0 {
		if err := p.show(ctx, t, platform.Text{Body: "You did not send any files. The broadcast is cancelled."}); err != nil {
			return err
		}
		return p.toMenu(ctx, t, false)
	}
	if err := p.show(ctx, t, platform.Text{Body: "Great! The media group is collected."}); err != nil {
		return err
	}
	t.Goto(StateConfirmBroadcast)
	return p.askConfirm(ctx, t)
}

func (p *Panel) askConfirm(ctx context.Context, t *conversation.Turn[Session]) error {
	what := "this message"
	if n := len(t.Data.Items); n > 1 {
		what = fmt.Sprintf("a group of %d media", n)
	}
	_, err := p.deps.Messenger.Send(ctx, t.Event.ChatID, platform.Text{
		Body: fmt.Sprintf("Are you sure you want to broadcast %s?", what),
		Keyboard: platform.Keyboard{
			platform.Row(platform.Button{Text: "✅ Start broadcast", Action: string(ActionConfirm)}),
			cancelRow(),
		},
	})
	return err
}

func (p *Panel) recipients(ctx context.Context, target string) ([]int64, error) {
	if target == TargetAll {
		return p.deps.Store.UserIDs(ctx)
	}
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("admin panel: bad target %q: %w", target, err)
	}
	return p.deps.Store.SubscriberIDs(ctx, id)
}

func (p *Panel) confirm(ctx context.Context, t *conversation.Turn[Session]) error {
	items, target := t.Data.Items, t.Data.Target
	if len(items) == 0 || target == "" {
		if err := p.show(ctx, t, platform.Text{Body: "Error: the content or the audience of the broadcast is missing."}); err != nil {
			return err
		}
		return p.toMenu(ctx, t, false)
	}

	ids, err := p.recipients(ctx, target)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		if err := p.show(ctx, t, platform.Text{Body: "There are no users in the selected audience."}); err != nil {
			return err
		}
		return p.toMenu(ctx, t, false)
	}

	p.answer(ctx, t, "")
	if err := p.show(ctx, t, platform.Text{
		Body: fmt.Sprintf("Starting the broadcast to %d users. This may take a while...", len(ids)),
	}); err != nil {
		logger.Warn(ctx, component, "broadcast.progress.fail", slog.String("err", err.Error()))
	}

	rep, err := p.deps.Broadcast.Deliver(ctx, ids, items)
	if errors.Is(err, broadcast.ErrNoMedia) {
		t.End()
		p.report(ctx, t, "Error: could not build the media group.")
		return nil
	}
	if err != nil {
		return err
	}

	// Once delivery ran the session ends, whether or not the report arrives.
	t.End()
	p.report(ctx, t, fmt.Sprintf("✅ Broadcast finished!\n\n👍 Sent: %d\n👎 Failed: %d", rep.Sent, rep.Failed))
	return nil
}

func (p *Panel) report(ctx context.Context, t *conversation.Turn[Session], body string) {
	if _, err := p.deps.Messenger.Send(ctx, t.Event.ChatID, platform.Text{Body: body}); err != nil {
		logger.Warn(ctx, component, "broadcast.report.fail",
			slog.Int64("chat_id", t.Event.ChatID),
			slog.String("err", err.Error()),
		)
	}
}

func (p *Panel) answer(ctx context.Context, t *conversation.Turn[Session], text string) {
	if err := t.Answer(ctx, text, false); err != nil {
		logger.Debug(ctx, component, "callback.answer.fail", slog.String("err", err.Error()))
	}
}
