package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/communitybot/core/telegram/helpers"
	"github.com/m3rciful/communitybot/core/telegram/keyboard"
	tgsender "github.com/m3rciful/communitybot/core/telegram/sender"
	"github.com/m3rciful/communitybot/internal/platform"
)

// API is the part of *tele.Bot the messenger calls.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
	Copy(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
	SendAlbum(to tele.Recipient, a tele.Album, opts ...interface{}) ([]tele.Message, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
	CreateInviteLink(chat tele.Recipient, link *tele.ChatInviteLink) (*tele.ChatInviteLink, error)
}

// Messenger implements platform.Messenger on top of the Bot API.
type Messenger struct {
	api API
}

// NewMessenger wraps api, usually a *tele.Bot.
func NewMessenger(api API) *Messenger {
	return &Messenger{api: api}
}

func (m *Messenger) Send(ctx context.Context, chatID int64, msg platform.Text) (platform.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return platform.MessageRef{}, err
	}
	sent, err := m.api.Send(tele.ChatID(chatID), msg.Body, sendOptions(msg)...)
	if err != nil {
		return platform.MessageRef{}, fmt.Errorf("send to %d: %w", chatID, err)
	}
	tghelpers.CountSent(ctx, len(msg.Keyboard) > 0)
	return refOf(sent), nil
}

// Edit replaces text and keyboard of ref. Editing to identical content is not an error.
func (m *Messenger) Edit(ctx context.Context, ref platform.MessageRef, msg platform.Text) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.api.Edit(stored(ref), msg.Body, sendOptions(msg)...)
	if err != nil && !notModified(err) {
		return fmt.Errorf("edit %d/%d: %w", ref.ChatID, ref.MessageID, err)
	}
	tghelpers.CountSent(ctx, len(msg.Keyboard) > 0)
	return nil
}

func (m *Messenger) Delete(ctx context.Context, ref platform.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.api.Delete(stored(ref)); err != nil {
		return fmt.Errorf("delete %d/%d: %w", ref.ChatID, ref.MessageID, err)
	}
	return nil
}

func (m *Messenger) Copy(ctx context.Context, chatID int64, src platform.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.api.Copy(tele.ChatID(chatID), stored(src)); err != nil {
		return fmt.Errorf("copy to %d: %w", chatID, err)
	}
	tghelpers.CountSent(ctx, false)
	return nil
}

func (m *Messenger) SendAlbum(ctx context.Context, chatID int64, items []platform.MediaItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	album, mode := albumOf(items)
	if len(album) == 0 {
		return fmt.Errorf("album to %d: no photo or video", chatID)
	}
	var opts []interface{}
	if mode != tele.ModeDefault {
		opts = append(opts, mode)
	}
	if _, err := m.api.SendAlbum(tele.ChatID(chatID), album, opts...); err != nil {
		return fmt.Errorf("album to %d: %w", chatID, err)
	}
	tghelpers.CountSent(ctx, false)
	return nil
}

func (m *Messenger) Answer(ctx context.Context, callbackID, text string, alert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp := &tele.CallbackResponse{Text: text, ShowAlert: alert}
	if err := m.api.Respond(&tele.Callback{ID: callbackID}, resp); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

func (m *Messenger) MemberStatus(ctx context.Context, chatID, userID int64) (platform.MemberStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	member, err := m.api.ChatMemberOf(tele.ChatID(chatID), tele.ChatID(userID))
	if err != nil {
		return "", fmt.Errorf("member %d of %d: %w", userID, chatID, err)
	}
	return platform.MemberStatus(member.Role), nil
}

func (m *Messenger) CreateInviteLink(ctx context.Context, chatID int64, memberLimit int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	link, err := m.api.CreateInviteLink(tele.ChatID(chatID), &tele.ChatInviteLink{MemberLimit: memberLimit})
	if err != nil {
		return "", fmt.Errorf("invite link for %d: %w", chatID, err)
	}
	return link.InviteLink, nil
}

func sendOptions(msg platform.Text) []interface{} {
	var opts []interface{}
	if msg.Mode != platform.ModePlain {
		opts = append(opts, tele.ParseMode(msg.Mode))
	}
	if msg.NoPreview {
		opts = append(opts, tele.NoPreview)
	}
	if kb := Markup(msg.Keyboard); kb != nil {
		opts = append(opts, kb)
	}
	return opts
}

// Markup converts a platform keyboard; nil when it has no buttons.
func Markup(kb platform.Keyboard) *tele.ReplyMarkup {
	rows := make([][]keyboard.Button, 0, len(kb))
	for _, row := range kb {
		r := make([]keyboard.Button, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.Button{Text: b.Text, Unique: b.Action, Data: b.Payload, URL: b.URL})
		}
		rows = append(rows, r)
	}
	return keyboard.Inline(rows...)
}

func albumOf(items []platform.MediaItem) (tele.Album, tele.ParseMode) {
	album := make(tele.Album, 0, len(items))
	mode := tele.ModeDefault
	for i, it := range items {
		if i == 0 && it.Mode != platform.ModePlain {
			mode = tele.ParseMode(it.Mode)
		}
		file := tele.File{FileID: it.FileID}
		switch it.Kind {
		case platform.MediaPhoto:
			album = append(album, &tele.Photo{File: file, Caption: it.Caption})
		case platform.MediaVideo:
			album = append(album, &tele.Video{File: file, Caption: it.Caption})
		}
	}
	return album, mode
}

func stored(ref platform.MessageRef) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
}

func refOf(m *tele.Message) platform.MessageRef {
	if m == nil {
		return platform.MessageRef{}
	}
	ref := platform.MessageRef{MessageID: m.ID}
	if m.Chat != nil {
		ref.ChatID = m.Chat.ID
	}
	return ref
}

func notModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

// Notifier sends best-effort messages through the outbound dispatcher.
type Notifier struct {
	messenger platform.Messenger
	queue     *tgsender.Dispatcher
}

// NewNotifier queues sends on d.
func NewNotifier(m platform.Messenger, d *tgsender.Dispatcher) *Notifier {
	return &Notifier{messenger: m, queue: d}
}

// Notify enqueues msg; the returned error only reports a rejected job.
func (n *Notifier) Notify(ctx context.Context, chatID int64, msg platform.Text) error {
	ctx = context.WithoutCancel(ctx)
	return n.queue.Enqueue(ctx, "notify", "sendMessage", func() error {
		_, err := n.messenger.Send(ctx, chatID, msg)
		return err
	})
}
