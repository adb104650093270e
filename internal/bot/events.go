package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/telegram/callbacks"
	"github.com/m3rciful/communitybot/internal/conversation"
	"github.com/m3rciful/communitybot/internal/membership"
	"github.com/m3rciful/communitybot/internal/platform"
)

// eventOf maps an update to a dialogue step for action a.
func eventOf(c tele.Context, a conversation.Action) conversation.Event {
	ev := conversation.Event{Action: a}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
	}
	if cb := c.Callback(); cb != nil {
		_, ev.Payload = callbacks.Parse(cb)
		ev.CallbackID = cb.ID
		ev.Origin = refOf(cb.Message)
		return ev
	}
	if m := c.Message(); m != nil {
		ev.Message = incoming(m)
	}
	return ev
}

func incoming(m *tele.Message) *platform.Incoming {
	in := &platform.Incoming{
		Ref:     refOf(m),
		Text:    m.Text,
		Caption: m.Caption,
		AlbumID: m.AlbumID,
	}
	switch {
	case m.Photo != nil:
		in.Media, in.FileID = platform.MediaPhoto, m.Photo.FileID
	case m.Video != nil:
		in.Media, in.FileID = platform.MediaVideo, m.Video.FileID
	case m.Text == "":
		in.Media = platform.MediaOther
	}
	return in
}

// isCommand reports whether m is a bot command; dialogues never receive those as input.
func isCommand(m *tele.Message) bool {
	return m != nil && strings.HasPrefix(m.Text, "/")
}

// memberChange maps a chat_member update; ok is false for incomplete updates.
func memberChange(u *tele.ChatMemberUpdate, botID int64) (membership.Change, bool) {
	if u == nil || u.Chat == nil || u.NewChatMember == nil || u.NewChatMember.User == nil {
		return membership.Change{}, false
	}
	user := u.NewChatMember.User
	ch := membership.Change{
		ChatID:    u.Chat.ID,
		ChatTitle: u.Chat.Title,
		UserID:    user.ID,
		FirstName: user.FirstName,
		Old:       platform.StatusLeft,
		New:       platform.MemberStatus(u.NewChatMember.Role),
	}
	if u.OldChatMember != nil {
		ch.Old = platform.MemberStatus(u.OldChatMember.Role)
	}
	if l := u.InviteLink; l != nil && l.Creator != nil && botID != 0 {
		ch.ViaBotLink = l.Creator.ID == botID
	}
	return ch, true
}
