// Package platform is the transport-neutral messaging port used by the bot services.
// The Telegram adapter lives in internal/bot; tests use platformtest.
package platform

import "context"

// MessageRef addresses a message previously sent or received.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// ParseMode selects the markup dialect of a text.
type ParseMode string

const (
	ModePlain      ParseMode = ""
	ModeHTML       ParseMode = "HTML"
	ModeMarkdownV2 ParseMode = "MarkdownV2"
)

// Button is an inline keyboard button. URL buttons ignore Action and Payload.
type Button struct {
	Text    string
	Action  string
	Payload string
	URL     string
}

// Keyboard is a list of button rows.
type Keyboard [][]Button

// Row is a convenience constructor for a keyboard row.
func Row(buttons ...Button) []Button { return buttons }

// Text is an outbound text message.
type Text struct {
	Body      string
	Mode      ParseMode
	Keyboard  Keyboard
	NoPreview bool
}

// MediaKind classifies album items.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
	MediaOther MediaKind = "other"
)

// MediaItem is one entry of an outbound album.
type MediaItem struct {
	Kind    MediaKind
	FileID  string
	Caption string
	Mode    ParseMode
}

// Incoming is the part of a received message the services care about.
type Incoming struct {
	Ref     MessageRef
	Text    string
	Caption string
	// AlbumID is the media group id; empty for standalone messages.
	AlbumID string
	Media   MediaKind
	FileID  string
}

// MediaItem converts the message into an album entry.
func (m Incoming) MediaItem() MediaItem {
	kind := m.Media
	if kind == "" {
		kind = MediaOther
	}
	return MediaItem{Kind: kind, FileID: m.FileID, Caption: m.Caption}
}

// MemberStatus mirrors the chat member statuses reported by the platform.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// IsMember reports whether the status counts as subscribed.
func (s MemberStatus) IsMember() bool {
	switch s {
	case StatusCreator, StatusAdministrator, StatusMember:
		return true
	}
	return false
}

// Messenger performs synchronous platform calls.
type Messenger interface {
	Send(ctx context.Context, chatID int64, msg Text) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, msg Text) error
	Delete(ctx context.Context, ref MessageRef) error
	// Copy re-sends the source message to chatID without a forward header.
	Copy(ctx context.Context, chatID int64, src MessageRef) error
	SendAlbum(ctx context.Context, chatID int64, items []MediaItem) error
	// Answer acknowledges a button press; alert shows a modal instead of a toast.
	Answer(ctx context.Context, callbackID, text string, alert bool) error
	MemberStatus(ctx context.Context, chatID, userID int64) (MemberStatus, error)
	// CreateInviteLink creates a channel link; memberLimit 0 means unlimited.
	CreateInviteLink(ctx context.Context, chatID int64, memberLimit int) (string, error)
}

// Notifier delivers best-effort messages asynchronously.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, msg Text) error
}
