// Package commands describes slash commands as registered with the bot registry.
package commands

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

// Access decides whether userID may run a command. It is evaluated on every call,
// so admin changes take effect without a restart.
type Access func(ctx context.Context, userID int64) (bool, error)

// Command is a slash command. Gated (Access set) and Hidden commands stay out of the
// public menu; gated ones still show up in privileged chats.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Access      Access
	Hidden      bool
	// Aliases are extra names ("admins" or "/admins") routed to the same handler.
	Aliases []string
}

// Public reports whether the command belongs in everyone's menu.
func (c Command) Public() bool {
	return !c.Hidden && c.Access == nil
}
