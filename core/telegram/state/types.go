package state

import (
	"context"
	"time"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation in the chat.
	StateIdle State = "idle"
)

// Session stores the conversation state and its typed payload for one chat.
type Session[T any] struct {
	State     State     `json:"state"`
	Data      T         `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the session is inside a conversation.
func (s Session[T]) Active() bool {
	return s.State != "" && s.State != StateIdle
}

// Store persists sessions keyed by chat id. Get reports ok=false for absent
// or expired sessions.
type Store[T any] interface {
	Get(ctx context.Context, chatID int64) (Session[T], bool, error)
	Put(ctx context.Context, chatID int64, s Session[T]) error
	Delete(ctx context.Context, chatID int64) error
}
