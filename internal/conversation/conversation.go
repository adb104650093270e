// Package conversation runs closed-state dialogues over a session store.
//
// A Machine owns a transition table keyed by (state, action). Events that do
// not match the table are rejected with a *TransitionError instead of being
// ignored. Sessions are keyed by chat and events of one chat are serialized.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/core/telegram/state"
	"github.com/m3rciful/communitybot/internal/domain"
	"github.com/m3rciful/communitybot/internal/platform"
)

const component = "service.conversation"

// Action names an inbound event: a button, a command or a plain message.
type Action string

// ActionMessage is the action of any non-command message.
const ActionMessage Action = "message"

// Event is one inbound step of a dialogue.
type Event struct {
	ChatID  int64
	UserID  int64
	Action  Action
	Payload string
	// CallbackID is set for button presses.
	CallbackID string
	// Origin is the message that carried the pressed button.
	Origin  platform.MessageRef
	Message *platform.Incoming
}

// IsCallback reports whether the event comes from a button press.
func (e Event) IsCallback() bool { return e.CallbackID != "" }

// Answerer acknowledges button presses.
type Answerer interface {
	Answer(ctx context.Context, callbackID, text string, alert bool) error
}

// ErrNoTransition matches every *TransitionError.
var ErrNoTransition = errors.New("conversation: no transition")

// TransitionError reports an action that is not valid in the current state.
type TransitionError struct {
	Conversation string
	State        state.State
	Action       Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("conversation %s: no transition for %q in state %s", e.Conversation, e.Action, e.State)
}

// Is makes errors.Is(err, ErrNoTransition) hold.
func (e *TransitionError) Is(target error) bool { return target == ErrNoTransition }

// Code is consumed by the handler summary logger.
func (e *TransitionError) Code() string { return "no_transition" }

// Handler processes one event of a session.
type Handler[T any] func(ctx context.Context, t *Turn[T]) error

// Turn is the session view handed to a handler. Changes are persisted only
// when the handler returns nil.
type Turn[T any] struct {
	Event Event
	// State is the state the event was received in.
	State state.State
	Data  *T

	next     state.State
	answered bool
	answerer Answerer
}

// Goto selects the state the session moves to after the handler.
func (t *Turn[T]) Goto(s state.State) { t.next = s }

// End finishes the conversation and drops the session.
func (t *Turn[T]) End() { t.next = state.StateIdle }

// Reset clears the session payload.
func (t *Turn[T]) Reset() {
	var zero T
	*t.Data = zero
}

// Next returns the state selected so far.
func (t *Turn[T]) Next() state.State { return t.next }

// Answer acknowledges the pressed button now. Without a call the machine
// answers with an empty text once the handler returns.
func (t *Turn[T]) Answer(ctx context.Context, text string, alert bool) error {
	if !t.Event.IsCallback() || t.answered || t.answerer == nil {
		return nil
	}
	t.answered = true
	return t.answerer.Answer(ctx, t.Event.CallbackID, text, alert)
}

// Machine is a closed-state dialogue.
type Machine[T any] struct {
	name      string
	store     state.Store[T]
	answerer  Answerer
	guard     func(ctx context.Context, userID int64) (bool, error)
	entries   map[Action]Handler[T]
	fallbacks map[Action]Handler[T]
	steps     map[state.State]map[Action]Handler[T]
	locks     chatLocks
}

// New creates an empty machine persisting sessions in store.
func New[T any](name string, store state.Store[T], answerer Answerer) *Machine[T] {
	return &Machine[T]{
		name:      name,
		store:     store,
		answerer:  answerer,
		entries:   make(map[Action]Handler[T]),
		fallbacks: make(map[Action]Handler[T]),
		steps:     make(map[state.State]map[Action]Handler[T]),
		locks:     chatLocks{m: make(map[int64]*chatLock)},
	}
}

// Name identifies the machine in logs.
func (m *Machine[T]) Name() string { return m.name }

// Guard installs an authorization check evaluated on every Dispatch.
func (m *Machine[T]) Guard(fn func(ctx context.Context, userID int64) (bool, error)) {
	m.guard = fn
}

// Entry registers an action that starts a fresh session from any state.
func (m *Machine[T]) Entry(a Action, h Handler[T]) { m.entries[a] = h }

// Fallback registers an action valid in every active state.
func (m *Machine[T]) Fallback(a Action, h Handler[T]) { m.fallbacks[a] = h }

// On registers the handler for action a in state s.
func (m *Machine[T]) On(s state.State, a Action, h Handler[T]) {
	if m.steps[s] == nil {
		m.steps[s] = make(map[Action]Handler[T])
	}
	m.steps[s][a] = h
}

// Handles reports whether a is known to the machine in any state.
func (m *Machine[T]) Handles(a Action) bool {
	if _, ok := m.entries[a]; ok {
		return true
	}
	if _, ok := m.fallbacks[a]; ok {
		return true
	}
	for _, actions := range m.steps {
		if _, ok := actions[a]; ok {
			return true
		}
	}
	return false
}

// Expects reports whether the chat has an active session accepting a.
func (m *Machine[T]) Expects(ctx context.Context, chatID int64, a Action) (bool, error) {
	sess, ok, err := m.store.Get(ctx, chatID)
	if err != nil || !ok || !sess.Active() {
		return false, err
	}
	return m.lookup(sess.State, a) != nil, nil
}

// Snapshot returns the active session of a chat.
func (m *Machine[T]) Snapshot(ctx context.Context, chatID int64) (state.Session[T], bool, error) {
	sess, ok, err := m.store.Get(ctx, chatID)
	if err != nil || !ok || !sess.Active() {
		return state.Session[T]{}, false, err
	}
	return sess, true, nil
}

// Describe renders the active session of a chat for error reports.
func (m *Machine[T]) Describe(ctx context.Context, chatID int64) string {
	sess, ok, err := m.Snapshot(ctx, chatID)
	switch {
	case err != nil:
		return fmt.Sprintf("%s: unavailable (%v)", m.name, err)
	case !ok:
		return m.name + ": idle"
	}
	return fmt.Sprintf("%s: state=%s data=%+v", m.name, sess.State, sess.Data)
}

func (m *Machine[T]) lookup(s state.State, a Action) Handler[T] {
	if h, ok := m.steps[s][a]; ok {
		return h
	}
	return m.fallbacks[a]
}

// Dispatch feeds ev to the chat's session.
func (m *Machine[T]) Dispatch(ctx context.Context, ev Event) error {
	unlock := m.locks.lock(ev.ChatID)
	defer unlock()

	if m.guard != nil {
		ok, err := m.guard(ctx, ev.UserID)
		if err != nil {
			return fmt.Errorf("conversation %s: authorize: %w", m.name, err)
		}
		if !ok {
			return domain.PermissionDenied(fmt.Sprintf("user %d may not use %s", ev.UserID, m.name))
		}
	}

	sess, ok, err := m.store.Get(ctx, ev.ChatID)
	if err != nil {
		return fmt.Errorf("conversation %s: load session: %w", m.name, err)
	}
	if !ok {
		sess = state.Session[T]{State: state.StateIdle}
	}

	h, entry := m.entries[ev.Action]
	if entry {
		var zero T
		sess = state.Session[T]{State: state.StateIdle, Data: zero}
	} else if sess.Active() {
		h = m.lookup(sess.State, ev.Action)
	}
	if h == nil {
		logger.Debug(ctx, component, "transition.rejected",
			slog.String("conversation", m.name),
			slog.String("state", string(sess.State)),
			slog.String("action", string(ev.Action)),
		)
		return &TransitionError{Conversation: m.name, State: sess.State, Action: ev.Action}
	}

	data := sess.Data
	turn := &Turn[T]{
		Event:    ev,
		State:    sess.State,
		Data:     &data,
		next:     sess.State,
		answerer: m.answerer,
	}
	if entry {
		turn.next = state.StateIdle
	}

	herr := h(ctx, turn)
	if ev.IsCallback() && !turn.answered && m.answerer != nil {
		if aerr := m.answerer.Answer(ctx, ev.CallbackID, "", false); aerr != nil {
			logger.Debug(ctx, component, "callback.answer.fail",
				slog.String("conversation", m.name),
				slog.String("err", aerr.Error()),
			)
		}
	}
	if herr != nil {
		return herr
	}

	logger.Debug(ctx, component, "transition",
		slog.String("conversation", m.name),
		slog.String("from", string(sess.State)),
		slog.String("action", string(ev.Action)),
		slog.String("to", string(turn.next)),
	)

	if turn.next == "" || turn.next == state.StateIdle {
		if err := m.store.Delete(ctx, ev.ChatID); err != nil {
			return fmt.Errorf("conversation %s: drop session: %w", m.name, err)
		}
		return nil
	}
	sess.State = turn.next
	sess.Data = data
	if err := m.store.Put(ctx, ev.ChatID, sess); err != nil {
		return fmt.Errorf("conversation %s: save session: %w", m.name, err)
	}
	return nil
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

type chatLocks struct {
	mu sync.Mutex
	m  map[int64]*chatLock
}

func (l *chatLocks) lock(chatID int64) func() {
	l.mu.Lock()
	cl, ok := l.m[chatID]
	if !ok {
		cl = &chatLock{}
		l.m[chatID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.m, chatID)
		}
		l.mu.Unlock()
	}
}
