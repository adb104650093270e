// Package platformtest provides an in-memory platform.Messenger for service tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/m3rciful/communitybot/internal/platform"
)

// Call records one invocation on the fake.
type Call struct {
	Method     string
	ChatID     int64
	UserID     int64
	Ref        platform.MessageRef
	Text       platform.Text
	Items      []platform.MediaItem
	CallbackID string
	Alert      bool
	Limit      int
}

// Fake records every call and returns injected failures.
type Fake struct {
	mu      sync.Mutex
	calls   []Call
	nextID  int
	fail    map[string]map[int64]error
	status  map[[2]int64]platform.MemberStatus
	statErr map[[2]int64]error
	links   int
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		fail:    make(map[string]map[int64]error),
		status:  make(map[[2]int64]platform.MemberStatus),
		statErr: make(map[[2]int64]error),
	}
}

// FailOn makes method fail for chatID. Use 0 to fail for every chat.
func (f *Fake) FailOn(method string, chatID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[method] == nil {
		f.fail[method] = make(map[int64]error)
	}
	f.fail[method][chatID] = err
}

// SetStatus configures MemberStatus answers.
func (f *Fake) SetStatus(chatID, userID int64, st platform.MemberStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[[2]int64{chatID, userID}] = st
}

// SetStatusError makes MemberStatus fail for the pair.
func (f *Fake) SetStatusError(chatID, userID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statErr[[2]int64{chatID, userID}] = err
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if m := f.fail[c.Method]; m != nil {
		if err, ok := m[c.ChatID]; ok {
			return err
		}
		if err, ok := m[0]; ok {
			return err
		}
	}
	return nil
}

// Calls returns a copy of the recorded calls, optionally filtered by method.
func (f *Fake) Calls(methods ...string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, 0, len(f.calls))
	for _, c := range f.calls {
		if len(methods) == 0 {
			out = append(out, c)
			continue
		}
		for _, m := range methods {
			if c.Method == m {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Last returns the most recent call of method.
func (f *Fake) Last(method string) (Call, bool) {
	calls := f.Calls(method)
	if len(calls) == 0 {
		return Call{}, false
	}
	return calls[len(calls)-1], true
}

// Reset forgets recorded calls but keeps configured failures.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *Fake) Send(_ context.Context, chatID int64, msg platform.Text) (platform.MessageRef, error) {
	if err := f.record(Call{Method: "Send", ChatID: chatID, Text: msg}); err != nil {
		return platform.MessageRef{}, err
	}
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.mu.Unlock()
	return platform.MessageRef{ChatID: chatID, MessageID: id}, nil
}

func (f *Fake) Edit(_ context.Context, ref platform.MessageRef, msg platform.Text) error {
	return f.record(Call{Method: "Edit", ChatID: ref.ChatID, Ref: ref, Text: msg})
}

func (f *Fake) Delete(_ context.Context, ref platform.MessageRef) error {
	return f.record(Call{Method: "Delete", ChatID: ref.ChatID, Ref: ref})
}

func (f *Fake) Copy(_ context.Context, chatID int64, src platform.MessageRef) error {
	return f.record(Call{Method: "Copy", ChatID: chatID, Ref: src})
}

func (f *Fake) SendAlbum(_ context.Context, chatID int64, items []platform.MediaItem) error {
	cp := append([]platform.MediaItem(nil), items...)
	return f.record(Call{Method: "SendAlbum", ChatID: chatID, Items: cp})
}

func (f *Fake) Answer(_ context.Context, callbackID, text string, alert bool) error {
	return f.record(Call{Method: "Answer", CallbackID: callbackID, Text: platform.Text{Body: text}, Alert: alert})
}

func (f *Fake) MemberStatus(_ context.Context, chatID, userID int64) (platform.MemberStatus, error) {
	if err := f.record(Call{Method: "MemberStatus", ChatID: chatID, UserID: userID}); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.statErr[[2]int64{chatID, userID}]; ok {
		return "", err
	}
	if st, ok := f.status[[2]int64{chatID, userID}]; ok {
		return st, nil
	}
	return platform.StatusLeft, nil
}

func (f *Fake) CreateInviteLink(_ context.Context, chatID int64, memberLimit int) (string, error) {
	if err := f.record(Call{Method: "CreateInviteLink", ChatID: chatID, Limit: memberLimit}); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links++
	return fmt.Sprintf("https://t.me/+link%d_%d", chatID, f.links), nil
}

// Notify satisfies platform.Notifier synchronously so tests can assert immediately.
func (f *Fake) Notify(_ context.Context, chatID int64, msg platform.Text) error {
	return f.record(Call{Method: "Notify", ChatID: chatID, Text: msg})
}

var (
	_ platform.Messenger = (*Fake)(nil)
	_ platform.Notifier  = (*Fake)(nil)
)
