package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	tele "gopkg.in/telebot.v4"

	tgsender "github.com/m3rciful/communitybot/core/telegram/sender"
	"github.com/m3rciful/communitybot/internal/platform"
)

type apiCall struct {
	method string
	to     tele.Recipient
	what   interface{}
	opts   []interface{}
	album  tele.Album
	link   *tele.ChatInviteLink
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	editErr error
	role    tele.MemberStatus
}

func (f *fakeAPI) record(c apiCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeAPI) last() apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.record(apiCall{method: "send", to: to, what: what, opts: opts})
	return &tele.Message{ID: 77, Chat: &tele.Chat{ID: 5}}, nil
}

func (f *fakeAPI) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.record(apiCall{method: "edit", what: what, opts: opts})
	return nil, f.editErr
}

func (f *fakeAPI) Delete(tele.Editable) error {
	f.record(apiCall{method: "delete"})
	return nil
}

func (f *fakeAPI) Copy(to tele.Recipient, _ tele.Editable, _ ...interface{}) (*tele.Message, error) {
	f.record(apiCall{method: "copy", to: to})
	return &tele.Message{}, nil
}

func (f *fakeAPI) SendAlbum(to tele.Recipient, a tele.Album, opts ...interface{}) ([]tele.Message, error) {
	f.record(apiCall{method: "album", to: to, album: a, opts: opts})
	return nil, nil
}

func (f *fakeAPI) Respond(*tele.Callback, ...*tele.CallbackResponse) error {
	f.record(apiCall{method: "respond"})
	return nil
}

func (f *fakeAPI) ChatMemberOf(chat, _ tele.Recipient) (*tele.ChatMember, error) {
	f.record(apiCall{method: "member", to: chat})
	return &tele.ChatMember{Role: f.role}, nil
}

func (f *fakeAPI) CreateInviteLink(chat tele.Recipient, link *tele.ChatInviteLink) (*tele.ChatInviteLink, error) {
	f.record(apiCall{method: "invite", to: chat, link: link})
	return &tele.ChatInviteLink{InviteLink: "https://t.me/+abc"}, nil
}

func TestSendPassesModePreviewAndKeyboard(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)
	ref, err := m.Send(context.Background(), 5, platform.Text{
		Body:      "<b>hi</b>",
		Mode:      platform.ModeHTML,
		NoPreview: true,
		Keyboard:  platform.Keyboard{platform.Row(platform.Button{Text: "x", Action: "show_stats"})},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ref != (platform.MessageRef{ChatID: 5, MessageID: 77}) {
		t.Fatalf("ref = %+v", ref)
	}
	opts := api.last().opts
	if len(opts) != 3 || opts[0] != tele.ModeHTML || opts[1] != tele.NoPreview {
		t.Fatalf("options = %#v", opts)
	}
	if _, ok := opts[2].(*tele.ReplyMarkup); !ok {
		t.Fatalf("third option = %T, want keyboard", opts[2])
	}
}

func TestEditIgnoresNotModified(t *testing.T) {
	api := &fakeAPI{editErr: errors.New("telegram: Bad Request: message is not modified (400)")}
	m := NewMessenger(api)
	ref := platform.MessageRef{ChatID: 5, MessageID: 1}
	if err := m.Edit(context.Background(), ref, platform.Text{Body: "same"}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	api.editErr = errors.New("telegram: message to edit not found (400)")
	if err := m.Edit(context.Background(), ref, platform.Text{Body: "x"}); err == nil {
		t.Fatalf("real edit failure swallowed")
	}
}

func TestSendAlbumBuildsPhotosAndVideos(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)
	err := m.SendAlbum(context.Background(), 9, []platform.MediaItem{
		{Kind: platform.MediaPhoto, FileID: "p", Caption: "<i>c</i>", Mode: platform.ModeHTML},
		{Kind: platform.MediaVideo, FileID: "v"},
		{Kind: platform.MediaOther, FileID: "d"},
	})
	if err != nil {
		t.Fatalf("album: %v", err)
	}
	call := api.last()
	if len(call.album) != 2 {
		t.Fatalf("album size = %d, want 2", len(call.album))
	}
	photo, ok := call.album[0].(*tele.Photo)
	if !ok || photo.FileID != "p" || photo.Caption != "<i>c</i>" {
		t.Fatalf("first item = %#v", call.album[0])
	}
	if _, ok := call.album[1].(*tele.Video); !ok {
		t.Fatalf("second item = %T", call.album[1])
	}
	if len(call.opts) != 1 || call.opts[0] != tele.ModeHTML {
		t.Fatalf("album options = %#v", call.opts)
	}

	if err := m.SendAlbum(context.Background(), 9, []platform.MediaItem{{Kind: platform.MediaOther}}); err == nil {
		t.Fatalf("album without photos or videos must fail")
	}
}

func TestInviteLinkAndMemberStatus(t *testing.T) {
	api := &fakeAPI{role: tele.Administrator}
	m := NewMessenger(api)
	ctx := context.Background()

	link, err := m.CreateInviteLink(ctx, -100, 1)
	if err != nil || link != "https://t.me/+abc" {
		t.Fatalf("link = %q, %v", link, err)
	}
	if api.last().link.MemberLimit != 1 {
		t.Fatalf("member limit = %d", api.last().link.MemberLimit)
	}
	st, err := m.MemberStatus(ctx, -100, 7)
	if err != nil || st != platform.StatusAdministrator || !st.IsMember() {
		t.Fatalf("status = %q, %v", st, err)
	}
}

func TestCancelledContextSkipsCalls(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Copy(ctx, 1, platform.MessageRef{ChatID: 2, MessageID: 3}); !errors.Is(err, context.Canceled) {
		t.Fatalf("copy err = %v", err)
	}
	if api.count() != 0 {
		t.Fatalf("api called with a cancelled context")
	}
}

func TestNotifierOutlivesRequestContext(t *testing.T) {
	api := &fakeAPI{}
	d := tgsender.NewDispatcher(tgsender.Options{Workers: 1})
	n := NewNotifier(NewMessenger(api), d)

	ctx, cancel := context.WithCancel(context.Background())
	if err := n.Notify(ctx, 5, platform.Text{Body: "welcome"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	cancel()
	d.Close()

	if api.count() != 1 || api.last().what != "welcome" {
		t.Fatalf("calls = %d", api.count())
	}
}
