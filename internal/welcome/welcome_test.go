package welcome_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m3rciful/communitybot/internal/config"
	"github.com/m3rciful/communitybot/internal/domain"
	"github.com/m3rciful/communitybot/internal/invites"
	"github.com/m3rciful/communitybot/internal/platform"
	"github.com/m3rciful/communitybot/internal/platform/platformtest"
	"github.com/m3rciful/communitybot/internal/store/storetest"
	"github.com/m3rciful/communitybot/internal/welcome"
)

var channels = config.ChannelList{
	{ID: -100, Label: "News", Icon: "📰"},
	{ID: -200, Label: "Market", Icon: "🛒"},
}

func TestStartRegistersUserAndSkipsBrokenChannels(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	fake := platformtest.New()
	fake.FailOn("CreateInviteLink", -200, errors.New("Bad Request: not enough rights"))
	svc := welcome.New(s, invites.New(fake, nil), fake, welcome.Options{Channels: channels})

	u := domain.User{ID: 7, Username: "ann", FirstName: "Ann"}
	if err := svc.Start(ctx, 7, u); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got, err := s.User(ctx, 7); err != nil || got.FirstName != "Ann" {
		t.Fatalf("user = %+v, %v", got, err)
	}

	sent, ok := fake.Last("Send")
	if !ok {
		t.Fatalf("no welcome sent")
	}
	if sent.Text.Mode != platform.ModeHTML || !strings.Contains(sent.Text.Body, `tg://user?id=7`) {
		t.Fatalf("welcome body = %q", sent.Text.Body)
	}
	kb := sent.Text.Keyboard
	if len(kb) != 1 || kb[0][0].URL == "" || kb[0][0].Text != "📰 News" {
		t.Fatalf("keyboard = %+v, want only the News link", kb)
	}

	_ = svc.Start(ctx, 7, u)
	if got := len(fake.Calls("CreateInviteLink")); got != 3 {
		t.Fatalf("link creations = %d, want 3 (News cached, Market retried)", got)
	}
}

func TestPersonalJoinFlow(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	fake := platformtest.New()
	svc := welcome.New(s, invites.New(fake, nil), fake, welcome.Options{Channels: channels, Personal: true})

	if err := svc.Start(ctx, 7, domain.User{ID: 7}); err != nil {
		t.Fatalf("start: %v", err)
	}
	sent, _ := fake.Last("Send")
	btn := sent.Text.Keyboard[1][0]
	if btn.Action != welcome.ActionJoin || btn.Payload != "-200" || btn.URL != "" {
		t.Fatalf("join button = %+v", btn)
	}
	if len(fake.Calls("CreateInviteLink")) != 0 {
		t.Fatalf("links must be created on press only")
	}

	origin := platform.MessageRef{ChatID: 7, MessageID: 1}
	if err := svc.Join(ctx, "cb1", origin, "-200"); err != nil {
		t.Fatalf("join: %v", err)
	}
	link, _ := fake.Last("CreateInviteLink")
	if link.ChatID != -200 || link.Limit != 1 {
		t.Fatalf("link call = %+v", link)
	}
	edit, ok := fake.Last("Edit")
	if !ok || edit.Ref != origin || edit.Text.Keyboard[0][0].URL == "" {
		t.Fatalf("edit = %+v", edit)
	}
	if ans, _ := fake.Last("Answer"); ans.CallbackID != "cb1" || ans.Alert {
		t.Fatalf("answer = %+v", ans)
	}
}

func TestJoinUnknownChannel(t *testing.T) {
	ctx := context.Background()
	fake := platformtest.New()
	svc := welcome.New(storetest.New(t), invites.New(fake, nil), fake, welcome.Options{Channels: channels, Personal: true})

	if err := svc.Join(ctx, "cb1", platform.MessageRef{ChatID: 7, MessageID: 1}, "-999"); err != nil {
		t.Fatalf("join: %v", err)
	}
	ans, _ := fake.Last("Answer")
	if !ans.Alert {
		t.Fatalf("unknown channel should be answered with an alert")
	}
	if len(fake.Calls("CreateInviteLink", "Edit")) != 0 {
		t.Fatalf("no link or edit expected")
	}
}
