package membership_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m3rciful/communitybot/internal/config"
	"github.com/m3rciful/communitybot/internal/domain"
	"github.com/m3rciful/communitybot/internal/membership"
	"github.com/m3rciful/communitybot/internal/platform"
	"github.com/m3rciful/communitybot/internal/platform/platformtest"
	"github.com/m3rciful/communitybot/internal/store/storetest"
)

var channels = config.ChannelList{
	{ID: -100, Label: "News"},
	{ID: -200, Label: "Market"},
}

func TestJoinThenLeaveLeavesNoRow(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	fake := platformtest.New()
	tr := membership.NewTracker(s, channels, fake)

	join := membership.Change{ChatID: -100, UserID: 7, Old: platform.StatusLeft, New: platform.StatusMember}
	if err := tr.Handle(ctx, join); err != nil {
		t.Fatalf("join: %v", err)
	}
	if ids, _ := s.SubscriberIDs(ctx, -100); len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("subscribers after join = %v", ids)
	}
	leave := membership.Change{ChatID: -100, UserID: 7, Old: platform.StatusMember, New: platform.StatusLeft}
	if err := tr.Handle(ctx, leave); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if ids, _ := s.SubscriberIDs(ctx, -100); len(ids) != 0 {
		t.Fatalf("subscribers after round trip = %v", ids)
	}
}

func TestWelcomeOnlyWithoutBotLink(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	fake := platformtest.New()
	tr := membership.NewTracker(s, channels, fake)

	_ = tr.Handle(ctx, membership.Change{ChatID: -100, UserID: 7, FirstName: "Ann", Old: platform.StatusLeft, New: platform.StatusMember})
	_ = tr.Handle(ctx, membership.Change{ChatID: -100, UserID: 8, Old: platform.StatusKicked, New: platform.StatusMember, ViaBotLink: true})

	notes := fake.Calls("Notify")
	if len(notes) != 1 || notes[0].ChatID != 7 {
		t.Fatalf("welcome calls = %+v, want one for user 7", notes)
	}
}

func TestWelcomeFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	fake := platformtest.New()
	fake.FailOn("Notify", 7, errors.New("Forbidden: bot can't initiate conversation with a user"))
	tr := membership.NewTracker(s, channels, fake)

	err := tr.Handle(ctx, membership.Change{ChatID: -100, UserID: 7, Old: platform.StatusLeft, New: platform.StatusAdministrator})
	if err != nil {
		t.Fatalf("welcome failure surfaced: %v", err)
	}
	if ids, _ := s.SubscriberIDs(ctx, -100); len(ids) != 1 {
		t.Fatalf("subscription missing after failed welcome")
	}
}

func TestIgnoresOtherChatsAndSideMoves(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	fake := platformtest.New()
	tr := membership.NewTracker(s, channels, fake)

	_ = tr.Handle(ctx, membership.Change{ChatID: -999, UserID: 7, Old: platform.StatusLeft, New: platform.StatusMember})
	_ = tr.Handle(ctx, membership.Change{ChatID: -100, UserID: 7, Old: platform.StatusMember, New: platform.StatusAdministrator})
	_ = tr.Handle(ctx, membership.Change{ChatID: -100, UserID: 8, Old: platform.StatusLeft, New: platform.StatusKicked})

	counts, _ := s.SubscriberCounts(ctx)
	if len(counts) != 0 {
		t.Fatalf("counts = %v, want none", counts)
	}
	if len(fake.Calls()) != 0 {
		t.Fatalf("unexpected platform calls: %+v", fake.Calls())
	}
}

func TestResyncReplacesRows(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	for _, id := range []int64{1, 2, 3} {
		_ = s.UpsertUser(ctx, domain.User{ID: id})
	}
	_ = s.AddSubscription(ctx, 3, -100)

	fake := platformtest.New()
	fake.SetStatus(-100, 1, platform.StatusMember)
	fake.SetStatus(-100, 2, platform.StatusCreator)
	fake.SetStatusError(-100, 3, errors.New("Bad Request: user not found"))
	fake.SetStatus(-200, 2, platform.StatusRestricted)
	fake.SetStatus(-200, 3, platform.StatusAdministrator)

	total, err := membership.NewSyncer(s, channels, fake).Resync(ctx)
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	news, _ := s.SubscriberIDs(ctx, -100)
	if len(news) != 2 || news[0] != 1 || news[1] != 2 {
		t.Fatalf("news subscribers = %v", news)
	}
	market, _ := s.SubscriberIDs(ctx, -200)
	if len(market) != 1 || market[0] != 3 {
		t.Fatalf("market subscribers = %v", market)
	}
	if got := len(fake.Calls("MemberStatus")); got != 6 {
		t.Fatalf("status lookups = %d, want 6", got)
	}
}
