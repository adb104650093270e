package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m3rciful/communitybot/internal/platform"
	"github.com/m3rciful/communitybot/internal/platform/platformtest"
)

func TestFailingRecipientDoesNotStopTheRun(t *testing.T) {
	fake := platformtest.New()
	fake.FailOn("Copy", 20, errors.New("bot was blocked by the user"))
	s := New(fake, time.Millisecond)

	src := platform.MessageRef{ChatID: 1, MessageID: 77}
	rep, err := s.Deliver(context.Background(), []int64{10, 20, 30}, []Item{{Source: src}})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if rep.Sent != 2 || rep.Failed != 1 || rep.Recipients != 3 {
		t.Fatalf("report = %+v, want 2 sent / 1 failed", rep)
	}
	if rep.RunID == "" {
		t.Fatalf("run id missing")
	}
	copies := fake.Calls("Copy")
	if len(copies) != 3 || copies[2].ChatID != 30 || copies[2].Ref != src {
		t.Fatalf("copies = %+v", copies)
	}
}

func TestAlbumCaptionOnFirstItem(t *testing.T) {
	items := []Item{
		{Media: platform.MediaItem{Kind: platform.MediaPhoto, FileID: "a"}},
		{Media: platform.MediaItem{Kind: platform.MediaOther, FileID: "doc"}},
		{Media: platform.MediaItem{Kind: platform.MediaVideo, FileID: "b", Caption: "<b>Sale</b>"}},
	}
	album := Album(items)
	if len(album) != 2 {
		t.Fatalf("album = %+v, want photo and video only", album)
	}
	if album[0].Caption != "<b>Sale</b>" || album[0].Mode != platform.ModeHTML {
		t.Fatalf("first item = %+v, want caption moved to it", album[0])
	}
	if album[1].Caption != "" {
		t.Fatalf("caption repeated on second item")
	}
}

func TestDeliverSendsAlbums(t *testing.T) {
	fake := platformtest.New()
	items := []Item{
		{Media: platform.MediaItem{Kind: platform.MediaPhoto, FileID: "a"}},
		{Media: platform.MediaItem{Kind: platform.MediaPhoto, FileID: "b"}},
	}
	rep, err := New(fake, 0).Deliver(context.Background(), []int64{1, 2}, items)
	if err != nil || rep.Sent != 2 {
		t.Fatalf("report = %+v, err = %v", rep, err)
	}
	if calls := fake.Calls("SendAlbum"); len(calls) != 2 || len(calls[0].Items) != 2 {
		t.Fatalf("album calls = %+v", calls)
	}
}

func TestDeliverWithoutMedia(t *testing.T) {
	items := []Item{
		{Media: platform.MediaItem{Kind: platform.MediaOther}},
		{Media: platform.MediaItem{Kind: platform.MediaOther}},
	}
	if _, err := New(platformtest.New(), 0).Deliver(context.Background(), []int64{1}, items); !errors.Is(err, ErrNoMedia) {
		t.Fatalf("err = %v, want ErrNoMedia", err)
	}
}

func TestDeliverPacesSends(t *testing.T) {
	fake := platformtest.New()
	interval := 20 * time.Millisecond
	start := time.Now()
	_, err := New(fake, interval).Deliver(context.Background(), []int64{1, 2, 3}, []Item{{}})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Fatalf("3 sends took %v, want at least %v", elapsed, 2*interval)
	}
}

func TestDeliverStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := New(platformtest.New(), time.Hour).Deliver(ctx, []int64{1, 2}, []Item{{}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if rep.Sent != 0 {
		t.Fatalf("sent after cancel: %+v", rep)
	}
}
