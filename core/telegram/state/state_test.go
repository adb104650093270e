package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

type draft struct {
	Target string   `json:"target"`
	Items  []string `json:"items"`
}

func TestMemoryStoreExpiresIdleSessions(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore[draft](10 * time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	if err := store.Put(ctx, 7, Session[draft]{State: "CHOOSE_TARGET", Data: draft{Target: "all"}}); err != nil {
		t.Fatalf("put: %v", err)
	}

	now = now.Add(9 * time.Minute)
	got, ok, err := store.Get(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("get before expiry: ok=%v err=%v", ok, err)
	}
	if got.State != "CHOOSE_TARGET" || got.Data.Target != "all" {
		t.Fatalf("unexpected session: %+v", got)
	}

	now = now.Add(11 * time.Minute)
	if _, ok, _ := store.Get(ctx, 7); ok {
		t.Fatalf("session should have expired")
	}
	if store.Len() != 0 {
		t.Fatalf("expired session should be dropped, len=%d", store.Len())
	}
}

func TestMemoryStorePutRefreshesActivity(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore[draft](time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	_ = store.Put(ctx, 1, Session[draft]{State: "A"})
	now = now.Add(50 * time.Second)
	_ = store.Put(ctx, 1, Session[draft]{State: "B"})
	now = now.Add(50 * time.Second)

	got, ok, _ := store.Get(ctx, 1)
	if !ok || got.State != "B" {
		t.Fatalf("session should survive after refresh: %+v ok=%v", got, ok)
	}
	_ = store.Delete(ctx, 1)
	if _, ok, _ := store.Get(ctx, 1); ok {
		t.Fatalf("deleted session still present")
	}
}

func TestRedisStoreRoundTripAndTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	store := NewRedisStore[draft](client, "cb:", "admin", 10*time.Minute)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, 5); ok || err != nil {
		t.Fatalf("empty get: ok=%v err=%v", ok, err)
	}

	in := Session[draft]{State: "GET_CONTENT", Data: draft{Target: "-100", Items: []string{"a", "b"}}}
	if err := store.Put(ctx, 5, in); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("cb:session:admin:5") {
		t.Fatalf("expected namespaced key, have %v", mr.Keys())
	}

	got, ok, err := store.Get(ctx, 5)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.State != in.State || len(got.Data.Items) != 2 || got.Data.Target != "-100" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	mr.FastForward(11 * time.Minute)
	if _, ok, _ := store.Get(ctx, 5); ok {
		t.Fatalf("session should expire in redis")
	}
}

func TestSessionActive(t *testing.T) {
	if (Session[draft]{}).Active() {
		t.Fatalf("zero session is idle")
	}
	if (Session[draft]{State: StateIdle}).Active() {
		t.Fatalf("idle session is not active")
	}
	if !(Session[draft]{State: "MENU"}).Active() {
		t.Fatalf("menu session is active")
	}
}
