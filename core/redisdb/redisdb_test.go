package redisdb

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestConnectDisabled(t *testing.T) {
	client, err := Connect(context.Background(), Config{})
	if err != nil || client != nil {
		t.Fatalf("Connect(disabled) = %v, %v; want nil, nil", client, err)
	}
}

func TestConnectAndPing(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client, err := Connect(context.Background(), Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := Ping(context.Background(), client); err != nil {
		t.Fatalf("ping: %v", err)
	}

	mr.Close()
	if err := Ping(context.Background(), client); err == nil {
		t.Fatalf("expected ping error after server shutdown")
	}
}

func TestPrefix(t *testing.T) {
	tests := map[string]string{
		"":       "communitybot:",
		"bot":    "bot:",
		"bot:":   "bot:",
		" cb:x ": "cb:x:",
	}
	for in, want := range tests {
		if got := (Config{KeyPrefix: in}).Prefix(); got != want {
			t.Errorf("Prefix(%q) = %q, want %q", in, got, want)
		}
	}
}
