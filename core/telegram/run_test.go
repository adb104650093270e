package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/communitybot/core/config"
)

// idlePoller delivers nothing and returns once telebot asks it to stop.
type idlePoller struct{ started chan struct{} }

func (p *idlePoller) Poll(_ *tele.Bot, _ chan tele.Update, stop chan struct{}) {
	close(p.started)
	<-stop
}

func offlineBot(t *testing.T, p tele.Poller) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Token: "123:test", Poller: p, Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return b
}

func TestRunTelegramLifecycle(t *testing.T) {
	p := &idlePoller{started: make(chan struct{})}
	b := offlineBot(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var startCalls, stopCalls int
	var stopCtxErr error
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunTelegram(ctx, RunOptions{
			Config:             &coreconfig.Config{},
			Bot:                b,
			DisableCommandMenu: true,
			Routes: []Route{
				{Endpoint: "/start", Handler: func(tele.Context) error { return nil }},
				{Endpoint: nil, Handler: func(tele.Context) error { return nil }},
			},
			OnStart: func(context.Context, Runtime) error { startCalls++; return nil },
			OnStop: func(ctx context.Context, rt Runtime) error {
				stopCalls++
				stopCtxErr = ctx.Err()
				if rt.Dispatcher == nil || rt.Registry == nil {
					return errors.New("runtime not populated")
				}
				return nil
			},
		})
	}()

	select {
	case <-p.started:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never started")
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("RunTelegram: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunTelegram did not return after cancel")
	}
	if startCalls != 1 || stopCalls != 1 {
		t.Fatalf("hooks: start=%d stop=%d", startCalls, stopCalls)
	}
	if stopCtxErr != nil {
		t.Fatalf("OnStop got a cancelled context: %v", stopCtxErr)
	}
}

func TestRunTelegramStartFailure(t *testing.T) {
	b := offlineBot(t, &idlePoller{started: make(chan struct{})})
	boom := errors.New("boom")
	stopped := false
	err := RunTelegram(context.Background(), RunOptions{
		Config:             &coreconfig.Config{},
		Bot:                b,
		DisableCommandMenu: true,
		OnStart:            func(context.Context, Runtime) error { return boom },
		OnStop:             func(context.Context, Runtime) error { stopped = true; return nil },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected OnStart error, got %v", err)
	}
	if stopped {
		t.Fatal("OnStop ran although the bot never started")
	}
}

func TestRunTelegramNilConfig(t *testing.T) {
	if err := RunTelegram(context.Background(), RunOptions{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
