package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherRunsJobs(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, QueueSize: 8})
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		if err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
			ran.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	d.Close()
	if ran.Load() != 5 {
		t.Fatalf("ran = %d, want 5", ran.Load())
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("errors = %d", d.ErrorCount())
	}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var attempts atomic.Int32
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
	_ = d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		if attempts.Add(1) < 3 {
			return dialErr
		}
		return nil
	})
	d.Close()
	if attempts.Load() != 3 {
		t.Fatalf("attempts = %d, want 3", attempts.Load())
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("successful retry counted as failure")
	}
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var attempts atomic.Int32
	_ = d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		attempts.Add(1)
		return errors.New("Forbidden: bot was blocked by the user (403)")
	})
	d.Close()
	if attempts.Load() != 1 {
		t.Fatalf("permanent errors must not be retried, attempts = %d", attempts.Load())
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("errors = %d, want 1", d.ErrorCount())
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestDispatcherRejectsWhenFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	block := func() error {
		close(started)
		<-release
		return nil
	}
	if err := d.Enqueue(context.Background(), "notify", "sendMessage", block); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	<-started
	noop := func() error { return nil }
	if err := d.Enqueue(context.Background(), "notify", "sendMessage", noop); err != nil {
		t.Fatalf("queued enqueue: %v", err)
	}
	if err := d.Enqueue(context.Background(), "notify", "sendMessage", noop); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	close(release)
	d.Close()
}

func TestDispatcherThrottlesAcrossWorkers(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, PerSecond: 50})
	start := time.Now()
	for i := 0; i < 6; i++ {
		_ = d.Enqueue(context.Background(), "broadcast", "copyMessage", func() error { return nil })
	}
	d.Close()
	// one token up front, then one every 20ms
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("6 calls at 50/s finished in %v", elapsed)
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, "dial"},
		{tele.FloodError{RetryAfter: 3}, "flood"},
		{errors.New("telegram: Bad Request: chat not found (400)"), "http_4xx"},
		{errors.New("telegram: Forbidden: bot was blocked by the user (403)"), "forbidden"},
		{errors.New("telegram: Internal Server Error (500)"), "http_5xx"},
		{errors.New("something (odd) happened"), "unknown"},
	}
	for _, tc := range cases {
		if got := classifyError(tc.err); got != tc.want {
			t.Errorf("classifyError(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
