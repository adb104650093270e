// Package sender runs best-effort outbound Telegram calls on a bounded worker pool.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/core/telegram/netutil"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull means the job was dropped because every slot is taken.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes the dispatcher; zero values pick the defaults noted per field.
type Options struct {
	QueueSize    int           // 256
	Workers      int           // 4
	MaxRetries   int           // 0
	RetryBackoff time.Duration // 2s, doubled per attempt
	MaxDuration  time.Duration // 12s per job, retries included
	// PerSecond caps calls across all workers; 0 leaves them unthrottled.
	PerSecond float64
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes queued calls asynchronously. Transient network failures and
// flood-control responses are retried; the flood wait Telegram asks for is honoured.
type Dispatcher struct {
	opts    Options
	limiter *rate.Limiter
	jobs    chan job
	wg      sync.WaitGroup
	failed  atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	if opts.PerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.PerSecond), 1)
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.handle(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run without blocking. run may be invoked more than once.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		logger.Warn(ctx, component, "send.dropped", slog.String("action", action), slog.Int("count", len(d.jobs)))
		return ErrQueueFull
	}
}

// Pending is the number of jobs waiting for a worker.
func (d *Dispatcher) Pending() int { return len(d.jobs) }

// ErrorCount is the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 { return d.failed.Load() }

// Close rejects new jobs, lets the workers finish the queue and waits for them.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) handle(j job) {
	start := time.Now()
	attempts, err := d.attempt(j)
	attrs := append(jobAttrs(j),
		slog.Int("attempts", attempts),
		slog.Duration("duration", time.Since(start)),
	)
	if err == nil {
		if attempts > 1 {
			logger.Info(j.ctx, component, "send.retry.success", attrs...)
		} else {
			logger.Debug(j.ctx, component, "send.success", attrs...)
		}
		return
	}
	d.failed.Add(1)
	attrs = append(attrs,
		slog.String("err", err.Error()),
		slog.String("err_code", classifyError(err)),
		slog.Bool("retryable", netutil.ShouldRetry(err)),
	)
	logger.Error(j.ctx, component, "send.fail", attrs...)
}

// attempt runs j until it succeeds, fails permanently or runs out of budget.
func (d *Dispatcher) attempt(j job) (int, error) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	limit := d.opts.MaxRetries + 1
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return n - 1, err
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return n - 1, err
			}
		}
		err := j.run()
		if err == nil || n == limit || !netutil.ShouldRetry(err) {
			return n, err
		}
		delay := netutil.Backoff(err, n, d.opts.RetryBackoff)
		logger.Debug(j.ctx, component, "send.retry.backoff",
			append(jobAttrs(j), slog.Int("attempts", n), slog.Duration("backoff", delay))...)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return n, errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

func jobAttrs(j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}
