package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// maxBatch bounds how many queued lines one write pass takes.
const maxBatch = 128

var errWriterClosed = errors.New("logger: writer closed")

// asyncWriter fans log lines out to its sinks from a single goroutine.
// Lines queued during a write pass go out together in the next one.
type asyncWriter struct {
	lines   chan []byte
	flushes chan chan error
	stopped chan struct{}
	closing sync.Once
	closed  atomic.Bool
	sinks   []*bufio.Writer
	failed  atomic.Pointer[error]
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		lines:   make(chan []byte, 256),
		flushes: make(chan chan error),
		stopped: make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.stopped)
	batch := make([][]byte, 0, maxBatch)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.fail(w.flush())
				return
			}
			batch = w.drain(append(batch[:0], line))
			w.fail(w.write(batch))
		case ack := <-w.flushes:
			for {
				if batch = w.drain(batch[:0]); len(batch) == 0 {
					break
				}
				w.fail(w.write(batch))
			}
			ack <- w.flush()
		}
	}
}

// drain appends whatever is already queued without blocking.
func (w *asyncWriter) drain(batch [][]byte) [][]byte {
	for len(batch) < maxBatch {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return batch
			}
			batch = append(batch, line)
		default:
			return batch
		}
	}
	return batch
}

func (w *asyncWriter) write(batch [][]byte) error {
	for _, sink := range w.sinks {
		for _, line := range batch {
			if _, err := sink.Write(line); err != nil {
				return err
			}
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Write queues a copy of p. It blocks while the queue is full so lines are never dropped.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.failure(); err != nil {
		return err
	}
	if w.closed.Load() {
		return errWriterClosed
	}
	if len(p) == 0 {
		return nil
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush waits until every queued line reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.failure(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.stopped:
		return w.failure()
	}
}

// Close drains the queue and reports the first write error.
func (w *asyncWriter) Close() error {
	w.closing.Do(func() {
		w.closed.Store(true)
		close(w.lines)
	})
	<-w.stopped
	return w.failure()
}

// fail keeps the first error only.
func (w *asyncWriter) fail(err error) {
	if err != nil {
		w.failed.CompareAndSwap(nil, &err)
	}
}

func (w *asyncWriter) failure() error {
	if p := w.failed.Load(); p != nil {
		return *p
	}
	return nil
}
