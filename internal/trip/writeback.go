package trip

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"backend-busboxd/internal/storage"

	"github.com/cenkalti/backoff/v4"
)

// WritebackStatus is the visible state of the background writer.
type WritebackStatus struct {
	Pending     bool      `json:"pending"`
	Scheduled   uint64    `json:"scheduled"`
	Attempted   uint64    `json:"attempted"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitempty"`
	Blocked     bool      `json:"blocked"`
	SyncError   string    `json:"sync_error,omitempty"`
}

type saveFunc func(ctx context.Context, data []byte, message string) error

type job struct {
	seq     uint64
	trips   []Trip
	message string
}

type waiter struct {
	seq uint64
	ch  chan error
}

// writer commits snapshots from a single goroutine. Scheduling replaces the
// pending snapshot, so a burst of mutations results in one commit of the
// latest state and completions never land out of order.
type writer struct {
	save     saveFunc
	retries  int
	interval time.Duration
	logger   *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu       sync.Mutex
	pending  *job
	inflight bool
	closed   bool
	seq      uint64
	attempts uint64
	lastErr  error
	waiters  []waiter
	status   WritebackStatus
}

func newWriter(save saveFunc, retries int, interval time.Duration, logger *slog.Logger) *writer {
	ctx, cancel := context.WithCancel(context.Background())
	w := &writer{
		save:     save,
		retries:  retries,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.run()
	return w
}

// schedule hands a snapshot to the worker and returns immediately.
func (w *writer) schedule(trips []Trip, message string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("write-back dropped after close", "message", message)
		return
	}
	w.seq++
	w.pending = &job{seq: w.seq, trips: trips, message: message}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.stop:
			w.drain()
			return
		}
	}
}

func (w *writer) drain() {
	for {
		w.mu.Lock()
		j := w.pending
		w.pending = nil
		w.inflight = j != nil
		w.mu.Unlock()
		if j == nil {
			return
		}
		w.finish(j.seq, w.commit(j))
	}
}

func (w *writer) commit(j *job) error {
	data, err := Encode(j.trips)
	if err != nil {
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.interval
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(w.retries, 0))), w.ctx)

	return backoff.Retry(func() error {
		err := w.save(w.ctx, data, j.message)
		if err == nil || storage.IsRemote(err) || errors.Is(err, storage.ErrExists) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

func (w *writer) finish(seq uint64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.inflight = false
	w.attempts = seq
	w.lastErr = err
	if err != nil {
		w.status.LastError = err.Error()
		w.status.LastErrorAt = time.Now()
		w.logger.Error("trip write-back failed", "seq", seq, "error", err)
	} else {
		w.status.LastSuccess = time.Now()
		w.status.LastError = ""
		w.logger.Debug("trip write-back committed", "seq", seq)
	}

	kept := w.waiters[:0]
	for _, wt := range w.waiters {
		if wt.seq <= seq {
			wt.ch <- err
			continue
		}
		kept = append(kept, wt)
	}
	w.waiters = kept
}

// flush waits until every snapshot scheduled before the call was attempted
// and returns the error of that attempt.
func (w *writer) flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.seq
	if w.attempts >= target {
		err := w.lastErr
		w.mu.Unlock()
		if target == 0 {
			return nil
		}
		return err
	}
	ch := make(chan error, 1)
	w.waiters = append(w.waiters, waiter{seq: target, ch: ch})
	w.mu.Unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *writer) snapshotStatus() WritebackStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.status
	st.Pending = w.pending != nil || w.inflight
	st.Scheduled = w.seq
	st.Attempted = w.attempts
	return st
}

// close commits whatever is pending and stops the worker. When ctx expires
// first, the in-flight commit is cancelled.
func (w *writer) close(ctx context.Context) error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.stop)
	})

	select {
	case <-w.stopped:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.stopped
		return ctx.Err()
	}
}
