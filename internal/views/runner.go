package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/observability"
	"github.com/loangraph/marketsync/internal/poll"
	"github.com/loangraph/marketsync/internal/remote"
)

// ErrStopped is returned for results that arrived after the view was torn
// down. They are never written.
var ErrStopped = errors.New("view_stopped")

// Identity is the slice of the directory a view needs.
type Identity interface {
	Me() (market.User, bool)
	DisplayName(id string) string
}

// View is what the console serves and publishes.
type View interface {
	Name() string
	Start(ctx context.Context)
	Stop()
	Refresh(ctx context.Context) error
	Snapshot() any
}

// Slot holds one fetched collection. Commits are ordered by request
// sequence, newest wins.
type Slot[T any] struct {
	name string
	seq  poll.Sequence

	mu     sync.RWMutex
	value  T
	loaded bool
}

func newSlot[T any](name string) *Slot[T] {
	return &Slot[T]{name: name}
}

func (s *Slot[T]) Get() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.loaded
}

func (s *Slot[T]) set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.loaded = true
}

type Severity string

const (
	SeverityDanger  Severity = "danger"
	SeverityWarning Severity = "warning"
)

type Alert struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// runner is the refresh loop shared by every view.
type runner struct {
	name     string
	strategy poll.Strategy
	logger   *slog.Logger
	refresh  func(ctx context.Context) error

	mu      sync.RWMutex
	gen     uint64
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	alertMu sync.Mutex
	alert   *Alert
}

func newRunner(name string, strategy poll.Strategy, logger *slog.Logger) *runner {
	if logger == nil {
		logger = observability.Discard()
	}
	if strategy == nil {
		strategy = poll.Every(5 * time.Second)
	}
	return &runner{name: name, strategy: strategy, logger: logger.With("view", name)}
}

func (r *runner) Name() string { return r.name }

// Start launches the refresh loop. Calling it on a running view is a no-op.
func (r *runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	r.gen++
	r.stopped = false
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	go func() {
		defer close(done)
		poll.Run(loopCtx, r.strategy, func(ctx context.Context) {
			_ = r.refresh(ctx)
		})
	}()
	r.logger.Debug("view started")
}

// Stop cancels the loop and waits for it. Results still in flight are
// discarded when they land.
func (r *runner) Stop() {
	r.mu.Lock()
	if r.cancel == nil {
		r.stopped = true
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.cancel = nil
	r.gen++
	r.stopped = true
	done := r.done
	r.mu.Unlock()

	<-done
	r.logger.Debug("view stopped")
}

func (r *runner) Refresh(ctx context.Context) error {
	return r.refresh(ctx)
}

func (r *runner) generation() (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen, !r.stopped
}

// load fetches one slot and commits it unless the view was torn down in the
// meantime or a newer fetch already committed.
func load[T any](ctx context.Context, r *runner, s *Slot[T], fetch func(context.Context) (T, error)) error {
	gen, live := r.generation()
	if !live {
		return ErrStopped
	}
	n := s.seq.Next()
	v, err := fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("view read failed", "slot", s.name, "err", err)
		}
		return fmt.Errorf("%s: %w", s.name, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped || r.gen != gen {
		return ErrStopped
	}
	s.seq.Commit(n, func() { s.set(v) })
	return nil
}

// parallel runs every read at once and waits for all of them.
func parallel(ctx context.Context, reads ...func(context.Context) error) error {
	errs := make([]error, len(reads))
	var wg sync.WaitGroup
	for i, read := range reads {
		wg.Add(1)
		go func(i int, read func(context.Context) error) {
			defer wg.Done()
			errs[i] = read(ctx)
		}(i, read)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// act runs a write and refreshes on success. A failure replaces the alert.
func (r *runner) act(ctx context.Context, write func(context.Context) error) error {
	if err := write(ctx); err != nil {
		r.fail(err)
		return err
	}
	_ = r.refresh(ctx)
	return nil
}

func (r *runner) fail(err error) {
	msg := err.Error()
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	r.setAlert(&Alert{Severity: SeverityDanger, Message: msg})
}

func (r *runner) setAlert(a *Alert) {
	r.alertMu.Lock()
	defer r.alertMu.Unlock()
	r.alert = a
}

// Alert returns the last write failure, if any.
func (r *runner) Alert() *Alert {
	r.alertMu.Lock()
	defer r.alertMu.Unlock()
	if r.alert == nil {
		return nil
	}
	cp := *r.alert
	return &cp
}

func (r *runner) DismissAlert() {
	r.setAlert(nil)
}

func value[T any](s *Slot[T]) T {
	v, _ := s.Get()
	return v
}

func slice[T any](s *Slot[[]T]) []T {
	v, _ := s.Get()
	if v == nil {
		return []T{}
	}
	return v
}
