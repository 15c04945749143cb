package poll

import (
	"context"
	"sync"
	"time"
)

// Strategy decides when a refresh runs. The channel is closed once ctx is
// done.
type Strategy interface {
	Triggers(ctx context.Context) <-chan struct{}
}

// Interval fires every Every, and once right away when Immediate is set.
type Interval struct {
	Every     time.Duration
	Immediate bool
}

func Every(d time.Duration) Interval {
	return Interval{Every: d, Immediate: true}
}

func (i Interval) Triggers(ctx context.Context) <-chan struct{} {
	every := i.Every
	if every <= 0 {
		every = 5 * time.Second
	}
	out := make(chan struct{})
	go func() {
		defer close(out)
		if i.Immediate && !emit(ctx, out) {
			return
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !emit(ctx, out) {
					return
				}
			}
		}
	}()
	return out
}

// Manual fires only when told to. Tests use it, and so would a push source.
type Manual struct {
	fire chan struct{}
}

func NewManual() *Manual {
	return &Manual{fire: make(chan struct{}, 1)}
}

// Fire queues one trigger. Fires while one is already queued coalesce.
func (m *Manual) Fire() {
	select {
	case m.fire <- struct{}{}:
	default:
	}
}

func (m *Manual) Triggers(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.fire:
				if !emit(ctx, out) {
					return
				}
			}
		}
	}()
	return out
}

func emit(ctx context.Context, out chan<- struct{}) bool {
	select {
	case out <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run calls fn once per trigger until ctx is done.
func Run(ctx context.Context, s Strategy, fn func(ctx context.Context)) {
	for range s.Triggers(ctx) {
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	}
}

// Sequence orders overlapping fetches of one collection. A result is only
// applied when it was issued after the last applied one, so a slow early
// response cannot clobber a newer snapshot.
type Sequence struct {
	mu        sync.Mutex
	issued    uint64
	committed uint64
}

func (s *Sequence) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Commit runs apply if n is newer than the last committed number.
func (s *Sequence) Commit(n uint64, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= s.committed {
		return false
	}
	s.committed = n
	apply()
	return true
}
