package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/loangraph/marketsync/internal/observability"
	"golang.org/x/crypto/sha3"
)

// Source is anything whose state is pushed to subscribers of Channel.
type Source interface {
	Channel() string
	Snapshot() any
}

// SourceFunc adapts a snapshot function to a Source.
type SourceFunc struct {
	Name string
	Fn   func() any
}

func (s SourceFunc) Channel() string { return s.Name }
func (s SourceFunc) Snapshot() any   { return s.Fn() }

// Notifier polls its sources and publishes a snapshot whenever its digest
// changes. Nudge forces an early pass.
type Notifier struct {
	hub          *Hub
	sources      []Source
	pollInterval time.Duration
	logger       *slog.Logger

	nudge   chan struct{}
	mu      sync.Mutex
	digests map[string][32]byte
}

func NewNotifier(hub *Hub, sources []Source, pollInterval time.Duration, logger *slog.Logger) *Notifier {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if logger == nil {
		logger = observability.Discard()
	}
	return &Notifier{
		hub:          hub,
		sources:      sources,
		pollInterval: pollInterval,
		logger:       logger,
		nudge:        make(chan struct{}, 1),
		digests:      map[string][32]byte{},
	}
}

func (n *Notifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n.Tick()
		case <-n.nudge:
			n.Tick()
		}
	}
}

// Nudge asks for a pass as soon as possible. Nudges coalesce.
func (n *Notifier) Nudge() {
	select {
	case n.nudge <- struct{}{}:
	default:
	}
}

// Tick publishes every source whose snapshot changed since the last pass.
// It returns how many were published.
func (n *Notifier) Tick() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	published := 0
	for _, src := range n.sources {
		channel := src.Channel()
		data, err := json.Marshal(src.Snapshot())
		if err != nil {
			n.logger.Error("snapshot encode failed", "channel", channel, "err", err)
			continue
		}
		digest := sha3.Sum256(data)
		if prev, ok := n.digests[channel]; ok && prev == digest {
			continue
		}
		n.digests[channel] = digest

		payload, _ := json.Marshal(map[string]any{
			"event":   "snapshot",
			"channel": channel,
			"data":    json.RawMessage(data),
		})
		n.hub.Publish(channel, payload)
		published++
	}
	return published
}
