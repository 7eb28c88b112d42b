package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultSweepInterval  = 60 * time.Second
	DefaultStaleThreshold = 5 * time.Minute
)

// Sweeper periodically disconnects connections that have been idle longer
// than the stale threshold.
type Sweeper struct {
	registry  *Registry
	interval  time.Duration
	threshold time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a Sweeper. Non-positive durations fall back to the
// defaults.
func NewSweeper(registry *Registry, interval, threshold time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	return &Sweeper{registry: registry, interval: interval, threshold: threshold}
}

// Start runs the sweep loop in the background until Stop is called or ctx
// is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(s.registry.now())
			}
		}
	}(s.done)
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Sweep evicts every connection idle since before now minus the threshold
// and returns how many were removed.
func (s *Sweeper) Sweep(now time.Time) int {
	evicted := 0
	for _, id := range s.registry.Stale(now.Add(-s.threshold)) {
		if s.registry.Disconnect(id) {
			evicted++
			log.Debug().Str("conn_id", id).Msg("realtime: evicted stale connection")
		}
	}
	return evicted
}
