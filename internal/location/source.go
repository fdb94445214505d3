package location

import (
	"context"
	"sync"
	"sync/atomic"

	"terraclaim/internal/model"
)

// Source is the narrow contract the tracking cores consume locations
// through. Implementations deliver samples on a channel; the session drains
// it with a single consumer, which keeps all state-machine mutation on one
// goroutine.
type Source interface {
	// RequestPermission resolves the authorization precondition. A denial
	// keeps the session in idle.
	RequestPermission(ctx context.Context) error

	// StartUpdating returns the sample channel. The channel is closed by
	// StopUpdating.
	StartUpdating() (<-chan model.TimedPoint, error)

	// StopUpdating stops delivery and closes the sample channel.
	StopUpdating()
}

// PushSource adapts push-style delivery (HTTP ingestion, a platform
// callback firing on an arbitrary thread) to the Source contract with a
// bounded channel. Push never blocks: when the consumer lags, the newest
// sample is dropped and counted — a stale GPS fix is worthless anyway.
type PushSource struct {
	mutex   sync.Mutex
	ch      chan model.TimedPoint
	size    int
	started bool

	// Dropped counts samples discarded because the buffer was full
	Dropped atomic.Int64
}

// NewPushSource creates a source buffering up to size samples.
func NewPushSource(size int) *PushSource {
	if size <= 0 {
		size = 32
	}
	return &PushSource{size: size}
}

// RequestPermission always succeeds for server-side ingestion; the mobile
// client already holds the platform permission.
func (s *PushSource) RequestPermission(ctx context.Context) error {
	return nil
}

// StartUpdating returns a fresh sample channel. Restart after a stop gets
// a new channel; the old one is already closed.
func (s *PushSource) StartUpdating() (<-chan model.TimedPoint, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.started {
		s.ch = make(chan model.TimedPoint, s.size)
		s.started = true
	}
	return s.ch, nil
}

// StopUpdating closes the sample channel.
func (s *PushSource) StopUpdating() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		close(s.ch)
		s.started = false
	}
}

// Push enqueues a sample without blocking.
func (s *PushSource) Push(sample model.TimedPoint) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.started {
		return
	}
	select {
	case s.ch <- sample:
	default:
		s.Dropped.Add(1)
	}
}
