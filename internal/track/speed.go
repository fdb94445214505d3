package track

import (
	"time"

	"terraclaim/internal/config"
)

// SpeedState is the nested anti-cheat state machine surfaced to the session
// layer: normal -> warning(counting down) -> normal or aborted.
type SpeedState int

const (
	SpeedNormal SpeedState = iota
	SpeedWarning
	SpeedAborted
)

func (s SpeedState) String() string {
	switch s {
	case SpeedWarning:
		return "warning"
	case SpeedAborted:
		return "aborted"
	default:
		return "normal"
	}
}

// SpeedMonitor tracks sustained over-speed against a countdown. It holds no
// goroutine of its own: the owning session feeds it observations and clock
// ticks, which keeps it deterministic under test.
type SpeedMonitor struct {
	cfg      config.Tracking
	state    SpeedState
	deadline time.Time
}

// NewSpeedMonitor creates a monitor in the normal state.
func NewSpeedMonitor(cfg config.Tracking) *SpeedMonitor {
	return &SpeedMonitor{cfg: cfg}
}

// State returns the current speed state.
func (m *SpeedMonitor) State() SpeedState { return m.state }

// Deadline returns when the running countdown expires; zero when not
// counting.
func (m *SpeedMonitor) Deadline() time.Time { return m.deadline }

// ObserveOverSpeed starts the countdown on the first violation. Returns true
// when this observation began a new countdown.
func (m *SpeedMonitor) ObserveOverSpeed(now time.Time) bool {
	if m.state != SpeedNormal {
		return false
	}
	m.state = SpeedWarning
	m.deadline = now.Add(m.cfg.SpeedCountdown)
	return true
}

// ObserveLegalSpeed cancels a running countdown. Returns true when a
// countdown was cancelled.
func (m *SpeedMonitor) ObserveLegalSpeed() bool {
	if m.state != SpeedWarning {
		return false
	}
	m.state = SpeedNormal
	m.deadline = time.Time{}
	return true
}

// Tick advances the countdown; once the deadline passes while still in
// warning, the monitor latches aborted. Returns true on the latching tick.
func (m *SpeedMonitor) Tick(now time.Time) bool {
	if m.state != SpeedWarning {
		return false
	}
	if now.Before(m.deadline) {
		return false
	}
	m.state = SpeedAborted
	return true
}

// Reset returns the monitor to normal for a new session.
func (m *SpeedMonitor) Reset() {
	m.state = SpeedNormal
	m.deadline = time.Time{}
}
