package config

import "time"

// Tracking holds the GPS filtering and anti-cheat thresholds shared by the
// claim tracker and the exploration session.
type Tracking struct {
	// MaxAccuracyMeters rejects samples with a worse (larger) reported
	// horizontal accuracy.
	MaxAccuracyMeters float64

	// MinSampleInterval rejects samples arriving too soon after the last
	// accepted one.
	MinSampleInterval time.Duration

	// MinMovementMeters drops sub-threshold movement as GPS noise.
	MinMovementMeters float64

	// MaxAllowedSpeedKmh is the fastest legitimate walking/running speed.
	// Sustained speed above it starts the violation countdown.
	MaxAllowedSpeedKmh float64

	// JumpSpeedKmh marks a sample as a GPS jump rather than cheating.
	JumpSpeedKmh float64

	// ClosureDistanceMeters is how close the path must return to its origin
	// to count as a closed loop.
	ClosureDistanceMeters float64

	// ClosureMinPoints is the minimum accepted point count before closure
	// detection runs.
	ClosureMinPoints int

	// SpeedCountdown is how long over-speed may be sustained before the
	// attempt aborts.
	SpeedCountdown time.Duration

	// SpeedCheckInterval is the countdown check cadence.
	SpeedCheckInterval time.Duration
}

// DefaultTracking returns the tuned production thresholds.
func DefaultTracking() Tracking {
	return Tracking{
		MaxAccuracyMeters:     50,
		MinSampleInterval:     1 * time.Second,
		MinMovementMeters:     2,
		MaxAllowedSpeedKmh:    30,
		JumpSpeedKmh:          50,
		ClosureDistanceMeters: 30,
		ClosureMinPoints:      10,
		SpeedCountdown:        10 * time.Second,
		SpeedCheckInterval:    1 * time.Second,
	}
}

// MaxJumpDistanceMeters bounds the distance a single accepted step may
// cover: the max legitimate speed held for ten seconds.
func (t Tracking) MaxJumpDistanceMeters() float64 {
	return t.MaxAllowedSpeedKmh / 3.6 * 10
}
