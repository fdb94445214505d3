package track

import (
	"terraclaim/internal/config"
	"terraclaim/internal/geo"
	"terraclaim/internal/model"
)

// IngestOutcome classifies what happened to a single raw location sample.
type IngestOutcome int

const (
	OutcomeAccepted IngestOutcome = iota
	OutcomeRejectedLowAccuracy
	OutcomeRejectedTimeTooSoon
	OutcomeRejectedGpsJump
	OutcomeRejectedOverSpeed
	OutcomeRejectedTooSmallMovement
)

func (o IngestOutcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejectedLowAccuracy:
		return "rejected_low_accuracy"
	case OutcomeRejectedTimeTooSoon:
		return "rejected_time_too_soon"
	case OutcomeRejectedGpsJump:
		return "rejected_gps_jump"
	case OutcomeRejectedOverSpeed:
		return "rejected_over_speed"
	default:
		return "rejected_too_small_movement"
	}
}

// IngestResult carries the outcome plus the measurements the session layer
// reacts to.
type IngestResult struct {
	Outcome       IngestOutcome
	DistanceAdded float64
	SpeedKmh      float64
	ClosedNow     bool
}

// Tracker converts a stream of raw location samples into a clean,
// speed-validated, closure-aware path. Not safe for concurrent use: the
// owning session serializes all calls.
type Tracker struct {
	cfg config.Tracking

	path       model.Path
	lastSample *model.TimedPoint
	tracking   bool
	isClosed   bool
	overSpeed  bool
	distanceM  float64
}

// NewTracker creates a tracker with the given thresholds.
func NewTracker(cfg config.Tracking) *Tracker {
	return &Tracker{cfg: cfg}
}

// Start clears the path and resets closure/speed flags. No-op if a tracking
// session is already running.
func (t *Tracker) Start() {
	if t.tracking {
		return
	}
	t.tracking = true
	t.path = nil
	t.lastSample = nil
	t.isClosed = false
	t.overSpeed = false
	t.distanceM = 0
}

// Stop freezes the current path for external consumption. The path,
// closure flag and accumulated distance stay readable after stopping.
func (t *Tracker) Stop() {
	t.tracking = false
}

// Ingest runs the filter chain on one sample. Rejections other than
// too-small movement never advance the comparison baseline, so a later
// larger-interval sample is still measured against the pre-rejection anchor.
func (t *Tracker) Ingest(sample model.TimedPoint) IngestResult {
	if !t.tracking {
		return IngestResult{Outcome: OutcomeRejectedTimeTooSoon}
	}

	if sample.Accuracy < 0 || sample.Accuracy > t.cfg.MaxAccuracyMeters {
		return IngestResult{Outcome: OutcomeRejectedLowAccuracy}
	}

	// First accepted sample becomes the path origin unconditionally.
	if t.lastSample == nil {
		t.path = append(t.path, sample.GeoPoint)
		s := sample
		t.lastSample = &s
		return IngestResult{Outcome: OutcomeAccepted}
	}

	dt := sample.Timestamp.Sub(t.lastSample.Timestamp)
	if dt < t.cfg.MinSampleInterval {
		return IngestResult{Outcome: OutcomeRejectedTimeTooSoon}
	}

	distance := geo.Distance(t.lastSample.GeoPoint, sample.GeoPoint)

	// Device-reported speed wins when valid; negative is the unknown
	// sentinel and falls back to distance over time.
	speedMps := sample.Speed
	if speedMps < 0 {
		speedMps = distance / dt.Seconds()
	}
	speedKmh := speedMps * 3.6

	if speedKmh > t.cfg.JumpSpeedKmh {
		// Physically impossible: a GPS jump, not the user cheating.
		return IngestResult{Outcome: OutcomeRejectedGpsJump, SpeedKmh: speedKmh}
	}

	if speedKmh > t.cfg.MaxAllowedSpeedKmh {
		// The next sample is compared against the same pre-violation
		// baseline; the session layer decides on the countdown.
		t.overSpeed = true
		return IngestResult{Outcome: OutcomeRejectedOverSpeed, SpeedKmh: speedKmh}
	}

	if distance > t.cfg.MaxJumpDistanceMeters() {
		return IngestResult{Outcome: OutcomeRejectedGpsJump, SpeedKmh: speedKmh}
	}

	if distance < t.cfg.MinMovementMeters {
		// Noise, but refresh the anchor so later samples are not compared
		// against a stale point.
		s := sample
		t.lastSample = &s
		return IngestResult{Outcome: OutcomeRejectedTooSmallMovement, SpeedKmh: speedKmh}
	}

	t.path = append(t.path, sample.GeoPoint)
	s := sample
	t.lastSample = &s
	t.distanceM += distance

	closedNow := t.checkClosure()

	return IngestResult{
		Outcome:       OutcomeAccepted,
		DistanceAdded: distance,
		SpeedKmh:      speedKmh,
		ClosedNow:     closedNow,
	}
}

// checkClosure latches isClosed once the path returns within the closure
// threshold of its origin. One-way per session: never re-evaluated after it
// latches.
func (t *Tracker) checkClosure() bool {
	if t.isClosed || len(t.path) < t.cfg.ClosureMinPoints {
		return false
	}

	origin := t.path[0]
	last := t.path[len(t.path)-1]
	if geo.Distance(origin, last) <= t.cfg.ClosureDistanceMeters {
		t.isClosed = true
		return true
	}
	return false
}

// Path returns the accumulated route. The slice is owned by the tracker;
// callers that outlive the session must Clone.
func (t *Tracker) Path() model.Path { return t.path }

// IsClosed reports whether the path has latched closed.
func (t *Tracker) IsClosed() bool { return t.isClosed }

// IsTracking reports whether a session is active.
func (t *Tracker) IsTracking() bool { return t.tracking }

// OverSpeed reports whether any sample exceeded the legal speed since Start.
func (t *Tracker) OverSpeed() bool { return t.overSpeed }

// ClearOverSpeed resets the over-speed latch once the violation resolves.
func (t *Tracker) ClearOverSpeed() { t.overSpeed = false }

// Distance returns the accumulated accepted distance in meters.
func (t *Tracker) Distance() float64 { return t.distanceM }
