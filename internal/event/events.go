package event

import (
	"time"

	"terraclaim/internal/model"
)

// Event is a typed domain event emitted by the tracking cores and consumed
// by UI/persistence collaborators.
type Event interface {
	EventName() string
}

// ClosureDetected fires once per claim when the walked path returns to its
// starting point.
type ClosureDetected struct {
	DeviceID  string
	Path      model.Path
	DistanceM float64
}

func (ClosureDetected) EventName() string { return "closure_detected" }

// SpeedViolationStarted fires when a session enters the over-speed countdown.
type SpeedViolationStarted struct {
	DeviceID string
	SpeedKmh float64
	Deadline time.Time
}

func (SpeedViolationStarted) EventName() string { return "speed_violation_started" }

// SpeedViolationEnded fires when speed returns to the legal range before the
// countdown expires.
type SpeedViolationEnded struct {
	DeviceID string
}

func (SpeedViolationEnded) EventName() string { return "speed_violation_ended" }

// SessionStateChanged fires on every exploration state transition.
type SessionStateChanged struct {
	DeviceID string
	From     string
	To       string
	Reason   string
}

func (SessionStateChanged) EventName() string { return "session_state_changed" }

// CollisionWarningChanged fires when the graduated proximity tier of an
// active claim changes.
type CollisionWarningChanged struct {
	DeviceID string
	Result   CollisionSummary
}

func (CollisionWarningChanged) EventName() string { return "collision_warning_changed" }

// CollisionSummary mirrors the engine result in plain strings so event
// consumers do not need the collision package's enums.
type CollisionSummary struct {
	HasCollision    bool
	Kind            string
	Message         string
	NearestDistance float64
	WarningLevel    string
}

// POIEntered fires when an accepted location lands within a POI trigger
// radius and no popup is active.
type POIEntered struct {
	DeviceID  string
	POI       *model.POI
	DistanceM float64
}

func (POIEntered) EventName() string { return "poi_entered" }

// POIResolved fires when a triggered POI is scavenged or dismissed.
type POIResolved struct {
	DeviceID string
	POIID    string
	Looted   bool
	Items    []model.Item
}

func (POIResolved) EventName() string { return "poi_resolved" }

// TerritoryClaimed fires after a successful territory upload.
type TerritoryClaimed struct {
	DeviceID  string
	Territory *model.Territory
}

func (TerritoryClaimed) EventName() string { return "territory_claimed" }
