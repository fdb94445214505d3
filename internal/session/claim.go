package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"terraclaim/internal/collision"
	"terraclaim/internal/config"
	"terraclaim/internal/event"
	"terraclaim/internal/geo"
	"terraclaim/internal/model"
	"terraclaim/internal/track"
)

// ClaimState is the territory-claim lifecycle.
type ClaimState int

const (
	ClaimIdle ClaimState = iota
	ClaimTracking
	ClaimAborted
	ClaimCompleted
)

func (s ClaimState) String() string {
	switch s {
	case ClaimTracking:
		return "tracking"
	case ClaimAborted:
		return "aborted"
	case ClaimCompleted:
		return "completed"
	default:
		return "idle"
	}
}

var (
	ErrClaimBlocked  = errors.New("claim blocked: starting point is inside another player's territory")
	ErrClaimAborted  = errors.New("claim aborted")
	ErrPathNotClosed = errors.New("path has not closed yet")
)

// Claim owns PathTracker-driven GPS consumption for claim mode: noise
// filtering, closure detection and live collision classification against
// the territory snapshot. Same single-writer discipline as Exploration.
type Claim struct {
	ownerID string
	cfg     config.Tracking
	bus     *event.Bus

	territories TerritoryProvider
	uploader    TerritoryUploader

	now func() time.Time

	mu          sync.Mutex
	state       ClaimState
	tracker     *track.Tracker
	speed       *track.SpeedMonitor
	startedAt   time.Time
	lastWarning collision.WarningLevel
	abortReason string

	done chan struct{}
	wg   sync.WaitGroup
}

// NewClaim creates an idle claim session for one owner.
func NewClaim(ownerID string, cfg config.Tracking, bus *event.Bus,
	territories TerritoryProvider, uploader TerritoryUploader) *Claim {
	return &Claim{
		ownerID:     ownerID,
		cfg:         cfg,
		bus:         bus,
		territories: territories,
		uploader:    uploader,
		now:         time.Now,
		tracker:     track.NewTracker(cfg),
		speed:       track.NewSpeedMonitor(cfg),
	}
}

// Start begins claiming from the user's current location. The attempt is
// blocked before any tracking starts when that location already lies inside
// a foreign territory.
func (c *Claim) Start(location model.GeoPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ClaimTracking {
		return fmt.Errorf("%w: claim already tracking", ErrInvalidState)
	}

	candidates := c.territories.CandidatesNear(location, collision.CautionDistanceMeters)
	if result := collision.CheckPointCollision(location, candidates, c.ownerID); result.HasCollision {
		return fmt.Errorf("%w: %s", ErrClaimBlocked, result.Message)
	}

	c.state = ClaimTracking
	c.startedAt = c.now()
	c.lastWarning = collision.LevelSafe
	c.abortReason = ""
	c.tracker = track.NewTracker(c.cfg)
	c.tracker.Start()
	c.speed.Reset()
	c.done = make(chan struct{})

	c.wg.Add(1)
	go c.runRecheckTicker(c.done)
	return nil
}

func (c *Claim) runRecheckTicker(done <-chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(config.CollisionRecheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.RecheckTick()
		}
	}
}

// HandleSample applies one raw location sample to the claim path.
func (c *Claim) HandleSample(sample model.TimedPoint) track.IngestResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ClaimTracking {
		return track.IngestResult{Outcome: track.OutcomeRejectedTimeTooSoon}
	}

	res := c.tracker.Ingest(sample)
	switch res.Outcome {
	case track.OutcomeRejectedOverSpeed:
		if c.speed.ObserveOverSpeed(c.now()) {
			c.bus.Publish(event.SpeedViolationStarted{
				DeviceID: c.ownerID,
				SpeedKmh: res.SpeedKmh,
				Deadline: c.speed.Deadline(),
			})
		}

	case track.OutcomeAccepted:
		if c.speed.ObserveLegalSpeed() {
			c.tracker.ClearOverSpeed()
			c.bus.Publish(event.SpeedViolationEnded{DeviceID: c.ownerID})
		}
		c.classifyLocked()
		if res.ClosedNow {
			c.bus.Publish(event.ClosureDetected{
				DeviceID:  c.ownerID,
				Path:      c.tracker.Path().Clone(),
				DistanceM: c.tracker.Distance(),
			})
		}
	}
	return res
}

// RecheckTick is the periodic collision recheck plus the speed countdown.
func (c *Claim) RecheckTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ClaimTracking {
		return
	}

	c.classifyLocked()

	if c.speed.Tick(c.now()) {
		c.abortLocked("speed limit exceeded")
	}
}

// classifyLocked reruns the graduated proximity classification and publishes
// tier changes. A violation aborts the claim.
func (c *Claim) classifyLocked() {
	result := collision.Classify(c.tracker.Path(), c.candidatesLocked(), c.ownerID)

	if result.HasCollision {
		c.bus.Publish(event.CollisionWarningChanged{
			DeviceID: c.ownerID,
			Result:   summarize(result),
		})
		c.abortLocked(result.Message)
		return
	}

	if result.WarningLevel != c.lastWarning {
		c.lastWarning = result.WarningLevel
		c.bus.Publish(event.CollisionWarningChanged{
			DeviceID: c.ownerID,
			Result:   summarize(result),
		})
	}
}

// candidatesLocked narrows the territory set through the spatial index: a
// circle covering the walked path's bounding box, padded by the caution
// radius. Territories outside it are safe either way, so classifying the
// candidates agrees with classifying the full set.
func (c *Claim) candidatesLocked() []*model.Territory {
	path := c.tracker.Path()
	if len(path) == 0 {
		return nil
	}

	bound := geo.BoundingBox(path)
	center := model.GeoPoint{
		Latitude:  (bound.Min[1] + bound.Max[1]) / 2,
		Longitude: (bound.Min[0] + bound.Max[0]) / 2,
	}
	corner := model.GeoPoint{Latitude: bound.Max[1], Longitude: bound.Max[0]}
	radius := geo.Distance(center, corner) + collision.CautionDistanceMeters
	return c.territories.CandidatesNear(center, radius)
}

func summarize(r collision.CollisionResult) event.CollisionSummary {
	return event.CollisionSummary{
		HasCollision:    r.HasCollision,
		Kind:            r.Kind.String(),
		Message:         r.Message,
		NearestDistance: r.NearestDistance,
		WarningLevel:    r.WarningLevel.String(),
	}
}

func (c *Claim) abortLocked(reason string) {
	c.state = ClaimAborted
	c.abortReason = reason
	c.tracker.Stop()
	c.stopTimerLocked()
}

// Finish validates closure, computes the enclosed area and uploads the
// territory. On upload failure the walked path stays intact so the user can
// retry instead of losing the loop.
func (c *Claim) Finish(ctx context.Context) (*model.Territory, error) {
	c.mu.Lock()
	if c.state == ClaimAborted {
		reason := c.abortReason
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrClaimAborted, reason)
	}
	if c.state != ClaimTracking {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: finish from %s", ErrInvalidState, c.state)
	}
	if !c.tracker.IsClosed() {
		c.mu.Unlock()
		return nil, ErrPathNotClosed
	}

	path := c.tracker.Path().Clone()
	startedAt := c.startedAt
	c.mu.Unlock()

	area := geo.RingArea(path)
	territory, err := c.uploader.Upload(ctx, c.ownerID, path, area, startedAt)
	if err != nil {
		// Local path untouched; the same (owner, startedAt) retry cannot
		// duplicate on the store side.
		return nil, fmt.Errorf("territory upload failed, claim kept for retry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = ClaimCompleted
	c.tracker.Stop()
	c.stopTimerLocked()
	c.bus.Publish(event.TerritoryClaimed{DeviceID: c.ownerID, Territory: territory})
	return territory, nil
}

// Cancel drops the claim attempt.
func (c *Claim) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ClaimTracking {
		return
	}
	c.state = ClaimIdle
	c.tracker.Stop()
	c.stopTimerLocked()
}

func (c *Claim) stopTimerLocked() {
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
}

// State returns the claim lifecycle state.
func (c *Claim) State() ClaimState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsClosed reports whether the walked loop has latched closed.
func (c *Claim) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.IsClosed()
}

// Path returns a copy of the accumulated claim path.
func (c *Claim) Path() model.Path {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Path().Clone()
}

// Distance returns the accumulated claim distance in meters.
func (c *Claim) Distance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Distance()
}

// AbortReason returns why the claim aborted, when it did.
func (c *Claim) AbortReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abortReason
}

// WarningLevel returns the current graduated proximity tier.
func (c *Claim) WarningLevel() collision.WarningLevel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastWarning
}
