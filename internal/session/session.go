package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"terraclaim/internal/config"
	"terraclaim/internal/event"
	"terraclaim/internal/geo"
	"terraclaim/internal/location"
	"terraclaim/internal/model"
	"terraclaim/internal/service/loot"
	"terraclaim/internal/track"
	"terraclaim/internal/util"
)

// State is the exploration session lifecycle.
type State int

const (
	StateIdle State = iota
	StateExploring
	StateSpeedWarning
	StateProcessing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateExploring:
		return "exploring"
	case StateSpeedWarning:
		return "speed_warning"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Failure reasons surfaced to the user.
const (
	ReasonSpeedExceeded = "speedExceeded"
)

var (
	ErrInvalidState    = errors.New("operation not valid in current session state")
	ErrStartDebounced  = errors.New("start ignored: too soon after last transition")
	ErrSessionTooShort = errors.New("session too short to stop")
	ErrNoActivePOI     = errors.New("no POI popup is active")
)

// How far out accepted samples scan for POIs before the per-POI trigger
// radius applies.
const poiScanRadiusMeters = 500.0

// Exploration is the finite state machine for exploration mode. All mutation
// is serialized: the sample consumer, the duration ticker and external calls
// all funnel through one mutex, preserving the single-writer invariant.
type Exploration struct {
	deviceID string
	cfg      config.Tracking
	bus      *event.Bus
	source   location.Source
	pois     POIProvider
	rewards  RewardProvider
	store    ResultStore

	// transformPOIFrame applies the provider projection before comparing
	// device coordinates against POI coordinates.
	transformPOIFrame bool

	now func() time.Time

	mu             sync.Mutex
	state          State
	failReason     string
	lastErr        error
	lastTransition time.Time
	startedAt      time.Time
	tracker        *track.Tracker
	speed          *track.SpeedMonitor
	tier           model.RewardTier
	popupActive    bool
	activePOIID    string
	triggered      map[string]bool
	result         *model.SessionResult

	// gen invalidates in-flight finalize work after a reset: the finalize
	// still runs to completion but its result is discarded.
	gen int

	done chan struct{}
	wg   sync.WaitGroup
}

// NewExploration creates an idle session for one device.
func NewExploration(deviceID string, cfg config.Tracking, bus *event.Bus, source location.Source,
	pois POIProvider, rewards RewardProvider, store ResultStore, transformPOIFrame bool) *Exploration {

	// Exploration tracks cumulative distance only; closure never applies.
	trackerCfg := cfg
	trackerCfg.ClosureMinPoints = math.MaxInt

	return &Exploration{
		deviceID:          deviceID,
		cfg:               cfg,
		bus:               bus,
		source:            source,
		pois:              pois,
		rewards:           rewards,
		store:             store,
		transformPOIFrame: transformPOIFrame,
		now:               time.Now,
		tracker:           track.NewTracker(trackerCfg),
		speed:             track.NewSpeedMonitor(cfg),
		triggered:         make(map[string]bool),
	}
}

// Start begins a session. Valid from idle or failed, debounced against
// double-taps, gated on the location authorization precondition.
func (s *Exploration) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateFailed {
		s.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidState, s.state)
	}
	if !s.lastTransition.IsZero() && s.now().Sub(s.lastTransition) < config.StartDebounceWindow {
		s.mu.Unlock()
		return ErrStartDebounced
	}
	s.mu.Unlock()

	// Authorization runs outside the lock: it may prompt and block. A
	// denial leaves the state untouched.
	if err := s.source.RequestPermission(ctx); err != nil {
		return fmt.Errorf("location permission denied: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle && s.state != StateFailed {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, s.state)
	}

	s.gen++
	s.failReason = ""
	s.lastErr = nil
	s.result = nil
	s.tier = model.RewardTierNone
	s.popupActive = false
	s.activePOIID = ""
	s.triggered = make(map[string]bool)
	s.tracker.Start()
	s.speed.Reset()
	s.startedAt = s.now()
	s.done = make(chan struct{})

	samples, err := s.source.StartUpdating()
	if err != nil {
		s.tracker.Stop()
		return fmt.Errorf("failed to start location updates: %w", err)
	}

	s.transitionLocked(StateExploring, "")

	s.wg.Add(2)
	go s.consumeSamples(samples)
	go s.runDurationTicker(s.done)

	return nil
}

// consumeSamples is the single consumer draining the location channel.
func (s *Exploration) consumeSamples(samples <-chan model.TimedPoint) {
	defer s.wg.Done()
	for sample := range samples {
		s.HandleSample(sample)
	}
}

func (s *Exploration) runDurationTicker(done <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(config.DurationTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.durationTick()
		}
	}
}

// HandleSample applies one raw location sample to the session.
func (s *Exploration) HandleSample(sample model.TimedPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateExploring && s.state != StateSpeedWarning {
		return
	}

	res := s.tracker.Ingest(sample)
	switch res.Outcome {
	case track.OutcomeRejectedOverSpeed:
		if s.speed.ObserveOverSpeed(s.now()) {
			s.transitionLocked(StateSpeedWarning, "")
			s.bus.Publish(event.SpeedViolationStarted{
				DeviceID: s.deviceID,
				SpeedKmh: res.SpeedKmh,
				Deadline: s.speed.Deadline(),
			})
		}

	case track.OutcomeAccepted:
		if s.speed.ObserveLegalSpeed() {
			s.tracker.ClearOverSpeed()
			s.transitionLocked(StateExploring, "")
			s.bus.Publish(event.SpeedViolationEnded{DeviceID: s.deviceID})
		}
		s.checkPOIProximityLocked(sample.GeoPoint)

	default:
		// Input-quality rejection: dropped silently, never surfaced.
	}
}

// checkPOIProximityLocked raises at most one POI popup at a time, and each
// POI at most once per session.
func (s *Exploration) checkPOIProximityLocked(pos model.GeoPoint) {
	if s.popupActive {
		return
	}

	// The POI source and the device GPS may disagree on the reference
	// frame; compare in the provider frame.
	comparePos := pos
	if s.transformPOIFrame {
		comparePos = geo.ToLocalProjection(pos)
	}

	for _, p := range s.pois.SearchNearby(comparePos, poiScanRadiusMeters, 0) {
		if p.Status == model.POIStatusLooted || s.triggered[p.ID] {
			continue
		}
		d := geo.Distance(comparePos, p.Coordinate)
		if d > p.TriggerRadius {
			continue
		}

		s.triggered[p.ID] = true
		s.popupActive = true
		s.activePOIID = p.ID
		s.pois.MarkDiscovered(p.ID)
		s.bus.Publish(event.POIEntered{DeviceID: s.deviceID, POI: p, DistanceM: d})
		return
	}
}

// durationTick is the 1 Hz tick: reward-tier recomputation and the
// speed-violation countdown.
func (s *Exploration) durationTick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateExploring && s.state != StateSpeedWarning {
		return
	}

	s.tier = loot.TierForDistance(s.tracker.Distance())

	if s.speed.Tick(s.now()) {
		s.failReason = ReasonSpeedExceeded
		s.stopIngestionLocked()
		s.tracker.Stop()
		s.transitionLocked(StateFailed, ReasonSpeedExceeded)
	}
}

// Stop finishes the session. Valid from exploring or speedWarning and only
// after the minimum elapsed-time floor; finalize runs asynchronously so a
// slow collaborator never delays the caller.
func (s *Exploration) Stop(ctx context.Context) error {
	s.mu.Lock()

	if s.state != StateExploring && s.state != StateSpeedWarning {
		s.mu.Unlock()
		return fmt.Errorf("%w: stop from %s", ErrInvalidState, s.state)
	}
	if s.now().Sub(s.startedAt) < config.MinSessionDuration {
		s.mu.Unlock()
		return ErrSessionTooShort
	}

	s.stopIngestionLocked()
	s.tracker.Stop()
	s.transitionLocked(StateProcessing, "")

	gen := s.gen
	distance := s.tracker.Distance()
	started := s.startedAt
	ended := s.now()
	s.mu.Unlock()

	go s.finalize(gen, distance, started, ended)
	return nil
}

// finalize computes rewards, persists the session best-effort and completes
// the state machine — unless the session was reset while it ran.
func (s *Exploration) finalize(gen int, distance float64, started, ended time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tier, items := s.rewards.GenerateRewards(ctx, distance)
	result := &model.SessionResult{
		SessionID: util.ShortUUID(),
		DeviceID:  s.deviceID,
		StartedAt: started,
		EndedAt:   ended,
		DistanceM: distance,
		Tier:      tier,
		Items:     items,
	}

	if err := s.store.SaveSession(ctx, result); err != nil {
		// Best-effort: the session still completes.
		log.Printf("Failed to save session for device %s: %v", s.deviceID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != StateProcessing {
		return
	}
	s.result = result
	s.tier = tier
	s.transitionLocked(StateCompleted, "")
}

// ScavengeActivePOI loots the POI behind the current popup.
func (s *Exploration) ScavengeActivePOI(ctx context.Context) ([]model.Item, error) {
	s.mu.Lock()
	if !s.popupActive {
		s.mu.Unlock()
		return nil, ErrNoActivePOI
	}
	poiID := s.activePOIID
	gen := s.gen
	s.mu.Unlock()

	p, ok := s.pois.Get(poiID)
	if !ok {
		return nil, fmt.Errorf("POI %s no longer known", poiID)
	}

	items := s.rewards.GenerateLoot(ctx, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil, ErrInvalidState
	}
	s.pois.MarkLooted(poiID)
	s.popupActive = false
	s.activePOIID = ""
	s.bus.Publish(event.POIResolved{DeviceID: s.deviceID, POIID: poiID, Looted: true, Items: items})
	return items, nil
}

// DismissActivePOI closes the popup without looting. The POI stays
// triggered and will not fire again this session.
func (s *Exploration) DismissActivePOI() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.popupActive {
		return ErrNoActivePOI
	}
	poiID := s.activePOIID
	s.popupActive = false
	s.activePOIID = ""
	s.bus.Publish(event.POIResolved{DeviceID: s.deviceID, POIID: poiID, Looted: false})
	return nil
}

// ResetState returns a finished session to idle so the device can start
// again. Valid from completed or failed.
func (s *Exploration) ResetState() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCompleted && s.state != StateFailed {
		return fmt.Errorf("%w: reset from %s", ErrInvalidState, s.state)
	}

	s.gen++
	s.result = nil
	s.failReason = ""
	s.lastErr = nil
	s.transitionLocked(StateIdle, "")
	return nil
}

// HandleGPSError records a recoverable location error. Tracking continues
// on the next good sample; no state change.
func (s *Exploration) HandleGPSError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateExploring || s.state == StateSpeedWarning {
		s.lastErr = err
		log.Printf("GPS error for device %s (recoverable): %v", s.deviceID, err)
	}
}

// stopIngestionLocked cancels the location stream and the duration ticker.
// Late ticks from a goroutine already past the channel check are no-ops:
// every handler re-checks the state under the session mutex first.
func (s *Exploration) stopIngestionLocked() {
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.source.StopUpdating()
}

func (s *Exploration) transitionLocked(to State, reason string) {
	from := s.state
	s.state = to
	s.lastTransition = s.now()
	s.bus.Publish(event.SessionStateChanged{
		DeviceID: s.deviceID,
		From:     from.String(),
		To:       to.String(),
		Reason:   reason,
	})
}

// State returns the current lifecycle state.
func (s *Exploration) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FailReason returns why the session failed, when it did.
func (s *Exploration) FailReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failReason
}

// Distance returns the accumulated exploration distance in meters.
func (s *Exploration) Distance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Distance()
}

// Tier returns the reward tier as of the last tick.
func (s *Exploration) Tier() model.RewardTier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier
}

// Result returns the finalized outcome once completed.
func (s *Exploration) Result() *model.SessionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}
