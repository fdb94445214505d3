package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"terraclaim/internal/config"
	"terraclaim/internal/event"
	"terraclaim/internal/location"
	"terraclaim/internal/model"
)

// metersLat converts meters to degrees of latitude.
func metersLat(m float64) float64 {
	return m / (math.Pi * 6371000.0 / 180)
}

var testStart = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

// sample builds a raw point offset north/east from the origin by meters,
// secs after the reference time.
func sample(northM, eastM float64, secs float64) model.TimedPoint {
	return model.TimedPoint{
		GeoPoint: model.GeoPoint{
			Latitude:  metersLat(northM),
			Longitude: metersLat(eastM),
		},
		Timestamp: testStart.Add(time.Duration(secs * float64(time.Second))),
		Speed:     -1,
		Accuracy:  5,
	}
}

// fakeClock is the injected time source; tests advance it explicitly.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: testStart} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakePOIs struct {
	mu         sync.Mutex
	pois       map[string]*model.POI
	discovered []string
	looted     []string
}

func newFakePOIs(pois ...*model.POI) *fakePOIs {
	f := &fakePOIs{pois: make(map[string]*model.POI)}
	for _, p := range pois {
		f.pois[p.ID] = p
	}
	return f
}

func (f *fakePOIs) SearchNearby(center model.GeoPoint, radiusMeters float64, maxResults int) []*model.POI {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.POI, 0, len(f.pois))
	for _, p := range f.pois {
		out = append(out, p)
	}
	return out
}

func (f *fakePOIs) Get(id string) (*model.POI, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pois[id]
	return p, ok
}

func (f *fakePOIs) MarkDiscovered(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovered = append(f.discovered, id)
	if p, ok := f.pois[id]; ok && p.Status == model.POIStatusUndiscovered {
		p.Status = model.POIStatusDiscovered
	}
}

func (f *fakePOIs) MarkLooted(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.looted = append(f.looted, id)
	if p, ok := f.pois[id]; ok {
		p.Status = model.POIStatusLooted
	}
}

type fakeRewards struct {
	mu           sync.Mutex
	tier         model.RewardTier
	items        []model.Item
	lastDistance float64
}

func (f *fakeRewards) GenerateRewards(ctx context.Context, distanceM float64) (model.RewardTier, []model.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDistance = distanceM
	return f.tier, f.items
}

func (f *fakeRewards) GenerateLoot(ctx context.Context, poi *model.POI) []model.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items
}

type fakeStore struct {
	mu    sync.Mutex
	saved []*model.SessionResult
	err   error
}

func (f *fakeStore) SaveSession(ctx context.Context, result *model.SessionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, result)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// denyingSource refuses the location permission.
type denyingSource struct{}

func (denyingSource) RequestPermission(ctx context.Context) error {
	return errors.New("user denied location access")
}
func (denyingSource) StartUpdating() (<-chan model.TimedPoint, error) { return nil, nil }
func (denyingSource) StopUpdating()                                   {}

func drainEvents(ch <-chan event.Event) []event.Event {
	var out []event.Event
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func hasEvent(events []event.Event, name string) bool {
	for _, e := range events {
		if e.EventName() == name {
			return true
		}
	}
	return false
}

func waitForState(t *testing.T, s *Exploration, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", s.State(), want)
}

type explorationFixture struct {
	session *Exploration
	clock   *fakeClock
	bus     *event.Bus
	events  <-chan event.Event
	source  *location.PushSource
	pois    *fakePOIs
	rewards *fakeRewards
	store   *fakeStore
}

func newExplorationFixture(t *testing.T, pois ...*model.POI) *explorationFixture {
	t.Helper()
	f := &explorationFixture{
		clock:   newFakeClock(),
		bus:     event.NewBus(64),
		source:  location.NewPushSource(8),
		pois:    newFakePOIs(pois...),
		rewards: &fakeRewards{tier: model.RewardTierCommon, items: []model.Item{{ID: "i1", Name: "Canteen", Rarity: "common"}}},
		store:   &fakeStore{},
	}
	events, cancel := f.bus.Subscribe()
	f.events = events
	t.Cleanup(cancel)
	t.Cleanup(f.source.StopUpdating)

	f.session = NewExploration("device-1", config.DefaultTracking(), f.bus,
		f.source, f.pois, f.rewards, f.store, false)
	f.session.now = f.clock.Now
	return f
}

func TestStartTransitionsToExploring(t *testing.T) {
	f := newExplorationFixture(t)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := f.session.State(); got != StateExploring {
		t.Fatalf("state = %v, want exploring", got)
	}
	if !hasEvent(drainEvents(f.events), "session_state_changed") {
		t.Error("missing session_state_changed event")
	}

	if err := f.session.Start(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Start err = %v, want ErrInvalidState", err)
	}
}

func TestStartPermissionDenied(t *testing.T) {
	f := newExplorationFixture(t)
	f.session.source = denyingSource{}

	if err := f.session.Start(context.Background()); err == nil {
		t.Fatal("Start must fail when permission is denied")
	}
	if got := f.session.State(); got != StateIdle {
		t.Errorf("state = %v, want idle after denial", got)
	}
	if len(drainEvents(f.events)) != 0 {
		t.Error("a denied start must not emit transitions")
	}
}

func TestStopTooShort(t *testing.T) {
	f := newExplorationFixture(t)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.clock.Advance(1 * time.Second)
	if err := f.session.Stop(context.Background()); !errors.Is(err, ErrSessionTooShort) {
		t.Fatalf("Stop err = %v, want ErrSessionTooShort", err)
	}
	if got := f.session.State(); got != StateExploring {
		t.Errorf("a rejected stop must keep the session exploring, got %v", got)
	}
}

func TestStopFinalizesSession(t *testing.T) {
	f := newExplorationFixture(t)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.session.HandleSample(sample(0, 0, 0))
	f.session.HandleSample(sample(10, 0, 5))
	f.session.HandleSample(sample(20, 0, 10))

	f.clock.Advance(10 * time.Second)
	if err := f.session.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := f.session.State(); got != StateProcessing && got != StateCompleted {
		t.Fatalf("state after Stop = %v, want processing", got)
	}

	waitForState(t, f.session, StateCompleted)

	result := f.session.Result()
	if result == nil {
		t.Fatal("completed session must carry a result")
	}
	if result.SessionID == "" {
		t.Error("result is missing a session id")
	}
	if result.DeviceID != "device-1" {
		t.Errorf("result device = %q", result.DeviceID)
	}
	if math.Abs(result.DistanceM-20) > 1 {
		t.Errorf("result distance = %v, want about 20", result.DistanceM)
	}
	if result.Tier != model.RewardTierCommon {
		t.Errorf("result tier = %v, want the reward provider's tier", result.Tier)
	}
	if f.store.count() != 1 {
		t.Errorf("store saved %d sessions, want 1", f.store.count())
	}
}

func TestSaveFailureStillCompletes(t *testing.T) {
	f := newExplorationFixture(t)
	f.store.err = errors.New("database down")

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clock.Advance(10 * time.Second)
	if err := f.session.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	waitForState(t, f.session, StateCompleted)
	if f.session.Result() == nil {
		t.Error("persistence failure must not lose the result")
	}
}

func TestSustainedOverSpeedFailsSession(t *testing.T) {
	f := newExplorationFixture(t)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.session.HandleSample(sample(0, 0, 0))

	// 20m in 2s is 36 km/h: over the limit, under the jump bar.
	f.session.HandleSample(sample(20, 0, 2))
	if got := f.session.State(); got != StateSpeedWarning {
		t.Fatalf("state = %v, want speed_warning", got)
	}
	events := drainEvents(f.events)
	if !hasEvent(events, "speed_violation_started") {
		t.Error("missing speed_violation_started event")
	}

	// Countdown expires with no legal-speed sample in between.
	f.clock.Advance(11 * time.Second)
	f.session.durationTick()

	if got := f.session.State(); got != StateFailed {
		t.Fatalf("state = %v, want failed", got)
	}
	if got := f.session.FailReason(); got != ReasonSpeedExceeded {
		t.Errorf("fail reason = %q, want %q", got, ReasonSpeedExceeded)
	}
	if err := f.session.Stop(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Stop after failure err = %v, want ErrInvalidState", err)
	}

	// Samples after failure are ignored.
	before := f.session.Distance()
	f.session.HandleSample(sample(30, 0, 20))
	if f.session.Distance() != before {
		t.Error("failed session must ignore further samples")
	}
}

func TestLegalSpeedCancelsCountdown(t *testing.T) {
	f := newExplorationFixture(t)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.session.HandleSample(sample(0, 0, 0))
	f.session.HandleSample(sample(20, 0, 2))
	if got := f.session.State(); got != StateSpeedWarning {
		t.Fatalf("state = %v, want speed_warning", got)
	}

	// Legal movement before the deadline: 10m over 5s against the origin
	// baseline is 7.2 km/h.
	f.clock.Advance(5 * time.Second)
	f.session.HandleSample(sample(10, 0, 5))
	if got := f.session.State(); got != StateExploring {
		t.Fatalf("state = %v, want exploring after recovery", got)
	}
	if !hasEvent(drainEvents(f.events), "speed_violation_ended") {
		t.Error("missing speed_violation_ended event")
	}

	// A tick past the old deadline must not fail the recovered session.
	f.clock.Advance(10 * time.Second)
	f.session.durationTick()
	if got := f.session.State(); got != StateExploring {
		t.Errorf("state = %v, cancelled countdown re-fired", got)
	}
}

func TestRestartAfterFailureIsDebounced(t *testing.T) {
	f := newExplorationFixture(t)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.session.HandleSample(sample(0, 0, 0))
	f.session.HandleSample(sample(20, 0, 2))
	f.clock.Advance(11 * time.Second)
	f.session.durationTick()
	if f.session.State() != StateFailed {
		t.Fatal("setup: expected failed")
	}

	// Immediately after the failure transition the restart is debounced.
	if err := f.session.Start(context.Background()); !errors.Is(err, ErrStartDebounced) {
		t.Fatalf("Start err = %v, want ErrStartDebounced", err)
	}

	f.clock.Advance(time.Second)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start after debounce window: %v", err)
	}
	if got := f.session.State(); got != StateExploring {
		t.Errorf("state = %v, want exploring", got)
	}
	if got := f.session.FailReason(); got != "" {
		t.Errorf("restart must clear the fail reason, got %q", got)
	}
	if f.session.Distance() != 0 {
		t.Error("restart must clear the accumulated distance")
	}
}

func TestResetAfterCompleted(t *testing.T) {
	f := newExplorationFixture(t)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clock.Advance(10 * time.Second)
	if err := f.session.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitForState(t, f.session, StateCompleted)

	if err := f.session.ResetState(); err != nil {
		t.Fatalf("ResetState: %v", err)
	}
	if got := f.session.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if f.session.Result() != nil {
		t.Error("reset must clear the result")
	}

	if err := f.session.ResetState(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("reset from idle err = %v, want ErrInvalidState", err)
	}
}

func TestPOITriggerAndScavenge(t *testing.T) {
	ruin := &model.POI{
		ID:            "poi-ruin",
		Name:          "Old Ruin",
		Coordinate:    model.GeoPoint{Latitude: 0, Longitude: 0},
		TriggerRadius: 30,
		Danger:        model.DangerLevelHigh,
	}
	f := newExplorationFixture(t, ruin)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.session.HandleSample(sample(0, 0, 0))
	events := drainEvents(f.events)
	if !hasEvent(events, "poi_entered") {
		t.Fatal("entering the trigger radius must raise the popup")
	}
	if len(f.pois.discovered) != 1 || f.pois.discovered[0] != "poi-ruin" {
		t.Errorf("discovered = %v, want [poi-ruin]", f.pois.discovered)
	}

	items, err := f.session.ScavengeActivePOI(context.Background())
	if err != nil {
		t.Fatalf("ScavengeActivePOI: %v", err)
	}
	if len(items) == 0 {
		t.Error("scavenge must yield loot")
	}
	if len(f.pois.looted) != 1 {
		t.Errorf("looted = %v, want [poi-ruin]", f.pois.looted)
	}
	if !hasEvent(drainEvents(f.events), "poi_resolved") {
		t.Error("missing poi_resolved event")
	}

	// Walking back in must not re-trigger a looted POI.
	f.session.HandleSample(sample(10, 0, 5))
	f.session.HandleSample(sample(0, 0, 10))
	if hasEvent(drainEvents(f.events), "poi_entered") {
		t.Error("looted POI re-triggered")
	}
}

func TestPOIDismissedDoesNotRetrigger(t *testing.T) {
	ruin := &model.POI{
		ID:            "poi-ruin",
		Coordinate:    model.GeoPoint{Latitude: 0, Longitude: 0},
		TriggerRadius: 30,
	}
	f := newExplorationFixture(t, ruin)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.session.HandleSample(sample(0, 0, 0))
	if err := f.session.DismissActivePOI(); err != nil {
		t.Fatalf("DismissActivePOI: %v", err)
	}
	drainEvents(f.events)

	// Leave and re-enter the radius: once per session means once.
	f.session.HandleSample(sample(40, 0, 5))
	f.session.HandleSample(sample(5, 0, 10))
	if hasEvent(drainEvents(f.events), "poi_entered") {
		t.Error("dismissed POI re-triggered in the same session")
	}
}

func TestOnlyOnePopupAtATime(t *testing.T) {
	a := &model.POI{ID: "poi-a", Coordinate: model.GeoPoint{Latitude: 0, Longitude: 0}, TriggerRadius: 30}
	b := &model.POI{ID: "poi-b", Coordinate: model.GeoPoint{Latitude: metersLat(10), Longitude: 0}, TriggerRadius: 30}
	f := newExplorationFixture(t, a, b)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.session.HandleSample(sample(0, 0, 0))
	first := drainEvents(f.events)
	if !hasEvent(first, "poi_entered") {
		t.Fatal("expected a popup for the first POI")
	}

	// Both POIs are in range of the next sample, but the popup is busy.
	f.session.HandleSample(sample(5, 0, 5))
	if hasEvent(drainEvents(f.events), "poi_entered") {
		t.Error("second popup raised while one was active")
	}
}

func TestScavengeWithoutPopup(t *testing.T) {
	f := newExplorationFixture(t)
	if _, err := f.session.ScavengeActivePOI(context.Background()); !errors.Is(err, ErrNoActivePOI) {
		t.Errorf("err = %v, want ErrNoActivePOI", err)
	}
	if err := f.session.DismissActivePOI(); !errors.Is(err, ErrNoActivePOI) {
		t.Errorf("dismiss err = %v, want ErrNoActivePOI", err)
	}
}

func TestGPSErrorIsRecoverable(t *testing.T) {
	f := newExplorationFixture(t)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.session.HandleSample(sample(0, 0, 0))
	f.session.HandleGPSError(errors.New("signal lost"))
	if got := f.session.State(); got != StateExploring {
		t.Fatalf("state = %v, a GPS error must not change state", got)
	}

	// Tracking resumes on the next good sample.
	f.session.HandleSample(sample(10, 0, 5))
	if math.Abs(f.session.Distance()-10) > 1 {
		t.Errorf("distance = %v, want about 10", f.session.Distance())
	}
}

func TestTierTracksDistance(t *testing.T) {
	f := newExplorationFixture(t)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Accumulate ~120m in 80m-max steps.
	f.session.HandleSample(sample(0, 0, 0))
	f.session.HandleSample(sample(60, 0, 20))
	f.session.HandleSample(sample(120, 0, 40))

	f.session.durationTick()
	if got := f.session.Tier(); got != model.RewardTierCommon {
		t.Errorf("tier = %v, want common after 120m", got)
	}
}
