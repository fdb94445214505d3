package session

import (
	"sync"

	"terraclaim/internal/config"
	"terraclaim/internal/event"
	"terraclaim/internal/location"
	"terraclaim/internal/model"
)

// Manager owns the per-device sessions: exactly one exploration session and
// one claim session per device at a time.
type Manager struct {
	cfg config.Tracking
	bus *event.Bus

	territories       TerritoryProvider
	uploader          TerritoryUploader
	pois              POIProvider
	rewards           RewardProvider
	store             ResultStore
	transformPOIFrame bool

	mutex        sync.Mutex
	explorations map[string]*Exploration
	claims       map[string]*Claim
	sources      map[string]*location.PushSource
}

// NewManager wires the session factory with its collaborators.
func NewManager(cfg config.Tracking, bus *event.Bus, territories TerritoryProvider,
	uploader TerritoryUploader, pois POIProvider, rewards RewardProvider,
	store ResultStore, transformPOIFrame bool) *Manager {
	return &Manager{
		cfg:               cfg,
		bus:               bus,
		territories:       territories,
		uploader:          uploader,
		pois:              pois,
		rewards:           rewards,
		store:             store,
		transformPOIFrame: transformPOIFrame,
		explorations:      make(map[string]*Exploration),
		claims:            make(map[string]*Claim),
		sources:           make(map[string]*location.PushSource),
	}
}

// Exploration returns the device's exploration session, creating it on
// first use.
func (m *Manager) Exploration(deviceID string) *Exploration {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if s, ok := m.explorations[deviceID]; ok {
		return s
	}
	source := location.NewPushSource(64)
	m.sources[deviceID] = source
	s := NewExploration(deviceID, m.cfg, m.bus, source, m.pois, m.rewards, m.store, m.transformPOIFrame)
	m.explorations[deviceID] = s
	return s
}

// Claim returns the device's claim session, creating it on first use.
func (m *Manager) Claim(deviceID string) *Claim {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if c, ok := m.claims[deviceID]; ok {
		return c
	}
	c := NewClaim(deviceID, m.cfg, m.bus, m.territories, m.uploader)
	m.claims[deviceID] = c
	return c
}

// PushSample feeds a raw sample into the device's exploration location
// stream without blocking the caller.
func (m *Manager) PushSample(deviceID string, sample model.TimedPoint) {
	m.mutex.Lock()
	source, ok := m.sources[deviceID]
	m.mutex.Unlock()
	if ok {
		source.Push(sample)
	}
}
