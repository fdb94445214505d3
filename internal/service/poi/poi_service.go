package poi

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
	"gorm.io/gorm"

	"terraclaim/internal/geo"
	"terraclaim/internal/model"
	"terraclaim/internal/service/storage"
)

// Service is the POI source for exploration sessions: spatial lookup of
// scavengeable points plus the local status transitions
// (undiscovered -> discovered -> looted).
type Service struct {
	db *gorm.DB

	storage      storage.Storage[string, *model.POI]
	spatialIndex *rtreego.Rtree
	indexMutex   sync.RWMutex

	initialized bool
	initMutex   sync.RWMutex
}

// NewService creates a POI service backed by the given database.
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:           db,
		storage:      storage.NewMemoryStorage[string, *model.POI](),
		spatialIndex: rtreego.NewTree(2, 25, 50),
	}
}

// InitService loads POIs from PostgreSQL and builds the spatial index.
func (s *Service) InitService(ctx context.Context) error {
	s.initMutex.Lock()
	defer s.initMutex.Unlock()

	if s.initialized {
		return nil
	}

	var pgPOIs []*model.POIPG
	if result := s.db.WithContext(ctx).Find(&pgPOIs); result.Error != nil {
		return fmt.Errorf("failed to load POIs from PostgreSQL: %w", result.Error)
	}

	for _, pg := range pgPOIs {
		s.storage.Set(pg.ID, model.POIFromPG(pg))
	}
	s.rebuildSpatialIndex()

	log.Printf("POI service initialized: %d POIs loaded", s.storage.Count())
	s.initialized = true
	return nil
}

func (s *Service) rebuildSpatialIndex() {
	s.indexMutex.Lock()
	defer s.indexMutex.Unlock()

	s.spatialIndex = rtreego.NewTree(2, 25, 50)
	s.storage.ForEach(func(id string, p *model.POI) bool {
		s.spatialIndex.Insert(&model.POISpatial{POI: p})
		return true
	})
}

// SearchNearby returns up to maxResults POIs within radiusMeters of center,
// nearest first, so the cap keeps the closest POIs rather than arbitrary
// ones.
func (s *Service) SearchNearby(center model.GeoPoint, radiusMeters float64, maxResults int) []*model.POI {
	s.indexMutex.RLock()
	defer s.indexMutex.RUnlock()

	latDelta := radiusMeters / 111320.0
	searchRect, err := rtreego.NewRect(
		rtreego.Point{center.Longitude - latDelta, center.Latitude - latDelta},
		[]float64{2 * latDelta, 2 * latDelta},
	)
	if err != nil {
		log.Printf("invalid search rect: %v", err)
		return nil
	}

	spatialResults := s.spatialIndex.SearchIntersect(searchRect)
	if len(spatialResults) == 0 {
		return nil
	}

	type candidate struct {
		poi      *model.POI
		distance float64
	}
	candidates := make([]candidate, 0, len(spatialResults))
	for _, item := range spatialResults {
		p := item.(*model.POISpatial).POI
		d := geo.Distance(center, p.Coordinate)
		if d <= radiusMeters {
			candidates = append(candidates, candidate{poi: p, distance: d})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	if maxResults > 0 && len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	result := make([]*model.POI, len(candidates))
	for i, c := range candidates {
		result[i] = c.poi
	}
	return result
}

// Get returns a POI by ID.
func (s *Service) Get(id string) (*model.POI, bool) {
	return s.storage.Get(id)
}

// MarkDiscovered transitions an undiscovered POI to discovered.
func (s *Service) MarkDiscovered(id string) {
	if p, ok := s.storage.Get(id); ok && p.Status == model.POIStatusUndiscovered {
		p.Status = model.POIStatusDiscovered
		s.storage.Set(id, p)
	}
}

// MarkLooted transitions a POI to looted; looted POIs are excluded from all
// future proximity checks for the rest of the session.
func (s *Service) MarkLooted(id string) {
	if p, ok := s.storage.Get(id); ok && p.Status != model.POIStatusLooted {
		p.Status = model.POIStatusLooted
		s.storage.Set(id, p)
	}
}

// Count returns the number of loaded POIs.
func (s *Service) Count() int {
	return s.storage.Count()
}
