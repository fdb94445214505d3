package territory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dhconnelly/rtreego"
	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"terraclaim/internal/model"
	"terraclaim/internal/service/storage"
	"terraclaim/internal/util"
)

const TerritoryRedisKey = "territory"

// Service manages the live set of claimed territories: an in-memory store
// with an R-tree index for candidate filtering, PostgreSQL as the source of
// truth and Redis as a write-behind cache.
type Service struct {
	db  *gorm.DB
	rdb *redis.Client

	storage      storage.Storage[string, *model.Territory]
	spatialIndex *rtreego.Rtree
	indexMutex   sync.RWMutex

	// snapshot is the immutable slice handed to collision checks. Replaced
	// wholesale on refresh; never mutated in place.
	snapshot atomic.Pointer[[]*model.Territory]

	initialized bool
	initMutex   sync.RWMutex
}

// NewService creates a territory service backed by the given connections.
func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	s := &Service{
		db:           db,
		rdb:          rdb,
		storage:      storage.NewMemoryStorage[string, *model.Territory](),
		spatialIndex: rtreego.NewTree(2, 25, 50), // 2D index with min 25, max 50 entries per node
	}
	empty := make([]*model.Territory, 0)
	s.snapshot.Store(&empty)
	return s
}

// InitService loads active territories from PostgreSQL, merges any newer
// Redis entries and builds the spatial index.
func (s *Service) InitService(ctx context.Context) error {
	s.initMutex.Lock()
	defer s.initMutex.Unlock()

	if s.initialized {
		log.Println("Territory service already initialized, skipping")
		return nil
	}

	startTime := time.Now()
	log.Println("Initializing territory service...")

	territories, err := s.loadAllFromPG()
	if err != nil {
		return fmt.Errorf("failed to load territories from PostgreSQL: %w", err)
	}
	log.Printf("Loaded %d territories from PostgreSQL in %v", len(territories), time.Since(startTime))

	cached, err := s.loadAllFromRedis(ctx)
	if err != nil {
		// Cache read is best-effort; PostgreSQL already gave us a full set.
		log.Printf("Redis territory load failed, continuing with PostgreSQL data: %v", err)
		cached = nil
	}

	for _, t := range territories {
		s.storage.Set(t.ID, t)
	}
	merged := 0
	for id, t := range cached {
		if _, exists := s.storage.Get(id); !exists {
			s.storage.Set(id, t)
			merged++
		}
	}
	if merged > 0 {
		log.Printf("Merged %d territories from Redis cache", merged)
	}
	s.storage.ClearDirty(keysOf(s.storage.GetAll()))

	s.rebuildSpatialIndex()
	s.publishSnapshot()

	log.Printf("Territory service initialized: %d territories in %v",
		s.storage.Count(), time.Since(startTime))

	s.initialized = true
	return nil
}

func keysOf(m map[string]*model.Territory) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// loadAllFromPG loads all territories from PostgreSQL.
func (s *Service) loadAllFromPG() ([]*model.Territory, error) {
	var pgTerritories []*model.TerritoryPG
	result := s.db.Find(&pgTerritories)
	if result.Error != nil {
		return nil, result.Error
	}

	territories := make([]*model.Territory, 0, len(pgTerritories))
	for _, pg := range pgTerritories {
		t, err := model.TerritoryFromPG(pg)
		if err != nil {
			log.Printf("Skipping territory %s with malformed ring: %v", pg.ID, err)
			continue
		}
		territories = append(territories, t)
	}
	return territories, nil
}

// loadAllFromRedis loads cached territories from Redis.
func (s *Service) loadAllFromRedis(ctx context.Context) (map[string]*model.Territory, error) {
	var cursor uint64
	var keys []string
	pattern := fmt.Sprintf("%s:*", TerritoryRedisKey)

	for {
		batch, nextCursor, err := s.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return make(map[string]*model.Territory), nil
	}

	jsonData, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	territories := make(map[string]*model.Territory)
	for _, data := range jsonData {
		if data == nil {
			continue
		}
		jsonStr, ok := data.(string)
		if !ok || jsonStr == "" {
			continue
		}

		t := &model.Territory{}
		if err := json.Unmarshal([]byte(jsonStr), t); err != nil {
			continue
		}
		t.BuildGeometry()
		territories[t.ID] = t
	}

	return territories, nil
}

// rebuildSpatialIndex rebuilds the R-tree from the in-memory store.
func (s *Service) rebuildSpatialIndex() {
	s.indexMutex.Lock()
	defer s.indexMutex.Unlock()

	s.spatialIndex = rtreego.NewTree(2, 25, 50)

	s.storage.ForEach(func(id string, t *model.Territory) bool {
		if t.Polygon == nil || t.BoundingBox == nil {
			t.BuildGeometry()
		}
		s.spatialIndex.Insert(&model.TerritorySpatial{Territory: t})
		return true
	})
}

// publishSnapshot replaces the immutable slice handed to collision checks.
func (s *Service) publishSnapshot() {
	all := s.storage.GetAllValues()
	s.snapshot.Store(&all)
}

// Snapshot returns the current territory set as an atomic snapshot. Callers
// may hold it across a whole check; concurrent refreshes replace, never
// mutate, the slice.
func (s *Service) Snapshot() []*model.Territory {
	return *s.snapshot.Load()
}

// CandidatesNear returns territories whose bounding boxes fall within
// radiusMeters of the point, via the R-tree. Collision math still has to do
// the exact ring tests; this just cuts the candidate set.
func (s *Service) CandidatesNear(point model.GeoPoint, radiusMeters float64) []*model.Territory {
	s.indexMutex.RLock()
	defer s.indexMutex.RUnlock()

	// Meters to an approximate degree box around the point
	latDelta := radiusMeters / 111320.0
	searchRect, err := rtreego.NewRect(
		rtreego.Point{point.Longitude - latDelta, point.Latitude - latDelta},
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

	result := make([]*model.Territory, 0, len(spatialResults))
	for _, item := range spatialResults {
		result = append(result, item.(*model.TerritorySpatial).Territory)
	}
	return result
}

// Upload registers a claimed territory. Idempotent on (owner, startedAt): a
// retry after a network failure must not create a duplicate.
func (s *Service) Upload(ctx context.Context, ownerID string, path []model.GeoPoint, areaM2 float64, startedAt time.Time) (*model.Territory, error) {
	if existing := s.findByOwnerAndStart(ownerID, startedAt); existing != nil {
		return existing, nil
	}

	ring := make([]model.GeoPoint, len(path))
	copy(ring, path)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}

	t := &model.Territory{
		ID:        util.ShortUUID(),
		OwnerID:   ownerID,
		Ring:      ring,
		AreaM2:    areaM2,
		StartedAt: startedAt,
		CreatedAt: time.Now(),
	}
	t.BuildGeometry()

	pg, err := t.ToPG()
	if err != nil {
		return nil, fmt.Errorf("failed to encode territory ring: %w", err)
	}

	// The unique index on (owner_id, started_at) makes concurrent retries
	// collapse into one row.
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "started_at"}},
		DoNothing: true,
	}).Create(pg)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to save territory: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost the race to an identical claim; reload the winner.
		var winner model.TerritoryPG
		if err := s.db.WithContext(ctx).
			Where("owner_id = ? AND started_at = ?", ownerID, startedAt).
			First(&winner).Error; err != nil {
			return nil, fmt.Errorf("failed to load existing territory: %w", err)
		}
		t, err = model.TerritoryFromPG(&winner)
		if err != nil {
			return nil, err
		}
	}

	s.storage.Set(t.ID, t)
	s.rebuildSpatialIndex()
	s.publishSnapshot()

	log.Printf("Territory %s registered for owner %s (%.0f m2)", t.ID, ownerID, t.AreaM2)
	return t, nil
}

func (s *Service) findByOwnerAndStart(ownerID string, startedAt time.Time) *model.Territory {
	var found *model.Territory
	s.storage.ForEach(func(id string, t *model.Territory) bool {
		if t.OwnerID == ownerID && t.StartedAt.Equal(startedAt) {
			found = t
			return false
		}
		return true
	})
	return found
}

// Refresh reloads the territory set from PostgreSQL. Safe to run while
// claims are active: collision checks keep whatever snapshot they hold.
func (s *Service) Refresh(ctx context.Context) error {
	territories, err := s.loadAllFromPG()
	if err != nil {
		return fmt.Errorf("territory refresh failed: %w", err)
	}

	for _, t := range territories {
		if _, exists := s.storage.Get(t.ID); !exists {
			s.storage.Set(t.ID, t)
		}
	}
	s.rebuildSpatialIndex()
	s.publishSnapshot()
	return nil
}

// SaveDirtyToRedis writes modified territories to the cache.
func (s *Service) SaveDirtyToRedis(ctx context.Context) error {
	dirty := s.storage.GetDirty()
	if len(dirty) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	keys := make([]string, 0, len(dirty))

	for id, t := range dirty {
		territoryKey := fmt.Sprintf("%s:%s", TerritoryRedisKey, id)
		territoryJSON, err := json.Marshal(t)
		if err != nil {
			return err
		}
		pipe.Set(ctx, territoryKey, territoryJSON, 0)
		keys = append(keys, id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	// Clear flags only after successful save
	s.storage.ClearDirty(keys)

	log.Printf("Saved %d territories to Redis", len(dirty))
	return nil
}

// Count returns the number of loaded territories.
func (s *Service) Count() int {
	return s.storage.Count()
}
