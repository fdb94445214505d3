package session

import (
	"context"
	"time"

	"terraclaim/internal/model"
)

// TerritoryProvider hands the claim session its view of the live territory
// set. CandidatesNear is a spatial prefilter: classification over the
// returned candidates must agree with classification over the full set,
// since territories beyond the caution radius cannot change the outcome.
// Returned territories are never mutated after publication.
type TerritoryProvider interface {
	CandidatesNear(center model.GeoPoint, radiusMeters float64) []*model.Territory
}

// TerritoryUploader persists a claimed territory. Must be idempotent on
// (owner, startedAt): retrying after a network failure must not duplicate.
type TerritoryUploader interface {
	Upload(ctx context.Context, ownerID string, path []model.GeoPoint, areaM2 float64, startedAt time.Time) (*model.Territory, error)
}

// POIProvider is the places collaborator plus the local status transitions
// the session performs.
type POIProvider interface {
	SearchNearby(center model.GeoPoint, radiusMeters float64, maxResults int) []*model.POI
	Get(id string) (*model.POI, bool)
	MarkDiscovered(id string)
	MarkLooted(id string)
}

// RewardProvider resolves reward tiers and loot. Implementations fall back
// to local generation on collaborator failure rather than returning errors.
type RewardProvider interface {
	GenerateRewards(ctx context.Context, distanceM float64) (model.RewardTier, []model.Item)
	GenerateLoot(ctx context.Context, poi *model.POI) []model.Item
}

// ResultStore persists finished sessions. Best-effort: a failure never rolls
// back an already-completed session.
type ResultStore interface {
	SaveSession(ctx context.Context, result *model.SessionResult) error
}
