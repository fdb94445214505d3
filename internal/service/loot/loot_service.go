package loot

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"

	"terraclaim/internal/model"
)

// Generator is the external reward/loot collaborator. Failures are never
// fatal: the service falls back to local generation.
type Generator interface {
	GenerateRewards(ctx context.Context, distanceM float64) (model.RewardTier, []model.Item, error)
	GenerateLoot(ctx context.Context, poi *model.POI) ([]model.Item, error)
}

// Service computes reward tiers and produces loot, preferring the external
// generator and degrading to a deterministic local path.
type Service struct {
	generator Generator // nil means local-only
}

// NewService creates a loot service. generator may be nil.
func NewService(generator Generator) *Service {
	return &Service{generator: generator}
}

// Reward tier distance steps in meters.
var tierSteps = []struct {
	minDistanceM float64
	tier         model.RewardTier
}{
	{5000, model.RewardTierLegendary},
	{3000, model.RewardTierEpic},
	{1500, model.RewardTierRare},
	{500, model.RewardTierUncommon},
	{100, model.RewardTierCommon},
}

// TierForDistance is the monotonic step function of cumulative exploration
// distance.
func TierForDistance(distanceM float64) model.RewardTier {
	for _, step := range tierSteps {
		if distanceM >= step.minDistanceM {
			return step.tier
		}
	}
	return model.RewardTierNone
}

var itemNames = []string{
	"Rusted Compass",
	"Field Rations",
	"Torn Map Fragment",
	"Old Binoculars",
	"Scrap Metal",
	"Worn Boots",
	"Signal Flare",
	"Canteen",
}

// GenerateRewards resolves the tier and items for a finished session.
func (s *Service) GenerateRewards(ctx context.Context, distanceM float64) (model.RewardTier, []model.Item) {
	if s.generator != nil {
		tier, items, err := s.generator.GenerateRewards(ctx, distanceM)
		if err == nil {
			return tier, items
		}
		log.Printf("Reward generator failed, using local fallback: %v", err)
	}

	tier := TierForDistance(distanceM)
	return tier, s.localItems(fmt.Sprintf("session:%.0f", distanceM), int(tier), tier.String())
}

// GenerateLoot produces scavenge loot for a POI.
func (s *Service) GenerateLoot(ctx context.Context, poi *model.POI) []model.Item {
	if s.generator != nil {
		items, err := s.generator.GenerateLoot(ctx, poi)
		if err == nil {
			return items
		}
		log.Printf("Loot generator failed for POI %s, using local fallback: %v", poi.ID, err)
	}

	count := 1 + int(poi.Danger)
	return s.localItems("poi:"+poi.ID, count, rarityForDanger(poi.Danger))
}

func rarityForDanger(d model.DangerLevel) string {
	switch d {
	case model.DangerLevelHigh:
		return "rare"
	case model.DangerLevelMedium:
		return "uncommon"
	default:
		return "common"
	}
}

// localItems is the deterministic fallback: the same seed always yields the
// same items, so a retried generation cannot hand out different loot.
func (s *Service) localItems(seed string, count int, rarity string) []model.Item {
	if count < 1 {
		count = 1
	}

	h := fnv.New32a()
	h.Write([]byte(seed))
	base := h.Sum32()

	items := make([]model.Item, count)
	for i := range items {
		name := itemNames[(int(base)+i)%len(itemNames)]
		items[i] = model.Item{
			ID:     fmt.Sprintf("%s-%d", seed, i),
			Name:   name,
			Rarity: rarity,
		}
	}
	return items
}
