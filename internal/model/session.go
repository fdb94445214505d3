package model

import (
	"time"

	"gorm.io/gorm"
)

// RewardTier is a step function of cumulative exploration distance.
type RewardTier int

const (
	RewardTierNone RewardTier = iota
	RewardTierCommon
	RewardTierUncommon
	RewardTierRare
	RewardTierEpic
	RewardTierLegendary
)

func (t RewardTier) String() string {
	switch t {
	case RewardTierCommon:
		return "common"
	case RewardTierUncommon:
		return "uncommon"
	case RewardTierRare:
		return "rare"
	case RewardTierEpic:
		return "epic"
	case RewardTierLegendary:
		return "legendary"
	default:
		return "none"
	}
}

// Item is a single piece of generated loot.
type Item struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rarity string `json:"rarity"`
}

// SessionPG model for PostgreSQL storage of finished exploration sessions
type SessionPG struct {
	ID         string     `gorm:"primaryKey"`
	DeviceID   string     `gorm:"size:64;not null;index"`
	StartedAt  time.Time  `gorm:"not null"`
	EndedAt    time.Time  `gorm:"not null"`
	DistanceM  float64    `gorm:"not null"`
	Tier       RewardTier `gorm:"not null"`
	ItemsJSON  string     `gorm:"type:text"`

	UpdatedAt time.Time      `gorm:"column:updated_at"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName overrides the table name
func (SessionPG) TableName() string {
	return "exploration_sessions"
}

// SessionResult is the finalized outcome of a completed exploration session.
type SessionResult struct {
	SessionID string     `json:"session_id"`
	DeviceID  string     `json:"device_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at"`
	DistanceM float64    `json:"distance_m"`
	Tier      RewardTier `json:"tier"`
	Items     []Item     `json:"items"`
}
