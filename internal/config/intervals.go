package config

import "time"

// Worker intervals
const (
	// TerritoryRefreshInterval defines how often the territory snapshot is
	// reloaded from PostgreSQL while the service runs
	TerritoryRefreshInterval = 60 * time.Second

	// CollisionRecheckInterval defines how often an active claim re-runs the
	// proximity classification against the territory snapshot
	CollisionRecheckInterval = 3 * time.Second

	// RedisBackupInterval defines how often dirty territories are saved to Redis
	RedisBackupInterval = 10 * time.Second

	// SessionRetryInterval defines how often failed session saves are retried
	SessionRetryInterval = 30 * time.Second

	// SessionRetryMaxAttempts bounds the persistence retry backoff
	SessionRetryMaxAttempts = 5

	// DurationTickInterval drives the 1 Hz exploration duration/reward tick
	DurationTickInterval = 1 * time.Second

	// StartDebounceWindow suppresses double-tap session starts
	StartDebounceWindow = 500 * time.Millisecond

	// MinSessionDuration is the floor below which stop() is rejected
	MinSessionDuration = 3 * time.Second
)
