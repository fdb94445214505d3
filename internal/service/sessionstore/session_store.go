package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"gorm.io/gorm"

	"terraclaim/internal/model"
)

// Store persists finished exploration sessions. Saves are best-effort:
// failed results land in a retry queue drained by the session worker.
type Store struct {
	db *gorm.DB

	mutex  sync.Mutex
	failed []*model.SessionResult
}

// NewStore creates a session store backed by the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveSession writes one finished session. On failure the result is queued
// for retry and the error returned for logging; callers never roll back a
// completed session over it.
func (s *Store) SaveSession(ctx context.Context, result *model.SessionResult) error {
	if err := s.save(ctx, result); err != nil {
		s.mutex.Lock()
		s.failed = append(s.failed, result)
		s.mutex.Unlock()
		return err
	}
	return nil
}

func (s *Store) save(ctx context.Context, result *model.SessionResult) error {
	itemsJSON, err := json.Marshal(result.Items)
	if err != nil {
		return fmt.Errorf("failed to encode session items: %w", err)
	}

	pg := &model.SessionPG{
		ID:        result.SessionID,
		DeviceID:  result.DeviceID,
		StartedAt: result.StartedAt,
		EndedAt:   result.EndedAt,
		DistanceM: result.DistanceM,
		Tier:      result.Tier,
		ItemsJSON: string(itemsJSON),
	}

	if result := s.db.WithContext(ctx).Save(pg); result.Error != nil {
		return fmt.Errorf("failed to save session: %w", result.Error)
	}
	return nil
}

// RetryFailed replays queued failures, keeping whatever still fails for the
// next round. Returns how many sessions were flushed.
func (s *Store) RetryFailed(ctx context.Context) int {
	s.mutex.Lock()
	pending := s.failed
	s.failed = nil
	s.mutex.Unlock()

	if len(pending) == 0 {
		return 0
	}

	flushed := 0
	for _, result := range pending {
		if err := s.save(ctx, result); err != nil {
			log.Printf("Session %s retry failed: %v", result.SessionID, err)
			s.mutex.Lock()
			s.failed = append(s.failed, result)
			s.mutex.Unlock()
			continue
		}
		flushed++
	}
	return flushed
}

// PendingRetries returns the retry-queue depth.
func (s *Store) PendingRetries() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.failed)
}
