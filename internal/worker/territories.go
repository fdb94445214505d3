package worker

import (
	"context"
	"log"
	"time"

	"terraclaim/internal/config"
	"terraclaim/internal/service/territory"
)

// StartTerritoryWorkers starts the snapshot refresh and the Redis
// write-behind for the territory set. The returned stop func halts both.
func StartTerritoryWorkers(svc *territory.Service) func() {
	done := make(chan struct{})

	refreshTicker := time.NewTicker(config.TerritoryRefreshInterval)
	go func() {
		defer refreshTicker.Stop()
		for {
			select {
			case <-done:
				return
			case <-refreshTicker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := svc.Refresh(ctx); err != nil {
					// Best-effort: active claims keep their snapshot.
					log.Printf("Territory refresh error: %v", err)
				}
				cancel()
			}
		}
	}()

	backupTicker := time.NewTicker(config.RedisBackupInterval)
	go func() {
		defer backupTicker.Stop()
		for {
			select {
			case <-done:
				return
			case <-backupTicker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := svc.SaveDirtyToRedis(ctx); err != nil {
					log.Printf("Error saving territories to Redis: %v", err)
				}
				cancel()
			}
		}
	}()

	log.Println("Territory workers started with intervals:",
		config.TerritoryRefreshInterval, config.RedisBackupInterval)

	return func() { close(done) }
}
