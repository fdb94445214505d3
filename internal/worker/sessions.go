package worker

import (
	"context"
	"log"
	"time"

	"terraclaim/internal/config"
	"terraclaim/internal/service/sessionstore"
)

// StartSessionRetryWorker replays failed session saves with a bounded
// backoff: the interval doubles per round while failures persist, capped at
// SessionRetryMaxAttempts doublings.
func StartSessionRetryWorker(store *sessionstore.Store) func() {
	done := make(chan struct{})

	go func() {
		interval := config.SessionRetryInterval
		attempts := 0
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-done:
				return
			case <-timer.C:
				if store.PendingRetries() == 0 {
					interval = config.SessionRetryInterval
					attempts = 0
					timer.Reset(interval)
					continue
				}

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				flushed := store.RetryFailed(ctx)
				cancel()

				if flushed > 0 {
					log.Printf("Session retry worker flushed %d sessions", flushed)
				}

				if store.PendingRetries() > 0 && attempts < config.SessionRetryMaxAttempts {
					interval *= 2
					attempts++
				} else if store.PendingRetries() == 0 {
					interval = config.SessionRetryInterval
					attempts = 0
				}
				timer.Reset(interval)
			}
		}
	}()

	log.Println("Session retry worker started with interval:", config.SessionRetryInterval)
	return func() { close(done) }
}
