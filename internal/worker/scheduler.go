package worker

import (
	"log"

	"terraclaim/internal/service/sessionstore"
	"terraclaim/internal/service/territory"
)

// StartAllWorkers initializes and starts all background workers. The
// returned stop func halts every worker it started.
func StartAllWorkers(territories *territory.Service, sessions *sessionstore.Store) func() {
	log.Println("Starting all workers...")

	stopTerritories := StartTerritoryWorkers(territories)
	stopSessions := StartSessionRetryWorker(sessions)

	log.Println("All workers started")

	return func() {
		stopTerritories()
		stopSessions()
	}
}
