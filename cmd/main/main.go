package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"terraclaim/internal/api"
	"terraclaim/internal/config"
	"terraclaim/internal/event"
	"terraclaim/internal/postgres"
	"terraclaim/internal/redis"
	"terraclaim/internal/service/loot"
	"terraclaim/internal/service/poi"
	"terraclaim/internal/service/sessionstore"
	"terraclaim/internal/service/territory"
	"terraclaim/internal/session"
	"terraclaim/internal/worker"
)

func main() {
	setupLogging()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db := postgres.Init(cfg.DBUrl)
	rdb := redis.Init(cfg.RedisUrl)
	defer closeConnections(db, rdb)

	territories, pois, store, sessions, bus := initializeServices(db, rdb)
	defer bus.Close()

	setupSignalHandler(db, rdb)

	stopWorkers := worker.StartAllWorkers(territories, store)
	defer stopWorkers()

	logDomainEvents(bus)

	runAPIServer(cfg, sessions, territories, pois)
}

func setupLogging() {
	// Set up logging to file and terminal
	logFile, err := os.OpenFile("terraclaim.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	// The file stays open for the whole process lifetime.

	multiWriter := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(multiWriter)
}

func initializeServices(db *gorm.DB, rdb *goredis.Client) (*territory.Service, *poi.Service, *sessionstore.Store, *session.Manager, *event.Bus) {
	ctx := context.Background()

	territories := territory.NewService(db, rdb)
	if err := territories.InitService(ctx); err != nil {
		log.Fatalf("Failed to initialize territory service: %v", err)
	}

	pois := poi.NewService(db)
	if err := pois.InitService(ctx); err != nil {
		log.Fatalf("Failed to initialize POI service: %v", err)
	}

	rewards := loot.NewService(nil)
	store := sessionstore.NewStore(db)
	bus := event.NewBus(256)

	sessions := session.NewManager(config.DefaultTracking(), bus,
		territories, territories, pois, rewards, store, false)

	return territories, pois, store, sessions, bus
}

func logDomainEvents(bus *event.Bus) {
	events, _ := bus.Subscribe()
	go func() {
		for e := range events {
			log.Printf("event: %s %+v", e.EventName(), e)
		}
	}()
}

func runAPIServer(cfg config.Config, sessions *session.Manager, territories *territory.Service, pois *poi.Service) {
	r := gin.Default()
	api.SetupRouter(r, sessions, territories, pois)
	r.Run(cfg.Port)
}

func closeConnections(db *gorm.DB, rdb *goredis.Client) {
	if err := postgres.Close(db); err != nil {
		log.Printf("Error closing PostgreSQL connection: %v", err)
	}
	if err := redis.Close(rdb); err != nil {
		log.Printf("Error closing Redis connection: %v", err)
	}
	log.Println("PostgreSQL and Redis connections closed")
}

func setupSignalHandler(db *gorm.DB, rdb *goredis.Client) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("Shutdown signal received, closing connections...")
		closeConnections(db, rdb)
		os.Exit(0)
	}()
}
