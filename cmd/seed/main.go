// Command main seeds the configured storage backend with demo data.
package main

import (
	"context"
	"log"

	"aurabattle/internal/config"
	"aurabattle/internal/seed"
	"aurabattle/internal/storage"
	"aurabattle/internal/store"
)

func main() {
	log.Println("Demo Data Seeder")
	log.Println("================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Env == "production" || cfg.Env == "prod" {
		log.Fatal("Refusing to seed demo data in production")
	}

	// Open the configured storage backend
	var st storage.Store
	switch cfg.StorageBackend {
	case config.BackendRedis:
		st, err = storage.NewRedis(cfg.RedisURL)
	case config.BackendPostgres:
		st, err = storage.NewPostgres(cfg)
	default:
		st, err = storage.NewSQLite(cfg.DBPath)
	}
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer st.Close()

	users := store.NewUserStore(st)
	groups := store.NewGroupStore(st, users)

	if err := seed.Demo(context.Background(), users, groups); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seeding completed")
}
