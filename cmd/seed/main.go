package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/vantage-intel/vantage/internal/adapters/config"
	"github.com/vantage-intel/vantage/internal/adapters/database"
	"github.com/vantage-intel/vantage/internal/store"
	"github.com/vantage-intel/vantage/pkg/logger"
)

// Seeds the starter universe: tracked companies, curated supply chain
// edges, demo holdings, and the historical precedent catalog. Safe to
// run repeatedly.
func main() {
	migrationsPath := flag.String("migrations", "./migrations", "Path to migration files")
	flag.Parse()

	if err := logger.Init("info", "console"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db.Conn(), *migrationsPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🌱 Seeding the starter universe...")

	if err := store.New(db).Seed(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Seed failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Done. Start the engine to begin monitoring.")
}
