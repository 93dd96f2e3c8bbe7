// cmd/resetdb/main.go drops and recreates every table. Development only.
package main

import (
	"context"
	"flag"
	"time"

	"tripplanner/config"
	"tripplanner/internal/db"
	"tripplanner/pkg/logger"
)

func main() {
	confirm := flag.Bool("yes", false, "confirm that all data should be deleted")
	flag.Parse()

	l := logger.NewDevelopment()
	defer l.Sync()

	if !*confirm {
		l.Fatalw("Refusing to reset without -yes")
	}

	cfg, err := config.Load()
	if err != nil {
		l.Fatalw("Failed to load config", "error", err)
	}

	database, err := db.NewPostgresDB(cfg.DB)
	if err != nil {
		l.Fatalw("Failed to connect to database", "error", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := database.Reset(ctx); err != nil {
		l.Fatalw("Failed to reset database", "error", err)
	}
	l.Infow("Database reset", "host", cfg.DB.Host, "database", cfg.DB.DBName)
}
