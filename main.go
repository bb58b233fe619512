package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepwise/backend/repository"
	"github.com/prepwise/backend/services"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	// Setup structured logging with JSON format
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config := services.LoadConfig()

	gormDB, err := openDatabase(config)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Verify connectivity with a direct pgx ping before serving traffic
	if config.Database.Driver == "postgres" && config.Database.URL != "" {
		pool, err := pgxpool.New(context.Background(), config.Database.URL)
		if err != nil {
			slog.Error("Failed to create connection pool", "error", err)
			os.Exit(1)
		}
		if err := pool.Ping(context.Background()); err != nil {
			slog.Error("Database ping failed", "error", err)
			os.Exit(1)
		}
		pool.Close()
		slog.Info("Connected to database")
	}

	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.SetMaxIdleConns(config.Database.MaxIdleConns)
		sqlDB.SetMaxOpenConns(config.Database.MaxOpenConns)
	}

	repo := repository.NewGORMRepository(gormDB)
	if err := repo.AutoMigrate(); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	if config.Database.Seed {
		seeder := services.NewDatabaseSeeder(repo)
		if err := seeder.SeedDatabase(); err != nil {
			slog.Error("Failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	server := services.NewServer(config)
	server.SetDatabase(repo, gormDB)
	if err := server.InitializeServices(); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	server.Start()
}

// openDatabase opens postgres in deployment or sqlite for local runs,
// selected by config.
func openDatabase(config *services.Config) (*gorm.DB, error) {
	switch config.Database.Driver {
	case "sqlite":
		slog.Info("Using SQLite database", "path", config.Database.SQLitePath)
		return gorm.Open(sqlite.Open(config.Database.SQLitePath), &gorm.Config{})
	default:
		return gorm.Open(postgres.Open(config.Database.URL), &gorm.Config{})
	}
}
