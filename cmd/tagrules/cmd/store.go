package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/tagrules/internal/core/db"
)

// openDatabase opens cfg.DBURL without checking migrations.
func openDatabase(ctx context.Context) (*sqlx.DB, error) {
	if cfg.DBURL == "" {
		return nil, fmt.Errorf("--db-url required")
	}
	database, err := db.OpenContext(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// openStore opens the database and fails unless every migration is applied.
func openStore(ctx context.Context) (*sqlx.DB, *db.Store, error) {
	database, err := openDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied || s.Modified {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'tagrules migrate up' first", s.ID)
		}
	}

	store, err := db.NewStore(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, store, nil
}
