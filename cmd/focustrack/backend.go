package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/actionsum/focustrack/internal/config"
	"github.com/actionsum/focustrack/internal/database"
	"github.com/actionsum/focustrack/internal/models"
	"github.com/actionsum/focustrack/internal/postgrest"
	"github.com/actionsum/focustrack/internal/storage"
	"github.com/actionsum/focustrack/internal/web"
)

// appRegistrar adds applications to the tracked list. Only the local store supports it;
// remote applications are managed by the backend owner.
type appRegistrar interface {
	UpsertApplication(ctx context.Context, userID, displayName, matchKey, category string) (*models.TrackedApplication, error)
}

// backend bundles the collaborator with the optional capabilities of the chosen store.
type backend struct {
	collab    storage.Collaborator
	summaries storage.SummarySource
	apps      web.AppManager
	registrar appRegistrar
	recorder  storage.ErrorRecorder
	close     func() error
}

func openBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendPostgREST:
		client := postgrest.New(cfg.PostgREST, logger)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("failed to reach %s: %w", cfg.PostgREST.URL, err)
		}

		logger.Info().Str("url", cfg.PostgREST.URL).Msg("using PostgREST backend")
		return &backend{
			collab:    client,
			summaries: client,
			apps:      client,
			close:     func() error { return nil },
		}, nil

	default:
		db, err := database.Connect(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Initialize(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}

		repo := database.NewRepository(db)
		logger.Debug().Str("path", cfg.Database.Path).Msg("using local database")
		return &backend{
			collab:    repo,
			summaries: repo,
			apps:      repo,
			registrar: repo,
			recorder:  repo,
			close:     db.Close,
		}, nil
	}
}
