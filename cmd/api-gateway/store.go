package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/pkg/cache"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/database"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

// openBlobStore connects the backend selected by STORE_DRIVER. The returned
// func releases its connections.
func openBlobStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (repository.BlobStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreFile, "":
		local, err := storage.NewLocalStorage(cfg.Store.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open store dir %s: %w", cfg.Store.Dir, err)
		}
		return repository.NewFileBlobRepository(local), func() {}, nil

	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := database.RunMigrations(db.DB, logr); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return repository.NewPostgresBlobRepository(db), func() { _ = db.Close() }, nil

	case config.StoreRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		repo := repository.NewRedisBlobRepository(client, cfg.Store.RedisPrefix, logr)
		return repo, func() { _ = repo.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
