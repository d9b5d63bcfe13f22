package main

import (
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/pkg/config"
)

type application struct {
	metrics   *service.MetricsService
	tokens    *service.TokenService
	generator *service.ScheduleGeneratorService
	runs      *service.RunService
}

func newApplication(cfg *config.Config, logr *zap.Logger, blobs repository.BlobStore) *application {
	validate := validator.New()
	metrics := service.NewMetricsService()
	store := repository.NewTimetableRepository(blobs, cfg.Scheduler.LogCapacity, metrics)

	generator := service.NewScheduleGeneratorService(store, metrics, validate, logr, service.ScheduleGeneratorConfig{
		Options:    schedulerOptions(cfg.Scheduler),
		Seed:       cfg.Scheduler.Seed,
		RunTimeout: cfg.Scheduler.RunTimeout,
	})

	return &application{
		metrics:   metrics,
		tokens:    service.NewTokenService(cfg.JWT.Secret),
		generator: generator,
		runs: service.NewRunService(generator, validate, logr, service.RunServiceConfig{
			Workers:    cfg.Runs.Workers,
			Buffer:     cfg.Runs.Buffer,
			MaxRetries: cfg.Runs.MaxRetries,
			RetryDelay: cfg.Runs.RetryDelay,
			TTL:        cfg.Runs.TTL,
		}),
	}
}

func schedulerOptions(cfg config.SchedulerConfig) scheduler.Options {
	return scheduler.Options{
		MaxAttempts:           cfg.MaxAttempts,
		DeterministicAttempts: cfg.DeterministicAttempts,
		PrefilterAttempts:     cfg.PrefilterAttempts,
		AvoidLunchAttempts:    cfg.AvoidLunchAttempts,
		CommitPolicy:          scheduler.CommitPolicy(cfg.CommitPolicy),
	}
}
