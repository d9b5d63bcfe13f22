package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/logger"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

type cliOptions struct {
	domainPath string
	group      string
	all        bool
	seed       int64
	outDir     string
	validate   bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var opts cliOptions
	flag.StringVar(&opts.domainPath, "domain", "domain.json", "Path to the JSON domain document")
	flag.StringVar(&opts.group, "group", "", "Generate a single class group by name")
	flag.BoolVar(&opts.all, "all", false, "Generate every class group")
	flag.Int64Var(&opts.seed, "seed", cfg.Scheduler.Seed, "Random seed; 0 picks one from the clock")
	flag.StringVar(&opts.outDir, "out", cfg.Store.Dir, "Directory receiving the timetable blobs")
	flag.BoolVar(&opts.validate, "validate", false, "Print violations over the saved timetables")
	flag.Parse()

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logr, os.Stdout); err != nil {
		logr.Error("timetable run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts cliOptions, logr *zap.Logger, stdout io.Writer) error {
	if opts.group != "" && opts.all {
		return errors.New("-group and -all are mutually exclusive")
	}
	if opts.group == "" && !opts.all && !opts.validate {
		return errors.New("nothing to do: pass -group, -all or -validate")
	}

	local, err := storage.NewLocalStorage(opts.outDir)
	if err != nil {
		return fmt.Errorf("open output dir %s: %w", opts.outDir, err)
	}
	store := repository.NewTimetableRepository(repository.NewFileBlobRepository(local), cfg.Scheduler.LogCapacity, nil)
	generator := service.NewScheduleGeneratorService(store, nil, nil, logr, service.ScheduleGeneratorConfig{
		Options: scheduler.Options{
			MaxAttempts:           cfg.Scheduler.MaxAttempts,
			DeterministicAttempts: cfg.Scheduler.DeterministicAttempts,
			PrefilterAttempts:     cfg.Scheduler.PrefilterAttempts,
			AvoidLunchAttempts:    cfg.Scheduler.AvoidLunchAttempts,
			CommitPolicy:          scheduler.CommitPolicy(cfg.Scheduler.CommitPolicy),
		},
		Seed:       opts.seed,
		RunTimeout: cfg.Scheduler.RunTimeout,
	})

	domain, err := readDomain(opts.domainPath)
	if err != nil {
		return err
	}
	if _, err := generator.ReplaceDomain(ctx, *domain); err != nil {
		return err
	}

	var groups []string
	switch {
	case opts.group != "":
		result, err := generator.GenerateGroup(ctx, opts.group)
		if err != nil {
			return err
		}
		groups = []string{result.ClassGroup}
		if err := printJSON(stdout, result); err != nil {
			return err
		}
	case opts.all:
		result, err := generator.GenerateAll(ctx)
		if err != nil {
			return err
		}
		for group := range result.Timetables() {
			groups = append(groups, group)
		}
		sort.Strings(groups)
		if err := printJSON(stdout, result); err != nil {
			return err
		}
	}

	if len(groups) > 0 {
		logr.Info("timetables written", zap.Strings("class_groups", groups), zap.String("dir", local.Dir()))
	}

	if opts.validate {
		report, err := generator.Validate(ctx)
		if err != nil {
			return err
		}
		if err := printJSON(stdout, report.Violations); err != nil {
			return err
		}
		if !report.Valid {
			return fmt.Errorf("%d violation(s) found", len(report.Violations))
		}
	}
	return nil
}

func readDomain(path string) (*models.Domain, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain %s: %w", path, err)
	}
	var domain models.Domain
	if err := json.Unmarshal(raw, &domain); err != nil {
		return nil, fmt.Errorf("decode domain %s: %w", path, err)
	}
	return &domain, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
