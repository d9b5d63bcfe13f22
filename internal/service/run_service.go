package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
	"github.com/noah-isme/sma-timetable/pkg/logger"
)

type timetableGenerator interface {
	GenerateGroup(ctx context.Context, name string) (*dto.GroupGeneration, error)
	GenerateAll(ctx context.Context) (*dto.BatchGeneration, error)
}

// RunServiceConfig governs the background run queue.
type RunServiceConfig struct {
	Workers    int
	Buffer     int
	MaxRetries int
	RetryDelay time.Duration
	TTL        time.Duration
}

// RunService executes generation runs in the background and tracks their status.
type RunService struct {
	generator timetableGenerator
	queue     *jobs.Queue
	runs      *runStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRunService wires the queue around the generator.
func NewRunService(generator timetableGenerator, validate *validator.Validate, logger *zap.Logger, cfg RunServiceConfig) *RunService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	svc := &RunService{
		generator: generator,
		runs:      newRunStore(cfg.TTL),
		validator: validate,
		logger:    logger,
	}
	svc.queue = jobs.NewQueue("timetable-runs", svc.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.Buffer,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		DeadLetter: svc.deadLetter,
	})
	return svc
}

// Start begins consuming queued runs.
func (s *RunService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for in-flight runs to observe cancellation.
func (s *RunService) Stop() {
	s.queue.Stop()
}

// Enqueue records a queued run and hands it to the workers.
func (s *RunService) Enqueue(ctx context.Context, req dto.CreateTimetableRunRequest, requestedBy string) (*dto.TimetableRunAccepted, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable run payload")
	}

	run := models.TimetableRun{
		ID:          uuid.NewString(),
		Scope:       req.Scope,
		ClassGroup:  req.ClassGroup,
		Status:      models.TimetableRunQueued,
		RequestedBy: requestedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if run.Scope == models.TimetableRunScopeAll {
		run.ClassGroup = ""
	}
	s.runs.Save(run)

	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: "timetable." + string(run.Scope), Payload: run.ID}); err != nil {
		s.runs.Delete(run.ID)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable run queue is full")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable run queue unavailable")
	}

	logger.WithContext(ctx, s.logger).Info("timetable run queued", zap.String("run_id", run.ID), zap.String("scope", string(run.Scope)), zap.String("requested_by", requestedBy))
	return &dto.TimetableRunAccepted{RunID: run.ID, Status: run.Status}, nil
}

// Get returns the run status record.
func (s *RunService) Get(_ context.Context, id string) (*models.TimetableRun, error) {
	run, ok := s.runs.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable run not found or expired")
	}
	return &run, nil
}

func (s *RunService) process(ctx context.Context, job jobs.Job) error {
	id, _ := job.Payload.(string)
	run, ok := s.runs.Get(id)
	if !ok {
		return jobs.Permanent(fmt.Errorf("timetable run %s expired before it started", id))
	}

	started := time.Now().UTC()
	run.Status = models.TimetableRunRunning
	run.Attempts = job.Attempt + 1
	run.StartedAt = &started
	s.runs.Save(run)

	var (
		result interface{}
		err    error
	)
	switch run.Scope {
	case models.TimetableRunScopeGroup:
		result, err = s.generator.GenerateGroup(ctx, run.ClassGroup)
	default:
		result, err = s.generator.GenerateAll(ctx)
	}

	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrRunInProgress.Code) {
			run.Status = models.TimetableRunQueued
			s.runs.Save(run)
			return err
		}
		s.finish(run, nil, err)
		return nil
	}
	s.finish(run, result, nil)
	return nil
}

func (s *RunService) deadLetter(job jobs.Job, err error) {
	id, _ := job.Payload.(string)
	run, ok := s.runs.Get(id)
	if !ok {
		return
	}
	run.Attempts = job.Attempt + 1
	s.finish(run, nil, err)
}

func (s *RunService) finish(run models.TimetableRun, result interface{}, err error) {
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Result = result
	if err != nil {
		run.Status = models.TimetableRunFailed
		run.Error = appErrors.FromError(err).Message
		s.logger.Warn("timetable run failed", zap.String("run_id", run.ID), zap.Int("attempts", run.Attempts), zap.Error(err))
	} else {
		run.Status = models.TimetableRunSucceeded
		run.Error = ""
		s.logger.Info("timetable run succeeded", zap.String("run_id", run.ID), zap.Int("attempts", run.Attempts))
	}
	s.runs.Save(run)
}

// runStore keeps run records in memory. Finished runs expire after ttl.
type runStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]models.TimetableRun
	now   func() time.Time
}

func newRunStore(ttl time.Duration) *runStore {
	return &runStore{
		ttl:   ttl,
		items: make(map[string]models.TimetableRun),
		now:   time.Now,
	}
}

func (s *runStore) Save(run models.TimetableRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[run.ID] = run
	for id, item := range s.items {
		if s.expired(item) {
			delete(s.items, id)
		}
	}
}

func (s *runStore) Get(id string) (models.TimetableRun, bool) {
	s.mu.RLock()
	run, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return models.TimetableRun{}, false
	}
	if s.expired(run) {
		s.Delete(id)
		return models.TimetableRun{}, false
	}
	return run, true
}

func (s *runStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *runStore) expired(run models.TimetableRun) bool {
	return run.FinishedAt != nil && s.now().Sub(*run.FinishedAt) > s.ttl
}
