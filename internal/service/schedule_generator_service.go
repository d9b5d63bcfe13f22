package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/logger"
)

type timetableStore interface {
	LoadDomain(ctx context.Context) (*models.Domain, error)
	SaveDomain(ctx context.Context, domain models.Domain) error
	LoadTimetables(ctx context.Context) (models.Timetables, error)
	LoadAssignments(ctx context.Context, group string) ([]models.Assignment, error)
	SaveAssignments(ctx context.Context, group string, assignments []models.Assignment) error
	SaveAllAssignments(ctx context.Context, timetables models.Timetables) error
	ClearAll(ctx context.Context) error
	AppendLog(ctx context.Context, lines ...string) error
	ReadLog(ctx context.Context, limit int) ([]string, error)
	Ping(ctx context.Context) error
}

type generationRecorder interface {
	RecordGeneration(scope string, duration time.Duration, placed, failed, skipped int, err error)
}

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	Options    scheduler.Options
	Seed       int64
	RunTimeout time.Duration
}

// ScheduleGeneratorService runs the scheduler over the stored domain and persists the timetables.
type ScheduleGeneratorService struct {
	store     timetableStore
	metrics   generationRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ScheduleGeneratorConfig

	runMu sync.Mutex
	now   func() time.Time
}

// NewScheduleGeneratorService wires scheduler dependencies.
func NewScheduleGeneratorService(store timetableStore, metrics generationRecorder, validate *validator.Validate, logger *zap.Logger, cfg ScheduleGeneratorConfig) *ScheduleGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	return &ScheduleGeneratorService{
		store:     store,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// GenerateGroup schedules one class group around the persisted timetables of every other group.
func (s *ScheduleGeneratorService) GenerateGroup(ctx context.Context, name string) (*dto.GroupGeneration, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classGroup is required")
	}
	if !s.runMu.TryLock() {
		return nil, appErrors.Clone(appErrors.ErrRunInProgress, "")
	}
	defer s.runMu.Unlock()

	domain, err := s.loadDomain(ctx)
	if err != nil {
		return nil, err
	}
	group, ok := domain.FindClassGroup(name)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class group %s not found", name))
	}
	existing, err := s.store.LoadTimetables(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetables")
	}

	runID, seed := uuid.NewString(), s.seed()
	engine, err := s.newEngine(*domain, seed)
	if err != nil {
		return nil, err
	}

	started := s.now()
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	result, runErr := engine.GenerateGroup(runCtx, group, scheduler.NewScheduleFromTimetables(existing, group.Name))
	elapsed := time.Since(started)
	s.recordRun(string(models.TimetableRunScopeGroup), elapsed, result.Placed, result.Failed, result.Skipped, runErr)

	header := fmt.Sprintf("run %s: generate %s seed=%d at %s", runID, group.Name, seed, started.UTC().Format(time.RFC3339))
	if runErr != nil {
		s.appendLog(ctx, append([]string{header}, result.Log...)...)
		return nil, s.runFailure(runErr)
	}

	if err := s.store.SaveAssignments(ctx, group.Name, result.Assignments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save timetable")
	}
	s.appendLog(ctx, append([]string{header}, result.Log...)...)

	s.log(ctx).Info("timetable generation finished",
		zap.String("run_id", runID),
		zap.String("scope", string(models.TimetableRunScopeGroup)),
		zap.String("class_group", group.Name),
		zap.Int64("seed", seed),
		zap.Int("sessions", result.Sessions),
		zap.Int("placed", result.Placed),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", elapsed),
	)

	return &dto.GroupGeneration{RunID: runID, Seed: seed, GroupResult: result}, nil
}

// GenerateAll schedules every class group from an empty accumulator and replaces all timetables.
func (s *ScheduleGeneratorService) GenerateAll(ctx context.Context) (*dto.BatchGeneration, error) {
	if !s.runMu.TryLock() {
		return nil, appErrors.Clone(appErrors.ErrRunInProgress, "")
	}
	defer s.runMu.Unlock()

	domain, err := s.loadDomain(ctx)
	if err != nil {
		return nil, err
	}

	runID, seed := uuid.NewString(), s.seed()
	engine, err := s.newEngine(*domain, seed)
	if err != nil {
		return nil, err
	}

	started := s.now()
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	batch, runErr := engine.GenerateAll(runCtx, scheduler.NewSchedule())
	elapsed := time.Since(started)
	skipped := 0
	for _, group := range batch.Groups {
		skipped += group.Skipped
	}
	s.recordRun(string(models.TimetableRunScopeAll), elapsed, batch.Placed, batch.Failed, skipped, runErr)

	header := fmt.Sprintf("run %s: generate all (%d groups) seed=%d at %s", runID, len(domain.ClassGroups), seed, started.UTC().Format(time.RFC3339))
	if runErr != nil {
		s.appendLog(ctx, append([]string{header}, batch.Log()...)...)
		return nil, s.runFailure(runErr)
	}

	if err := s.store.SaveAllAssignments(ctx, batch.Timetables()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save timetables")
	}
	s.appendLog(ctx, append([]string{header}, batch.Log()...)...)

	s.log(ctx).Info("timetable generation finished",
		zap.String("run_id", runID),
		zap.String("scope", string(models.TimetableRunScopeAll)),
		zap.Int("groups", len(batch.Groups)),
		zap.Int64("seed", seed),
		zap.Int("placed", batch.Placed),
		zap.Int("failed", batch.Failed),
		zap.Duration("elapsed", elapsed),
	)

	return &dto.BatchGeneration{RunID: runID, Seed: seed, BatchResult: batch}, nil
}

// ClearAll removes every persisted timetable. Clearing twice leaves the same empty state.
func (s *ScheduleGeneratorService) ClearAll(ctx context.Context) error {
	if !s.runMu.TryLock() {
		return appErrors.Clone(appErrors.ErrRunInProgress, "")
	}
	defer s.runMu.Unlock()

	if err := s.store.ClearAll(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear timetables")
	}
	s.appendLog(ctx, fmt.Sprintf("timetables cleared at %s", s.now().UTC().Format(time.RFC3339)))
	s.log(ctx).Info("timetables cleared")
	return nil
}

// Assignments returns one group's persisted assignments.
func (s *ScheduleGeneratorService) Assignments(ctx context.Context, group string) ([]models.Assignment, error) {
	group = strings.TrimSpace(group)
	if group == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class group is required")
	}
	list, err := s.store.LoadAssignments(ctx, group)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return list, nil
}

// AllAssignments returns every persisted timetable keyed by class group.
func (s *ScheduleGeneratorService) AllAssignments(ctx context.Context) (models.Timetables, error) {
	timetables, err := s.store.LoadTimetables(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetables")
	}
	return timetables, nil
}

// TeacherAssignments returns every persisted assignment taught by teacherID, ordered by day and slot.
func (s *ScheduleGeneratorService) TeacherAssignments(ctx context.Context, teacherID string) ([]models.Assignment, error) {
	teacherID = strings.TrimSpace(teacherID)
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	return s.filterAssignments(ctx, func(a models.Assignment) bool { return a.Teacher() == teacherID })
}

// RoomAssignments returns every persisted assignment held in roomID, ordered by day and slot.
func (s *ScheduleGeneratorService) RoomAssignments(ctx context.Context, roomID string) ([]models.Assignment, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "room id is required")
	}
	return s.filterAssignments(ctx, func(a models.Assignment) bool { return a.RoomID == roomID })
}

func (s *ScheduleGeneratorService) filterAssignments(ctx context.Context, keep func(models.Assignment) bool) ([]models.Assignment, error) {
	timetables, err := s.AllAssignments(ctx)
	if err != nil {
		return nil, err
	}
	list := lo.Filter(flattenTimetables(timetables), func(a models.Assignment, _ int) bool { return keep(a) })
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Day != list[j].Day {
			return list[i].Day < list[j].Day
		}
		if list[i].Slot != list[j].Slot {
			return list[i].Slot < list[j].Slot
		}
		return list[i].ClassGroup < list[j].ClassGroup
	})
	return list, nil
}

// flattenTimetables concatenates the timetables in class group order.
func flattenTimetables(timetables models.Timetables) []models.Assignment {
	groups := lo.Keys(timetables)
	sort.Strings(groups)

	all := make([]models.Assignment, 0)
	for _, group := range groups {
		all = append(all, timetables[group]...)
	}
	return all
}

// Validate checks every persisted assignment against the grid and overlap rules.
func (s *ScheduleGeneratorService) Validate(ctx context.Context) (*dto.TimetableValidation, error) {
	domain, err := s.loadDomain(ctx)
	if err != nil {
		return nil, err
	}
	timetables, err := s.store.LoadTimetables(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetables")
	}

	all := flattenTimetables(timetables)
	violations := scheduler.Validate(all, domain.Settings)
	return &dto.TimetableValidation{Valid: len(violations) == 0, Assignments: all, Violations: violations}, nil
}

// RunLog returns the newest run log lines.
func (s *ScheduleGeneratorService) RunLog(ctx context.Context, limit int) ([]string, error) {
	lines, err := s.store.ReadLog(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read run log")
	}
	return lines, nil
}

// Domain returns the stored domain document.
func (s *ScheduleGeneratorService) Domain(ctx context.Context) (*models.Domain, error) {
	return s.loadDomain(ctx)
}

// ReplaceDomain validates the document, applies defaults and stores it.
func (s *ScheduleGeneratorService) ReplaceDomain(ctx context.Context, domain models.Domain) (*models.Domain, error) {
	normalizeDomain(&domain)
	if err := s.validator.Struct(domain); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid domain document")
	}
	if problems := crossCheckDomain(domain); len(problems) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(problems, "; "))
	}
	for _, activity := range domain.Settings.FixedActivities {
		if !hasSubjectCode(domain.Subjects, activity.SubjectCode) {
			s.log(ctx).Warn("fixed activity has no matching subject", zap.String("subject_code", activity.SubjectCode))
		}
	}

	if !s.runMu.TryLock() {
		return nil, appErrors.Clone(appErrors.ErrRunInProgress, "")
	}
	defer s.runMu.Unlock()

	if err := s.store.SaveDomain(ctx, domain); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save domain document")
	}
	s.log(ctx).Info("domain document replaced",
		zap.Int("teachers", len(domain.Teachers)),
		zap.Int("rooms", len(domain.Rooms)),
		zap.Int("subjects", len(domain.Subjects)),
		zap.Int("class_groups", len(domain.ClassGroups)),
	)
	return &domain, nil
}

// Ping reports whether the backing store is reachable.
func (s *ScheduleGeneratorService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable store unreachable")
	}
	return nil
}

func (s *ScheduleGeneratorService) loadDomain(ctx context.Context) (*models.Domain, error) {
	domain, err := s.store.LoadDomain(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrBlobNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "domain document not loaded")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load domain document")
	}
	return domain, nil
}

func (s *ScheduleGeneratorService) newEngine(domain models.Domain, seed int64) (*scheduler.Engine, error) {
	engine, err := scheduler.NewEngine(domain, s.cfg.Options, rand.New(rand.NewSource(seed)), s.logger.Named("scheduler"))
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidSettings) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable settings")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prepare scheduler")
	}
	return engine, nil
}

func (s *ScheduleGeneratorService) seed() int64 {
	if s.cfg.Seed != 0 {
		return s.cfg.Seed
	}
	return s.now().UnixNano()
}

func (s *ScheduleGeneratorService) runFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable generation timed out")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable generation cancelled")
}

func (s *ScheduleGeneratorService) recordRun(scope string, elapsed time.Duration, placed, failed, skipped int, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordGeneration(scope, elapsed, placed, failed, skipped, err)
}

// log annotates the service logger with the caller's request id.
func (s *ScheduleGeneratorService) log(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx, s.logger)
}

// appendLog keeps the run log best-effort so a log write never fails a saved run.
func (s *ScheduleGeneratorService) appendLog(ctx context.Context, lines ...string) {
	if err := s.store.AppendLog(ctx, lines...); err != nil {
		s.log(ctx).Warn("failed to append run log", zap.Error(err), zap.Int("lines", len(lines)))
	}
}

func normalizeDomain(domain *models.Domain) {
	for i := range domain.Teachers {
		teacher := &domain.Teachers[i]
		teacher.ID = strings.TrimSpace(teacher.ID)
		for j := range teacher.Unavailable {
			if teacher.Unavailable[j].Duration <= 0 {
				teacher.Unavailable[j].Duration = 1
			}
		}
	}
	for i := range domain.Subjects {
		domain.Subjects[i].ID = strings.TrimSpace(domain.Subjects[i].ID)
	}
	for i := range domain.ClassGroups {
		domain.ClassGroups[i].Name = strings.TrimSpace(domain.ClassGroups[i].Name)
	}
	if domain.Teachers == nil {
		domain.Teachers = []models.Teacher{}
	}
	if domain.Rooms == nil {
		domain.Rooms = []models.Room{}
	}
	if domain.Subjects == nil {
		domain.Subjects = []models.Subject{}
	}
	if domain.ClassGroups == nil {
		domain.ClassGroups = []models.ClassGroup{}
	}
	if domain.GroupSubjects == nil {
		domain.GroupSubjects = []models.GroupSubjectRegistration{}
	}
}

// reservedGroupNames collide with the fixed routes under /timetables.
var reservedGroupNames = map[string]struct{}{
	"generate":     {},
	"generate-all": {},
	"validation":   {},
	"log":          {},
	"runs":         {},
	"teachers":     {},
	"rooms":        {},
}

func crossCheckDomain(domain models.Domain) []string {
	var problems []string

	teacherIDs := make(map[string]struct{}, len(domain.Teachers))
	for _, teacher := range domain.Teachers {
		if _, dup := teacherIDs[teacher.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate teacher id %s", teacher.ID))
		}
		teacherIDs[teacher.ID] = struct{}{}
	}

	subjectIDs := make(map[string]struct{}, len(domain.Subjects))
	for _, subject := range domain.Subjects {
		if _, dup := subjectIDs[subject.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate subject id %s", subject.ID))
		}
		subjectIDs[subject.ID] = struct{}{}
	}

	groupKeys := make(map[string]struct{}, len(domain.ClassGroups)*2)
	groupNames := make(map[string]struct{}, len(domain.ClassGroups))
	for _, group := range domain.ClassGroups {
		if _, dup := groupNames[group.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate class group %s", group.Name))
		}
		groupNames[group.Name] = struct{}{}
		if _, reserved := reservedGroupNames[strings.ToLower(group.Name)]; reserved {
			problems = append(problems, fmt.Sprintf("class group name %s is reserved", group.Name))
		}
		for _, key := range group.Keys() {
			groupKeys[key] = struct{}{}
		}
	}

	for _, reg := range domain.GroupSubjects {
		if _, ok := groupKeys[reg.GroupID]; !ok {
			problems = append(problems, fmt.Sprintf("registration references unknown class group %s", reg.GroupID))
		}
		if _, ok := subjectIDs[reg.SubjectID]; !ok {
			problems = append(problems, fmt.Sprintf("registration references unknown subject %s", reg.SubjectID))
		}
	}

	settings := domain.Settings
	for _, teacher := range domain.Teachers {
		for _, window := range teacher.Unavailable {
			if window.Day >= settings.Days || window.Slot >= settings.TimeslotsPerDay {
				problems = append(problems, fmt.Sprintf("teacher %s unavailable window day %d slot %d is outside the grid", teacher.ID, window.Day, window.Slot))
			}
		}
	}
	return problems
}

func hasSubjectCode(subjects []models.Subject, code string) bool {
	for _, subject := range subjects {
		if strings.EqualFold(strings.TrimSpace(subject.Code), strings.TrimSpace(code)) {
			return true
		}
	}
	return false
}
