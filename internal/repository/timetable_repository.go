package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// Blob keys shared by every backend.
const (
	KeyDomain     = "domain"
	KeyTimetables = "timetables"
	KeyRunLog     = "run_log"
)

// DefaultLogCapacity bounds the persisted run log when no capacity is configured.
const DefaultLogCapacity = 2000

// StoreObserver receives timings for every blob operation.
type StoreObserver interface {
	ObserveStoreOperation(operation string, duration time.Duration, err error)
}

// TimetableRepository maps the scheduling documents onto a BlobStore.
type TimetableRepository struct {
	blobs       BlobStore
	logCapacity int
	observer    StoreObserver
}

// NewTimetableRepository constructs the repository. logCapacity <= 0 uses DefaultLogCapacity.
func NewTimetableRepository(blobs BlobStore, logCapacity int, observer StoreObserver) *TimetableRepository {
	if logCapacity <= 0 {
		logCapacity = DefaultLogCapacity
	}
	return &TimetableRepository{blobs: blobs, logCapacity: logCapacity, observer: observer}
}

// LoadDomain reads the domain document. A missing document yields ErrBlobNotFound.
func (r *TimetableRepository) LoadDomain(ctx context.Context) (*models.Domain, error) {
	var domain models.Domain
	if err := r.read(ctx, "load_domain", KeyDomain, &domain); err != nil {
		return nil, err
	}
	return &domain, nil
}

// SaveDomain replaces the domain document.
func (r *TimetableRepository) SaveDomain(ctx context.Context, domain models.Domain) error {
	return r.write(ctx, "save_domain", KeyDomain, domain)
}

// LoadTimetables returns every persisted timetable. A missing document is empty.
func (r *TimetableRepository) LoadTimetables(ctx context.Context) (models.Timetables, error) {
	timetables := models.Timetables{}
	if err := r.read(ctx, "load_timetables", KeyTimetables, &timetables); err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return models.Timetables{}, nil
		}
		return nil, err
	}
	if timetables == nil {
		timetables = models.Timetables{}
	}
	return timetables, nil
}

// LoadAssignments returns one group's assignments, empty when none were saved.
func (r *TimetableRepository) LoadAssignments(ctx context.Context, group string) ([]models.Assignment, error) {
	timetables, err := r.LoadTimetables(ctx)
	if err != nil {
		return nil, err
	}
	list := timetables[group]
	if list == nil {
		list = []models.Assignment{}
	}
	return list, nil
}

// SaveAssignments replaces one group's assignments and leaves the others untouched.
func (r *TimetableRepository) SaveAssignments(ctx context.Context, group string, assignments []models.Assignment) error {
	timetables, err := r.LoadTimetables(ctx)
	if err != nil {
		return err
	}
	if assignments == nil {
		assignments = []models.Assignment{}
	}
	timetables[group] = assignments
	return r.write(ctx, "save_assignments", KeyTimetables, timetables)
}

// SaveAllAssignments replaces every group's assignments.
func (r *TimetableRepository) SaveAllAssignments(ctx context.Context, timetables models.Timetables) error {
	if timetables == nil {
		timetables = models.Timetables{}
	}
	return r.write(ctx, "save_all_assignments", KeyTimetables, timetables)
}

// ClearAll empties every timetable.
func (r *TimetableRepository) ClearAll(ctx context.Context) error {
	return r.SaveAllAssignments(ctx, models.Timetables{})
}

// AppendLog appends lines to the run log, keeping only the newest logCapacity entries.
func (r *TimetableRepository) AppendLog(ctx context.Context, lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	existing, err := r.ReadLog(ctx, 0)
	if err != nil {
		return err
	}
	existing = append(existing, lines...)
	if overflow := len(existing) - r.logCapacity; overflow > 0 {
		existing = existing[overflow:]
	}
	return r.write(ctx, "append_log", KeyRunLog, existing)
}

// ReadLog returns the newest limit lines in order. limit <= 0 returns everything.
func (r *TimetableRepository) ReadLog(ctx context.Context, limit int) ([]string, error) {
	var lines []string
	if err := r.read(ctx, "read_log", KeyRunLog, &lines); err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	if lines == nil {
		lines = []string{}
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}

// Ping checks the backing store.
func (r *TimetableRepository) Ping(ctx context.Context) error {
	started := time.Now()
	err := r.blobs.Ping(ctx)
	r.observe("ping", started, err)
	return err
}

func (r *TimetableRepository) read(ctx context.Context, operation, key string, dest interface{}) error {
	started := time.Now()
	payload, err := r.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			r.observe(operation, started, nil)
			return ErrBlobNotFound
		}
		r.observe(operation, started, err)
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		r.observe(operation, started, err)
		return fmt.Errorf("decode %s: %w", key, err)
	}
	r.observe(operation, started, nil)
	return nil
}

func (r *TimetableRepository) write(ctx context.Context, operation, key string, value interface{}) error {
	started := time.Now()
	payload, err := json.Marshal(value)
	if err != nil {
		r.observe(operation, started, err)
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.blobs.Put(ctx, key, payload); err != nil {
		r.observe(operation, started, err)
		return fmt.Errorf("write %s: %w", key, err)
	}
	r.observe(operation, started, nil)
	return nil
}

func (r *TimetableRepository) observe(operation string, started time.Time, err error) {
	if r.observer == nil {
		return
	}
	r.observer.ObserveStoreOperation(operation, time.Since(started), err)
}
