package scheduler

import (
	"sort"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// Schedule accumulates committed assignments. Within a run it is append-only; the zero value is
// ready to use and a nil *Schedule behaves as an empty set.
type Schedule struct {
	items []models.Assignment
}

// NewSchedule seeds a schedule with existing assignments.
func NewSchedule(seed ...models.Assignment) *Schedule {
	s := &Schedule{}
	s.Add(seed...)
	return s
}

// NewScheduleFromTimetables seeds a schedule from persisted timetables, skipping the named groups.
// Groups are added in name order so the result does not depend on map iteration.
func NewScheduleFromTimetables(timetables models.Timetables, skip ...string) *Schedule {
	excluded := make(map[string]struct{}, len(skip))
	for _, name := range skip {
		excluded[name] = struct{}{}
	}
	names := make([]string, 0, len(timetables))
	for name := range timetables {
		if _, ok := excluded[name]; ok {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	s := &Schedule{}
	for _, name := range names {
		s.Add(timetables[name]...)
	}
	return s
}

// Add appends assignments.
func (s *Schedule) Add(items ...models.Assignment) {
	s.items = append(s.items, items...)
}

// Items exposes the underlying slice. Callers must not modify it.
func (s *Schedule) Items() []models.Assignment {
	if s == nil {
		return nil
	}
	return s.items
}

// Len returns the number of assignments.
func (s *Schedule) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Snapshot returns a copy of the assignments.
func (s *Schedule) Snapshot() []models.Assignment {
	out := make([]models.Assignment, s.Len())
	copy(out, s.Items())
	return out
}

func (s *Schedule) reset() {
	s.items = s.items[:0]
}

func (s *Schedule) truncate(n int) {
	if n < len(s.items) {
		s.items = s.items[:n]
	}
}
