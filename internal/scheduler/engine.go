package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// CommitPolicy decides when placed sessions join the committed schedule.
type CommitPolicy string

const (
	// CommitAllOrNothing stages every session of a subject and commits only if all of them place.
	CommitAllOrNothing CommitPolicy = "all_or_nothing"
	// CommitPerSession commits each session as soon as it places.
	CommitPerSession CommitPolicy = "per_session"
)

// ErrInvalidSettings is returned when the grid settings cannot describe a timetable.
var ErrInvalidSettings = errors.New("scheduler: invalid settings")

// Options bound the placement search.
type Options struct {
	// MaxAttempts caps the outer retry loop per session.
	MaxAttempts int
	// DeterministicAttempts run with sequential slot order before shuffling kicks in.
	DeterministicAttempts int
	// PrefilterAttempts keep the contiguous-free-block day filter active.
	PrefilterAttempts int
	// AvoidLunchAttempts keep the soft lunch avoidance active.
	AvoidLunchAttempts int
	CommitPolicy       CommitPolicy
}

// DefaultOptions returns the retry budget used by the service.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:           50,
		DeterministicAttempts: 5,
		PrefilterAttempts:     25,
		AvoidLunchAttempts:    25,
		CommitPolicy:          CommitAllOrNothing,
	}
}

// withDefaults fills every non-positive field from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.DeterministicAttempts <= 0 {
		o.DeterministicAttempts = def.DeterministicAttempts
	}
	if o.PrefilterAttempts <= 0 {
		o.PrefilterAttempts = def.PrefilterAttempts
	}
	if o.AvoidLunchAttempts <= 0 {
		o.AvoidLunchAttempts = def.AvoidLunchAttempts
	}
	if o.CommitPolicy != CommitPerSession {
		o.CommitPolicy = CommitAllOrNothing
	}
	return o
}

// GroupResult reports the outcome of scheduling one class group.
type GroupResult struct {
	ClassGroup  string              `json:"classGroup"`
	Assignments []models.Assignment `json:"assignments"`
	Sessions    int                 `json:"sessions"`
	Placed      int                 `json:"placed"`
	Failed      int                 `json:"failed"`
	Skipped     int                 `json:"skipped"`
	RolledBack  []string            `json:"rolledBack,omitempty"`
	Log         []string            `json:"log"`
	ElapsedMS   int64               `json:"elapsedMs"`
}

// BatchResult reports the outcome of scheduling every class group.
type BatchResult struct {
	Groups    []GroupResult `json:"groups"`
	Placed    int           `json:"placed"`
	Failed    int           `json:"failed"`
	ElapsedMS int64         `json:"elapsedMs"`
}

// Timetables returns the assignments per group, including groups that received none.
func (b BatchResult) Timetables() models.Timetables {
	out := make(models.Timetables, len(b.Groups))
	for _, group := range b.Groups {
		list := group.Assignments
		if list == nil {
			list = []models.Assignment{}
		}
		out[group.ClassGroup] = list
	}
	return out
}

// Log concatenates the group logs in processing order.
func (b BatchResult) Log() []string {
	var lines []string
	for _, group := range b.Groups {
		lines = append(lines, group.Log...)
	}
	return lines
}

// Engine places sessions for class groups over one domain snapshot.
type Engine struct {
	settings models.Settings
	opts     Options
	rng      *rand.Rand
	logger   *zap.Logger

	teachers    []models.Teacher
	teacherByID map[string]models.Teacher
	rooms       []models.Room
	subjects    []models.Subject
	groups      []models.ClassGroup
	registered  map[string]map[string]struct{}
	windows     []models.Interval
}

// NewEngine prepares an engine. The random source drives every tie-break and shuffle, so a fixed
// seed reproduces a run exactly.
func NewEngine(domain models.Domain, opts Options, rng *rand.Rand, logger *zap.Logger) (*Engine, error) {
	settings := domain.Settings
	if settings.Days < 1 || settings.TimeslotsPerDay < 1 {
		return nil, fmt.Errorf("%w: days=%d timeslots_per_day=%d", ErrInvalidSettings, settings.Days, settings.TimeslotsPerDay)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		settings:    settings,
		opts:        opts.withDefaults(),
		rng:         rng,
		logger:      logger,
		teachers:    domain.Teachers,
		teacherByID: make(map[string]models.Teacher, len(domain.Teachers)),
		rooms:       CleanRooms(domain.Rooms),
		subjects:    domain.Subjects,
		groups:      domain.ClassGroups,
		registered:  make(map[string]map[string]struct{}),
	}
	for _, teacher := range domain.Teachers {
		e.teacherByID[teacher.ID] = teacher
	}
	for _, reg := range domain.GroupSubjects {
		if e.registered[reg.GroupID] == nil {
			e.registered[reg.GroupID] = make(map[string]struct{})
		}
		e.registered[reg.GroupID][reg.SubjectID] = struct{}{}
	}
	for _, activity := range settings.FixedActivities {
		e.windows = append(e.windows, activity.Interval())
	}
	return e, nil
}

// Settings returns the grid settings the engine runs with.
func (e *Engine) Settings() models.Settings {
	return e.settings
}

// GenerateAll schedules every class group in domain order against one shared global schedule.
// Earlier groups get first pick of teachers and rooms.
func (e *Engine) GenerateAll(ctx context.Context, global *Schedule) (BatchResult, error) {
	started := time.Now()
	if global == nil {
		global = NewSchedule()
	}
	var batch BatchResult
	for _, group := range e.groups {
		result, err := e.GenerateGroup(ctx, group, global)
		batch.Groups = append(batch.Groups, result)
		batch.Placed += result.Placed
		batch.Failed += result.Failed
		if err != nil {
			batch.ElapsedMS = time.Since(started).Milliseconds()
			return batch, err
		}
	}
	batch.ElapsedMS = time.Since(started).Milliseconds()
	return batch, nil
}

// GenerateGroup schedules one class group. Committed assignments are appended to global as they
// are made. On cancellation the partial result is returned with the context error.
func (e *Engine) GenerateGroup(ctx context.Context, group models.ClassGroup, global *Schedule) (GroupResult, error) {
	started := time.Now()
	if global == nil {
		global = NewSchedule()
	}
	run := &groupRun{
		engine: e,
		group:  group,
		local:  NewSchedule(),
		staged: NewSchedule(),
		global: global,
		result: GroupResult{ClassGroup: group.Name},
	}

	fixed, sessions := e.groupSessions(run)
	run.result.Sessions = len(fixed) + len(sessions)
	run.injectFixed(fixed)

	err := run.placeAll(ctx, OrderSessions(sessions))
	if err != nil {
		run.logf("cancelled: %v", err)
	}
	run.result.Assignments = run.local.Snapshot()
	run.result.ElapsedMS = time.Since(started).Milliseconds()
	run.logf("done: %d of %d sessions placed, %d failed in %dms", run.result.Placed, run.result.Sessions, run.result.Failed, run.result.ElapsedMS)
	return run.result, err
}

func (e *Engine) groupSessions(run *groupRun) (fixed, sessions []Session) {
	for _, subject := range e.subjects {
		_, isFixed := e.settings.FixedActivityFor(subject.Code)
		if !subject.IsHomeroom && !isFixed && !e.isRegistered(run.group, subject.ID) {
			continue
		}
		built := BuildSessions(subject, e.settings)
		if len(built) == 0 {
			run.logf("%s has no schedulable periods", subject.Name)
			continue
		}
		if built[0].Kind == KindMixed {
			if required, allocated := LegacyAllocation(subject); required != allocated {
				run.logf("%s allocates %d periods for %d required (%d sessions of %d)", subject.Name, allocated, required, len(built), built[0].Duration)
			}
		}
		for _, s := range built {
			if s.Kind == KindFixed {
				fixed = append(fixed, s)
				continue
			}
			if s.NeedsTeacher() {
				s.Teachers = e.eligibleTeachers(subject)
			}
			if s.NeedsRoom() {
				s.Rooms, s.RoomFiltered = MatchRooms(s, e.rooms, e.settings)
			}
			sessions = append(sessions, s)
		}
	}
	return fixed, sessions
}

func (e *Engine) isRegistered(group models.ClassGroup, subjectID string) bool {
	for _, key := range group.Keys() {
		if _, ok := e.registered[key][subjectID]; ok {
			return true
		}
	}
	return false
}

// eligibleTeachers resolves the subject's explicit list, or every teacher when the list is empty.
func (e *Engine) eligibleTeachers(subject models.Subject) []models.Teacher {
	if len(subject.Teachers) == 0 {
		return e.teachers
	}
	out := make([]models.Teacher, 0, len(subject.Teachers))
	for _, id := range subject.Teachers {
		if teacher, ok := e.teacherByID[id]; ok {
			out = append(out, teacher)
		}
	}
	return out
}
