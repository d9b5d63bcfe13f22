package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/middleware/requestid"
)

type memoryBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (m *memoryBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.blobs[key]
	if !ok {
		return nil, repository.ErrBlobNotFound
	}
	return payload, nil
}

func (m *memoryBlobs) Put(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = payload
	return nil
}

func (m *memoryBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memoryBlobs) Ping(context.Context) error { return nil }

type generationRecord struct {
	scope  string
	placed int
	failed int
	err    error
}

type stubRecorder struct {
	mu      sync.Mutex
	records []generationRecord
}

func (r *stubRecorder) RecordGeneration(scope string, _ time.Duration, placed, failed, _ int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, generationRecord{scope: scope, placed: placed, failed: failed, err: err})
}

func newGeneratorFixture(t *testing.T, cfg ScheduleGeneratorConfig) (*ScheduleGeneratorService, *repository.TimetableRepository, *stubRecorder) {
	t.Helper()
	repo := repository.NewTimetableRepository(&memoryBlobs{blobs: map[string][]byte{}}, 100, nil)
	recorder := &stubRecorder{}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	return NewScheduleGeneratorService(repo, recorder, nil, zap.NewNop(), cfg), repo, recorder
}

func twoGroupDomain() models.Domain {
	settings := models.DefaultSettings()
	settings.Days = 1
	settings.TimeslotsPerDay = 2
	settings.AvoidLunch = false
	return models.Domain{
		Teachers:    []models.Teacher{{ID: "t1", Code: "BS", Name: "Budi Santoso"}},
		Rooms:       []models.Room{{ID: "r1", Code: "R1", Name: "Room 1"}},
		Subjects:    []models.Subject{{ID: "math", Code: "MTK", Name: "Mathematics", Theory: 1, Teachers: []string{"t1"}}},
		ClassGroups: []models.ClassGroup{{ID: "g1", Name: "10A"}, {ID: "g2", Name: "10B"}},
		GroupSubjects: []models.GroupSubjectRegistration{
			{GroupID: "g1", SubjectID: "math"},
			{GroupID: "10B", SubjectID: "math"},
		},
		Settings: settings,
	}
}

func strRef(v string) *string {
	return &v
}

func TestGenerateAllPersistsConflictFreeTimetables(t *testing.T) {
	svc, repo, recorder := newGeneratorFixture(t, ScheduleGeneratorConfig{})
	ctx := context.Background()
	require.NoError(t, repo.SaveDomain(ctx, twoGroupDomain()))

	result, err := svc.GenerateAll(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, int64(42), result.Seed)
	assert.Equal(t, 2, result.Placed)
	assert.Zero(t, result.Failed)

	timetables, err := svc.AllAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, timetables["10A"], 1)
	require.Len(t, timetables["10B"], 1)
	assert.NotEqual(t, timetables["10A"][0].Slot, timetables["10B"][0].Slot)

	report, err := svc.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Len(t, report.Assignments, 2)

	lines, err := svc.RunLog(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], result.RunID)

	require.Len(t, recorder.records, 1)
	assert.Equal(t, "all", recorder.records[0].scope)
	assert.Equal(t, 2, recorder.records[0].placed)
}

func TestGenerateGroupRespectsOtherGroupsTimetables(t *testing.T) {
	svc, repo, _ := newGeneratorFixture(t, ScheduleGeneratorConfig{})
	ctx := context.Background()
	require.NoError(t, repo.SaveDomain(ctx, twoGroupDomain()))
	require.NoError(t, repo.SaveAssignments(ctx, "10A", []models.Assignment{{
		CourseID: "math", CourseName: "Mathematics", TeacherID: strRef("t1"), RoomID: "r1", RoomName: "Room 1",
		ClassGroup: "10A", Day: 0, Slot: 0, Duration: 1, SessionType: models.SessionTheory,
	}}))

	result, err := svc.GenerateGroup(ctx, "10B")
	require.NoError(t, err)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, 1, result.Assignments[0].Slot)

	timetables, err := svc.AllAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, timetables["10A"], 1)
	assert.Equal(t, 0, timetables["10A"][0].Slot)

	list, err := svc.Assignments(ctx, "10B")
	require.NoError(t, err)
	assert.Equal(t, result.Assignments, list)
}

func TestGenerateGroupErrors(t *testing.T) {
	svc, repo, _ := newGeneratorFixture(t, ScheduleGeneratorConfig{})
	ctx := context.Background()

	_, err := svc.GenerateGroup(ctx, "  ")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.GenerateGroup(ctx, "10A")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	require.NoError(t, repo.SaveDomain(ctx, twoGroupDomain()))
	_, err = svc.GenerateGroup(ctx, "12Z")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
	assert.Contains(t, err.Error(), "12Z")
}

func TestGenerateRejectsInvalidStoredSettings(t *testing.T) {
	svc, repo, _ := newGeneratorFixture(t, ScheduleGeneratorConfig{})
	ctx := context.Background()
	domain := twoGroupDomain()
	domain.Settings.TimeslotsPerDay = 0
	require.NoError(t, repo.SaveDomain(ctx, domain))

	_, err := svc.GenerateAll(ctx)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestConcurrentRunIsRejected(t *testing.T) {
	svc, repo, _ := newGeneratorFixture(t, ScheduleGeneratorConfig{})
	ctx := context.Background()
	require.NoError(t, repo.SaveDomain(ctx, twoGroupDomain()))

	svc.runMu.Lock()
	_, err := svc.GenerateAll(ctx)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrRunInProgress.Code))
	_, err = svc.GenerateGroup(ctx, "10A")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrRunInProgress.Code))
	assert.True(t, appErrors.HasCode(svc.ClearAll(ctx), appErrors.ErrRunInProgress.Code))
	svc.runMu.Unlock()

	_, err = svc.GenerateAll(ctx)
	assert.NoError(t, err)
}

func TestClearAllIsIdempotent(t *testing.T) {
	svc, repo, _ := newGeneratorFixture(t, ScheduleGeneratorConfig{})
	ctx := context.Background()
	require.NoError(t, repo.SaveDomain(ctx, twoGroupDomain()))
	_, err := svc.GenerateAll(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.ClearAll(ctx))
	first, err := svc.AllAssignments(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.ClearAll(ctx))
	second, err := svc.AllAssignments(ctx)
	require.NoError(t, err)

	assert.Empty(t, first)
	assert.Equal(t, first, second)
}

func TestGenerateAllIsDeterministicForFixedSeed(t *testing.T) {
	domain := twoGroupDomain()
	domain.Settings.Days = 3
	domain.Settings.TimeslotsPerDay = 4
	domain.Teachers = append(domain.Teachers, models.Teacher{ID: "t2", Name: "Sari Dewi"})
	domain.Subjects[0].Teachers = nil

	run := func() models.Timetables {
		svc, repo, _ := newGeneratorFixture(t, ScheduleGeneratorConfig{Seed: 7})
		require.NoError(t, repo.SaveDomain(context.Background(), domain))
		result, err := svc.GenerateAll(context.Background())
		require.NoError(t, err)
		return result.Timetables()
	}

	assert.Equal(t, run(), run())
}

func TestReplaceDomainValidates(t *testing.T) {
	svc, _, _ := newGeneratorFixture(t, ScheduleGeneratorConfig{})
	ctx := context.Background()

	domain := twoGroupDomain()
	domain.GroupSubjects = append(domain.GroupSubjects, models.GroupSubjectRegistration{GroupID: "g1", SubjectID: "chem"})
	_, err := svc.ReplaceDomain(ctx, domain)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	assert.Contains(t, err.Error(), "unknown subject chem")

	domain = twoGroupDomain()
	domain.Teachers = append(domain.Teachers, models.Teacher{ID: "t1", Name: "Copy"})
	_, err = svc.ReplaceDomain(ctx, domain)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate teacher id t1")

	domain = twoGroupDomain()
	domain.Settings.Days = 0
	_, err = svc.ReplaceDomain(ctx, domain)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Domain(ctx)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestReplaceDomainRejectsReservedGroupNames(t *testing.T) {
	svc, _, _ := newGeneratorFixture(t, ScheduleGeneratorConfig{})
	ctx := context.Background()

	for _, name := range []string{"log", "Validation", "teachers"} {
		domain := twoGroupDomain()
		domain.ClassGroups[0].Name = name
		_, err := svc.ReplaceDomain(ctx, domain)
		require.Error(t, err, name)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
		assert.Contains(t, err.Error(), "is reserved")
	}
}

func TestGenerationLogsCarryRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	repo := repository.NewTimetableRepository(&memoryBlobs{blobs: map[string][]byte{}}, 100, nil)
	svc := NewScheduleGeneratorService(repo, nil, nil, zap.New(core), ScheduleGeneratorConfig{Seed: 42})
	ctx := requestid.WithValue(context.Background(), "req-1")
	require.NoError(t, repo.SaveDomain(ctx, twoGroupDomain()))

	_, err := svc.GenerateAll(ctx)
	require.NoError(t, err)

	entries := logs.FilterMessage("timetable generation finished").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])

	_, err = svc.GenerateAll(context.Background())
	require.NoError(t, err)
	entries = logs.FilterMessage("timetable generation finished").All()
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestTeacherAndRoomViews(t *testing.T) {
	svc, repo, _ := newGeneratorFixture(t, ScheduleGeneratorConfig{})
	ctx := context.Background()
	domain := twoGroupDomain()
	domain.Teachers = append(domain.Teachers, models.Teacher{ID: "t2", Code: "SR", Name: "Siti Rahma"})
	domain.Rooms = append(domain.Rooms, models.Room{ID: "r2", Code: "R2", Name: "Room 2"})
	require.NoError(t, repo.SaveDomain(ctx, domain))
	require.NoError(t, repo.SaveAssignments(ctx, "10B", []models.Assignment{
		{CourseID: "math", TeacherID: strRef("t1"), RoomID: "r1", ClassGroup: "10B", Day: 0, Slot: 1, Duration: 1},
	}))
	require.NoError(t, repo.SaveAssignments(ctx, "10A", []models.Assignment{
		{CourseID: "math", TeacherID: strRef("t1"), RoomID: "r2", ClassGroup: "10A", Day: 0, Slot: 0, Duration: 1},
		{CourseID: "pe", RoomID: "r1", ClassGroup: "10A", Day: 0, Slot: 0, Duration: 1},
	}))

	teacher, err := svc.TeacherAssignments(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, teacher, 2)
	assert.Equal(t, "10A", teacher[0].ClassGroup)
	assert.Equal(t, 0, teacher[0].Slot)
	assert.Equal(t, "10B", teacher[1].ClassGroup)

	room, err := svc.RoomAssignments(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, room, 2)
	assert.Equal(t, "pe", room[0].CourseID)
	assert.Equal(t, "10B", room[1].ClassGroup)

	idle, err := svc.TeacherAssignments(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, idle)

	_, err = svc.RoomAssignments(ctx, " ")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestReplaceDomainNormalizesAndStores(t *testing.T) {
	svc, _, _ := newGeneratorFixture(t, ScheduleGeneratorConfig{})
	ctx := context.Background()

	domain := twoGroupDomain()
	domain.Teachers[0].Unavailable = []models.Interval{{Day: 0, Slot: 1}}
	domain.Rooms = nil

	saved, err := svc.ReplaceDomain(ctx, domain)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Teachers[0].Unavailable[0].Duration)
	assert.NotNil(t, saved.Rooms)

	stored, err := svc.Domain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Teachers[0].Unavailable[0].Duration)
	assert.Len(t, stored.ClassGroups, 2)
}

func TestGenerateGroupHonoursCommitPolicyOption(t *testing.T) {
	svc, repo, _ := newGeneratorFixture(t, ScheduleGeneratorConfig{Options: scheduler.Options{CommitPolicy: scheduler.CommitPerSession}})
	ctx := context.Background()
	domain := twoGroupDomain()
	domain.Subjects[0].Theory = 0
	domain.Subjects[0].Practice = 0
	domain.Subjects[0].Periods = 3
	domain.Subjects[0].PeriodsPerSession = 1
	require.NoError(t, repo.SaveDomain(ctx, domain))

	result, err := svc.GenerateGroup(ctx, "10A")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Sessions)
	assert.Equal(t, 2, result.Placed)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Assignments, 2)
}
