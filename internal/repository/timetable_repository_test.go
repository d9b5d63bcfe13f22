package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
)

type memoryBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	failGet error
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{blobs: map[string][]byte{}}
}

func (m *memoryBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	payload, ok := m.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return payload, nil
}

func (m *memoryBlobStore) Put(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = payload
	return nil
}

func (m *memoryBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memoryBlobStore) Ping(context.Context) error { return nil }

type recordingObserver struct {
	operations []string
	failures   int
}

func (o *recordingObserver) ObserveStoreOperation(operation string, _ time.Duration, err error) {
	o.operations = append(o.operations, operation)
	if err != nil {
		o.failures++
	}
}

func assignmentFor(group string, day int) models.Assignment {
	return models.Assignment{CourseID: "math", CourseName: "Mathematics", ClassGroup: group, Day: day, Slot: 0, Duration: 1}
}

func TestTimetableRepositoryMissingDocumentsAreEmpty(t *testing.T) {
	repo := NewTimetableRepository(newMemoryBlobStore(), 0, nil)
	ctx := context.Background()

	timetables, err := repo.LoadTimetables(ctx)
	require.NoError(t, err)
	assert.Empty(t, timetables)

	list, err := repo.LoadAssignments(ctx, "10A")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	lines, err := repo.ReadLog(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = repo.LoadDomain(ctx)
	assert.True(t, errors.Is(err, ErrBlobNotFound))
}

func TestTimetableRepositoryDomainRoundTripAppliesDefaults(t *testing.T) {
	store := newMemoryBlobStore()
	store.blobs[KeyDomain] = []byte(`{"teachers":[{"id":"t1","name":"Budi"}],"settings":{"days":3}}`)
	repo := NewTimetableRepository(store, 0, nil)

	domain, err := repo.LoadDomain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, domain.Settings.Days)
	assert.Equal(t, 8, domain.Settings.TimeslotsPerDay)
	assert.Len(t, domain.Teachers, 1)

	domain.Settings.Days = 5
	require.NoError(t, repo.SaveDomain(context.Background(), *domain))
	reloaded, err := repo.LoadDomain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.Settings.Days)
}

func TestTimetableRepositorySaveAssignmentsKeepsOtherGroups(t *testing.T) {
	repo := NewTimetableRepository(newMemoryBlobStore(), 0, nil)
	ctx := context.Background()

	require.NoError(t, repo.SaveAllAssignments(ctx, models.Timetables{
		"10A": {assignmentFor("10A", 0)},
		"10B": {assignmentFor("10B", 1)},
	}))
	require.NoError(t, repo.SaveAssignments(ctx, "10A", []models.Assignment{assignmentFor("10A", 2)}))

	timetables, err := repo.LoadTimetables(ctx)
	require.NoError(t, err)
	require.Len(t, timetables["10A"], 1)
	assert.Equal(t, 2, timetables["10A"][0].Day)
	require.Len(t, timetables["10B"], 1)
	assert.Equal(t, 1, timetables["10B"][0].Day)
}

func TestTimetableRepositoryClearAllIsIdempotent(t *testing.T) {
	repo := NewTimetableRepository(newMemoryBlobStore(), 0, nil)
	ctx := context.Background()

	require.NoError(t, repo.SaveAssignments(ctx, "10A", []models.Assignment{assignmentFor("10A", 0)}))
	require.NoError(t, repo.ClearAll(ctx))
	first, err := repo.LoadTimetables(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.ClearAll(ctx))
	second, err := repo.LoadTimetables(ctx)
	require.NoError(t, err)

	assert.Empty(t, first)
	assert.Equal(t, first, second)
}

func TestTimetableRepositoryLogIsCapped(t *testing.T) {
	repo := NewTimetableRepository(newMemoryBlobStore(), 3, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AppendLog(ctx, fmt.Sprintf("line %d", i)))
	}

	lines, err := repo.ReadLog(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, lines)

	tail, err := repo.ReadLog(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"line 3", "line 4"}, tail)
}

func TestTimetableRepositoryReportsOperations(t *testing.T) {
	store := newMemoryBlobStore()
	observer := &recordingObserver{}
	repo := NewTimetableRepository(store, 0, observer)
	ctx := context.Background()

	require.NoError(t, repo.ClearAll(ctx))
	store.failGet = errors.New("disk unplugged")
	_, err := repo.LoadTimetables(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read timetables")

	assert.Equal(t, []string{"save_all_assignments", "load_timetables"}, observer.operations)
	assert.Equal(t, 1, observer.failures)
}
