package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisRepo(t *testing.T) (*RedisBlobRepository, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	repo := NewRedisBlobRepository(redis.NewClient(&redis.Options{Addr: server.Addr()}), "timetable:", nil)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, server
}

func TestRedisBlobRepositoryRoundTrip(t *testing.T) {
	repo, server := newMiniredisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "timetables", []byte(`{"10A":[]}`)))
	stored, err := server.Get("timetable:timetables")
	require.NoError(t, err)
	assert.Equal(t, `{"10A":[]}`, stored)
	assert.Zero(t, server.TTL("timetable:timetables"))

	payload, err := repo.Get(ctx, "timetables")
	require.NoError(t, err)
	assert.JSONEq(t, `{"10A":[]}`, string(payload))

	require.NoError(t, repo.Put(ctx, "timetables", []byte(`{}`)))
	payload, err = repo.Get(ctx, "timetables")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(payload))
	assert.NoError(t, repo.Ping(ctx))
}

func TestRedisBlobRepositoryMissingKeyIsNotFound(t *testing.T) {
	repo, server := newMiniredisRepo(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "domain")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	require.NoError(t, repo.Put(ctx, "domain", []byte(`{}`)))
	require.NoError(t, repo.Delete(ctx, "domain"))
	assert.False(t, server.Exists("timetable:domain"))
	_, err = repo.Get(ctx, "domain")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestTimetableRepositoryOverRedisReadsMissingTimetablesAsEmpty(t *testing.T) {
	blobs, _ := newMiniredisRepo(t)
	repo := NewTimetableRepository(blobs, 10, nil)
	ctx := context.Background()

	timetables, err := repo.LoadTimetables(ctx)
	require.NoError(t, err)
	assert.Empty(t, timetables)

	_, err = repo.LoadDomain(ctx)
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestRedisBlobRepositoryKeyUsesPrefix(t *testing.T) {
	repo := NewRedisBlobRepository(nil, "timetable:", nil)

	assert.Equal(t, "timetable:run_log", repo.Key("run_log"))
}

func TestRedisBlobRepositoryWithoutClient(t *testing.T) {
	repo := NewRedisBlobRepository(nil, "timetable:", nil)
	ctx := context.Background()

	_, err := repo.Get(ctx, "domain")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrBlobNotFound))
	assert.Error(t, repo.Put(ctx, "domain", []byte(`{}`)))
	assert.Error(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}

func TestRedisBlobRepositoryWrapsConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	repo := NewRedisBlobRepository(client, "timetable:", nil)
	defer repo.Close()

	_, err := repo.Get(context.Background(), "timetables")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get timetable:timetables")
}
