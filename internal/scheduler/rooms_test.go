package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-timetable/internal/models"
)

func roomIDs(rooms []models.Room) []string {
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	return ids
}

func TestCleanRoomsDropsInvalidRecords(t *testing.T) {
	rooms := []models.Room{
		{ID: "r1", Name: "Room 1"},
		{ID: "", Name: "No id"},
		{ID: "r2", Name: "  "},
		{ID: "undefined", Name: "Broken"},
		{ID: " ERROR ", Name: "Broken"},
		{ID: "r3", Name: "Bad type", RoomType: "error"},
		{ID: "r4", Name: "Lab", RoomType: "practice"},
	}

	assert.Equal(t, []string{"r1", "r4"}, roomIDs(CleanRooms(rooms)))
}

func TestMatchRooms(t *testing.T) {
	clean := []models.Room{
		{ID: "c1", Name: "Computer Lab", RoomType: "practice", RoomTag: " Computer "},
		{ID: "p1", Name: "Science Lab", RoomType: "practice", RoomTag: "science"},
		{ID: "t1", Name: "Class 1", RoomType: "theory"},
	}
	settings := models.DefaultSettings()

	t.Run("tag match is case-insensitive", func(t *testing.T) {
		rooms, filtered := MatchRooms(Session{Subject: models.Subject{RoomTag: "computer"}}, clean, settings)
		assert.True(t, filtered)
		assert.Equal(t, []string{"c1"}, roomIDs(rooms))
	})

	t.Run("strict tag without match yields nothing", func(t *testing.T) {
		rooms, filtered := MatchRooms(Session{Subject: models.Subject{RoomTag: "music"}}, clean, settings)
		assert.True(t, filtered)
		assert.Empty(t, rooms)
	})

	t.Run("relaxed tag falls through to all rooms", func(t *testing.T) {
		relaxed := settings
		relaxed.StrictRoomTag = false
		rooms, filtered := MatchRooms(Session{Subject: models.Subject{RoomTag: "music"}}, clean, relaxed)
		assert.False(t, filtered)
		assert.Len(t, rooms, 3)
	})

	t.Run("room type only when enabled", func(t *testing.T) {
		session := Session{RoomType: "practice"}
		rooms, filtered := MatchRooms(session, clean, settings)
		assert.False(t, filtered)
		assert.Len(t, rooms, 3)

		typed := settings
		typed.IsMatchRoomType = true
		rooms, filtered = MatchRooms(session, clean, typed)
		assert.True(t, filtered)
		assert.Equal(t, []string{"c1", "p1"}, roomIDs(rooms))
	})

	t.Run("unknown room type falls back to clean list", func(t *testing.T) {
		typed := settings
		typed.IsMatchRoomType = true
		rooms, filtered := MatchRooms(Session{RoomType: "gym"}, clean, typed)
		assert.False(t, filtered)
		assert.Len(t, rooms, 3)
	})
}
