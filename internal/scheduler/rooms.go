package scheduler

import (
	"strings"

	"github.com/samber/lo"

	"github.com/noah-isme/sma-timetable/internal/models"
)

var sentinelRoomIDs = []string{"error", "undefined", "null", "nan", "#n/a"}

var excludedRoomTypes = []string{"error"}

// CleanRooms drops structurally invalid room records.
func CleanRooms(rooms []models.Room) []models.Room {
	return lo.Filter(rooms, func(room models.Room, _ int) bool {
		id := normalizeKey(room.ID)
		if id == "" || strings.TrimSpace(room.Name) == "" {
			return false
		}
		if lo.Contains(sentinelRoomIDs, id) {
			return false
		}
		return !lo.Contains(excludedRoomTypes, normalizeKey(room.RoomType))
	})
}

// MatchRooms returns the rooms a session may use and whether a room filter applied. With a tag and
// StrictRoomTag set, an empty result means the session cannot be placed.
func MatchRooms(session Session, clean []models.Room, settings models.Settings) ([]models.Room, bool) {
	if tag := normalizeKey(session.Subject.RoomTag); tag != "" {
		tagged := lo.Filter(clean, func(room models.Room, _ int) bool {
			return normalizeKey(room.RoomTag) == tag
		})
		if len(tagged) > 0 || settings.StrictRoomTag {
			return tagged, true
		}
	}

	if roomType := normalizeKey(session.RoomType); settings.IsMatchRoomType && roomType != "" {
		typed := lo.Filter(clean, func(room models.Room, _ int) bool {
			return normalizeKey(room.RoomType) == roomType
		})
		if len(typed) > 0 {
			return typed, true
		}
	}

	return clean, false
}

func normalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
