package scheduler

import "github.com/noah-isme/sma-timetable/internal/models"

// Overlaps reports whether [aStart, aStart+aDur) and [bStart, bStart+bDur) intersect.
func Overlaps(aStart, aDur, bStart, bDur int) bool {
	aEnd := aStart + aDur
	bEnd := bStart + bDur
	return !(bEnd <= aStart || bStart >= aEnd)
}

// TeacherBusy reports whether the teacher already teaches inside the window in any of the sets.
// An empty teacher id is never busy.
func TeacherBusy(teacherID string, day, start, duration int, sets ...[]models.Assignment) bool {
	if teacherID == "" {
		return false
	}
	return anyOverlap(day, start, duration, func(a models.Assignment) bool {
		return a.Teacher() == teacherID
	}, sets)
}

// RoomBusy reports whether the room is occupied inside the window in any of the sets.
func RoomBusy(roomID string, day, start, duration int, sets ...[]models.Assignment) bool {
	if roomID == "" {
		return false
	}
	return anyOverlap(day, start, duration, func(a models.Assignment) bool {
		return a.RoomID == roomID
	}, sets)
}

// ClassGroupBusy reports whether the group already has a session inside the window. Only the
// group's own sets are consulted since a group is scheduled once per run.
func ClassGroupBusy(group string, day, start, duration int, local ...[]models.Assignment) bool {
	return anyOverlap(day, start, duration, func(a models.Assignment) bool {
		return a.ClassGroup == group
	}, local)
}

func anyOverlap(day, start, duration int, match func(models.Assignment) bool, sets [][]models.Assignment) bool {
	for _, set := range sets {
		for _, a := range set {
			if a.Day != day || !match(a) {
				continue
			}
			if Overlaps(start, duration, a.Slot, a.Duration) {
				return true
			}
		}
	}
	return false
}

func teacherUnavailable(teacher models.Teacher, day, start, duration int) bool {
	for _, window := range teacher.Unavailable {
		if window.Day == day && Overlaps(start, duration, window.Slot, window.Span()) {
			return true
		}
	}
	return false
}
