package scheduler

import (
	"fmt"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// Validate re-scans a finished assignment set and reports structural violations. It never
// modifies the input. Lunch conflicts are only reported when lunch avoidance is configured.
func Validate(assignments []models.Assignment, settings models.Settings) []models.Violation {
	violations := make([]models.Violation, 0)
	checkLunch := settings.AvoidLunch || settings.StrictAvoidLunch

	for i, a := range assignments {
		if a.Day < 0 || a.Day >= settings.Days || a.Slot < 0 || a.Duration < 1 || a.End() > settings.TimeslotsPerDay {
			violations = append(violations, models.Violation{
				Type:        models.ViolationOutOfRange,
				Message:     fmt.Sprintf("%s for %s at day %d slot %d (%d periods) is outside the grid", a.CourseName, a.ClassGroup, a.Day, a.Slot, a.Duration),
				Assignments: []int{i},
			})
		}
		if checkLunch && settings.HitsLunch(a.Slot, a.Duration) {
			violations = append(violations, models.Violation{
				Type:        models.ViolationLunchConflict,
				Message:     fmt.Sprintf("%s for %s on day %d covers lunch slot %d", a.CourseName, a.ClassGroup, a.Day, settings.LunchSlot),
				Assignments: []int{i},
			})
		}
	}

	for i := 0; i < len(assignments); i++ {
		a := assignments[i]
		for j := i + 1; j < len(assignments); j++ {
			b := assignments[j]
			if a.Day != b.Day || !Overlaps(a.Slot, a.Duration, b.Slot, b.Duration) {
				continue
			}
			pair := []int{i, j}
			if a.ClassGroup == b.ClassGroup {
				violations = append(violations, models.Violation{
					Type:        models.ViolationClassOverlap,
					Message:     fmt.Sprintf("%s has %s and %s overlapping on day %d", a.ClassGroup, a.CourseName, b.CourseName, a.Day),
					Assignments: pair,
				})
			}
			if id := a.Teacher(); id != "" && id == b.Teacher() {
				violations = append(violations, models.Violation{
					Type:        models.ViolationTeacherOverlap,
					Message:     fmt.Sprintf("teacher %s teaches %s/%s and %s/%s at once on day %d", id, a.ClassGroup, a.CourseName, b.ClassGroup, b.CourseName, a.Day),
					Assignments: pair,
				})
			}
			if a.RoomID != "" && a.RoomID == b.RoomID {
				violations = append(violations, models.Violation{
					Type:        models.ViolationRoomOverlap,
					Message:     fmt.Sprintf("room %s hosts %s/%s and %s/%s at once on day %d", a.RoomID, a.ClassGroup, a.CourseName, b.ClassGroup, b.CourseName, a.Day),
					Assignments: pair,
				})
			}
		}
	}
	return violations
}
