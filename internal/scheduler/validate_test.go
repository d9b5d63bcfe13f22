package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
)

func strPtr(s string) *string { return &s }

func violationTypes(violations []models.Violation) []models.ViolationType {
	out := make([]models.ViolationType, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Type)
	}
	return out
}

func TestValidateCleanSchedule(t *testing.T) {
	assignments := []models.Assignment{
		{CourseName: "Math", ClassGroup: "10A", TeacherID: strPtr("t1"), RoomID: "r1", Day: 0, Slot: 0, Duration: 2},
		{CourseName: "Math", ClassGroup: "10B", TeacherID: strPtr("t1"), RoomID: "r1", Day: 0, Slot: 2, Duration: 2},
		{CourseName: "Homeroom", ClassGroup: "10A", Day: 0, Slot: 2, Duration: 1},
	}

	violations := Validate(assignments, models.DefaultSettings())
	require.NotNil(t, violations)
	assert.Empty(t, violations)
}

func TestValidateReportsEachViolation(t *testing.T) {
	assignments := []models.Assignment{
		{CourseName: "Math", ClassGroup: "10A", TeacherID: strPtr("t1"), RoomID: "r1", Day: 0, Slot: 0, Duration: 2},
		{CourseName: "Physics", ClassGroup: "10A", TeacherID: strPtr("t2"), RoomID: "r2", Day: 0, Slot: 1, Duration: 1},
		{CourseName: "Math", ClassGroup: "10B", TeacherID: strPtr("t1"), RoomID: "r3", Day: 1, Slot: 0, Duration: 1},
		{CourseName: "Biology", ClassGroup: "10C", TeacherID: strPtr("t1"), RoomID: "r4", Day: 1, Slot: 0, Duration: 1},
		{CourseName: "Chemistry", ClassGroup: "10D", TeacherID: strPtr("t3"), RoomID: "r4", Day: 2, Slot: 0, Duration: 1},
		{CourseName: "Art", ClassGroup: "10E", TeacherID: strPtr("t4"), RoomID: "r4", Day: 2, Slot: 0, Duration: 1},
		{CourseName: "Sports", ClassGroup: "10F", Day: 3, Slot: 3, Duration: 2},
		{CourseName: "Music", ClassGroup: "10F", Day: 4, Slot: 7, Duration: 2},
	}

	violations := Validate(assignments, models.DefaultSettings())

	assert.ElementsMatch(t, []models.ViolationType{
		models.ViolationClassOverlap,
		models.ViolationTeacherOverlap,
		models.ViolationRoomOverlap,
		models.ViolationLunchConflict,
		models.ViolationOutOfRange,
	}, violationTypes(violations))

	for _, v := range violations {
		switch v.Type {
		case models.ViolationClassOverlap:
			assert.Equal(t, []int{0, 1}, v.Assignments)
		case models.ViolationTeacherOverlap:
			assert.Equal(t, []int{2, 3}, v.Assignments)
		case models.ViolationRoomOverlap:
			assert.Equal(t, []int{4, 5}, v.Assignments)
		case models.ViolationLunchConflict:
			assert.Equal(t, []int{6}, v.Assignments)
		case models.ViolationOutOfRange:
			assert.Equal(t, []int{7}, v.Assignments)
		}
	}
}

func TestValidateSkipsLunchWhenNotAvoided(t *testing.T) {
	settings := models.DefaultSettings()
	settings.AvoidLunch = false
	assignments := []models.Assignment{{CourseName: "Sports", ClassGroup: "10A", Day: 0, Slot: 3, Duration: 2}}

	assert.Empty(t, Validate(assignments, settings))

	settings.StrictAvoidLunch = true
	assert.Len(t, Validate(assignments, settings), 1)
}

func TestValidateDoesNotModifyInput(t *testing.T) {
	assignments := []models.Assignment{
		{CourseName: "Math", ClassGroup: "10A", Day: 0, Slot: 0, Duration: 2},
		{CourseName: "Math", ClassGroup: "10A", Day: 0, Slot: 1, Duration: 2},
	}
	before := append([]models.Assignment(nil), assignments...)

	Validate(assignments, models.DefaultSettings())

	assert.Equal(t, before, assignments)
}
