package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
)

func TestBuildSessionsHomeroom(t *testing.T) {
	sessions := BuildSessions(models.Subject{ID: "hr", Name: "Homeroom", IsHomeroom: true, Periods: 3}, models.DefaultSettings())

	require.Len(t, sessions, 1)
	assert.Equal(t, KindHomeroom, sessions[0].Kind)
	assert.Equal(t, 1, sessions[0].Duration)
	assert.False(t, sessions[0].NeedsTeacher())
	assert.False(t, sessions[0].NeedsRoom())
}

func TestBuildSessionsFixedActivity(t *testing.T) {
	settings := models.DefaultSettings()
	settings.FixedActivities = []models.FixedActivity{{SubjectCode: "SCOUT", Day: 3, Slot: 6, Duration: 2}}

	sessions := BuildSessions(models.Subject{ID: "s1", Code: "scout", Name: "Scouts", Periods: 2}, settings)

	require.Len(t, sessions, 1)
	assert.Equal(t, KindFixed, sessions[0].Kind)
	require.NotNil(t, sessions[0].Fixed)
	assert.Equal(t, models.Interval{Day: 3, Slot: 6, Duration: 2}, *sessions[0].Fixed)
}

func TestBuildSessionsTheoryOnly(t *testing.T) {
	sessions := BuildSessions(models.Subject{ID: "math", Name: "Math", Theory: 2}, models.DefaultSettings())

	require.Len(t, sessions, 1)
	assert.Equal(t, KindTheory, sessions[0].Kind)
	assert.Equal(t, 2, sessions[0].Duration)
	assert.Equal(t, "theory", sessions[0].RoomType)
}

func TestBuildSessionsSplitsLongPractice(t *testing.T) {
	cases := []struct {
		practice int
		want     []int
	}{
		{practice: 1, want: []int{1}},
		{practice: 2, want: []int{2}},
		{practice: 3, want: []int{2, 1}},
		{practice: 4, want: []int{2, 2}},
		{practice: 5, want: []int{3, 2}},
	}
	for _, tc := range cases {
		sessions := BuildSessions(models.Subject{ID: "lab", Name: "Lab", Practice: tc.practice}, models.DefaultSettings())
		durations := make([]int, 0, len(sessions))
		for _, s := range sessions {
			assert.Equal(t, KindPractice, s.Kind)
			durations = append(durations, s.Duration)
		}
		assert.Equal(t, tc.want, durations, "practice=%d", tc.practice)
	}
}

func TestBuildSessionsTheoryAndPracticeParts(t *testing.T) {
	sessions := BuildSessions(models.Subject{ID: "bio", Name: "Biology", Theory: 1, Practice: 4}, models.DefaultSettings())

	require.Len(t, sessions, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{sessions[0].Part, sessions[1].Part, sessions[2].Part})
	assert.Equal(t, KindTheory, sessions[0].Kind)
	assert.Equal(t, KindPractice, sessions[2].Kind)
}

func TestBuildSessionsLegacyKeepsCeilFormula(t *testing.T) {
	subject := models.Subject{ID: "eng", Name: "English", Periods: 5, PeriodsPerSession: 2}

	sessions := BuildSessions(subject, models.DefaultSettings())

	require.Len(t, sessions, 3)
	for _, s := range sessions {
		assert.Equal(t, KindMixed, s.Kind)
		assert.Equal(t, 2, s.Duration)
	}
	required, allocated := LegacyAllocation(subject)
	assert.Equal(t, 5, required)
	assert.Equal(t, 6, allocated)
}

func TestBuildSessionsLegacyDefaultsToSinglePeriods(t *testing.T) {
	sessions := BuildSessions(models.Subject{ID: "art", Name: "Art", Periods: 3}, models.DefaultSettings())

	require.Len(t, sessions, 3)
	assert.Equal(t, 1, sessions[0].Duration)
}

func TestBuildSessionsNoPeriods(t *testing.T) {
	assert.Empty(t, BuildSessions(models.Subject{ID: "x", Name: "Empty"}, models.DefaultSettings()))
}

func TestDurationCandidates(t *testing.T) {
	assert.Equal(t, []int{6, 3, 1}, DurationCandidates(6))
	assert.Equal(t, []int{4, 2, 1}, DurationCandidates(4))
	assert.Equal(t, []int{1}, DurationCandidates(1))
	assert.Empty(t, DurationCandidates(0))
}

func TestSplitDuration(t *testing.T) {
	assert.Equal(t, []int{2, 2, 1}, splitDuration(5, 2))
	assert.Equal(t, []int{2, 2}, splitDuration(4, 2))
	assert.Equal(t, []int{1, 1, 1}, splitDuration(3, 1))
}
