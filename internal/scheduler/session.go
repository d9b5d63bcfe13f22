package scheduler

import (
	"strings"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// SessionKind classifies sessions derived from a subject.
type SessionKind = models.SessionType

const (
	KindTheory   = models.SessionTheory
	KindPractice = models.SessionPractice
	KindHomeroom = models.SessionHomeroom
	KindMixed    = models.SessionMixed
	KindFixed    = models.SessionFixed
)

// Session is one atomic unit of teaching time to place.
type Session struct {
	Subject  models.Subject
	Kind     SessionKind
	Duration int
	// Part numbers the sessions of one subject starting at 1.
	Part     int
	RoomType string
	Fixed    *models.Interval

	Teachers     []models.Teacher
	Rooms        []models.Room
	RoomFiltered bool
}

// NeedsTeacher reports whether placement must pick a teacher.
func (s Session) NeedsTeacher() bool {
	return s.Kind != KindHomeroom && s.Kind != KindFixed
}

// NeedsRoom reports whether placement must pick a room.
func (s Session) NeedsRoom() bool {
	return s.NeedsTeacher()
}

// Label names the session in log lines.
func (s Session) Label() string {
	return s.Subject.Name
}

// BuildSessions expands a subject into placeable sessions. Subjects declaring theory or practice
// hours get one session per kind; otherwise the legacy periods/periods_per_session split applies.
// It is a pure transform and a subject with no derivable periods yields an empty list.
func BuildSessions(subject models.Subject, settings models.Settings) []Session {
	if subject.IsHomeroom {
		return []Session{{Subject: subject, Kind: KindHomeroom, Duration: 1, Part: 1}}
	}
	if activity, ok := settings.FixedActivityFor(subject.Code); ok {
		window := activity.Interval()
		return []Session{{Subject: subject, Kind: KindFixed, Duration: window.Span(), Part: 1, Fixed: &window}}
	}

	if subject.Theory > 0 || subject.Practice > 0 {
		return buildTheoryPractice(subject)
	}
	return buildLegacy(subject)
}

func buildTheoryPractice(subject models.Subject) []Session {
	var sessions []Session
	if subject.Theory > 0 {
		sessions = append(sessions, Session{Subject: subject, Kind: KindTheory, Duration: subject.Theory, RoomType: string(KindTheory)})
	}
	if subject.Practice > 0 {
		for _, d := range splitPractice(subject.Practice) {
			sessions = append(sessions, Session{Subject: subject, Kind: KindPractice, Duration: d, RoomType: string(KindPractice)})
		}
	}
	for i := range sessions {
		sessions[i].Part = i + 1
	}
	return sessions
}

// splitPractice halves blocks longer than two periods, larger half first.
func splitPractice(duration int) []int {
	if duration <= 2 {
		return []int{duration}
	}
	first := (duration + 1) / 2
	return []int{first, duration - first}
}

func buildLegacy(subject models.Subject) []Session {
	total, per := legacyPeriods(subject)
	if total <= 0 {
		return nil
	}
	count := (total + per - 1) / per
	sessions := make([]Session, 0, count)
	for i := 0; i < count; i++ {
		sessions = append(sessions, Session{
			Subject:  subject,
			Kind:     KindMixed,
			Duration: per,
			Part:     i + 1,
			RoomType: strings.TrimSpace(subject.RoomType),
		})
	}
	return sessions
}

func legacyPeriods(subject models.Subject) (total, per int) {
	total = subject.Periods
	per = subject.PeriodsPerSession
	if per <= 0 {
		per = 1
	}
	return total, per
}

// LegacyAllocation reports how many periods the legacy split allocates for a subject against how
// many it requires. The split emits ceil(total/per) sessions of per periods each, so the two only
// agree when total is a multiple of per.
func LegacyAllocation(subject models.Subject) (required, allocated int) {
	total, per := legacyPeriods(subject)
	if total <= 0 {
		return 0, 0
	}
	return total, ((total + per - 1) / per) * per
}

// DurationCandidates lists block sizes to fall back to when a long block cannot be placed:
// n, n/2, n/4, ... down to 1.
func DurationCandidates(n int) []int {
	var out []int
	for d := n; d >= 1; d /= 2 {
		out = append(out, d)
		if d == 1 {
			break
		}
	}
	return out
}

// splitDuration covers total with blocks of size, the last block taking the remainder.
func splitDuration(total, size int) []int {
	if size <= 0 {
		return nil
	}
	var out []int
	for remaining := total; remaining > 0; remaining -= size {
		if remaining < size {
			out = append(out, remaining)
			break
		}
		out = append(out, size)
	}
	return out
}
