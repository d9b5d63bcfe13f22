package models

import "time"

// SessionType labels the kind of session an assignment came from.
type SessionType string

const (
	SessionTheory   SessionType = "theory"
	SessionPractice SessionType = "practice"
	SessionHomeroom SessionType = "homeroom"
	SessionMixed    SessionType = "mixed"
	SessionFixed    SessionType = "fixed"
)

// Assignment is a committed placement. Its JSON shape is consumed by renderers and exporters.
type Assignment struct {
	CourseID    string      `json:"course_id"`
	CourseCode  string      `json:"course_code,omitempty"`
	CourseName  string      `json:"course_name"`
	TeacherID   *string     `json:"teacher_id"`
	TeacherCode string      `json:"teacher_code,omitempty"`
	TeacherName *string     `json:"teacher_name"`
	RoomID      string      `json:"room_id"`
	RoomCode    string      `json:"room_code,omitempty"`
	RoomName    string      `json:"room_name"`
	ClassGroup  string      `json:"class_group"`
	Day         int         `json:"day"`
	Slot        int         `json:"slot"`
	Duration    int         `json:"duration"`
	Color       string      `json:"color"`
	SessionType SessionType `json:"sessionType"`
}

// End returns the first slot after the assignment.
func (a Assignment) End() int {
	return a.Slot + a.Duration
}

// Teacher returns the teacher id or an empty string for teacher-less sessions.
func (a Assignment) Teacher() string {
	if a.TeacherID == nil {
		return ""
	}
	return *a.TeacherID
}

// Timetables maps class group names to their assignments.
type Timetables map[string][]Assignment

// ViolationType enumerates structural problems the validator reports.
type ViolationType string

const (
	ViolationOutOfRange     ViolationType = "OUT_OF_RANGE"
	ViolationLunchConflict  ViolationType = "LUNCH_CONFLICT"
	ViolationClassOverlap   ViolationType = "CLASS_OVERLAP"
	ViolationTeacherOverlap ViolationType = "TEACHER_OVERLAP"
	ViolationRoomOverlap    ViolationType = "ROOM_OVERLAP"
)

// Violation points at one or two offending assignments by index.
type Violation struct {
	Type        ViolationType `json:"type"`
	Message     string        `json:"message"`
	Assignments []int         `json:"assignments"`
}

// TimetableRunStatus tracks asynchronous generation runs.
type TimetableRunStatus string

const (
	TimetableRunQueued    TimetableRunStatus = "queued"
	TimetableRunRunning   TimetableRunStatus = "running"
	TimetableRunSucceeded TimetableRunStatus = "succeeded"
	TimetableRunFailed    TimetableRunStatus = "failed"
)

// TimetableRunScope selects what an asynchronous run generates.
type TimetableRunScope string

const (
	TimetableRunScopeGroup TimetableRunScope = "group"
	TimetableRunScopeAll   TimetableRunScope = "all"
)

// TimetableRun is the status record of a background generation.
type TimetableRun struct {
	ID          string             `json:"id"`
	Scope       TimetableRunScope  `json:"scope"`
	ClassGroup  string             `json:"classGroup,omitempty"`
	Status      TimetableRunStatus `json:"status"`
	Attempts    int                `json:"attempts"`
	Error       string             `json:"error,omitempty"`
	Result      interface{}        `json:"result,omitempty"`
	RequestedBy string             `json:"requestedBy,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	StartedAt   *time.Time         `json:"startedAt,omitempty"`
	FinishedAt  *time.Time         `json:"finishedAt,omitempty"`
}
