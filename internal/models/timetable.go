package models

import (
	"encoding/json"
	"strings"
)

// Interval is a (day, slot, duration) window on the timetable grid.
type Interval struct {
	Day      int `json:"day" validate:"gte=0"`
	Slot     int `json:"slot" validate:"gte=0"`
	Duration int `json:"duration,omitempty" validate:"gte=0"`
}

// Span returns the interval length, treating a missing duration as a single slot.
func (i Interval) Span() int {
	if i.Duration <= 0 {
		return 1
	}
	return i.Duration
}

// Teacher is an instructor that can be assigned to sessions.
type Teacher struct {
	ID          string     `json:"id" validate:"required"`
	Code        string     `json:"short,omitempty"`
	Name        string     `json:"name" validate:"required"`
	MaxPerDay   int        `json:"max_per_day,omitempty" validate:"gte=0"`
	Unavailable []Interval `json:"unavailable,omitempty" validate:"dive"`
}

// Room is a physical location sessions are held in.
type Room struct {
	ID       string `json:"id"`
	Code     string `json:"code,omitempty"`
	Name     string `json:"name"`
	RoomType string `json:"room_type,omitempty"`
	RoomTag  string `json:"room_tag,omitempty"`
}

// ClassGroup is the unit timetables are generated for. Name is the scheduling key.
type ClassGroup struct {
	ID           string `json:"group_id"`
	Name         string `json:"name" validate:"required"`
	DepartmentID string `json:"department_id,omitempty"`
	StudentCount int    `json:"student_count,omitempty" validate:"gte=0"`
	Advisor      string `json:"advisor,omitempty"`
}

// Keys returns the identifiers a registration may use to refer to the group: its id, if set, and
// its name.
func (g ClassGroup) Keys() []string {
	keys := make([]string, 0, 2)
	if g.ID != "" {
		keys = append(keys, g.ID)
	}
	if g.Name != "" && g.Name != g.ID {
		keys = append(keys, g.Name)
	}
	return keys
}

// Subject describes the weekly teaching load of a course.
type Subject struct {
	ID                string   `json:"id" validate:"required"`
	Code              string   `json:"code,omitempty"`
	Name              string   `json:"name" validate:"required"`
	Color             string   `json:"color,omitempty"`
	Theory            int      `json:"theory,omitempty" validate:"gte=0"`
	Practice          int      `json:"practice,omitempty" validate:"gte=0"`
	Periods           int      `json:"periods,omitempty" validate:"gte=0"`
	PeriodsPerSession int      `json:"periods_per_session,omitempty" validate:"gte=0"`
	RoomType          string   `json:"room_type,omitempty"`
	RoomTag           string   `json:"room_tag,omitempty"`
	Teachers          []string `json:"teachers,omitempty"`
	IsHomeroom        bool     `json:"isHomeroom,omitempty"`
}

// GroupSubjectRegistration binds a subject to a class group.
type GroupSubjectRegistration struct {
	GroupID   string `json:"group_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
}

// FixedActivity locks every subject with SubjectCode to one grid window.
type FixedActivity struct {
	SubjectCode string `json:"subject_code" validate:"required"`
	Day         int    `json:"day" validate:"gte=0"`
	Slot        int    `json:"slot" validate:"gte=0"`
	Duration    int    `json:"duration" validate:"gte=1"`
}

// Interval returns the activity window.
func (f FixedActivity) Interval() Interval {
	return Interval{Day: f.Day, Slot: f.Slot, Duration: f.Duration}
}

// Settings tune the timetable grid and placement policy.
type Settings struct {
	Days                  int             `json:"days" validate:"gte=1,lte=7"`
	TimeslotsPerDay       int             `json:"timeslots_per_day" validate:"gte=1,lte=24"`
	LunchSlot             int             `json:"lunchSlot"`
	AvoidLunch            bool            `json:"avoidLunch"`
	StrictAvoidLunch      bool            `json:"strictAvoidLunch"`
	SpreadDays            bool            `json:"spreadDays"`
	BalanceTeachers       bool            `json:"balanceTeachers"`
	StrictRoomTag         bool            `json:"strictRoomTag"`
	IsMatchRoomType       bool            `json:"isMatchRoomType"`
	CheckMaxPeriodsPerDay bool            `json:"checkMaxPeriodsPerDay"`
	MaxPeriodsPerDay      int             `json:"maxPeriodsPerDay" validate:"gte=0"`
	MorningExemptSlots    int             `json:"morningExemptSlots" validate:"gte=0"`
	FixedActivities       []FixedActivity `json:"fixedActivities,omitempty" validate:"dive"`
}

// DefaultSettings mirrors the settings document shipped with a fresh installation.
func DefaultSettings() Settings {
	return Settings{
		Days:               5,
		TimeslotsPerDay:    8,
		LunchSlot:          4,
		AvoidLunch:         true,
		SpreadDays:         true,
		BalanceTeachers:    true,
		StrictRoomTag:      true,
		MaxPeriodsPerDay:   6,
		MorningExemptSlots: 4,
	}
}

// UnmarshalJSON fills fields missing from the payload with DefaultSettings.
func (s *Settings) UnmarshalJSON(data []byte) error {
	type plain Settings
	decoded := plain(DefaultSettings())
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = Settings(decoded)
	return nil
}

// FixedActivityFor returns the fixed activity bound to the subject code, if any.
func (s Settings) FixedActivityFor(code string) (FixedActivity, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return FixedActivity{}, false
	}
	for _, activity := range s.FixedActivities {
		if strings.EqualFold(activity.SubjectCode, code) {
			return activity, true
		}
	}
	return FixedActivity{}, false
}

// HitsLunch reports whether [slot, slot+duration) contains the lunch slot.
func (s Settings) HitsLunch(slot, duration int) bool {
	return slot <= s.LunchSlot && slot+duration > s.LunchSlot
}

// Domain is the full input document a scheduling run reads.
type Domain struct {
	Teachers      []Teacher                  `json:"teachers" validate:"dive"`
	Rooms         []Room                     `json:"rooms"`
	Subjects      []Subject                  `json:"subjects" validate:"dive"`
	ClassGroups   []ClassGroup               `json:"classGroups" validate:"dive"`
	GroupSubjects []GroupSubjectRegistration `json:"groupSubjects" validate:"dive"`
	Settings      Settings                   `json:"settings"`
}

// UnmarshalJSON defaults Settings when the document omits them.
func (d *Domain) UnmarshalJSON(data []byte) error {
	type plain Domain
	decoded := plain{Settings: DefaultSettings()}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*d = Domain(decoded)
	return nil
}

// FindClassGroup looks a class group up by its name.
func (d Domain) FindClassGroup(name string) (ClassGroup, bool) {
	for _, group := range d.ClassGroups {
		if group.Name == name {
			return group, true
		}
	}
	return ClassGroup{}, false
}
