package dto

import (
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
)

// GenerateTimetableRequest asks for one class group to be scheduled.
type GenerateTimetableRequest struct {
	ClassGroup string `json:"classGroup" validate:"required"`
}

// CreateTimetableRunRequest enqueues a background generation.
type CreateTimetableRunRequest struct {
	Scope      models.TimetableRunScope `json:"scope" validate:"required,oneof=group all"`
	ClassGroup string                   `json:"classGroup" validate:"required_if=Scope group"`
}

// TimetableRunAccepted is returned once a background run is queued.
type TimetableRunAccepted struct {
	RunID  string                    `json:"runId"`
	Status models.TimetableRunStatus `json:"status"`
}

// GroupGeneration is the outcome of a single-group run.
type GroupGeneration struct {
	RunID string `json:"runId"`
	Seed  int64  `json:"seed"`
	scheduler.GroupResult
}

// BatchGeneration is the outcome of a run over every class group.
type BatchGeneration struct {
	RunID string `json:"runId"`
	Seed  int64  `json:"seed"`
	scheduler.BatchResult
}

// TimetableValidation lists the persisted assignments in the order violation indexes refer to.
type TimetableValidation struct {
	Valid       bool                `json:"valid"`
	Assignments []models.Assignment `json:"assignments"`
	Violations  []models.Violation  `json:"violations"`
}

// RunLogQuery bounds the run log tail.
type RunLogQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=2000"`
}
