package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/service"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

const defaultLogLimit = 200

type scheduleGenerator interface {
	GenerateGroup(ctx context.Context, name string) (*dto.GroupGeneration, error)
	GenerateAll(ctx context.Context) (*dto.BatchGeneration, error)
	ClearAll(ctx context.Context) error
	Assignments(ctx context.Context, group string) ([]models.Assignment, error)
	AllAssignments(ctx context.Context) (models.Timetables, error)
	TeacherAssignments(ctx context.Context, teacherID string) ([]models.Assignment, error)
	RoomAssignments(ctx context.Context, roomID string) ([]models.Assignment, error)
	Validate(ctx context.Context) (*dto.TimetableValidation, error)
	RunLog(ctx context.Context, limit int) ([]string, error)
}

// ScheduleGeneratorHandler exposes timetable generation endpoints.
type ScheduleGeneratorHandler struct {
	service scheduleGenerator
}

// NewScheduleGeneratorHandler constructs the handler.
func NewScheduleGeneratorHandler(svc *service.ScheduleGeneratorService) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{service: svc}
}

// Generate godoc
// @Summary Generate the timetable of one class group
// @Description Other groups' saved timetables are treated as busy. The group's previous timetable is replaced.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Class group"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.GenerateGroup(c.Request.Context(), req.ClassGroup)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{"runId": result.RunID})
}

// GenerateAll godoc
// @Summary Generate timetables for every class group
// @Tags Timetables
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/generate-all [post]
func (h *ScheduleGeneratorHandler) GenerateAll(c *gin.Context) {
	result, err := h.service.GenerateAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{"runId": result.RunID})
}

// Clear godoc
// @Summary Remove every saved timetable
// @Tags Timetables
// @Success 204
// @Router /timetables [delete]
func (h *ScheduleGeneratorHandler) Clear(c *gin.Context) {
	if err := h.service.ClearAll(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List saved timetables keyed by class group
// @Tags Timetables
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *ScheduleGeneratorHandler) List(c *gin.Context) {
	timetables, err := h.service.AllAssignments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetables, map[string]interface{}{"groups": len(timetables)})
}

// Group godoc
// @Summary Get the saved timetable of one class group
// @Tags Timetables
// @Produce json
// @Param group path string true "Class group name"
// @Success 200 {object} response.Envelope
// @Router /timetables/{group} [get]
func (h *ScheduleGeneratorHandler) Group(c *gin.Context) {
	list, err := h.service.Assignments(c.Request.Context(), c.Param("group"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list)
}

// TeacherTimetable godoc
// @Summary Get one teacher's saved assignments across every class group
// @Tags Timetables
// @Produce json
// @Param id path string true "Teacher id"
// @Success 200 {object} response.Envelope
// @Router /timetables/teachers/{id} [get]
func (h *ScheduleGeneratorHandler) TeacherTimetable(c *gin.Context) {
	list, err := h.service.TeacherAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, map[string]interface{}{"teacherId": c.Param("id")})
}

// RoomTimetable godoc
// @Summary Get one room's saved assignments across every class group
// @Tags Timetables
// @Produce json
// @Param id path string true "Room id"
// @Success 200 {object} response.Envelope
// @Router /timetables/rooms/{id} [get]
func (h *ScheduleGeneratorHandler) RoomTimetable(c *gin.Context) {
	list, err := h.service.RoomAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, map[string]interface{}{"roomId": c.Param("id")})
}

// Validate godoc
// @Summary Check saved timetables for overlaps, lunch and grid violations
// @Tags Timetables
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables/validation [get]
func (h *ScheduleGeneratorHandler) Validate(c *gin.Context) {
	report, err := h.service.Validate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Log godoc
// @Summary Tail the generation run log
// @Tags Timetables
// @Produce json
// @Param limit query int false "Number of lines" default(200)
// @Success 200 {object} response.Envelope
// @Router /timetables/log [get]
func (h *ScheduleGeneratorHandler) Log(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	lines, err := h.service.RunLog(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lines, map[string]interface{}{"limit": limit})
}
