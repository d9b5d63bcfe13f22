package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/service"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

type runService interface {
	Enqueue(ctx context.Context, req dto.CreateTimetableRunRequest, requestedBy string) (*dto.TimetableRunAccepted, error)
	Get(ctx context.Context, id string) (*models.TimetableRun, error)
}

// RunHandler exposes background generation runs.
type RunHandler struct {
	service runService
}

// NewRunHandler constructs the handler.
func NewRunHandler(svc *service.RunService) *RunHandler {
	return &RunHandler{service: svc}
}

// Create godoc
// @Summary Queue a background generation run
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.CreateTimetableRunRequest true "Run scope"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /timetables/runs [post]
func (h *RunHandler) Create(c *gin.Context) {
	var req dto.CreateTimetableRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid run payload"))
		return
	}
	accepted, err := h.service.Enqueue(c.Request.Context(), req, requesterID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+accepted.RunID)
	response.Accepted(c, accepted)
}

// Get godoc
// @Summary Get a background run
// @Tags Timetables
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/runs/{id} [get]
func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run)
}
