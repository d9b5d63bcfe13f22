package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/service"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

type domainService interface {
	Domain(ctx context.Context) (*models.Domain, error)
	ReplaceDomain(ctx context.Context, domain models.Domain) (*models.Domain, error)
}

// DomainHandler serves the scheduling input document.
type DomainHandler struct {
	service domainService
}

// NewDomainHandler constructs the handler.
func NewDomainHandler(svc *service.ScheduleGeneratorService) *DomainHandler {
	return &DomainHandler{service: svc}
}

// Get godoc
// @Summary Get the domain document
// @Tags Domain
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /domain [get]
func (h *DomainHandler) Get(c *gin.Context) {
	domain, err := h.service.Domain(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, domain)
}

// Replace godoc
// @Summary Replace the domain document
// @Description Teachers, rooms, subjects, class groups, registrations and settings are replaced as one document.
// @Tags Domain
// @Accept json
// @Produce json
// @Param payload body models.Domain true "Domain document"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /domain [put]
func (h *DomainHandler) Replace(c *gin.Context) {
	var domain models.Domain
	if err := c.ShouldBindJSON(&domain); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid domain payload"))
		return
	}
	saved, err := h.service.ReplaceDomain(c.Request.Context(), domain)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, saved)
}
