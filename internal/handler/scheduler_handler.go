package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finlink/reports-api/internal/dto"
	"github.com/finlink/reports-api/internal/service"
	apperrors "github.com/finlink/reports-api/pkg/errors"
	"github.com/finlink/reports-api/pkg/response"
)

// SchedulerHandler is the thin trigger surface over the runner. An external
// cron hits it once per tick; all real work happens in SchedulerService.
type SchedulerHandler struct {
	scheduler *service.SchedulerService
	logger    *zap.Logger
}

// NewSchedulerHandler constructs the handler.
func NewSchedulerHandler(scheduler *service.SchedulerService, logger *zap.Logger) *SchedulerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulerHandler{scheduler: scheduler, logger: logger}
}

// Tick godoc
// @Summary Execute all due scheduled reports
// @Tags scheduler
// @Accept json
// @Produce json
// @Param request body dto.TickRequest false "Optional tick override"
// @Success 200 {object} response.Envelope{data=service.TickResult}
// @Security BearerAuth
// @Router /scheduler/tick [post]
func (h *SchedulerHandler) Tick(c *gin.Context) {
	now := time.Now().UTC()

	var req dto.TickRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperrors.Clone(apperrors.ErrValidation, err.Error()))
			return
		}
		if req.Now != "" {
			parsed, err := time.Parse(time.RFC3339, req.Now)
			if err != nil {
				response.Error(c, apperrors.Clone(apperrors.ErrValidation, "now must be RFC 3339"))
				return
			}
			now = parsed.UTC()
		}
	}

	result, err := h.scheduler.RunTick(c.Request.Context(), now)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
