package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finlink/reports-api/internal/dto"
	"github.com/finlink/reports-api/internal/service"
	apperrors "github.com/finlink/reports-api/pkg/errors"
	"github.com/finlink/reports-api/pkg/response"
)

// ScheduleHandler serves CRUD over scheduled reports and their run history.
type ScheduleHandler struct {
	schedules *service.ScheduleService
	logger    *zap.Logger
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(schedules *service.ScheduleService, logger *zap.Logger) *ScheduleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleHandler{schedules: schedules, logger: logger}
}

// Create godoc
// @Summary Create a scheduled report
// @Tags scheduled-reports
// @Accept json
// @Produce json
// @Param request body dto.CreateScheduleRequest true "Schedule definition"
// @Success 201 {object} response.Envelope{data=models.ScheduledReport}
// @Router /scheduled-reports [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Clone(apperrors.ErrValidation, err.Error()))
		return
	}

	schedule, err := req.ToModel()
	if err != nil {
		response.Error(c, apperrors.Clone(apperrors.ErrValidation, err.Error()))
		return
	}

	created, err := h.schedules.Create(c.Request.Context(), schedule)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List scheduled reports
// @Tags scheduled-reports
// @Produce json
// @Param active query bool false "Only active schedules"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]models.ScheduledReport}
// @Router /scheduled-reports [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var query dto.ListSchedulesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, apperrors.Clone(apperrors.ErrValidation, err.Error()))
		return
	}

	activeOnly := query.Active != nil && *query.Active
	schedules, pagination, err := h.schedules.List(c.Request.Context(), activeOnly, query.Page, query.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get one scheduled report
// @Tags scheduled-reports
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope{data=models.ScheduledReport}
// @Router /scheduled-reports/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.schedules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Update godoc
// @Summary Update a scheduled report
// @Tags scheduled-reports
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param request body dto.UpdateScheduleRequest true "Fields to change"
// @Success 200 {object} response.Envelope{data=models.ScheduledReport}
// @Router /scheduled-reports/{id} [patch]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req dto.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Clone(apperrors.ErrValidation, err.Error()))
		return
	}

	params, err := req.ToParams()
	if err != nil {
		response.Error(c, apperrors.Clone(apperrors.ErrValidation, err.Error()))
		return
	}

	updated, err := h.schedules.Update(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Delete godoc
// @Summary Delete a scheduled report
// @Tags scheduled-reports
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /scheduled-reports/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.schedules.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Runs godoc
// @Summary List recent runs for a schedule
// @Tags scheduled-reports
// @Produce json
// @Param id path string true "Schedule ID"
// @Param limit query int false "Max runs"
// @Success 200 {object} response.Envelope{data=[]models.ScheduledReportRun}
// @Router /scheduled-reports/{id}/runs [get]
func (h *ScheduleHandler) Runs(c *gin.Context) {
	var query dto.ListRunsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, apperrors.Clone(apperrors.ErrValidation, err.Error()))
		return
	}

	runs, err := h.schedules.Runs(c.Request.Context(), c.Param("id"), query.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, nil)
}
