package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finlink/reports-api/internal/dto"
	"github.com/finlink/reports-api/internal/models"
	"github.com/finlink/reports-api/internal/service"
	apperrors "github.com/finlink/reports-api/pkg/errors"
	"github.com/finlink/reports-api/pkg/response"
)

// ReportHandler serves on-demand report generation and exports.
type ReportHandler struct {
	reports *service.ReportService
	exports *service.ExportService
	logger  *zap.Logger
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports *service.ReportService, exports *service.ExportService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reports: reports, exports: exports, logger: logger}
}

// Generate godoc
// @Summary Generate a report on demand
// @Tags reports
// @Accept json
// @Produce json
// @Param request body dto.GenerateReportRequest true "Report definition"
// @Success 200 {object} dto.GenerateReportResponse
// @Router /reports/generate [post]
func (h *ReportHandler) Generate(c *gin.Context) {
	var req dto.GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, dto.GenerateReportResponse{Success: false, Error: err.Error()})
		return
	}

	config, err := req.ToModel()
	if err != nil {
		c.JSON(http.StatusOK, dto.GenerateReportResponse{Success: false, Error: err.Error()})
		return
	}

	result, err := h.reports.Generate(c.Request.Context(), config)
	if err != nil {
		// On-demand failures are reported inside the payload so the dashboard
		// can show the message inline rather than a transport error.
		h.logger.Sugar().Warnw("report generation failed", "type", config.Type, "error", err)
		c.JSON(http.StatusOK, dto.GenerateReportResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.NewGenerateReportResponse(result))
}

// CreateExport godoc
// @Summary Queue an asynchronous report export
// @Tags reports
// @Accept json
// @Produce json
// @Param request body dto.ExportRequest true "Export definition"
// @Success 202 {object} response.Envelope{data=dto.ExportJobResponse}
// @Router /reports/export [post]
func (h *ReportHandler) CreateExport(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Clone(apperrors.ErrValidation, err.Error()))
		return
	}

	config, err := req.ToModel()
	if err != nil {
		response.Error(c, apperrors.Clone(apperrors.ErrValidation, err.Error()))
		return
	}

	job, err := h.exports.CreateJob(c.Request.Context(), models.ExportJobParams{
		Config: config,
		Format: models.ReportFormat(req.Format),
		Title:  req.Title,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, dto.NewExportJobResponse(job), nil)
}

// GetExport godoc
// @Summary Poll export job status
// @Tags reports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope{data=dto.ExportJobResponse}
// @Router /reports/export/{id} [get]
func (h *ReportHandler) GetExport(c *gin.Context) {
	job, err := h.exports.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewExportJobResponse(job), nil)
}

// Download streams a finished export file referenced by a signed token.
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Param("token")
	job, data, err := h.exports.ResolveDownload(token)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "INVALID_DOWNLOAD_TOKEN", http.StatusForbidden, "download link is invalid or expired"))
		return
	}

	contentType := "text/csv"
	filename := job.ID + "." + string(job.Params.Format)
	if job.Params.Format == models.ReportFormatPDF {
		contentType = "application/pdf"
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}
