package dto

import (
	"fmt"
	"time"

	"github.com/finlink/reports-api/internal/models"
	"github.com/finlink/reports-api/internal/service"
)

// ReportFiltersRequest is the wire shape of a filter set. Dates are calendar
// days (YYYY-MM-DD) with inclusive bounds on the submission date.
type ReportFiltersRequest struct {
	DateFrom        string   `json:"date_from,omitempty"`
	DateTo          string   `json:"date_to,omitempty"`
	Lenders         []string `json:"lenders,omitempty"`
	Retailers       []string `json:"retailers,omitempty"`
	BDMs            []string `json:"bdms,omitempty"`
	FinanceProducts []string `json:"finance_products,omitempty"`
	PrimeClasses    []string `json:"prime_classes,omitempty"`
	Statuses        []string `json:"statuses,omitempty"`
}

// ToModel parses the date bounds and maps onto the domain filter set. The
// upper bound is widened to the end of its day so the whole day is included.
func (r ReportFiltersRequest) ToModel() (models.ReportFilters, error) {
	filters := models.ReportFilters{
		Lenders:         r.Lenders,
		Retailers:       r.Retailers,
		BDMs:            r.BDMs,
		FinanceProducts: r.FinanceProducts,
		PrimeClasses:    r.PrimeClasses,
		Statuses:        r.Statuses,
	}
	if r.DateFrom != "" {
		from, err := time.Parse("2006-01-02", r.DateFrom)
		if err != nil {
			return models.ReportFilters{}, fmt.Errorf("invalid date_from %q", r.DateFrom)
		}
		filters.DateFrom = &from
	}
	if r.DateTo != "" {
		to, err := time.Parse("2006-01-02", r.DateTo)
		if err != nil {
			return models.ReportFilters{}, fmt.Errorf("invalid date_to %q", r.DateTo)
		}
		endOfDay := to.Add(24*time.Hour - time.Nanosecond)
		filters.DateTo = &endOfDay
	}
	return filters, nil
}

// ReportConfigRequest is the wire shape of a full report definition.
type ReportConfigRequest struct {
	Type    string               `json:"type" binding:"required"`
	GroupBy []string             `json:"group_by,omitempty"`
	Metrics []string             `json:"metrics,omitempty"`
	Filters ReportFiltersRequest `json:"filters"`
}

// ToModel converts to the domain config. Enum validation happens in the
// service layer so unknown values produce typed validation errors.
func (r ReportConfigRequest) ToModel() (models.ReportConfig, error) {
	filters, err := r.Filters.ToModel()
	if err != nil {
		return models.ReportConfig{}, err
	}
	config := models.ReportConfig{
		Type:    models.ReportType(r.Type),
		Filters: filters,
	}
	for _, field := range r.GroupBy {
		config.GroupBy = append(config.GroupBy, models.GroupField(field))
	}
	for _, metric := range r.Metrics {
		config.Metrics = append(config.Metrics, models.Metric(metric))
	}
	return config, nil
}

// GenerateReportRequest triggers an on-demand report.
type GenerateReportRequest struct {
	ReportConfigRequest
}

// GenerateReportResponse wraps a report result. Failures respond with Success
// false and the error message instead of an HTTP error body.
type GenerateReportResponse struct {
	Success bool                       `json:"success"`
	Rows    []models.GroupedRow        `json:"rows,omitempty"`
	Records []models.ApplicationRecord `json:"records,omitempty"`
	Summary *models.ReportSummary      `json:"summary,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

// NewGenerateReportResponse builds the success shape from a result.
func NewGenerateReportResponse(result *service.ReportResult) GenerateReportResponse {
	summary := result.Summary
	return GenerateReportResponse{
		Success: true,
		Rows:    result.Rows,
		Records: result.Records,
		Summary: &summary,
	}
}

// ExportRequest queues an asynchronous file export.
type ExportRequest struct {
	ReportConfigRequest
	Format string `json:"format" binding:"required,oneof=csv pdf"`
	Title  string `json:"title,omitempty"`
}

// ExportJobResponse reports export job state for polling.
type ExportJobResponse struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	ResultURL    *string    `json:"result_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// NewExportJobResponse maps a job row to its wire shape.
func NewExportJobResponse(job *models.ExportJob) ExportJobResponse {
	return ExportJobResponse{
		ID:           job.ID,
		Status:       string(job.Status),
		Progress:     job.Progress,
		ResultURL:    job.ResultURL,
		CreatedAt:    job.CreatedAt,
		FinishedAt:   job.FinishedAt,
		ErrorMessage: job.ErrorMessage,
	}
}
