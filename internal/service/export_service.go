package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finlink/reports-api/internal/models"
	"github.com/finlink/reports-api/internal/repository"
	apperrors "github.com/finlink/reports-api/pkg/errors"
	"github.com/finlink/reports-api/pkg/export"
	"github.com/finlink/reports-api/pkg/jobs"
	"github.com/finlink/reports-api/pkg/storage"
)

var groupFieldLabels = map[models.GroupField]string{
	models.GroupByLender:         "Lender",
	models.GroupByRetailer:       "Retailer",
	models.GroupByBDM:            "BDM",
	models.GroupByFinanceProduct: "Finance Product",
	models.GroupByPrimeClass:     "Prime Class",
	models.GroupByStatus:         "Status",
	models.GroupByMonth:          "Month",
	models.GroupByWeek:           "Week",
}

var metricLabels = map[models.Metric]string{
	models.MetricVolume:         "Volume",
	models.MetricLoanValue:      "Loan Value",
	models.MetricCommission:     "Commission",
	models.MetricAverageLoan:    "Average Loan",
	models.MetricApprovedCount:  "Approved",
	models.MetricDeclinedCount:  "Declined",
	models.MetricExecutedCount:  "Executed",
	models.MetricLiveCount:      "Live",
	models.MetricApprovalRate:   "Approval Rate %",
	models.MetricExecutionRate:  "Execution Rate %",
	models.MetricCompletionRate: "Completion Rate %",
}

// allMetrics is the emission order when a config requests no explicit list.
var allMetrics = []models.Metric{
	models.MetricVolume, models.MetricLoanValue, models.MetricCommission,
	models.MetricAverageLoan, models.MetricApprovedCount, models.MetricDeclinedCount,
	models.MetricExecutedCount, models.MetricLiveCount, models.MetricApprovalRate,
	models.MetricExecutionRate, models.MetricCompletionRate,
}

// BuildDataset flattens a generated report into tabular export content. The
// config's metric list selects emitted columns; an empty list emits all.
func BuildDataset(result *ReportResult, config models.ReportConfig) export.Dataset {
	metrics := config.Metrics
	if len(metrics) == 0 {
		metrics = allMetrics
	}

	headers := make([]string, 0, len(config.GroupBy)+len(metrics))
	for _, field := range config.GroupBy {
		headers = append(headers, groupFieldLabels[field])
	}
	for _, metric := range metrics {
		headers = append(headers, metricLabels[metric])
	}

	rows := make([]map[string]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		out := make(map[string]string, len(headers))
		for _, field := range config.GroupBy {
			out[groupFieldLabels[field]] = row.Keys[field]
		}
		for _, metric := range metrics {
			out[metricLabels[metric]] = metricValue(row, metric)
		}
		rows = append(rows, out)
	}

	footer := map[string]string{}
	if len(config.GroupBy) > 0 {
		footer[groupFieldLabels[config.GroupBy[0]]] = "Total"
	}
	for _, metric := range metrics {
		footer[metricLabels[metric]] = summaryValue(result.Summary, metric)
	}

	return export.Dataset{Headers: headers, Rows: rows, Footer: []map[string]string{footer}}
}

func metricValue(row models.GroupedRow, metric models.Metric) string {
	switch metric {
	case models.MetricVolume:
		return strconv.Itoa(row.Volume)
	case models.MetricLoanValue:
		return formatMoney(row.LoanValue)
	case models.MetricCommission:
		return formatMoney(row.Commission)
	case models.MetricAverageLoan:
		return formatMoney(row.AverageLoan)
	case models.MetricApprovedCount:
		return strconv.Itoa(row.ApprovedCount)
	case models.MetricDeclinedCount:
		return strconv.Itoa(row.DeclinedCount)
	case models.MetricExecutedCount:
		return strconv.Itoa(row.ExecutedCount)
	case models.MetricLiveCount:
		return strconv.Itoa(row.LiveCount)
	case models.MetricApprovalRate:
		return formatRate(row.ApprovalRate)
	case models.MetricExecutionRate:
		return formatRate(row.ExecutionRate)
	case models.MetricCompletionRate:
		return formatRate(row.CompletionRate)
	default:
		return ""
	}
}

func summaryValue(summary models.ReportSummary, metric models.Metric) string {
	switch metric {
	case models.MetricVolume:
		return strconv.Itoa(summary.TotalRecords)
	case models.MetricLoanValue:
		return formatMoney(summary.TotalLoanValue)
	case models.MetricCommission:
		return formatMoney(summary.TotalCommission)
	case models.MetricAverageLoan:
		return formatMoney(summary.AverageLoan)
	case models.MetricApprovalRate:
		return formatRate(summary.ApprovalRate)
	case models.MetricExecutionRate:
		return formatRate(summary.ExecutionRate)
	default:
		return ""
	}
}

func formatMoney(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func formatRate(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

// ExportJobStore is the persistence surface the export pipeline needs.
type ExportJobStore interface {
	Create(ctx context.Context, params models.ExportJobParams) (*models.ExportJob, error)
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListProcessing(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

const (
	recoverBatchSize = 50
	cleanupBatchSize = 100
)

// ExportService runs asynchronous report exports: a queued job generates the
// report, renders the file, stores it and records a signed download URL.
type ExportService struct {
	jobRepo ExportJobStore
	reports *ReportService
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	metrics *MetricsService
	logger  *zap.Logger

	queue *jobs.Queue
}

// NewExportService wires the export pipeline and its worker queue.
func NewExportService(
	jobRepo ExportJobStore,
	reports *ReportService,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	metrics *MetricsService,
	logger *zap.Logger,
	workers, retries int,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		jobRepo: jobRepo,
		reports: reports,
		store:   store,
		signer:  signer,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		metrics: metrics,
		logger:  logger,
	}
	s.queue = jobs.NewQueue("exports", s.process, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		Logger:     logger,
	})
	return s
}

// Start begins background workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// RecoverPendingJobs replays jobs stranded by a process restart: queued rows
// are re-enqueued, and rows still marked processing are failed because the
// worker holding them died with the previous process. Call after Start.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	queued, err := s.jobRepo.ListQueued(ctx, recoverBatchSize)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued export jobs", "error", err)
	} else {
		for _, job := range queued {
			if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "export"}); err != nil {
				s.logger.Sugar().Warnw("failed to requeue export job", "job_id", job.ID, "error", err)
			}
		}
	}

	stalled, err := s.jobRepo.ListProcessing(ctx, recoverBatchSize)
	if err != nil {
		s.logger.Sugar().Warnw("failed to list in-flight export jobs", "error", err)
		return
	}
	for _, job := range stalled {
		s.failJob(ctx, job.ID, errors.New("interrupted by restart"))
	}
}

// CreateJob validates the config, persists a queued job and enqueues it.
func (s *ExportService) CreateJob(ctx context.Context, params models.ExportJobParams) (*models.ExportJob, error) {
	if err := ValidateConfig(params.Config); err != nil {
		return nil, err
	}
	switch params.Format {
	case models.ReportFormatCSV, models.ReportFormatPDF:
	default:
		return nil, apperrors.Clone(apperrors.ErrValidation, fmt.Sprintf("unknown export format %q", params.Format))
	}

	job, err := s.jobRepo.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "export"}); err != nil {
		s.failJob(ctx, job.ID, err)
		return nil, fmt.Errorf("enqueue export job: %w", err)
	}
	return job, nil
}

// GetJob returns job state for status polling.
func (s *ExportService) GetJob(ctx context.Context, id string) (*models.ExportJob, error) {
	return s.jobRepo.GetByID(ctx, id)
}

// RenderReport renders a generated report into file bytes for the format,
// returning the bytes and a content type. Shared with scheduled delivery.
func (s *ExportService) RenderReport(result *ReportResult, config models.ReportConfig, format models.ReportFormat, title string) ([]byte, string, error) {
	dataset := BuildDataset(result, config)
	switch format {
	case models.ReportFormatCSV:
		data, err := s.csv.Render(dataset)
		return data, "text/csv", err
	case models.ReportFormatPDF:
		data, err := s.pdf.Render(dataset, title)
		return data, "application/pdf", err
	default:
		return nil, "", fmt.Errorf("unknown export format %q", format)
	}
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	record, err := s.jobRepo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status == models.ExportStatusFinished || record.Status == models.ExportStatusFailed {
		return nil
	}

	processing := models.ExportStatusProcessing
	progress := 10
	if err := s.jobRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	result, err := s.reports.Generate(ctx, record.Params.Config)
	if err != nil {
		s.failJob(ctx, job.ID, err)
		return nil
	}

	data, _, err := s.RenderReport(result, record.Params.Config, record.Params.Format, record.Params.Title)
	if err != nil {
		s.failJob(ctx, job.ID, err)
		return nil
	}

	filename := fmt.Sprintf("%s/%s.%s", time.Now().UTC().Format("2006/01/02"), record.ID, record.Params.Format)
	relPath, err := s.store.Save(filename, data)
	if err != nil {
		s.failJob(ctx, job.ID, err)
		return nil
	}

	token, _, err := s.signer.Generate(record.ID, relPath)
	if err != nil {
		s.failJob(ctx, job.ID, err)
		return nil
	}

	finished := models.ExportStatusFinished
	done := 100
	now := time.Now().UTC()
	resultURL := "/export/" + token
	if err := s.jobRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:     &finished,
		Progress:   &done,
		ResultURL:  &resultURL,
		FinishedAt: &now,
	}); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.CountExportJob(string(finished))
	}
	s.logger.Sugar().Infow("export job finished", "job_id", record.ID, "format", record.Params.Format, "bytes", len(data))
	return nil
}

func (s *ExportService) failJob(ctx context.Context, id string, cause error) {
	failed := models.ExportStatusFailed
	now := time.Now().UTC()
	message := cause.Error()
	if err := s.jobRepo.Update(ctx, id, repository.UpdateExportJobParams{
		Status:       &failed,
		FinishedAt:   &now,
		ErrorMessage: &message,
	}); err != nil {
		s.logger.Sugar().Errorw("failed to mark export job failed", "job_id", id, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.CountExportJob(string(failed))
	}
	s.logger.Sugar().Warnw("export job failed", "job_id", id, "error", cause)
}

// ResolveDownload validates a signed token and opens the referenced file.
func (s *ExportService) ResolveDownload(token string) (*models.ExportJob, []byte, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, err
	}
	job, err := s.jobRepo.GetByID(context.Background(), jobID)
	if err != nil {
		return nil, nil, err
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, err
	}
	return job, data, nil
}

// StartCleanup launches a loop that removes stored files past their TTL.
func (s *ExportService) StartCleanup(ctx context.Context, interval, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx, ttl)
			}
		}
	}()
}

// cleanupExpired walks terminal jobs past the TTL, deletes their stored files
// and clears result_url so the row is not revisited. A filesystem sweep at the
// end catches files no job row references anymore.
func (s *ExportService) cleanupExpired(ctx context.Context, ttl time.Duration) {
	cutoff := time.Now().UTC().Add(-ttl)
	for {
		expired, err := s.jobRepo.ListFinishedBefore(ctx, cutoff, cleanupBatchSize)
		if err != nil {
			s.logger.Sugar().Warnw("cleanup list failed", "error", err)
			return
		}
		for _, job := range expired {
			if job.ResultURL == nil {
				continue
			}
			token := strings.TrimPrefix(*job.ResultURL, "/export/")
			_, relPath, _, err := s.signer.Parse(token, true)
			if err != nil {
				s.logger.Sugar().Warnw("cleanup token parse failed", "job_id", job.ID, "error", err)
				continue
			}
			if err := s.store.Delete(relPath); err != nil {
				s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
			}
			if err := s.jobRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{ClearResultURL: true}); err != nil {
				s.logger.Sugar().Warnw("cleanup row update failed", "job_id", job.ID, "error", err)
			}
		}
		if len(expired) < cleanupBatchSize {
			break
		}
	}
	if _, err := s.store.CleanupOlderThan(ttl); err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	}
}
