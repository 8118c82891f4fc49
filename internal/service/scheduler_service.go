package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/finlink/reports-api/internal/models"
	"github.com/finlink/reports-api/internal/repository"
	"github.com/finlink/reports-api/pkg/mailer"
)

// ScheduleStore is the schedule persistence surface the runner needs.
type ScheduleStore interface {
	FindDue(ctx context.Context, now time.Time) ([]models.ScheduledReport, error)
	Claim(ctx context.Context, id string, now, nextRun time.Time) (bool, error)
}

// RunStore records run lifecycle transitions.
type RunStore interface {
	Create(ctx context.Context, scheduleID string) (*models.ScheduledReportRun, error)
	Seal(ctx context.Context, runID string, params repository.SealRunParams) error
}

// ReportGenerator produces a report from a stored config.
type ReportGenerator interface {
	Generate(ctx context.Context, config models.ReportConfig) (*ReportResult, error)
}

// ReportRenderer turns a generated report into file bytes.
type ReportRenderer interface {
	RenderReport(result *ReportResult, config models.ReportConfig, format models.ReportFormat, title string) ([]byte, string, error)
}

// MailSender delivers a rendered report to recipients.
type MailSender interface {
	Send(ctx context.Context, recipients []string, subject, bodyHTML string, attachment *mailer.Attachment) error
}

// TickResult aggregates one sweep's outcome counts.
type TickResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// SchedulerService sweeps due schedules once per external trigger tick. Each
// due schedule executes concurrently and in isolation: one schedule's failure
// never aborts or delays another's execution or reschedule.
type SchedulerService struct {
	schedules ScheduleStore
	runs      RunStore
	reports   ReportGenerator
	renderer  ReportRenderer
	mail      MailSender
	metrics   *MetricsService
	logger    *zap.Logger

	concurrency int
	mailTimeout time.Duration
}

// NewSchedulerService constructs the runner. A nil MailSender disables
// delivery; runs then complete with email_sent false.
func NewSchedulerService(
	schedules ScheduleStore,
	runs RunStore,
	reports ReportGenerator,
	renderer ReportRenderer,
	mail MailSender,
	metrics *MetricsService,
	logger *zap.Logger,
	concurrency int,
	mailTimeout time.Duration,
) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 4
	}
	if mailTimeout <= 0 {
		mailTimeout = 30 * time.Second
	}
	return &SchedulerService{
		schedules:   schedules,
		runs:        runs,
		reports:     reports,
		renderer:    renderer,
		mail:        mail,
		metrics:     metrics,
		logger:      logger,
		concurrency: concurrency,
		mailTimeout: mailTimeout,
	}
}

// RunTick executes every currently-due schedule and returns outcome counts.
//
// Each schedule is claimed before execution with a conditional update keyed
// on next_run_at; a schedule another tick already claimed is skipped. The
// claim also writes the new next_run_at, so rescheduling is unconditional:
// a failing schedule gets exactly one attempt per recurrence interval.
func (s *SchedulerService) RunTick(ctx context.Context, now time.Time) (*TickResult, error) {
	due, err := s.schedules.FindDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("find due schedules: %w", err)
	}

	result := &TickResult{}
	if len(due) == 0 {
		return result, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)

	for i := range due {
		schedule := due[i]

		next, err := NextRun(&schedule, now)
		if err != nil {
			s.logger.Sugar().Errorw("cannot compute next run, skipping schedule",
				"schedule_id", schedule.ID, "error", err)
			mu.Lock()
			result.Processed++
			result.Failed++
			mu.Unlock()
			continue
		}

		claimed, err := s.schedules.Claim(ctx, schedule.ID, now, next)
		if err != nil {
			s.logger.Sugar().Errorw("claim failed", "schedule_id", schedule.ID, "error", err)
			mu.Lock()
			result.Processed++
			result.Failed++
			mu.Unlock()
			continue
		}
		if !claimed {
			// Another tick got there first.
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(schedule models.ScheduledReport) {
			defer wg.Done()
			defer func() { <-sem }()

			ok := s.execute(ctx, schedule)

			mu.Lock()
			result.Processed++
			if ok {
				result.Succeeded++
			} else {
				result.Failed++
			}
			mu.Unlock()
		}(schedule)
	}

	wg.Wait()
	s.logger.Sugar().Infow("scheduler tick complete",
		"processed", result.Processed, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

// execute runs one claimed schedule end to end and reports success.
func (s *SchedulerService) execute(ctx context.Context, schedule models.ScheduledReport) (succeeded bool) {
	run, err := s.runs.Create(ctx, schedule.ID)
	if err != nil {
		s.logger.Sugar().Errorw("cannot create run record", "schedule_id", schedule.ID, "error", err)
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("panic: %v", r)
			s.sealFailed(ctx, run.ID, message)
			s.logger.Sugar().Errorw("schedule execution panicked", "schedule_id", schedule.ID, "panic", r)
			succeeded = false
		}
	}()

	result, err := s.reports.Generate(ctx, schedule.Config)
	if err != nil {
		s.sealFailed(ctx, run.ID, err.Error())
		s.logger.Sugar().Warnw("scheduled generation failed",
			"schedule_id", schedule.ID, "run_id", run.ID, "error", err)
		return false
	}

	emailSent := s.deliver(ctx, schedule, result)

	count := result.Summary.TotalRecords
	summary := result.Summary
	if err := s.runs.Seal(ctx, run.ID, repository.SealRunParams{
		Status:      models.RunStatusSuccess,
		RecordCount: &count,
		Summary:     &summary,
		EmailSent:   emailSent,
	}); err != nil {
		s.logger.Sugar().Errorw("cannot seal run", "run_id", run.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.CountScheduledRun(string(models.RunStatusSuccess))
	}
	return true
}

// deliver renders and emails the report. Delivery failure is logged and
// surfaces only as email_sent false on the run; it never fails the run.
func (s *SchedulerService) deliver(ctx context.Context, schedule models.ScheduledReport, result *ReportResult) bool {
	if s.mail == nil || len(schedule.Recipients) == 0 {
		return false
	}

	data, contentType, err := s.renderer.RenderReport(result, schedule.Config, models.ReportFormatCSV, schedule.Name)
	if err != nil {
		s.logger.Sugar().Warnw("report render for delivery failed", "schedule_id", schedule.ID, "error", err)
		s.countEmail("render_failed")
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()

	subject := fmt.Sprintf("%s - %s", schedule.Name, time.Now().UTC().Format("2 Jan 2006"))
	body := fmt.Sprintf("<p>Your scheduled report <strong>%s</strong> is attached.</p><p>Records: %d</p>",
		schedule.Name, result.Summary.TotalRecords)
	attachment := &mailer.Attachment{
		Filename:    fmt.Sprintf("%s.csv", schedule.ID),
		ContentType: contentType,
		Data:        data,
	}

	if err := s.mail.Send(sendCtx, schedule.Recipients, subject, body, attachment); err != nil {
		s.logger.Sugar().Warnw("report delivery failed",
			"schedule_id", schedule.ID, "recipients", len(schedule.Recipients), "error", err)
		s.countEmail("failed")
		return false
	}
	s.countEmail("sent")
	return true
}

func (s *SchedulerService) sealFailed(ctx context.Context, runID, message string) {
	if err := s.runs.Seal(ctx, runID, repository.SealRunParams{
		Status:       models.RunStatusFailed,
		ErrorMessage: &message,
	}); err != nil {
		s.logger.Sugar().Errorw("cannot seal failed run", "run_id", runID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.CountScheduledRun(string(models.RunStatusFailed))
	}
}

func (s *SchedulerService) countEmail(outcome string) {
	if s.metrics != nil {
		s.metrics.CountEmail(outcome)
	}
}
