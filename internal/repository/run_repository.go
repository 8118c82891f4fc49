package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/finlink/reports-api/internal/models"
)

const runColumns = `id, schedule_id, status, record_count, summary, error_message,
email_sent, started_at, completed_at`

// RunRepository persists scheduled report run history.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository constructs the repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run in running state and returns it.
func (r *RunRepository) Create(ctx context.Context, scheduleID string) (*models.ScheduledReportRun, error) {
	run := &models.ScheduledReportRun{
		ID:         uuid.NewString(),
		ScheduleID: scheduleID,
		Status:     models.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	query := fmt.Sprintf(`INSERT INTO scheduled_report_runs (%s)
VALUES (:id, :schedule_id, :status, :record_count, :summary, :error_message,
:email_sent, :started_at, :completed_at)`, runColumns)

	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// SealRunParams carries the terminal outcome of a run.
type SealRunParams struct {
	Status       models.RunStatus
	RecordCount  *int
	Summary      *models.ReportSummary
	ErrorMessage *string
	EmailSent    bool
}

// Seal writes the terminal state of a run exactly once. Rows already sealed
// are left untouched by the status guard.
func (r *RunRepository) Seal(ctx context.Context, runID string, params SealRunParams) error {
	_, err := r.db.ExecContext(ctx, `UPDATE scheduled_report_runs
SET status = $1, record_count = $2, summary = $3, error_message = $4,
email_sent = $5, completed_at = $6
WHERE id = $7 AND status = $8`,
		params.Status, params.RecordCount, params.Summary, params.ErrorMessage,
		params.EmailSent, time.Now().UTC(), runID, models.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("seal run: %w", err)
	}
	return nil
}

// ListBySchedule returns the most recent runs for a schedule.
func (r *RunRepository) ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]models.ScheduledReportRun, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM scheduled_report_runs
WHERE schedule_id = $1 ORDER BY started_at DESC LIMIT $2`, runColumns)

	runs := []models.ScheduledReportRun{}
	if err := r.db.SelectContext(ctx, &runs, query, scheduleID, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
