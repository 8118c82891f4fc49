package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/finlink/reports-api/internal/models"
	apperrors "github.com/finlink/reports-api/pkg/errors"
)

const scheduleColumns = `id, name, config, schedule_type, schedule_day, schedule_time,
recipients, is_active, last_run_at, next_run_at, created_at, updated_at`

// ScheduleRepository persists scheduled report definitions.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create inserts a new scheduled report and returns it with generated fields.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.ScheduledReport) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO scheduled_reports (%s)
VALUES (:id, :name, :config, :schedule_type, :schedule_day, :schedule_time,
:recipients, :is_active, :last_run_at, :next_run_at, :created_at, :updated_at)`, scheduleColumns)

	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("insert scheduled report: %w", err)
	}
	return nil
}

// GetByID returns a single schedule or ErrNotFound.
func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.ScheduledReport, error) {
	query := fmt.Sprintf("SELECT %s FROM scheduled_reports WHERE id = $1", scheduleColumns)

	var schedule models.ScheduledReport
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "scheduled report not found")
		}
		return nil, fmt.Errorf("get scheduled report: %w", err)
	}
	return &schedule, nil
}

// List returns schedules ordered by creation time, optionally restricted to
// active ones, with the total count for pagination.
func (r *ScheduleRepository) List(ctx context.Context, activeOnly bool, page, pageSize int) ([]models.ScheduledReport, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	where := ""
	if activeOnly {
		where = " WHERE is_active = TRUE"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM scheduled_reports"+where); err != nil {
		return nil, 0, fmt.Errorf("count scheduled reports: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM scheduled_reports%s ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		scheduleColumns, where)

	schedules := []models.ScheduledReport{}
	if err := r.db.SelectContext(ctx, &schedules, query, pageSize, (page-1)*pageSize); err != nil {
		return nil, 0, fmt.Errorf("list scheduled reports: %w", err)
	}
	return schedules, total, nil
}

// UpdateScheduleParams carries the optional fields of a partial update. Nil
// means "leave unchanged".
type UpdateScheduleParams struct {
	Name         *string
	Config       *models.ReportConfig
	ScheduleType *models.ScheduleType
	ScheduleDay  *int
	ClearDay     bool
	ScheduleTime *string
	Recipients   *models.Recipients
	IsActive     *bool
	NextRunAt    *time.Time
}

// Update applies a partial update and returns the refreshed row.
func (r *ScheduleRepository) Update(ctx context.Context, id string, params UpdateScheduleParams) (*models.ScheduledReport, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	idx := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}

	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.Config != nil {
		add("config", *params.Config)
	}
	if params.ScheduleType != nil {
		add("schedule_type", *params.ScheduleType)
	}
	if params.ScheduleDay != nil {
		add("schedule_day", *params.ScheduleDay)
	} else if params.ClearDay {
		sets = append(sets, "schedule_day = NULL")
	}
	if params.ScheduleTime != nil {
		add("schedule_time", *params.ScheduleTime)
	}
	if params.Recipients != nil {
		add("recipients", *params.Recipients)
	}
	if params.IsActive != nil {
		add("is_active", *params.IsActive)
	}
	if params.NextRunAt != nil {
		add("next_run_at", *params.NextRunAt)
	}

	query := fmt.Sprintf("UPDATE scheduled_reports SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update scheduled report: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, apperrors.Clone(apperrors.ErrNotFound, "scheduled report not found")
	}
	return r.GetByID(ctx, id)
}

// Delete removes a schedule and its run history.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scheduled_reports WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete scheduled report: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.Clone(apperrors.ErrNotFound, "scheduled report not found")
	}
	return nil
}

// FindDue returns active schedules whose next run time has arrived.
func (r *ScheduleRepository) FindDue(ctx context.Context, now time.Time) ([]models.ScheduledReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM scheduled_reports
WHERE is_active = TRUE AND next_run_at IS NOT NULL AND next_run_at <= $1
ORDER BY next_run_at ASC`, scheduleColumns)

	schedules := []models.ScheduledReport{}
	if err := r.db.SelectContext(ctx, &schedules, query, now); err != nil {
		return nil, fmt.Errorf("find due schedules: %w", err)
	}
	return schedules, nil
}

// Claim advances a due schedule to its next occurrence in a single conditional
// update. The next_run_at guard makes the claim atomic: overlapping ticks race
// on the same row, exactly one sees rows-affected 1 and executes the schedule,
// the rest skip it. Because rescheduling happens at claim time it holds
// regardless of whether the run later succeeds.
func (r *ScheduleRepository) Claim(ctx context.Context, id string, now, nextRun time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE scheduled_reports
SET last_run_at = $1, next_run_at = $2, updated_at = NOW()
WHERE id = $3 AND is_active = TRUE AND next_run_at IS NOT NULL AND next_run_at <= $1`,
		now, nextRun, id)
	if err != nil {
		return false, fmt.Errorf("claim schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim schedule rows: %w", err)
	}
	return affected == 1, nil
}
