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

const exportJobColumns = `id, params, status, progress, result_url, created_at, finished_at, error_message`

// ExportJobRepository persists asynchronous export jobs.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository constructs the repository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create inserts a queued export job and returns it.
func (r *ExportJobRepository) Create(ctx context.Context, params models.ExportJobParams) (*models.ExportJob, error) {
	job := &models.ExportJob{
		ID:        uuid.NewString(),
		Params:    params,
		Status:    models.ExportStatusQueued,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}

	query := fmt.Sprintf(`INSERT INTO export_jobs (%s)
VALUES (:id, :params, :status, :progress, :result_url, :created_at, :finished_at, :error_message)`,
		exportJobColumns)

	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return nil, fmt.Errorf("insert export job: %w", err)
	}
	return job, nil
}

// GetByID returns a single export job or ErrNotFound.
func (r *ExportJobRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	query := fmt.Sprintf("SELECT %s FROM export_jobs WHERE id = $1", exportJobColumns)

	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "export job not found")
		}
		return nil, fmt.Errorf("get export job: %w", err)
	}
	return &job, nil
}

// UpdateExportJobParams is a partial update of job progress fields.
type UpdateExportJobParams struct {
	Status         *models.ExportStatus
	Progress       *int
	ResultURL      *string
	ClearResultURL bool
	FinishedAt     *time.Time
	ErrorMessage   *string
}

// Update applies a partial update to a job row.
func (r *ExportJobRepository) Update(ctx context.Context, id string, params UpdateExportJobParams) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Progress != nil {
		add("progress", *params.Progress)
	}
	if params.ResultURL != nil {
		add("result_url", *params.ResultURL)
	} else if params.ClearResultURL {
		sets = append(sets, "result_url = NULL")
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE export_jobs SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.Clone(apperrors.ErrNotFound, "export job not found")
	}
	return nil
}

// ListQueued fetches queued jobs, oldest first. Used for cold start recovery.
func (r *ExportJobRepository) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM export_jobs
WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, exportJobColumns)

	jobs := []models.ExportJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, models.ExportStatusQueued, limit); err != nil {
		return nil, fmt.Errorf("list queued export jobs: %w", err)
	}
	return jobs, nil
}

// ListProcessing fetches jobs still marked in-flight. After a restart these
// have no worker anymore and get failed by recovery.
func (r *ExportJobRepository) ListProcessing(ctx context.Context, limit int) ([]models.ExportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM export_jobs
WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, exportJobColumns)

	jobs := []models.ExportJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, models.ExportStatusProcessing, limit); err != nil {
		return nil, fmt.Errorf("list processing export jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore returns terminal jobs older than the cutoff that still
// reference a stored file, used by the cleanup loop to drop stale results.
func (r *ExportJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM export_jobs
WHERE status IN ($1, $2) AND finished_at IS NOT NULL AND finished_at < $3 AND result_url IS NOT NULL
ORDER BY finished_at ASC LIMIT $4`, exportJobColumns)

	jobs := []models.ExportJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, models.ExportStatusFinished, models.ExportStatusFailed, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished export jobs: %w", err)
	}
	return jobs, nil
}
