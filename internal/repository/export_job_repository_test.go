package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlink/reports-api/internal/models"
)

func exportJobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "params", "status", "progress", "result_url", "created_at", "finished_at", "error_message",
	})
}

func TestExportJobRepositoryListQueued(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExportJobRepository(db)

	created := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	rows := exportJobRows().
		AddRow("job-1", []byte(`{"config":{"type":"ad"},"format":"csv"}`), "QUEUED", 0, nil, created, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs(models.ExportStatusQueued, 50).
		WillReturnRows(rows)

	jobs, err := repo.ListQueued(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.Equal(t, models.ExportStatusQueued, jobs[0].Status)
	assert.Equal(t, models.ReportFormatCSV, jobs[0].Params.Format)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositoryListProcessing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExportJobRepository(db)

	created := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	rows := exportJobRows().
		AddRow("job-2", []byte(`{"config":{"type":"ap"},"format":"pdf"}`), "PROCESSING", 10, nil, created, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs(models.ExportStatusProcessing, 50).
		WillReturnRows(rows)

	jobs, err := repo.ListProcessing(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ExportStatusProcessing, jobs[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositoryListFinishedBefore(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExportJobRepository(db)

	cutoff := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	finished := cutoff.Add(-time.Hour)
	resultURL := "/export/token"
	rows := exportJobRows().
		AddRow("job-3", []byte(`{"config":{"type":"ad"},"format":"csv"}`), "FINISHED", 100, resultURL, finished.Add(-time.Minute), finished, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs(models.ExportStatusFinished, models.ExportStatusFailed, cutoff, 100).
		WillReturnRows(rows)

	jobs, err := repo.ListFinishedBefore(context.Background(), cutoff, 100)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].ResultURL)
	assert.Equal(t, resultURL, *jobs[0].ResultURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositoryUpdateClearsResultURL(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExportJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET result_url = NULL WHERE id = $1")).
		WithArgs("job-4").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-4", UpdateExportJobParams{ClearResultURL: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
