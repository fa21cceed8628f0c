package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/classtrack/classtrack-api/internal/models"
)

// ExportJobRepository persists asynchronous export jobs.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository constructs the repository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

const exportJobColumns = "id, type, params, status, progress, result_url, error_message, created_by, created_at, finished_at"

// UpdateExportJobParams carries partial updates applied by the worker.
type UpdateExportJobParams struct {
	Status       *models.ExportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Create inserts a queued job row.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) (*models.ExportJob, error) {
	query := fmt.Sprintf(`INSERT INTO export_jobs (id, type, params, status, progress, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING %s`, exportJobColumns)
	var stored models.ExportJob
	err := r.db.GetContext(ctx, &stored, query,
		job.ID, job.Type, job.Params, job.Status, job.Progress, job.CreatedBy, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert export job: %w", err)
	}
	return &stored, nil
}

// GetByID fetches one job.
func (r *ExportJobRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	query := fmt.Sprintf("SELECT %s FROM export_jobs WHERE id = $1", exportJobColumns)
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// Update applies the non-nil fields of params to the job row.
func (r *ExportJobRepository) Update(ctx context.Context, id string, params UpdateExportJobParams) (*models.ExportJob, error) {
	sets := []string{}
	args := []interface{}{}
	next := func() int { return len(args) + 1 }

	if params.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", next()))
		args = append(args, *params.Status)
	}
	if params.Progress != nil {
		sets = append(sets, fmt.Sprintf("progress = $%d", next()))
		args = append(args, *params.Progress)
	}
	if params.ResultURL != nil {
		sets = append(sets, fmt.Sprintf("result_url = $%d", next()))
		args = append(args, *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		sets = append(sets, fmt.Sprintf("error_message = $%d", next()))
		args = append(args, *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		sets = append(sets, fmt.Sprintf("finished_at = $%d", next()))
		args = append(args, *params.FinishedAt)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE export_jobs SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), exportJobColumns)
	var stored models.ExportJob
	if err := r.db.GetContext(ctx, &stored, query, args...); err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListByStatus returns jobs in the given state, oldest first, so pending work
// can be requeued in submission order after a restart.
func (r *ExportJobRepository) ListByStatus(ctx context.Context, statuses ...models.ExportStatus) ([]models.ExportJob, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, 0, len(statuses))
	args := make([]interface{}, 0, len(statuses))
	for i, status := range statuses {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, status)
	}
	query := fmt.Sprintf("SELECT %s FROM export_jobs WHERE status IN (%s) ORDER BY created_at",
		exportJobColumns, strings.Join(placeholders, ", "))
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore returns finished jobs whose artifacts are old enough to
// purge from blob storage.
func (r *ExportJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ExportJob, error) {
	query := fmt.Sprintf("SELECT %s FROM export_jobs WHERE status = $1 AND finished_at IS NOT NULL AND finished_at < $2",
		exportJobColumns)
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, models.ExportStatusFinished, cutoff); err != nil {
		return nil, fmt.Errorf("list finished export jobs: %w", err)
	}
	return jobs, nil
}

// Delete removes the job row.
func (r *ExportJobRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM export_jobs WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete export job: %w", err)
	}
	return nil
}
