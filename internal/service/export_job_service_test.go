package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/internal/repository"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
	"github.com/classtrack/classtrack-api/pkg/jobs"
)

type fakeExportJobStore struct {
	jobs    map[string]*models.ExportJob
	updates []repository.UpdateExportJobParams
	deleted []string
}

func newFakeExportJobStore() *fakeExportJobStore {
	return &fakeExportJobStore{jobs: map[string]*models.ExportJob{}}
}

func (f *fakeExportJobStore) Create(_ context.Context, job *models.ExportJob) (*models.ExportJob, error) {
	stored := *job
	stored.CreatedAt = time.Now()
	f.jobs[job.ID] = &stored
	return &stored, nil
}

func (f *fakeExportJobStore) GetByID(_ context.Context, id string) (*models.ExportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (f *fakeExportJobStore) Update(_ context.Context, id string, params repository.UpdateExportJobParams) (*models.ExportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	f.updates = append(f.updates, params)
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return job, nil
}

func (f *fakeExportJobStore) ListByStatus(_ context.Context, statuses ...models.ExportStatus) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range f.jobs {
		for _, status := range statuses {
			if job.Status == status {
				out = append(out, *job)
			}
		}
	}
	return out, nil
}

func (f *fakeExportJobStore) ListFinishedBefore(_ context.Context, cutoff time.Time) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range f.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeExportJobStore) Delete(_ context.Context, id string) error {
	delete(f.jobs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (f *fakeDispatcher) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, job)
	return nil
}

type fakeGenerator struct {
	result *ExportResult
	err    error
}

func (f *fakeGenerator) Generate(context.Context, *models.ExportJob) (*ExportResult, error) {
	return f.result, f.err
}

func TestCreateJobQueuesAndPersists(t *testing.T) {
	store := newFakeExportJobStore()
	dispatcher := &fakeDispatcher{}
	svc := NewExportJobService(store, dispatcher, nil, nil, ExportJobConfig{})

	job, err := svc.CreateJob(context.Background(), CreateExportJobRequest{
		Type:      string(models.ExportTypeAttendanceGrid),
		ClassID:   3,
		StartDate: "2026-02-01",
		EndDate:   "2026-02-28",
		Format:    string(models.ExportFormatPDF),
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	assert.Equal(t, "user-1", job.CreatedBy)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, job.ID, dispatcher.enqueued[0].ID)
}

func TestCreateJobRejectsMissingTarget(t *testing.T) {
	svc := NewExportJobService(newFakeExportJobStore(), &fakeDispatcher{}, nil, nil, ExportJobConfig{})

	_, err := svc.CreateJob(context.Background(), CreateExportJobRequest{
		Type:   string(models.ExportTypeMonthlyReport),
		Format: string(models.ExportFormatCSV),
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateJobMarksFailedWhenEnqueueFails(t *testing.T) {
	store := newFakeExportJobStore()
	dispatcher := &fakeDispatcher{err: errors.New("queue full")}
	svc := NewExportJobService(store, dispatcher, nil, nil, ExportJobConfig{})

	_, err := svc.CreateJob(context.Background(), CreateExportJobRequest{
		Type:    string(models.ExportTypeAttendanceGrid),
		ClassID: 3,
		Format:  string(models.ExportFormatCSV),
	}, "user-1")
	require.Error(t, err)
	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestGetStatusEnforcesTeacherOwnership(t *testing.T) {
	store := newFakeExportJobStore()
	store.jobs["job-1"] = &models.ExportJob{ID: "job-1", CreatedBy: "owner"}
	svc := NewExportJobService(store, &fakeDispatcher{}, nil, nil, ExportJobConfig{})

	_, err := svc.GetStatus(context.Background(), "job-1", "someone-else", models.RoleTeacher)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	job, err := svc.GetStatus(context.Background(), "job-1", "someone-else", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
}

func TestWorkerMarksJobFinished(t *testing.T) {
	store := newFakeExportJobStore()
	store.jobs["job-1"] = &models.ExportJob{ID: "job-1", Type: models.ExportTypeAttendanceGrid, Status: models.ExportStatusQueued}
	worker := NewExportWorker(store, &fakeGenerator{result: &ExportResult{
		Key: "attendance_grid_job-1.pdf",
		URL: "/api/v1/exports/download/token",
	}}, nil, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.NoError(t, err)

	job := store.jobs["job-1"]
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/exports/download/token", *job.ResultURL)
	require.NotNil(t, job.FinishedAt)
}

func TestWorkerRequeuesBeforeMaxRetries(t *testing.T) {
	store := newFakeExportJobStore()
	store.jobs["job-1"] = &models.ExportJob{ID: "job-1", Type: models.ExportTypeAttendanceGrid, Status: models.ExportStatusQueued}
	worker := NewExportWorker(store, &fakeGenerator{err: errors.New("render failed")}, nil, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusQueued, store.jobs["job-1"].Status)
	assert.Nil(t, store.jobs["job-1"].FinishedAt)
}

func TestWorkerFailsAfterMaxRetries(t *testing.T) {
	store := newFakeExportJobStore()
	store.jobs["job-1"] = &models.ExportJob{ID: "job-1", Type: models.ExportTypeAttendanceGrid, Status: models.ExportStatusQueued}
	worker := NewExportWorker(store, &fakeGenerator{err: errors.New("render failed")}, nil, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 3})
	require.Error(t, err)

	job := store.jobs["job-1"]
	assert.Equal(t, models.ExportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "render failed", *job.ErrorMessage)
	require.NotNil(t, job.FinishedAt)
}

func TestRecoverPendingJobsRequeues(t *testing.T) {
	store := newFakeExportJobStore()
	store.jobs["queued"] = &models.ExportJob{ID: "queued", Status: models.ExportStatusQueued}
	store.jobs["stuck"] = &models.ExportJob{ID: "stuck", Status: models.ExportStatusProcessing}
	store.jobs["done"] = &models.ExportJob{ID: "done", Status: models.ExportStatusFinished}
	dispatcher := &fakeDispatcher{}
	svc := NewExportJobService(store, dispatcher, nil, nil, ExportJobConfig{})

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, dispatcher.enqueued, 2)
	ids := []string{dispatcher.enqueued[0].ID, dispatcher.enqueued[1].ID}
	assert.ElementsMatch(t, []string{"queued", "stuck"}, ids)
}

func TestCleanupPurgesExpiredJobs(t *testing.T) {
	exporter := newTestExportService(t)
	job := &models.ExportJob{
		ID:     "job-1",
		Type:   models.ExportTypeMonthlyReport,
		Params: models.ExportJobParams{ReportID: 10, Format: models.ExportFormatCSV},
	}
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)

	store := newFakeExportJobStore()
	finished := time.Now().Add(-48 * time.Hour)
	store.jobs["job-1"] = &models.ExportJob{
		ID:         "job-1",
		Status:     models.ExportStatusFinished,
		ResultURL:  &result.URL,
		FinishedAt: &finished,
	}
	svc := NewExportJobService(store, &fakeDispatcher{}, exporter, nil, ExportJobConfig{ResultTTL: 24 * time.Hour})

	svc.cleanupExpired(context.Background())
	assert.Empty(t, store.jobs)
	assert.Contains(t, store.deleted, "job-1")
	_, err = exporter.Open(result.Key)
	assert.Error(t, err)
}
