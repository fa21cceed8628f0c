package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	records  []models.AttendanceRecord
	distinct []string
	upserted []models.AttendanceRecord
	listErr  error
}

func (f *fakeAttendanceRepo) ListByClass(context.Context, int64, string, string) ([]models.AttendanceRecord, error) {
	return f.records, f.listErr
}

func (f *fakeAttendanceRepo) DistinctDates(context.Context, int64, string, string) ([]string, error) {
	return f.distinct, nil
}

func (f *fakeAttendanceRepo) List(context.Context, models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return f.records, len(f.records), nil
}

func (f *fakeAttendanceRepo) Upsert(_ context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	f.upserted = append(f.upserted, *record)
	stored := *record
	stored.ID = int64(len(f.upserted))
	return &stored, nil
}

func (f *fakeAttendanceRepo) BulkUpsert(_ context.Context, records []models.AttendanceRecord) ([]models.AttendanceRecord, error) {
	f.upserted = append(f.upserted, records...)
	return records, nil
}

func (f *fakeAttendanceRepo) Delete(context.Context, int64) error {
	return nil
}

type fakeClassRepo struct {
	class *models.Class
	err   error
}

func (f *fakeClassRepo) GetByID(context.Context, int64) (*models.Class, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.class, nil
}

type fakeStudentRepo struct {
	students []models.Student
}

func (f *fakeStudentRepo) ListActiveByClass(context.Context, int64) ([]models.Student, error) {
	return f.students, nil
}

func newMatrixService(repo *fakeAttendanceRepo, students []models.Student) *AttendanceService {
	return NewAttendanceService(
		repo,
		&fakeClassRepo{class: &models.Class{ID: 3, Name: "Koala", Active: true}},
		&fakeStudentRepo{students: students},
		nil, nil,
	)
}

func TestMatrixFillsFullDateAxis(t *testing.T) {
	repo := &fakeAttendanceRepo{records: []models.AttendanceRecord{
		{ID: 1, StudentID: 7, ClassID: 3, Date: "2026-02-01", Status: models.AttendanceStatusPresent},
		{ID: 2, StudentID: 7, ClassID: 3, Date: "2026-02-05", Status: models.AttendanceStatusAbsent},
	}}
	svc := newMatrixService(repo, []models.Student{{ID: 7, FullName: "Mina", Type: models.StudentTypeRegular}})

	matrix, err := svc.Matrix(context.Background(), 3, "2026-02-01", "2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-01", "2026-02-02", "2026-02-03", "2026-02-04", "2026-02-05"}, matrix.Dates)
	assert.Len(t, matrix.Marks, 2)
	assert.Equal(t, models.AttendanceStatusPresent, matrix.Marks["7-2026-02-01"])
	_, hasGap := matrix.Marks["7-2026-02-03"]
	assert.False(t, hasGap)
}

func TestMatrixNormalisesLegacyDateKeys(t *testing.T) {
	repo := &fakeAttendanceRepo{records: []models.AttendanceRecord{
		{ID: 1, StudentID: 7, ClassID: 3, Date: "02/07/2026", Status: models.AttendanceStatusLate},
	}}
	svc := newMatrixService(repo, []models.Student{{ID: 7, FullName: "Mina"}})

	matrix, err := svc.Matrix(context.Background(), 3, "2026-02-01", "2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusLate, matrix.Marks["7-2026-02-07"])
}

func TestMatrixSkipsUnreadableDates(t *testing.T) {
	repo := &fakeAttendanceRepo{records: []models.AttendanceRecord{
		{ID: 1, StudentID: 7, ClassID: 3, Date: "not-a-date", Status: models.AttendanceStatusPresent},
		{ID: 2, StudentID: 7, ClassID: 3, Date: "2026-02-02", Status: models.AttendanceStatusPresent},
	}}
	svc := newMatrixService(repo, []models.Student{{ID: 7, FullName: "Mina"}})

	matrix, err := svc.Matrix(context.Background(), 3, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-02"}, matrix.Dates)
	assert.Len(t, matrix.Marks, 1)
}

func TestMatrixUnknownClass(t *testing.T) {
	svc := NewAttendanceService(
		&fakeAttendanceRepo{},
		&fakeClassRepo{err: sql.ErrNoRows},
		&fakeStudentRepo{},
		nil, nil,
	)
	_, err := svc.Matrix(context.Background(), 99, "", "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestMatrixRejectsBadBound(t *testing.T) {
	svc := newMatrixService(&fakeAttendanceRepo{}, nil)
	_, err := svc.Matrix(context.Background(), 3, "13/40/2026", "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestMarkNormalisesDateBeforeStore(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	svc := newMatrixService(repo, nil)

	stored, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID: 7, ClassID: 3, Date: "02/07/2026", Status: "O",
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-07", stored.Date)
	require.Len(t, repo.upserted, 1)
	assert.Equal(t, "2026-02-07", repo.upserted[0].Date)
}

func TestBulkMarkRejectsDuplicateStudents(t *testing.T) {
	svc := newMatrixService(&fakeAttendanceRepo{}, nil)
	_, err := svc.BulkMark(context.Background(), BulkMarkAttendanceRequest{
		ClassID: 3, Date: "2026-02-01",
		Items: []BulkMarkItem{
			{StudentID: 7, Status: "O"},
			{StudentID: 7, Status: "X"},
		},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestScheduleDatesDedupAcrossFormats(t *testing.T) {
	repo := &fakeAttendanceRepo{distinct: []string{"2026-02-07", "02/07/2026", "2026-02-01"}}
	svc := newMatrixService(repo, nil)

	out, err := svc.ScheduleDates(context.Background(), 3, "2026-02-01", "2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-01", "2026-02-07"}, out)
}

func TestStudentSummariesRates(t *testing.T) {
	repo := &fakeAttendanceRepo{records: []models.AttendanceRecord{
		{StudentID: 7, ClassID: 3, Date: "2026-02-01", Status: models.AttendanceStatusPresent},
		{StudentID: 7, ClassID: 3, Date: "2026-02-02", Status: models.AttendanceStatusPresent},
		{StudentID: 7, ClassID: 3, Date: "2026-02-03", Status: models.AttendanceStatusLate},
	}}
	svc := newMatrixService(repo, []models.Student{
		{ID: 7, FullName: "Mina"},
		{ID: 8, FullName: "Taro"},
	})

	summaries, err := svc.StudentSummaries(context.Background(), 3, "2026-02-01", "2026-02-28")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, 2, summaries[0].Present)
	assert.Equal(t, 1, summaries[0].Late)
	assert.Equal(t, 3, summaries[0].Total)
	assert.Equal(t, 67, summaries[0].Rate)

	// No rows at all is rate zero, not a division error.
	assert.Equal(t, 0, summaries[1].Total)
	assert.Equal(t, 0, summaries[1].Rate)
}

func TestStudentSummariesCountStrayGlyphs(t *testing.T) {
	repo := &fakeAttendanceRepo{records: []models.AttendanceRecord{
		{StudentID: 7, ClassID: 3, Date: "2026-02-01", Status: models.AttendanceStatusPresent},
		{StudentID: 7, ClassID: 3, Date: "2026-02-02", Status: models.AttendanceStatus("?")},
	}}
	svc := newMatrixService(repo, []models.Student{{ID: 7, FullName: "Mina"}})

	summaries, err := svc.StudentSummaries(context.Background(), 3, "2026-02-01", "2026-02-28")
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	// The stray row stays out of every bucket but still dilutes the rate.
	assert.Equal(t, 1, summaries[0].Present)
	assert.Equal(t, 2, summaries[0].Total)
	assert.Equal(t, 50, summaries[0].Rate)
}
