package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/pkg/storage"
)

type fakeMatrixProvider struct {
	matrix    *models.AttendanceMatrix
	summaries []models.StudentAttendanceSummary
}

func (f *fakeMatrixProvider) Matrix(context.Context, int64, string, string) (*models.AttendanceMatrix, error) {
	return f.matrix, nil
}

func (f *fakeMatrixProvider) StudentSummaries(context.Context, int64, string, string) ([]models.StudentAttendanceSummary, error) {
	return f.summaries, nil
}

type fakeReportProvider struct {
	report *models.MonthlyReport
}

func (f *fakeReportProvider) Get(context.Context, int64) (*models.MonthlyReport, error) {
	return f.report, nil
}

type fakeClassProvider struct {
	class *models.Class
}

func (f *fakeClassProvider) Get(context.Context, int64) (*models.Class, error) {
	return f.class, nil
}

func testMatrix() *models.AttendanceMatrix {
	return &models.AttendanceMatrix{
		Class: &models.Class{ID: 3, Name: "Koala"},
		Students: []models.Student{
			{ID: 7, FullName: "Mina", Type: models.StudentTypeRegular},
			{ID: 8, FullName: "Taro", Type: models.StudentTypeTrial},
		},
		Dates: []string{"2026-02-01", "2026-02-02", "2026-02-03", "2026-02-04", "2026-02-05", "2026-02-06"},
		Marks: map[string]models.AttendanceStatus{
			"7-2026-02-01": models.AttendanceStatusPresent,
			"7-2026-02-02": models.AttendanceStatusAbsent,
			"7-2026-02-03": models.AttendanceStatusLate,
			"7-2026-02-05": models.AttendanceStatusPresent,
			"8-2026-02-01": models.AttendanceStatusPresent,
			"8-2026-02-03": models.AttendanceStatusPresent,
			"8-2026-02-05": models.AttendanceStatusAbsent,
			"8-2026-02-06": models.AttendanceStatusPresent,
		},
		StartDate: "2026-02-01",
		EndDate:   "2026-02-06",
	}
}

func newTestExportService(t *testing.T) *ExportService {
	store, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSigner("test-secret", time.Hour)
	svc := NewExportService(
		&fakeMatrixProvider{matrix: testMatrix(), summaries: []models.StudentAttendanceSummary{
			{StudentID: 7, StudentName: "Mina", Present: 2, Absent: 1, Late: 1, Total: 4, Rate: 50},
		}},
		&fakeReportProvider{report: &models.MonthlyReport{
			ID: 10, ClassID: 3, Year: 2026, Month: 2,
			StartDate: "2026-02-01", EndDate: "2026-02-28",
			Weeks: []models.ReportWeek{
				{WeekNumber: 1, LessonDate: "2026-02-03", Target: "Colors", Vocabulary: "red", Phrase: "says bu", Others: "good recall"},
				{WeekNumber: 2, LessonDate: "2026-02-10", Target: "Animals", Vocabulary: "cat", Phrase: "", Others: ""},
			},
		}},
		&fakeClassProvider{class: &models.Class{ID: 3, Name: "Koala"}},
		store,
		signer,
		ExportConfig{APIPrefix: "/api/v1"},
		nil,
	)
	return svc
}

func TestGenerateGridCSV(t *testing.T) {
	svc := newTestExportService(t)
	job := &models.ExportJob{
		ID:     "job-1",
		Type:   models.ExportTypeAttendanceGrid,
		Params: models.ExportJobParams{ClassID: 3, StartDate: "2026-02-01", EndDate: "2026-02-06", Format: models.ExportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/download/"))

	file, err := svc.Open(result.Key)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "2026-02-06")
	assert.True(t, strings.HasPrefix(lines[1], "Mina,regular,O,X,/,,O,"))
	assert.True(t, strings.HasPrefix(lines[2], "Taro,trial,O,,O,,X,O"))
}

func TestGenerateGridPDF(t *testing.T) {
	svc := newTestExportService(t)
	job := &models.ExportJob{
		ID:     "job-2",
		Type:   models.ExportTypeAttendanceGrid,
		Params: models.ExportJobParams{ClassID: 3, StartDate: "2026-02-01", EndDate: "2026-02-06", Format: models.ExportFormatPDF},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	file, err := svc.Open(result.Key)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF")))
}

func TestGenerateMonthlyReportPDF(t *testing.T) {
	svc := newTestExportService(t)
	job := &models.ExportJob{
		ID:     "job-3",
		Type:   models.ExportTypeMonthlyReport,
		Params: models.ExportJobParams{ReportID: 10, Format: models.ExportFormatPDF},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatPDF, result.Format)

	file, err := svc.Open(result.Key)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF")))
}

func TestGenerateTokenRoundTrip(t *testing.T) {
	svc := newTestExportService(t)
	job := &models.ExportJob{
		ID:     "job-4",
		Type:   models.ExportTypeMonthlyReport,
		Params: models.ExportJobParams{ReportID: 10, Format: models.ExportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	jobID, key, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-4", jobID)
	assert.Equal(t, result.Key, key)
}

func TestGenerateRejectsUnknownType(t *testing.T) {
	svc := newTestExportService(t)
	_, err := svc.Generate(context.Background(), &models.ExportJob{ID: "job-5", Type: "grades"})
	require.Error(t, err)
}
