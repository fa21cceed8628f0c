package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/pkg/dates"
	"github.com/classtrack/classtrack-api/pkg/export"
	"github.com/classtrack/classtrack-api/pkg/storage"
)

type exportMatrixProvider interface {
	Matrix(ctx context.Context, classID int64, startDate, endDate string) (*models.AttendanceMatrix, error)
	StudentSummaries(ctx context.Context, classID int64, startDate, endDate string) ([]models.StudentAttendanceSummary, error)
}

type exportReportProvider interface {
	Get(ctx context.Context, id int64) (*models.MonthlyReport, error)
}

type exportClassProvider interface {
	Get(ctx context.Context, id int64) (*models.Class, error)
}

type blobStore interface {
	Put(key string, data []byte) (string, error)
	Open(key string) (*os.File, error)
	Delete(key string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type gridRenderer interface {
	RenderAttendanceGrid(in export.GridInput) ([]byte, error)
	RenderMonthlyReport(in export.ReportInput) ([]byte, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	Key       string
	Token     string
	URL       string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService renders attendance grids and monthly reports to files and
// hands back signed download URLs.
type ExportService struct {
	attendance exportMatrixProvider
	reports    exportReportProvider
	classes    exportClassProvider
	store      blobStore
	pdf        gridRenderer
	csv        csvRenderer
	signer     *storage.Signer
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(attendance exportMatrixProvider, reports exportReportProvider, classes exportClassProvider, store blobStore, signer *storage.Signer, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		attendance: attendance,
		reports:    reports,
		classes:    classes,
		store:      store,
		pdf:        export.NewPDFExporter(),
		csv:        export.NewCSVExporter(),
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate renders the document a job describes and stores the result.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	var (
		payload []byte
		err     error
	)
	switch job.Type {
	case models.ExportTypeAttendanceGrid:
		payload, err = s.buildGrid(ctx, job.Params)
	case models.ExportTypeMonthlyReport:
		payload, err = s.buildReport(ctx, job.Params)
	default:
		err = fmt.Errorf("unsupported export type %s", job.Type)
	}
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s_%s.%s", job.Type, job.ID, job.Params.Format)
	if _, err := s.store.Put(key, payload); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Sign(job.ID, key)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		Key:       key,
		Token:     token,
		URL:       fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *ExportService) buildGrid(ctx context.Context, params models.ExportJobParams) ([]byte, error) {
	matrix, err := s.attendance.Matrix(ctx, params.ClassID, params.StartDate, params.EndDate)
	if err != nil {
		return nil, err
	}

	switch params.Format {
	case models.ExportFormatCSV:
		headers := append([]string{"Student", "Type"}, matrix.Dates...)
		rows := make([][]string, 0, len(matrix.Students))
		for _, student := range matrix.Students {
			row := make([]string, 0, len(headers))
			row = append(row, student.FullName, string(student.Type))
			for _, date := range matrix.Dates {
				row = append(row, string(models.FormatStatus(string(matrix.Marks[MarkKey(student.ID, date)]))))
			}
			rows = append(rows, row)
		}
		return s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	case models.ExportFormatPDF:
		students := make([]export.GridStudent, 0, len(matrix.Students))
		for _, student := range matrix.Students {
			students = append(students, export.GridStudent{ID: student.ID, Name: student.FullName, Type: string(student.Type)})
		}
		marks := make(map[string]string, len(matrix.Marks))
		for key, status := range matrix.Marks {
			marks[key] = string(models.FormatStatus(string(status)))
		}
		subtitle := ""
		if matrix.StartDate != "" || matrix.EndDate != "" {
			subtitle = fmt.Sprintf("%s to %s", matrix.StartDate, matrix.EndDate)
		}
		return s.pdf.RenderAttendanceGrid(export.GridInput{
			Title:    matrix.Class.Name,
			Subtitle: subtitle,
			Students: students,
			Dates:    matrix.Dates,
			Marks:    marks,
		})
	default:
		return nil, fmt.Errorf("unsupported export format %s", params.Format)
	}
}

func (s *ExportService) buildReport(ctx context.Context, params models.ExportJobParams) ([]byte, error) {
	report, err := s.reports.Get(ctx, params.ReportID)
	if err != nil {
		return nil, err
	}
	class, err := s.classes.Get(ctx, report.ClassID)
	if err != nil {
		return nil, err
	}

	switch params.Format {
	case models.ExportFormatCSV:
		headers := []string{"Week", "Date", "Target", "Vocabulary", "Phrase", "Others"}
		rows := make([][]string, 0, len(report.Weeks))
		for _, week := range report.Weeks {
			rows = append(rows, []string{
				fmt.Sprintf("%d", week.WeekNumber),
				week.LessonDate,
				week.Target,
				week.Vocabulary,
				week.Phrase,
				week.Others,
			})
		}
		return s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	case models.ExportFormatPDF:
		summaries, err := s.attendance.StudentSummaries(ctx, report.ClassID, report.StartDate, report.EndDate)
		if err != nil {
			return nil, err
		}
		weeks := make([]export.ReportWeekRow, 0, len(report.Weeks))
		topics := make([]string, 0, len(report.Weeks))
		vocab := make([]string, 0, len(report.Weeks))
		mistakes := make([]string, 0, len(report.Weeks))
		strengths := make([]string, 0, len(report.Weeks))
		for _, week := range report.Weeks {
			weeks = append(weeks, export.ReportWeekRow{
				WeekNumber: week.WeekNumber,
				LessonDate: week.LessonDate,
				Target:     week.Target,
				Vocabulary: week.Vocabulary,
				Phrase:     week.Phrase,
				Others:     week.Others,
			})
			topics = append(topics, week.Target)
			vocab = append(vocab, week.Vocabulary)
			mistakes = append(mistakes, week.Phrase)
			strengths = append(strengths, week.Others)
		}
		students := make([]export.ReportStudentRow, 0, len(summaries))
		for _, summary := range summaries {
			students = append(students, export.ReportStudentRow{
				Name:    summary.StudentName,
				Present: summary.Present,
				Absent:  summary.Absent,
				Late:    summary.Late,
				Rate:    summary.Rate,
			})
		}
		year, month := report.Year, report.Month
		if year == 0 {
			if t, ok := dates.Parse(report.StartDate); ok {
				year, month = t.Year(), int(t.Month())
			}
		}
		return s.pdf.RenderMonthlyReport(export.ReportInput{
			ClassName:        class.Name,
			Year:             year,
			Month:            month,
			Theme:            report.MonthlyTheme,
			Weeks:            weeks,
			TopicsCovered:    dedupLines(topics...),
			AllVocabulary:    strings.Join(dedupLines(vocab...), "\n"),
			CommonMistakes:   strings.Join(dedupLines(mistakes...), "\n"),
			OverallStrengths: strings.Join(dedupLines(strengths...), "\n"),
			Students:         students,
		})
	default:
		return nil, fmt.Errorf("unsupported export format %s", params.Format)
	}
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, key string, expiresAt time.Time, err error) {
	return s.signer.Verify(token, allowExpired)
}

// Open returns a handle to a stored export file.
func (s *ExportService) Open(key string) (*os.File, error) {
	return s.store.Open(key)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(key string) error {
	return s.store.Delete(key)
}

// Cleanup drops files older than the TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	return s.store.CleanupOlderThan(ttl)
}
