package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/pkg/dates"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type reportRepository interface {
	GetByID(ctx context.Context, id int64) (*models.MonthlyReport, error)
	FindByRange(ctx context.Context, classID int64, startDate, endDate string) (*models.MonthlyReport, error)
	ListByClass(ctx context.Context, classID int64) ([]models.MonthlyReport, error)
	ListWeeks(ctx context.Context, reportID int64) ([]models.ReportWeek, error)
	CreateWithWeeks(ctx context.Context, report *models.MonthlyReport, weeks []models.ReportWeek) (*models.MonthlyReport, bool, error)
	Update(ctx context.Context, id int64, theme *string, status *models.ReportStatus) (*models.MonthlyReport, error)
	Delete(ctx context.Context, id int64) error
}

type reportLessonRepository interface {
	ListByClassRange(ctx context.Context, classID int64, dateFrom, dateTo string) ([]models.CommentSheet, error)
}

type reportClassRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Class, error)
}

type attendanceSummarizer interface {
	StudentSummaries(ctx context.Context, classID int64, startDate, endDate string) ([]models.StudentAttendanceSummary, error)
}

// ReportService aggregates comment sheets into monthly reports.
type ReportService struct {
	repo       reportRepository
	lessonRepo reportLessonRepository
	classRepo  reportClassRepository
	attendance attendanceSummarizer
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(repo reportRepository, lessonRepo reportLessonRepository, classRepo reportClassRepository, attendance attendanceSummarizer, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, lessonRepo: lessonRepo, classRepo: classRepo, attendance: attendance, validator: validate, logger: logger}
}

// GenerateReportRequest requests a monthly report. Either year+month or an
// explicit date range must be given; explicit bounds win when both appear.
type GenerateReportRequest struct {
	ClassID      int64  `json:"class_id" validate:"required"`
	Year         int    `json:"year" validate:"omitempty,min=1000,max=9999"`
	Month        int    `json:"month" validate:"omitempty,min=1,max=12"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	MonthlyTheme string `json:"monthly_theme"`
}

// GenerateResult pairs the report with whether this call created it.
type GenerateResult struct {
	Report        *models.MonthlyReport `json:"report"`
	AlreadyExists bool                  `json:"already_exists"`
}

// UpdateReportRequest patches theme and status.
type UpdateReportRequest struct {
	MonthlyTheme *string `json:"monthly_theme"`
	Status       *string `json:"status" validate:"omitempty,oneof=draft published"`
}

func (s *ReportService) resolveRange(req GenerateReportRequest) (start, end string, year, month int, err error) {
	if req.StartDate != "" || req.EndDate != "" {
		start, err = normalizeBound(req.StartDate, "start")
		if err != nil {
			return "", "", 0, 0, err
		}
		end, err = normalizeBound(req.EndDate, "end")
		if err != nil {
			return "", "", 0, 0, err
		}
		if start == "" || end == "" {
			return "", "", 0, 0, appErrors.Clone(appErrors.ErrValidation, "both start and end dates are required")
		}
		if start > end {
			return "", "", 0, 0, appErrors.Clone(appErrors.ErrValidation, "start date is after end date")
		}
		if t, ok := dates.Parse(start); ok {
			year, month = t.Year(), int(t.Month())
		}
		return start, end, year, month, nil
	}
	if req.Year == 0 || req.Month == 0 {
		return "", "", 0, 0, appErrors.Clone(appErrors.ErrValidation, "either year and month or a date range is required")
	}
	start, end = dates.MonthBounds(req.Year, req.Month)
	return start, end, req.Year, req.Month, nil
}

// buildWeeks converts the range's comment sheets into positional week
// entries. Numbering follows lesson date order within the range, not ISO
// calendar weeks, so a month starting mid-week still begins at week 1.
func buildWeeks(sheets []models.CommentSheet) []models.ReportWeek {
	weeks := make([]models.ReportWeek, 0, len(sheets))
	for i, sheet := range sheets {
		others := make([]string, 0, 2)
		if strings.TrimSpace(sheet.Strengths) != "" {
			others = append(others, strings.TrimSpace(sheet.Strengths))
		}
		if strings.TrimSpace(sheet.Comments) != "" {
			others = append(others, strings.TrimSpace(sheet.Comments))
		}
		weeks = append(weeks, models.ReportWeek{
			WeekNumber: i + 1,
			LessonDate: dates.NormalizeISO(sheet.Date),
			Target:     sheet.TargetTopic,
			Vocabulary: sheet.Vocabulary,
			Phrase:     sheet.Mistakes,
			Others:     strings.Join(others, " | "),
			SheetID:    sheet.ID,
		})
	}
	return weeks
}

// dedupLines splits blocks of text into trimmed lines and removes duplicates
// while keeping first-seen order.
func dedupLines(blocks ...string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, block := range blocks {
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			out = append(out, line)
		}
	}
	return out
}

// buildRollup computes the whole-month text blocks from the raw sheets.
// Lines repeated across sheets appear once, first occurrence wins.
func buildRollup(sheets []models.CommentSheet) models.ReportRollup {
	topics := make([]string, 0, len(sheets))
	vocab := make([]string, 0, len(sheets))
	mistakes := make([]string, 0, len(sheets))
	strengths := make([]string, 0, len(sheets))
	for _, sheet := range sheets {
		topics = append(topics, sheet.TargetTopic)
		vocab = append(vocab, sheet.Vocabulary)
		mistakes = append(mistakes, sheet.Mistakes)
		strengths = append(strengths, sheet.Strengths)
	}
	return models.ReportRollup{
		TopicsCovered:    dedupLines(topics...),
		AllVocabulary:    strings.Join(dedupLines(vocab...), "\n"),
		CommonMistakes:   strings.Join(dedupLines(mistakes...), "\n"),
		OverallStrengths: strings.Join(dedupLines(strengths...), "\n"),
	}
}

func (s *ReportService) loadSheets(ctx context.Context, classID int64, start, end string) ([]models.CommentSheet, error) {
	if _, err := s.classRepo.GetByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	sheets, err := s.lessonRepo.ListByClassRange(ctx, classID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment sheets")
	}
	return sheets, nil
}

// Preview assembles the aggregation without persisting anything.
func (s *ReportService) Preview(ctx context.Context, req GenerateReportRequest) (*models.ReportPreview, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	start, end, _, _, err := s.resolveRange(req)
	if err != nil {
		return nil, err
	}
	sheets, err := s.loadSheets(ctx, req.ClassID, start, end)
	if err != nil {
		return nil, err
	}
	summaries, err := s.attendance.StudentSummaries(ctx, req.ClassID, start, end)
	if err != nil {
		return nil, err
	}
	return &models.ReportPreview{
		ClassID:    req.ClassID,
		StartDate:  start,
		EndDate:    end,
		Weeks:      buildWeeks(sheets),
		Rollup:     buildRollup(sheets),
		Attendance: summaries,
	}, nil
}

// Generate creates the report for the range, or returns the existing one.
// Repeat calls for the same range converge on one report; the unique
// constraint backstops concurrent first calls.
func (s *ReportService) Generate(ctx context.Context, req GenerateReportRequest, createdBy string) (*GenerateResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	start, end, year, month, err := s.resolveRange(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByRange(ctx, req.ClassID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing report")
	}
	if existing != nil {
		if err := s.attachWeeks(ctx, existing); err != nil {
			return nil, err
		}
		return &GenerateResult{Report: existing, AlreadyExists: true}, nil
	}

	sheets, err := s.loadSheets(ctx, req.ClassID, start, end)
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("no comment sheets between %s and %s", start, end))
	}

	report := &models.MonthlyReport{
		ClassID:      req.ClassID,
		Year:         year,
		Month:        month,
		StartDate:    start,
		EndDate:      end,
		MonthlyTheme: req.MonthlyTheme,
		Status:       models.ReportStatusDraft,
		CreatedBy:    createdBy,
	}
	stored, created, err := s.repo.CreateWithWeeks(ctx, report, buildWeeks(sheets))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}
	if !created {
		if err := s.attachWeeks(ctx, stored); err != nil {
			return nil, err
		}
		return &GenerateResult{Report: stored, AlreadyExists: true}, nil
	}
	s.logger.Sugar().Infow("monthly report generated",
		"report_id", stored.ID, "class_id", stored.ClassID, "start", start, "end", end, "weeks", len(stored.Weeks))
	return &GenerateResult{Report: stored, AlreadyExists: false}, nil
}

func (s *ReportService) attachWeeks(ctx context.Context, report *models.MonthlyReport) error {
	weeks, err := s.repo.ListWeeks(ctx, report.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report weeks")
	}
	report.Weeks = weeks
	return nil
}

// Get returns one report with its weeks.
func (s *ReportService) Get(ctx context.Context, id int64) (*models.MonthlyReport, error) {
	report, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	if err := s.attachWeeks(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ListByClass returns a class's reports without week bodies.
func (s *ReportService) ListByClass(ctx context.Context, classID int64) ([]models.MonthlyReport, error) {
	reports, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	return reports, nil
}

// Update patches a report's theme or status.
func (s *ReportService) Update(ctx context.Context, id int64, req UpdateReportRequest) (*models.MonthlyReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	var status *models.ReportStatus
	if req.Status != nil {
		st := models.ReportStatus(*req.Status)
		status = &st
	}
	report, err := s.repo.Update(ctx, id, req.MonthlyTheme, status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update report")
	}
	if err := s.attachWeeks(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// Delete removes a report and its weeks.
func (s *ReportService) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete report")
	}
	return nil
}
