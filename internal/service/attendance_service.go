package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/pkg/dates"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type attendanceRepository interface {
	ListByClass(ctx context.Context, classID int64, dateFrom, dateTo string) ([]models.AttendanceRecord, error)
	DistinctDates(ctx context.Context, classID int64, dateFrom, dateTo string) ([]string, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	BulkUpsert(ctx context.Context, records []models.AttendanceRecord) ([]models.AttendanceRecord, error)
	Delete(ctx context.Context, id int64) error
}

type attendanceClassRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Class, error)
}

type attendanceStudentRepository interface {
	ListActiveByClass(ctx context.Context, classID int64) ([]models.Student, error)
}

// AttendanceService coordinates attendance marking and the class grid.
type AttendanceService struct {
	repo        attendanceRepository
	classRepo   attendanceClassRepository
	studentRepo attendanceStudentRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, classRepo attendanceClassRepository, studentRepo attendanceStudentRepository, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{repo: repo, classRepo: classRepo, studentRepo: studentRepo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	return svc
}

// Schedule dates default to roughly the last half year of lessons when the
// caller gives no bounds.
const scheduleLookbackMonths = 6

// MarkAttendanceRequest describes a single mark payload. Date accepts any
// supported format and is stored normalised.
type MarkAttendanceRequest struct {
	StudentID  int64   `json:"student_id" validate:"required"`
	ClassID    int64   `json:"class_id" validate:"required"`
	Date       string  `json:"date" validate:"required"`
	Status     string  `json:"status" validate:"attendance_status"`
	Notes      *string `json:"notes"`
	LessonTime *string `json:"lesson_time"`
	TeacherID  *string `json:"teacher_id"`
}

// BulkMarkItem is one entry of a bulk mark payload.
type BulkMarkItem struct {
	StudentID int64   `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"attendance_status"`
	Notes     *string `json:"notes"`
}

// BulkMarkAttendanceRequest marks a whole class roster for one date.
type BulkMarkAttendanceRequest struct {
	ClassID    int64          `json:"class_id" validate:"required"`
	Date       string         `json:"date" validate:"required"`
	LessonTime *string        `json:"lesson_time"`
	TeacherID  *string        `json:"teacher_id"`
	Items      []BulkMarkItem `json:"items" validate:"required,min=1,dive"`
}

// AttendanceListRequest scopes the flat listing endpoint.
type AttendanceListRequest struct {
	ClassID   int64
	StudentID int64
	Status    *string
	DateFrom  string
	DateTo    string
	Page      int
	PageSize  int
}

// normalizeBound converts a caller-supplied date bound to ISO. Empty stays
// empty; a non-empty value that fails to parse is a caller mistake, not
// something to silently widen the query over.
func normalizeBound(raw, field string) (string, error) {
	if raw == "" {
		return "", nil
	}
	iso := dates.NormalizeISO(raw)
	if iso == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unrecognised %s date: %q", field, raw))
	}
	return iso, nil
}

// Mark records one student's status for one date, replacing any prior mark.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	iso := dates.NormalizeISO(req.Date)
	if iso == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unrecognised date: %q", req.Date))
	}
	record := &models.AttendanceRecord{
		StudentID:  req.StudentID,
		ClassID:    req.ClassID,
		Date:       iso,
		Status:     models.AttendanceStatus(req.Status),
		Notes:      req.Notes,
		LessonTime: req.LessonTime,
		TeacherID:  req.TeacherID,
	}
	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	return stored, nil
}

// BulkMark records a roster's marks for one date in a single transaction.
func (s *AttendanceService) BulkMark(ctx context.Context, req BulkMarkAttendanceRequest) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	iso := dates.NormalizeISO(req.Date)
	if iso == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unrecognised date: %q", req.Date))
	}
	seen := map[int64]struct{}{}
	records := make([]models.AttendanceRecord, len(req.Items))
	for i, item := range req.Items {
		if _, ok := seen[item.StudentID]; ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, "duplicate student in payload")
		}
		seen[item.StudentID] = struct{}{}
		records[i] = models.AttendanceRecord{
			StudentID:  item.StudentID,
			ClassID:    req.ClassID,
			Date:       iso,
			Status:     models.AttendanceStatus(item.Status),
			Notes:      item.Notes,
			LessonTime: req.LessonTime,
			TeacherID:  req.TeacherID,
		}
	}
	stored, err := s.repo.BulkUpsert(ctx, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk mark failed")
	}
	return stored, nil
}

// List returns paginated raw attendance rows.
func (s *AttendanceService) List(ctx context.Context, req AttendanceListRequest) ([]models.AttendanceRecord, *models.Pagination, error) {
	dateFrom, err := normalizeBound(req.DateFrom, "from")
	if err != nil {
		return nil, nil, err
	}
	dateTo, err := normalizeBound(req.DateTo, "to")
	if err != nil {
		return nil, nil, err
	}
	var status *models.AttendanceStatus
	if req.Status != nil {
		st := models.AttendanceStatus(*req.Status)
		if !st.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		status = &st
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	rows, total, err := s.repo.List(ctx, models.AttendanceFilter{
		ClassID:   req.ClassID,
		StudentID: req.StudentID,
		Status:    status,
		DateFrom:  dateFrom,
		DateTo:    dateTo,
		Page:      page,
		PageSize:  size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Delete removes one attendance record.
func (s *AttendanceService) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	return nil
}

// MarkKey is the lookup key for one cell of the grid.
func MarkKey(studentID int64, isoDate string) string {
	return fmt.Sprintf("%d-%s", studentID, isoDate)
}

// Matrix assembles the date × student grid for a class. With both bounds
// supplied the date axis is the full contiguous range, so unmarked lesson
// days still show as columns; otherwise the axis is the distinct dates found
// in the rows. Stored dates are re-normalised before keying because legacy
// rows carry mixed formats, and a slash-format row must land in the same
// cell as an ISO one.
func (s *AttendanceService) Matrix(ctx context.Context, classID int64, startDate, endDate string) (*models.AttendanceMatrix, error) {
	start, err := normalizeBound(startDate, "start")
	if err != nil {
		return nil, err
	}
	end, err := normalizeBound(endDate, "end")
	if err != nil {
		return nil, err
	}
	if start != "" && end != "" && start > end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date is after end date")
	}

	class, err := s.classRepo.GetByID(ctx, classID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	students, err := s.studentRepo.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}

	// Rows are fetched unbounded and filtered after normalisation: legacy
	// date formats do not sort lexicographically, so a SQL range predicate
	// would silently drop them.
	records, err := s.repo.ListByClass(ctx, classID, "", "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	marks := make(map[string]models.AttendanceStatus, len(records))
	observed := map[string]struct{}{}
	for _, rec := range records {
		iso := dates.NormalizeISO(rec.Date)
		if iso == "" {
			s.logger.Sugar().Warnw("skipping attendance row with unreadable date",
				"record_id", rec.ID, "date", rec.Date)
			continue
		}
		if start != "" && iso < start {
			continue
		}
		if end != "" && iso > end {
			continue
		}
		marks[MarkKey(rec.StudentID, iso)] = rec.Status
		observed[iso] = struct{}{}
	}

	var axis []string
	if start != "" && end != "" {
		axis = dates.Range(start, end)
	} else {
		axis = make([]string, 0, len(observed))
		for iso := range observed {
			axis = append(axis, iso)
		}
		sort.Strings(axis)
	}

	return &models.AttendanceMatrix{
		Class:     class,
		Students:  students,
		Dates:     axis,
		Marks:     marks,
		StartDate: start,
		EndDate:   end,
	}, nil
}

// ScheduleDates returns the normalised distinct lesson dates of a class. An
// empty range defaults to the recent lookback window.
func (s *AttendanceService) ScheduleDates(ctx context.Context, classID int64, startDate, endDate string) ([]string, error) {
	start, err := normalizeBound(startDate, "start")
	if err != nil {
		return nil, err
	}
	end, err := normalizeBound(endDate, "end")
	if err != nil {
		return nil, err
	}
	if start == "" && end == "" {
		now := time.Now()
		end = dates.FormatDate(now)
		start = dates.FormatDate(now.AddDate(0, -scheduleLookbackMonths, 0))
	}

	raw, err := s.repo.DistinctDates(ctx, classID, "", "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson dates")
	}

	// Bounds filter after normalisation: legacy formats do not sort
	// lexicographically, so the database cannot apply them.
	uniq := map[string]struct{}{}
	for _, value := range raw {
		iso := dates.NormalizeISO(value)
		if iso == "" {
			continue
		}
		if start != "" && iso < start {
			continue
		}
		if end != "" && iso > end {
			continue
		}
		uniq[iso] = struct{}{}
	}
	out := make([]string, 0, len(uniq))
	for iso := range uniq {
		out = append(out, iso)
	}
	sort.Strings(out)
	return out, nil
}

// StudentSummaries tallies per-student counts for a class within the range.
// Rate is the rounded present percentage; a student with no rows in range
// reports rate 0.
func (s *AttendanceService) StudentSummaries(ctx context.Context, classID int64, startDate, endDate string) ([]models.StudentAttendanceSummary, error) {
	matrix, err := s.Matrix(ctx, classID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.StudentAttendanceSummary, 0, len(matrix.Students))
	for _, student := range matrix.Students {
		summary := models.StudentAttendanceSummary{StudentID: student.ID, StudentName: student.FullName}
		for _, date := range matrix.Dates {
			status, ok := matrix.Marks[MarkKey(student.ID, date)]
			if !ok {
				continue
			}
			switch status {
			case models.AttendanceStatusPresent:
				summary.Present++
			case models.AttendanceStatusAbsent:
				summary.Absent++
			case models.AttendanceStatusLate:
				summary.Late++
			}
			// Every stored row counts toward the total, stray legacy
			// glyphs included, so the rate denominator matches the data.
			summary.Total++
		}
		if summary.Total > 0 {
			summary.Rate = int(math.Round(float64(summary.Present) / float64(summary.Total) * 100))
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
