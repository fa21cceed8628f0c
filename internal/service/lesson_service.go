package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/pkg/dates"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type lessonRepository interface {
	GetByID(ctx context.Context, id int64) (*models.CommentSheet, error)
	ListByClassRange(ctx context.Context, classID int64, dateFrom, dateTo string) ([]models.CommentSheet, error)
	List(ctx context.Context, filter models.CommentSheetFilter) ([]models.CommentSheet, int, error)
	Upsert(ctx context.Context, sheet *models.CommentSheet) (*models.CommentSheet, error)
	Delete(ctx context.Context, id int64) error
}

type lessonClassRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Class, error)
}

// LessonService manages teacher comment sheets.
type LessonService struct {
	repo      lessonRepository
	classRepo lessonClassRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs the lesson service.
func NewLessonService(repo lessonRepository, classRepo lessonClassRepository, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{repo: repo, classRepo: classRepo, validator: validate, logger: logger}
}

// SaveCommentSheetRequest carries one sheet's content. Writes upsert against
// (class, date), so saving twice edits rather than duplicates.
type SaveCommentSheetRequest struct {
	ClassID     int64   `json:"class_id" validate:"required"`
	Date        string  `json:"date" validate:"required"`
	TeacherID   *string `json:"teacher_id"`
	TargetTopic string  `json:"target_topic"`
	Vocabulary  string  `json:"vocabulary"`
	Mistakes    string  `json:"mistakes"`
	Strengths   string  `json:"strengths"`
	Comments    string  `json:"comments"`
}

// CommentSheetListRequest scopes sheet listing.
type CommentSheetListRequest struct {
	ClassID  int64
	DateFrom string
	DateTo   string
	Page     int
	PageSize int
}

// Save upserts a comment sheet for its class and date.
func (s *LessonService) Save(ctx context.Context, req SaveCommentSheetRequest) (*models.CommentSheet, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	iso := dates.NormalizeISO(req.Date)
	if iso == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unrecognised date: %q", req.Date))
	}
	if _, err := s.classRepo.GetByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	sheet := &models.CommentSheet{
		ClassID:     req.ClassID,
		TeacherID:   req.TeacherID,
		Date:        iso,
		TargetTopic: req.TargetTopic,
		Vocabulary:  req.Vocabulary,
		Mistakes:    req.Mistakes,
		Strengths:   req.Strengths,
		Comments:    req.Comments,
	}
	stored, err := s.repo.Upsert(ctx, sheet)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save comment sheet")
	}
	return stored, nil
}

// Get returns one comment sheet.
func (s *LessonService) Get(ctx context.Context, id int64) (*models.CommentSheet, error) {
	sheet, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "comment sheet not found")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment sheet")
	}
	return sheet, nil
}

// GetByClassAndDate returns the sheet for one lesson, or NotFound.
func (s *LessonService) GetByClassAndDate(ctx context.Context, classID int64, date string) (*models.CommentSheet, error) {
	iso := dates.NormalizeISO(date)
	if iso == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unrecognised date: %q", date))
	}
	sheets, err := s.repo.ListByClassRange(ctx, classID, iso, iso)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment sheet")
	}
	if len(sheets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "comment sheet not found")
	}
	return &sheets[0], nil
}

// List returns paginated sheets matching the filter.
func (s *LessonService) List(ctx context.Context, req CommentSheetListRequest) ([]models.CommentSheet, *models.Pagination, error) {
	dateFrom, err := normalizeBound(req.DateFrom, "from")
	if err != nil {
		return nil, nil, err
	}
	dateTo, err := normalizeBound(req.DateTo, "to")
	if err != nil {
		return nil, nil, err
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	rows, total, err := s.repo.List(ctx, models.CommentSheetFilter{
		ClassID:  req.ClassID,
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comment sheets")
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Delete removes one comment sheet.
func (s *LessonService) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "comment sheet not found")
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete comment sheet")
	}
	return nil
}
