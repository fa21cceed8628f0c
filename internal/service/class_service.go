package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type classRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Class, error)
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	Create(ctx context.Context, class *models.Class) (*models.Class, error)
	Update(ctx context.Context, class *models.Class) (*models.Class, error)
}

// ClassService manages the class roster.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs the class service.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// CreateClassRequest carries a new class.
type CreateClassRequest struct {
	Name         string  `json:"name" validate:"required"`
	Level        string  `json:"level"`
	ScheduleNote string  `json:"schedule_note"`
	TeacherID    *string `json:"teacher_id"`
}

// UpdateClassRequest patches an existing class. Nil fields stay unchanged.
type UpdateClassRequest struct {
	Name         *string `json:"name"`
	Level        *string `json:"level"`
	ScheduleNote *string `json:"schedule_note"`
	TeacherID    *string `json:"teacher_id"`
	Active       *bool   `json:"active"`
}

// ClassListRequest scopes class listing.
type ClassListRequest struct {
	Level     string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Get returns one class.
func (s *ClassService) Get(ctx context.Context, id int64) (*models.Class, error) {
	class, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// List returns paginated classes matching the filter.
func (s *ClassService) List(ctx context.Context, req ClassListRequest) ([]models.Class, *models.Pagination, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	rows, total, err := s.repo.List(ctx, models.ClassFilter{
		Level:     req.Level,
		Search:    req.Search,
		Active:    req.Active,
		Page:      page,
		PageSize:  size,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create registers a new class, active by default.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	class := &models.Class{
		Name:         req.Name,
		Level:        req.Level,
		ScheduleNote: req.ScheduleNote,
		TeacherID:    req.TeacherID,
		Active:       true,
	}
	stored, err := s.repo.Create(ctx, class)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return stored, nil
}

// Update patches a class. Deactivating keeps history intact; nothing is
// deleted, the class just stops appearing in active listings.
func (s *ClassService) Update(ctx context.Context, id int64, req UpdateClassRequest) (*models.Class, error) {
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		class.Name = *req.Name
	}
	if req.Level != nil {
		class.Level = *req.Level
	}
	if req.ScheduleNote != nil {
		class.ScheduleNote = *req.ScheduleNote
	}
	if req.TeacherID != nil {
		class.TeacherID = req.TeacherID
	}
	if req.Active != nil {
		class.Active = *req.Active
	}
	stored, err := s.repo.Update(ctx, class)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return stored, nil
}
