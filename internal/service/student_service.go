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

type studentRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Student, error)
	ListActiveByClass(ctx context.Context, classID int64) ([]models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	Create(ctx context.Context, student *models.Student) (*models.Student, error)
	Update(ctx context.Context, student *models.Student) (*models.Student, error)
}

type studentClassRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Class, error)
}

// StudentService manages student enrolment.
type StudentService struct {
	repo      studentRepository
	classRepo studentClassRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, classRepo studentClassRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &StudentService{repo: repo, classRepo: classRepo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("student_type", func(fl validator.FieldLevel) bool {
		switch models.StudentType(fl.Field().String()) {
		case models.StudentTypeRegular, models.StudentTypeTrial, models.StudentTypeMakeup:
			return true
		default:
			return false
		}
	})
	return svc
}

// CreateStudentRequest enrols a student in a class.
type CreateStudentRequest struct {
	ClassID    int64  `json:"class_id" validate:"required"`
	FullName   string `json:"full_name" validate:"required"`
	Type       string `json:"student_type" validate:"omitempty,student_type"`
	EnrolledOn string `json:"enrolled_on"`
}

// UpdateStudentRequest patches a student. Nil fields stay unchanged.
type UpdateStudentRequest struct {
	ClassID  *int64  `json:"class_id"`
	FullName *string `json:"full_name"`
	Type     *string `json:"student_type" validate:"omitempty,student_type"`
	Active   *bool   `json:"active"`
}

// StudentListRequest scopes student listing.
type StudentListRequest struct {
	ClassID   int64
	Search    string
	Type      *string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// ListByClass returns a class's active roster in grid order.
func (s *StudentService) ListByClass(ctx context.Context, classID int64) ([]models.Student, error) {
	students, err := s.repo.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// List returns paginated students matching the filter.
func (s *StudentService) List(ctx context.Context, req StudentListRequest) ([]models.Student, *models.Pagination, error) {
	var studentType *models.StudentType
	if req.Type != nil {
		st := models.StudentType(*req.Type)
		studentType = &st
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	rows, total, err := s.repo.List(ctx, models.StudentFilter{
		ClassID:   req.ClassID,
		Search:    req.Search,
		Type:      studentType,
		Active:    req.Active,
		Page:      page,
		PageSize:  size,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create enrols a student; type defaults to regular.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := s.classRepo.GetByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	studentType := models.StudentType(req.Type)
	if req.Type == "" {
		studentType = models.StudentTypeRegular
	}
	var enrolledOn *string
	if req.EnrolledOn != "" {
		iso := dates.NormalizeISO(req.EnrolledOn)
		if iso == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unrecognised enrolment date: %q", req.EnrolledOn))
		}
		enrolledOn = &iso
	}
	student := &models.Student{
		ClassID:    req.ClassID,
		FullName:   req.FullName,
		Type:       studentType,
		Active:     true,
		EnrolledOn: enrolledOn,
	}
	stored, err := s.repo.Create(ctx, student)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return stored, nil
}

// Update patches a student. Moving between classes keeps prior attendance
// rows under the old class; deactivating hides the student from grids
// without losing history.
func (s *StudentService) Update(ctx context.Context, id int64, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ClassID != nil {
		if _, err := s.classRepo.GetByID(ctx, *req.ClassID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
		student.ClassID = *req.ClassID
	}
	if req.FullName != nil {
		student.FullName = *req.FullName
	}
	if req.Type != nil {
		student.Type = models.StudentType(*req.Type)
	}
	if req.Active != nil {
		student.Active = *req.Active
	}
	stored, err := s.repo.Update(ctx, student)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return stored, nil
}
