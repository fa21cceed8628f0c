package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/classtrack/classtrack-api/internal/models"
)

// StudentRepository handles persistence for students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = "id, class_id, full_name, student_type, active, enrolled_on, created_at, updated_at"

// GetByID fetches one student.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListActiveByClass returns the active roster for a class. Regular students
// come first, then trial, then makeup, alphabetical within each group; grid
// and report rendering rely on this order.
func (r *StudentRepository) ListActiveByClass(ctx context.Context, classID int64) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students
WHERE class_id = $1 AND active = true
ORDER BY CASE student_type WHEN 'regular' THEN 0 WHEN 'trial' THEN 1 ELSE 2 END, full_name`, studentColumns)
	var rows []models.Student
	if err := r.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return rows, nil
}

// List returns students matching the provided filter.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClassID != 0 {
		where = append(where, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("full_name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Type != nil {
		where = append(where, fmt.Sprintf("student_type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM students WHERE %s
ORDER BY CASE student_type WHEN 'regular' THEN 0 WHEN 'trial' THEN 1 ELSE 2 END, full_name
LIMIT %d OFFSET %d`, studentColumns, whereClause, size, offset)
	var rows []models.Student
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return rows, total, nil
}

// Create inserts a student and returns the stored row.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) (*models.Student, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO students (class_id, full_name, student_type, active, enrolled_on, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING %s`, studentColumns)
	var stored models.Student
	if err := r.db.GetContext(ctx, &stored, query, student.ClassID, student.FullName, student.Type, student.Active, student.EnrolledOn, now, now); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}
	return &stored, nil
}

// Update overwrites mutable student fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) (*models.Student, error) {
	query := fmt.Sprintf(`UPDATE students
SET class_id = $1, full_name = $2, student_type = $3, active = $4, enrolled_on = $5, updated_at = $6
WHERE id = $7
RETURNING %s`, studentColumns)
	var stored models.Student
	if err := r.db.GetContext(ctx, &stored, query, student.ClassID, student.FullName, student.Type, student.Active, student.EnrolledOn, time.Now().UTC(), student.ID); err != nil {
		return nil, err
	}
	return &stored, nil
}

// CountActive returns the number of active students across all classes.
func (r *StudentRepository) CountActive(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students WHERE active = true"); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return total, nil
}
