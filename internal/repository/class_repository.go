package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/classtrack/classtrack-api/internal/models"
)

// ClassRepository handles persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classColumns = "id, name, level, schedule_note, teacher_id, active, created_at, updated_at"

// GetByID fetches one class. Callers translate sql.ErrNoRows into NotFound.
func (r *ClassRepository) GetByID(ctx context.Context, id int64) (*models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE id = $1", classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// List returns classes matching the provided filter.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Level != "" {
		where = append(where, fmt.Sprintf("level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := "name"
	if filter.SortBy == "created_at" {
		sortColumn = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM classes WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		classColumns, whereClause, sortColumn, order, size, offset)
	var rows []models.Class
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM classes WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return rows, total, nil
}

// Create inserts a class and returns the stored row.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) (*models.Class, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO classes (name, level, schedule_note, teacher_id, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING %s`, classColumns)
	var stored models.Class
	if err := r.db.GetContext(ctx, &stored, query, class.Name, class.Level, class.ScheduleNote, class.TeacherID, class.Active, now, now); err != nil {
		return nil, fmt.Errorf("create class: %w", err)
	}
	return &stored, nil
}

// Update overwrites mutable class fields.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) (*models.Class, error) {
	query := fmt.Sprintf(`UPDATE classes
SET name = $1, level = $2, schedule_note = $3, teacher_id = $4, active = $5, updated_at = $6
WHERE id = $7
RETURNING %s`, classColumns)
	var stored models.Class
	if err := r.db.GetContext(ctx, &stored, query, class.Name, class.Level, class.ScheduleNote, class.TeacherID, class.Active, time.Now().UTC(), class.ID); err != nil {
		return nil, err
	}
	return &stored, nil
}

// CountActive returns the number of active classes.
func (r *ClassRepository) CountActive(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classes WHERE active = true"); err != nil {
		return 0, fmt.Errorf("count active classes: %w", err)
	}
	return total, nil
}
