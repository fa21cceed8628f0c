package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
)

const (
	sheetTableCurrent = "teacher_comment_sheets"
	sheetTableLegacy  = "lesson_reports"
)

// LessonRepository handles persistence for teacher comment sheets. Deployments
// mid-migration may still run the legacy lesson_reports schema; the table is
// probed once at construction rather than per call, so steady state never
// issues failing queries.
type LessonRepository struct {
	db    *sqlx.DB
	table string
}

// NewLessonRepository constructs the repository, probing which schema
// generation is present.
func NewLessonRepository(db *sqlx.DB, logger *zap.Logger) *LessonRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	table := sheetTableCurrent
	var exists sql.NullString
	err := db.Get(&exists, "SELECT to_regclass($1)::text", "public."+sheetTableCurrent)
	if err != nil || !exists.Valid {
		table = sheetTableLegacy
		logger.Sugar().Warnw("comment sheet table missing, using legacy schema", "table", table)
	}
	return &LessonRepository{db: db, table: table}
}

// Table exposes the selected schema generation (for health introspection).
func (r *LessonRepository) Table() string {
	return r.table
}

const sheetColumns = "id, class_id, teacher_id, date, target_topic, vocabulary, mistakes, strengths, comments, created_at, updated_at"

// GetByID fetches one comment sheet.
func (r *LessonRepository) GetByID(ctx context.Context, id int64) (*models.CommentSheet, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", sheetColumns, r.table)
	var sheet models.CommentSheet
	if err := r.db.GetContext(ctx, &sheet, query, id); err != nil {
		return nil, err
	}
	return &sheet, nil
}

// ListByClassRange returns sheets for a class within the inclusive ISO date
// bounds, ascending by date. Report week numbering depends on this order.
func (r *LessonRepository) ListByClassRange(ctx context.Context, classID int64, dateFrom, dateTo string) ([]models.CommentSheet, error) {
	where := []string{"class_id = $1"}
	args := []interface{}{classID}
	if dateFrom != "" {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, dateFrom)
	}
	if dateTo != "" {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, dateTo)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY date",
		sheetColumns, r.table, strings.Join(where, " AND "))
	var rows []models.CommentSheet
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list comment sheets: %w", err)
	}
	return rows, nil
}

// List returns paginated sheets matching the filter.
func (r *LessonRepository) List(ctx context.Context, filter models.CommentSheetFilter) ([]models.CommentSheet, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClassID != 0 {
		where = append(where, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.DateFrom != "" {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, filter.DateTo)
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

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY date DESC LIMIT %d OFFSET %d",
		sheetColumns, r.table, whereClause, size, offset)
	var rows []models.CommentSheet
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list comment sheets: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", r.table, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count comment sheets: %w", err)
	}
	return rows, total, nil
}

// Upsert inserts or replaces the sheet for (class, date).
func (r *LessonRepository) Upsert(ctx context.Context, sheet *models.CommentSheet) (*models.CommentSheet, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO %s (class_id, teacher_id, date, target_topic, vocabulary, mistakes, strengths, comments, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (class_id, date)
DO UPDATE SET teacher_id = EXCLUDED.teacher_id, target_topic = EXCLUDED.target_topic, vocabulary = EXCLUDED.vocabulary, mistakes = EXCLUDED.mistakes, strengths = EXCLUDED.strengths, comments = EXCLUDED.comments, updated_at = EXCLUDED.updated_at
RETURNING %s`, r.table, sheetColumns)
	var stored models.CommentSheet
	if err := r.db.GetContext(ctx, &stored, query, sheet.ClassID, sheet.TeacherID, sheet.Date, sheet.TargetTopic, sheet.Vocabulary, sheet.Mistakes, sheet.Strengths, sheet.Comments, now, now); err != nil {
		return nil, fmt.Errorf("upsert comment sheet: %w", err)
	}
	return &stored, nil
}

// Delete removes one comment sheet.
func (r *LessonRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table), id)
	if err != nil {
		return fmt.Errorf("delete comment sheet: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete comment sheet: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountInRange tallies sheets across all classes for the dashboard.
func (r *LessonRepository) CountInRange(ctx context.Context, dateFrom, dateTo string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE date >= $1 AND date <= $2", r.table)
	var total int
	if err := r.db.GetContext(ctx, &total, query, dateFrom, dateTo); err != nil {
		return 0, fmt.Errorf("count comment sheets: %w", err)
	}
	return total, nil
}
