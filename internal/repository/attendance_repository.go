package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/classtrack/classtrack-api/internal/models"
)

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = "id, student_id, class_id, date, status, notes, lesson_time, teacher_id, created_at, updated_at"

// ListByClass returns all attendance rows for a class, optionally bounded by
// ISO dates. Either bound may be empty for a one-sided or unbounded query.
func (r *AttendanceRepository) ListByClass(ctx context.Context, classID int64, dateFrom, dateTo string) ([]models.AttendanceRecord, error) {
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
	query := fmt.Sprintf("SELECT %s FROM attendance WHERE %s ORDER BY date, student_id",
		attendanceColumns, strings.Join(where, " AND "))
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return rows, nil
}

// DistinctDates returns the distinct raw date values present for a class,
// ascending, optionally bounded. Values are normalised by the caller since
// legacy rows may carry non-ISO formats.
func (r *AttendanceRepository) DistinctDates(ctx context.Context, classID int64, dateFrom, dateTo string) ([]string, error) {
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
	query := fmt.Sprintf("SELECT DISTINCT date FROM attendance WHERE %s ORDER BY date",
		strings.Join(where, " AND "))
	var dates []string
	if err := r.db.SelectContext(ctx, &dates, query, args...); err != nil {
		return nil, fmt.Errorf("distinct attendance dates: %w", err)
	}
	return dates, nil
}

// List returns paginated attendance rows matching the filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClassID != 0 {
		where = append(where, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.StudentID != 0 {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
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

	query := fmt.Sprintf("SELECT %s FROM attendance WHERE %s ORDER BY date DESC, student_id LIMIT %d OFFSET %d",
		attendanceColumns, whereClause, size, offset)
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// Upsert inserts or replaces the record for (student, class, date).
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO attendance (student_id, class_id, date, status, notes, lesson_time, teacher_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, class_id, date)
DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, lesson_time = EXCLUDED.lesson_time, teacher_id = EXCLUDED.teacher_id, updated_at = EXCLUDED.updated_at
RETURNING %s`, attendanceColumns)
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query, record.StudentID, record.ClassID, record.Date, record.Status, record.Notes, record.LessonTime, record.TeacherID, now, now); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// BulkUpsert writes many records in one transaction; either all rows land or
// none do.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) ([]models.AttendanceRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk attendance: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`INSERT INTO attendance (student_id, class_id, date, status, notes, lesson_time, teacher_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, class_id, date)
DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, lesson_time = EXCLUDED.lesson_time, teacher_id = EXCLUDED.teacher_id, updated_at = EXCLUDED.updated_at
RETURNING %s`, attendanceColumns)
	now := time.Now().UTC()
	stored := make([]models.AttendanceRecord, 0, len(records))
	for i := range records {
		rec := &records[i]
		var row models.AttendanceRecord
		if err := tx.GetContext(ctx, &row, query, rec.StudentID, rec.ClassID, rec.Date, rec.Status, rec.Notes, rec.LessonTime, rec.TeacherID, now, now); err != nil {
			return nil, fmt.Errorf("bulk upsert attendance: %w", err)
		}
		stored = append(stored, row)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk attendance: %w", err)
	}
	commit = true
	return stored, nil
}

// Delete removes one attendance record.
func (r *AttendanceRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM attendance WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatusOn tallies marks for one date across all classes.
func (r *AttendanceRepository) CountByStatusOn(ctx context.Context, date string) (map[models.AttendanceStatus]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"cnt"`
	}{}
	query := "SELECT status, COUNT(*) AS cnt FROM attendance WHERE date = $1 GROUP BY status"
	if err := r.db.SelectContext(ctx, &rows, query, date); err != nil {
		return nil, fmt.Errorf("count attendance by status: %w", err)
	}
	out := make(map[models.AttendanceStatus]int, len(rows))
	for _, row := range rows {
		out[models.AttendanceStatus(row.Status)] = row.Count
	}
	return out, nil
}
