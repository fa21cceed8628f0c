package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/classtrack/classtrack-api/internal/models"
)

// ReportRepository handles persistence for monthly reports and their weeks.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const (
	reportColumns = "id, class_id, year, month, start_date, end_date, monthly_theme, status, created_by, created_at, updated_at"
	weekColumns   = "id, monthly_report_id, week_number, lesson_date, target, vocabulary, phrase, others, sheet_id"
)

// uniqueViolation is the PostgreSQL error code the unique constraint on
// (class_id, start_date, end_date) raises when two generates race.
const uniqueViolation = "23505"

// GetByID fetches one report without its weeks.
func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*models.MonthlyReport, error) {
	query := fmt.Sprintf("SELECT %s FROM monthly_reports WHERE id = $1", reportColumns)
	var report models.MonthlyReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// FindByRange returns the report persisted for the exact (class, start, end)
// triple, or nil when none exists.
func (r *ReportRepository) FindByRange(ctx context.Context, classID int64, startDate, endDate string) (*models.MonthlyReport, error) {
	query := fmt.Sprintf("SELECT %s FROM monthly_reports WHERE class_id = $1 AND start_date = $2 AND end_date = $3", reportColumns)
	var report models.MonthlyReport
	err := r.db.GetContext(ctx, &report, query, classID, startDate, endDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find report by range: %w", err)
	}
	return &report, nil
}

// ListByClass returns reports for a class, newest range first.
func (r *ReportRepository) ListByClass(ctx context.Context, classID int64) ([]models.MonthlyReport, error) {
	query := fmt.Sprintf("SELECT %s FROM monthly_reports WHERE class_id = $1 ORDER BY start_date DESC", reportColumns)
	var rows []models.MonthlyReport
	if err := r.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return rows, nil
}

// ListWeeks returns the ordered week entries of a report.
func (r *ReportRepository) ListWeeks(ctx context.Context, reportID int64) ([]models.ReportWeek, error) {
	query := fmt.Sprintf("SELECT %s FROM report_weeks WHERE monthly_report_id = $1 ORDER BY week_number", weekColumns)
	var rows []models.ReportWeek
	if err := r.db.SelectContext(ctx, &rows, query, reportID); err != nil {
		return nil, fmt.Errorf("list report weeks: %w", err)
	}
	return rows, nil
}

// CreateWithWeeks persists a report and its week rows in one transaction.
// When another request created the same (class, start, end) first, the unique
// constraint fires; the existing report is fetched and returned with created
// false, so racing generates converge on one logical resource.
func (r *ReportRepository) CreateWithWeeks(ctx context.Context, report *models.MonthlyReport, weeks []models.ReportWeek) (*models.MonthlyReport, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin report create: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	insertReport := fmt.Sprintf(`INSERT INTO monthly_reports (class_id, year, month, start_date, end_date, monthly_theme, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING %s`, reportColumns)
	var stored models.MonthlyReport
	err = tx.GetContext(ctx, &stored, insertReport,
		report.ClassID, report.Year, report.Month, report.StartDate, report.EndDate,
		report.MonthlyTheme, report.Status, report.CreatedBy, now, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			existing, findErr := r.FindByRange(ctx, report.ClassID, report.StartDate, report.EndDate)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("insert report: %w", err)
	}

	insertWeek := fmt.Sprintf(`INSERT INTO report_weeks (monthly_report_id, week_number, lesson_date, target, vocabulary, phrase, others, sheet_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING %s`, weekColumns)
	storedWeeks := make([]models.ReportWeek, 0, len(weeks))
	for i := range weeks {
		week := &weeks[i]
		var row models.ReportWeek
		if err := tx.GetContext(ctx, &row, insertWeek,
			stored.ID, week.WeekNumber, week.LessonDate, week.Target, week.Vocabulary, week.Phrase, week.Others, week.SheetID); err != nil {
			return nil, false, fmt.Errorf("insert report week: %w", err)
		}
		storedWeeks = append(storedWeeks, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit report create: %w", err)
	}
	commit = true
	stored.Weeks = storedWeeks
	return &stored, true, nil
}

// Update patches theme and status.
func (r *ReportRepository) Update(ctx context.Context, id int64, theme *string, status *models.ReportStatus) (*models.MonthlyReport, error) {
	sets := []string{"updated_at = $1"}
	args := []interface{}{time.Now().UTC()}
	if theme != nil {
		sets = append(sets, fmt.Sprintf("monthly_theme = $%d", len(args)+1))
		args = append(args, *theme)
	}
	if status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *status)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE monthly_reports SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), reportColumns)
	var stored models.MonthlyReport
	if err := r.db.GetContext(ctx, &stored, query, args...); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Delete removes a report; week rows cascade at the schema level.
func (r *ReportRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM monthly_reports WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
