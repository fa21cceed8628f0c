package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
)

func newMonthlyReportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func monthlyReportRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "class_id", "year", "month", "start_date", "end_date", "monthly_theme", "status", "created_by", "created_at", "updated_at"})
}

func reportWeekRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "monthly_report_id", "week_number", "lesson_date", "target", "vocabulary", "phrase", "others", "sheet_id"})
}

func TestReportRepositoryFindByRangeMissing(t *testing.T) {
	db, mock, cleanup := newMonthlyReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM monthly_reports WHERE class_id = $1 AND start_date = $2 AND end_date = $3")).
		WithArgs(int64(3), "2026-02-01", "2026-02-28").
		WillReturnRows(monthlyReportRows())

	report, err := repo.FindByRange(context.Background(), 3, "2026-02-01", "2026-02-28")
	require.NoError(t, err)
	require.Nil(t, report)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryCreateWithWeeks(t *testing.T) {
	db, mock, cleanup := newMonthlyReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO monthly_reports")).
		WithArgs(int64(3), 2026, 2, "2026-02-01", "2026-02-28", "", models.ReportStatusDraft, "user-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(monthlyReportRows().AddRow(10, 3, 2026, 2, "2026-02-01", "2026-02-28", "", "draft", "user-1", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO report_weeks")).
		WithArgs(int64(10), 1, "2026-02-03", "Colors", "red, blue", "I like red", "", int64(5)).
		WillReturnRows(reportWeekRows().AddRow(21, 10, 1, "2026-02-03", "Colors", "red, blue", "I like red", "", 5))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO report_weeks")).
		WithArgs(int64(10), 2, "2026-02-10", "Animals", "cat, dog", "", "", int64(6)).
		WillReturnRows(reportWeekRows().AddRow(22, 10, 2, "2026-02-10", "Animals", "cat, dog", "", "", 6))
	mock.ExpectCommit()

	report := &models.MonthlyReport{
		ClassID: 3, Year: 2026, Month: 2,
		StartDate: "2026-02-01", EndDate: "2026-02-28",
		Status: models.ReportStatusDraft, CreatedBy: "user-1",
	}
	weeks := []models.ReportWeek{
		{WeekNumber: 1, LessonDate: "2026-02-03", Target: "Colors", Vocabulary: "red, blue", Phrase: "I like red", SheetID: 5},
		{WeekNumber: 2, LessonDate: "2026-02-10", Target: "Animals", Vocabulary: "cat, dog", SheetID: 6},
	}
	stored, created, err := repo.CreateWithWeeks(context.Background(), report, weeks)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, int64(10), stored.ID)
	require.Len(t, stored.Weeks, 2)
	require.Equal(t, 2, stored.Weeks[1].WeekNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryCreateWithWeeksConflictReturnsExisting(t *testing.T) {
	db, mock, cleanup := newMonthlyReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO monthly_reports")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectQuery(regexp.QuoteMeta("FROM monthly_reports WHERE class_id = $1 AND start_date = $2 AND end_date = $3")).
		WithArgs(int64(3), "2026-02-01", "2026-02-28").
		WillReturnRows(monthlyReportRows().AddRow(10, 3, 2026, 2, "2026-02-01", "2026-02-28", "", "draft", "user-1", now, now))
	mock.ExpectRollback()

	report := &models.MonthlyReport{
		ClassID: 3, Year: 2026, Month: 2,
		StartDate: "2026-02-01", EndDate: "2026-02-28",
		Status: models.ReportStatusDraft, CreatedBy: "user-1",
	}
	stored, created, err := repo.CreateWithWeeks(context.Background(), report, nil)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, int64(10), stored.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListWeeksOrdered(t *testing.T) {
	db, mock, cleanup := newMonthlyReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := reportWeekRows().
		AddRow(21, 10, 1, "2026-02-03", "Colors", "red, blue", "", "", 5).
		AddRow(22, 10, 2, "2026-02-10", "Animals", "cat, dog", "", "", 6)
	mock.ExpectQuery(regexp.QuoteMeta("FROM report_weeks WHERE monthly_report_id = $1 ORDER BY week_number")).
		WithArgs(int64(10)).
		WillReturnRows(rows)

	weeks, err := repo.ListWeeks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, weeks, 2)
	require.Equal(t, 1, weeks[0].WeekNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}
