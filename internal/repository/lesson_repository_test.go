package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
)

func newLessonRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func expectSheetProbe(mock sqlmock.Sqlmock, found bool) {
	rows := sqlmock.NewRows([]string{"to_regclass"})
	if found {
		rows.AddRow("teacher_comment_sheets")
	} else {
		rows.AddRow(nil)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT to_regclass($1)::text")).
		WithArgs("public.teacher_comment_sheets").
		WillReturnRows(rows)
}

func sheetRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "class_id", "teacher_id", "date", "target_topic", "vocabulary", "mistakes", "strengths", "comments", "created_at", "updated_at"})
}

func TestLessonRepositoryUsesCurrentTable(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()

	expectSheetProbe(mock, true)
	repo := NewLessonRepository(db, nil)
	require.Equal(t, "teacher_comment_sheets", repo.Table())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryFallsBackToLegacyTable(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()

	expectSheetProbe(mock, false)
	repo := NewLessonRepository(db, nil)
	require.Equal(t, "lesson_reports", repo.Table())

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM lesson_reports WHERE class_id = $1 AND date >= $2 AND date <= $3 ORDER BY date")).
		WithArgs(int64(3), "2026-02-01", "2026-02-28").
		WillReturnRows(sheetRows().AddRow(1, 3, nil, "2026-02-03", "Colors", "red, blue", "", "", "", now, now))

	sheets, err := repo.ListByClassRange(context.Background(), 3, "2026-02-01", "2026-02-28")
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListByClassRangeOrdersByDate(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()

	expectSheetProbe(mock, true)
	repo := NewLessonRepository(db, nil)

	now := time.Now()
	rows := sheetRows().
		AddRow(1, 3, nil, "2026-02-03", "Colors", "red, blue", "", "", "", now, now).
		AddRow(2, 3, nil, "2026-02-10", "Animals", "cat, dog", "", "", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM teacher_comment_sheets WHERE class_id = $1 AND date >= $2 AND date <= $3 ORDER BY date")).
		WithArgs(int64(3), "2026-02-01", "2026-02-28").
		WillReturnRows(rows)

	sheets, err := repo.ListByClassRange(context.Background(), 3, "2026-02-01", "2026-02-28")
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	require.Equal(t, "2026-02-03", sheets[0].Date)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()

	expectSheetProbe(mock, true)
	repo := NewLessonRepository(db, nil)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO teacher_comment_sheets")).
		WithArgs(int64(3), nil, "2026-02-03", "Colors", "red, blue", "says bu for blue", "good recall", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sheetRows().AddRow(5, 3, nil, "2026-02-03", "Colors", "red, blue", "says bu for blue", "good recall", "", now, now))

	stored, err := repo.Upsert(context.Background(), &models.CommentSheet{
		ClassID:     3,
		Date:        "2026-02-03",
		TargetTopic: "Colors",
		Vocabulary:  "red, blue",
		Mistakes:    "says bu for blue",
		Strengths:   "good recall",
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), stored.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
