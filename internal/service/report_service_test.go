package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type fakeReportRepo struct {
	existing    *models.MonthlyReport
	stored      *models.MonthlyReport
	storedWeeks []models.ReportWeek
	creates     int
	// raceLoser simulates another request inserting between the range
	// check and the insert: FindByRange reports nothing, CreateWithWeeks
	// resolves the conflict to raceWinner.
	raceLoser  bool
	raceWinner *models.MonthlyReport
}

func (f *fakeReportRepo) GetByID(_ context.Context, id int64) (*models.MonthlyReport, error) {
	if f.stored != nil && f.stored.ID == id {
		return f.stored, nil
	}
	if f.existing != nil && f.existing.ID == id {
		return f.existing, nil
	}
	return nil, errNotFoundRow
}

func (f *fakeReportRepo) FindByRange(context.Context, int64, string, string) (*models.MonthlyReport, error) {
	return f.existing, nil
}

func (f *fakeReportRepo) ListByClass(context.Context, int64) ([]models.MonthlyReport, error) {
	return nil, nil
}

func (f *fakeReportRepo) ListWeeks(context.Context, int64) ([]models.ReportWeek, error) {
	return f.storedWeeks, nil
}

func (f *fakeReportRepo) CreateWithWeeks(_ context.Context, report *models.MonthlyReport, weeks []models.ReportWeek) (*models.MonthlyReport, bool, error) {
	f.creates++
	if f.raceLoser {
		return f.raceWinner, false, nil
	}
	stored := *report
	stored.ID = 10
	stored.Weeks = weeks
	f.stored = &stored
	f.storedWeeks = weeks
	f.existing = &stored
	return &stored, true, nil
}

func (f *fakeReportRepo) Update(context.Context, int64, *string, *models.ReportStatus) (*models.MonthlyReport, error) {
	return f.stored, nil
}

func (f *fakeReportRepo) Delete(context.Context, int64) error {
	return nil
}

type fakeLessonRange struct {
	sheets []models.CommentSheet
}

func (f *fakeLessonRange) ListByClassRange(context.Context, int64, string, string) ([]models.CommentSheet, error) {
	return f.sheets, nil
}

type fakeSummarizer struct {
	summaries []models.StudentAttendanceSummary
}

func (f *fakeSummarizer) StudentSummaries(context.Context, int64, string, string) ([]models.StudentAttendanceSummary, error) {
	return f.summaries, nil
}

var errNotFoundRow = appErrors.Clone(appErrors.ErrNotFound, "row missing")

func februarySheets() []models.CommentSheet {
	return []models.CommentSheet{
		{ID: 5, ClassID: 3, Date: "2026-02-03", TargetTopic: "Colors", Vocabulary: "red\nblue", Mistakes: "says bu for blue", Strengths: "good recall", Comments: "lively class"},
		{ID: 6, ClassID: 3, Date: "2026-02-10", TargetTopic: "Animals", Vocabulary: "cat\ndog", Mistakes: "mixes cat and dog", Strengths: "good recall"},
		{ID: 7, ClassID: 3, Date: "2026-02-17", TargetTopic: "Colors", Vocabulary: "red\ngreen", Mistakes: "", Strengths: ""},
	}
}

func newReportService(repo *fakeReportRepo, sheets []models.CommentSheet) *ReportService {
	return NewReportService(
		repo,
		&fakeLessonRange{sheets: sheets},
		&fakeClassRepo{class: &models.Class{ID: 3, Name: "Koala"}},
		&fakeSummarizer{},
		nil, nil,
	)
}

func TestBuildWeeksPositionalNumbering(t *testing.T) {
	weeks := buildWeeks(februarySheets())
	require.Len(t, weeks, 3)
	assert.Equal(t, 1, weeks[0].WeekNumber)
	assert.Equal(t, 2, weeks[1].WeekNumber)
	assert.Equal(t, 3, weeks[2].WeekNumber)
	assert.Equal(t, "2026-02-03", weeks[0].LessonDate)
	assert.Equal(t, "good recall | lively class", weeks[0].Others)
	assert.Equal(t, "good recall", weeks[1].Others)
	assert.Equal(t, "", weeks[2].Others)
}

func TestBuildRollupDedupsKeepingOrder(t *testing.T) {
	rollup := buildRollup(februarySheets())
	assert.Equal(t, []string{"Colors", "Animals"}, rollup.TopicsCovered)
	assert.Equal(t, "red\nblue\ncat\ndog\ngreen", rollup.AllVocabulary)
	assert.Equal(t, "says bu for blue\nmixes cat and dog", rollup.CommonMistakes)
	assert.Equal(t, "good recall", rollup.OverallStrengths)
}

func TestGenerateCreatesOnce(t *testing.T) {
	repo := &fakeReportRepo{}
	svc := newReportService(repo, februarySheets())

	first, err := svc.Generate(context.Background(), GenerateReportRequest{ClassID: 3, Year: 2026, Month: 2}, "user-1")
	require.NoError(t, err)
	assert.False(t, first.AlreadyExists)
	assert.Equal(t, int64(10), first.Report.ID)
	assert.Equal(t, "2026-02-01", first.Report.StartDate)
	assert.Equal(t, "2026-02-28", first.Report.EndDate)
	require.Len(t, first.Report.Weeks, 3)

	second, err := svc.Generate(context.Background(), GenerateReportRequest{ClassID: 3, Year: 2026, Month: 2}, "user-2")
	require.NoError(t, err)
	assert.True(t, second.AlreadyExists)
	assert.Equal(t, first.Report.ID, second.Report.ID)
	assert.Equal(t, 1, repo.creates)
}

func TestGenerateLosingRaceReportsExisting(t *testing.T) {
	winner := &models.MonthlyReport{ID: 10, ClassID: 3, StartDate: "2026-02-01", EndDate: "2026-02-28"}
	repo := &fakeReportRepo{raceLoser: true, raceWinner: winner, storedWeeks: []models.ReportWeek{{ID: 21, MonthlyReportID: 10, WeekNumber: 1}}}
	svc := newReportService(repo, februarySheets())

	res, err := svc.Generate(context.Background(), GenerateReportRequest{ClassID: 3, Year: 2026, Month: 2}, "user-1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyExists)
	assert.Equal(t, int64(10), res.Report.ID)
	require.Len(t, res.Report.Weeks, 1)
}

func TestGenerateRejectsEmptyRange(t *testing.T) {
	svc := newReportService(&fakeReportRepo{}, nil)
	_, err := svc.Generate(context.Background(), GenerateReportRequest{ClassID: 3, Year: 2026, Month: 2}, "user-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestGenerateRequiresRangeOrMonth(t *testing.T) {
	svc := newReportService(&fakeReportRepo{}, februarySheets())
	_, err := svc.Generate(context.Background(), GenerateReportRequest{ClassID: 3}, "user-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestPreviewDoesNotPersist(t *testing.T) {
	repo := &fakeReportRepo{}
	svc := newReportService(repo, februarySheets())

	preview, err := svc.Preview(context.Background(), GenerateReportRequest{ClassID: 3, Year: 2026, Month: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, repo.creates)
	require.Len(t, preview.Weeks, 3)
	assert.Equal(t, []string{"Colors", "Animals"}, preview.Rollup.TopicsCovered)
	assert.Equal(t, "2026-02-01", preview.StartDate)
}
