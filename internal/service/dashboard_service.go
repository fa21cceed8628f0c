package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/pkg/dates"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type classCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type studentCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type attendanceCounter interface {
	CountByStatusOn(ctx context.Context, date string) (map[models.AttendanceStatus]int, error)
}

type sheetCounter interface {
	CountInRange(ctx context.Context, dateFrom, dateTo string) (int, error)
}

const dashboardCacheKey = "dashboard:stats"

// DashboardService composes the landing page counters, cache-aside.
type DashboardService struct {
	classes    classCounter
	students   studentCounter
	attendance attendanceCounter
	sheets     sheetCounter
	cache      *CacheService
	logger     *zap.Logger
	now        func() time.Time
	cacheTTL   time.Duration
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(classes classCounter, students studentCounter, attendance attendanceCounter, sheets sheetCounter, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		classes:    classes,
		students:   students,
		attendance: attendance,
		sheets:     sheets,
		cache:      cache,
		logger:     logger,
		now:        time.Now,
		cacheTTL:   cacheTTL,
	}
}

// Stats returns the dashboard counters and whether they came from cache.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, bool, error) {
	var cached models.DashboardStats
	if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	now := s.now()
	today := dates.FormatDate(now)
	monthStart, monthEnd := dates.MonthBounds(now.Year(), int(now.Month()))

	activeClasses, err := s.classes.CountActive(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}
	activeStudents, err := s.students.CountActive(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	todayCounts, err := s.attendance.CountByStatusOn(ctx, today)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}
	sheetsThisMonth, err := s.sheets.CountInRange(ctx, monthStart, monthEnd)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count comment sheets")
	}

	stats := &models.DashboardStats{
		ActiveClasses:   activeClasses,
		ActiveStudents:  activeStudents,
		PresentToday:    todayCounts[models.AttendanceStatusPresent],
		AbsentToday:     todayCounts[models.AttendanceStatusAbsent],
		SheetsThisMonth: sheetsThisMonth,
		GeneratedAt:     now.UTC(),
	}
	if err := s.cache.Set(ctx, dashboardCacheKey, stats, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard stats", zap.Error(err))
	}
	return stats, false, nil
}

// Invalidate drops the cached stats, called after writes that move counters.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
