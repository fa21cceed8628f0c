package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type memoryCacheStore struct {
	entries map[string][]byte
	sets    int
}

func newMemoryCacheStore() *memoryCacheStore {
	return &memoryCacheStore{entries: map[string][]byte{}}
}

func (m *memoryCacheStore) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	m.sets++
	return nil
}

func (m *memoryCacheStore) DeleteByPattern(_ context.Context, _ string) error {
	m.entries = map[string][]byte{}
	return nil
}

type fixedCounter struct {
	count int
	calls int
}

func (f *fixedCounter) CountActive(context.Context) (int, error) {
	f.calls++
	return f.count, nil
}

type fixedAttendanceCounter struct {
	counts map[models.AttendanceStatus]int
}

func (f *fixedAttendanceCounter) CountByStatusOn(context.Context, string) (map[models.AttendanceStatus]int, error) {
	return f.counts, nil
}

type fixedSheetCounter struct {
	count int
}

func (f *fixedSheetCounter) CountInRange(context.Context, string, string) (int, error) {
	return f.count, nil
}

func newDashboardFixture() (*DashboardService, *memoryCacheStore, *fixedCounter) {
	store := newMemoryCacheStore()
	cacheSvc := NewCacheService(store, nil, time.Minute, nil, true)
	classes := &fixedCounter{count: 4}
	svc := NewDashboardService(
		classes,
		&fixedCounter{count: 31},
		&fixedAttendanceCounter{counts: map[models.AttendanceStatus]int{
			models.AttendanceStatusPresent: 20,
			models.AttendanceStatusAbsent:  3,
		}},
		&fixedSheetCounter{count: 12},
		cacheSvc,
		time.Minute,
		nil,
	)
	return svc, store, classes
}

func TestDashboardStatsComputesAndCaches(t *testing.T) {
	svc, store, _ := newDashboardFixture()

	stats, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 4, stats.ActiveClasses)
	assert.Equal(t, 31, stats.ActiveStudents)
	assert.Equal(t, 20, stats.PresentToday)
	assert.Equal(t, 3, stats.AbsentToday)
	assert.Equal(t, 12, stats.SheetsThisMonth)
	assert.Equal(t, 1, store.sets)
}

func TestDashboardStatsServesCachedCopy(t *testing.T) {
	svc, _, classes := newDashboardFixture()

	_, _, err := svc.Stats(context.Background())
	require.NoError(t, err)

	stats, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 4, stats.ActiveClasses)
	assert.Equal(t, 1, classes.calls)
}

func TestDashboardInvalidateForcesRecompute(t *testing.T) {
	svc, _, classes := newDashboardFixture()

	_, _, err := svc.Stats(context.Background())
	require.NoError(t, err)

	svc.Invalidate(context.Background())

	_, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, classes.calls)
}

func TestDashboardStatsWithoutCacheBackend(t *testing.T) {
	cacheSvc := NewCacheService(nil, nil, time.Minute, nil, false)
	svc := NewDashboardService(
		&fixedCounter{count: 1},
		&fixedCounter{count: 2},
		&fixedAttendanceCounter{counts: map[models.AttendanceStatus]int{}},
		&fixedSheetCounter{},
		cacheSvc,
		time.Minute,
		nil,
	)

	stats, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 1, stats.ActiveClasses)
	assert.Equal(t, 0, stats.PresentToday)
}
