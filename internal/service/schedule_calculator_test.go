package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlink/reports-api/internal/models"
)

func schedule(scheduleType models.ScheduleType, day *int, at string) *models.ScheduledReport {
	return &models.ScheduledReport{
		ScheduleType: scheduleType,
		ScheduleDay:  day,
		ScheduleTime: at,
	}
}

func intPtr(v int) *int { return &v }

func TestNextRunDaily(t *testing.T) {
	daily := schedule(models.ScheduleDaily, nil, "09:00")

	t.Run("before today's slot", func(t *testing.T) {
		now := timeAt("2026-02-03T08:00:00Z")
		next, err := NextRun(daily, now)
		require.NoError(t, err)
		assert.Equal(t, timeAt("2026-02-03T09:00:00Z"), next)
	})

	t.Run("after today's slot", func(t *testing.T) {
		now := timeAt("2026-02-03T10:00:00Z")
		next, err := NextRun(daily, now)
		require.NoError(t, err)
		assert.Equal(t, timeAt("2026-02-04T09:00:00Z"), next)
	})

	t.Run("exactly at the slot advances a day", func(t *testing.T) {
		now := timeAt("2026-02-03T09:00:00Z")
		next, err := NextRun(daily, now)
		require.NoError(t, err)
		assert.Equal(t, timeAt("2026-02-04T09:00:00Z"), next)
	})
}

func TestNextRunWeekly(t *testing.T) {
	monday := schedule(models.ScheduleWeekly, intPtr(1), "09:00")

	t.Run("from a Tuesday lands on the following Monday", func(t *testing.T) {
		now := timeAt("2026-02-03T00:00:00Z")
		next, err := NextRun(monday, now)
		require.NoError(t, err)
		assert.Equal(t, timeAt("2026-02-09T09:00:00Z"), next)
	})

	t.Run("same weekday before the slot stays today", func(t *testing.T) {
		now := timeAt("2026-02-02T08:00:00Z")
		next, err := NextRun(monday, now)
		require.NoError(t, err)
		assert.Equal(t, timeAt("2026-02-02T09:00:00Z"), next)
	})

	t.Run("same weekday after the slot advances a week", func(t *testing.T) {
		now := timeAt("2026-02-02T09:30:00Z")
		next, err := NextRun(monday, now)
		require.NoError(t, err)
		assert.Equal(t, timeAt("2026-02-09T09:00:00Z"), next)
	})

	t.Run("missing schedule_day is rejected", func(t *testing.T) {
		_, err := NextRun(schedule(models.ScheduleWeekly, nil, "09:00"), timeAt("2026-02-03T00:00:00Z"))
		assert.Error(t, err)
	})
}

func TestNextRunMonthly(t *testing.T) {
	t.Run("day ahead this month", func(t *testing.T) {
		next, err := NextRun(schedule(models.ScheduleMonthly, intPtr(15), "09:00"), timeAt("2026-02-03T00:00:00Z"))
		require.NoError(t, err)
		assert.Equal(t, timeAt("2026-02-15T09:00:00Z"), next)
	})

	t.Run("day already passed rolls to next month", func(t *testing.T) {
		next, err := NextRun(schedule(models.ScheduleMonthly, intPtr(1), "09:00"), timeAt("2026-02-03T00:00:00Z"))
		require.NoError(t, err)
		assert.Equal(t, timeAt("2026-03-01T09:00:00Z"), next)
	})

	t.Run("same day after the slot rolls to next month", func(t *testing.T) {
		next, err := NextRun(schedule(models.ScheduleMonthly, intPtr(3), "09:00"), timeAt("2026-02-03T10:00:00Z"))
		require.NoError(t, err)
		assert.Equal(t, timeAt("2026-03-03T09:00:00Z"), next)
	})

	t.Run("day 31 clamps to the last day of February", func(t *testing.T) {
		next, err := NextRun(schedule(models.ScheduleMonthly, intPtr(31), "09:00"), timeAt("2026-02-01T00:00:00Z"))
		require.NoError(t, err)
		assert.Equal(t, timeAt("2026-02-28T09:00:00Z"), next)
	})

	t.Run("clamped month does not get skipped when rolling over", func(t *testing.T) {
		next, err := NextRun(schedule(models.ScheduleMonthly, intPtr(31), "09:00"), timeAt("2026-01-31T10:00:00Z"))
		require.NoError(t, err)
		assert.Equal(t, timeAt("2026-02-28T09:00:00Z"), next)
	})
}

func TestNextRunAlwaysStrictlyFuture(t *testing.T) {
	schedules := []*models.ScheduledReport{
		schedule(models.ScheduleDaily, nil, "00:00"),
		schedule(models.ScheduleDaily, nil, "23:59"),
		schedule(models.ScheduleWeekly, intPtr(0), "12:00"),
		schedule(models.ScheduleWeekly, intPtr(6), "12:00"),
		schedule(models.ScheduleMonthly, intPtr(1), "06:30"),
		schedule(models.ScheduleMonthly, intPtr(31), "06:30"),
	}
	nows := []time.Time{
		timeAt("2026-01-01T00:00:00Z"),
		timeAt("2026-02-28T23:59:00Z"),
		timeAt("2026-06-15T12:00:00Z"),
		timeAt("2026-12-31T23:00:00Z"),
	}

	for _, s := range schedules {
		for _, now := range nows {
			next, err := NextRun(s, now)
			require.NoError(t, err)
			assert.True(t, next.After(now), "next=%s now=%s type=%s", next, now, s.ScheduleType)
		}
	}
}

func TestNextRunInvalidInputs(t *testing.T) {
	_, err := NextRun(schedule(models.ScheduleDaily, nil, "late"), timeAt("2026-02-03T00:00:00Z"))
	assert.Error(t, err)

	_, err = NextRun(schedule("hourly", nil, "09:00"), timeAt("2026-02-03T00:00:00Z"))
	assert.Error(t, err)
}
