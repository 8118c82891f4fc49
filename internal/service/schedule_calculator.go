package service

import (
	"fmt"
	"time"

	"github.com/finlink/reports-api/internal/models"
)

// NextRun computes the next execution instant for a schedule, strictly after
// now. It is a pure function: no clock reads, no I/O.
//
// Monthly schedules whose day exceeds the length of the target month clamp to
// that month's last day, so a day-31 schedule still fires every month.
func NextRun(schedule *models.ScheduledReport, now time.Time) (time.Time, error) {
	hour, minute, err := parseScheduleTime(schedule.ScheduleTime)
	if err != nil {
		return time.Time{}, err
	}

	switch schedule.ScheduleType {
	case models.ScheduleDaily:
		return nextDaily(now, hour, minute), nil
	case models.ScheduleWeekly:
		if schedule.ScheduleDay == nil {
			return time.Time{}, fmt.Errorf("weekly schedule missing schedule_day")
		}
		return nextWeekly(now, *schedule.ScheduleDay, hour, minute), nil
	case models.ScheduleMonthly:
		if schedule.ScheduleDay == nil {
			return time.Time{}, fmt.Errorf("monthly schedule missing schedule_day")
		}
		return nextMonthly(now, *schedule.ScheduleDay, hour, minute), nil
	default:
		return time.Time{}, fmt.Errorf("unknown schedule type %q", schedule.ScheduleType)
	}
}

func parseScheduleTime(value string) (int, int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid schedule_time %q: %w", value, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

func nextDaily(now time.Time, hour, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func nextWeekly(now time.Time, weekday, hour, minute int) time.Time {
	daysAhead := (weekday - int(now.Weekday()) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day()+daysAhead, hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

func nextMonthly(now time.Time, day, hour, minute int) time.Time {
	candidate := monthlyCandidate(now.Year(), now.Month(), day, hour, minute, now.Location())
	if !candidate.After(now) {
		// Normalize to the first of the month before advancing so a late day
		// value cannot skip short months.
		next := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
		candidate = monthlyCandidate(next.Year(), next.Month(), day, hour, minute, now.Location())
	}
	return candidate
}

func monthlyCandidate(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
