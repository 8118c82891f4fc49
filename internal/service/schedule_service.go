package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finlink/reports-api/internal/models"
	"github.com/finlink/reports-api/internal/repository"
	apperrors "github.com/finlink/reports-api/pkg/errors"
)

// ScheduleService manages scheduled report definitions and their run history.
type ScheduleService struct {
	schedules *repository.ScheduleRepository
	runs      *repository.RunRepository
	logger    *zap.Logger
}

// NewScheduleService constructs the service.
func NewScheduleService(schedules *repository.ScheduleRepository, runs *repository.RunRepository, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{schedules: schedules, runs: runs, logger: logger}
}

// ValidateSchedule rejects malformed recurrence definitions. Recipients are
// required here even though the runner tolerates schedules without them: a
// schedule that delivers to nobody is almost always a mistake at the API
// boundary, while rows whose recipients were emptied out-of-band still run
// and seal with email_sent false.
func ValidateSchedule(schedule *models.ScheduledReport) error {
	if schedule.Name == "" {
		return apperrors.Clone(apperrors.ErrValidation, "name is required")
	}
	if err := ValidateConfig(schedule.Config); err != nil {
		return err
	}
	if !schedule.ScheduleType.Valid() {
		return apperrors.Clone(apperrors.ErrValidation, fmt.Sprintf("unknown schedule type %q", schedule.ScheduleType))
	}
	switch schedule.ScheduleType {
	case models.ScheduleWeekly:
		if schedule.ScheduleDay == nil || *schedule.ScheduleDay < 0 || *schedule.ScheduleDay > 6 {
			return apperrors.Clone(apperrors.ErrValidation, "weekly schedules need schedule_day between 0 and 6")
		}
	case models.ScheduleMonthly:
		if schedule.ScheduleDay == nil || *schedule.ScheduleDay < 1 || *schedule.ScheduleDay > 31 {
			return apperrors.Clone(apperrors.ErrValidation, "monthly schedules need schedule_day between 1 and 31")
		}
	}
	if _, _, err := parseScheduleTime(schedule.ScheduleTime); err != nil {
		return apperrors.Clone(apperrors.ErrValidation, "schedule_time must be HH:MM")
	}
	if len(schedule.Recipients) == 0 {
		return apperrors.Clone(apperrors.ErrValidation, "at least one recipient is required")
	}
	return nil
}

// Create validates, computes the first next_run_at and persists the schedule.
func (s *ScheduleService) Create(ctx context.Context, schedule *models.ScheduledReport) (*models.ScheduledReport, error) {
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}

	next, err := NextRun(schedule, time.Now().UTC())
	if err != nil {
		return nil, apperrors.Clone(apperrors.ErrValidation, err.Error())
	}
	schedule.NextRunAt = &next

	if err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, err
	}
	s.logger.Sugar().Infow("scheduled report created", "schedule_id", schedule.ID, "next_run_at", next)
	return schedule, nil
}

// Get returns one schedule.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduledReport, error) {
	return s.schedules.GetByID(ctx, id)
}

// List returns schedules with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, activeOnly bool, page, pageSize int) ([]models.ScheduledReport, *models.Pagination, error) {
	schedules, total, err := s.schedules.List(ctx, activeOnly, page, pageSize)
	if err != nil {
		return nil, nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return schedules, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update applies a partial update. When any recurrence field changes or the
// schedule is re-activated the next run instant is recomputed.
func (s *ScheduleService) Update(ctx context.Context, id string, params repository.UpdateScheduleParams) (*models.ScheduledReport, error) {
	current, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := *current
	if params.Name != nil {
		merged.Name = *params.Name
	}
	if params.Config != nil {
		merged.Config = *params.Config
	}
	if params.ScheduleType != nil {
		merged.ScheduleType = *params.ScheduleType
	}
	if params.ScheduleDay != nil {
		merged.ScheduleDay = params.ScheduleDay
	} else if params.ClearDay {
		merged.ScheduleDay = nil
	}
	if params.ScheduleTime != nil {
		merged.ScheduleTime = *params.ScheduleTime
	}
	if params.Recipients != nil {
		merged.Recipients = *params.Recipients
	}
	if params.IsActive != nil {
		merged.IsActive = *params.IsActive
	}
	if err := ValidateSchedule(&merged); err != nil {
		return nil, err
	}

	recurrenceChanged := params.ScheduleType != nil || params.ScheduleDay != nil ||
		params.ClearDay || params.ScheduleTime != nil
	reactivated := params.IsActive != nil && *params.IsActive && !current.IsActive
	if recurrenceChanged || reactivated {
		next, err := NextRun(&merged, time.Now().UTC())
		if err != nil {
			return nil, apperrors.Clone(apperrors.ErrValidation, err.Error())
		}
		params.NextRunAt = &next
	}

	return s.schedules.Update(ctx, id, params)
}

// Delete removes a schedule.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	return s.schedules.Delete(ctx, id)
}

// Runs returns recent run history for a schedule.
func (s *ScheduleService) Runs(ctx context.Context, scheduleID string, limit int) ([]models.ScheduledReportRun, error) {
	if _, err := s.schedules.GetByID(ctx, scheduleID); err != nil {
		return nil, err
	}
	return s.runs.ListBySchedule(ctx, scheduleID, limit)
}
