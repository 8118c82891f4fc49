package dto

import (
	"github.com/finlink/reports-api/internal/models"
	"github.com/finlink/reports-api/internal/repository"
)

// CreateScheduleRequest defines a new recurring report.
type CreateScheduleRequest struct {
	Name         string              `json:"name" binding:"required,max=200"`
	Config       ReportConfigRequest `json:"config" binding:"required"`
	ScheduleType string              `json:"schedule_type" binding:"required,oneof=daily weekly monthly"`
	ScheduleDay  *int                `json:"schedule_day,omitempty"`
	ScheduleTime string              `json:"schedule_time" binding:"required,hhmm"`
	Recipients   []string            `json:"recipients" binding:"required,min=1,dive,email"`
	IsActive     *bool               `json:"is_active,omitempty"`
}

// ToModel builds the domain schedule. Active defaults to true.
func (r CreateScheduleRequest) ToModel() (*models.ScheduledReport, error) {
	config, err := r.Config.ToModel()
	if err != nil {
		return nil, err
	}
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &models.ScheduledReport{
		Name:         r.Name,
		Config:       config,
		ScheduleType: models.ScheduleType(r.ScheduleType),
		ScheduleDay:  r.ScheduleDay,
		ScheduleTime: r.ScheduleTime,
		Recipients:   models.Recipients(r.Recipients),
		IsActive:     active,
	}, nil
}

// UpdateScheduleRequest is a partial update; absent fields stay unchanged.
type UpdateScheduleRequest struct {
	Name         *string              `json:"name,omitempty" binding:"omitempty,max=200"`
	Config       *ReportConfigRequest `json:"config,omitempty"`
	ScheduleType *string              `json:"schedule_type,omitempty" binding:"omitempty,oneof=daily weekly monthly"`
	ScheduleDay  *int                 `json:"schedule_day,omitempty"`
	ClearDay     bool                 `json:"clear_day,omitempty"`
	ScheduleTime *string              `json:"schedule_time,omitempty" binding:"omitempty,hhmm"`
	Recipients   []string             `json:"recipients,omitempty" binding:"omitempty,min=1,dive,email"`
	IsActive     *bool                `json:"is_active,omitempty"`
}

// ToParams maps the request onto repository update parameters.
func (r UpdateScheduleRequest) ToParams() (repository.UpdateScheduleParams, error) {
	params := repository.UpdateScheduleParams{
		Name:         r.Name,
		ScheduleDay:  r.ScheduleDay,
		ClearDay:     r.ClearDay,
		ScheduleTime: r.ScheduleTime,
		IsActive:     r.IsActive,
	}
	if r.Config != nil {
		config, err := r.Config.ToModel()
		if err != nil {
			return repository.UpdateScheduleParams{}, err
		}
		params.Config = &config
	}
	if r.ScheduleType != nil {
		st := models.ScheduleType(*r.ScheduleType)
		params.ScheduleType = &st
	}
	if r.Recipients != nil {
		recipients := models.Recipients(r.Recipients)
		params.Recipients = &recipients
	}
	return params, nil
}

// ListSchedulesQuery captures list endpoint query parameters.
type ListSchedulesQuery struct {
	Active   *bool `form:"active"`
	Page     int   `form:"page,default=1"`
	PageSize int   `form:"page_size,default=20"`
}

// ListRunsQuery captures run history query parameters.
type ListRunsQuery struct {
	Limit int `form:"limit,default=20"`
}

// TickRequest optionally overrides the tick timestamp (RFC 3339). Used by
// operational tooling to replay a missed window.
type TickRequest struct {
	Now string `json:"now,omitempty"`
}
