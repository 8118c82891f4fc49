package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ScheduleType enumerates the supported recurrence kinds.
type ScheduleType string

const (
	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"
)

// Valid reports whether the schedule type is known.
func (t ScheduleType) Valid() bool {
	switch t {
	case ScheduleDaily, ScheduleWeekly, ScheduleMonthly:
		return true
	default:
		return false
	}
}

// Recipients is a JSON-encoded list of delivery addresses.
type Recipients []string

// Value marshals the recipient list for persistence.
func (r Recipients) Value() (driver.Value, error) {
	if r == nil {
		r = Recipients{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal recipients: %w", err)
	}
	return data, nil
}

// Scan unmarshals a stored recipient list.
func (r *Recipients) Scan(value interface{}) error {
	if value == nil {
		*r = Recipients{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for Recipients", value)
	}
	if len(data) == 0 {
		*r = Recipients{}
		return nil
	}
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("unmarshal recipients: %w", err)
	}
	return nil
}

// ScheduledReport is a persistent recurrence definition. While IsActive is
// true, NextRunAt always points strictly into the future; it is recomputed
// after every run, success or failure.
type ScheduledReport struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Config       ReportConfig `db:"config" json:"config"`
	ScheduleType ScheduleType `db:"schedule_type" json:"schedule_type"`
	// ScheduleDay is the day-of-week (0 = Sunday) for weekly schedules and the
	// day-of-month (1-31) for monthly ones; nil for daily.
	ScheduleDay  *int       `db:"schedule_day" json:"schedule_day,omitempty"`
	ScheduleTime string     `db:"schedule_time" json:"schedule_time"`
	Recipients   Recipients `db:"recipients" json:"recipients"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastRunAt    *time.Time `db:"last_run_at" json:"last_run_at,omitempty"`
	NextRunAt    *time.Time `db:"next_run_at" json:"next_run_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// RunStatus captures the strictly linear run lifecycle:
// running -> {success, failed}, terminal.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// ScheduledReportRun is one execution record. Created in running state when
// the execution begins and sealed exactly once at the end.
type ScheduledReportRun struct {
	ID           string         `db:"id" json:"id"`
	ScheduleID   string         `db:"schedule_id" json:"schedule_id"`
	Status       RunStatus      `db:"status" json:"status"`
	RecordCount  *int           `db:"record_count" json:"record_count,omitempty"`
	Summary      *ReportSummary `db:"summary" json:"summary,omitempty"`
	ErrorMessage *string        `db:"error_message" json:"error_message,omitempty"`
	EmailSent    bool           `db:"email_sent" json:"email_sent"`
	StartedAt    time.Time      `db:"started_at" json:"started_at"`
	CompletedAt  *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}
