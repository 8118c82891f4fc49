package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType distinguishes which base record set a report runs over.
type ReportType string

const (
	// ReportTypeAP covers Approved & Paid records.
	ReportTypeAP ReportType = "ap"
	// ReportTypeAD covers Application Decision records.
	ReportTypeAD ReportType = "ad"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// GroupField is a closed set of grouping dimensions. Month and week are
// derived from the submission date; the rest are raw categorical fields.
type GroupField string

const (
	GroupByLender         GroupField = "lender"
	GroupByRetailer       GroupField = "retailer"
	GroupByBDM            GroupField = "bdm"
	GroupByFinanceProduct GroupField = "finance_product"
	GroupByPrimeClass     GroupField = "prime_class"
	GroupByStatus         GroupField = "status"
	GroupByMonth          GroupField = "month"
	GroupByWeek           GroupField = "week"
)

// Valid reports whether the field is a known grouping dimension.
func (f GroupField) Valid() bool {
	switch f {
	case GroupByLender, GroupByRetailer, GroupByBDM, GroupByFinanceProduct,
		GroupByPrimeClass, GroupByStatus, GroupByMonth, GroupByWeek:
		return true
	default:
		return false
	}
}

// Metric names a reportable column. The engine always computes the full set;
// the metric list only controls which columns the surrounding report emits.
type Metric string

const (
	MetricVolume         Metric = "volume"
	MetricLoanValue      Metric = "loan_value"
	MetricCommission     Metric = "commission"
	MetricAverageLoan    Metric = "average_loan"
	MetricApprovedCount  Metric = "approved_count"
	MetricDeclinedCount  Metric = "declined_count"
	MetricExecutedCount  Metric = "executed_count"
	MetricLiveCount      Metric = "live_count"
	MetricApprovalRate   Metric = "approval_rate"
	MetricExecutionRate  Metric = "execution_rate"
	MetricCompletionRate Metric = "completion_rate"
)

// Valid reports whether the metric is part of the closed set.
func (m Metric) Valid() bool {
	switch m {
	case MetricVolume, MetricLoanValue, MetricCommission, MetricAverageLoan,
		MetricApprovedCount, MetricDeclinedCount, MetricExecutedCount,
		MetricLiveCount, MetricApprovalRate, MetricExecutionRate, MetricCompletionRate:
		return true
	default:
		return false
	}
}

// ReportFilters is a conjunction of optional clauses. A nil date bound or an
// empty list means the clause is absent, never "match nothing".
type ReportFilters struct {
	DateFrom        *time.Time `json:"date_from,omitempty"`
	DateTo          *time.Time `json:"date_to,omitempty"`
	Lenders         []string   `json:"lenders,omitempty"`
	Retailers       []string   `json:"retailers,omitempty"`
	BDMs            []string   `json:"bdms,omitempty"`
	FinanceProducts []string   `json:"finance_products,omitempty"`
	PrimeClasses    []string   `json:"prime_classes,omitempty"`
	Statuses        []string   `json:"statuses,omitempty"`
}

// ReportConfig is the full definition of one report: what to run it over, how
// to group, and which columns to emit. Persisted as JSONB when embedded in a
// scheduled report.
type ReportConfig struct {
	Type    ReportType    `json:"type"`
	GroupBy []GroupField  `json:"group_by,omitempty"`
	Metrics []Metric      `json:"metrics,omitempty"`
	Filters ReportFilters `json:"filters"`
}

// Value marshals the config to JSON for persistence.
func (c ReportConfig) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal report config: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the config struct.
func (c *ReportConfig) Scan(value interface{}) error {
	if value == nil {
		*c = ReportConfig{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportConfig", value)
	}
	if len(data) == 0 {
		*c = ReportConfig{}
		return nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal report config: %w", err)
	}
	return nil
}

// GroupedRow is one aggregation output unit: the group-key values for the
// active dimensions plus the full metric set.
type GroupedRow struct {
	Keys           map[GroupField]string `json:"keys"`
	Volume         int                   `json:"volume"`
	LoanValue      float64               `json:"loan_value"`
	Commission     float64               `json:"commission"`
	AverageLoan    float64               `json:"average_loan"`
	ApprovedCount  int                   `json:"approved_count"`
	DeclinedCount  int                   `json:"declined_count"`
	ExecutedCount  int                   `json:"executed_count"`
	LiveCount      int                   `json:"live_count"`
	ApprovalRate   float64               `json:"approval_rate"`
	ExecutionRate  float64               `json:"execution_rate"`
	CompletionRate float64               `json:"completion_rate"`
}

// ReportSummary is the whole-result aggregate, independent of grouping.
type ReportSummary struct {
	TotalRecords    int     `json:"total_records"`
	TotalLoanValue  float64 `json:"total_loan_value"`
	TotalCommission float64 `json:"total_commission"`
	AverageLoan     float64 `json:"average_loan"`
	ApprovalRate    float64 `json:"approval_rate"`
	ExecutionRate   float64 `json:"execution_rate"`
}

// Value marshals the summary to JSON for run-history snapshots.
func (s ReportSummary) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal report summary: %w", err)
	}
	return data, nil
}

// Scan unmarshals a stored summary snapshot.
func (s *ReportSummary) Scan(value interface{}) error {
	if value == nil {
		*s = ReportSummary{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportSummary", value)
	}
	if len(data) == 0 {
		*s = ReportSummary{}
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal report summary: %w", err)
	}
	return nil
}
