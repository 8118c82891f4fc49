package service

import (
	"sort"
	"strings"
	"time"

	"github.com/finlink/reports-api/internal/models"
)

// groupKeySeparator joins composite group-key parts. The unit separator
// control character cannot appear in lender, retailer or product names.
const groupKeySeparator = "\x1f"

// FilterRecords applies a conjunction of optional filter clauses. Date bounds
// are inclusive; membership clauses test exact case-sensitive equality. An
// empty clause constrains nothing.
func FilterRecords(records []models.ApplicationRecord, filters models.ReportFilters) []models.ApplicationRecord {
	filtered := make([]models.ApplicationRecord, 0, len(records))
	for _, record := range records {
		if matchesFilters(record, filters) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

func matchesFilters(record models.ApplicationRecord, filters models.ReportFilters) bool {
	if filters.DateFrom != nil && record.SubmittedAt.Before(*filters.DateFrom) {
		return false
	}
	if filters.DateTo != nil && record.SubmittedAt.After(*filters.DateTo) {
		return false
	}
	if !memberOf(filters.Lenders, record.Lender) {
		return false
	}
	if !memberOf(filters.Retailers, record.Retailer) {
		return false
	}
	if !memberOf(filters.BDMs, record.BDM) {
		return false
	}
	if !memberOf(filters.FinanceProducts, record.FinanceProduct) {
		return false
	}
	if !memberOf(filters.PrimeClasses, record.PrimeClass) {
		return false
	}
	if !memberOf(filters.Statuses, string(record.Status())) {
		return false
	}
	return true
}

func memberOf(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	if value == "" {
		return false
	}
	for _, candidate := range allowed {
		if candidate == value {
			return true
		}
	}
	return false
}

// groupKeyValue resolves one grouping dimension for a record. Month and week
// are derived from the submission date; week is the date of the Monday of the
// week containing the submission.
func groupKeyValue(record models.ApplicationRecord, field models.GroupField) string {
	switch field {
	case models.GroupByLender:
		return record.Lender
	case models.GroupByRetailer:
		return record.Retailer
	case models.GroupByBDM:
		return record.BDM
	case models.GroupByFinanceProduct:
		return record.FinanceProduct
	case models.GroupByPrimeClass:
		return record.PrimeClass
	case models.GroupByStatus:
		return string(record.Status())
	case models.GroupByMonth:
		return record.SubmittedAt.Format("2006-01")
	case models.GroupByWeek:
		return weekStart(record.SubmittedAt).Format("2006-01-02")
	default:
		return ""
	}
}

func weekStart(t time.Time) time.Time {
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, t.Location())
}

type groupAccumulator struct {
	key     string
	keys    map[models.GroupField]string
	records []models.ApplicationRecord
}

// AggregateRecords partitions records by the composite key over the grouping
// fields, in caller order, and computes the full metric set per group. The
// requested metric list only controls emitted columns downstream; the engine
// always computes everything so derived rates stay consistent.
//
// Rows are ordered by descending volume, ties broken by composite-key lexical
// order, so repeated runs over the same input produce identical output.
func AggregateRecords(records []models.ApplicationRecord, groupBy []models.GroupField) []models.GroupedRow {
	groups := make(map[string]*groupAccumulator)
	order := make([]string, 0)

	for _, record := range records {
		parts := make([]string, len(groupBy))
		keys := make(map[models.GroupField]string, len(groupBy))
		for i, field := range groupBy {
			value := groupKeyValue(record, field)
			parts[i] = value
			keys[field] = value
		}
		key := strings.Join(parts, groupKeySeparator)

		acc, ok := groups[key]
		if !ok {
			acc = &groupAccumulator{key: key, keys: keys}
			groups[key] = acc
			order = append(order, key)
		}
		acc.records = append(acc.records, record)
	}

	type keyedRow struct {
		key string
		row models.GroupedRow
	}
	keyed := make([]keyedRow, 0, len(groups))
	for _, key := range order {
		keyed = append(keyed, keyedRow{key: key, row: buildGroupedRow(groups[key])})
	}

	sort.SliceStable(keyed, func(i, j int) bool {
		if keyed[i].row.Volume != keyed[j].row.Volume {
			return keyed[i].row.Volume > keyed[j].row.Volume
		}
		return keyed[i].key < keyed[j].key
	})

	rows := make([]models.GroupedRow, len(keyed))
	for i, kr := range keyed {
		rows[i] = kr.row
	}
	return rows
}

type metricCounts struct {
	volume     int
	loanValue  float64
	commission float64
	approved   int
	declined   int
	executed   int
	live       int
}

func countRecords(records []models.ApplicationRecord) metricCounts {
	var c metricCounts
	c.volume = len(records)
	for _, record := range records {
		c.loanValue += record.LoanAmount
		c.commission += record.CommissionAmount
		switch record.Status() {
		case models.StatusApproved:
			c.approved++
		case models.StatusExecuted:
			c.approved++
			c.executed++
		case models.StatusLive:
			c.approved++
			c.executed++
			c.live++
		case models.StatusDeclined:
			c.declined++
		}
	}
	return c
}

func buildGroupedRow(acc *groupAccumulator) models.GroupedRow {
	c := countRecords(acc.records)
	return models.GroupedRow{
		Keys:           acc.keys,
		Volume:         c.volume,
		LoanValue:      c.loanValue,
		Commission:     c.commission,
		AverageLoan:    safeDivide(c.loanValue, float64(c.volume)),
		ApprovedCount:  c.approved,
		DeclinedCount:  c.declined,
		ExecutedCount:  c.executed,
		LiveCount:      c.live,
		ApprovalRate:   safeRate(c.approved, c.approved+c.declined),
		ExecutionRate:  safeRate(c.executed, c.approved),
		CompletionRate: safeRate(c.live, c.executed),
	}
}

// Summarize computes whole-result totals and rates over the filtered set,
// independent of any grouping. Zero denominators yield 0, never NaN.
func Summarize(records []models.ApplicationRecord) models.ReportSummary {
	c := countRecords(records)
	return models.ReportSummary{
		TotalRecords:    c.volume,
		TotalLoanValue:  c.loanValue,
		TotalCommission: c.commission,
		AverageLoan:     safeDivide(c.loanValue, float64(c.volume)),
		ApprovalRate:    safeRate(c.approved, c.approved+c.declined),
		ExecutionRate:   safeRate(c.executed, c.approved),
	}
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func safeRate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator) * 100
}
