package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlink/reports-api/internal/models"
)

func timeAt(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func timePtr(value string) *time.Time {
	t := timeAt(value)
	return &t
}

func record(lender string, loan float64, mutate func(*models.ApplicationRecord)) models.ApplicationRecord {
	r := models.ApplicationRecord{
		Lender:      lender,
		Retailer:    "Bright Motors",
		BDM:         "J Smith",
		PrimeClass:  models.PrimeClassPrime,
		LoanAmount:  loan,
		SubmittedAt: timeAt("2026-02-10T12:00:00Z"),
	}
	if mutate != nil {
		mutate(&r)
	}
	return r
}

func approved(r *models.ApplicationRecord) {
	r.ApprovedAt = timePtr("2026-02-11T09:00:00Z")
}

func declined(r *models.ApplicationRecord) {
	r.DeclinedAt = timePtr("2026-02-11T09:00:00Z")
}

func live(r *models.ApplicationRecord) {
	r.ApprovedAt = timePtr("2026-02-11T09:00:00Z")
	r.ContractSignedAt = timePtr("2026-02-12T09:00:00Z")
	r.LiveAt = timePtr("2026-02-13T09:00:00Z")
}

func TestFilterRecordsConjunction(t *testing.T) {
	records := []models.ApplicationRecord{
		record("Alpha", 100, approved),
		record("Alpha", 200, declined),
		record("Beta", 50, approved),
	}

	t.Run("empty filter returns input unchanged", func(t *testing.T) {
		got := FilterRecords(records, models.ReportFilters{})
		assert.Len(t, got, 3)
	})

	t.Run("lender membership", func(t *testing.T) {
		got := FilterRecords(records, models.ReportFilters{Lenders: []string{"Alpha"}})
		require.Len(t, got, 2)
		for _, r := range got {
			assert.Equal(t, "Alpha", r.Lender)
		}
	})

	t.Run("membership is case sensitive", func(t *testing.T) {
		got := FilterRecords(records, models.ReportFilters{Lenders: []string{"alpha"}})
		assert.Empty(t, got)
	})

	t.Run("clauses combine with AND", func(t *testing.T) {
		got := FilterRecords(records, models.ReportFilters{
			Lenders:  []string{"Alpha"},
			Statuses: []string{string(models.StatusApproved)},
		})
		require.Len(t, got, 1)
		assert.Equal(t, float64(100), got[0].LoanAmount)
	})

	t.Run("date bounds are inclusive", func(t *testing.T) {
		exact := timeAt("2026-02-10T12:00:00Z")
		got := FilterRecords(records, models.ReportFilters{DateFrom: &exact, DateTo: &exact})
		assert.Len(t, got, 3)
	})

	t.Run("no matches yields empty slice, not error", func(t *testing.T) {
		got := FilterRecords(records, models.ReportFilters{Lenders: []string{"Gamma"}})
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("blank field value never satisfies membership", func(t *testing.T) {
		blank := record("", 10, nil)
		got := FilterRecords([]models.ApplicationRecord{blank}, models.ReportFilters{Lenders: []string{""}})
		assert.Empty(t, got)
	})

	t.Run("output never exceeds input size", func(t *testing.T) {
		filters := []models.ReportFilters{
			{},
			{Lenders: []string{"Alpha"}},
			{Statuses: []string{string(models.StatusDeclined)}},
			{Retailers: []string{"nope"}},
		}
		for _, f := range filters {
			assert.LessOrEqual(t, len(FilterRecords(records, f)), len(records))
		}
	})
}

func TestAggregateByLender(t *testing.T) {
	records := []models.ApplicationRecord{
		record("A", 100, approved),
		record("A", 200, declined),
		record("B", 50, approved),
	}

	rows := AggregateRecords(records, []models.GroupField{models.GroupByLender})
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "A", first.Keys[models.GroupByLender])
	assert.Equal(t, 2, first.Volume)
	assert.Equal(t, float64(300), first.LoanValue)
	assert.Equal(t, float64(50), first.ApprovalRate)

	second := rows[1]
	assert.Equal(t, "B", second.Keys[models.GroupByLender])
	assert.Equal(t, 1, second.Volume)
	assert.Equal(t, float64(50), second.LoanValue)
	assert.Equal(t, float64(100), second.ApprovalRate)
}

func TestAggregateVolumeSumEqualsInput(t *testing.T) {
	records := []models.ApplicationRecord{
		record("A", 100, approved),
		record("A", 200, declined),
		record("B", 50, live),
		record("C", 75, nil),
	}

	groupings := [][]models.GroupField{
		{models.GroupByLender},
		{models.GroupByStatus},
		{models.GroupByLender, models.GroupByStatus},
		{models.GroupByMonth},
	}
	for _, groupBy := range groupings {
		rows := AggregateRecords(records, groupBy)
		sum := 0
		for _, row := range rows {
			sum += row.Volume
		}
		assert.Equal(t, len(records), sum)
	}
}

func TestAggregateRatesBoundedAndZeroSafe(t *testing.T) {
	records := []models.ApplicationRecord{
		record("A", 100, nil),
		record("A", 100, approved),
		record("A", 100, declined),
		record("B", 100, live),
		record("B", 100, nil),
	}

	rows := AggregateRecords(records, []models.GroupField{models.GroupByLender})
	for _, row := range rows {
		assert.GreaterOrEqual(t, row.ApprovalRate, float64(0))
		assert.LessOrEqual(t, row.ApprovalRate, float64(100))
		assert.GreaterOrEqual(t, row.ExecutionRate, float64(0))
		assert.LessOrEqual(t, row.ExecutionRate, float64(100))
		assert.GreaterOrEqual(t, row.CompletionRate, float64(0))
		assert.LessOrEqual(t, row.CompletionRate, float64(100))
	}

	// A group of only submitted records has every denominator at zero.
	submittedOnly := AggregateRecords([]models.ApplicationRecord{record("Z", 10, nil)}, []models.GroupField{models.GroupByLender})
	require.Len(t, submittedOnly, 1)
	assert.Zero(t, submittedOnly[0].ApprovalRate)
	assert.Zero(t, submittedOnly[0].ExecutionRate)
	assert.Zero(t, submittedOnly[0].CompletionRate)
}

func TestAggregateStatusCountsCascade(t *testing.T) {
	records := []models.ApplicationRecord{
		record("A", 100, live),
		record("A", 100, func(r *models.ApplicationRecord) {
			r.ApprovedAt = timePtr("2026-02-11T09:00:00Z")
			r.ContractSignedAt = timePtr("2026-02-12T09:00:00Z")
		}),
		record("A", 100, approved),
		record("A", 100, declined),
	}

	rows := AggregateRecords(records, []models.GroupField{models.GroupByLender})
	require.Len(t, rows, 1)
	row := rows[0]

	// Live and Executed both count as approved and executed.
	assert.Equal(t, 3, row.ApprovedCount)
	assert.Equal(t, 2, row.ExecutedCount)
	assert.Equal(t, 1, row.LiveCount)
	assert.Equal(t, 1, row.DeclinedCount)
	assert.Equal(t, float64(75), row.ApprovalRate)
}

func TestAggregateDerivedTemporalKeys(t *testing.T) {
	records := []models.ApplicationRecord{
		record("A", 100, func(r *models.ApplicationRecord) { r.SubmittedAt = timeAt("2026-02-04T10:00:00Z") }), // Wednesday
		record("A", 100, func(r *models.ApplicationRecord) { r.SubmittedAt = timeAt("2026-02-08T10:00:00Z") }), // Sunday, same week
		record("A", 100, func(r *models.ApplicationRecord) { r.SubmittedAt = timeAt("2026-03-02T10:00:00Z") }), // Monday
	}

	byMonth := AggregateRecords(records, []models.GroupField{models.GroupByMonth})
	require.Len(t, byMonth, 2)
	assert.Equal(t, "2026-02", byMonth[0].Keys[models.GroupByMonth])
	assert.Equal(t, "2026-03", byMonth[1].Keys[models.GroupByMonth])

	byWeek := AggregateRecords(records, []models.GroupField{models.GroupByWeek})
	require.Len(t, byWeek, 2)
	// The first two submissions share the week starting Monday 2026-02-02.
	assert.Equal(t, "2026-02-02", byWeek[0].Keys[models.GroupByWeek])
	assert.Equal(t, "2026-03-02", byWeek[1].Keys[models.GroupByWeek])
}

func TestAggregateOrderingDeterministic(t *testing.T) {
	records := []models.ApplicationRecord{
		record("B", 10, nil),
		record("A", 20, nil),
		record("C", 30, nil),
	}

	first := AggregateRecords(records, []models.GroupField{models.GroupByLender})
	require.Len(t, first, 3)
	// Equal volume everywhere, so key order decides.
	assert.Equal(t, "A", first[0].Keys[models.GroupByLender])
	assert.Equal(t, "B", first[1].Keys[models.GroupByLender])
	assert.Equal(t, "C", first[2].Keys[models.GroupByLender])

	second := AggregateRecords(records, []models.GroupField{models.GroupByLender})
	assert.Equal(t, first, second)
}

func TestSummarize(t *testing.T) {
	records := []models.ApplicationRecord{
		record("A", 100, approved),
		record("A", 300, declined),
		record("B", 200, live),
	}

	summary := Summarize(records)
	assert.Equal(t, 3, summary.TotalRecords)
	assert.Equal(t, float64(600), summary.TotalLoanValue)
	assert.Equal(t, float64(200), summary.AverageLoan)
	assert.InDelta(t, 66.67, summary.ApprovalRate, 0.01)
	assert.Equal(t, float64(50), summary.ExecutionRate)
}

func TestSummarizeEmptyInput(t *testing.T) {
	summary := Summarize(nil)
	assert.Equal(t, models.ReportSummary{}, summary)
}
