package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlink/reports-api/internal/models"
)

func TestFiltersToModelWidensUpperBound(t *testing.T) {
	filters, err := ReportFiltersRequest{
		DateFrom: "2026-02-01",
		DateTo:   "2026-02-28",
	}.ToModel()
	require.NoError(t, err)

	require.NotNil(t, filters.DateFrom)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *filters.DateFrom)

	require.NotNil(t, filters.DateTo)
	// A record submitted late on the bound day still matches.
	lateSameDay := time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC)
	assert.False(t, filters.DateTo.Before(lateSameDay))
	assert.True(t, filters.DateTo.Before(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestFiltersToModelRejectsBadDates(t *testing.T) {
	_, err := ReportFiltersRequest{DateFrom: "02/01/2026"}.ToModel()
	assert.Error(t, err)

	_, err = ReportFiltersRequest{DateTo: "yesterday"}.ToModel()
	assert.Error(t, err)
}

func TestConfigToModel(t *testing.T) {
	config, err := ReportConfigRequest{
		Type:    "ap",
		GroupBy: []string{"lender", "month"},
		Metrics: []string{"volume", "approval_rate"},
		Filters: ReportFiltersRequest{Lenders: []string{"Alpha"}},
	}.ToModel()
	require.NoError(t, err)

	assert.Equal(t, models.ReportTypeAP, config.Type)
	assert.Equal(t, []models.GroupField{models.GroupByLender, models.GroupByMonth}, config.GroupBy)
	assert.Equal(t, []models.Metric{models.MetricVolume, models.MetricApprovalRate}, config.Metrics)
	assert.Equal(t, []string{"Alpha"}, config.Filters.Lenders)
}
