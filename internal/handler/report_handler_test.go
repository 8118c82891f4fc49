package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlink/reports-api/internal/dto"
	"github.com/finlink/reports-api/internal/models"
	"github.com/finlink/reports-api/internal/service"
)

type stubFetcher struct {
	records []models.ApplicationRecord
	err     error
}

func (s *stubFetcher) Fetch(_ context.Context, _ models.ReportType, _ models.ReportFilters) ([]models.ApplicationRecord, error) {
	return s.records, s.err
}

func mustTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func reportRouter(fetcher *stubFetcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	reports := service.NewReportService(fetcher, nil, nil, nil)
	h := NewReportHandler(reports, nil, nil)

	router := gin.New()
	router.POST("/reports/generate", h.Generate)
	return router
}

func TestGenerateEndpointSuccess(t *testing.T) {
	fetcher := &stubFetcher{records: []models.ApplicationRecord{
		{Lender: "Alpha", LoanAmount: 100, SubmittedAt: mustTime("2026-02-10T12:00:00Z")},
		{Lender: "Beta", LoanAmount: 50, SubmittedAt: mustTime("2026-02-11T12:00:00Z")},
	}}
	router := reportRouter(fetcher)

	recorder := performJSON(t, router, http.MethodPost, "/reports/generate", map[string]interface{}{
		"type":     "ad",
		"group_by": []string{"lender"},
	})

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp dto.GenerateReportResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Rows, 2)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 2, resp.Summary.TotalRecords)
	assert.Empty(t, resp.Error)
}

func TestGenerateEndpointReportsFailureInPayload(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("store offline")}
	router := reportRouter(fetcher)

	recorder := performJSON(t, router, http.MethodPost, "/reports/generate", map[string]interface{}{
		"type": "ad",
	})

	// Generation failures keep HTTP 200; the body carries the outcome.
	require.Equal(t, http.StatusOK, recorder.Code)
	var resp dto.GenerateReportResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "store offline")
	assert.Nil(t, resp.Summary)
}

func TestGenerateEndpointRejectsUnknownType(t *testing.T) {
	router := reportRouter(&stubFetcher{})

	recorder := performJSON(t, router, http.MethodPost, "/reports/generate", map[string]interface{}{
		"type": "quarterly",
	})

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp dto.GenerateReportResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "quarterly")
}

func TestGenerateEndpointRejectsMalformedBody(t *testing.T) {
	router := reportRouter(&stubFetcher{})

	req := httptest.NewRequest(http.MethodPost, "/reports/generate", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp dto.GenerateReportResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}
