package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlink/reports-api/internal/models"
	"github.com/finlink/reports-api/internal/repository"
	"github.com/finlink/reports-api/pkg/mailer"
)

type fakeScheduleStore struct {
	mu      sync.Mutex
	due     []models.ScheduledReport
	claims  map[string]time.Time
	refuse  map[string]bool
	claimed []string
}

func newFakeScheduleStore(due ...models.ScheduledReport) *fakeScheduleStore {
	return &fakeScheduleStore{
		due:    due,
		claims: map[string]time.Time{},
		refuse: map[string]bool{},
	}
}

func (s *fakeScheduleStore) FindDue(_ context.Context, _ time.Time) ([]models.ScheduledReport, error) {
	return s.due, nil
}

func (s *fakeScheduleStore) Claim(_ context.Context, id string, _, nextRun time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refuse[id] {
		return false, nil
	}
	s.claims[id] = nextRun
	s.claimed = append(s.claimed, id)
	return true, nil
}

type fakeRunStore struct {
	mu     sync.Mutex
	nextID int
	sealed map[string]repository.SealRunParams
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{sealed: map[string]repository.SealRunParams{}}
}

func (s *fakeRunStore) Create(_ context.Context, scheduleID string) (*models.ScheduledReportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return &models.ScheduledReportRun{
		ID:         scheduleID + "-run",
		ScheduleID: scheduleID,
		Status:     models.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}, nil
}

func (s *fakeRunStore) Seal(_ context.Context, runID string, params repository.SealRunParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed[runID] = params
	return nil
}

type fakeGenerator struct {
	failFor map[string]error
}

func (g *fakeGenerator) Generate(_ context.Context, config models.ReportConfig) (*ReportResult, error) {
	if g.failFor != nil {
		if err, ok := g.failFor[string(config.Type)+":"+joinLenders(config)]; ok {
			return nil, err
		}
	}
	return &ReportResult{
		Rows:    []models.GroupedRow{{Keys: map[models.GroupField]string{models.GroupByLender: "A"}, Volume: 2}},
		Summary: models.ReportSummary{TotalRecords: 2, TotalLoanValue: 300},
	}, nil
}

func joinLenders(config models.ReportConfig) string {
	if len(config.Filters.Lenders) > 0 {
		return config.Filters.Lenders[0]
	}
	return ""
}

type fakeRenderer struct{}

func (fakeRenderer) RenderReport(_ *ReportResult, _ models.ReportConfig, _ models.ReportFormat, _ string) ([]byte, string, error) {
	return []byte("header\nrow"), "text/csv", nil
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent int
}

func (m *fakeMailer) Send(_ context.Context, _ []string, _, _ string, _ *mailer.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent++
	return nil
}

func dueSchedule(id, lender string) models.ScheduledReport {
	next := timeAt("2026-02-03T09:00:00Z")
	return models.ScheduledReport{
		ID:   id,
		Name: "Weekly Lender Report",
		Config: models.ReportConfig{
			Type:    models.ReportTypeAD,
			GroupBy: []models.GroupField{models.GroupByLender},
			Filters: models.ReportFilters{Lenders: []string{lender}},
		},
		ScheduleType: models.ScheduleDaily,
		ScheduleTime: "09:00",
		Recipients:   models.Recipients{"ops@example.com"},
		IsActive:     true,
		NextRunAt:    &next,
	}
}

func TestRunTickIsolatesFailures(t *testing.T) {
	good := dueSchedule("good", "A")
	bad := dueSchedule("bad", "B")

	schedules := newFakeScheduleStore(good, bad)
	runs := newFakeRunStore()
	generator := &fakeGenerator{failFor: map[string]error{"ad:B": errors.New("store unavailable")}}
	mail := &fakeMailer{}

	runner := NewSchedulerService(schedules, runs, generator, fakeRenderer{}, mail, nil, nil, 4, time.Second)
	result, err := runner.RunTick(context.Background(), timeAt("2026-02-03T10:00:00Z"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	// Both schedules were claimed, so both advanced their next run.
	assert.Len(t, schedules.claims, 2)
	for _, next := range schedules.claims {
		assert.True(t, next.After(timeAt("2026-02-03T10:00:00Z")))
	}

	goodRun, ok := runs.sealed["good-run"]
	require.True(t, ok)
	assert.Equal(t, models.RunStatusSuccess, goodRun.Status)
	require.NotNil(t, goodRun.RecordCount)
	assert.Equal(t, 2, *goodRun.RecordCount)
	require.NotNil(t, goodRun.Summary)
	assert.Equal(t, float64(300), goodRun.Summary.TotalLoanValue)
	assert.True(t, goodRun.EmailSent)

	badRun, ok := runs.sealed["bad-run"]
	require.True(t, ok)
	assert.Equal(t, models.RunStatusFailed, badRun.Status)
	require.NotNil(t, badRun.ErrorMessage)
	assert.Contains(t, *badRun.ErrorMessage, "store unavailable")
	assert.False(t, badRun.EmailSent)
}

func TestRunTickEmailFailureDoesNotFailRun(t *testing.T) {
	schedules := newFakeScheduleStore(dueSchedule("s1", "A"))
	runs := newFakeRunStore()
	mail := &fakeMailer{err: errors.New("ses throttled")}

	runner := NewSchedulerService(schedules, runs, &fakeGenerator{}, fakeRenderer{}, mail, nil, nil, 2, time.Second)
	result, err := runner.RunTick(context.Background(), timeAt("2026-02-03T10:00:00Z"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Zero(t, result.Failed)

	run := runs.sealed["s1-run"]
	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.False(t, run.EmailSent)
}

func TestRunTickSkipsUnclaimedSchedules(t *testing.T) {
	first := dueSchedule("s1", "A")
	second := dueSchedule("s2", "A")

	schedules := newFakeScheduleStore(first, second)
	schedules.refuse["s2"] = true
	runs := newFakeRunStore()

	runner := NewSchedulerService(schedules, runs, &fakeGenerator{}, fakeRenderer{}, &fakeMailer{}, nil, nil, 2, time.Second)
	result, err := runner.RunTick(context.Background(), timeAt("2026-02-03T10:00:00Z"))
	require.NoError(t, err)

	// s2 was claimed by another tick, so it was neither executed nor counted.
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, []string{"s1"}, schedules.claimed)
	_, sealed := runs.sealed["s2-run"]
	assert.False(t, sealed)
}

func TestRunTickScheduleWithoutRecipientsCompletesRun(t *testing.T) {
	schedule := dueSchedule("s1", "A")
	schedule.Recipients = nil

	schedules := newFakeScheduleStore(schedule)
	runs := newFakeRunStore()
	mail := &fakeMailer{}

	runner := NewSchedulerService(schedules, runs, &fakeGenerator{}, fakeRenderer{}, mail, nil, nil, 2, time.Second)
	result, err := runner.RunTick(context.Background(), timeAt("2026-02-03T10:00:00Z"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	run := runs.sealed["s1-run"]
	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.False(t, run.EmailSent)
	assert.Zero(t, mail.sent)
}

func TestRunTickWithoutMailerCompletesRuns(t *testing.T) {
	schedules := newFakeScheduleStore(dueSchedule("s1", "A"))
	runs := newFakeRunStore()

	runner := NewSchedulerService(schedules, runs, &fakeGenerator{}, fakeRenderer{}, nil, nil, nil, 2, time.Second)
	result, err := runner.RunTick(context.Background(), timeAt("2026-02-03T10:00:00Z"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	run := runs.sealed["s1-run"]
	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.False(t, run.EmailSent)
}

func TestRunTickNoDueSchedules(t *testing.T) {
	runner := NewSchedulerService(newFakeScheduleStore(), newFakeRunStore(), &fakeGenerator{}, fakeRenderer{}, nil, nil, nil, 2, time.Second)
	result, err := runner.RunTick(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, &TickResult{}, result)
}
