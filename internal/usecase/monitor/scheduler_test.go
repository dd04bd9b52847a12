package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"datawatch/internal/domain/check"
	"datawatch/internal/infrastructure/persistence/sqlite/repository"
	"datawatch/internal/ports"
	"datawatch/internal/registry"
)

type staticCheck struct {
	meta check.Meta
}

func (c *staticCheck) Meta() check.Meta { return c.meta }

func (c *staticCheck) Generate(_ context.Context) ([]any, error) {
	return nil, check.ErrNotImplemented
}

func (c *staticCheck) Check(_ context.Context, _ any) (*check.Response, error) {
	return check.NewResponseWithStatus(check.StatusOK), nil
}

func (c *staticCheck) Identifier(payload any) (string, error) {
	id, ok := payload.(string)
	if !ok {
		return "", errors.New("payload is not a string identifier")
	}
	return id, nil
}

func (c *staticCheck) Payload(_ context.Context, identifier string) (any, error) {
	return identifier, nil
}

type dailyCheck struct{ staticCheck }

type hourlyCheck struct{ staticCheck }

type manualCheck struct{ staticCheck }

type brokenScheduleCheck struct{ staticCheck }

func newDailyCheck() *dailyCheck {
	return &dailyCheck{staticCheck{meta: check.Meta{Title: "daily", RunEvery: "@every 24h"}}}
}

func newHourlyCheck() *hourlyCheck {
	return &hourlyCheck{staticCheck{meta: check.Meta{Title: "hourly", RunEvery: "@every 1h"}}}
}

func newManualCheck() *manualCheck {
	return &manualCheck{staticCheck{meta: check.Meta{Title: "manual"}}}
}

func newBrokenScheduleCheck() *brokenScheduleCheck {
	return &brokenScheduleCheck{staticCheck{meta: check.Meta{Title: "broken", RunEvery: "whenever"}}}
}

type fakeDispatcher struct {
	enqueued    []string
	refreshed   []string
	runs        []ports.RunRequest
	enqueueErrs map[string]error
}

func (d *fakeDispatcher) Enqueue(_ context.Context, slug string, _ bool) error {
	if err := d.enqueueErrs[slug]; err != nil {
		return err
	}
	d.enqueued = append(d.enqueued, slug)
	return nil
}

func (d *fakeDispatcher) Refresh(_ context.Context, slug string, _ bool) error {
	d.refreshed = append(d.refreshed, slug)
	return nil
}

func (d *fakeDispatcher) Run(_ context.Context, req ports.RunRequest) error {
	d.runs = append(d.runs, req)
	return nil
}

func setupScheduler(t *testing.T, checks ...check.Check) (*Scheduler, *fakeDispatcher, ports.ResultRepository) {
	t.Helper()

	reg := registry.New()
	for _, c := range checks {
		reg.MustRegister(context.Background(), c)
	}

	repo := repository.NewResultRepository(setupDB(t))
	dispatcher := &fakeDispatcher{}
	scheduler := NewScheduler(reg, repo, dispatcher)
	return scheduler, dispatcher, repo
}

func TestRunChecksFirstSweepDispatchesAndRecords(t *testing.T) {
	chk := newDailyCheck()
	scheduler, dispatcher, repo := setupScheduler(t, chk)
	ctx := context.Background()

	sweep := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return sweep }

	if err := scheduler.RunChecks(ctx, false, ""); err != nil {
		t.Fatalf("RunChecks() error = %v", err)
	}

	slug := registry.Slug(chk)
	if len(dispatcher.enqueued) != 1 || dispatcher.enqueued[0] != slug {
		t.Fatalf("enqueued = %v, want [%s]", dispatcher.enqueued, slug)
	}

	lastRuns, err := repo.LastExecutions(ctx)
	if err != nil {
		t.Fatalf("LastExecutions() error = %v", err)
	}
	if got, ok := lastRuns[slug]; !ok || !got.Equal(sweep) {
		t.Fatalf("recorded execution = %v, want %v", got, sweep)
	}
}

func TestRunChecksExactBoundaryIsDue(t *testing.T) {
	chk := newDailyCheck()
	scheduler, dispatcher, repo := setupScheduler(t, chk)
	ctx := context.Background()

	sweep := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.RecordExecution(ctx, registry.Slug(chk), sweep.Add(-24*time.Hour)); err != nil {
		t.Fatalf("RecordExecution() error = %v", err)
	}

	scheduler.now = func() time.Time { return sweep }
	if err := scheduler.RunChecks(ctx, false, ""); err != nil {
		t.Fatalf("RunChecks() error = %v", err)
	}
	if len(dispatcher.enqueued) != 1 {
		t.Fatalf("enqueued = %v, want one dispatch at the period boundary", dispatcher.enqueued)
	}
}

func TestRunChecksWithinPeriodIsNotDue(t *testing.T) {
	chk := newDailyCheck()
	scheduler, dispatcher, repo := setupScheduler(t, chk)
	ctx := context.Background()

	sweep := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.RecordExecution(ctx, registry.Slug(chk), sweep.Add(-12*time.Hour)); err != nil {
		t.Fatalf("RecordExecution() error = %v", err)
	}

	scheduler.now = func() time.Time { return sweep }
	if err := scheduler.RunChecks(ctx, false, ""); err != nil {
		t.Fatalf("RunChecks() error = %v", err)
	}
	if len(dispatcher.enqueued) != 0 {
		t.Fatalf("enqueued = %v, want none within the period", dispatcher.enqueued)
	}
}

func TestRunChecksForceIgnoresSchedule(t *testing.T) {
	chk := newDailyCheck()
	scheduler, dispatcher, repo := setupScheduler(t, chk)
	ctx := context.Background()

	sweep := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.RecordExecution(ctx, registry.Slug(chk), sweep.Add(-time.Minute)); err != nil {
		t.Fatalf("RecordExecution() error = %v", err)
	}

	scheduler.now = func() time.Time { return sweep }
	if err := scheduler.RunChecks(ctx, true, ""); err != nil {
		t.Fatalf("RunChecks() error = %v", err)
	}
	if len(dispatcher.enqueued) != 1 {
		t.Fatalf("enqueued = %v, want forced dispatch", dispatcher.enqueued)
	}
}

func TestRunChecksSkipsUnscheduledAndMalformed(t *testing.T) {
	daily := newDailyCheck()
	scheduler, dispatcher, _ := setupScheduler(t, newManualCheck(), newBrokenScheduleCheck(), daily)
	ctx := context.Background()

	if err := scheduler.RunChecks(ctx, false, ""); err != nil {
		t.Fatalf("RunChecks() error = %v", err)
	}

	slug := registry.Slug(daily)
	if len(dispatcher.enqueued) != 1 || dispatcher.enqueued[0] != slug {
		t.Fatalf("enqueued = %v, want only %s", dispatcher.enqueued, slug)
	}
}

func TestRunChecksSlugFilter(t *testing.T) {
	daily := newDailyCheck()
	hourly := newHourlyCheck()
	scheduler, dispatcher, _ := setupScheduler(t, daily, hourly)
	ctx := context.Background()

	if err := scheduler.RunChecks(ctx, false, registry.Slug(hourly)); err != nil {
		t.Fatalf("RunChecks() error = %v", err)
	}
	if len(dispatcher.enqueued) != 1 || dispatcher.enqueued[0] != registry.Slug(hourly) {
		t.Fatalf("enqueued = %v, want only the filtered slug", dispatcher.enqueued)
	}
}

func TestRunChecksEnqueueFailureDoesNotAbortSweep(t *testing.T) {
	daily := newDailyCheck()
	hourly := newHourlyCheck()
	scheduler, dispatcher, repo := setupScheduler(t, daily, hourly)
	ctx := context.Background()

	dispatcher.enqueueErrs = map[string]error{registry.Slug(daily): errors.New("broker down")}

	if err := scheduler.RunChecks(ctx, false, ""); err != nil {
		t.Fatalf("RunChecks() error = %v", err)
	}
	if len(dispatcher.enqueued) != 1 || dispatcher.enqueued[0] != registry.Slug(hourly) {
		t.Fatalf("enqueued = %v, want the healthy check dispatched", dispatcher.enqueued)
	}

	lastRuns, err := repo.LastExecutions(ctx)
	if err != nil {
		t.Fatalf("LastExecutions() error = %v", err)
	}
	if _, ok := lastRuns[registry.Slug(daily)]; ok {
		t.Fatalf("execution recorded for failed enqueue")
	}
}
