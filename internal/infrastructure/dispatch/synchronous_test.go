package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"datawatch/internal/domain/check"
	"datawatch/internal/infrastructure/persistence/sqlite/model"
	"datawatch/internal/infrastructure/persistence/sqlite/repository"
	"datawatch/internal/infrastructure/persistence/sqlite/uow"
	"datawatch/internal/ports"
	"datawatch/internal/registry"
	"datawatch/internal/usecase/monitor"
)

func setupBackend(t *testing.T, checks ...check.Check) (*SynchronousBackend, ports.ResultRepository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Result{},
		&model.ResultStatusHistory{},
		&model.CheckExecution{},
		&model.ResultAssignedUser{},
		&model.ResultAssignedGroup{},
		&model.ResultTag{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	reg := registry.New()
	for _, c := range checks {
		reg.MustRegister(context.Background(), c)
	}

	repo := repository.NewResultRepository(db)
	runner := monitor.NewRunner(repo, uow.NewUnitOfWork(db))
	return NewSynchronousBackend(reg, repo, runner), repo
}

// diskCheck flags disks above a usage percentage.
type diskCheck struct {
	usage        map[string]int
	refreshed    []string
	refreshError error
}

func (c *diskCheck) Meta() check.Meta {
	return check.Meta{Title: "disk usage", RunEvery: "@every 1h", Queue: "io"}
}

func (c *diskCheck) Generate(_ context.Context) ([]any, error) {
	ids := make([]string, 0, len(c.usage))
	for id := range c.usage {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	payloads := make([]any, 0, len(ids))
	for _, id := range ids {
		payloads = append(payloads, id)
	}
	return payloads, nil
}

func (c *diskCheck) Check(_ context.Context, payload any) (*check.Response, error) {
	usage := c.usage[payload.(string)]
	resp := check.NewResponse()
	switch {
	case usage >= 95:
		resp.SetStatus(check.StatusCritical)
	case usage >= 80:
		resp.SetStatus(check.StatusWarning)
	default:
		resp.SetStatus(check.StatusOK)
	}
	resp.Set("usage_percent", usage)
	return resp, nil
}

func (c *diskCheck) Identifier(payload any) (string, error) {
	id, ok := payload.(string)
	if !ok {
		return "", fmt.Errorf("unexpected payload type %T", payload)
	}
	return id, nil
}

func (c *diskCheck) Payload(_ context.Context, identifier string) (any, error) {
	if _, ok := c.usage[identifier]; !ok {
		return nil, check.ErrPayloadNotFound
	}
	return identifier, nil
}

func (c *diskCheck) UserForcedRefresh(_ context.Context, payload any) error {
	if c.refreshError != nil {
		return c.refreshError
	}
	c.refreshed = append(c.refreshed, payload.(string))
	return nil
}

// manualDiskCheck only runs for explicitly named disks.
type manualDiskCheck struct{ diskCheck }

func (c *manualDiskCheck) Generate(_ context.Context) ([]any, error) {
	return nil, check.ErrNotImplemented
}

func TestEnqueueRunsEveryGeneratedPayload(t *testing.T) {
	chk := &diskCheck{usage: map[string]int{"sda": 50, "sdb": 85, "sdc": 97}}
	backend, repo := setupBackend(t, chk)
	ctx := context.Background()
	slug := registry.Slug(chk)

	if err := backend.Enqueue(ctx, slug, false); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	results, err := repo.ListResults(ctx, ports.ResultFilter{Slug: slug})
	if err != nil {
		t.Fatalf("ListResults() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}

	byID := make(map[string]check.Status)
	for _, r := range results {
		byID[r.Identifier] = r.Status
	}
	if byID["sda"] != check.StatusOK || byID["sdb"] != check.StatusWarning || byID["sdc"] != check.StatusCritical {
		t.Fatalf("statuses = %v", byID)
	}
}

func TestEnqueueWithoutGenerateIsNoOp(t *testing.T) {
	chk := &manualDiskCheck{diskCheck{usage: map[string]int{"sda": 50}}}
	backend, repo := setupBackend(t, chk)
	ctx := context.Background()
	slug := registry.Slug(chk)

	if err := backend.Enqueue(ctx, slug, false); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	results, err := repo.ListResults(ctx, ports.ResultFilter{Slug: slug})
	if err != nil {
		t.Fatalf("ListResults() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %d, want 0", len(results))
	}
}

func TestEnqueueUnregisteredSlugIsNoOp(t *testing.T) {
	backend, _ := setupBackend(t)

	if err := backend.Enqueue(context.Background(), "example/gone.Check", false); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
}

func TestEnqueueRoutesRunsThroughConfiguredDispatcher(t *testing.T) {
	chk := &diskCheck{usage: map[string]int{"sda": 50, "sdb": 85}}
	backend, repo := setupBackend(t, chk)
	top := &recordingDispatcher{}
	backend.SetDispatcher(top)
	ctx := context.Background()
	slug := registry.Slug(chk)

	if err := backend.Enqueue(ctx, slug, true); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if len(top.runs) != 2 {
		t.Fatalf("dispatched runs = %d, want 2", len(top.runs))
	}
	for _, req := range top.runs {
		if req.Queue != "io" {
			t.Fatalf("run queue = %q, want io", req.Queue)
		}
		if !req.Async {
			t.Fatalf("run request lost the async flag: %+v", req)
		}
	}

	// Nothing executed inline; the runs only exist as dispatch requests.
	results, err := repo.ListResults(ctx, ports.ResultFilter{Slug: slug})
	if err != nil {
		t.Fatalf("ListResults() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %d, want 0 before the dispatched runs execute", len(results))
	}
}

func TestRefreshRoutesRunsThroughConfiguredDispatcher(t *testing.T) {
	chk := &diskCheck{usage: map[string]int{"sda": 85}}
	backend, _ := setupBackend(t, chk)
	ctx := context.Background()
	slug := registry.Slug(chk)

	if err := backend.Enqueue(ctx, slug, false); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	top := &recordingDispatcher{}
	backend.SetDispatcher(top)
	if err := backend.Refresh(ctx, slug, true); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if len(top.runs) != 1 || top.runs[0].Queue != "io" || !top.runs[0].Async {
		t.Fatalf("dispatched runs = %+v, want one async request on queue io", top.runs)
	}
}

func TestRefreshReEvaluatesStoredResults(t *testing.T) {
	chk := &diskCheck{usage: map[string]int{"sda": 85}}
	backend, repo := setupBackend(t, chk)
	ctx := context.Background()
	slug := registry.Slug(chk)

	if err := backend.Enqueue(ctx, slug, false); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	chk.usage["sda"] = 40
	if err := backend.Refresh(ctx, slug, false); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	result, err := repo.GetResult(ctx, slug, "sda")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if result.Status != check.StatusOK {
		t.Fatalf("status after refresh = %s, want ok", result.Status)
	}
}

func TestRunStaleIdentifierDeletesResult(t *testing.T) {
	chk := &diskCheck{usage: map[string]int{"sda": 85}}
	backend, repo := setupBackend(t, chk)
	ctx := context.Background()
	slug := registry.Slug(chk)

	if err := backend.Enqueue(ctx, slug, false); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// The disk disappeared between Generate and Run.
	delete(chk.usage, "sda")
	if err := backend.Run(ctx, ports.RunRequest{Slug: slug, Identifier: "sda"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, err := repo.GetResult(ctx, slug, "sda"); !errors.Is(err, ports.ErrResultNotFound) {
		t.Fatalf("GetResult() after stale run error = %v, want ErrResultNotFound", err)
	}
}

func TestRunForcedRefreshFiresHook(t *testing.T) {
	chk := &diskCheck{usage: map[string]int{"sda": 85}}
	backend, _ := setupBackend(t, chk)
	ctx := context.Background()
	slug := registry.Slug(chk)

	req := ports.RunRequest{Slug: slug, Identifier: "sda", UserForcedRefresh: true}
	if err := backend.Run(ctx, req); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(chk.refreshed) != 1 || chk.refreshed[0] != "sda" {
		t.Fatalf("refreshed = %v, want [sda]", chk.refreshed)
	}

	chk.refreshError = errors.New("refresh rejected")
	if err := backend.Run(ctx, req); err == nil {
		t.Fatalf("Run() with failing hook succeeded")
	}
}
