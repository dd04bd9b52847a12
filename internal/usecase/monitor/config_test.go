package monitor

import (
	"context"
	"testing"

	"datawatch/internal/domain/check"
	"datawatch/internal/infrastructure/persistence/sqlite/repository"
	"datawatch/internal/infrastructure/persistence/sqlite/uow"
	"datawatch/internal/registry"
)

// configuredBalanceCheck reads its thresholds from the effective per-result
// configuration instead of fixed fields.
type configuredBalanceCheck struct {
	*balanceCheck
	resolver *ConfigResolver
}

func (c *configuredBalanceCheck) DefaultConfig() map[string]any {
	return map[string]any{
		"critical_below": float64(0),
		"warning_below":  float64(100),
	}
}

func (c *configuredBalanceCheck) Check(ctx context.Context, payload any) (*check.Response, error) {
	config, err := c.resolver.Config(ctx, c, payload)
	if err != nil {
		return nil, err
	}

	w := payload.(*wallet)
	resp := check.NewResponse()
	switch {
	case float64(w.Balance) < config["critical_below"].(float64):
		resp.SetStatus(check.StatusCritical)
	case float64(w.Balance) < config["warning_below"].(float64):
		resp.SetStatus(check.StatusWarning)
	default:
		resp.SetStatus(check.StatusOK)
	}
	return resp, nil
}

func TestConfigDefaultsApplyWithoutStoredResult(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewResultRepository(db)
	resolver := NewConfigResolver(repo)
	runner := NewRunner(repo, uow.NewUnitOfWork(db))
	ctx := context.Background()

	w := &wallet{ID: "w1", Balance: 50}
	chk := &configuredBalanceCheck{newBalanceCheck(w), resolver}

	if err := runner.Handle(ctx, chk, w); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	result, err := repo.GetResult(ctx, registry.Slug(chk), "w1")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if result.Status != check.StatusWarning {
		t.Fatalf("status with defaults = %s, want warning", result.Status)
	}
}

func TestConfigOverridesChangeOutcome(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewResultRepository(db)
	resolver := NewConfigResolver(repo)
	runner := NewRunner(repo, uow.NewUnitOfWork(db))
	ctx := context.Background()

	w := &wallet{ID: "w1", Balance: 50}
	chk := &configuredBalanceCheck{newBalanceCheck(w), resolver}
	slug := registry.Slug(chk)

	if err := runner.Handle(ctx, chk, w); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if err := resolver.SetOverrides(ctx, slug, "w1", map[string]any{"warning_below": float64(40)}); err != nil {
		t.Fatalf("SetOverrides() error = %v", err)
	}

	config, err := resolver.Config(ctx, chk, w)
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	if config["warning_below"].(float64) != 40 || config["critical_below"].(float64) != 0 {
		t.Fatalf("effective config = %v", config)
	}

	if err := runner.Handle(ctx, chk, w); err != nil {
		t.Fatalf("Handle() after override error = %v", err)
	}
	result, err := repo.GetResult(ctx, slug, "w1")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if result.Status != check.StatusOK {
		t.Fatalf("status with override = %s, want ok", result.Status)
	}
}

func TestConfigSurvivesResultUpsert(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewResultRepository(db)
	resolver := NewConfigResolver(repo)
	runner := NewRunner(repo, uow.NewUnitOfWork(db))
	ctx := context.Background()

	w := &wallet{ID: "w1", Balance: 50}
	chk := &configuredBalanceCheck{newBalanceCheck(w), resolver}
	slug := registry.Slug(chk)

	if err := runner.Handle(ctx, chk, w); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if err := resolver.SetOverrides(ctx, slug, "w1", map[string]any{"warning_below": float64(40)}); err != nil {
		t.Fatalf("SetOverrides() error = %v", err)
	}

	// Repeated executions overwrite status and data but never the
	// operator-owned config.
	for i := 0; i < 3; i++ {
		if err := runner.Handle(ctx, chk, w); err != nil {
			t.Fatalf("Handle() #%d error = %v", i+1, err)
		}
	}

	result, err := repo.GetResult(ctx, slug, "w1")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if result.Config["warning_below"].(float64) != 40 {
		t.Fatalf("stored config = %v, want warning_below 40", result.Config)
	}
}
