package monitor

import (
	"context"
	"errors"

	"datawatch/internal/domain/check"
	"datawatch/internal/errs"
	"datawatch/internal/ports"
	"datawatch/internal/registry"
)

// ConfigResolver computes the effective configuration of a check for one
// payload: the check's defaults overlaid with the operator-set per-result
// overrides stored on the Result.
type ConfigResolver struct {
	repo ports.ResultRepository
}

func NewConfigResolver(repo ports.ResultRepository) *ConfigResolver {
	return &ConfigResolver{repo: repo}
}

func (c *ConfigResolver) Config(ctx context.Context, chk check.Check, payload any) (map[string]any, error) {
	config := make(map[string]any)
	if configurable, ok := chk.(check.Configurable); ok {
		for name, value := range configurable.DefaultConfig() {
			config[name] = value
		}
	}

	identifier, err := chk.Identifier(payload)
	if err != nil {
		return nil, errs.Wrap(err, "derive identifier")
	}

	result, err := c.repo.GetResult(ctx, registry.Slug(chk), identifier)
	if err != nil {
		if errors.Is(err, ports.ErrResultNotFound) {
			return config, nil
		}
		return nil, errs.Wrap(err, "load result config")
	}
	for name, value := range result.Config {
		config[name] = value
	}
	return config, nil
}

// SetOverrides stores operator overrides on an existing result.
func (c *ConfigResolver) SetOverrides(ctx context.Context, slug, identifier string, overrides map[string]any) error {
	result, err := c.repo.GetResult(ctx, slug, identifier)
	if err != nil {
		return err
	}
	return c.repo.SetConfig(ctx, result.ID, overrides)
}
