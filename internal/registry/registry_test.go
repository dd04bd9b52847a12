package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"datawatch/internal/domain/check"
)

type deviceCheck struct {
	devices map[string]string
}

func (c *deviceCheck) Meta() check.Meta {
	return check.Meta{Title: "device health", EntityType: "inventory.Device"}
}

func (c *deviceCheck) Generate(_ context.Context) ([]any, error) {
	return nil, check.ErrNotImplemented
}

func (c *deviceCheck) Check(_ context.Context, _ any) (*check.Response, error) {
	return check.NewResponseWithStatus(check.StatusOK), nil
}

func (c *deviceCheck) Identifier(payload any) (string, error) {
	id, ok := payload.(string)
	if !ok {
		return "", errors.New("payload is not a device id")
	}
	return id, nil
}

func (c *deviceCheck) Payload(_ context.Context, identifier string) (any, error) {
	return identifier, nil
}

type siteCheck struct {
	deviceCheck
	resolve func(ctx context.Context, entity any) ([]any, error)
}

func (c *siteCheck) Meta() check.Meta {
	return check.Meta{Title: "site health", Queue: "sites", EntityType: "inventory.Site"}
}

func (c *siteCheck) Triggers() []check.Trigger {
	return []check.Trigger{{
		Keyword:    "device",
		EntityType: "inventory.Device",
		Resolve:    c.resolve,
	}}
}

func TestSlugDerivation(t *testing.T) {
	slug := Slug(&deviceCheck{})
	if !strings.HasSuffix(slug, "/registry.deviceCheck") {
		t.Fatalf("Slug() = %q, want package-qualified type name", slug)
	}
	if Slug(&deviceCheck{}) != slug {
		t.Fatalf("Slug() is not stable across instances")
	}
}

func TestRegisterRejectsDuplicateSlug(t *testing.T) {
	reg := New()
	ctx := context.Background()

	if err := reg.Register(ctx, &deviceCheck{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register(ctx, &deviceCheck{}); !errors.Is(err, ErrSlugConflict) {
		t.Fatalf("Register() duplicate error = %v, want ErrSlugConflict", err)
	}
}

func TestRegisterIndexesByEntityType(t *testing.T) {
	reg := New()
	ctx := context.Background()
	reg.MustRegister(ctx, &deviceCheck{})

	checks := reg.ChecksForEntityType("inventory.Device")
	if len(checks) != 1 {
		t.Fatalf("ChecksForEntityType() = %d checks, want 1", len(checks))
	}
	if len(reg.ChecksForEntityType("inventory.Rack")) != 0 {
		t.Fatalf("unexpected checks for unrelated entity type")
	}
}

func TestRegisterSkipsTriggerWithoutResolver(t *testing.T) {
	reg := New()
	ctx := context.Background()
	reg.MustRegister(ctx, &siteCheck{})

	commands := reg.OnEntityEvent(ctx, "inventory.Device", "d1", EntitySaved)
	if len(commands) != 0 {
		t.Fatalf("OnEntityEvent() = %v, want no commands for resolver-less trigger", commands)
	}
}

func TestAllSlugsPreservesRegistrationOrder(t *testing.T) {
	reg := New()
	ctx := context.Background()
	reg.MustRegister(ctx, &siteCheck{})
	reg.MustRegister(ctx, &deviceCheck{})

	slugs := reg.AllSlugs()
	if len(slugs) != 2 {
		t.Fatalf("AllSlugs() = %v", slugs)
	}
	if slugs[0] != Slug(&siteCheck{}) || slugs[1] != Slug(&deviceCheck{}) {
		t.Fatalf("AllSlugs() order = %v", slugs)
	}
}

func TestOnEntityEventDeleteProducesDeleteCommands(t *testing.T) {
	reg := New()
	ctx := context.Background()
	chk := &deviceCheck{}
	reg.MustRegister(ctx, chk)

	commands := reg.OnEntityEvent(ctx, "inventory.Device", "d1", EntityDeleted)
	if len(commands) != 1 {
		t.Fatalf("OnEntityEvent() = %v, want one delete command", commands)
	}
	cmd := commands[0]
	if cmd.Kind != CommandDeleteResult || cmd.Slug != Slug(chk) || cmd.Identifier != "d1" {
		t.Fatalf("command = %+v", cmd)
	}
}

func TestOnEntityEventSaveResolvesTriggerPayloads(t *testing.T) {
	reg := New()
	ctx := context.Background()
	chk := &siteCheck{resolve: func(_ context.Context, entity any) ([]any, error) {
		return []any{"site-of-" + entity.(string), nil}, nil
	}}
	reg.MustRegister(ctx, chk)

	commands := reg.OnEntityEvent(ctx, "inventory.Device", "d1", EntitySaved)
	if len(commands) != 1 {
		t.Fatalf("OnEntityEvent() = %v, want one run command", commands)
	}
	cmd := commands[0]
	if cmd.Kind != CommandRun || cmd.Slug != Slug(chk) || cmd.Identifier != "site-of-d1" || cmd.Queue != "sites" {
		t.Fatalf("command = %+v", cmd)
	}
}

func TestOnEntityEventResolverFailureIsSwallowed(t *testing.T) {
	reg := New()
	ctx := context.Background()
	reg.MustRegister(ctx, &siteCheck{resolve: func(_ context.Context, _ any) ([]any, error) {
		return nil, errors.New("lookup failed")
	}})

	commands := reg.OnEntityEvent(ctx, "inventory.Device", "d1", EntitySaved)
	if len(commands) != 0 {
		t.Fatalf("OnEntityEvent() = %v, want none on resolver failure", commands)
	}
}
