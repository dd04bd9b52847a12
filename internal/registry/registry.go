package registry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/domain/check"
)

// ErrSlugConflict is returned when two check implementations resolve to the
// same slug.
var ErrSlugConflict = fmt.Errorf("check slug already registered")

// Slug derives the stable identifier of a check implementation from its
// defining package path and type name.
func Slug(c check.Check) string {
	t := reflect.TypeOf(c)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath() + "." + t.Name()
}

type triggerBinding struct {
	slug    string
	chk     check.Check
	keyword string
	resolve func(ctx context.Context, entity any) ([]any, error)
}

// Registry is the process-wide table of registered checks: slug to
// implementation, primary entity type to dependent checks, and trigger entity
// type to re-check bindings.
//
// Registration happens exactly once per process lifetime, at startup, before
// any scheduling or dispatch. The registry is read-only afterwards and safe
// for concurrent reads.
type Registry struct {
	checks    map[string]check.Check
	order     []string
	byEntity  map[string][]check.Check
	triggered map[string][]triggerBinding
}

func New() *Registry {
	return &Registry{
		checks:    make(map[string]check.Check),
		byEntity:  make(map[string][]check.Check),
		triggered: make(map[string][]triggerBinding),
	}
}

// Register adds a check under its derived slug. A slug claimed twice is a
// startup defect and fails loudly. A trigger declared without a resolver is
// logged and skipped without aborting the rest of the registration.
func (r *Registry) Register(ctx context.Context, c check.Check) error {
	slug := Slug(c)
	if _, exists := r.checks[slug]; exists {
		return fmt.Errorf("%w: %s", ErrSlugConflict, slug)
	}

	r.checks[slug] = c
	r.order = append(r.order, slug)

	meta := c.Meta()
	if meta.EntityType != "" {
		r.byEntity[meta.EntityType] = append(r.byEntity[meta.EntityType], c)
	}

	provider, ok := c.(check.TriggerProvider)
	if !ok {
		return nil
	}
	for _, trigger := range provider.Triggers() {
		if trigger.Resolve == nil {
			logging.Warn(ctx, "trigger declared without resolver, skipping",
				slog.String("slug", slug),
				slog.String("keyword", trigger.Keyword))
			continue
		}
		r.triggered[trigger.EntityType] = append(r.triggered[trigger.EntityType], triggerBinding{
			slug:    slug,
			chk:     c,
			keyword: trigger.Keyword,
			resolve: trigger.Resolve,
		})
	}
	return nil
}

// MustRegister is Register for process startup paths where a registration
// failure must abort.
func (r *Registry) MustRegister(ctx context.Context, c check.Check) {
	if err := r.Register(ctx, c); err != nil {
		panic(err)
	}
}

// Check returns the implementation registered under slug.
func (r *Registry) Check(slug string) (check.Check, bool) {
	c, ok := r.checks[slug]
	return c, ok
}

// AllSlugs returns every registered slug in registration order.
func (r *Registry) AllSlugs() []string {
	slugs := make([]string, len(r.order))
	copy(slugs, r.order)
	return slugs
}

// AllChecks returns every registered check in registration order.
func (r *Registry) AllChecks() []check.Check {
	checks := make([]check.Check, 0, len(r.order))
	for _, slug := range r.order {
		checks = append(checks, r.checks[slug])
	}
	return checks
}

// ChecksForEntityType returns the checks whose primary entity type is
// entityType, used for cascade deletion of results.
func (r *Registry) ChecksForEntityType(entityType string) []check.Check {
	return r.byEntity[entityType]
}
