package check

import (
	"context"
)

// Check is the contract every registered check implements.
//
// Generate enumerates every payload the check currently applies to.
// Identifier derives a stable key from a payload and Payload resolves it back;
// Identifier(Payload(x)) == x must hold for every valid x.
// Check runs the business logic for one payload and may return ErrSkipCheck
// to signal that the payload no longer warrants a recorded result.
type Check interface {
	Meta() Meta
	Generate(ctx context.Context) ([]any, error)
	Check(ctx context.Context, payload any) (*Response, error)
	Identifier(payload any) (string, error)
	Payload(ctx context.Context, identifier string) (any, error)
}

// Meta describes the static definition of a check.
type Meta struct {
	// Title is the human readable name of the check.
	Title string
	// RunEvery is a schedule descriptor understood by cron.ParseStandard,
	// for example "@every 24h" or "0 0 * * *". Empty means the check is not
	// run periodically.
	RunEvery string
	// MaxAcknowledgeDays limits how far into the future a result of this
	// check may be acknowledged. Zero means unlimited.
	MaxAcknowledgeDays int
	// Queue is the dispatch queue name used for run messages. Empty selects
	// the backend default.
	Queue string
	// EntityType is the uid of the primary entity this check evaluates.
	// Results for a deleted entity of this type are removed automatically.
	EntityType string
}

// Trigger declares that the check must be re-evaluated when an entity of
// EntityType is saved. Resolve maps the saved entity to the payloads that
// need re-checking; a trigger without a resolver is skipped at registration.
type Trigger struct {
	Keyword    string
	EntityType string
	Resolve    func(ctx context.Context, entity any) ([]any, error)
}

// TriggerProvider is implemented by checks that react to entity saves.
type TriggerProvider interface {
	Triggers() []Trigger
}

// AssignmentProvider lets a check assign its results to users and groups.
// The returned sets replace the stored ones on every execution.
type AssignmentProvider interface {
	AssignedUsers(ctx context.Context, payload any, status Status) ([]string, error)
	AssignedGroups(ctx context.Context, payload any, status Status) ([]string, error)
}

// PayloadDescriber provides the human readable description stored with a
// result. Checks without it fall back to fmt formatting of the payload.
type PayloadDescriber interface {
	PayloadDescription(payload any) string
}

// ResultDataFormatter renders the result data bag for display.
type ResultDataFormatter interface {
	FormatResultData(data map[string]any) string
}

// ContextDataProvider supplies extra template context for a result.
type ContextDataProvider interface {
	ContextData(data map[string]any) map[string]any
}

// Configurable is implemented by checks with a tunable configuration.
// DefaultConfig returns the baseline values; per-result overrides stored on
// the Result are overlaid on top of it.
type Configurable interface {
	DefaultConfig() map[string]any
}

// ConfigSchemaProvider exposes a typed prototype of the check configuration
// so tooling can derive a JSON schema from it.
type ConfigSchemaProvider interface {
	ConfigPrototype() any
}

// ForcedRefreshHook fires only when a human explicitly requested the
// re-evaluation, letting the check bypass caching shortcuts.
type ForcedRefreshHook interface {
	UserForcedRefresh(ctx context.Context, payload any) error
}
