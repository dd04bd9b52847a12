package ports

import (
	"context"
	"errors"
	"time"

	"datawatch/internal/domain/check"
)

var (
	ErrResultNotFound = errors.New("check result not found")
	ErrTagNotFound    = errors.New("result tag not found")
	ErrDuplicateTag   = errors.New("result tag already exists")
)

// Result is the persisted outcome of the most recent evaluation of a check
// for a given identifier. (Slug, Identifier) is unique.
type Result struct {
	ID                 uint64
	Slug               string
	Identifier         string
	Status             check.Status
	Data               map[string]any
	Config             map[string]any
	PayloadDescription string

	AcknowledgedBy     string
	AcknowledgedAt     *time.Time
	AcknowledgedUntil  *time.Time
	AcknowledgedReason string

	AssignedUsers  []string
	AssignedGroups []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Acknowledged reports whether a live acknowledgement exists at now.
func (r Result) Acknowledged(now time.Time) bool {
	return r.AcknowledgedUntil != nil && !r.AcknowledgedUntil.Before(now)
}

// ResultUpsert is the write payload for one check execution. The per-result
// config is operator-owned and never touched by an upsert.
type ResultUpsert struct {
	Slug               string
	Identifier         string
	Status             check.Status
	Data               map[string]any
	PayloadDescription string
	// Unacknowledge clears the acknowledgement fields, used when a
	// warning/critical result recovers to ok.
	Unacknowledge bool
}

// ResultFilter narrows result listings.
type ResultFilter struct {
	Slug           string
	Failed         bool
	OK             bool
	Unacknowledged bool
	// Now is the instant acknowledgements are evaluated against for the
	// Unacknowledged filter. Zero means the wall clock.
	Now time.Time
}

// StatusTransition is one row of the append-only status history of a result.
type StatusTransition struct {
	ID         uint64
	ResultID   uint64
	FromStatus *check.Status
	ToStatus   check.Status
	CreatedAt  time.Time
}

// Acknowledgement captures who silenced a result, until when and why.
type Acknowledgement struct {
	By     string
	At     time.Time
	Until  time.Time
	Reason string
}

// StatusCount aggregates results per status for dashboards and tooling.
type StatusCount struct {
	Status check.Status
	Amount int64
}

// TagCategory is the visual category of an operator tag.
type TagCategory int

const (
	TagCategoryDefault TagCategory = iota
	TagCategoryInfo
	TagCategorySuccess
	TagCategoryWarning
	TagCategoryDanger
)

// Tag is a purely operator-facing annotation on a result; check execution
// never reads or writes tags.
type Tag struct {
	ID        uint64
	ResultID  uint64
	Author    string
	Text      string
	Category  TagCategory
	CreatedAt time.Time
}

type TagCreate struct {
	ResultID uint64
	Author   string
	Text     string
	Category TagCategory
}

// ResultRepository is the persistence boundary for results, their status
// history, executions, assignments and tags. All methods honor a transaction
// handle carried in context by the UnitOfWork.
type ResultRepository interface {
	GetResult(ctx context.Context, slug, identifier string) (Result, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]Result, error)
	ListIdentifiers(ctx context.Context, slug string) ([]string, error)
	// SaveResult upserts by (slug, identifier) and returns the stored row.
	SaveResult(ctx context.Context, input ResultUpsert) (Result, error)
	// DeleteResult removes the result and its history, assignments and tags.
	// Deleting an absent result is a no-op.
	DeleteResult(ctx context.Context, slug, identifier string) error

	AppendStatusHistory(ctx context.Context, resultID uint64, from *check.Status, to check.Status) error
	ListStatusHistory(ctx context.Context, resultID uint64) ([]StatusTransition, error)

	ReplaceAssignedUsers(ctx context.Context, resultID uint64, users []string) error
	ReplaceAssignedGroups(ctx context.Context, resultID uint64, groups []string) error

	SetAcknowledgement(ctx context.Context, resultID uint64, ack Acknowledgement) error
	SetConfig(ctx context.Context, resultID uint64, config map[string]any) error
	StatusStats(ctx context.Context, slug string) ([]StatusCount, error)

	RecordExecution(ctx context.Context, slug string, at time.Time) error
	LastExecutions(ctx context.Context) (map[string]time.Time, error)

	// DeleteGhostResults removes every result whose slug is not in keep and
	// returns the distinct removed slugs for audit logging.
	DeleteGhostResults(ctx context.Context, keep []string) ([]string, error)
	DeleteGhostExecutions(ctx context.Context, keep []string) ([]string, error)

	AddTag(ctx context.Context, input TagCreate) (Tag, error)
	ListTags(ctx context.Context, resultID uint64) ([]Tag, error)
	RemoveTag(ctx context.Context, resultID uint64, text string) error
}
