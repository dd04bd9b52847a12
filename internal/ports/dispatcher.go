package ports

import "context"

// RunRequest asks the dispatch backend to execute one check for one
// identifier. All fields serialize to primitive types so the request can
// cross a queue transport unchanged.
type RunRequest struct {
	Slug       string
	Identifier string
	// Async selects queued execution; synchronous backends ignore it.
	Async bool
	// UserForcedRefresh marks a human-requested re-evaluation and fires the
	// check's forced-refresh hook.
	UserForcedRefresh bool
	// Queue is the per-check dispatch queue name; empty selects the default.
	Queue string
}

// Dispatcher decouples deciding what to run from how and where it runs.
type Dispatcher interface {
	// Enqueue generates all payloads of the check and schedules a run for
	// each. A check without Generate support is treated as nothing to do.
	Enqueue(ctx context.Context, slug string, async bool) error
	// Refresh re-runs the check for every identifier that currently has a
	// stored result, without generating new ones.
	Refresh(ctx context.Context, slug string, async bool) error
	// Run executes the check for a single identifier. A stale identifier is
	// recovered by deleting the stored result, never surfaced as an error.
	Run(ctx context.Context, req RunRequest) error
}
