package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/domain/check"
	"datawatch/internal/errs"
	"datawatch/internal/ports"
	"datawatch/internal/registry"
	"datawatch/internal/usecase/monitor"
)

// SynchronousBackend executes dispatch operations in-process, immediately,
// within the calling transaction context. All business logic lives here;
// queued backends are pure transports that call back into this one.
type SynchronousBackend struct {
	reg        *registry.Registry
	repo       ports.ResultRepository
	runner     *monitor.Runner
	dispatcher ports.Dispatcher
}

func NewSynchronousBackend(reg *registry.Registry, repo ports.ResultRepository, runner *monitor.Runner) *SynchronousBackend {
	return &SynchronousBackend{reg: reg, repo: repo, runner: runner}
}

// SetDispatcher routes the per-payload fan-out of Enqueue and Refresh through
// the configured top-level dispatcher, so a queued deployment re-publishes
// one run message per payload on the check's queue instead of executing the
// whole batch inline. Without it the backend dispatches to itself.
func (b *SynchronousBackend) SetDispatcher(dispatcher ports.Dispatcher) {
	b.dispatcher = dispatcher
}

func (b *SynchronousBackend) dispatch() ports.Dispatcher {
	if b.dispatcher != nil {
		return b.dispatcher
	}
	return b
}

// Enqueue generates every payload of the check and runs each one. A check
// without Generate support is nothing to do; a payload that resolves to
// nothing is skipped.
func (b *SynchronousBackend) Enqueue(ctx context.Context, slug string, async bool) error {
	chk, ok := b.reg.Check(slug)
	if !ok {
		logging.Warn(ctx, "enqueue for unregistered check", slog.String("slug", slug))
		return nil
	}

	payloads, err := chk.Generate(ctx)
	if errors.Is(err, check.ErrNotImplemented) {
		logging.Info(ctx, "check does not generate payloads", slog.String("slug", slug))
		return nil
	}
	if err != nil {
		return errs.Wrapf(err, "generate payloads for %s", slug)
	}

	queue := chk.Meta().Queue
	for _, payload := range payloads {
		if payload == nil {
			continue
		}
		identifier, err := chk.Identifier(payload)
		if err != nil {
			return errs.Wrapf(err, "derive identifier for %s", slug)
		}
		if err := b.dispatch().Run(ctx, ports.RunRequest{
			Slug:       slug,
			Identifier: identifier,
			Async:      async,
			Queue:      queue,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Refresh re-runs the check for every identifier that currently has a stored
// result. It re-validates existing results rather than discovering new ones.
func (b *SynchronousBackend) Refresh(ctx context.Context, slug string, async bool) error {
	identifiers, err := b.repo.ListIdentifiers(ctx, slug)
	if err != nil {
		return errs.Wrapf(err, "list identifiers for %s", slug)
	}

	queue := ""
	if chk, ok := b.reg.Check(slug); ok {
		queue = chk.Meta().Queue
	}
	for _, identifier := range identifiers {
		if err := b.dispatch().Run(ctx, ports.RunRequest{
			Slug:       slug,
			Identifier: identifier,
			Async:      async,
			Queue:      queue,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Run resolves the payload and hands it to the runner. A stale identifier is
// self-healing: the stored result is deleted and no error surfaces, since
// earlier Generate snapshots legitimately outlive their subjects.
func (b *SynchronousBackend) Run(ctx context.Context, req ports.RunRequest) error {
	chk, ok := b.reg.Check(req.Slug)
	if !ok {
		logging.Warn(ctx, "run for unregistered check", slog.String("slug", req.Slug))
		return nil
	}

	payload, err := chk.Payload(ctx, req.Identifier)
	if errors.Is(err, check.ErrPayloadNotFound) {
		logging.Info(ctx, "payload gone, removing stale result",
			slog.String("slug", req.Slug),
			slog.String("identifier", req.Identifier))
		if err := b.repo.DeleteResult(ctx, req.Slug, req.Identifier); err != nil {
			return errs.Wrap(err, "delete stale result")
		}
		return nil
	}
	if err != nil {
		return errs.Wrapf(err, "resolve payload %s for %s", req.Identifier, req.Slug)
	}

	if req.UserForcedRefresh {
		if hook, ok := chk.(check.ForcedRefreshHook); ok {
			if err := hook.UserForcedRefresh(ctx, payload); err != nil {
				return errs.Wrapf(err, "forced refresh hook for %s", req.Slug)
			}
		}
	}

	return b.runner.Handle(ctx, chk, payload)
}
