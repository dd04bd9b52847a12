package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/errs"
	"datawatch/internal/ports"
	"datawatch/internal/registry"
)

// Scheduler decides which periodically scheduled checks are due and enqueues
// them through the dispatch backend.
type Scheduler struct {
	reg        *registry.Registry
	repo       ports.ResultRepository
	dispatcher ports.Dispatcher
	now        func() time.Time
}

func NewScheduler(reg *registry.Registry, repo ports.ResultRepository, dispatcher ports.Dispatcher) *Scheduler {
	return &Scheduler{
		reg:        reg,
		repo:       repo,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// RunChecks walks every registered check once. A check is due when it has no
// recorded execution yet, or when its schedule boundary relative to the last
// execution has been reached (evaluating exactly at the boundary counts as
// due). force marks every schedulable check due. A malformed schedule
// descriptor or a failing enqueue is logged and never aborts the sweep.
func (s *Scheduler) RunChecks(ctx context.Context, force bool, slugFilter string) error {
	lastRuns, err := s.repo.LastExecutions(ctx)
	if err != nil {
		return errs.Wrap(err, "load last executions")
	}

	now := s.now()
	for _, slug := range s.reg.AllSlugs() {
		chk, ok := s.reg.Check(slug)
		if !ok {
			continue
		}
		if slugFilter != "" && slug != slugFilter {
			continue
		}

		meta := chk.Meta()
		if meta.RunEvery == "" {
			continue
		}

		schedule, err := cron.ParseStandard(meta.RunEvery)
		if err != nil {
			logging.Warn(ctx, "malformed schedule descriptor, skipping check",
				slog.String("slug", slug),
				slog.String("run_every", meta.RunEvery),
				slog.Any("err", errs.Loggable(err)))
			continue
		}

		if !force {
			if lastRun, ok := lastRuns[slug]; ok {
				// Compare in the sweep's timezone so restarts across zones
				// agree on the boundary.
				if schedule.Next(lastRun.In(now.Location())).After(now) {
					continue
				}
			}
		}

		if err := s.runCheck(ctx, slug, now); err != nil {
			logging.Error(ctx, "scheduling check failed",
				slog.String("slug", slug),
				slog.Any("err", errs.Loggable(err)))
		}
	}
	return nil
}

// runCheck enqueues the check and records the execution timestamp regardless
// of whether the enqueue is synchronous, so repeated sweeps within the same
// period do not re-trigger.
func (s *Scheduler) runCheck(ctx context.Context, slug string, now time.Time) error {
	if err := s.dispatcher.Enqueue(ctx, slug, true); err != nil {
		return errs.Wrap(err, "enqueue check")
	}
	if err := s.repo.RecordExecution(ctx, slug, now); err != nil {
		return errs.Wrap(err, "record execution")
	}
	logging.Info(ctx, "check dispatched", slog.String("slug", slug))
	return nil
}
