package monitor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/errs"
	"datawatch/internal/ports"
	"datawatch/internal/registry"
)

var (
	// ErrAlreadyAcknowledged rejects an acknowledgement that would shorten a
	// live one on a still failing result.
	ErrAlreadyAcknowledged = errors.New("result already acknowledged for a longer period")
	// ErrNotAcknowledgeable rejects acknowledging a result that is not in
	// warning or critical state.
	ErrNotAcknowledgeable = errors.New("only warning or critical results can be acknowledged")
	// ErrAcknowledgeTooLong rejects an acknowledgement window beyond the
	// check's declared maximum.
	ErrAcknowledgeTooLong = errors.New("acknowledgement exceeds the check maximum")

	errUserRequired = errors.New("acknowledging user is required")
	errDaysInvalid  = errors.New("acknowledgement days must be positive")
	errTextRequired = errors.New("tag text is required")
)

// Service bundles the operator-facing operations around stored results:
// acknowledgement, tagging, listings, ghost cleanup, refresh dispatch and the
// reactive entity-event boundary.
type Service struct {
	reg        *registry.Registry
	repo       ports.ResultRepository
	uow        ports.UnitOfWork
	dispatcher ports.Dispatcher
	now        func() time.Time
}

func NewService(reg *registry.Registry, repo ports.ResultRepository, uow ports.UnitOfWork, dispatcher ports.Dispatcher) *Service {
	return &Service{
		reg:        reg,
		repo:       repo,
		uow:        uow,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Acknowledge silences a failing result for the given number of days.
// Extending a live acknowledgement is allowed; shortening one fails with
// ErrAlreadyAcknowledged so a longer-lived acknowledgement is never
// overwritten silently.
func (s *Service) Acknowledge(ctx context.Context, slug, identifier, user string, days int, reason string) error {
	if strings.TrimSpace(user) == "" {
		return errUserRequired
	}
	if days <= 0 {
		return errDaysInvalid
	}

	return s.uow.WithTx(ctx, func(ctx context.Context) error {
		result, err := s.repo.GetResult(ctx, slug, identifier)
		if err != nil {
			return err
		}
		if !result.Status.Failed() {
			return ErrNotAcknowledgeable
		}

		if chk, ok := s.reg.Check(slug); ok {
			if max := chk.Meta().MaxAcknowledgeDays; max > 0 && days > max {
				return ErrAcknowledgeTooLong
			}
		}

		now := s.now()
		until := now.AddDate(0, 0, days)
		if result.Acknowledged(now) && !until.After(*result.AcknowledgedUntil) {
			return ErrAlreadyAcknowledged
		}

		return s.repo.SetAcknowledgement(ctx, result.ID, ports.Acknowledgement{
			By:     user,
			At:     now,
			Until:  until,
			Reason: reason,
		})
	})
}

// AddTag attaches an operator annotation to a result. Tag text is unique per
// result.
func (s *Service) AddTag(ctx context.Context, slug, identifier, author, text string, category ports.TagCategory) (ports.Tag, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ports.Tag{}, errTextRequired
	}

	var tag ports.Tag
	err := s.uow.WithTx(ctx, func(ctx context.Context) error {
		result, err := s.repo.GetResult(ctx, slug, identifier)
		if err != nil {
			return err
		}
		tag, err = s.repo.AddTag(ctx, ports.TagCreate{
			ResultID: result.ID,
			Author:   author,
			Text:     text,
			Category: category,
		})
		return err
	})
	if err != nil {
		return ports.Tag{}, err
	}
	return tag, nil
}

func (s *Service) ListTags(ctx context.Context, slug, identifier string) ([]ports.Tag, error) {
	result, err := s.repo.GetResult(ctx, slug, identifier)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTags(ctx, result.ID)
}

func (s *Service) RemoveTag(ctx context.Context, slug, identifier, text string) error {
	result, err := s.repo.GetResult(ctx, slug, identifier)
	if err != nil {
		return err
	}
	return s.repo.RemoveTag(ctx, result.ID, text)
}

func (s *Service) ListResults(ctx context.Context, filter ports.ResultFilter) ([]ports.Result, error) {
	if filter.Unacknowledged && filter.Now.IsZero() {
		filter.Now = s.now()
	}
	return s.repo.ListResults(ctx, filter)
}

func (s *Service) Stats(ctx context.Context, slug string) ([]ports.StatusCount, error) {
	return s.repo.StatusStats(ctx, slug)
}

// CleanUp deletes every result and execution whose slug is no longer
// registered and returns the removed slugs for audit.
func (s *Service) CleanUp(ctx context.Context) (resultSlugs, executionSlugs []string, err error) {
	keep := s.reg.AllSlugs()

	resultSlugs, err = s.repo.DeleteGhostResults(ctx, keep)
	if err != nil {
		return nil, nil, errs.Wrap(err, "delete ghost results")
	}
	logging.Info(ctx, "ghost results deleted",
		slog.Int("count", len(resultSlugs)),
		slog.Any("slugs", resultSlugs))

	executionSlugs, err = s.repo.DeleteGhostExecutions(ctx, keep)
	if err != nil {
		return nil, nil, errs.Wrap(err, "delete ghost executions")
	}
	logging.Info(ctx, "ghost executions deleted",
		slog.Int("count", len(executionSlugs)),
		slog.Any("slugs", executionSlugs))

	return resultSlugs, executionSlugs, nil
}

// RefreshAll re-dispatches every registered check against its stored results.
func (s *Service) RefreshAll(ctx context.Context, async bool) error {
	for _, slug := range s.reg.AllSlugs() {
		if err := s.dispatcher.Refresh(ctx, slug, async); err != nil {
			return errs.Wrapf(err, "refresh %s", slug)
		}
	}
	return nil
}

// RefreshSlug re-dispatches a single check against its stored results.
func (s *Service) RefreshSlug(ctx context.Context, slug string, async bool) error {
	return s.dispatcher.Refresh(ctx, slug, async)
}

// ForceRefreshResult re-evaluates one result on explicit operator request,
// firing the check's forced-refresh hook.
func (s *Service) ForceRefreshResult(ctx context.Context, slug, identifier string, async bool) error {
	queue := ""
	if chk, ok := s.reg.Check(slug); ok {
		queue = chk.Meta().Queue
	}
	return s.dispatcher.Run(ctx, ports.RunRequest{
		Slug:              slug,
		Identifier:        identifier,
		Async:             async,
		UserForcedRefresh: true,
		Queue:             queue,
	})
}

// HandleEntityEvent is the reactive trigger boundary. Deletions remove the
// dependent results within the current transaction context; saves schedule
// check runs that fire only after the enclosing transaction commits. Every
// failure is logged and swallowed here so the triggering entity write never
// fails because a downstream check crashed.
func (s *Service) HandleEntityEvent(ctx context.Context, entityType string, entity any, op registry.EntityOp) {
	for _, command := range s.reg.OnEntityEvent(ctx, entityType, entity, op) {
		switch command.Kind {
		case registry.CommandDeleteResult:
			if err := s.repo.DeleteResult(ctx, command.Slug, command.Identifier); err != nil {
				logging.Error(ctx, "deleting result for removed entity failed",
					slog.String("slug", command.Slug),
					slog.String("identifier", command.Identifier),
					slog.Any("err", errs.Loggable(err)))
			}
		case registry.CommandRun:
			command := command
			ports.AfterCommit(ctx, func(ctx context.Context) {
				err := s.dispatcher.Run(ctx, ports.RunRequest{
					Slug:       command.Slug,
					Identifier: command.Identifier,
					Async:      true,
					Queue:      command.Queue,
				})
				if err != nil {
					logging.Error(ctx, "triggered check dispatch failed",
						slog.String("slug", command.Slug),
						slog.String("identifier", command.Identifier),
						slog.Any("err", errs.Loggable(err)))
				}
			})
		}
	}
}
