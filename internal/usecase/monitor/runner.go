package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/domain/check"
	"datawatch/internal/errs"
	"datawatch/internal/ports"
	"datawatch/internal/registry"
)

// Runner executes one check for one payload and reconciles the result store.
type Runner struct {
	repo ports.ResultRepository
	uow  ports.UnitOfWork
}

func NewRunner(repo ports.ResultRepository, uow ports.UnitOfWork) *Runner {
	return &Runner{repo: repo, uow: uow}
}

// Handle runs chk for payload and persists the outcome. A check returning
// ErrSkipCheck causes the stored result, if any, to be deleted without a
// history entry. Any other check failure propagates to the caller so the
// queue infrastructure decides the retry policy.
func (r *Runner) Handle(ctx context.Context, chk check.Check, payload any) error {
	slug := registry.Slug(chk)
	identifier, err := chk.Identifier(payload)
	if err != nil {
		return errs.Wrapf(err, "derive identifier for %s", slug)
	}

	response, err := chk.Check(ctx, payload)
	if errors.Is(err, check.ErrSkipCheck) {
		logging.Info(ctx, "check skipped payload, removing result",
			slog.String("slug", slug),
			slog.String("identifier", identifier))
		if err := r.repo.DeleteResult(ctx, slug, identifier); err != nil {
			return errs.Wrap(err, "delete skipped result")
		}
		return nil
	}
	if err != nil {
		return errs.Wrapf(err, "run check %s", slug)
	}
	if response == nil {
		return fmt.Errorf("check %s returned no response", slug)
	}

	_, err = r.Save(ctx, chk, payload, response.Status(), response.Data())
	return err
}

// Save upserts the result row, tracks the status history and replaces the
// assignment sets, all within one transaction. A recovery from
// warning/critical to ok clears the acknowledgement fields.
func (r *Runner) Save(ctx context.Context, chk check.Check, payload any, status check.Status, data map[string]any) (ports.Result, error) {
	slug := registry.Slug(chk)
	identifier, err := chk.Identifier(payload)
	if err != nil {
		return ports.Result{}, errs.Wrapf(err, "derive identifier for %s", slug)
	}

	users, groups, err := assignments(ctx, chk, payload, status)
	if err != nil {
		return ports.Result{}, errs.Wrapf(err, "compute assignments for %s", slug)
	}
	description := payloadDescription(chk, payload)

	var saved ports.Result
	err = r.uow.WithTx(ctx, func(ctx context.Context) error {
		var oldStatus *check.Status
		existing, err := r.repo.GetResult(ctx, slug, identifier)
		switch {
		case err == nil:
			oldStatus = &existing.Status
		case errors.Is(err, ports.ErrResultNotFound):
		default:
			return errs.Wrap(err, "load previous result")
		}

		unacknowledge := oldStatus != nil && oldStatus.Failed() && status == check.StatusOK

		saved, err = r.repo.SaveResult(ctx, ports.ResultUpsert{
			Slug:               slug,
			Identifier:         identifier,
			Status:             status,
			Data:               data,
			PayloadDescription: description,
			Unacknowledge:      unacknowledge,
		})
		if err != nil {
			return err
		}

		if oldStatus == nil || *oldStatus != status {
			if err := r.repo.AppendStatusHistory(ctx, saved.ID, oldStatus, status); err != nil {
				return err
			}
		}

		if err := r.repo.ReplaceAssignedUsers(ctx, saved.ID, users); err != nil {
			return err
		}
		return r.repo.ReplaceAssignedGroups(ctx, saved.ID, groups)
	})
	if err != nil {
		return ports.Result{}, err
	}
	return saved, nil
}

func assignments(ctx context.Context, chk check.Check, payload any, status check.Status) (users []string, groups []string, err error) {
	provider, ok := chk.(check.AssignmentProvider)
	if !ok {
		return nil, nil, nil
	}

	if users, err = provider.AssignedUsers(ctx, payload, status); err != nil {
		return nil, nil, errs.Wrap(err, "assigned users")
	}
	if groups, err = provider.AssignedGroups(ctx, payload, status); err != nil {
		return nil, nil, errs.Wrap(err, "assigned groups")
	}
	return users, groups, nil
}

func payloadDescription(chk check.Check, payload any) string {
	if describer, ok := chk.(check.PayloadDescriber); ok {
		return describer.PayloadDescription(payload)
	}
	return fmt.Sprintf("%v", payload)
}
