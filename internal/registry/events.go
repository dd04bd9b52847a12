package registry

import (
	"context"
	"log/slog"

	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/errs"
)

// EntityOp is the kind of entity write reported by the external collaborator.
type EntityOp int

const (
	EntitySaved EntityOp = iota
	EntityDeleted
)

// CommandKind discriminates dispatch commands produced by entity events.
type CommandKind int

const (
	// CommandDeleteResult removes the result keyed by (Slug, Identifier).
	CommandDeleteResult CommandKind = iota
	// CommandRun re-evaluates the check for Identifier after the enclosing
	// transaction commits.
	CommandRun
)

// DispatchCommand is one action derived from an entity event.
type DispatchCommand struct {
	Kind       CommandKind
	Slug       string
	Identifier string
	Queue      string
}

// OnEntityEvent maps an entity write or deletion to the dispatch commands it
// implies. It is a pure translation: nothing is executed here, and resolver
// failures are logged rather than propagated so that the triggering entity
// write never fails because a check misbehaved.
func (r *Registry) OnEntityEvent(ctx context.Context, entityType string, entity any, op EntityOp) []DispatchCommand {
	switch op {
	case EntityDeleted:
		return r.deleteCommands(ctx, entityType, entity)
	case EntitySaved:
		return r.runCommands(ctx, entityType, entity)
	default:
		return nil
	}
}

func (r *Registry) deleteCommands(ctx context.Context, entityType string, entity any) []DispatchCommand {
	var commands []DispatchCommand
	for _, c := range r.ChecksForEntityType(entityType) {
		identifier, err := c.Identifier(entity)
		if err != nil {
			logging.Warn(ctx, "cannot derive identifier for deleted entity",
				slog.String("slug", Slug(c)),
				slog.String("entity_type", entityType),
				slog.Any("err", errs.Loggable(err)))
			continue
		}
		commands = append(commands, DispatchCommand{
			Kind:       CommandDeleteResult,
			Slug:       Slug(c),
			Identifier: identifier,
		})
	}
	return commands
}

func (r *Registry) runCommands(ctx context.Context, entityType string, entity any) []DispatchCommand {
	var commands []DispatchCommand
	for _, binding := range r.triggered[entityType] {
		payloads, err := binding.resolve(ctx, entity)
		if err != nil {
			logging.Warn(ctx, "trigger payload resolution failed",
				slog.String("slug", binding.slug),
				slog.String("keyword", binding.keyword),
				slog.Any("err", errs.Loggable(err)))
			continue
		}
		for _, payload := range payloads {
			if payload == nil {
				continue
			}
			identifier, err := binding.chk.Identifier(payload)
			if err != nil {
				logging.Warn(ctx, "cannot derive identifier for trigger payload",
					slog.String("slug", binding.slug),
					slog.String("keyword", binding.keyword),
					slog.Any("err", errs.Loggable(err)))
				continue
			}
			commands = append(commands, DispatchCommand{
				Kind:       CommandRun,
				Slug:       binding.slug,
				Identifier: identifier,
				Queue:      binding.chk.Meta().Queue,
			})
		}
	}
	return commands
}
