package uow

import (
	"context"

	"gorm.io/gorm"

	"datawatch/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm.
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithTx runs fn inside a database transaction. After-commit hooks registered
// through ports.AfterCommit during fn run once the commit succeeded, with a
// context that no longer carries the transaction handle. A nested call joins
// the enclosing transaction; its hooks fire when the outermost commit lands.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ports.TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	hookCtx, buf := ports.WithAfterCommitBuffer(ctx)
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(hookCtx, tx))
	})
	if err != nil {
		return err
	}

	buf.Run(ctx)
	return nil
}
