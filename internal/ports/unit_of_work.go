package ports

import (
	"context"
	"sync"
)

// Tx is an opaque transaction handle for repositories/adapters.
// Infrastructure controls the concrete type (for example, *gorm.DB).
type Tx interface{}

// UnitOfWork defines a transaction boundary.
//
// This is intentionally callback-style: returning an error causes rollback,
// returning nil causes commit. After-commit hooks registered through
// AfterCommit inside fn run only once the commit succeeded.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in context.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext reads a transaction handle from context.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}

// AfterCommitBuffer collects hooks to run once the enclosing transaction has
// committed. The UnitOfWork implementation owns its lifecycle.
type AfterCommitBuffer struct {
	mu    sync.Mutex
	hooks []func(ctx context.Context)
}

func (b *AfterCommitBuffer) add(fn func(ctx context.Context)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, fn)
}

// Run executes and drains the buffered hooks. The context passed in must not
// carry the committed transaction handle.
func (b *AfterCommitBuffer) Run(ctx context.Context) {
	b.mu.Lock()
	hooks := b.hooks
	b.hooks = nil
	b.mu.Unlock()

	for _, fn := range hooks {
		fn(ctx)
	}
}

type afterCommitKey struct{}

// WithAfterCommitBuffer attaches a fresh hook buffer to the context.
func WithAfterCommitBuffer(ctx context.Context) (context.Context, *AfterCommitBuffer) {
	buf := &AfterCommitBuffer{}
	return context.WithValue(ctx, afterCommitKey{}, buf), buf
}

func afterCommitBufferFromContext(ctx context.Context) *AfterCommitBuffer {
	if ctx == nil {
		return nil
	}
	buf, ok := ctx.Value(afterCommitKey{}).(*AfterCommitBuffer)
	if !ok {
		return nil
	}
	return buf
}

// AfterCommit schedules fn to run after the enclosing transaction commits.
// Outside a transaction fn runs immediately. Dispatching check re-evaluations
// goes through this so a triggered check never reads a pre-commit snapshot.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if buf := afterCommitBufferFromContext(ctx); buf != nil {
		buf.add(fn)
		return
	}
	fn(ctx)
}
