package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/bakery/internal/models"
)

type ctxKey int

const (
	connKey ctxKey = iota
	identityKey
	hooksKey
)

type commitHooks struct {
	fns []func(context.Context)
}

// WithIdentity records the caller whose credentials scope every transaction
// opened from ctx.
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(models.Identity)
	return identity, ok
}

// WithConn stores the request-scoped handle in ctx.
func WithConn(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, connKey, tx)
}

func connFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(connKey).(*gorm.DB)
	return tx, ok && tx != nil
}

// Conn returns the handle bound to ctx, falling back to base.
func Conn(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx, ok := connFrom(ctx); ok {
		return tx
	}
	return base.WithContext(ctx)
}

// ApplyIdentity exposes the caller to row-level security policies for the
// rest of the transaction.
func ApplyIdentity(tx *gorm.DB, identity models.Identity) error {
	userID := ""
	if !identity.Anonymous() {
		userID = identity.UserID.String()
	}
	return tx.Exec(
		"SELECT set_config('app.user_id', ?, true), set_config('app.role', ?, true)",
		userID, string(identity.Role),
	).Error
}

// TxRunner opens transactions scoped to the identity carried by the context.
// Calls made while a transaction is already bound become savepoints.
type TxRunner struct {
	db *gorm.DB
}

// NewTxRunner constructs a TxRunner over db.
func NewTxRunner(db *gorm.DB) *TxRunner {
	return &TxRunner{db: db}
}

// RunInTx executes fn inside a transaction. Hooks registered with
// AfterCommit run once the outermost transaction has committed.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	if tx, ok := connFrom(ctx); ok {
		hooks, _ := ctx.Value(hooksKey).(*commitHooks)
		mark := 0
		if hooks != nil {
			mark = len(hooks.fns)
		}
		err := tx.Transaction(func(nested *gorm.DB) error {
			return fn(WithConn(ctx, nested))
		})
		if err != nil && hooks != nil {
			hooks.fns = hooks.fns[:mark]
		}
		return err
	}

	hooks := &commitHooks{}
	txCtx := context.WithValue(ctx, hooksKey, hooks)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if identity, ok := IdentityFrom(ctx); ok {
			if err := ApplyIdentity(tx, identity); err != nil {
				return err
			}
		}
		return fn(WithConn(txCtx, tx))
	})
	if err != nil {
		return err
	}

	for _, hook := range hooks.fns {
		hook(ctx)
	}
	return nil
}

// AfterCommit defers fn until the transaction bound to ctx commits. Hooks
// registered inside a savepoint that rolls back are dropped. Without a bound
// transaction fn runs immediately.
func (r *TxRunner) AfterCommit(ctx context.Context, fn func(context.Context)) {
	if hooks, ok := ctx.Value(hooksKey).(*commitHooks); ok {
		hooks.fns = append(hooks.fns, fn)
		return
	}
	fn(ctx)
}
