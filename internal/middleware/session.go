package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/example/bakery/internal/database"
)

// TxRunner opens a transaction scoped to the identity found in ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Session runs the rest of the chain inside one transaction carrying the
// caller identity, so row-level security sees who is asking. A handler error
// rolls the transaction back.
func Session(runner TxRunner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, _ := GetCurrentIdentity(c)
		ctx := database.WithIdentity(c.UserContext(), identity)

		return runner.RunInTx(ctx, func(txCtx context.Context) error {
			c.SetUserContext(txCtx)
			return c.Next()
		})
	}
}
