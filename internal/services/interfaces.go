package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/orderstatus"
)

// ProductRepository is the catalog persistence boundary.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (models.Product, error)
	FindByCode(ctx context.Context, code string) (models.Product, error)
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error)
	Create(ctx context.Context, product *models.Product) error
	CreateBatch(ctx context.Context, products []models.Product) error
	Update(ctx context.Context, product *models.Product) error
	ToggleActive(ctx context.Context, id uuid.UUID) (models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Categories(ctx context.Context) ([]string, error)
	ReserveStock(ctx context.Context, id uuid.UUID, quantity int) error
	RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error
}

// OrderRepository is the order persistence boundary.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (models.Order, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (models.Order, error)
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error)
	Batch(ctx context.Context, after *models.Order, limit int) ([]models.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to orderstatus.Status, at time.Time) error
	Items(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	UpdateTotal(ctx context.Context, id uuid.UUID, old, total decimal.Decimal) error
	Revenue(ctx context.Context) (decimal.Decimal, error)
}

// CorrectionRepository records repaired order totals.
type CorrectionRepository interface {
	Record(ctx context.Context, correction *models.TotalCorrection) error
}

// UserRepository is the account persistence boundary.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// UnitOfWork runs fn inside a transaction bound to the returned context.
// AfterCommit defers fn until the transaction bound to ctx has committed.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	AfterCommit(ctx context.Context, fn func(ctx context.Context))
}

// Notifier delivers order events to staff. Delivery is best effort.
type Notifier interface {
	NotifyNewOrder(ctx context.Context, order models.Order) error
	NotifyOrderCancelled(ctx context.Context, order models.Order) error
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (noopUnitOfWork) AfterCommit(ctx context.Context, fn func(context.Context)) {
	fn(ctx)
}

type noopNotifier struct{}

func (noopNotifier) NotifyNewOrder(context.Context, models.Order) error       { return nil }
func (noopNotifier) NotifyOrderCancelled(context.Context, models.Order) error { return nil }

// Page is one page of a listing.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}
