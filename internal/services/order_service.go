package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/orderstatus"
	"github.com/example/bakery/internal/utils"
)

const orderNumberPrefix = "BK-"

// OrderItemInput is one requested line of a new order.
type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// PlaceOrderInput carries a checkout request.
type PlaceOrderInput struct {
	Items           []OrderItemInput
	DeliveryDate    *time.Time
	DeliveryAddress string
	Phone           string
	Notes           string
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders         OrderRepository
	Products       ProductRepository
	UnitOfWork     UnitOfWork
	Notifier       Notifier
	Logger         *zap.Logger
	Clock          func() time.Time
	OrderNumberGen func(time.Time) string
}

// OrderService runs checkout and the order lifecycle.
type OrderService struct {
	orders     OrderRepository
	products   ProductRepository
	unitOfWork UnitOfWork
	notifier   Notifier
	log        *zap.Logger
	clock      func() time.Time
	newNumber  func(time.Time) string
}

// NewOrderService wires dependencies into an OrderService.
func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}

	svc := &OrderService{
		orders:     deps.Orders,
		products:   deps.Products,
		unitOfWork: deps.UnitOfWork,
		notifier:   deps.Notifier,
		log:        deps.Logger,
		newNumber:  deps.OrderNumberGen,
	}
	if svc.unitOfWork == nil {
		svc.unitOfWork = noopUnitOfWork{}
	}
	if svc.notifier == nil {
		svc.notifier = noopNotifier{}
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	svc.clock = func() time.Time { return clock().UTC() }
	if svc.newNumber == nil {
		svc.newNumber = func(now time.Time) string {
			return orderNumberPrefix + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
		}
	}
	return svc, nil
}

// Place validates a checkout request, snapshots catalog prices into order
// items, reserves stock and stores the order as pending.
func (s *OrderService) Place(ctx context.Context, actor models.Identity, input PlaceOrderInput) (models.Order, error) {
	if actor.Anonymous() {
		return models.Order{}, apperrors.Unauthorized("authentication required")
	}
	if len(input.Items) == 0 {
		return models.Order{}, apperrors.Validation("order must contain at least one item")
	}
	for i, line := range input.Items {
		if line.ProductID == uuid.Nil {
			return models.Order{}, apperrors.Validation("item %d: product_id is required", i+1)
		}
		if line.Quantity <= 0 {
			return models.Order{}, apperrors.Validation("item %d: quantity must be greater than zero", i+1)
		}
	}

	now := s.clock()
	if input.DeliveryDate != nil {
		delivery := startOfDay(*input.DeliveryDate)
		if delivery.Before(startOfDay(now)) {
			return models.Order{}, apperrors.Validation("delivery date must not be in the past")
		}
		input.DeliveryDate = &delivery
	}

	order := models.Order{
		UserID:          actor.UserID,
		OrderNumber:     s.newNumber(now),
		Status:          orderstatus.Pending,
		DeliveryDate:    input.DeliveryDate,
		DeliveryAddress: optionalString(input.DeliveryAddress),
		Phone:           optionalString(input.Phone),
		Notes:           optionalString(input.Notes),
	}

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		items := make([]models.OrderItem, 0, len(input.Items))
		for _, line := range input.Items {
			product, err := s.products.FindByID(txCtx, line.ProductID)
			if err != nil {
				return err
			}
			if !product.IsActive {
				return apperrors.Validation("product %s is not available", product.Code)
			}
			if err := s.products.ReserveStock(txCtx, product.ID, line.Quantity); err != nil {
				return err
			}
			items = append(items, newOrderItem(product, line.Quantity))
		}

		order.Items = items
		order.TotalAmount = RecomputeTotal(items)
		return s.orders.Create(txCtx, &order)
	})
	if err != nil {
		return models.Order{}, err
	}

	s.log.Info("order placed",
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", actor.UserID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	s.unitOfWork.AfterCommit(ctx, func(ctx context.Context) {
		if err := s.notifier.NotifyNewOrder(ctx, order); err != nil {
			s.log.Warn("new order notification failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
		}
	})
	return order, nil
}

func newOrderItem(product models.Product, quantity int) models.OrderItem {
	productID := product.ID
	unitWithTax := product.PriceWithTax()
	return models.OrderItem{
		ProductID:        &productID,
		ProductCode:      product.Code,
		ProductName:      product.Name,
		Quantity:         quantity,
		UnitPrice:        product.Price,
		UnitPriceWithTax: unitWithTax,
		TaxRate:          product.TaxRate,
		LineTotal:        decimal.NewNullDecimal(unitWithTax.Mul(decimal.NewFromInt(int64(quantity)))),
	}
}

// Get returns an order visible to actor. Orders of other customers are
// reported as missing.
func (s *OrderService) Get(ctx context.Context, actor models.Identity, id uuid.UUID) (models.Order, error) {
	var order models.Order
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByID(txCtx, id)
		return err
	})
	if err != nil {
		return models.Order{}, err
	}
	if !canSee(actor, order) {
		return models.Order{}, apperrors.NotFound("order %s not found", id)
	}
	return order, nil
}

// List pages through orders. Customers only ever see their own.
func (s *OrderService) List(ctx context.Context, actor models.Identity, filter models.OrderFilter) (Page[models.Order], error) {
	if !actor.IsAdmin() {
		userID := actor.UserID
		filter.UserID = &userID
	}
	pg := utils.NewPagination(filter.Page, filter.PageSize)
	filter.Page, filter.PageSize = pg.Page, pg.Limit

	var (
		orders []models.Order
		total  int64
	)
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		orders, total, err = s.orders.List(txCtx, filter)
		return err
	})
	if err != nil {
		return Page[models.Order]{}, err
	}
	return Page[models.Order]{Items: orders, Total: total, Page: pg.Page, PageSize: pg.Limit}, nil
}

// Cancel cancels an order on behalf of its owner or an admin. When the caller
// supplies the status it last saw, an ineligible status is rejected before
// any storage access. The stored status is then re-checked under a row lock,
// and the status change and stock restoration commit together.
func (s *OrderService) Cancel(ctx context.Context, actor models.Identity, id uuid.UUID, seen *orderstatus.Status) (models.Order, error) {
	if actor.Anonymous() {
		return models.Order{}, apperrors.Unauthorized("authentication required")
	}
	if seen != nil {
		if ok, reason := orderstatus.Cancellable(*seen); !ok {
			return models.Order{}, apperrors.InvalidTransition("%s", reason)
		}
	}

	var cancelled models.Order
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !canSee(actor, order) {
			return apperrors.NotFound("order %s not found", id)
		}
		if ok, reason := orderstatus.Cancellable(order.Status); !ok {
			return apperrors.InvalidTransition("%s", reason)
		}

		cancelled, err = s.moveTo(txCtx, order, orderstatus.Cancelled)
		return err
	})
	if err != nil {
		return models.Order{}, err
	}

	s.log.Info("order cancelled",
		zap.String("order_number", cancelled.OrderNumber),
		zap.String("actor_id", actor.UserID.String()),
		zap.String("actor_role", string(actor.Role)),
	)
	s.notifyCancelled(ctx, cancelled)
	return cancelled, nil
}

// UpdateStatus moves an order along the lifecycle. Admin only.
func (s *OrderService) UpdateStatus(ctx context.Context, actor models.Identity, id uuid.UUID, to orderstatus.Status) (models.Order, error) {
	if !actor.IsAdmin() {
		return models.Order{}, apperrors.Forbidden("admin role required")
	}
	if !to.Valid() {
		return models.Order{}, apperrors.Validation("unknown order status %q", to)
	}

	var (
		updated models.Order
		from    orderstatus.Status
	)
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		from = order.Status
		if !orderstatus.CanTransition(from, to) {
			return apperrors.InvalidTransition("cannot change order status from %s to %s", from, to)
		}

		updated, err = s.moveTo(txCtx, order, to)
		return err
	})
	if err != nil {
		return models.Order{}, err
	}

	s.log.Info("order status changed",
		zap.String("order_number", updated.OrderNumber),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	if to == orderstatus.Cancelled {
		s.notifyCancelled(ctx, updated)
	}
	return updated, nil
}

// moveTo writes the transition conditionally on the status just read and,
// for cancellations, returns reserved stock.
func (s *OrderService) moveTo(ctx context.Context, order models.Order, to orderstatus.Status) (models.Order, error) {
	now := s.clock()
	if err := s.orders.TransitionStatus(ctx, order.ID, order.Status, to, now); err != nil {
		return models.Order{}, err
	}
	if to == orderstatus.Cancelled {
		if err := s.restoreStock(ctx, order.Items); err != nil {
			return models.Order{}, err
		}
		order.CancelledAt = &now
	}
	order.Status = to
	order.UpdatedAt = now
	return order, nil
}

func (s *OrderService) restoreStock(ctx context.Context, items []models.OrderItem) error {
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		err := s.products.RestoreStock(ctx, *item.ProductID, item.Quantity)
		if apperrors.Is(err, apperrors.CodeNotFound) {
			s.log.Warn("product removed before stock could be restored",
				zap.String("product_code", item.ProductCode),
				zap.Int("quantity", item.Quantity),
			)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderService) notifyCancelled(ctx context.Context, order models.Order) {
	s.unitOfWork.AfterCommit(ctx, func(ctx context.Context) {
		if err := s.notifier.NotifyOrderCancelled(ctx, order); err != nil {
			s.log.Warn("cancellation notification failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
		}
	})
}

func canSee(actor models.Identity, order models.Order) bool {
	return actor.IsAdmin() || (!actor.Anonymous() && order.UserID == actor.UserID)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
