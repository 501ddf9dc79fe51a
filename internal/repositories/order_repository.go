package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/database"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/orderstatus"
	"github.com/example/bakery/internal/utils"
)

// OrderRepository persists orders and their items.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository constructs OrderRepository.
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func orderNotFound(id uuid.UUID) string {
	return fmt.Sprintf("order %s not found", id)
}

// Create inserts order together with its items.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	err := r.conn(ctx).Create(order).Error
	return mapError(err, "", "order number already exists")
}

// FindByID loads an order with its items.
func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (models.Order, error) {
	var order models.Order
	err := r.conn(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		First(&order, "id = ?", id).Error
	return order, mapError(err, orderNotFound(id), "")
}

// FindForUpdate locks the order row for the rest of the transaction and
// loads its items.
func (r *OrderRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (models.Order, error) {
	var order models.Order
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return order, mapError(err, orderNotFound(id), "")
	}

	items, err := r.Items(ctx, id)
	if err != nil {
		return order, err
	}
	order.Items = items
	return order, nil
}

// List returns one page of orders, newest first, and the total match count.
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	query := r.conn(ctx).Model(&models.Order{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		q := containsPattern(search)
		query = query.Where("order_number ILIKE ? OR delivery_address ILIKE ? OR phone ILIKE ?", q, q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Storage(err)
	}

	pg := utils.NewPagination(filter.Page, filter.PageSize)
	var orders []models.Order
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Order("created_at DESC").Order("id").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, apperrors.Storage(err)
	}
	return orders, total, nil
}

// Batch returns up to limit orders ordered by (created_at, id), starting
// after the given order. A nil after starts from the beginning.
func (r *OrderRepository) Batch(ctx context.Context, after *models.Order, limit int) ([]models.Order, error) {
	query := r.conn(ctx).Model(&models.Order{})
	if after != nil {
		query = query.Where("(created_at, id) > (?, ?)", after.CreatedAt, after.ID)
	}

	var orders []models.Order
	if err := query.Order("created_at").Order("id").Limit(limit).Find(&orders).Error; err != nil {
		return nil, apperrors.Storage(err)
	}
	return orders, nil
}

// TransitionStatus moves the order from one status to another only when the
// stored status still equals from.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to orderstatus.Status, at time.Time) error {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	if to == orderstatus.Cancelled {
		updates["cancelled_at"] = at
	}

	result := r.conn(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return apperrors.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.InvalidTransition("order %s is no longer %s", id, from)
	}
	return nil
}

// Items returns the items of an order in insertion order.
func (r *OrderRepository) Items(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.conn(ctx).
		Where("order_id = ?", orderID).
		Order("created_at").Order("id").
		Find(&items).Error
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return items, nil
}

// UpdateTotal replaces the stored total only while it still equals old.
func (r *OrderRepository) UpdateTotal(ctx context.Context, id uuid.UUID, old, total decimal.Decimal) error {
	result := r.conn(ctx).Model(&models.Order{}).
		Where("id = ? AND total_amount = ?", id, old).
		Updates(map[string]any{
			"total_amount": total,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return apperrors.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.InvalidTransition("order %s is missing or its total changed since it was read", id)
	}
	return nil
}

// Revenue sums the totals of every order that was not cancelled.
func (r *OrderRepository) Revenue(ctx context.Context) (decimal.Decimal, error) {
	var row struct {
		Revenue decimal.Decimal
	}
	err := r.conn(ctx).Model(&models.Order{}).
		Select("COALESCE(SUM(total_amount), 0) AS revenue").
		Where("status <> ?", orderstatus.Cancelled).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, apperrors.Storage(err)
	}
	return row.Revenue, nil
}
