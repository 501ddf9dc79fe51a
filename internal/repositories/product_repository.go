package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/database"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/utils"
)

// ProductRepository persists catalog products.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository constructs ProductRepository.
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func productNotFound(key string) string {
	return fmt.Sprintf("product %s not found", key)
}

func duplicateCode(code string) string {
	return fmt.Sprintf("product code %q already exists", code)
}

func (r *ProductRepository) FindByID(ctx context.Context, id uuid.UUID) (models.Product, error) {
	var product models.Product
	err := r.conn(ctx).First(&product, "id = ?", id).Error
	return product, mapError(err, productNotFound(id.String()), "")
}

func (r *ProductRepository) FindByCode(ctx context.Context, code string) (models.Product, error) {
	var product models.Product
	err := r.conn(ctx).First(&product, "code = ?", code).Error
	return product, mapError(err, productNotFound(code), "")
}

// List returns one page of products matching filter and the total match count.
func (r *ProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	query := r.conn(ctx).Model(&models.Product{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		q := containsPattern(search)
		query = query.Where("name ILIKE ? OR code ILIKE ? OR description ILIKE ?", q, q, q)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Storage(err)
	}

	pg := utils.NewPagination(filter.Page, filter.PageSize)
	var products []models.Product
	err := query.
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortColumn(filter.SortBy)}, Desc: filter.Desc}).
		Order("id").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&products).Error
	if err != nil {
		return nil, 0, apperrors.Storage(err)
	}

	return products, total, nil
}

func sortColumn(sort models.ProductSort) string {
	switch sort {
	case models.SortByName, models.SortByPrice:
		return string(sort)
	default:
		return string(models.SortByCreatedAt)
	}
}

// Create inserts product. The unique index on code decides duplicates.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	err := r.conn(ctx).Create(product).Error
	return mapError(err, "", duplicateCode(product.Code))
}

// CreateBatch inserts products in one statement inside a savepoint, so a
// failed batch leaves the surrounding transaction usable.
func (r *ProductRepository) CreateBatch(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&products).Error
	})
	return mapError(err, "", "batch contains a product code that already exists")
}

// Update overwrites the editable columns of product.
func (r *ProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now()
	result := r.conn(ctx).Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"code":        product.Code,
			"name":        product.Name,
			"description": product.Description,
			"price":       product.Price,
			"tax_rate":    product.TaxRate,
			"category":    product.Category,
			"is_active":   product.IsActive,
			"stock":       product.Stock,
			"updated_at":  product.UpdatedAt,
		})
	if result.Error != nil {
		return mapError(result.Error, "", duplicateCode(product.Code))
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("%s", productNotFound(product.ID.String()))
	}
	return nil
}

// ToggleActive flips is_active in a single statement and returns the updated row.
func (r *ProductRepository) ToggleActive(ctx context.Context, id uuid.UUID) (models.Product, error) {
	result := r.conn(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":  gorm.Expr("NOT is_active"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return models.Product{}, apperrors.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.Product{}, apperrors.NotFound("%s", productNotFound(id.String()))
	}
	return r.FindByID(ctx, id)
}

func (r *ProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.conn(ctx).Delete(&models.Product{}, "id = ?", id)
	if result.Error != nil {
		return apperrors.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("%s", productNotFound(id.String()))
	}
	return nil
}

// Categories lists the distinct categories present in the catalog.
func (r *ProductRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.conn(ctx).Model(&models.Product{}).
		Distinct("category").
		Order("category").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return categories, nil
}

// ReserveStock decrements stock only when enough units remain.
func (r *ProductRepository) ReserveStock(ctx context.Context, id uuid.UUID, quantity int) error {
	result := r.conn(ctx).Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return apperrors.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.Validation("insufficient stock for product %s", id)
	}
	return nil
}

// RestoreStock returns quantity units to the product's stock.
func (r *ProductRepository) RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error {
	result := r.conn(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", quantity))
	if result.Error != nil {
		return apperrors.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("%s", productNotFound(id.String()))
	}
	return nil
}
