package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/utils"
)

var (
	productCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{1,31}$`)
	maxTaxRate         = decimal.NewFromInt(100)
	maxStock           = decimal.NewFromInt(1_000_000_000)
)

// ProductInput is the writable shape of a product, shared by single edits
// and bulk import. Stock is decimal so fractional values can be rejected
// rather than silently truncated.
type ProductInput struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Category    string          `json:"category"`
	IsActive    *bool           `json:"is_active"`
	Stock       decimal.Decimal `json:"stock"`
}

// Normalize trims surrounding whitespace and upper-cases the code.
func (in ProductInput) Normalize() ProductInput {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.Description != nil {
		in.Description = optionalString(*in.Description)
	}
	return in
}

// Validate checks the input against the catalog constraints.
func (in ProductInput) Validate() error {
	switch {
	case !productCodePattern.MatchString(in.Code):
		return apperrors.Validation("code %q must be 2-32 characters of A-Z, 0-9, '-' or '_'", in.Code)
	case in.Name == "":
		return apperrors.Validation("name is required")
	case in.Price.IsNegative():
		return apperrors.Validation("price must not be negative")
	case in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(maxTaxRate):
		return apperrors.Validation("tax_rate must be between 0 and 100")
	case in.Stock.IsNegative() || !in.Stock.IsInteger():
		return apperrors.Validation("stock must be a non-negative integer")
	case in.Stock.GreaterThan(maxStock):
		return apperrors.Validation("stock must not exceed %s", maxStock)
	case in.Category == "":
		return apperrors.Validation("category is required")
	}
	return nil
}

// apply copies the input onto product. New products are active unless told otherwise.
func (in ProductInput) apply(product *models.Product) {
	product.Code = in.Code
	product.Name = in.Name
	product.Description = in.Description
	product.Price = in.Price.Round(2)
	product.TaxRate = in.TaxRate.Round(2)
	product.Category = in.Category
	product.Stock = int(in.Stock.IntPart())
	if in.IsActive != nil {
		product.IsActive = *in.IsActive
	} else if product.ID == uuid.Nil {
		product.IsActive = true
	}
}

// CatalogService manages products.
type CatalogService struct {
	products ProductRepository
	log      *zap.Logger
}

func NewCatalogService(products ProductRepository, log *zap.Logger) (*CatalogService, error) {
	if products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{products: products, log: log}, nil
}

// Get returns a product by id. Inactive products are only visible to admins.
func (s *CatalogService) Get(ctx context.Context, actor models.Identity, id uuid.UUID) (models.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	return visibleTo(actor, product, id.String())
}

func (s *CatalogService) GetByCode(ctx context.Context, actor models.Identity, code string) (models.Product, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	product, err := s.products.FindByCode(ctx, code)
	if err != nil {
		return models.Product{}, err
	}
	return visibleTo(actor, product, code)
}

func visibleTo(actor models.Identity, product models.Product, key string) (models.Product, error) {
	if !product.IsActive && !actor.IsAdmin() {
		return models.Product{}, apperrors.NotFound("product %s not found", key)
	}
	return product, nil
}

// List returns a page of products. Non-admin callers only see active ones.
func (s *CatalogService) List(ctx context.Context, actor models.Identity, filter models.ProductFilter) (Page[models.Product], error) {
	if !actor.IsAdmin() {
		active := true
		filter.Active = &active
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return Page[models.Product]{}, apperrors.Validation("min_price must not exceed max_price")
	}
	pg := utils.NewPagination(filter.Page, filter.PageSize)
	filter.Page, filter.PageSize = pg.Page, pg.Limit

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return Page[models.Product]{}, err
	}
	return Page[models.Product]{Items: products, Total: total, Page: pg.Page, PageSize: pg.Limit}, nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	return s.products.Categories(ctx)
}

func (s *CatalogService) Create(ctx context.Context, input ProductInput) (models.Product, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return models.Product{}, err
	}

	var product models.Product
	input.apply(&product)
	if err := s.products.Create(ctx, &product); err != nil {
		return models.Product{}, err
	}
	s.log.Info("product created", zap.String("code", product.Code))
	return product, nil
}

// Update replaces the editable fields of an existing product.
func (s *CatalogService) Update(ctx context.Context, id uuid.UUID, input ProductInput) (models.Product, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return models.Product{}, err
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	input.apply(&product)
	if err := s.products.Update(ctx, &product); err != nil {
		return models.Product{}, err
	}
	s.log.Info("product updated", zap.String("code", product.Code))
	return product, nil
}

func (s *CatalogService) ToggleActive(ctx context.Context, id uuid.UUID) (models.Product, error) {
	product, err := s.products.ToggleActive(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	s.log.Info("product visibility toggled", zap.String("code", product.Code), zap.Bool("active", product.IsActive))
	return product, nil
}

// Delete removes the product. Order items keep their snapshots.
func (s *CatalogService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("product deleted", zap.String("product_id", id.String()))
	return nil
}
