package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/services"
	"github.com/example/bakery/internal/utils"
)

// CatalogService is the product catalog as seen by HTTP handlers.
type CatalogService interface {
	Get(ctx context.Context, actor models.Identity, id uuid.UUID) (models.Product, error)
	GetByCode(ctx context.Context, actor models.Identity, code string) (models.Product, error)
	List(ctx context.Context, actor models.Identity, filter models.ProductFilter) (services.Page[models.Product], error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, input services.ProductInput) (models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input services.ProductInput) (models.Product, error)
	ToggleActive(ctx context.Context, id uuid.UUID) (models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductImporter loads products in bulk.
type ProductImporter interface {
	Import(ctx context.Context, inputs []services.ProductInput) (services.ImportResult, error)
}

// ProductHandler exposes product endpoints.
type ProductHandler struct {
	catalog  CatalogService
	importer ProductImporter
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(catalog CatalogService, importer ProductImporter) *ProductHandler {
	return &ProductHandler{catalog: catalog, importer: importer}
}

// ListProducts returns products with optional filters and pagination.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := models.ProductFilter{
		Search:   strings.TrimSpace(c.Query("search")),
		Category: strings.TrimSpace(c.Query("category")),
		Page:     pg.Page,
		PageSize: pg.Limit,
	}

	if v := c.Query("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.Validation("is_active must be true or false")
		}
		filter.Active = &active
	}

	var err error
	if filter.MinPrice, err = parsePrice(c.Query("min_price"), "min_price"); err != nil {
		return err
	}
	if filter.MaxPrice, err = parsePrice(c.Query("max_price"), "max_price"); err != nil {
		return err
	}

	switch sort := models.ProductSort(c.Query("sort_by", string(models.SortByCreatedAt))); sort {
	case models.SortByName, models.SortByPrice, models.SortByCreatedAt:
		filter.SortBy = sort
	default:
		return apperrors.Validation("sort_by must be one of name, price, created_at")
	}

	switch strings.ToLower(c.Query("order", "desc")) {
	case "asc":
	case "desc":
		filter.Desc = true
	default:
		return apperrors.Validation("order must be asc or desc")
	}

	page, err := h.catalog.List(c.UserContext(), currentIdentity(c), filter)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       page.Items,
		"pagination": paginationMeta(page.Page, page.PageSize, page.Total),
	})
}

func parsePrice(raw, field string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperrors.Validation("%s must be a number", field)
	}
	return &value, nil
}

// GetProduct returns a single product by id.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	product, err := h.catalog.Get(c.UserContext(), currentIdentity(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// GetProductByCode returns a single product by its catalog code.
func (h *ProductHandler) GetProductByCode(c *fiber.Ctx) error {
	product, err := h.catalog.GetByCode(c.UserContext(), currentIdentity(c), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// ListCategories returns the distinct product categories.
func (h *ProductHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.Categories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": categories})
}

func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req services.ProductInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	product, err := h.catalog.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req services.ProductInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	product, err := h.catalog.Update(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// ToggleActive flips product visibility.
func (h *ProductHandler) ToggleActive(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	product, err := h.catalog.ToggleActive(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.catalog.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "product deleted"})
}

type bulkImportRequest struct {
	Products []services.ProductInput `json:"products"`
}

// BulkImport inserts many products and reports per-record failures.
func (h *ProductHandler) BulkImport(c *fiber.Ctx) error {
	var req bulkImportRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}
	if len(req.Products) == 0 {
		return apperrors.Validation("products must not be empty")
	}

	result, err := h.importer.Import(c.UserContext(), req.Products)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": result.Errors == 0, "data": result})
}

// RegisterProductRoutes mounts the product endpoints. Reads accept anonymous
// callers; writes require the admin role.
func (h *ProductHandler) RegisterProductRoutes(router fiber.Router, admin ...fiber.Handler) {
	router.Get("/", h.ListProducts)
	router.Get("/code/:code", h.GetProductByCode)
	router.Get("/:id", h.GetProduct)

	router.Post("/", chain(admin, h.CreateProduct)...)
	router.Post("/bulk", chain(admin, h.BulkImport)...)
	router.Put("/:id", chain(admin, h.UpdateProduct)...)
	router.Patch("/:id/toggle-active", chain(admin, h.ToggleActive)...)
	router.Delete("/:id", chain(admin, h.DeleteProduct)...)
}

func chain(guards []fiber.Handler, handler fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(guards)+1)
	out = append(out, guards...)
	return append(out, handler)
}
