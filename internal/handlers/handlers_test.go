package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/middleware"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/orderstatus"
	"github.com/example/bakery/internal/services"
	"github.com/example/bakery/internal/utils"
)

const testSecret = "handler-test-secret"

type stubOrders struct {
	placeFn  func(models.Identity, services.PlaceOrderInput) (models.Order, error)
	getFn    func(models.Identity, uuid.UUID) (models.Order, error)
	listFn   func(models.Identity, models.OrderFilter) (services.Page[models.Order], error)
	cancelFn func(models.Identity, uuid.UUID, *orderstatus.Status) (models.Order, error)
	updateFn func(models.Identity, uuid.UUID, orderstatus.Status) (models.Order, error)
}

func (s *stubOrders) Place(_ context.Context, actor models.Identity, input services.PlaceOrderInput) (models.Order, error) {
	return s.placeFn(actor, input)
}

func (s *stubOrders) Get(_ context.Context, actor models.Identity, id uuid.UUID) (models.Order, error) {
	return s.getFn(actor, id)
}

func (s *stubOrders) List(_ context.Context, actor models.Identity, filter models.OrderFilter) (services.Page[models.Order], error) {
	return s.listFn(actor, filter)
}

func (s *stubOrders) Cancel(_ context.Context, actor models.Identity, id uuid.UUID, seen *orderstatus.Status) (models.Order, error) {
	return s.cancelFn(actor, id, seen)
}

func (s *stubOrders) UpdateStatus(_ context.Context, actor models.Identity, id uuid.UUID, to orderstatus.Status) (models.Order, error) {
	return s.updateFn(actor, id, to)
}

type stubCatalog struct {
	CatalogService
	listFn   func(models.Identity, models.ProductFilter) (services.Page[models.Product], error)
	createFn func(services.ProductInput) (models.Product, error)
}

func (s *stubCatalog) List(_ context.Context, actor models.Identity, filter models.ProductFilter) (services.Page[models.Product], error) {
	return s.listFn(actor, filter)
}

func (s *stubCatalog) Create(_ context.Context, input services.ProductInput) (models.Product, error) {
	return s.createFn(input)
}

type stubImporter struct {
	got []services.ProductInput
}

func (s *stubImporter) Import(_ context.Context, inputs []services.ProductInput) (services.ImportResult, error) {
	s.got = inputs
	return services.ImportResult{
		Success: len(inputs) - 1,
		Errors:  1,
		Details: []services.ImportDetail{{Index: 0, Code: inputs[0].Code, ErrorCode: apperrors.CodeDuplicateCode, Message: "duplicate"}},
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
	Error   struct {
		Code    apperrors.Code `json:"code"`
		Message string         `json:"message"`
	} `json:"error"`
	Pagination map[string]any `json:"pagination"`
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	app.Use(middleware.OptionalAuth(testSecret))
	return app
}

func bearer(t *testing.T, identity models.Identity) string {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, identity, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, app *fiber.App, method, path, body, auth string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set(fiber.HeaderAuthorization, auth)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func TestErrorHandlerEnvelope(t *testing.T) {
	app := newApp()
	app.Get("/app", func(*fiber.Ctx) error { return apperrors.NotFound("order 7 not found") })
	app.Get("/wrapped", func(*fiber.Ctx) error {
		return errors.Join(errors.New("context"), apperrors.DuplicateCode(`product code "PAN-01" already exists`))
	})
	app.Get("/fiber", func(*fiber.Ctx) error { return fiber.NewError(fiber.StatusMethodNotAllowed, "nope") })
	app.Get("/plain", func(*fiber.Ctx) error { return errors.New("dial tcp: connection refused") })

	status, env := do(t, app, http.MethodGet, "/app", "", "")
	require.Equal(t, http.StatusNotFound, status)
	require.False(t, env.Success)
	require.Equal(t, apperrors.CodeNotFound, env.Error.Code)
	require.Equal(t, "order 7 not found", env.Error.Message)

	status, env = do(t, app, http.MethodGet, "/wrapped", "", "")
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, apperrors.CodeDuplicateCode, env.Error.Code)

	status, env = do(t, app, http.MethodGet, "/fiber", "", "")
	require.Equal(t, http.StatusMethodNotAllowed, status)
	require.Equal(t, apperrors.CodeValidation, env.Error.Code)

	status, env = do(t, app, http.MethodGet, "/plain", "", "")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, apperrors.CodeStorage, env.Error.Code)
	require.Equal(t, "dial tcp: connection refused", env.Error.Message)
}

func TestCancelOrderPassesSeenStatus(t *testing.T) {
	customer := models.Identity{UserID: uuid.New(), Role: models.RoleCliente}
	orderID := uuid.New()

	var gotSeen *orderstatus.Status
	orders := &stubOrders{cancelFn: func(actor models.Identity, id uuid.UUID, seen *orderstatus.Status) (models.Order, error) {
		require.Equal(t, customer, actor)
		require.Equal(t, orderID, id)
		gotSeen = seen
		if seen != nil && *seen == orderstatus.Ready {
			return models.Order{}, apperrors.InvalidTransition("%s", orderstatus.ReasonReady)
		}
		return models.Order{BaseModel: models.BaseModel{ID: id}, Status: orderstatus.Cancelled}, nil
	}}

	app := newApp()
	h := NewOrderHandler(orders)
	app.Post("/orders/:id/cancel", h.CancelOrder)

	status, env := do(t, app, http.MethodPost, "/orders/"+orderID.String()+"/cancel", `{"status":"ready"}`, bearer(t, customer))
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, apperrors.CodeInvalidTransition, env.Error.Code)
	require.Equal(t, orderstatus.ReasonReady, env.Error.Message)
	require.Equal(t, orderstatus.Ready, *gotSeen)

	status, env = do(t, app, http.MethodPost, "/orders/"+orderID.String()+"/cancel", "", bearer(t, customer))
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)
	require.Equal(t, "order cancelled", env.Message)
	require.Nil(t, gotSeen)

	status, env = do(t, app, http.MethodPost, "/orders/"+orderID.String()+"/cancel", `{"status":"baking"}`, bearer(t, customer))
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, apperrors.CodeValidation, env.Error.Code)

	status, _ = do(t, app, http.MethodPost, "/orders/not-a-uuid/cancel", "", bearer(t, customer))
	require.Equal(t, http.StatusBadRequest, status)

	status, env = do(t, app, http.MethodPost, "/orders/"+orderID.String()+"/cancel", "", "")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, apperrors.CodeUnauthorized, env.Error.Code)
}

func TestCreateOrderParsesRequest(t *testing.T) {
	customer := models.Identity{UserID: uuid.New(), Role: models.RoleCliente}
	productID := uuid.New()

	var got services.PlaceOrderInput
	orders := &stubOrders{placeFn: func(actor models.Identity, input services.PlaceOrderInput) (models.Order, error) {
		got = input
		return models.Order{OrderNumber: "BK-1", Status: orderstatus.Pending}, nil
	}}

	app := newApp()
	app.Post("/orders", NewOrderHandler(orders).CreateOrder)

	body := `{"items":[{"product_id":"` + productID.String() + `","quantity":2}],"delivery_date":"2026-12-24","notes":"sin azucar"}`
	status, env := do(t, app, http.MethodPost, "/orders", body, bearer(t, customer))
	require.Equal(t, http.StatusCreated, status)
	require.True(t, env.Success)
	require.Equal(t, []services.OrderItemInput{{ProductID: productID, Quantity: 2}}, got.Items)
	require.Equal(t, "2026-12-24", got.DeliveryDate.Format("2006-01-02"))
	require.Equal(t, "sin azucar", got.Notes)

	status, env = do(t, app, http.MethodPost, "/orders", `{"items":[{"product_id":"x","quantity":1}]}`, bearer(t, customer))
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, env.Error.Message, "product_id")

	status, _ = do(t, app, http.MethodPost, "/orders", `{"items":[],"delivery_date":"24/12/2026"}`, bearer(t, customer))
	require.Equal(t, http.StatusBadRequest, status)
}

func TestListProductsBuildsFilter(t *testing.T) {
	var got models.ProductFilter
	catalog := &stubCatalog{listFn: func(actor models.Identity, filter models.ProductFilter) (services.Page[models.Product], error) {
		require.True(t, actor.Anonymous())
		got = filter
		return services.Page[models.Product]{Items: []models.Product{{Code: "PAN-01"}}, Total: 41, Page: filter.Page, PageSize: filter.PageSize}, nil
	}}

	app := newApp()
	app.Get("/products", NewProductHandler(catalog, nil).ListProducts)

	status, env := do(t, app, http.MethodGet, "/products?search=pan&category=breads&min_price=100&max_price=2500.50&sort_by=price&order=asc&page=2&page_size=20", "", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "pan", got.Search)
	require.Equal(t, "breads", got.Category)
	require.Equal(t, "100", got.MinPrice.String())
	require.Equal(t, "2500.5", got.MaxPrice.String())
	require.Equal(t, models.SortByPrice, got.SortBy)
	require.False(t, got.Desc)
	require.Equal(t, 2, got.Page)
	require.EqualValues(t, 41, env.Pagination["total_items"])
	require.EqualValues(t, 3, env.Pagination["total_pages"])

	status, env = do(t, app, http.MethodGet, "/products?sort_by=stock", "", "")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, apperrors.CodeValidation, env.Error.Code)

	status, _ = do(t, app, http.MethodGet, "/products?min_price=cheap", "", "")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestCreateProductDecodesDecimals(t *testing.T) {
	var got services.ProductInput
	catalog := &stubCatalog{createFn: func(input services.ProductInput) (models.Product, error) {
		got = input
		return models.Product{Code: input.Code}, nil
	}}

	app := newApp()
	app.Post("/products", NewProductHandler(catalog, nil).CreateProduct)

	status, _ := do(t, app, http.MethodPost, "/products", `{"code":"PAN-01","name":"Pan","price":"1200.50","tax_rate":19,"category":"breads","stock":2.5}`, "")
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "1200.5", got.Price.String())
	require.Equal(t, "19", got.TaxRate.String())
	require.Equal(t, "2.5", got.Stock.String())
}

func TestBulkImportReturnsDetails(t *testing.T) {
	importer := &stubImporter{}
	app := newApp()
	app.Post("/products/bulk", NewProductHandler(nil, importer).BulkImport)

	status, env := do(t, app, http.MethodPost, "/products/bulk", `{"products":[{"code":"A-1"},{"code":"B-2"}]}`, "")
	require.Equal(t, http.StatusOK, status)
	require.False(t, env.Success)
	require.Len(t, importer.got, 2)

	var result services.ImportResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Equal(t, 1, result.Success)
	require.Equal(t, apperrors.CodeDuplicateCode, result.Details[0].ErrorCode)

	status, _ = do(t, app, http.MethodPost, "/products/bulk", `{"products":[]}`, "")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestAdminUpdateOrderStatus(t *testing.T) {
	admin := models.Identity{UserID: uuid.New(), Role: models.RoleAdmin}
	orderID := uuid.New()

	orders := &stubOrders{updateFn: func(actor models.Identity, id uuid.UUID, to orderstatus.Status) (models.Order, error) {
		if to == orderstatus.Pending {
			return models.Order{}, apperrors.InvalidTransition("cannot change order status from confirmed to pending")
		}
		return models.Order{BaseModel: models.BaseModel{ID: id}, Status: to}, nil
	}}

	app := newApp()
	app.Patch("/admin/orders/:id/status", NewAdminHandler(orders).UpdateOrderStatus)
	path := "/admin/orders/" + orderID.String() + "/status"

	status, env := do(t, app, http.MethodPatch, path, `{"status":"preparing"}`, bearer(t, admin))
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(env.Data), `"status":"preparing"`)

	status, env = do(t, app, http.MethodPatch, path, `{"status":"pending"}`, bearer(t, admin))
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, apperrors.CodeInvalidTransition, env.Error.Code)

	status, _ = do(t, app, http.MethodPatch, path, `{"status":""}`, bearer(t, admin))
	require.Equal(t, http.StatusBadRequest, status)
}
