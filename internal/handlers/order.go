package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/orderstatus"
	"github.com/example/bakery/internal/services"
	"github.com/example/bakery/internal/utils"
)

const deliveryDateLayout = "2006-01-02"

// OrderService is the order lifecycle as seen by HTTP handlers.
type OrderService interface {
	Place(ctx context.Context, actor models.Identity, input services.PlaceOrderInput) (models.Order, error)
	Get(ctx context.Context, actor models.Identity, id uuid.UUID) (models.Order, error)
	List(ctx context.Context, actor models.Identity, filter models.OrderFilter) (services.Page[models.Order], error)
	Cancel(ctx context.Context, actor models.Identity, id uuid.UUID, seen *orderstatus.Status) (models.Order, error)
	UpdateStatus(ctx context.Context, actor models.Identity, id uuid.UUID, to orderstatus.Status) (models.Order, error)
}

// OrderHandler manages order endpoints.
type OrderHandler struct {
	orders OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Items           []orderItemRequest `json:"items"`
	DeliveryDate    string             `json:"delivery_date"`
	DeliveryAddress string             `json:"delivery_address"`
	Phone           string             `json:"phone"`
	Notes           string             `json:"notes"`
}

func (r createOrderRequest) toInput() (services.PlaceOrderInput, error) {
	input := services.PlaceOrderInput{
		Items:           make([]services.OrderItemInput, 0, len(r.Items)),
		DeliveryAddress: r.DeliveryAddress,
		Phone:           r.Phone,
		Notes:           r.Notes,
	}

	for i, item := range r.Items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			return input, apperrors.Validation("item %d: invalid product_id", i+1)
		}
		input.Items = append(input.Items, services.OrderItemInput{ProductID: id, Quantity: item.Quantity})
	}

	if date := strings.TrimSpace(r.DeliveryDate); date != "" {
		parsed, err := time.Parse(deliveryDateLayout, date)
		if err != nil {
			return input, apperrors.Validation("delivery_date must use YYYY-MM-DD")
		}
		input.DeliveryDate = &parsed
	}
	return input, nil
}

// CreateOrder allows authenticated users to place an order.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}
	input, err := req.toInput()
	if err != nil {
		return err
	}

	order, err := h.orders.Place(c.UserContext(), identity, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": order})
}

// ListOrders lists the caller's orders.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	filter, err := orderFilterFromQuery(c)
	if err != nil {
		return err
	}

	page, err := h.orders.List(c.UserContext(), identity, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       page.Items,
		"pagination": paginationMeta(page.Page, page.PageSize, page.Total),
	})
}

func orderFilterFromQuery(c *fiber.Ctx) (models.OrderFilter, error) {
	pg := utils.ParsePagination(c)
	filter := models.OrderFilter{
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     pg.Page,
		PageSize: pg.Limit,
	}
	if raw := c.Query("status"); raw != "" {
		status, err := orderstatus.Parse(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	return filter, nil
}

// GetOrder returns a single order visible to the caller.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	order, err := h.orders.Get(c.UserContext(), identity, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

type cancelOrderRequest struct {
	Status string `json:"status"`
}

// CancelOrder cancels one of the caller's orders. The body may carry the
// status the client last displayed.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var seen *orderstatus.Status
	if len(c.Body()) > 0 {
		var req cancelOrderRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.Validation("invalid request body")
		}
		if req.Status != "" {
			status, err := orderstatus.Parse(req.Status)
			if err != nil {
				return err
			}
			seen = &status
		}
	}

	order, err := h.orders.Cancel(c.UserContext(), identity, id, seen)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "order cancelled",
		"data":    order,
	})
}
