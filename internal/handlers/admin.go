package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/orderstatus"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	orders OrderService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(orders OrderService) *AdminHandler {
	return &AdminHandler{orders: orders}
}

// ListAllOrders returns every order, optionally narrowed to one customer.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	filter, err := orderFilterFromQuery(c)
	if err != nil {
		return err
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return apperrors.Validation("invalid user_id")
		}
		filter.UserID = &userID
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

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order to a new lifecycle status.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}
	status, err := orderstatus.Parse(req.Status)
	if err != nil {
		return err
	}

	order, err := h.orders.UpdateStatus(c.UserContext(), identity, id, status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}
