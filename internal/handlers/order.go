package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/webstore/internal/checkout"
	"github.com/avolkov/webstore/internal/logging"
	"github.com/avolkov/webstore/internal/models"
	"github.com/avolkov/webstore/internal/order"
	"github.com/avolkov/webstore/internal/service/token"
)

type OrderHandler struct {
	Checkout *checkout.Service
	Engine   *order.Engine
}

type orderResponse struct {
	OrderID uint               `json:"order_id"`
	Total   float64            `json:"total"`
	Items   []models.OrderItem `json:"items,omitempty"`
}

func (h *OrderHandler) MakeOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.make_order")

	userID := token.UserID(c)
	o, err := h.Checkout.Checkout(ctx, userID)
	if err != nil {
		l.Warn("checkout failed", "user_id", userID, "error", err)
		return httpError(err)
	}

	l.Info("checkout complete", "user_id", userID, "order_id", o.ID)
	return c.JSON(http.StatusCreated, orderResponse{OrderID: o.ID, Total: o.Total})
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID := token.UserID(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orders, err := h.Engine.OrdersByUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, orders)
}

// GetInvoice returns one order with its line items, only for the owner.
func (h *OrderHandler) GetInvoice(c echo.Context) error {
	userID := token.UserID(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil || orderID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ctx := c.Request().Context()
	o, err := h.Engine.OrderByIDAndUser(ctx, uint(orderID), userID)
	if err != nil {
		return httpError(err)
	}
	items, err := h.Engine.OrderItems(ctx, o.ID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"order": o,
		"items": items,
	})
}
