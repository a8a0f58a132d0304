package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/webstore/internal/checkout"
	"github.com/avolkov/webstore/internal/logging"
	"github.com/avolkov/webstore/internal/models"
	"github.com/avolkov/webstore/internal/payment"
	"github.com/avolkov/webstore/internal/service/token"
	"github.com/avolkov/webstore/internal/store"
)

// PaymentHandler fronts the two gateway integration shapes: capture-first
// (order created after the gateway confirms a pre-authorized amount) and
// order-first (header created, line items appended after confirmation).
type PaymentHandler struct {
	Gateway  payment.Gateway
	Checkout *checkout.Service
	Carts    *store.CartStore
}

// CreatePaymentOrder registers the current cart total with the gateway and
// hands the reference back to the client.
func (h *PaymentHandler) CreatePaymentOrder(c echo.Context) error {
	ctx := c.Request().Context()

	userID := token.UserID(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	items, err := h.Carts.Load(ctx, userID)
	if err != nil {
		return httpError(err)
	}
	if len(items) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no items in cart")
	}

	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}

	ref, err := h.Gateway.CreateOrder(ctx, total)
	if err != nil {
		logging.FromContext(ctx).Warn("gateway create order", "user_id", userID, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
	}

	return c.JSON(http.StatusOK, map[string]any{"id": ref, "total": total})
}

// CaptureOrder finalizes the capture-first shape.
func (h *PaymentHandler) CaptureOrder(c echo.Context) error {
	return h.settle(c, "payment.capture", h.Checkout.CheckoutCaptured)
}

// ConfirmOrder finalizes the order-first shape.
func (h *PaymentHandler) ConfirmOrder(c echo.Context) error {
	return h.settle(c, "payment.confirm", h.Checkout.CheckoutConfirmed)
}

func (h *PaymentHandler) settle(c echo.Context, name string,
	place func(ctx context.Context, userID uint, confirmed bool, amount float64) (*models.Order, error)) error {

	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", name)

	userID := token.UserID(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	ref := c.Param("ref")
	if ref == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "payment reference required")
	}

	confirmed, amount, err := h.Gateway.Capture(ctx, ref)
	if err != nil {
		l.Warn("gateway capture", "user_id", userID, "ref", ref, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
	}

	o, err := place(ctx, userID, confirmed, amount)
	if err != nil {
		l.Warn("settlement failed", "user_id", userID, "ref", ref, "error", err)
		return httpError(err)
	}

	l.Info("settlement complete", "user_id", userID, "order_id", o.ID)
	return c.JSON(http.StatusCreated, map[string]any{
		"success":  true,
		"order_id": o.ID,
		"total":    o.Total,
	})
}
