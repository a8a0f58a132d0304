package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/webstore/internal/cart"
	"github.com/avolkov/webstore/internal/events"
	"github.com/avolkov/webstore/internal/models"
	"github.com/avolkov/webstore/internal/service/token"
)

type CartHandler struct {
	Cart     *cart.Service
	Producer events.Publisher
}

type cartResponse struct {
	Items   []models.CartItem `json:"items"`
	Total   float64           `json:"total"`
	Outcome cart.Outcome      `json:"outcome,omitempty"`
	Message string            `json:"message,omitempty"`
}

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}

func outcomeMessage(outcome cart.Outcome, name string) string {
	switch outcome {
	case cart.OutcomeCapped:
		// an empty name means the line was trimmed away entirely
		if name == "" {
			return "an out-of-stock item was removed from your cart"
		}
		return fmt.Sprintf("only part of the requested quantity of %q is available; your cart holds the maximum", name)
	case cart.OutcomeAtCap:
		return fmt.Sprintf("your cart already holds all available units of %q", name)
	default:
		return ""
	}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID := token.UserID(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	items, total, err := h.Cart.Get(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cartResponse{Items: items, Total: total})
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	userID := token.UserID(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.ProductID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "product_id required")
	}

	items, outcome, err := h.Cart.Add(c.Request().Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": req.ProductID,
		"outcome":   outcome,
	})

	var name string
	for _, it := range items {
		if it.ProductID == req.ProductID {
			name = it.ProductName
		}
	}
	return c.JSON(http.StatusOK, cartResponse{
		Items:   items,
		Total:   itemsTotal(items),
		Outcome: outcome,
		Message: outcomeMessage(outcome, name),
	})
}

func (h *CartHandler) UpdateCartItem(c echo.Context) error {
	userID := token.UserID(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Quantity uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	items, outcome, err := h.Cart.UpdateQuantity(c.Request().Context(), userID, uint(productID), req.Quantity)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_updated",
		"userID":    userID,
		"productID": productID,
		"quantity":  req.Quantity,
		"outcome":   outcome,
	})

	var name string
	for _, it := range items {
		if it.ProductID == uint(productID) {
			name = it.ProductName
		}
	}
	return c.JSON(http.StatusOK, cartResponse{
		Items:   items,
		Total:   itemsTotal(items),
		Outcome: outcome,
		Message: outcomeMessage(outcome, name),
	})
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	userID := token.UserID(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	items, err := h.Cart.Remove(c.Request().Context(), userID, uint(productID))
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_removed",
		"userID":    userID,
		"productID": productID,
	})
	return c.JSON(http.StatusOK, cartResponse{Items: items, Total: itemsTotal(items)})
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	userID := token.UserID(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if err := h.Cart.Clear(c.Request().Context(), userID); err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":   "cart_cleared",
		"userID": userID,
	})
	return c.JSON(http.StatusOK, cartResponse{Items: []models.CartItem{}})
}

func itemsTotal(items []models.CartItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}
