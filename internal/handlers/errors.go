package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/webstore/internal/cart"
	"github.com/avolkov/webstore/internal/checkout"
	"github.com/avolkov/webstore/internal/order"
	"github.com/avolkov/webstore/internal/store"
)

// httpError maps domain errors to transport codes in one place so handlers
// stay thin.
func httpError(err error) *echo.HTTPError {
	var insufficient *store.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrEmptyCart):
		return echo.NewHTTPError(http.StatusBadRequest, "no items in cart")
	case errors.Is(err, checkout.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, checkout.ErrPaymentDeclined),
		errors.Is(err, checkout.ErrAmountMismatch):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, cart.ErrNotInCart):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
