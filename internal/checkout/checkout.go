package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/avolkov/webstore/internal/events"
	"github.com/avolkov/webstore/internal/logging"
	"github.com/avolkov/webstore/internal/models"
	"github.com/avolkov/webstore/internal/order"
	"github.com/avolkov/webstore/internal/store"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrPaymentDeclined = errors.New("payment not confirmed")
	ErrAmountMismatch  = errors.New("confirmed amount does not match cart total")
)

// Service glues callers (web checkout, payment callbacks) to the order
// engine. On any failure the cart is left untouched so the customer can
// retry; on success the cart ends up empty.
type Service struct {
	Engine   *order.Engine
	Carts    *store.CartStore
	Producer events.Publisher
}

func NewService(engine *order.Engine, carts *store.CartStore, producer events.Publisher) *Service {
	return &Service{Engine: engine, Carts: carts, Producer: producer}
}

// Checkout drives the plain web flow: load the persisted cart, hand it to
// the engine, report the outcome.
func (s *Service) Checkout(ctx context.Context, userID uint) (*models.Order, error) {
	items, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	o, err := s.Engine.CreateOrderFromCart(ctx, userID, items)
	if err != nil {
		return nil, err
	}

	s.finish(ctx, userID, o)
	return o, nil
}

// CheckoutCaptured is the pre-authorized shape: the gateway already captured
// an amount, which must reconcile against the cart snapshot total before the
// order is created.
func (s *Service) CheckoutCaptured(ctx context.Context, userID uint, confirmed bool, amount float64) (*models.Order, error) {
	items, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, ErrPaymentDeclined
	}
	if !amountsMatch(cartTotal(items), amount) {
		return nil, ErrAmountMismatch
	}

	o, err := s.Engine.CreateOrderFromCart(ctx, userID, items)
	if err != nil {
		return nil, err
	}

	s.finish(ctx, userID, o)
	return o, nil
}

// CheckoutConfirmed is the order-first shape: the header is created with the
// confirmed amount, then line items are appended one by one. The engine
// transaction still makes the whole sequence all-or-nothing.
func (s *Service) CheckoutConfirmed(ctx context.Context, userID uint, confirmed bool, amount float64) (*models.Order, error) {
	items, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, ErrPaymentDeclined
	}
	if !amountsMatch(cartTotal(items), amount) {
		return nil, ErrAmountMismatch
	}

	var created *models.Order
	err = s.Engine.WithTx(ctx, func(tx *order.Tx) error {
		o, err := tx.CreateOrder(ctx, userID, amount)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := tx.AddOrderItem(ctx, o.ID, it.ProductID, it.ProductName, it.Quantity, it.Price); err != nil {
				return err
			}
		}
		if err := tx.ClearCart(ctx, userID); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.finish(ctx, userID, created)
	return created, nil
}

func (s *Service) loadCart(ctx context.Context, userID uint) ([]models.CartItem, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	items, err := s.Carts.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", order.ErrPersistence, err)
	}
	if len(items) == 0 {
		return nil, order.ErrEmptyCart
	}
	return items, nil
}

// finish runs the post-commit steps. The engine already cleared the cart
// inside its transaction; clearing again is an idempotent delete-by-user,
// never a double-apply.
func (s *Service) finish(ctx context.Context, userID uint, o *models.Order) {
	l := logging.FromContext(ctx)

	if err := s.Carts.Clear(ctx, userID); err != nil {
		l.Warn("cart clear after checkout", "user_id", userID, "error", err)
	}

	if s.Producer == nil {
		return
	}
	event := map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": o.ID,
		"total":   o.Total,
	}
	if err := s.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(userID), event); err != nil {
		l.Warn("order event publish", "user_id", userID, "order_id", o.ID, "error", err)
	}
}

func cartTotal(items []models.CartItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// Gateways round to cents; anything closer than half a cent is the same
// amount.
func amountsMatch(total, amount float64) bool {
	return math.Abs(total-amount) < 0.005
}
