package cart

import (
	"context"
	"errors"

	"github.com/avolkov/webstore/internal/models"
	"github.com/avolkov/webstore/internal/store"
)

// Outcome tells the caller how much of a requested quantity change was
// actually applied against available stock.
type Outcome string

const (
	OutcomeApplied Outcome = "applied" // full requested quantity accepted
	OutcomeCapped  Outcome = "capped"  // reduced to the stock cap
	OutcomeAtCap   Outcome = "at_cap"  // denied, cart already holds all stock
)

var ErrNotInCart = errors.New("item not in cart")

// Service holds the cart mutation rules: quantities are capped at current
// stock and every mutation persists the full cart before the response goes
// out, so a crash or logout cannot lose cart state.
type Service struct {
	Products *store.ProductStore
	Carts    *store.CartStore
}

func NewService(products *store.ProductStore, carts *store.CartStore) *Service {
	return &Service{Products: products, Carts: carts}
}

func (s *Service) Get(ctx context.Context, userID uint) ([]models.CartItem, float64, error) {
	items, err := s.Carts.Load(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return items, total, nil
}

// Add puts quantity units of a product into the cart, snapshotting name and
// price from the live product. The resulting cart quantity never exceeds
// quantity-on-hand.
func (s *Service) Add(ctx context.Context, userID, productID uint, quantity uint) ([]models.CartItem, Outcome, error) {
	if quantity < 1 {
		quantity = 1
	}

	p, err := s.Products.Get(ctx, productID)
	if err != nil {
		return nil, "", err
	}

	items, err := s.Carts.Load(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	idx := -1
	var current uint
	for i := range items {
		if items[i].ProductID == productID {
			idx = i
			current = items[i].Quantity
			break
		}
	}

	outcome := OutcomeApplied
	requested := current + quantity
	if requested > p.Quantity {
		if current == p.Quantity {
			// Nothing left to add; leave the cart as it is.
			return items, OutcomeAtCap, nil
		}
		// Stock may have moved below what the cart already holds, all
		// the way down to zero.
		requested = p.Quantity
		outcome = OutcomeCapped
	}

	switch {
	case requested == 0:
		// A cart line never persists with quantity zero.
		items = append(items[:idx], items[idx+1:]...)
	case idx >= 0:
		items[idx].Quantity = requested
	default:
		items = append(items, models.CartItem{
			UserID:      userID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Price:       p.Price,
			Quantity:    requested,
			Image:       p.Image,
		})
	}

	if err := s.Carts.Save(ctx, userID, items); err != nil {
		return nil, "", err
	}
	return items, outcome, nil
}

// UpdateQuantity sets the cart line to the requested quantity, capped at
// stock. A quantity of zero removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID uint, quantity uint) ([]models.CartItem, Outcome, error) {
	items, err := s.Carts.Load(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	idx := -1
	for i := range items {
		if items[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, "", ErrNotInCart
	}

	outcome := OutcomeApplied
	if quantity > 0 {
		p, err := s.Products.Get(ctx, productID)
		if err != nil {
			return nil, "", err
		}
		if quantity > p.Quantity {
			if items[idx].Quantity == p.Quantity {
				return items, OutcomeAtCap, nil
			}
			// The cap can be zero when stock sold out after the line
			// entered the cart; that removes the line below.
			quantity = p.Quantity
			outcome = OutcomeCapped
		}
	}

	if quantity == 0 {
		// A cart line never persists with quantity zero.
		items = append(items[:idx], items[idx+1:]...)
	} else {
		items[idx].Quantity = quantity
	}
	if err := s.Carts.Save(ctx, userID, items); err != nil {
		return nil, "", err
	}
	return items, outcome, nil
}

func (s *Service) Remove(ctx context.Context, userID, productID uint) ([]models.CartItem, error) {
	items, err := s.Carts.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := items[:0]
	for _, it := range items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return nil, ErrNotInCart
	}

	if err := s.Carts.Save(ctx, userID, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

func (s *Service) Clear(ctx context.Context, userID uint) error {
	return s.Carts.Clear(ctx, userID)
}
