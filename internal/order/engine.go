package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/avolkov/webstore/internal/models"
	"github.com/avolkov/webstore/internal/store"
)

var (
	ErrEmptyCart   = errors.New("cart is empty")
	ErrPersistence = errors.New("persistence failure")
)

// Engine converts a cart into a durable order. Every write path runs inside
// a single database transaction: the order header, all line items and all
// stock decrements commit together or not at all.
type Engine struct {
	DB *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{DB: db}
}

func (e *Engine) CreateOrderFromCart(ctx context.Context, userID uint, items []models.CartItem) (*models.Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	var order models.Order
	txErr := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products := store.NewProductStore(tx)

		// Shortfall check before any write. Stock may have moved since the
		// cart was last saved; a cart quantity is not a reservation.
		for _, it := range items {
			p, err := products.Get(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return &store.InsufficientStockError{ProductID: it.ProductID, ProductName: it.ProductName}
				}
				return err
			}
			if p.Quantity < it.Quantity {
				return &store.InsufficientStockError{ProductID: p.ID, ProductName: p.Name}
			}
		}

		// Snapshot prices, not live ones: the invoice must match what the
		// customer saw in the cart.
		var total float64
		for _, it := range items {
			total += it.Price * float64(it.Quantity)
		}

		order = models.Order{
			UserID:    userID,
			CreatedAt: time.Now().Unix(),
			Total:     total,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, it := range items {
			oi := models.OrderItem{
				OrderID:     order.ID,
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Quantity:    it.Quantity,
				Price:       it.Price,
				LineTotal:   it.Price * float64(it.Quantity),
			}
			if err := tx.Create(&oi).Error; err != nil {
				return err
			}
			// Re-validated at commit time: the conditional decrement fails
			// if a concurrent checkout drained the stock after the
			// pre-check above.
			if err := products.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		return store.NewCartStore(tx).Clear(ctx, userID)
	})
	if txErr != nil {
		return nil, mapTxError(txErr)
	}
	return &order, nil
}

// Tx exposes the incremental order-building operations bound to one
// transaction, for flows where line items are appended after the header
// exists (external payment confirmation).
type Tx struct {
	db       *gorm.DB
	products *store.ProductStore
}

func (e *Engine) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	txErr := e.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db, products: store.NewProductStore(db)})
	})
	if txErr != nil {
		return mapTxError(txErr)
	}
	return nil
}

func (t *Tx) CreateOrder(ctx context.Context, userID uint, total float64) (*models.Order, error) {
	order := &models.Order{
		UserID:    userID,
		CreatedAt: time.Now().Unix(),
		Total:     total,
	}
	if err := t.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// AddOrderItem appends a line item and decrements stock on the same
// transaction handle, so the append-style flow gets the same all-or-nothing
// guarantee as CreateOrderFromCart.
func (t *Tx) AddOrderItem(ctx context.Context, orderID, productID uint, name string, quantity uint, price float64) error {
	oi := models.OrderItem{
		OrderID:     orderID,
		ProductID:   productID,
		ProductName: name,
		Quantity:    quantity,
		Price:       price,
		LineTotal:   price * float64(quantity),
	}
	if err := t.db.WithContext(ctx).Create(&oi).Error; err != nil {
		return err
	}
	return t.products.DecrementStock(ctx, productID, quantity)
}

func (t *Tx) ClearCart(ctx context.Context, userID uint) error {
	return store.NewCartStore(t.db).Clear(ctx, userID)
}

func (e *Engine) OrdersByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	if err := e.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (e *Engine) OrderByIDAndUser(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	var order models.Order
	if err := e.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (e *Engine) OrderItems(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := e.DB.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Sentinel domain errors pass through untouched; anything else aborted the
// transaction, so it surfaces as a persistence failure with no partial state.
func mapTxError(err error) error {
	var insufficient *store.InsufficientStockError
	if errors.As(err, &insufficient) {
		return err
	}
	if errors.Is(err, ErrEmptyCart) || errors.Is(err, store.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
