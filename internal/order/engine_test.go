package order

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avolkov/webstore/internal/models"
	"github.com/avolkov/webstore/internal/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every new connection to ":memory:" would be a separate database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.User{},
		&models.RefreshToken{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64, quantity uint) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: price, Quantity: quantity}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedCart(t *testing.T, db *gorm.DB, userID uint, items []models.CartItem) []models.CartItem {
	t.Helper()
	for i := range items {
		items[i].UserID = userID
	}
	require.NoError(t, db.Create(&items).Error)
	return items
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestCreateOrderFromCartSuccess(t *testing.T) {
	db := newTestDB(t)
	e := NewEngine(db)
	ctx := context.Background()

	p := seedProduct(t, db, "mug", 10, 5)
	items := seedCart(t, db, 1, []models.CartItem{
		{ProductID: p.ID, ProductName: p.Name, Price: 10, Quantity: 3},
	})

	o, err := e.CreateOrderFromCart(ctx, 1, items)
	require.NoError(t, err)
	require.NotZero(t, o.ID)
	require.Equal(t, float64(30), o.Total)

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.Equal(t, uint(2), got.Quantity)

	lines, err := e.OrderItems(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "mug", lines[0].ProductName)
	require.Equal(t, float64(30), lines[0].LineTotal)

	// cart cleared inside the same transaction
	var remaining []models.CartItem
	require.NoError(t, db.Where("user_id = ?", 1).Find(&remaining).Error)
	require.Empty(t, remaining)
}

func TestCreateOrderFromCartUsesSnapshotPrices(t *testing.T) {
	db := newTestDB(t)
	e := NewEngine(db)
	ctx := context.Background()

	p := seedProduct(t, db, "lamp", 25, 10)
	items := seedCart(t, db, 1, []models.CartItem{
		// snapshot price differs from the live product price
		{ProductID: p.ID, ProductName: p.Name, Price: 20, Quantity: 2},
	})

	o, err := e.CreateOrderFromCart(ctx, 1, items)
	require.NoError(t, err)
	require.Equal(t, float64(40), o.Total)
}

func TestCreateOrderFromCartEmpty(t *testing.T) {
	db := newTestDB(t)
	e := NewEngine(db)

	_, err := e.CreateOrderFromCart(context.Background(), 1, nil)
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateOrderFromCartInsufficientStock(t *testing.T) {
	db := newTestDB(t)
	e := NewEngine(db)
	ctx := context.Background()

	p := seedProduct(t, db, "poster", 4, 3)
	items := seedCart(t, db, 1, []models.CartItem{
		{ProductID: p.ID, ProductName: p.Name, Price: 4, Quantity: 5},
	})

	_, err := e.CreateOrderFromCart(ctx, 1, items)
	var insufficient *store.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, "poster", insufficient.ProductName)

	// nothing committed: no order, no lines, stock and cart untouched
	require.Zero(t, countRows(t, db, &models.Order{}))
	require.Zero(t, countRows(t, db, &models.OrderItem{}))

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.Equal(t, uint(3), got.Quantity)

	var remaining []models.CartItem
	require.NoError(t, db.Where("user_id = ?", 1).Find(&remaining).Error)
	require.Len(t, remaining, 1)
}

func TestCreateOrderFromCartAllOrNothing(t *testing.T) {
	db := newTestDB(t)
	e := NewEngine(db)
	ctx := context.Background()

	ok := seedProduct(t, db, "mug", 10, 5)
	short := seedProduct(t, db, "lamp", 20, 1)
	items := seedCart(t, db, 1, []models.CartItem{
		{ProductID: ok.ID, ProductName: ok.Name, Price: 10, Quantity: 2},
		{ProductID: short.ID, ProductName: short.Name, Price: 20, Quantity: 4},
	})

	_, err := e.CreateOrderFromCart(ctx, 1, items)
	var insufficient *store.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, "lamp", insufficient.ProductName)

	// the in-stock product must not have been decremented either
	var got models.Product
	require.NoError(t, db.First(&got, ok.ID).Error)
	require.Equal(t, uint(5), got.Quantity)

	require.Zero(t, countRows(t, db, &models.Order{}))
	require.Zero(t, countRows(t, db, &models.OrderItem{}))
}

func TestCreateOrderFromCartMissingProduct(t *testing.T) {
	db := newTestDB(t)
	e := NewEngine(db)

	items := []models.CartItem{
		{UserID: 1, ProductID: 77, ProductName: "gone", Price: 5, Quantity: 1},
	}
	_, err := e.CreateOrderFromCart(context.Background(), 1, items)
	var insufficient *store.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, "gone", insufficient.ProductName)
}

func TestConcurrentCheckoutLastUnit(t *testing.T) {
	db := newTestDB(t)
	e := NewEngine(db)
	ctx := context.Background()

	p := seedProduct(t, db, "vinyl", 30, 1)

	carts := [][]models.CartItem{
		{{UserID: 1, ProductID: p.ID, ProductName: p.Name, Price: 30, Quantity: 1}},
		{{UserID: 2, ProductID: p.ID, ProductName: p.Name, Price: 30, Quantity: 1}},
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.CreateOrderFromCart(ctx, uint(i+1), carts[i])
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		var insufficient *store.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		losses++
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, losses)
	require.Equal(t, int64(1), countRows(t, db, &models.Order{}))

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.Equal(t, uint(0), got.Quantity)
}

func TestIncrementalOrderPath(t *testing.T) {
	db := newTestDB(t)
	e := NewEngine(db)
	ctx := context.Background()

	p := seedProduct(t, db, "mug", 10, 5)

	var orderID uint
	err := e.WithTx(ctx, func(tx *Tx) error {
		o, err := tx.CreateOrder(ctx, 1, 30)
		if err != nil {
			return err
		}
		orderID = o.ID
		return tx.AddOrderItem(ctx, o.ID, p.ID, p.Name, 3, 10)
	})
	require.NoError(t, err)

	lines, err := e.OrderItems(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, float64(30), lines[0].LineTotal)

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.Equal(t, uint(2), got.Quantity)
}

func TestIncrementalOrderPathRollsBack(t *testing.T) {
	db := newTestDB(t)
	e := NewEngine(db)
	ctx := context.Background()

	p := seedProduct(t, db, "lamp", 20, 2)

	err := e.WithTx(ctx, func(tx *Tx) error {
		o, err := tx.CreateOrder(ctx, 1, 100)
		if err != nil {
			return err
		}
		if err := tx.AddOrderItem(ctx, o.ID, p.ID, p.Name, 1, 20); err != nil {
			return err
		}
		// second append exceeds the remaining stock
		return tx.AddOrderItem(ctx, o.ID, p.ID, p.Name, 2, 20)
	})
	var insufficient *store.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	// the header and the first line vanished with the rollback
	require.Zero(t, countRows(t, db, &models.Order{}))
	require.Zero(t, countRows(t, db, &models.OrderItem{}))

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.Equal(t, uint(2), got.Quantity)
}

func TestOrderQueries(t *testing.T) {
	db := newTestDB(t)
	e := NewEngine(db)
	ctx := context.Background()

	p := seedProduct(t, db, "mug", 10, 10)
	items := seedCart(t, db, 1, []models.CartItem{
		{ProductID: p.ID, ProductName: p.Name, Price: 10, Quantity: 1},
	})

	o, err := e.CreateOrderFromCart(ctx, 1, items)
	require.NoError(t, err)

	orders, err := e.OrdersByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	// only the owner can see the order
	_, err = e.OrderByIDAndUser(ctx, o.ID, 2)
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := e.OrderByIDAndUser(ctx, o.ID, 1)
	require.NoError(t, err)
	require.Equal(t, o.ID, got.ID)
}
