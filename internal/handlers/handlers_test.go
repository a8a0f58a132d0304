package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avolkov/webstore/internal/cart"
	"github.com/avolkov/webstore/internal/checkout"
	"github.com/avolkov/webstore/internal/models"
	"github.com/avolkov/webstore/internal/order"
	"github.com/avolkov/webstore/internal/store"
)

type capturedEvent struct {
	Topic string
	Key   string
	Event any
}

type fakePublisher struct {
	events []capturedEvent
}

func (f *fakePublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	f.events = append(f.events, capturedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

type testEnv struct {
	T        *testing.T
	E        *echo.Echo
	DB       *gorm.DB
	Producer *fakePublisher

	Auth     *AuthHandler
	Cart     *CartHandler
	Products *ProductHandler
	Orders   *OrderHandler
}

func newTestEnv(t *testing.T) *testEnv {
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

	prod := &fakePublisher{}

	products := store.NewProductStore(db)
	carts := store.NewCartStore(db)
	engine := order.NewEngine(db)
	cartSvc := cart.NewService(products, carts)
	checkoutSvc := checkout.NewService(engine, carts, prod)

	env := &testEnv{
		T:        t,
		E:        echo.New(),
		DB:       db,
		Producer: prod,
	}
	env.Auth = &AuthHandler{
		DB:            db,
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		Producer:      prod,
	}
	env.Cart = &CartHandler{Cart: cartSvc, Producer: prod}
	env.Products = &ProductHandler{Products: products, Producer: prod, UploadDir: t.TempDir()}
	env.Orders = &OrderHandler{Checkout: checkoutSvc, Engine: engine}

	return env
}

// doJSONRequest builds an echo context the way the router would; callers set
// userID on it to stand in for the auth middleware.
func (env *testEnv) doJSONRequest(method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) asUser(c echo.Context, userID uint) {
	c.Set("userID", userID)
	c.Set("role", "customer")
}

func (env *testEnv) seedProduct(name string, price float64, quantity uint) models.Product {
	env.T.Helper()
	p := models.Product{Name: name, Price: price, Quantity: quantity}
	require.NoError(env.T, env.DB.Create(&p).Error)
	return p
}

func (env *testEnv) seedCartItem(userID, productID uint, name string, price float64, quantity uint) {
	env.T.Helper()
	require.NoError(env.T, env.DB.Create(&models.CartItem{
		UserID:      userID,
		ProductID:   productID,
		ProductName: name,
		Price:       price,
		Quantity:    quantity,
	}).Error)
}

func requireHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, code, he.Code)
}
