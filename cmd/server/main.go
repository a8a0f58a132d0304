package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/avolkov/webstore/internal/cart"
	"github.com/avolkov/webstore/internal/checkout"
	"github.com/avolkov/webstore/internal/config"
	"github.com/avolkov/webstore/internal/es"
	"github.com/avolkov/webstore/internal/events"
	"github.com/avolkov/webstore/internal/handlers"
	"github.com/avolkov/webstore/internal/logging"
	"github.com/avolkov/webstore/internal/order"
	"github.com/avolkov/webstore/internal/payment"
	"github.com/avolkov/webstore/internal/service/token"
	"github.com/avolkov/webstore/internal/store"
	httpserver "github.com/avolkov/webstore/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("db init: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	producer := events.NewProducer([]string{configuration.KAFKA_ADDRESS})

	products := store.NewProductStore(db)
	carts := store.NewCartStore(db)
	engine := order.NewEngine(db)
	cartSvc := cart.NewService(products, carts)
	checkoutSvc := checkout.NewService(engine, carts, producer)
	gateway := payment.NewClient(configuration.PAYMENT_URL, configuration.PAYMENT_ID, configuration.PAYMENT_SECRET)
	tokens := &token.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}

	deps := httpserver.Deps{
		AuthHandler:    &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Producer: producer},
		ProductHandler: &handlers.ProductHandler{Products: products, Producer: producer, UploadDir: configuration.UPLOAD_DIR},
		CartHandler:    &handlers.CartHandler{Cart: cartSvc, Producer: producer},
		OrderHandler:   &handlers.OrderHandler{Checkout: checkoutSvc, Engine: engine},
		PaymentHandler: &handlers.PaymentHandler{Gateway: gateway, Checkout: checkoutSvc, Carts: carts},
		TokenService:   tokens,
	}

	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			log.Printf("elasticsearch unavailable, search disabled: %v", err)
		} else {
			deps.SearchHandler = &handlers.SearchHandler{ES: esClient, Index: "product"}
		}
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
