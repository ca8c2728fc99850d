package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"

	"github.com/ndmitriev/estore/internal/cartstore"
	"github.com/ndmitriev/estore/internal/config"
	"github.com/ndmitriev/estore/internal/es"
	"github.com/ndmitriev/estore/internal/handlers"
	"github.com/ndmitriev/estore/internal/logging"
	"github.com/ndmitriev/estore/internal/models"
	"github.com/ndmitriev/estore/internal/mykafka"
	"github.com/ndmitriev/estore/internal/notify"
	"github.com/ndmitriev/estore/internal/repo"
	"github.com/ndmitriev/estore/internal/service/order"
	"github.com/ndmitriev/estore/internal/service/search"
	httpserver "github.com/ndmitriev/estore/internal/transport/http"
	loggingmw "github.com/ndmitriev/estore/pkg/middleware/logging"
)

func main() {
	seed := flag.Bool("seed", false, "заполнить каталог тестовыми товарами и выйти")
	flag.Parse()

	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("Ошибка инициализации БД: %v", err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	gormRepo := &repo.GormRepo{DB: db}
	index := search.NewIndex(logger, esClient, configuration.ES_INDEX)

	if *seed {
		seedCatalog(gormRepo, index)
		return
	}

	if err := mykafka.EnsureTopics(configuration.KAFKA_BROKERS[0], configuration.TOPIC_ACTIVITY, configuration.TOPIC_ORDERS); err != nil {
		logger.Warn("kafka topics not ensured", "error", err)
	}
	prod := mykafka.NewProducer(logger, configuration.KAFKA_BROKERS, configuration.TOPIC_ACTIVITY, configuration.TOPIC_ORDERS)

	cart := cartstore.New(configuration.REDIS_ADDR)
	if err := cart.Ping(context.Background()); err != nil {
		log.Fatalf("redis недоступен: %v", err)
	}

	hub := notify.NewHub()
	orderSvc := &order.Service{Repo: gormRepo, Sink: prod, Hub: hub}

	jwtSecret := []byte(configuration.JWT_SECRET)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		ProductHandler: &handlers.ProductHandler{Repo: gormRepo, Sink: prod, Index: index, JWTSecret: jwtSecret},
		SearchHandler:  &handlers.SearchHandler{Repo: gormRepo, Index: index},
		CartHandler:    &handlers.CartHandler{Cart: cart, JWTSecret: jwtSecret},
		OrderHandler:   &handlers.OrderHandler{Svc: orderSvc, Cart: cart, JWTSecret: jwtSecret},
		TrackHandler:   &handlers.TrackHandler{Svc: orderSvc, Hub: hub, JWTSecret: jwtSecret},
		JWTSecret:      jwtSecret,
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
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

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	if err := cart.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}

	log.Println("shutdown complete")
}

func seedCatalog(r *repo.GormRepo, index *search.Index) {
	ctx := context.Background()

	total, _, err := r.ListProducts(ctx, 0, 1)
	if err != nil {
		log.Fatal(err)
	}
	if total > 0 {
		log.Println("products already present; skipping")
		return
	}

	sample := []models.Product{
		{Name: "Wireless Mouse", Description: "Ergonomic 2.4G mouse", Price: decimal.NewFromFloat(29.99), Category: "Peripherals", Stock: 50},
		{Name: "Mechanical Keyboard", Description: "RGB, Blue switches", Price: decimal.NewFromFloat(89.99), Category: "Peripherals", Stock: 20},
		{Name: "USB-C Charger 65W", Description: "GaN fast charger", Price: decimal.NewFromFloat(39.99), Category: "Power", Stock: 100},
	}
	for i := range sample {
		if err := r.CreateProduct(ctx, &sample[i]); err != nil {
			log.Fatal(err)
		}
		index.Upsert(ctx, &sample[i])
	}
	log.Println("seeded sample products")
}
