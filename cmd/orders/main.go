package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/foodflow/internal/addressbook"
	"github.com/joao-fontenele/foodflow/internal/audit"
	"github.com/joao-fontenele/foodflow/internal/catalog"
	"github.com/joao-fontenele/foodflow/internal/config"
	"github.com/joao-fontenele/foodflow/internal/messaging"
	"github.com/joao-fontenele/foodflow/internal/orders"
	"github.com/joao-fontenele/foodflow/internal/payment"
	"github.com/joao-fontenele/foodflow/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, "orders", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("orders", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	orderMetrics, err := telemetry.NewOrderMetrics(otel.Meter("orders"))
	if err != nil {
		logger.Error("failed to create order metrics", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	httpClient := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	foods := catalog.NewFoodRepository(db)
	var catalogProvider orders.CatalogProvider = foods
	if cfg.CatalogURL != "" {
		catalogProvider = catalog.NewClient(cfg.CatalogURL, httpClient)
		logger.Info("using remote catalog", "url", cfg.CatalogURL)
	}

	var addresses orders.AddressStore = addressbook.NewAddressRepository(db)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		addresses = addressbook.NewCachedStore(addresses, rdb, cfg.AddressTTL, logger)
		logger.Info("address cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.AddressTTL)
	}

	opts := []orders.EngineOption{
		orders.WithMetrics(orderMetrics),
	}

	if cfg.PaymentURL != "" {
		opts = append(opts, orders.WithPaymentGateway(payment.NewClient(cfg.PaymentURL, httpClient)))
	}

	if cfg.MongoURI != "" {
		recorder, err := audit.NewMongoRecorder(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logger.Error("failed to connect to mongo", "error", err)
			os.Exit(1)
		}
		defer func() { _ = recorder.Close(context.Background()) }()
		opts = append(opts, orders.WithRecorder(recorder))
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		producer := messaging.NewProducer(brokers, messaging.TopicOrderEvents)
		defer func() { _ = producer.Close() }()
		opts = append(opts, orders.WithPublisher(producer))
	}

	engine := orders.NewEngine(orders.NewOrderRepository(db), catalogProvider, addresses, logger, opts...)
	orderHandler := orders.NewHandler(engine, logger)
	foodHandler := catalog.NewHandler(foods, logger)

	mux := http.NewServeMux()
	orderHandler.Register(mux, telemetry.WithHTTPRoute)
	mux.HandleFunc("GET /foods", telemetry.WithHTTPRoute(foodHandler.HandleList))
	mux.HandleFunc("GET /foods/{id}", telemetry.WithHTTPRoute(foodHandler.HandleGet))
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "orders",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
			otelhttp.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/metrics" && r.URL.Path != "/healthz"
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting orders service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
