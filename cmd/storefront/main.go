package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/go-storefront/internal/repository"
	"github.com/sakashimaa/go-storefront/internal/service"
	"github.com/sakashimaa/go-storefront/internal/shipping"
	transport "github.com/sakashimaa/go-storefront/internal/transport/http"
	"github.com/sakashimaa/go-storefront/internal/transport/http/handler"
	"github.com/sakashimaa/go-storefront/pkg/config"
	"github.com/sakashimaa/go-storefront/pkg/db"
	"github.com/sakashimaa/go-storefront/pkg/kafka"
	"github.com/sakashimaa/go-storefront/pkg/mylogger"
	outboxrepo "github.com/sakashimaa/go-storefront/pkg/outbox/repository"
	"github.com/sakashimaa/go-storefront/pkg/outbox/worker"
	"github.com/sakashimaa/go-storefront/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := utils.InitTracer(ctx, "storefront-service")
	if err != nil {
		log.Fatalf("Failed to init trace: %v", err)
	}

	loggerCfg := config.LoggerConfig{
		Level: "info",
		Env:   cfg.Env,
	}

	logger, err := config.NewLogger(loggerCfg)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("error syncing logger: %v", err)
		}
	}()

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	productRepo := repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	outboxRepo := outboxrepo.NewOutboxRepository(pool, logger)

	kafkaProducer, err := kafka.NewProducer([]string{cfg.Kafka.URL})
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepo, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	catalog := service.NewCachedCatalogService(
		service.NewCatalogService(productRepo),
		redisClient,
	)

	var rates shipping.RateSource = shipping.FlatRate(cfg.Shipping.FlatRate)
	if cfg.Shipping.URL != "" {
		rates = shipping.NewHTTPRateSource(cfg.Shipping.URL, cfg.Shipping.FlatRate, logger)
	}

	carts := service.NewCartService(cartRepo, productRepo, logger)
	checkout := service.NewCheckoutService(pool, cartRepo, productRepo, orderRepo, outboxRepo, catalog, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	service.RegisterMetrics(reg)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:    cfg.Metrics.Port,
		Handler: metricsMux,
	}

	go func() {
		log.Println("Metrics listening on: " + cfg.Metrics.Port)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Error serving metrics: %v\n", err)
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout: cfg.HTTP.Timeout,
	})

	app.Use(otelfiber.Middleware())

	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Limiter.Max,
		Expiration: cfg.Limiter.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Try again later.",
			})
		},
	}))

	handlers := &transport.Handlers{
		Cart:    handler.NewCartHandler(carts, logger),
		Order:   handler.NewOrderHandler(checkout, rates, logger),
		Product: handler.NewProductHandler(catalog, logger),
	}

	transport.RegisterRoutes(app, handlers)

	logger.Info("Storefront service started!")

	go func() {
		log.Println("HTTP Service listening on: " + cfg.HTTP.Port)
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on HTTP port %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP app: %v\n", err)
	} else {
		log.Println("HTTP App stopped gracefully")
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down metrics server: %v\n", err)
	}

	if err := kafkaProducer.Close(); err != nil {
		mylogger.Warn(
			shutdownCtx,
			logger,
			"Failed to close kafka producer",
			zap.Error(err),
		)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing redis client: %v\n", err)
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(
			shutdownCtx,
			logger,
			"Failed to shut down telemetry",
			zap.Error(err),
		)
	} else {
		mylogger.Info(
			shutdownCtx,
			logger,
			"Successfully down telemetry",
		)
	}

	pool.Close()
}
