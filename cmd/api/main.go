package main

import (
	"context"
	"errors"
	"log"
	nethttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sakashimaa/food-order/internal/cache"
	"github.com/sakashimaa/food-order/internal/metrics"
	"github.com/sakashimaa/food-order/internal/notification"
	"github.com/sakashimaa/food-order/internal/pricing"
	"github.com/sakashimaa/food-order/internal/repository"
	"github.com/sakashimaa/food-order/internal/service"
	"github.com/sakashimaa/food-order/internal/transport/http"
	"github.com/sakashimaa/food-order/internal/transport/http/handler"
	"github.com/sakashimaa/food-order/pkg/config"
	"github.com/sakashimaa/food-order/pkg/db"
	"github.com/sakashimaa/food-order/pkg/kafka"
	outboxRepo "github.com/sakashimaa/food-order/pkg/outbox/repository"
	"github.com/sakashimaa/food-order/pkg/outbox/worker"
	"github.com/sakashimaa/food-order/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const serviceName = "food-order"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.LoggerConfig(serviceName))
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, utils.TracerOptions{
		ServiceName: serviceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Env,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Fatal("Failed to init tracer", zap.Error(err))
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := db.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Error closing redis client", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	outbox := outboxRepo.NewOutboxRepository()

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		if err != nil {
			logger.Fatal("Failed to create kafka producer", zap.Error(err))
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("Error closing kafka producer", zap.Error(err))
			}
		}()

		processor := worker.NewOutboxProcessor(pool, outbox, producer, logger)
		go processor.Start(ctx)
	} else {
		logger.Warn("No kafka brokers configured, outbox events stay unpublished")
	}

	engine := pricing.NewEngine(repository.NewMenuRepository(pool), pricing.Tolerance{
		Absolute: decimal.NewFromFloat(cfg.Pricing.AbsoluteTolerance),
		Relative: decimal.NewFromFloat(cfg.Pricing.RelativeTolerance),
	})

	bus := notification.NewRedisBus(redisClient, logger)

	orderService := service.NewOrderService(service.OrderServiceDeps{
		Pool:       pool,
		OrderRepo:  repository.NewOrderRepository(pool, logger),
		OutboxRepo: outbox,
		Pricing:    engine,
		Publisher:  bus,
		Metrics:    m,
		Logger:     logger,
		Topic:      cfg.Kafka.Topic,
	})

	restaurantRepo := repository.NewRestaurantRepository(pool)
	statusCache := cache.NewStatusCache(redisClient, restaurantRepo, cfg.Cache.TTL, logger, m)
	restaurantService := service.NewRestaurantService(restaurantRepo, statusCache, cfg.Cache.FailOnWriteError, logger)

	stream := notification.NewStream(bus, cfg.Stream.HeartbeatInterval, logger, m)

	app := http.NewApp(http.AppConfig{
		ReadTimeout:       cfg.HTTP.Timeout,
		LimiterMax:        cfg.Limiter.Max,
		LimiterExpiration: cfg.Limiter.Expiration,
		Metrics:           m,
	})

	http.RegisterRoutes(app, &http.Handlers{
		Order:        handler.NewOrderHandler(orderService, logger),
		Restaurant:   handler.NewRestaurantHandler(restaurantService, logger),
		Notification: handler.NewNotificationHandler(ctx, stream, logger),
	}, cfg.Auth.Secret)

	metricsServer := &nethttp.Server{
		Addr:              cfg.Metrics.Port,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", zap.String("addr", cfg.Metrics.Port))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("HTTP service listening", zap.String("addr", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			logger.Fatal("Error listening on HTTP port", zap.String("addr", cfg.HTTP.Port), zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP app", zap.Error(err))
	} else {
		logger.Info("HTTP app stopped gracefully")
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down metrics server", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down telemetry", zap.Error(err))
	} else {
		logger.Info("Telemetry stopped correctly")
	}
}
