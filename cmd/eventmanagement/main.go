package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"eventmanagement/internal/common/config"
	"eventmanagement/internal/common/logging"
	"eventmanagement/internal/common/metrics"
	"eventmanagement/internal/common/types"
	"eventmanagement/internal/identity"
	"eventmanagement/internal/payments/api"
	"eventmanagement/internal/payments/application"
	"eventmanagement/internal/payments/domain"
	"eventmanagement/internal/payments/infrastructure/broker"
	"eventmanagement/internal/payments/infrastructure/cache"
	"eventmanagement/internal/payments/infrastructure/gateway"
	"eventmanagement/internal/payments/infrastructure/memory"
	"eventmanagement/internal/payments/infrastructure/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "eventmanagement: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithCorrelationID(ctx, types.NewCorrelationID())

	logging.InfoContext(ctx, "Starting event management payments",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage", cfg.Storage,
		"broker", cfg.Broker,
	)

	store, pool, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	if cfg.CacheEnabled() {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			logging.WarnContext(ctx, "Redis unavailable, continuing without event cache", "error", err)
		} else {
			defer client.Close()
			store = cache.NewDataStore(store, cache.NewEventCache(client, cfg.EventCacheTTL))
			logging.InfoContext(ctx, "Event cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.EventCacheTTL)
		}
	}

	if cfg.Storage == config.StorageMemory && cfg.IsDevelopment() {
		if err := seedDevelopmentData(ctx, store, cfg.JWTSecret); err != nil {
			return fmt.Errorf("seeding development data: %w", err)
		}
	}

	notifier := application.NewOutboxNotifier(store)
	service := application.NewPaymentService(
		store,
		identity.NewResolver(cfg.JWTSecret),
		gateway.NewClient(cfg.BankServiceURL, cfg.BankTimeout),
		notifier,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(cfg, pool))
	mux.Handle("GET /metrics", metrics.Handler())
	api.NewHandler(service).RegisterRoutes(mux)

	// Requests must outlive the bank call so a settled payment is always recorded.
	requestTimeout := cfg.BankTimeout + 10*time.Second

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      metrics.Middleware(correlationMiddleware(mux, requestTimeout)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logging.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		notifier.Flush()
		return err
	})

	publisher, err := openPublisher(ctx, cfg)
	if err != nil {
		stop()
		_ = g.Wait()
		return err
	}
	if publisher != nil {
		defer publisher.Close()
		relay := application.NewOutboxRelay(store, publisher, cfg.OutboxBatchSize)
		g.Go(func() error {
			return runRelay(ctx, relay, cfg.OutboxRelayInterval)
		})
	}

	if err := g.Wait(); err != nil {
		logging.Error("Server error", "error", err)
		return err
	}

	logging.Info("Server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (domain.DataStore, *pgxpool.Pool, error) {
	if cfg.Storage == config.StorageMemory {
		logging.WarnContext(ctx, "Using in-memory storage for development and tests only: "+
			"data is lost on restart and purchases run one at a time, bank call included")
		return memory.NewDataStore(), nil, nil
	}

	pool, err := cfg.NewPostgresPool(ctx)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewDataStore(pool), pool, nil
}

type closablePublisher interface {
	domain.MessagePublisher
	io.Closer
}

func openPublisher(ctx context.Context, cfg *config.Config) (closablePublisher, error) {
	switch cfg.Broker {
	case config.BrokerKafka:
		logging.InfoContext(ctx, "Relaying deferred payments to Kafka",
			"brokers", cfg.KafkaBrokers,
			"topic", cfg.DeferredPaymentsTopic,
		)
		return broker.NewKafkaPublisher(cfg.KafkaBrokers, cfg.DeferredPaymentsTopic), nil
	case config.BrokerRabbitMQ:
		return broker.DialRabbitMQ(ctx, cfg.RabbitMQURL, 30)
	default:
		logging.WarnContext(ctx, "No broker configured; deferred payments stay in the outbox")
		return nil, nil
	}
}

// runRelay publishes the outbox on a fixed interval until ctx ends.
func runRelay(ctx context.Context, relay *application.OutboxRelay, interval time.Duration) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := relay.PublishPending(ctx); err != nil {
				logging.ErrorContext(ctx, "Outbox relay pass failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	logging.Info("Outbox relay started", "interval", interval)
	scheduler.Start()

	<-ctx.Done()
	return scheduler.Shutdown()
}

// correlationMiddleware adds correlation ID and request timeout to each request.
func correlationMiddleware(next http.Handler, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corrID := types.CorrelationID(r.Header.Get("X-Correlation-ID"))
		if corrID.IsEmpty() {
			corrID = types.NewCorrelationID()
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		ctx = logging.WithCorrelationID(ctx, corrID)
		w.Header().Set("X-Correlation-ID", corrID.String())

		logging.InfoContext(ctx, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// healthHandler returns basic health status.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

// readyHandler reports ready once the database answers.
func readyHandler(cfg *config.Config, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ready", http.StatusOK
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				status, code = "database unavailable", http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      status,
			"environment": cfg.Environment,
			"storage":     cfg.Storage,
		})
	}
}
