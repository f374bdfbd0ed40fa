package main

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/bookslot/libs/config"
	"github.com/md-rashed-zaman/bookslot/libs/db"
	"github.com/md-rashed-zaman/bookslot/libs/httpx"
	"github.com/md-rashed-zaman/bookslot/libs/kafkax"
	otelx "github.com/md-rashed-zaman/bookslot/libs/otel"
	"github.com/md-rashed-zaman/bookslot/libs/runtime"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/storage"
)

func main() {
	if err := config.Load("booking-service"); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext(logger)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	if config.Bool("MIGRATE_ON_START", false) {
		if err := storage.Migrate(dbURL); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		logger.Info("migrations applied")
	}

	pool, err := db.OpenWithConfig(ctx, dbURL, db.PoolConfig{
		MaxConns:        int32(config.Int("DB_MAX_CONNS", 10)),
		MaxConnLifetime: config.Duration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	store := storage.New(pool)
	eval := availability.NewEvaluator(store)
	enumerator := availability.NewEnumerator(eval, availability.Limits{
		MaxSpanDays:        config.Int("SLOTS_MAX_SPAN_DAYS", 31),
		MaxCandidates:      config.Int("SLOTS_MAX_CANDIDATES", 5000),
		MinIntervalMinutes: config.Int("SLOTS_MIN_INTERVAL_MINUTES", 5),
	})
	orch := booking.NewOrchestrator(store, logger, booking.WithRetryPolicy(booking.RetryPolicy{
		Attempts: config.Int("BOOKING_RETRY_ATTEMPTS", 3),
		Backoff:  config.Duration("BOOKING_RETRY_BACKOFF", 50*time.Millisecond),
	}))

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(outbox.NewRepository(pool), logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: store.ReadyCheck()},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}
	limiter, closeLimiter, limiterCheck := rateLimiter(logger)
	defer closeLimiter()
	if limiterCheck != nil {
		checks = append(checks, *limiterCheck)
	}

	if err := startGrpcServer(ctx, logger, grpcPort, eval, enumerator); err != nil {
		logger.Error("grpc server init failed", "err", err)
		panic(err)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.Register(mux,
		handlers.NewAvailabilityHandler(eval, enumerator, logger),
		handlers.NewBookingHandler(orch, logger),
		limiter,
	)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(config.Int("HTTP_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("HTTP_REQUEST_TIMEOUT", 10*time.Second)),
	)
	serveHTTP(ctx, logger, port, httpHandler)
}
