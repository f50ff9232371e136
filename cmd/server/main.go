package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ekyc/internal/audit"
	auditkafka "ekyc/internal/audit/kafka"
	"ekyc/internal/delivery"
	"ekyc/internal/otp"
	"ekyc/internal/platform/config"
	"ekyc/internal/platform/httpserver"
	"ekyc/internal/platform/logger"
	"ekyc/internal/platform/postgres"
	platformredis "ekyc/internal/platform/redis"
	"ekyc/internal/provider"
	httptransport "ekyc/internal/transport/http"
	"ekyc/internal/verification"
	"ekyc/internal/verification/metrics"
)

// main wires dependencies and owns process lifecycle. All business logic
// lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence backends.
	var (
		requestStore   verification.Store
		challengeStore otp.Store
		auditStore     audit.Store
	)
	switch cfg.StoreBackend {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer pool.Close()
		requestStore = verification.NewPostgresStore(pool)
		challengeStore = otp.NewPostgresStore(pool)
		auditStore = audit.NewPostgresStore(pool)
	default:
		requestStore = verification.NewInMemoryStore()
		challengeStore = otp.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
	}

	if cfg.ChallengeBackend == "redis" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("redis connect failed", "error", err.Error())
			os.Exit(1)
		}
		if client == nil {
			log.Error("redis challenge backend selected but EKYC_REDIS_URL is not set")
			os.Exit(1)
		}
		defer client.Close()
		challengeStore = otp.NewRedisStore(client, cfg.Policy.RequestTTL+cfg.Policy.OTPTTL)
	}

	// Audit pipeline: single ordered worker, optional Kafka mirror.
	recorderOpts := []audit.Option{audit.WithLogger(log)}
	if len(cfg.AuditKafka.Brokers) > 0 {
		publisher, err := auditkafka.NewPublisher(cfg.AuditKafka)
		if err != nil {
			log.Error("kafka publisher init failed", "error", err.Error())
			os.Exit(1)
		}
		defer publisher.Close()
		recorderOpts = append(recorderOpts, audit.WithSink(publisher))
	}
	recorder := audit.NewAsyncRecorder(auditStore, recorderOpts...)

	// Upstream identity authority.
	gateway := provider.NewHTTPGateway(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey)
	identity := provider.NewClient(gateway, cfg.Policy,
		provider.WithLogger(log),
		provider.WithRecorder(recorder),
	)

	m := metrics.New()
	challenges := otp.NewManager(challengeStore, otp.WithLogger(log))
	service := verification.NewService(requestStore, challenges, identity, cfg.Policy,
		verification.WithLogger(log),
		verification.WithRecorder(recorder),
		verification.WithSender(delivery.NewLogSender(log)),
		verification.WithMetrics(m),
	)
	sweeper := verification.NewSweeper(service, verification.WithSweeperLogger(log))

	handler := httptransport.NewHandler(service, log)
	router := httptransport.NewRouter(handler, log)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return recorder.Run(ctx)
	})

	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})

	g.Go(func() error {
		log.Info("server starting", "addr", cfg.Addr, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err.Error())
		}
		// Drain queued audit entries before exit.
		recorder.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}
