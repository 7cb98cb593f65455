package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"parley/internal/escrow"
	"parley/internal/identity"
	jwttoken "parley/internal/jwt_token"
	"parley/internal/moderation"
	moderationhandler "parley/internal/moderation/handler"
	"parley/internal/negotiation"
	negotiationhandler "parley/internal/negotiation/handler"
	"parley/internal/notification"
	notificationhandler "parley/internal/notification/handler"
	"parley/internal/payment"
	"parley/internal/platform/config"
	"parley/internal/platform/httpserver"
	"parley/internal/platform/logger"
	"parley/internal/platform/metrics"
	redisplatform "parley/internal/platform/redis"
	httptransport "parley/internal/transport/http"
	"parley/internal/verification"
	verificationhandler "parley/internal/verification/handler"
	queuestore "parley/internal/verification/store/queue"
	recordstore "parley/internal/verification/store/record"
	"parley/pkg/platform/audit"
	"parley/pkg/platform/circuit"
	auditmemory "parley/pkg/platform/audit/store/memory"
	auditpostgres "parley/pkg/platform/audit/store/postgres"
	auditworker "parley/pkg/platform/audit/worker"
)

const auditInboxSize = 256

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages; nothing here should branch on
// domain state.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres pool setup failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
	}

	redisClient, err := redisplatform.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Stores fall back to memory when no backing service is configured, so
	// the server runs self-contained in development.
	var (
		identities identity.Store
		records    verification.RecordStore
		queue      verification.RequestQueue
		auditStore audit.Store
	)
	if pool != nil {
		identities = identity.NewPostgres(pool)
		records = recordstore.NewPostgres(pool)
		auditStore = auditpostgres.New(pool)
	} else {
		identities = identity.NewInMemoryStore()
		records = recordstore.NewInMemoryStore()
		auditStore = auditmemory.NewInMemoryStore()
	}
	if redisClient != nil {
		queue = queuestore.NewRedisQueue(redisClient.Client)
	} else {
		queue = queuestore.NewInMemoryQueue()
	}

	var sink notification.Sink = notification.NewMemorySink()
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := notification.NewKafkaSink(sink, cfg.KafkaBrokers, cfg.NotificationTopic, log)
		if err != nil {
			log.Error("kafka sink setup failed", "error", err)
			os.Exit(1)
		}
		defer func() { _ = kafkaSink.Close(context.Background()) }()
		sink = kafkaSink
	}

	inbox := make(chan audit.Event, auditInboxSize)
	auditor, err := audit.NewPublisher(auditStore, inbox, audit.WithLogger(log))
	if err != nil {
		log.Error("audit publisher setup failed", "error", err)
		os.Exit(1)
	}
	worker := auditworker.New(auditStore, inbox, log)

	workflow, err := verification.New(records, queue,
		verification.WithLogger(log), verification.WithMetrics(m))
	if err != nil {
		log.Error("verification workflow setup failed", "error", err)
		os.Exit(1)
	}

	processor, err := moderation.New(records, queue, identities, sink, auditor,
		moderation.WithLogger(log), moderation.WithMetrics(m))
	if err != nil {
		log.Error("moderation processor setup failed", "error", err)
		os.Exit(1)
	}

	breaker := circuit.New("sandbox-gateway",
		circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2))
	gateway := payment.NewCircuitGateway(payment.NewSandboxGateway(), breaker, log)
	engine, err := negotiation.New(gateway, workflow, identities, sink, auditor,
		negotiation.WithLogger(log),
		negotiation.WithMetrics(m),
		negotiation.WithFeePolicy(escrow.FeePolicy{
			AuthorizeFeeBps: cfg.AuthorizeFeeBps,
			PayoutFeeBps:    cfg.PayoutFeeBps,
		}),
		negotiation.WithAuthorizeTimeout(cfg.AuthorizeTimeout))
	if err != nil {
		log.Error("negotiation engine setup failed", "error", err)
		os.Exit(1)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "parley", "parley-api")
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	checkers := map[string]httptransport.HealthChecker{}
	if redisClient != nil {
		checkers["redis"] = redisClient
	}
	if pool != nil {
		checkers["postgres"] = poolChecker{pool}
	}

	router := httptransport.New(checkers,
		negotiationhandler.New(engine, log, m, validator),
		verificationhandler.New(workflow, log, m, validator),
		moderationhandler.New(processor, log, m, validator),
		notificationhandler.New(sink, log, m, validator),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting parley server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

type poolChecker struct {
	pool *pgxpool.Pool
}

func (c poolChecker) Health(ctx context.Context) error {
	return c.pool.Ping(ctx)
}
