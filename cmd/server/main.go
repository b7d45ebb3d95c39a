package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"geoprivacy/internal/audit"
	jwttoken "geoprivacy/internal/jwt_token"
	"geoprivacy/internal/platform/config"
	"geoprivacy/internal/platform/httpserver"
	"geoprivacy/internal/platform/kafka"
	"geoprivacy/internal/platform/logger"
	"geoprivacy/internal/platform/metrics"
	"geoprivacy/internal/platform/postgres"
	"geoprivacy/internal/platform/redis"
	"geoprivacy/internal/proof/backend"
	proofhandler "geoprivacy/internal/proof/handler"
	proofservice "geoprivacy/internal/proof/service"
	"geoprivacy/internal/proof/store"
	"geoprivacy/internal/proof/store/revocation"
	"geoprivacy/internal/ratelimit"
	httptransport "geoprivacy/internal/transport/http"
	"geoprivacy/internal/verification"
)

const shutdownTimeout = 10 * time.Second

// infra holds the optional external connections. Nil fields mean the
// in-process fallback is in use.
type infra struct {
	db       *sql.DB
	redis    *redis.Client
	producer *kafka.Producer
}

func (i *infra) close(log *slog.Logger) {
	if i.producer != nil {
		i.producer.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("failed to close postgres", "error", err)
		}
	}
}

func main() {
	bootLog := logger.New(slog.LevelInfo)
	config.LoadDotEnv(bootLog)

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.UsesDevSigningKey() {
		log.Warn("JWT_SIGNING_KEY not set, using the development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	deps, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close(log)

	m := metrics.New(prometheus.NewRegistry())

	var (
		proofStore proofservice.Store          = store.NewInMemoryStore()
		revoked    proofservice.RevocationList = revocation.NewInMemoryList()
		sink       audit.Sink                  = audit.NewMemorySink()
		limits     ratelimit.Store             = ratelimit.NewInMemoryStore()
		checks                                 = map[string]httptransport.HealthCheck{}
	)
	if deps.db != nil {
		proofStore = store.NewPostgresStore(deps.db)
		checks["postgres"] = deps.db.PingContext
	}
	if deps.redis != nil {
		revoked = revocation.NewRedisList(deps.redis.Client)
		limits = ratelimit.NewRedisStore(deps.redis.Client)
		checks["redis"] = deps.redis.Health
	}
	if deps.producer != nil {
		sink = audit.NewKafkaSink(deps.producer)
		checks["kafka"] = deps.producer.Ping
	}

	publisher := audit.NewPublisher(audit.WithLogger(log), audit.WithMetrics(m))
	worker := audit.NewWorker(sink, publisher.Inbox(), log)

	svc := proofservice.New(proofStore, backend.NewPlaintextBackend(),
		proofservice.WithLogger(log),
		proofservice.WithMetrics(m),
		proofservice.WithAuditPublisher(publisher),
		proofservice.WithRevocationList(revoked),
		proofservice.WithValidity(cfg.Proof.Validity),
		proofservice.WithDefaultRadius(cfg.Proof.DefaultRadiusMeters),
		proofservice.WithMaxSearchRadius(cfg.Proof.MaxSearchRadiusMeters),
	)
	sweeper := proofservice.NewSweeper(proofStore, cfg.Proof.CleanupInterval,
		proofservice.WithSweeperLogger(log),
		proofservice.WithSweeperMetrics(m),
		proofservice.WithSweeperAudit(publisher),
	)

	rateLimit := ratelimit.New(limits, map[ratelimit.Class]ratelimit.Policy{
		ratelimit.ClassProof:  {Limit: cfg.RateLimit.ProofRequests, Window: cfg.RateLimit.Window},
		ratelimit.ClassPublic: {Limit: cfg.RateLimit.PublicRequests, Window: cfg.RateLimit.Window},
	}, log, ratelimit.WithMetrics(m), ratelimit.WithDisabled(cfg.RateLimit.Disabled))

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Metrics:      m,
		Proofs:       proofhandler.New(svc, sweeper, log),
		Verification: verification.NewHandler(verification.NewVerifier(log, m), log),
		JWTValidator: jwttoken.NewJWTServiceAdapter(jwtService),
		AdminToken:   cfg.AdminToken,
		RateLimit:    rateLimit,
		HealthChecks: checks,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting geoprivacy", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })

	return g.Wait()
}

// connect opens whichever backends are configured. A backend that is
// configured but unreachable fails startup.
func connect(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	deps := &infra{}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.DefaultOptions(), log)
		if err != nil {
			return nil, err
		}
		deps.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			deps.close(log)
			return nil, err
		}
		log.Info("proof store: postgres")
	} else {
		log.Warn("DATABASE_URL not set, proofs are kept in memory")
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		deps.close(log)
		return nil, err
	}
	if client != nil {
		deps.redis = client
		log.Info("revocation list: redis")
	} else {
		log.Info("REDIS_URL not set, revocation list is in memory")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			deps.close(log)
			return nil, err
		}
		deps.producer = producer
		log.Info("audit sink: kafka", "topic", producer.Topic())
	} else {
		log.Info("KAFKA_BROKERS not set, audit events are kept in memory")
	}

	return deps, nil
}
