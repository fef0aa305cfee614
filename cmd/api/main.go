// cmd/api/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/config"
	"github.com/your-org/commerce-session/internal/domain/docstore"
	"github.com/your-org/commerce-session/internal/domain/engine"
	"github.com/your-org/commerce-session/internal/domain/events"
	"github.com/your-org/commerce-session/internal/domain/persistence"
	"github.com/your-org/commerce-session/internal/infrastructure/database/postgres"
	"github.com/your-org/commerce-session/internal/infrastructure/database/redis"
	fsstore "github.com/your-org/commerce-session/internal/infrastructure/docstore/firestore"
	"github.com/your-org/commerce-session/internal/infrastructure/docstore/memory"
	mongostore "github.com/your-org/commerce-session/internal/infrastructure/docstore/mongo"
	pgstore "github.com/your-org/commerce-session/internal/infrastructure/docstore/postgres"
	"github.com/your-org/commerce-session/internal/infrastructure/messaging/kafka"
	"github.com/your-org/commerce-session/internal/interfaces/http"
	"github.com/your-org/commerce-session/internal/interfaces/http/handlers"
	"github.com/your-org/commerce-session/internal/pkg/auth"
	"github.com/your-org/commerce-session/internal/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const sweepInterval = time.Minute

// remote is the opened document store plus how to probe and release it
type remote struct {
	store  docstore.Store
	health func(ctx context.Context) error
	close  func()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)
	log.WithFields(logrus.Fields{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
		"backend":     cfg.Remote.Backend,
	}).Info("Starting service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to Redis (device tier and rate limiting)
	redisClient, err := redis.NewConnection(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisClient.Close()

	if err := redisClient.Health(ctx); err != nil {
		log.WithError(err).Fatal("Redis health check failed")
	}

	rs, err := openRemote(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open remote store")
	}
	defer rs.close()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up identity verification")
	}

	var publisher events.Publisher = events.NopPublisher{}
	var kafkaPublisher *kafka.Publisher
	if cfg.Kafka.Enabled {
		kafkaPublisher = kafka.NewPublisher(cfg.Kafka.CouponTopic, cfg.Kafka.Brokers...)
		publisher = kafkaPublisher
		defer kafkaPublisher.Close()
	}

	entry := log.WithField("service", "commerce-session")
	registry := engine.NewRegistry(engine.Deps{
		Blobs:     persistence.NewAdapter(redis.NewLocalStore(redisClient, cfg.Session.LocalTTL), rs.store, entry),
		Remote:    rs.store,
		Publisher: publisher,
		Log:       entry,
	}, cfg.Session.IdleTTL)

	server := http.NewServer(cfg, registry, verifier, redisClient.GetClient(), log,
		handlers.HealthCheck{Name: "redis", Check: redisClient.Health},
		handlers.HealthCheck{Name: cfg.Remote.Backend, Check: rs.health},
	)

	log.Info("All systems operational")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		registry.Run(gctx, sweepInterval)
		return nil
	})

	if cfg.Kafka.Enabled {
		consumer := kafka.NewCheckoutConsumer(registry, log, cfg.Kafka.CheckoutTopic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...)
		g.Go(func() error {
			defer consumer.Close()
			consumer.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		return server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully")

		// Give server 30 seconds to shutdown gracefully
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Server exited with error")
		return
	}
	log.Info("Server shutdown completed")
}

// openRemote connects the configured authoritative document store
func openRemote(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*remote, error) {
	switch cfg.Remote.Backend {
	case config.BackendFirestore:
		client, err := fsstore.NewClient(ctx, cfg.Remote.ProjectID, cfg.Remote.CredentialsFile)
		if err != nil {
			return nil, err
		}
		store := fsstore.NewStore(client, log)
		return &remote{store: store, health: store.Health, close: func() { _ = store.Close() }}, nil

	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Remote.Timeout)
		defer cancel()

		db, err := mongostore.ConnectMongoDB(connectCtx, cfg.Remote.MongoURI, cfg.Remote.MongoDatabase)
		if err != nil {
			return nil, err
		}
		store := mongostore.NewStore(db, log)
		if err := store.CreateIndexes(connectCtx); err != nil {
			log.WithError(err).Warn("Index creation failed")
		}
		return &remote{
			store:  store,
			health: store.Health,
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = store.Close(closeCtx)
			},
		}, nil

	case config.BackendPostgres:
		db, err := postgres.NewConnection(cfg, log)
		if err != nil {
			return nil, err
		}
		if err := db.Health(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("database health check failed: %w", err)
		}

		migration := postgres.NewMigration(db.GetDB(), log)
		if err := migration.RunAutoMigrations(); err != nil {
			db.Close()
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		if err := migration.CreateIndexes(); err != nil {
			log.WithError(err).Warn("Index creation failed")
		}
		return &remote{
			store:  pgstore.NewStore(db.GetDB(), log),
			health: db.Health,
			close:  func() { _ = db.Close() },
		}, nil

	default:
		log.Warn("Using the in-memory remote store; account state is lost on restart")
		return &remote{
			store:  memory.NewStore(),
			health: func(context.Context) error { return nil },
			close:  func() {},
		}, nil
	}
}

// newVerifier builds the bearer token verifier for the configured identity provider
func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	if cfg.Identity.Provider == config.IdentityFirebase {
		return auth.NewFirebaseVerifier(ctx, cfg.Remote.ProjectID, cfg.Remote.CredentialsFile)
	}
	return auth.NewJWTManager(cfg.Identity), nil
}
