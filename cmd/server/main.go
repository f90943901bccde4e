package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"credvault/internal/audit"
	"credvault/internal/chain"
	"credvault/internal/credential/issuer"
	"credvault/internal/credential/lifecycle"
	credstore "credvault/internal/credential/store"
	"credvault/internal/disclosure/broker"
	discstore "credvault/internal/disclosure/store"
	disctracer "credvault/internal/disclosure/tracer"
	"credvault/internal/platform/config"
	"credvault/internal/platform/database"
	"credvault/internal/platform/health"
	"credvault/internal/platform/httpserver"
	"credvault/internal/platform/kafka"
	"credvault/internal/platform/kafka/producer"
	"credvault/internal/platform/logger"
	"credvault/internal/platform/metrics"
	platformredis "credvault/internal/platform/redis"
	httptransport "credvault/internal/transport/http"
	"credvault/internal/vault"
)

// main wires high-level dependencies and keeps the process lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	cipher, err := vault.NewCipher(cfg.EncryptionKey)
	if err != nil {
		log.Error("encryption key rejected", "error", err)
		os.Exit(1)
	}

	healthHandler := health.New()
	m := metrics.New()

	// Persistence: postgres when configured, in-memory otherwise.
	pool, err := database.New(database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	var (
		credentials credstore.CredentialStore
		blobs       credstore.BlobStore
		auditStore  audit.Store
		accessLogs  discstore.AccessLogStore
	)
	if pool != nil {
		defer pool.Close()
		healthHandler.RegisterCheck("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
		db := pool.DB()
		credentials = credstore.NewPostgres(db)
		blobs = credstore.NewPostgresBlob(db)
		auditStore = audit.NewPostgresStore(db)
		accessLogs = discstore.NewPostgresAccessLog(db)
		log.Info("using postgres stores")
	} else {
		credentials = credstore.New()
		blobs = credstore.NewBlob()
		auditStore = audit.NewInMemoryStore()
		accessLogs = discstore.NewAccessLog()
		log.Warn("no database configured, using in-memory stores")
	}

	// Tokens: redis when configured for TTL-native storage, otherwise the
	// same backend as the credential store.
	var tokens discstore.TokenStore
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	switch {
	case redisClient != nil:
		defer redisClient.Close()
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
		tokens = discstore.NewRedis(redisClient.Client)
		log.Info("using redis token store")
	case pool != nil:
		tokens = discstore.NewPostgres(pool.DB())
	default:
		tokens = discstore.New()
	}

	// Audit trail, optionally mirrored onto the event stream.
	auditOpts := []audit.PublisherOption{
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	}
	if cfg.KafkaBrokers != "" {
		prod, err := producer.New(kafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer prod.Close()
		auditOpts = append(auditOpts, audit.WithSink(audit.NewKafkaSink(prod, "")))
		log.Info("audit events mirrored to kafka", "topic", audit.DefaultTopic)
	}
	auditor := audit.NewPublisher(auditStore, auditOpts...)
	defer auditor.Close()

	issuerSvc := issuer.NewService(credentials, blobs, cipher, auditor, log,
		issuer.WithMetrics(m),
		issuer.WithValidity(cfg.CredentialValidity),
	)
	lifecycleSvc := lifecycle.NewService(credentials, auditor, log,
		lifecycle.WithMetrics(m),
	)
	brokerSvc := broker.NewService(tokens, accessLogs, credentials, blobs, cipher, auditor, log,
		broker.WithMetrics(m),
		broker.WithTracer(disctracer.NewOTel()),
		broker.WithShareTTL(cfg.ShareTokenDefaultTTL),
		broker.WithViewTTL(cfg.ViewTokenTTL),
	)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Credentials: httptransport.NewCredentialHandler(issuerSvc, lifecycleSvc, log),
		Disclosure:  httptransport.NewDisclosureHandler(brokerSvc, log),
		Health:      healthHandler,
		Logger:      log,
	})
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Mint confirmations from the blockchain worker, when a broker is
	// configured.
	if cfg.AmqpURL != "" {
		conn, err := amqp.Dial(cfg.AmqpURL)
		if err != nil {
			log.Error("amqp connection failed", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		consumer, err := chain.NewConsumer(conn, cfg.MintQueue, lifecycleSvc, log)
		if err != nil {
			log.Error("mint consumer init failed", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			log.Info("consuming mint confirmations", "queue", cfg.MintQueue)
			err := consumer.Start(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
