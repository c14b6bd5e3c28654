package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"passport-cri/internal/audit"
	"passport-cri/internal/authcode"
	"passport-cri/internal/check"
	"passport-cri/internal/clientauth"
	"passport-cri/internal/credential"
	"passport-cri/internal/dcs"
	"passport-cri/internal/envelope"
	"passport-cri/internal/passport"
	"passport-cri/internal/platform/config"
	"passport-cri/internal/platform/httpserver"
	"passport-cri/internal/platform/kafka/producer"
	"passport-cri/internal/platform/logger"
	platformredis "passport-cri/internal/platform/redis"
	"passport-cri/internal/token"
	httptransport "passport-cri/internal/transport/http"
)

// Code records are kept well past their exchange TTL so replayed codes are
// still recognized as used rather than unknown.
const codeRetention = 24 * time.Hour

// main wires the dependency graph and owns process lifecycle. Business logic
// lives in the internal services.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	codeStore, cleanup, err := newCodeStore(ctx, cfg, redisClient)
	if err != nil {
		log.Error("authorization code store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var checkStore check.Store = check.NewInMemoryStore()
	var tokenStore token.Store = token.NewInMemoryStore()
	if redisClient != nil {
		checkStore = check.NewRedisStore(redisClient.Client, codeRetention)
		tokenStore = token.NewRedisStore(redisClient.Client, cfg.AccessTokenTTL)
	}

	auditor, closeAuditor, err := newAuditPublisher(cfg, log)
	if err != nil {
		log.Error("audit publisher init failed", "error", err)
		os.Exit(1)
	}
	defer closeAuditor()

	codec := envelope.NewCodec(
		cfg.Keys.SigningKey, cfg.Keys.DecryptionKey,
		cfg.Keys.DCSEncryption, cfg.Keys.DCSSigning,
	)
	dcsClient := dcs.NewClient(nil, cfg.DCSPostURL, cfg.DCSCallTimeout, log)

	codeService := authcode.NewService(codeStore, cfg.AuthCodeTTL)
	clientValidator := clientauth.NewValidator(cfg.Clients, cfg.VCIssuer+"/token")
	tokenService := token.NewService(codeService, tokenStore, clientValidator, cfg.AccessTokenTTL, log)
	checkService := passport.NewService(codec, dcsClient, checkStore, codeService, auditor, log)
	credentialService := credential.NewService(
		tokenService, checkStore, cfg, cfg.Keys.VCSigningKey,
		cfg.VCIssuer, cfg.VCTTL, auditor, log,
	)

	router := httptransport.NewRouter(checkService, tokenService, credentialService, log)
	srv := httpserver.New(cfg.Addr, router)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := httpserver.New(cfg.MetricsAddr, metricsMux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting passport-cri", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("serving metrics", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if merr := metricsSrv.Shutdown(shutdownCtx); err == nil {
			err = merr
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func newCodeStore(ctx context.Context, cfg *config.Config, redisClient *platformredis.Client) (authcode.Store, func(), error) {
	switch {
	case cfg.PostgresURL != "":
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, func() {}, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		return authcode.NewPostgresStore(pool), pool.Close, nil
	case redisClient != nil:
		return authcode.NewRedisStore(redisClient.Client, codeRetention), func() {}, nil
	default:
		return authcode.NewInMemoryStore(), func() {}, nil
	}
}

// kafkaSink bridges the audit package's message shape onto the producer.
type kafkaSink struct {
	producer *producer.Producer
}

func (s kafkaSink) Produce(ctx context.Context, msg *audit.Message) error {
	return s.producer.Produce(ctx, &producer.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: msg.Headers,
	})
}

func newAuditPublisher(cfg *config.Config, log *slog.Logger) (audit.Publisher, func(), error) {
	if cfg.Kafka.Brokers == "" {
		log.Warn("kafka not configured, audit events stay in memory")
		return audit.NewRecorder(), func() {}, nil
	}
	p, err := producer.New(cfg.Kafka, log)
	if err != nil {
		return nil, func() {}, err
	}
	return audit.NewKafkaPublisher(kafkaSink{producer: p}, cfg.Kafka.Topic), p.Close, nil
}
