package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/chargeops/internal/api"
	"github.com/punchamoorthee/chargeops/internal/auth"
	"github.com/punchamoorthee/chargeops/internal/authorizer"
	"github.com/punchamoorthee/chargeops/internal/cache"
	"github.com/punchamoorthee/chargeops/internal/config"
	"github.com/punchamoorthee/chargeops/internal/events"
	"github.com/punchamoorthee/chargeops/internal/service"
	"github.com/punchamoorthee/chargeops/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		tp, err := initTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Unable to open store", zap.String("storage", cfg.Storage), zap.Error(err))
	}
	defer st.Close()

	deps := service.Deps{
		Store:   st,
		Gateway: authorizer.NewHTTPClient(cfg.AuthorizerURL, cfg.AuthorizerTimeout),
		Cache:   cache.Nop{},
		Events:  events.Nop{},
		Logger:  logger,
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, listings will not be cached until it recovers", zap.Error(err))
		}
		deps.Cache = cache.NewRedisChargeCache(rdb, cfg.CacheTTL)
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer pub.Close()
		deps.Events = pub
		logger.Info("Kafka publisher initialized", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	tokens := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	handler := api.NewHandler(api.Services{
		Users:        service.NewUserService(deps, tokens),
		Issuance:     service.NewIssuanceService(deps),
		Query:        service.NewQueryService(deps),
		Payment:      service.NewPaymentService(deps),
		Cancellation: service.NewCancellationService(deps),
		Deposit:      service.NewDepositService(deps),
	}, tokens, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Storage == config.StorageMemory {
		return store.NewMemoryStore(), nil
	}
	pg, err := store.NewPostgresStore(ctx, cfg.DBSource)
	if err != nil {
		return nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
