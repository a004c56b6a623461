package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ajeetk7ev/JobLytic/internal/analytics"
	"github.com/ajeetk7ev/JobLytic/internal/api"
	"github.com/ajeetk7ev/JobLytic/internal/cache"
	cacheredis "github.com/ajeetk7ev/JobLytic/internal/cache/redis"
	"github.com/ajeetk7ev/JobLytic/internal/config"
	"github.com/ajeetk7ev/JobLytic/internal/database"
	"github.com/ajeetk7ev/JobLytic/internal/events"
	"github.com/ajeetk7ev/JobLytic/internal/jsearch"
	"github.com/ajeetk7ev/JobLytic/internal/prefs"
	"github.com/ajeetk7ev/JobLytic/internal/query"
	"github.com/ajeetk7ev/JobLytic/internal/recommend"
	"github.com/ajeetk7ev/JobLytic/internal/resume"
	"github.com/ajeetk7ev/JobLytic/internal/store"
	"github.com/ajeetk7ev/JobLytic/internal/telemetry"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return zap.NewProduction()
}

func newPgxPool(lc fx.Lifecycle, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newCache(lc fx.Lifecycle, cfg *config.Config) cache.Cache {
	c := cacheredis.New(cache.Options{
		DefaultTTL:    cfg.CacheTTL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})

	return c
}

func newNATSConnection(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Timeout(cfg.NATSConnTimeout),
		nats.Name("recommendation-service"),
		nats.RetryOnFailedConnect(true),
	}
	nc, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			nc.Close()
			return nil
		},
	})

	return nc, nil
}

func newClickHouseConnection(cfg *config.Config, logger *zap.Logger) (clickhouse.Conn, error) {
	db, err := database.New(context.Background(), database.Options{
		DSN:             cfg.ClickHouseDSN,
		MaxOpenConns:    cfg.ClickHouseMaxOpenConns,
		MaxIdleConns:    cfg.ClickHouseMaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouseConnMaxLife,
		Username:        cfg.ClickHouseUsername,
		Password:        cfg.ClickHousePassword,
		Database:        cfg.ClickHouseDatabase,
	}, logger)
	if err != nil {
		return nil, err
	}
	return db.Conn(), nil
}

func newNormalizer(cfg *config.Config) *prefs.Normalizer {
	return prefs.NewNormalizer(cfg.DefaultCountry)
}

func newFetcher(cfg *config.Config, logger *zap.Logger) jsearch.Fetcher {
	return jsearch.NewClient(jsearch.Options{
		BaseURL:           cfg.JSearchBaseURL,
		APIKey:            cfg.RapidAPIKey,
		APIHost:           cfg.RapidAPIHost,
		Timeout:           cfg.JSearchTimeout,
		DefaultDatePosted: cfg.DefaultDatePosted,
	}, logger)
}

func newSynthesizer(cfg *config.Config, logger *zap.Logger) query.Synthesizer {
	return query.NewOpenRouter(query.Options{
		APIKey:  cfg.OpenRouterAPIKey,
		BaseURL: cfg.OpenRouterBaseURL,
		Model:   cfg.OpenRouterModel,
		Timeout: cfg.SynthesisTimeout,
	}, logger)
}

func newService(
	cfg *config.Config,
	responseCache cache.Cache,
	jobStore *store.Store,
	fetcher jsearch.Fetcher,
	synthesizer query.Synthesizer,
	resumes resume.Provider,
	normalizer *prefs.Normalizer,
	sink *analytics.Sink,
	logger *zap.Logger,
) *recommend.Service {
	return recommend.NewService(
		responseCache, jobStore, fetcher, synthesizer, resumes, normalizer, logger,
		recommend.Options{
			CacheTTL: cfg.CacheTTL,
			Auditor:  sink,
		},
	)
}

func main() {
	// Local development convenience; the file is absent in containers.
	_ = godotenv.Load()

	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			newLogger,
			newPgxPool,
			newCache,
			newNATSConnection,
			newClickHouseConnection,
			analytics.NewSink,
			store.New,
			store.NewMigrator,
			resume.NewPostgresProvider,
			newNormalizer,
			newFetcher,
			newSynthesizer,
			newService,
			api.NewServer,
			events.NewHandler,
		),
		fx.Invoke(
			func(lc fx.Lifecycle, cfg *config.Config) error {
				if cfg.OTLPCollectorURL == "" {
					return nil
				}
				shutdown, err := telemetry.InitTracer(context.Background(), "recommendation-service", cfg.OTLPCollectorURL)
				if err != nil {
					return err
				}
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						shutdown()
						return nil
					},
				})
				return nil
			},
			func(migrator *store.Migrator) error {
				return migrator.Run(context.Background())
			},
			func(sink *analytics.Sink) error {
				return sink.EnsureSchema(context.Background())
			},
			func(server *api.Server, lc fx.Lifecycle) {
				server.Start(lc)
			},
			func(handler *events.Handler, lc fx.Lifecycle) error {
				return handler.RegisterSubscriptions(lc)
			},
		),
	)

	startCtx := context.Background()
	if err := app.Start(startCtx); err != nil {
		log.Fatal(err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	stopCtx := context.Background()
	if err := app.Stop(stopCtx); err != nil {
		log.Fatal(err)
	}
}
