package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/activitysignal"
	insightrepo "github.com/Ramsey-B/fern/internal/repositories/insight"
	"github.com/Ramsey-B/fern/internal/repositories/interactionevent"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/internal/repositories/scorerecord"
	"github.com/Ramsey-B/fern/internal/repositories/seasonstate"
	"github.com/Ramsey-B/fern/internal/repositories/streakstate"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/insight"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/scoring"
	"github.com/Ramsey-B/fern/pkg/season"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/streak"
	"github.com/Ramsey-B/fern/pkg/suggest"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
	"github.com/Ramsey-B/fern/pkg/tuning"
)

// version is stamped at build time via -ldflags
var version = "dev"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic(fmt.Sprintf("failed to read config: %v", err))
	}

	logger, zapLogger, err := buildLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := initTracing(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		os.Exit(1)
	}

	// External attachments come up through the startup graph so a slow
	// database or cache gets retried instead of crash-looping the pod.
	var (
		sqlxDB      *sqlx.DB
		db          database.DB
		redisClient *redis.Client
	)

	starter := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	starter.AddDependency(startup.NewDependency("database", nil,
		func(ctx context.Context) error {
			dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword,
				cfg.DatabaseName, cfg.DatabaseSSLMode)
			conn, err := sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
			if err != nil {
				return err
			}
			conn.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
			conn.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
			conn.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
			sqlxDB = conn
			db = database.NewDatabaseInstance(conn, logger)
			return nil
		},
		func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	))
	starter.AddDependency(startup.NewDependency("migrations", []string{"database"},
		func(ctx context.Context) error {
			driver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
			if err != nil {
				return err
			}
			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			return migrations.Migrate(cfg.DatabaseName, driver)
		},
		nil,
	))
	starter.AddDependency(startup.NewDependency("redis", nil,
		func(ctx context.Context) error {
			client, err := redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			if err != nil {
				return err
			}
			redisClient = client
			return nil
		},
		func(ctx context.Context) error {
			if redisClient == nil {
				return nil
			}
			return redisClient.Close()
		},
	))

	if err := starter.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	// Repositories
	relationshipRepo := relationship.NewRepository(db, logger)
	eventRepo := interactionevent.NewRepository(db, logger)
	signalRepo := activitysignal.NewRepository(db, logger)
	scoreRepo := scorerecord.NewRepository(db, logger)
	streakRepo := streakstate.NewRepository(db, logger)
	seasonRepo := seasonstate.NewRepository(db, logger)
	insightStore := insightrepo.NewRepository(db, logger)

	// Lifecycle event producer
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	emitter := events.NewEmitter(producer, logger)

	// Engines
	t := tuning.Default()
	scoringEngine := scoring.NewEngine(logger, relationshipRepo, eventRepo, scoreRepo, t, redisClient, scoring.DefaultConfig())
	streakEngine := streak.NewEngine(logger, eventRepo, signalRepo, streakRepo, emitter)
	seasonEngine := season.NewEngine(logger, eventRepo, streakEngine, scoringEngine, seasonRepo, t)
	suggestGenerator := suggest.NewGenerator(logger, relationshipRepo, eventRepo, scoringEngine, seasonEngine, redisClient, t, suggest.DefaultConfig())
	insightEngine := insight.NewEngine(logger, insightStore, relationshipRepo, eventRepo, emitter, t)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	healthChecker := routes.NewHealthChecker(db, redisClient, version)
	healthChecker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	routes.NewRelationshipHandler(relationshipRepo, scoringEngine, logger).RegisterRoutes(api)
	routes.NewEventHandler(eventRepo, scoringEngine, logger).RegisterRoutes(api)
	routes.NewSignalHandler(signalRepo).RegisterRoutes(api)
	routes.NewScoreHandler(scoringEngine).RegisterRoutes(api)
	routes.NewStreakHandler(streakEngine).RegisterRoutes(api)
	routes.NewSeasonHandler(seasonEngine).RegisterRoutes(api)
	routes.NewSuggestionHandler(suggestGenerator, insightEngine).RegisterRoutes(api)
	routes.NewInsightHandler(insightStore, insightEngine).RegisterRoutes(api)

	// Host app ingest consumer
	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		ingest := events.NewHandler(logger, eventRepo, signalRepo, scoringEngine)
		consumer = kafka.NewConsumer(cfg, logger, ingest.Handle)
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start ingest consumer")
			os.Exit(1)
		}
	}

	// Insight reconciliation sweeper
	var sweeper *insight.Sweeper
	if cfg.SweeperEnabled {
		locker := redis.NewLocker(redisClient, "fern")
		sweeper = insight.NewSweeper(insightEngine, insightStore, locker, insight.SweeperConfig{
			SweepInterval: cfg.SweepInterval,
			LockTTL:       cfg.SweepLockTTL,
		}, logger)
		if err := sweeper.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start insight sweeper")
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.WithField("port", cfg.Port).Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := e.StartServer(srv); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped")
			stop()
		}
	}()

	healthChecker.SetReady(true)

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	healthChecker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down HTTP server")
	}
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Error("Failed to stop ingest consumer")
		}
	}
	if sweeper != nil {
		if err := sweeper.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to stop insight sweeper")
		}
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Error("Failed to close lifecycle producer")
	}
	if err := starter.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to stop dependencies")
	}
	shutdownTracing(shutdownCtx)
	logger.Info("Shutdown complete")
}

func buildLogger(cfg config.Config) (ectologger.Logger, *zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = level
	}
	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), zapLogger, nil
}

func initTracing(ctx context.Context, cfg config.Config) (func(context.Context), error) {
	var exporter sdktrace.SpanExporter
	if cfg.OTLPEnabled {
		exp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		exporter = exp
	} else {
		exporter = &exporters.ConsoleExporter{}
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.AppName),
			semconv.ServiceVersion(version),
		)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return func(ctx context.Context) {
		_ = provider.Shutdown(ctx)
	}, nil
}
