package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/config"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/db/pg"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/repositories/athlete"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/repositories/mastergym"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/repositories/pendingmatch"
	rosterrepo "github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/repositories/roster"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/repositories/sourcegym"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/repositories/tournament"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/repositories/userprofile"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/repositories/wishlist"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/batch"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/database"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/events"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/federation"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/gymsync"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/jobs"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/kafka"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/matching"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/middleware"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/normalizers"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/redis"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/review"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/roster"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/routes/health"
	pendingroutes "github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/routes/pendingmatch"
	sourcegymroutes "github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/routes/sourcegym"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/routes/trigger"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/startup"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdownTracing, err := tracing.Setup(ctx, cfg.AppName, version, tracing.Config{
			Endpoint: cfg.TracingEndpoint,
			Protocol: cfg.TracingProtocol,
			Insecure: cfg.TracingInsecure,
			Headers:  cfg.TracingHeaderMap(),
			Timeout:  cfg.TracingTimeout,
		})
		if err != nil {
			return pkgerrors.Wrap(err, "failed to set up tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.WithError(err).Warn("Failed to flush traces")
			}
		}()
	}

	var (
		sqlDB       *sqlx.DB
		redisClient *redis.Client
		producer    *kafka.Producer
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(startup.Func{
		Name: "postgres",
		StartFn: func(ctx context.Context) error {
			db, err := database.Open(ctx, database.Config{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				User:            cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			sqlDB = db
			return nil
		},
		StopFn: func(context.Context) error { return sqlDB.Close() },
	})
	boot.AddDependency(startup.Func{
		Name:  "migrations",
		Needs: []string{"postgres"},
		StartFn: func(context.Context) error {
			migrator := database.NewMigrator(logger, pg.Migrations, database.MigrationConfig{
				Folder:       cfg.DatabaseMigrationFolderPath,
				Version:      uint(cfg.DatabaseMigrationVersion),
				Force:        cfg.DatabaseMigrationForce,
				AutoRollback: cfg.DatabaseMigrationAutoRollback,
			})
			return pkgerrors.Wrap(migrator.Up(sqlDB.DB, cfg.DatabaseName), "failed to migrate database")
		},
	})
	boot.AddDependency(startup.Func{
		Name: "redis",
		StartFn: func(context.Context) error {
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
		StopFn: func(context.Context) error { return redisClient.Close() },
	})
	if cfg.KafkaEnabled {
		boot.AddDependency(startup.Func{
			Name: "kafka",
			StartFn: func(ctx context.Context) error {
				p, err := kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)
				if err != nil {
					return err
				}
				if err := p.Ping(ctx); err != nil {
					return pkgerrors.Wrap(err, "kafka brokers unreachable")
				}
				producer = p
				return nil
			},
			StopFn: func(context.Context) error { return producer.Close() },
		})
	}

	if err := boot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := boot.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("Failed to stop dependencies cleanly")
		}
	}()

	db := database.New(sqlDB, logger, cfg.DatabaseSlowQueryThreshold)
	gyms := sourcegym.NewRepository(db, logger)
	masterGyms := mastergym.NewRepository(db, logger)
	pending := pendingmatch.NewRepository(db, logger)

	var publisher events.Publisher = events.Noop{}
	if producer != nil {
		publisher = events.NewEmitter(producer, logger)
	}

	lexicon, err := normalizers.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load gym name lexicon")
	}
	scorer := matching.NewScorer(lexicon)
	strategy, err := matching.StrategyByName(cfg.MatchStrategy, scorer)
	if err != nil {
		return err
	}
	engine := matching.NewEngine(logger, scorer, strategy, masterGyms, pending, publisher, matching.EngineConfig{
		AutoLinkThreshold: cfg.AutoLinkThreshold,
		ReviewThreshold:   cfg.ReviewThreshold,
	})

	jjwl, ibjjf, err := newFetchers(cfg, logger)
	if err != nil {
		return err
	}

	orchestrator := gymsync.NewOrchestrator(logger, gyms, jjwl, ibjjf, engine)
	rosters := roster.NewScheduler(logger, roster.Stores{
		Gyms:        gyms,
		Tournaments: tournament.NewRepository(db, logger),
		Wishlists:   wishlist.NewRepository(db, logger),
		Athletes:    athlete.NewRepository(db, logger),
		Profiles:    userprofile.NewRepository(db, logger),
		Rosters:     rosterrepo.NewRepository(db, logger),
	}, roster.Config{
		LookaheadDays: cfg.RosterLookaheadDays,
		Batch:         batch.Config{BatchSize: cfg.RosterBatchSize, Delay: cfg.RosterDelay},
	}, jjwl, ibjjf)
	reviewer := review.NewService(logger, gyms, masterGyms, pending, engine, publisher)
	if err := newContainer(logger, reviewer, gyms); err != nil {
		return err
	}

	locker := redis.NewLocker(redisClient, "")
	scheduler := jobs.NewScheduler(logger, locker, redisClient, jobs.Config{
		LockTTL:    cfg.SyncLockTTL,
		RunOnStart: cfg.SyncRunOnStart,
	},
		jobs.SyncJJWLJob(orchestrator, cfg.SyncJJWLInterval),
		jobs.SyncIBJJFJob(orchestrator, cfg.SyncIBJJFInterval),
		jobs.RosterJob(rosters, roster.StrategyWishlist, cfg.RosterWishlistInterval),
		jobs.RosterJob(rosters, roster.StrategyProfile, cfg.RosterProfileInterval),
	)

	checker := health.NewChecker(version)
	checker.AddCheck("database", sqlDB.PingContext)
	checker.AddCheck("redis", redisClient.Ping)
	checker.ReportSync(gyms.GetSyncMeta)
	if producer != nil {
		checker.AddCheck("kafka", producer.Ping)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(
		echomw.Recover(),
		otelecho.Middleware(cfg.AppName),
		middleware.Context(),
		middleware.Logger(logger, "/api/v1/health", "/metrics"),
		echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: cfg.AllowMethods,
		}),
	)

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1", middleware.Container(containerID))
	pendingroutes.Register(api.Group("/pending-matches"))
	sourcegymroutes.Register(api.Group("/source-gyms"))
	trigger.NewHandler(logger, orchestrator, rosters, locker, redisClient, cfg.SyncLockTTL).Register(api)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("HTTP server failed")
		}
	}
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown failed")
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Scheduler shutdown failed")
	}

	logger.Info("Shutdown complete")
	return nil
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to build logger")
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

func newFetchers(cfg *config.Config, logger ectologger.Logger) (*federation.HTTPFetcher, *federation.HTTPFetcher, error) {
	feds, err := config.LoadFederations(cfg.FederationConfigFile)
	if err != nil {
		return nil, nil, err
	}

	clientConfig := federation.DefaultClientConfig()
	if cfg.FederationTimeout > 0 {
		clientConfig.Timeout = cfg.FederationTimeout
	}
	if cfg.FederationUserAgent != "" {
		clientConfig.UserAgent = cfg.FederationUserAgent
	}
	client := federation.NewClient(clientConfig, logger)

	jjwlConfig, err := fetcherConfig(federation.JJWLConfig(cfg.JJWLBaseURL), feds.JJWL)
	if err != nil {
		return nil, nil, err
	}
	ibjjfConfig, err := fetcherConfig(federation.IBJJFConfig(cfg.IBJJFBaseURL), feds.IBJJF)
	if err != nil {
		return nil, nil, err
	}

	jjwl, err := federation.NewHTTPFetcher(jjwlConfig, client, logger)
	if err != nil {
		return nil, nil, err
	}
	ibjjf, err := federation.NewHTTPFetcher(ibjjfConfig, client, logger)
	if err != nil {
		return nil, nil, err
	}
	return jjwl, ibjjf, nil
}
