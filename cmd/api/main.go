package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/harborline/keel/config"
	catalogrepo "github.com/harborline/keel/internal/repositories/catalog"
	consortiumrepo "github.com/harborline/keel/internal/repositories/consortium"
	itineraryrepo "github.com/harborline/keel/internal/repositories/itinerary"
	servicerepo "github.com/harborline/keel/internal/repositories/service"
	"github.com/harborline/keel/pkg/catalog"
	"github.com/harborline/keel/pkg/consolidation"
	"github.com/harborline/keel/pkg/database"
	"github.com/harborline/keel/pkg/events"
	"github.com/harborline/keel/pkg/graph"
	"github.com/harborline/keel/pkg/kafka"
	"github.com/harborline/keel/pkg/middleware"
	redispkg "github.com/harborline/keel/pkg/redis"
	catalogroutes "github.com/harborline/keel/pkg/routes/catalog"
	consortiumroutes "github.com/harborline/keel/pkg/routes/consortium"
	"github.com/harborline/keel/pkg/routes/health"
	itineraryroutes "github.com/harborline/keel/pkg/routes/itinerary"
	serviceroutes "github.com/harborline/keel/pkg/routes/service"
	tenantroutes "github.com/harborline/keel/pkg/routes/tenant"
	"github.com/harborline/keel/pkg/startup"
	"github.com/harborline/keel/pkg/tracing"
	"github.com/harborline/keel/pkg/tracing/exporters"
	"github.com/harborline/keel/pkg/voyage"
)

// dependency adapts a start/stop pair to the startup lifecycle.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string     { return d.name }
func (d *dependency) DependsOn() []string { return d.dependsOn }

func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}

func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, zlog := newLogger(cfg)
	defer zlog.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("service exited with error")
		os.Exit(1)
	}
}

// newLogger builds the structured logger: ectologger on top, zap as the
// output sink.
func newLogger(cfg config.Config) (ectologger.Logger, *zap.Logger) {
	var zlog *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zlog, err = zap.NewDevelopment()
	} else {
		zlog, err = zap.NewProduction()
	}
	if err != nil {
		zlog = zap.NewNop()
	}

	sink := zlog.WithOptions(zap.AddCallerSkip(1))
	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		encoded, encodeErr := json.Marshal(msg)
		if encodeErr != nil {
			sink.Error("failed to encode log message", zap.Error(encodeErr))
			return
		}
		sink.Info(string(encoded))
	})
	return logger, zlog
}

func run(cfg config.Config, logger ectologger.Logger) error {
	ctx := context.Background()

	if cfg.TracingEnabled {
		shutdown, err := setupTracing(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer shutdown(ctx)
	}

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	var sqlxDB *sqlx.DB
	boot.AddDependency(&dependency{
		name: "postgres",
		start: func(ctx context.Context) error {
			dsn := fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName,
				cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
			)

			db, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
			if err != nil {
				return fmt.Errorf("failed to connect to postgres: %w", err)
			}
			db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
			db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
			db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

			driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
			if err != nil {
				return fmt.Errorf("failed to create migration driver: %w", err)
			}

			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
			})
			if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			sqlxDB = db
			return nil
		},
		stop: func(ctx context.Context) error {
			if sqlxDB == nil {
				return nil
			}
			return sqlxDB.Close()
		},
	})

	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		boot.AddDependency(&dependency{
			name: "kafka",
			start: func(ctx context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)
				return nil
			},
			stop: func(ctx context.Context) error {
				if producer == nil {
					return nil
				}
				return producer.Close()
			},
		})
	}

	var graphClient *graph.Client
	if cfg.GraphDBEnabled {
		boot.AddDependency(&dependency{
			name: "graph",
			start: func(ctx context.Context) error {
				client, err := graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
				}, logger)
				if err != nil {
					return fmt.Errorf("failed to create graph client: %w", err)
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					return fmt.Errorf("failed to reach graph database: %w", err)
				}
				graphClient = client
				return nil
			},
			stop: func(ctx context.Context) error {
				if graphClient == nil {
					return nil
				}
				return graphClient.Close(ctx)
			},
		})
	}

	var redisClient *redispkg.Client
	if cfg.RedisEnabled {
		boot.AddDependency(&dependency{
			name: "redis",
			start: func(ctx context.Context) error {
				client, err := redispkg.NewClient(redispkg.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, logger)
				if err != nil {
					return fmt.Errorf("failed to connect to redis: %w", err)
				}
				redisClient = client
				return nil
			},
			stop: func(ctx context.Context) error {
				if redisClient == nil {
					return nil
				}
				return redisClient.Close()
			},
		})
	}

	if err := boot.Start(ctx); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer boot.Stop(ctx) //nolint:errcheck

	db := database.NewDatabaseInstance(sqlxDB, logger)

	serviceRepository := servicerepo.NewRepository(db, logger)
	consortiumRepository := consortiumrepo.NewRepository(db, logger)
	itineraryRepository := itineraryrepo.NewRepository(db, logger)
	catalogRepository := catalogrepo.NewRepository(db, logger)

	var emitter *events.Emitter
	if producer != nil {
		emitter = events.NewEmitter(producer, logger)
	}
	var projector *graph.Projector
	if graphClient != nil {
		projector = graph.NewProjector(graphClient, logger)
	}
	notifier := events.NewBroadcaster(emitter, projector, logger)

	serviceCatalog := catalog.New(serviceRepository, logger)
	if redisClient != nil {
		serviceCatalog.UseGroupCache(redispkg.NewDiscoveryCache(redisClient, cfg.DiscoveryCacheTTL, logger))
	}
	engine := consolidation.NewEngine(serviceRepository, consortiumRepository, notifier, logger)
	voyageService := voyage.NewService(itineraryRepository, notifier, logger)

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}
	if err := registerDependencies(container, registrations{
		logger:      logger,
		db:          db,
		services:    serviceRepository,
		consortiums: consortiumRepository,
		itineraries: itineraryRepository,
		catalogRepo: catalogRepository,
		catalog:     serviceCatalog,
		engine:      engine,
		voyages:     voyageService,
		projector:   projector,
	}); err != nil {
		return fmt.Errorf("failed to register dependencies: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqCtx, _ := ectoinject.SetActiveContainer(c.Request().Context(), container.GetContainerID())
			c.SetRequest(c.Request().WithContext(reqCtx))
			return next(c)
		}
	})

	checker := health.NewChecker(sqlxDB, graphPing(graphClient), cfg.Version)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	serviceroutes.Register(api.Group("/services"))
	consortiumroutes.Register(api.Group("/consortiums"))
	itineraryroutes.Register(api.Group("/itineraries"))
	catalogroutes.Register(api.Group("/catalog"))
	tenantroutes.Register(api)

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	errCh := make(chan error, 1)
	go func() {
		checker.SetReady(true)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	logger.WithField("port", cfg.Port).Infof("%s listening on :%d", cfg.AppName, cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

type registrations struct {
	logger      ectologger.Logger
	db          database.DB
	services    *servicerepo.Repository
	consortiums *consortiumrepo.Repository
	itineraries *itineraryrepo.Repository
	catalogRepo *catalogrepo.Repository
	catalog     *catalog.Catalog
	engine      *consolidation.Engine
	voyages     *voyage.Service
	projector   *graph.Projector
}

func registerDependencies(container ectocontainer.DIContainer, deps registrations) error {
	if err := ectoinject.RegisterInstance[ectologger.Logger](container, deps.logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[database.DB](container, deps.db); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*servicerepo.Repository](container, deps.services); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*consortiumrepo.Repository](container, deps.consortiums); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*itineraryrepo.Repository](container, deps.itineraries); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*catalogrepo.Repository](container, deps.catalogRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*catalog.Catalog](container, deps.catalog); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*consolidation.Engine](container, deps.engine); err != nil {
		return err
	}
	if deps.projector != nil {
		if err := ectoinject.RegisterInstance[*graph.Projector](container, deps.projector); err != nil {
			return err
		}
	}
	return ectoinject.RegisterInstance[*voyage.Service](container, deps.voyages)
}

// graphPing adapts the optional graph client to the health checker.
func graphPing(client *graph.Client) func() error {
	if client == nil {
		return nil
	}
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.VerifyConnectivity(ctx)
	}
}

// setupTracing wires the OTLP exporter and installs the tracer used by every
// span in the service.
func setupTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingEndpoint,
		Protocol: cfg.TracingProtocol,
		Insecure: cfg.TracingInsecure,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return provider.Shutdown, nil
}
