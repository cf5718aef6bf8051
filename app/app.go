package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bloodmatch/internal/config"
	"bloodmatch/internal/controller"
	"bloodmatch/internal/repo"
	"bloodmatch/internal/service"
	"bloodmatch/migrations"
	"bloodmatch/pkg/classifier"
	"bloodmatch/pkg/http_server"
	"bloodmatch/pkg/logger"
	"bloodmatch/pkg/sqldb"

	"github.com/go-redis/redis/v8"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"go.uber.org/zap"
)

const serviceName = "bloodmatch"

func runMigrations(db *sqldb.DB, cfg *config.Config) error {
	var (
		driver database.Driver
		err    error
	)
	switch db.Driver {
	case sqldb.DriverPostgres:
		driver, err = pgmigrate.WithInstance(db.Database, &pgmigrate.Config{DatabaseName: cfg.PostgresDatabase})
	case sqldb.DriverSQLite:
		driver, err = sqlitemigrate.WithInstance(db.Database, &sqlitemigrate.Config{})
	default:
		err = fmt.Errorf("no migrations for driver `%s`", db.Driver)
	}
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations.FS, db.Driver)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, db.Driver, driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func newClassifier(cfg *config.Config, log *zap.Logger) (classifier.Classifier, func(), error) {
	var c classifier.Classifier
	switch cfg.ClassifierMode {
	case config.ClassifierHTTP:
		c = classifier.NewHTTPClassifier(cfg.ClassifierURL, cfg.ClassifierTimeout, log)
	case config.ClassifierExec:
		c = classifier.NewExecClassifier(cfg.ClassifierCommand[0], cfg.ClassifierCommand[1:], log)
	default:
		return classifier.Unavailable(), func() {}, nil
	}
	c = classifier.WithTimeout(c, cfg.ClassifierTimeout)

	if cfg.RedisAddr == "" {
		return c, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}

	cached := classifier.NewCachedClassifier(c, classifier.NewRedisCache(client), cfg.PredictionCacheTTL, log)
	return cached, func() { _ = client.Close() }, nil
}

// runExpirySweeps closes expired requests every interval until ctx is done.
func runExpirySweeps(ctx context.Context, lifecycle service.Lifecycle, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := lifecycle.ExpireStaleRequests(ctx, now); err != nil {
				log.Error("Scheduled expiry sweep failed", zap.Error(err))
			}
		}
	}
}

func newHandler(services *service.Services, cfg *config.Config, log *zap.Logger) *echo.Echo {
	handler := echo.New()
	handler.HideBanner = true

	handler.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	handler.Use(controller.RequestLogger(log))
	handler.Use(middleware.Recover())
	// room for the multipart envelope around the largest allowed image
	handler.Use(middleware.BodyLimit(fmt.Sprintf("%dK", cfg.MaxUploadBytes/1024+1024)))

	controller.SetupRoutesHandlers(handler, services, controller.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		PublicBaseURL:  cfg.PublicBaseURL,
		Logger:         log,
	})

	return handler
}

func Run() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger error:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Connecting database...", zap.String("driver", cfg.DBDriver))
	db, err := sqldb.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatal("Error occurred while connecting to db", zap.Error(err))
	}
	defer db.Close()

	log.Info("Running migrations...")
	if err := runMigrations(db, cfg); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	predictor, closePredictor, err := newClassifier(cfg, log)
	if err != nil {
		log.Fatal("Classifier setup failed", zap.Error(err))
	}
	defer closePredictor()

	repositories := repo.NewRepositories(db)
	services := service.NewServices(service.Deps{
		Repos:      repositories,
		Classifier: predictor,
		Threshold:  cfg.PredictThreshold,
		Logger:     log,
	})

	log.Info("Setup routes...")
	handler := newHandler(services, cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.ExpirySweepInterval > 0 {
		log.Info("Scheduling expiry sweeps", zap.Duration("interval", cfg.ExpirySweepInterval))
		go runExpirySweeps(ctx, services.Lifecycle, cfg.ExpirySweepInterval, log)
	}

	log.Info("Starting server...", zap.String("address", cfg.ServerAddress))
	httpServer := http_server.New(handler, cfg.ServerAddress,
		http_server.ShutdownTimeout(cfg.ShutdownTimeout),
		http_server.WriteTimeout(cfg.ClassifierTimeout+30*time.Second),
	)

	log.Info("Ready to process requests...")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		log.Info("Got signal", zap.String("signal", s.String()))
	case err = <-httpServer.Notify():
		log.Error("Notify error", zap.Error(err))
	}

	log.Info("Shutting down...")
	cancel()
	if err := httpServer.Shutdown(); err != nil {
		log.Error("Shutdown error", zap.Error(err))
		return
	}

	log.Info("Successful shutdown")
}
