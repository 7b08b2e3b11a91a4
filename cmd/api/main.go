package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"bookingflow/api"
	"bookingflow/auth"
	"bookingflow/booking"
	"bookingflow/config"
	"bookingflow/db"
	"bookingflow/directory"
	"bookingflow/events"
	"bookingflow/lifecycle"
	"bookingflow/logger"
	"bookingflow/matching"
	"bookingflow/notify"
	"bookingflow/schedule"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	defaultConfigPath := os.Getenv("BOOKINGFLOW_CONFIG")
	if defaultConfigPath == "" {
		defaultConfigPath = "config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, logCloser, err := logger.New(loggerConfig(cfg.Logging))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logCloser.Close()

	appLogger.Info("starting bookingflow",
		slog.String("app", cfg.App.Name),
		slog.String("environment", cfg.App.Environment),
		slog.String("timezone", cfg.App.Timezone),
	)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	bus, closeBus := newBus(cfg.RabbitMQ, appLogger)
	defer closeBus()

	app, err := build(ctx, cfg, pool, bus, appLogger)
	if err != nil {
		return err
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info("http server listening", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		appLogger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	appLogger.Info("server shutdown complete")
	return nil
}

// build wires the repositories, the domain services and the HTTP server.
func build(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, bus events.Bus, appLogger *slog.Logger) (*api.Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	cal, err := schedule.New(scheduleConfig(cfg, loc))
	if err != nil {
		return nil, fmt.Errorf("init calendar: %w", err)
	}

	users := directory.NewRepository(pool)
	redisClient := directory.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, appLogger)
	dir := directory.NewCachedRepository(users, directory.NewLanguageCache(users, redisClient, cfg.Redis.LanguageTTL, appLogger))

	jobs := booking.NewRepository(pool)
	engine := matching.NewEngine(dir, jobs)

	dispatcher := notify.NewDispatcher(notifyConfig(cfg), notify.Deps{
		Directory: dir,
		Matcher:   engine,
		Jobs:      jobs,
		Mailer:    notify.NewLogMailer(appLogger),
		Push:      notify.NewLogPush(appLogger),
		SMS:       notify.NewLogSMS(appLogger),
		Calendar:  cal,
		Logger:    appLogger,
	})

	manager := lifecycle.NewManager(lifecycleConfig(cfg), lifecycle.Deps{
		Store:     jobs,
		Directory: dir,
		Matcher:   engine,
		Notifier:  dispatcher,
		Bus:       bus,
		Calendar:  cal,
		Logger:    appLogger,
	})

	accounts := auth.NewService(auth.NewRepository(pool), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	return api.NewServer(api.Deps{
		Bookings: manager,
		Accounts: accounts,
		Logger:   appLogger,
		Location: loc,
	}), nil
}

// newBus connects to RabbitMQ when configured. Without a broker, or when the
// broker cannot be reached, events go to the log.
func newBus(cfg config.RabbitMQConfig, appLogger *slog.Logger) (events.Bus, func()) {
	if cfg.URL == "" {
		return events.NewLogBus(appLogger), func() {}
	}
	publisher, err := events.DialRabbit(rabbitConfig(cfg), appLogger)
	if err != nil {
		appLogger.Warn("rabbitmq unavailable, logging events instead", slog.Any("error", err))
		return events.NewLogBus(appLogger), func() {}
	}
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			appLogger.Warn("close rabbitmq publisher", slog.Any("error", err))
		}
	}
}

func loggerConfig(cfg config.LoggingConfig) logger.Config {
	return logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableSource,
		TimeFormat:   time.RFC3339,
	}
}

func rabbitConfig(cfg config.RabbitMQConfig) events.RabbitConfig {
	return events.RabbitConfig{
		URL:           cfg.URL,
		Exchange:      cfg.Exchange,
		RetryAttempts: cfg.RetryAttempts,
		RetryInterval: cfg.RetryInterval,
		Heartbeat:     cfg.Heartbeat,
	}
}

func scheduleConfig(cfg *config.Config, loc *time.Location) schedule.Config {
	return schedule.Config{
		Location:       loc,
		NightStartHour: cfg.Notify.NightStartHour,
		NightEndHour:   cfg.Notify.NightEndHour,
		BusinessHours:  cfg.Notify.BusinessHours,
	}
}

func notifyConfig(cfg *config.Config) notify.Config {
	return notify.Config{
		PushAppID:   cfg.Notify.PushAppID,
		PushTitle:   cfg.Notify.PushTitle,
		SMSFrom:     cfg.Notify.SMSFrom,
		Locale:      cfg.Booking.Locale,
		Concurrency: cfg.Notify.Concurrency,
	}
}

func lifecycleConfig(cfg *config.Config) lifecycle.Config {
	return lifecycle.Config{
		ImmediateLead: cfg.Booking.ImmediateLead,
		CancelWindow:  cfg.Booking.CancelWindow,
		Locale:        cfg.Booking.Locale,
		SupportPhone:  cfg.Booking.SupportPhone,
	}
}
