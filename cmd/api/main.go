// Package main is the entrypoint for the Shortlytics API server.
package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/penshort/shortlytics/internal/analytics"
	"github.com/penshort/shortlytics/internal/auth"
	"github.com/penshort/shortlytics/internal/cache"
	"github.com/penshort/shortlytics/internal/config"
	"github.com/penshort/shortlytics/internal/geo"
	"github.com/penshort/shortlytics/internal/handler"
	"github.com/penshort/shortlytics/internal/metrics"
	"github.com/penshort/shortlytics/internal/middleware"
	"github.com/penshort/shortlytics/internal/repository"
	"github.com/penshort/shortlytics/internal/server"
	"github.com/penshort/shortlytics/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog := initLogger(cfg)
	defer closeLog()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	trustedProxies, err := middleware.ParseTrustedProxies(cfg.GetTrustedProxies())
	if err != nil {
		return err
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return err
	}
	logger.Info("connected to database")

	sqlDB, err := repository.OpenSQL(ctx, cfg.DatabaseURL)
	if err != nil {
		repo.Close()
		logger.Error("failed to open analytics connection", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
		return err
	}

	if cfg.MigrateOnStart {
		applied, err := repository.Migrate(ctx, sqlDB)
		if err != nil {
			closeStores(repo, sqlDB)
			logger.Error("migrations failed", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			return err
		}
		logger.Info("migrations applied", "version", applied)
	}

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		closeStores(repo, sqlDB)
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return err
	}
	logger.Info("connected to Redis")

	var recorder metrics.Recorder = metrics.NewNoop()
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		p := metrics.NewPrometheus()
		recorder = p
		metricsHandler = p.Handler()
	}

	locator := geo.NewClient(geo.Config{
		BaseURL:   cfg.GeoLookupURL,
		Timeout:   cfg.GeoLookupTimeout,
		CacheSize: cfg.GeoCacheSize,
		CacheTTL:  cfg.GeoCacheTTL,
	})
	clicks := analytics.NewRecorder(repo, locator, logger, recorder, analytics.RecorderConfig{
		Timeout:    cfg.ClickRecordTimeout,
		MaxRetries: cfg.ClickRecordRetries,
	})
	engine := analytics.NewEngine(sqlDB, cfg.BaseURL, recorder)

	analyticsSvc := service.NewAnalyticsService(
		engine,
		cache.NewAnalyticsCache(cacheClient, cfg.CacheKeySecret, cfg.AnalyticsCacheTTL, logger),
		auth.NewGuard(repo),
		recorder,
		logger,
	)
	shortSvc := service.NewShortURLService(repo, cacheClient, cfg.BaseURL, cfg.RedirectCacheTTL, recorder, logger)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:   logger,
		Verifier: auth.NewTokenVerifier(cfg.JWTAccessSecret),
		Limiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
			Logger:  logger,
			Store:   cacheClient,
			Enabled: cfg.RateLimitEnabled,
		}),
		TrustedProxies:  trustedProxies,
		ShortenLimit:    cfg.ShortenRateLimit,
		AnalyticsLimit:  cfg.AnalyticsRateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
		Security:        middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()},
		CORS:            middleware.DefaultCORSConfig(cfg.GetCORSAllowedOrigins()),
		MaxBodySize:     cfg.MaxRequestBodySize,
		VerboseErrors:   cfg.IsDevelopment(),
		Health:          handler.NewHealthHandler(repo, cacheClient, logger),
		Shorten:         handler.NewShortenHandler(shortSvc, logger),
		Redirect:        handler.NewRedirectHandler(shortSvc, clicks, logger),
		Analytics:       handler.NewAnalyticsHandler(analyticsSvc, logger),
		Metrics:         metricsHandler,
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Stores close after the recorder has drained pending clicks.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return sqlDB.Close()
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})
	srv.OnShutdown("click-recorder", clicks.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"metrics", cfg.MetricsEnabled,
	)
	return srv.Run(ctx)
}

func closeStores(repo *repository.Repository, db *sql.DB) {
	_ = db.Close()
	repo.Close()
}

// initLogger builds the process logger. With LOG_FILE set, output is
// mirrored to a size-rotated file.
func initLogger(cfg *config.Config) (*slog.Logger, func()) {
	var out io.Writer = os.Stdout
	closeFn := func() {}

	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closeFn = func() { _ = rotator.Close() }
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger, closeFn
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
