package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	httpapi "github.com/i474232898/humidity-comfort/internal/api/http"
	"github.com/i474232898/humidity-comfort/internal/catalog"
	"github.com/i474232898/humidity-comfort/internal/compare"
	"github.com/i474232898/humidity-comfort/internal/config"
	"github.com/i474232898/humidity-comfort/internal/logger"
	"github.com/i474232898/humidity-comfort/internal/scheduler"
	"github.com/i474232898/humidity-comfort/internal/store"
	"github.com/i474232898/humidity-comfort/internal/weather"
	"github.com/i474232898/humidity-comfort/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(err)
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		logger.Fatal(err)
	}

	// Shared HTTP client for outbound provider calls; each call is bounded by FetchTimeout.
	httpClient := &http.Client{}

	// Providers with resilience (backoff + circuit breaker).
	var provs []weather.Provider
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, cfg.FetchTimeout))
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, cfg.FetchTimeout))
	}
	if cfg.EnableOpenMeteo {
		var geo providers.Geocoder = providers.NewOpenMeteoGeocoder(httpClient, cfg.FetchTimeout)
		if cfg.GeocoderAPIKey != "" {
			geo = providers.NewGoogleGeocoder(cfg.GeocoderAPIKey)
		}
		provs = append(provs, providers.NewOpenMeteoProvider(httpClient, geo, cfg.FetchTimeout))
	}

	names := make([]string, 0, len(provs))
	for _, p := range provs {
		names = append(names, p.Name())
	}
	logger.WithFields(logrus.Fields{"providers": names}).Info("weather providers configured")

	aggregator := weather.NewAggregator(provs...)

	// Live comparison sessions with configured retention.
	sessions := store.NewMemoryStore(cfg.SessionMaxCount, cfg.SessionMaxIdle)

	// Scheduler that re-resolves time options and evicts idle sessions.
	sched := scheduler.New(sessions, cfg.RefreshInterval)
	if err := sched.Start(); err != nil {
		logger.Fatal(err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "humidity-comfort",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          4 * cfg.FetchTimeout,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware; access logs go through the structured logger.
	accessLog := logger.Logger().Writer()
	defer accessLog.Close()
	app.Use(fiberlogger.New(fiberlogger.Config{Output: accessLog}))
	app.Use(recover.New())
	app.Use(cors.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "humidity-comfort",
			"sessions": sessions.Len(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Sessions:    sessions,
		Catalog:     catalog.New(),
		Provider:    aggregator,
		Options:     compare.Options{FetchTimeout: cfg.FetchTimeout},
		WaitTimeout: 3 * cfg.FetchTimeout,
	})

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.WithFields(logrus.Fields{"port": cfg.Port}).WithError(err).Info("fiber server stopped")
		}
	}()
	logger.WithFields(logrus.Fields{"port": cfg.Port}).Info("listening")

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error(err)
	}
	for _, sess := range sessions.Sessions() {
		sess.Controller.Close()
	}
}
