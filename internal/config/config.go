package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/humidity-comfort/internal/logger"
)

type AppConfig struct {
	Port string

	OpenWeatherAPIKey string
	WeatherAPIKey     string
	// GeocoderAPIKey enables Google geocoding for Open-Meteo lookups.
	GeocoderAPIKey  string
	EnableOpenMeteo bool

	// FetchTimeout bounds each upstream call.
	FetchTimeout time.Duration

	// Session retention.
	SessionMaxCount int           // max number of live sessions (0 = unlimited)
	SessionMaxIdle  time.Duration // idle sessions are evicted after this (0 = never)

	// RefreshInterval controls how often time options of live sessions are re-resolved.
	RefreshInterval time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug(fmt.Sprintf("no .env file loaded: %v", err))
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	enable, err := getenvBool("ENABLE_OPEN_METEO", true)
	if err != nil {
		return nil, err
	}
	cfg.EnableOpenMeteo = enable

	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: must be positive")
	}

	if cfg.SessionMaxCount, err = getenvInt("SESSION_MAX_COUNT", 1000); err != nil {
		return nil, err
	}
	if cfg.SessionMaxIdle, err = getenvDuration("SESSION_MAX_IDLE", "2h"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "1m"); err != nil {
		return nil, err
	}

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "json"))

	if cfg.OpenWeatherAPIKey == "" && cfg.WeatherAPIKey == "" && !cfg.EnableOpenMeteo {
		return nil, fmt.Errorf("no weather provider configured: set OPENWEATHER_API_KEY, WEATHERAPI_API_KEY or ENABLE_OPEN_METEO")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
