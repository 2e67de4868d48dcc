package weather

import (
	"context"
	"errors"

	"github.com/i474232898/humidity-comfort/internal/timeopt"
)

var (
	// ErrCityNotFound is returned when geocoding yields no match.
	ErrCityNotFound = errors.New("city not found")
	// ErrNetwork wraps any upstream fetch failure, timeouts included.
	ErrNetwork = errors.New("network error")
)

//go:generate mockgen -source=provider.go -destination=mock/mock.go -package=mock Provider

// Provider abstracts a weather data source (e.g. OpenWeatherMap, Open-Meteo).
type Provider interface {
	Name() string
	// FetchObservation returns the reading for loc at the instant opt refers to.
	FetchObservation(ctx context.Context, loc Location, opt timeopt.ID) (Observation, error)
	// FetchUTCOffsetHours returns the city's current UTC offset in whole hours.
	FetchUTCOffsetHours(ctx context.Context, loc Location) (int, error)
}
