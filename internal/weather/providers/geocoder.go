package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"

	"github.com/i474232898/humidity-comfort/internal/common"
	"github.com/i474232898/humidity-comfort/internal/weather"
)

// Geocoder resolves a city to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, loc weather.Location) (Coordinates, error)
}

// OpenMeteoGeocoder uses the keyless Open-Meteo geocoding API.
type OpenMeteoGeocoder struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoGeocoder(client *http.Client, callTimeout time.Duration) *OpenMeteoGeocoder {
	return &OpenMeteoGeocoder{
		baseURL: "https://geocoding-api.open-meteo.com/v1/search",
		httpCfg: HTTPClientConfig{
			Client:      client,
			CallTimeout: callTimeout,
			Backoff:     DefaultBackoff,
		},
		circuit: newCircuitBreaker("openmeteo-geocoding"),
	}
}

// Geocode returns the first result whose country matches loc.Country.
func (g *OpenMeteoGeocoder) Geocode(ctx context.Context, loc weather.Location) (Coordinates, error) {
	if strings.EqualFold(loc.City, "hong kong") {
		return hongKong, nil
	}

	values := url.Values{}
	values.Set("name", loc.City)
	values.Set("count", "10")
	values.Set("language", "en")
	values.Set("format", "json")

	var payload struct {
		Results []struct {
			Latitude    float64 `json:"latitude"`
			Longitude   float64 `json:"longitude"`
			CountryCode string  `json:"country_code"`
		} `json:"results"`
	}
	if err := getJSON(ctx, g.httpCfg, g.circuit, g.baseURL, values, &payload); err != nil {
		return Coordinates{}, err
	}

	for _, r := range payload.Results {
		if strings.EqualFold(r.CountryCode, loc.Country) {
			return Coordinates{Lat: r.Latitude, Lon: r.Longitude}, nil
		}
	}
	return Coordinates{}, fmt.Errorf("%w: %s, %s", weather.ErrCityNotFound, loc.City, loc.Country)
}

// GoogleGeocoder uses the Google Geocoding API through kelvins/geocoder.
type GoogleGeocoder struct {
	lookup func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder sets the process-wide key used by kelvins/geocoder.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{lookup: geocoder.Geocoding}
}

// Geocode runs the blocking lookup in the background so ctx deadlines apply.
func (g *GoogleGeocoder) Geocode(ctx context.Context, loc weather.Location) (Coordinates, error) {
	if strings.EqualFold(loc.City, "hong kong") {
		return hongKong, nil
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		l, err := g.lookup(geocoder.Address{City: loc.City, Country: loc.Country})
		done <- result{loc: l, err: err}
	}()

	select {
	case <-ctx.Done():
		return Coordinates{}, fmt.Errorf("%w: google geocoding: %v", weather.ErrNetwork, ctx.Err())
	case r := <-done:
		if r.err != nil {
			if common.HasAny(r.err.Error(), "ZERO_RESULTS", "not found") {
				return Coordinates{}, fmt.Errorf("%w: %s, %s", weather.ErrCityNotFound, loc.City, loc.Country)
			}
			return Coordinates{}, fmt.Errorf("%w: google geocoding: %v", weather.ErrNetwork, r.err)
		}
		return Coordinates{Lat: r.loc.Latitude, Lon: r.loc.Longitude}, nil
	}
}
