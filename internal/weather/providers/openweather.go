package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/humidity-comfort/internal/timeopt"
	"github.com/i474232898/humidity-comfort/internal/weather"
)

// Coordinates is a geocoded position.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Geocoding for this city is ambiguous upstream, so it is pinned.
var hongKong = Coordinates{Lat: 22.3193, Lon: 114.1694}

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
// Noon observations need the One Call 3.0 subscription.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, callTimeout time.Duration) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org",
		httpCfg: HTTPClientConfig{
			Client:      client,
			CallTimeout: callTimeout,
			Backoff:     DefaultBackoff,
		},
		circuit: newCircuitBreaker("openweather"),
		now:     time.Now,
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) FetchUTCOffsetHours(ctx context.Context, loc weather.Location) (int, error) {
	if p.apiKey == "" {
		return 0, fmt.Errorf("openweather api key is not configured")
	}

	coords, err := p.geocode(ctx, loc)
	if err != nil {
		return 0, err
	}
	return p.offset(ctx, coords)
}

func (p *OpenWeatherProvider) FetchObservation(ctx context.Context, loc weather.Location, opt timeopt.ID) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("openweather api key is not configured")
	}

	coords, err := p.geocode(ctx, loc)
	if err != nil {
		return weather.Observation{}, err
	}
	offset, err := p.offset(ctx, coords)
	if err != nil {
		return weather.Observation{}, err
	}

	var sample oneCallSample
	if opt == timeopt.Now {
		sample, err = p.current(ctx, coords)
	} else {
		sample, err = p.historical(ctx, coords, timeopt.ReferenceInstant(opt, offset, p.now().UTC()))
	}
	if err != nil {
		return weather.Observation{}, err
	}

	ts := time.Unix(sample.Dt, 0).UTC()
	return weather.Observation{
		City:           loc.City,
		Country:        loc.Country,
		TemperatureC:   sample.Temp,
		DewPointC:      sample.DewPoint,
		HumidityPct:    sample.Humidity,
		LocalTime:      weather.FormatLocalTime(ts, offset),
		ObservedAt:     ts,
		UTCOffsetHours: offset,
		Providers:      []string{p.name},
	}, nil
}

func (p *OpenWeatherProvider) geocode(ctx context.Context, loc weather.Location) (Coordinates, error) {
	city, pinned := queryName(loc)
	if pinned != nil {
		return *pinned, nil
	}

	values := url.Values{}
	values.Set("q", fmt.Sprintf("%s,%s", city, loc.Country))
	values.Set("limit", "1")
	values.Set("appid", p.apiKey)

	var payload []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/geo/1.0/direct", values, &payload); err != nil {
		return Coordinates{}, err
	}
	if len(payload) == 0 {
		return Coordinates{}, fmt.Errorf("%w: %s, %s", weather.ErrCityNotFound, city, loc.Country)
	}
	return Coordinates{Lat: payload[0].Lat, Lon: payload[0].Lon}, nil
}

// offset reads the city's current UTC offset from the current weather endpoint.
func (p *OpenWeatherProvider) offset(ctx context.Context, c Coordinates) (int, error) {
	values := p.coordValues(c)

	var payload struct {
		Timezone int `json:"timezone"` // seconds east of UTC
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/data/2.5/weather", values, &payload); err != nil {
		return 0, err
	}
	return offsetHours(payload.Timezone), nil
}

type oneCallSample struct {
	Dt       int64   `json:"dt"`
	Temp     float64 `json:"temp"`
	DewPoint float64 `json:"dew_point"`
	Humidity float64 `json:"humidity"`
}

func (p *OpenWeatherProvider) current(ctx context.Context, c Coordinates) (oneCallSample, error) {
	values := p.coordValues(c)
	values.Set("units", "metric")
	values.Set("exclude", "minutely,hourly,daily,alerts")

	var payload struct {
		Current oneCallSample `json:"current"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/data/3.0/onecall", values, &payload); err != nil {
		return oneCallSample{}, err
	}
	return payload.Current, nil
}

func (p *OpenWeatherProvider) historical(ctx context.Context, c Coordinates, at time.Time) (oneCallSample, error) {
	values := p.coordValues(c)
	values.Set("units", "metric")
	values.Set("dt", strconv.FormatInt(at.Unix(), 10))

	var payload struct {
		Data []oneCallSample `json:"data"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/data/3.0/onecall/timemachine", values, &payload); err != nil {
		return oneCallSample{}, err
	}
	if len(payload.Data) == 0 {
		return oneCallSample{}, fmt.Errorf("%w: no observation at %s", weather.ErrNetwork, at.Format(time.RFC3339))
	}
	return payload.Data[0], nil
}

// queryName returns the city name sent to geocoding endpoints, or the pinned
// coordinates when the city must not be geocoded.
func queryName(loc weather.Location) (string, *Coordinates) {
	city := loc.City
	if strings.EqualFold(city, "hong kong") {
		c := hongKong
		return "", &c
	}
	if i := strings.Index(city, ","); i >= 0 {
		city = strings.TrimSpace(city[:i])
	}
	return city, nil
}

func (p *OpenWeatherProvider) coordValues(c Coordinates) url.Values {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
	values.Set("appid", p.apiKey)
	return values
}
