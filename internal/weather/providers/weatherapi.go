package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/humidity-comfort/internal/timeopt"
	"github.com/i474232898/humidity-comfort/internal/weather"
)

// weatherAPILocalLayout is the wall clock format of location.localtime and hour.time.
const weatherAPILocalLayout = "2006-01-02 15:04"

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, callTimeout time.Duration) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1",
		httpCfg: HTTPClientConfig{
			Client:      client,
			CallTimeout: callTimeout,
			Backoff:     DefaultBackoff,
		},
		circuit: newCircuitBreaker("weatherapi"),
		now:     time.Now,
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPILocation struct {
	Localtime      string `json:"localtime"`
	LocaltimeEpoch int64  `json:"localtime_epoch"`
}

// offsetSeconds derives the UTC offset from the local wall clock and the
// matching instant. localtime is truncated to the minute, so the difference
// is rounded to the nearest quarter hour.
func (l weatherAPILocation) offsetSeconds() (int, error) {
	local, err := time.Parse(weatherAPILocalLayout, l.Localtime)
	if err != nil {
		return 0, fmt.Errorf("%w: weatherapi localtime %q: %v", weather.ErrNetwork, l.Localtime, err)
	}
	diff := float64(local.Unix() - l.LocaltimeEpoch)
	return int(math.Round(diff/900) * 900), nil
}

type weatherAPISample struct {
	LastUpdatedEpoch int64   `json:"last_updated_epoch"`
	TimeEpoch        int64   `json:"time_epoch"`
	Time             string  `json:"time"`
	TempC            float64 `json:"temp_c"`
	Humidity         float64 `json:"humidity"`
	DewPointC        float64 `json:"dewpoint_c"`
}

func (p *WeatherAPIProvider) FetchUTCOffsetHours(ctx context.Context, loc weather.Location) (int, error) {
	if p.apiKey == "" {
		return 0, fmt.Errorf("weatherapi api key is not configured")
	}

	coords, err := p.geocode(ctx, loc)
	if err != nil {
		return 0, err
	}
	offset, _, err := p.current(ctx, coords)
	if err != nil {
		return 0, err
	}
	return offsetHours(offset), nil
}

func (p *WeatherAPIProvider) FetchObservation(ctx context.Context, loc weather.Location, opt timeopt.ID) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("weatherapi api key is not configured")
	}

	coords, err := p.geocode(ctx, loc)
	if err != nil {
		return weather.Observation{}, err
	}
	offsetSec, sample, err := p.current(ctx, coords)
	if err != nil {
		return weather.Observation{}, err
	}
	offset := offsetHours(offsetSec)

	ts := time.Unix(sample.LastUpdatedEpoch, 0).UTC()
	if sample.LastUpdatedEpoch == 0 {
		ts = p.now().UTC()
	}

	if opt != timeopt.Now {
		day := timeopt.LocalNow(offset, p.now().UTC())
		if opt == timeopt.YesterdayNoon {
			day = day.AddDate(0, 0, -1)
		}
		sample, err = p.noon(ctx, coords, day.Format("2006-01-02"))
		if err != nil {
			return weather.Observation{}, err
		}
		ts = time.Unix(sample.TimeEpoch, 0).UTC()
	}

	return weather.Observation{
		City:           loc.City,
		Country:        loc.Country,
		TemperatureC:   sample.TempC,
		DewPointC:      sample.DewPointC,
		HumidityPct:    sample.Humidity,
		LocalTime:      weather.FormatLocalTime(ts, offset),
		ObservedAt:     ts,
		UTCOffsetHours: offset,
		Providers:      []string{p.name},
	}, nil
}

func (p *WeatherAPIProvider) geocode(ctx context.Context, loc weather.Location) (Coordinates, error) {
	city, pinned := queryName(loc)
	if pinned != nil {
		return *pinned, nil
	}

	values := p.keyValues()
	values.Set("q", fmt.Sprintf("%s,%s", city, loc.Country))

	var payload []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/search.json", values, &payload); err != nil {
		return Coordinates{}, err
	}
	if len(payload) == 0 {
		return Coordinates{}, fmt.Errorf("%w: %s, %s", weather.ErrCityNotFound, city, loc.Country)
	}
	return Coordinates{Lat: payload[0].Lat, Lon: payload[0].Lon}, nil
}

// current returns the city's UTC offset in seconds and its current conditions.
func (p *WeatherAPIProvider) current(ctx context.Context, c Coordinates) (int, weatherAPISample, error) {
	values := p.coordValues(c)

	var payload struct {
		Location weatherAPILocation `json:"location"`
		Current  weatherAPISample   `json:"current"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/current.json", values, &payload); err != nil {
		return 0, weatherAPISample{}, err
	}
	offset, err := payload.Location.offsetSeconds()
	if err != nil {
		return 0, weatherAPISample{}, err
	}
	return offset, payload.Current, nil
}

// noon returns the hourly sample at 12:00 local time on day (YYYY-MM-DD).
func (p *WeatherAPIProvider) noon(ctx context.Context, c Coordinates, day string) (weatherAPISample, error) {
	values := p.coordValues(c)
	values.Set("dt", day)
	values.Set("hour", "12")

	var payload struct {
		Forecast struct {
			Forecastday []struct {
				Hour []weatherAPISample `json:"hour"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/history.json", values, &payload); err != nil {
		return weatherAPISample{}, err
	}

	want := day + " 12:00"
	for _, fd := range payload.Forecast.Forecastday {
		for _, h := range fd.Hour {
			if h.Time == want {
				return h, nil
			}
		}
	}
	return weatherAPISample{}, fmt.Errorf("%w: weatherapi has no sample at %s", weather.ErrNetwork, want)
}

func (p *WeatherAPIProvider) keyValues() url.Values {
	values := url.Values{}
	values.Set("key", p.apiKey)
	return values
}

func (p *WeatherAPIProvider) coordValues(c Coordinates) url.Values {
	values := p.keyValues()
	values.Set("q", strconv.FormatFloat(c.Lat, 'f', -1, 64)+","+strconv.FormatFloat(c.Lon, 'f', -1, 64))
	return values
}
