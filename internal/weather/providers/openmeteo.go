package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/humidity-comfort/internal/timeopt"
	"github.com/i474232898/humidity-comfort/internal/weather"
)

// openMeteoTimeLayout is the local time format returned with timezone=auto.
const openMeteoTimeLayout = "2006-01-02T15:04"

const openMeteoVariables = "temperature_2m,relative_humidity_2m,dew_point_2m"

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
type OpenMeteoProvider struct {
	name     string
	baseURL  string
	geocoder Geocoder
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	now      func() time.Time
}

func NewOpenMeteoProvider(client *http.Client, geo Geocoder, callTimeout time.Duration) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:     "openmeteo",
		baseURL:  "https://api.open-meteo.com/v1/forecast",
		geocoder: geo,
		httpCfg: HTTPClientConfig{
			Client:      client,
			CallTimeout: callTimeout,
			Backoff:     DefaultBackoff,
		},
		circuit: newCircuitBreaker("openmeteo"),
		now:     time.Now,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoPayload struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Current          struct {
		Time        string  `json:"time"`
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		DewPoint    float64 `json:"dew_point_2m"`
	} `json:"current"`
	Hourly struct {
		Time        []string  `json:"time"`
		Temperature []float64 `json:"temperature_2m"`
		Humidity    []float64 `json:"relative_humidity_2m"`
		DewPoint    []float64 `json:"dew_point_2m"`
	} `json:"hourly"`
}

func (p *OpenMeteoProvider) FetchUTCOffsetHours(ctx context.Context, loc weather.Location) (int, error) {
	coords, err := p.geocoder.Geocode(ctx, loc)
	if err != nil {
		return 0, err
	}

	values := coordQuery(coords)
	values.Set("current", "temperature_2m")
	values.Set("forecast_days", "1")

	var payload openMeteoPayload
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL, values, &payload); err != nil {
		return 0, err
	}
	return offsetHours(payload.UTCOffsetSeconds), nil
}

func (p *OpenMeteoProvider) FetchObservation(ctx context.Context, loc weather.Location, opt timeopt.ID) (weather.Observation, error) {
	coords, err := p.geocoder.Geocode(ctx, loc)
	if err != nil {
		return weather.Observation{}, err
	}

	values := coordQuery(coords)
	values.Set("current", openMeteoVariables)
	values.Set("hourly", openMeteoVariables)
	// Hourly stamps follow the real zone while noon days follow the floored
	// offset, which can lag a day behind in half-hour zones.
	values.Set("past_days", "2")
	values.Set("forecast_days", "1")

	var payload openMeteoPayload
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL, values, &payload); err != nil {
		return weather.Observation{}, err
	}

	offset := offsetHours(payload.UTCOffsetSeconds)
	zone := time.FixedZone("", payload.UTCOffsetSeconds)

	obs := weather.Observation{
		City:           loc.City,
		Country:        loc.Country,
		UTCOffsetHours: offset,
		Providers:      []string{p.name},
	}

	var stamp string
	if opt == timeopt.Now {
		stamp = payload.Current.Time
		obs.TemperatureC = payload.Current.Temperature
		obs.DewPointC = payload.Current.DewPoint
		obs.HumidityPct = payload.Current.Humidity
	} else {
		local := timeopt.LocalNow(offset, p.now().UTC())
		if opt == timeopt.YesterdayNoon {
			local = local.AddDate(0, 0, -1)
		}
		stamp = local.Format("2006-01-02") + "T12:00"

		i := indexOf(payload.Hourly.Time, stamp)
		if i < 0 || i >= len(payload.Hourly.DewPoint) || i >= len(payload.Hourly.Temperature) || i >= len(payload.Hourly.Humidity) {
			return weather.Observation{}, fmt.Errorf("%w: openmeteo has no sample at %s", weather.ErrNetwork, stamp)
		}
		obs.TemperatureC = payload.Hourly.Temperature[i]
		obs.DewPointC = payload.Hourly.DewPoint[i]
		obs.HumidityPct = payload.Hourly.Humidity[i]
	}

	ts, err := time.ParseInLocation(openMeteoTimeLayout, stamp, zone)
	if err != nil {
		ts = p.now()
	}
	obs.ObservedAt = ts.UTC()
	obs.LocalTime = weather.FormatLocalTime(obs.ObservedAt, offset)

	return obs, nil
}

func coordQuery(c Coordinates) url.Values {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(c.Lon, 'f', -1, 64))
	values.Set("timezone", "auto")
	return values
}

func indexOf(items []string, want string) int {
	for i, s := range items {
		if s == want {
			return i
		}
	}
	return -1
}
