package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/i474232898/humidity-comfort/internal/logger"
	"github.com/i474232898/humidity-comfort/internal/timeopt"
)

// AggregateObservations combines observations from several providers into one.
// Numeric fields are averaged; the local time and offset come from the newest reading.
func AggregateObservations(loc Location, readings []Observation) Observation {
	if len(readings) == 0 {
		return Observation{City: loc.City, Country: loc.Country}
	}

	var (
		sumTemp     float64
		sumDew      float64
		sumHumidity float64
	)

	providers := make([]string, 0, len(readings))
	newest := readings[0]

	for _, r := range readings {
		sumTemp += r.TemperatureC
		sumDew += r.DewPointC
		sumHumidity += r.HumidityPct

		if r.ObservedAt.After(newest.ObservedAt) {
			newest = r
		}
		providers = append(providers, r.Providers...)
	}

	n := float64(len(readings))

	return Observation{
		City:           loc.City,
		Country:        loc.Country,
		TemperatureC:   sumTemp / n,
		DewPointC:      sumDew / n,
		HumidityPct:    sumHumidity / n,
		LocalTime:      newest.LocalTime,
		ObservedAt:     newest.ObservedAt,
		UTCOffsetHours: newest.UTCOffsetHours,
		Providers:      providers,
	}
}

// Aggregator fans requests out to several providers and merges what succeeds.
type Aggregator struct {
	providers []Provider
}

// NewAggregator creates an Aggregator over providers, in priority order.
func NewAggregator(providers ...Provider) *Aggregator {
	return &Aggregator{providers: providers}
}

func (a *Aggregator) Name() string {
	return "aggregate"
}

// FetchObservation fetches from all providers concurrently and averages the
// successful readings.
func (a *Aggregator) FetchObservation(ctx context.Context, loc Location, opt timeopt.ID) (Observation, error) {
	if len(a.providers) == 0 {
		return Observation{}, fmt.Errorf("%w: no weather providers configured", ErrNetwork)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings []Observation
		errs     = make([]error, len(a.providers))
	)

	for i, p := range a.providers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			r, err := p.FetchObservation(ctx, loc, opt)
			if err != nil {
				// Log and continue; we want partial success when possible.
				logger.WithFields(logrus.Fields{
					"provider": p.Name(),
					"location": loc.Key(),
					"option":   opt,
				}).WithError(err).Warn("provider fetch failed")
				errs[i] = err
				return
			}

			mu.Lock()
			readings = append(readings, r)
			mu.Unlock()
		}()
	}

	wg.Wait()

	if len(readings) == 0 {
		return Observation{}, combineFailures(loc, errs)
	}

	return AggregateObservations(loc, readings), nil
}

// FetchUTCOffsetHours asks providers in order and returns the first answer.
func (a *Aggregator) FetchUTCOffsetHours(ctx context.Context, loc Location) (int, error) {
	if len(a.providers) == 0 {
		return 0, fmt.Errorf("%w: no weather providers configured", ErrNetwork)
	}

	errs := make([]error, 0, len(a.providers))
	for _, p := range a.providers {
		offset, err := p.FetchUTCOffsetHours(ctx, loc)
		if err == nil {
			return offset, nil
		}
		logger.WithFields(logrus.Fields{
			"provider": p.Name(),
			"location": loc.Key(),
		}).WithError(err).Warn("provider offset lookup failed")
		errs = append(errs, err)

		if ctx.Err() != nil {
			break
		}
	}
	return 0, combineFailures(loc, errs)
}

// combineFailures reports CityNotFound only when every provider said so.
func combineFailures(loc Location, errs []error) error {
	notFound := 0
	total := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		total++
		if errors.Is(err, ErrCityNotFound) {
			notFound++
		}
	}

	if total > 0 && notFound == total {
		return fmt.Errorf("%w: %s, %s", ErrCityNotFound, loc.City, loc.Country)
	}
	return fmt.Errorf("%w: all providers failed for %s: %v", ErrNetwork, loc.Key(), errors.Join(errs...))
}
