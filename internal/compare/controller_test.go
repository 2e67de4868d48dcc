package compare

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/humidity-comfort/internal/catalog"
	"github.com/i474232898/humidity-comfort/internal/timeopt"
	"github.com/i474232898/humidity-comfort/internal/weather"
)

type call struct {
	city string
	opt  timeopt.ID
}

// fakeProvider serves canned offsets and dew points keyed by city name.
type fakeProvider struct {
	mu      sync.Mutex
	offsets map[string]int
	dew     map[string]float64
	errs    map[string]error
	gates   map[string]chan struct{}
	// ignoreCancel makes gated calls return data even after cancellation.
	ignoreCancel bool
	calls        []call
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		offsets: map[string]int{"London": 0, "Tokyo": 9, "New York": -5, "Praia": -2, "Paris": 1},
		dew:     map[string]float64{"London": 12, "Tokyo": 22, "New York": 8, "Praia": 19, "Paris": 16},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
	}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchUTCOffsetHours(ctx context.Context, loc weather.Location) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[loc.City]; err != nil {
		return 0, err
	}
	return f.offsets[loc.City], nil
}

func (f *fakeProvider) FetchObservation(ctx context.Context, loc weather.Location, opt timeopt.ID) (weather.Observation, error) {
	f.mu.Lock()
	gate := f.gates[loc.City]
	ignore := f.ignoreCancel
	f.mu.Unlock()

	if gate != nil {
		if ignore {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return weather.Observation{}, ctx.Err()
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{city: loc.City, opt: opt})
	if err := f.errs[loc.City]; err != nil {
		return weather.Observation{}, err
	}
	return weather.Observation{
		City:           loc.City,
		Country:        loc.Country,
		TemperatureC:   25,
		DewPointC:      f.dew[loc.City],
		HumidityPct:    60,
		UTCOffsetHours: f.offsets[loc.City],
		Providers:      []string{"fake"},
	}, nil
}

func (f *fakeProvider) set(fn func(f *fakeProvider)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeProvider) lastCall(city string) (call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].city == city {
			return f.calls[i], true
		}
	}
	return call{}, false
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingRenderer struct {
	mu     sync.Mutex
	states []PairState
	errs   map[Slot]error
}

func (r *recordingRenderer) Render(s PairState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recordingRenderer) ShowError(slot Slot, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errs == nil {
		r.errs = map[Slot]error{}
	}
	r.errs[slot] = err
}

// 13:00 UTC: London afternoon, Tokyo evening, New York morning, Praia 11:00.
var afternoonUTC = time.Date(2024, time.June, 10, 13, 0, 0, 0, time.UTC)

func newTestController(t *testing.T, p *fakeProvider, r Renderer, clk *clock) *Controller {
	t.Helper()
	if clk == nil {
		clk = &clock{t: afternoonUTC}
	}
	c := NewController(p, catalog.New(), r, Options{FetchTimeout: time.Second, Now: clk.Now})
	t.Cleanup(c.Close)
	return c
}

func wait(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func selectable(s Snapshot, id timeopt.ID) bool {
	for _, o := range s.TimeOptions {
		if o.ID == id {
			return true
		}
	}
	return false
}

func TestSelectCityComputesComfort(t *testing.T) {
	p := newFakeProvider()
	r := &recordingRenderer{}
	c := newTestController(t, p, r, nil)

	require.NoError(t, c.SelectCity(Slot1, "London,GB"))
	wait(t, c)

	state := c.State()
	require.NotNil(t, state.City1)
	assert.Nil(t, state.City2)
	assert.Equal(t, "London", state.City1.City)
	assert.Equal(t, "very comfortable", state.City1.Comfort.Label)
	assert.Equal(t, 32, state.City1.Comfort.Index)
	assert.False(t, state.Complete())

	snap := c.Snapshot()
	assert.True(t, selectable(snap, timeopt.TodayNoon))
	assert.False(t, snap.Slots[0].Pending)
	assert.Equal(t, "London,GB", snap.Slots[0].CityID)

	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.states)
	assert.NotNil(t, r.states[len(r.states)-1].City1)
}

func TestBothSlotsCompleteComparison(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil, nil)

	require.NoError(t, c.SelectCity(Slot1, "London,GB"))
	require.NoError(t, c.SelectCity(Slot2, "Tokyo,JP"))
	wait(t, c)

	state := c.State()
	require.True(t, state.Complete())
	assert.Equal(t, "uncomfortable", state.City2.Comfort.Label)
	assert.True(t, c.Snapshot().Complete)
}

func TestTodayNoonRequiresBothCities(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil, nil)

	require.NoError(t, c.SelectCity(Slot1, "London,GB"))
	require.NoError(t, c.SelectCity(Slot2, "New York,US"))
	wait(t, c)

	assert.False(t, selectable(c.Snapshot(), timeopt.TodayNoon))
	assert.ErrorIs(t, c.SetTimeOption(timeopt.TodayNoon), ErrOptionUnavailable)
	assert.NoError(t, c.SetTimeOption(timeopt.YesterdayNoon))
	wait(t, c)

	last, ok := p.lastCall("New York")
	require.True(t, ok)
	assert.Equal(t, timeopt.YesterdayNoon, last.opt)
}

func TestOptionsWithoutCities(t *testing.T) {
	c := newTestController(t, newFakeProvider(), nil, nil)

	snap := c.Snapshot()
	assert.Equal(t, timeopt.Now, snap.ActiveOption)
	assert.False(t, selectable(snap, timeopt.TodayNoon))
	assert.ErrorIs(t, c.SetTimeOption(timeopt.TodayNoon), ErrOptionUnavailable)
	assert.NoError(t, c.SetTimeOption(timeopt.YesterdayNoon))
	assert.Equal(t, timeopt.YesterdayNoon, c.ActiveOption())
}

func TestActiveOptionRevertsToNowWhenNewCityIsBeforeNoon(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil, nil)

	require.NoError(t, c.SelectCity(Slot1, "London,GB"))
	require.NoError(t, c.SelectCity(Slot2, "Tokyo,JP"))
	wait(t, c)

	require.NoError(t, c.SetTimeOption(timeopt.TodayNoon))
	wait(t, c)
	last, _ := p.lastCall("London")
	assert.Equal(t, timeopt.TodayNoon, last.opt)
	last, _ = p.lastCall("Tokyo")
	assert.Equal(t, timeopt.TodayNoon, last.opt)

	require.NoError(t, c.SelectCity(Slot2, ""))
	assert.Equal(t, timeopt.TodayNoon, c.ActiveOption())
	assert.Nil(t, c.State().City2)

	// Praia is at 11:00 local time.
	require.NoError(t, c.SelectCity(Slot2, "Praia,CV"))
	wait(t, c)

	assert.Equal(t, timeopt.Now, c.ActiveOption())
	assert.False(t, selectable(c.Snapshot(), timeopt.TodayNoon))

	last, _ = p.lastCall("Praia")
	assert.Equal(t, timeopt.Now, last.opt)
	// The other slot is re-fetched for the new option.
	last, _ = p.lastCall("London")
	assert.Equal(t, timeopt.Now, last.opt)
	assert.True(t, c.State().Complete())
}

func TestFetchErrorKeepsPriorState(t *testing.T) {
	p := newFakeProvider()
	r := &recordingRenderer{}
	c := newTestController(t, p, r, nil)

	require.NoError(t, c.SelectCity(Slot1, "London,GB"))
	require.NoError(t, c.SelectCity(Slot2, "Tokyo,JP"))
	wait(t, c)

	p.set(func(f *fakeProvider) { f.errs["Paris"] = weather.ErrNetwork })
	require.NoError(t, c.SelectCity(Slot1, "Paris,FR"))
	wait(t, c)

	state := c.State()
	require.NotNil(t, state.City1)
	assert.Equal(t, "London", state.City1.City)
	assert.Equal(t, "Tokyo", state.City2.City)

	snap := c.Snapshot()
	assert.Equal(t, "network_error", snap.Slots[0].ErrorKind)
	assert.Empty(t, snap.Slots[1].Error)

	r.mu.Lock()
	assert.ErrorIs(t, r.errs[Slot1], weather.ErrNetwork)
	assert.NotContains(t, r.errs, Slot2)
	r.mu.Unlock()

	// A later success clears the error.
	p.set(func(f *fakeProvider) { delete(f.errs, "Paris") })
	require.NoError(t, c.SelectCity(Slot1, "Paris,FR"))
	wait(t, c)
	snap = c.Snapshot()
	assert.Empty(t, snap.Slots[0].Error)
	assert.Equal(t, "Paris", snap.Slots[0].Result.City)
}

func TestCityNotFoundIsReported(t *testing.T) {
	p := newFakeProvider()
	p.errs["Atlantis"] = weather.ErrCityNotFound
	c := newTestController(t, p, nil, nil)

	require.NoError(t, c.SelectCity(Slot1, "Atlantis,XX"))
	wait(t, c)

	snap := c.Snapshot()
	assert.Equal(t, "city_not_found", snap.Slots[0].ErrorKind)
	assert.Nil(t, snap.Slots[0].Result)
}

func TestNonFiniteDewPointIsInvalidInput(t *testing.T) {
	p := newFakeProvider()
	p.dew["London"] = math.NaN()
	c := newTestController(t, p, nil, nil)

	require.NoError(t, c.SelectCity(Slot1, "London,GB"))
	wait(t, c)

	snap := c.Snapshot()
	assert.Equal(t, "invalid_input", snap.Slots[0].ErrorKind)
	assert.Nil(t, c.State().City1)
}

func TestLateResultOfSupersededRequestIsDiscarded(t *testing.T) {
	p := newFakeProvider()
	gate := make(chan struct{})
	p.gates["London"] = gate
	p.ignoreCancel = true
	c := newTestController(t, p, nil, nil)

	require.NoError(t, c.SelectCity(Slot1, "London,GB"))
	require.NoError(t, c.SelectCity(Slot1, "Tokyo,JP"))

	// Let Tokyo land first, then release the stale London response.
	require.Eventually(t, func() bool { return c.State().City1 != nil }, 5*time.Second, 5*time.Millisecond)
	close(gate)
	wait(t, c)

	state := c.State()
	require.NotNil(t, state.City1)
	assert.Equal(t, "Tokyo", state.City1.City)
}

func TestOnFetchCompleteRejectsStaleSequence(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil, nil)

	require.NoError(t, c.SelectCity(Slot1, "London,GB"))
	stale := c.Seq(Slot1)
	require.NoError(t, c.SelectCity(Slot1, "Tokyo,JP"))
	wait(t, c)

	assert.False(t, c.OnFetchComplete(Slot1, stale, weather.Observation{City: "London", DewPointC: 5}))
	assert.False(t, c.OnFetchError(Slot1, stale, weather.ErrNetwork))
	assert.Equal(t, "Tokyo", c.State().City1.City)
	assert.Empty(t, c.Snapshot().Slots[0].Error)

	assert.True(t, c.OnFetchComplete(Slot1, c.Seq(Slot1), weather.Observation{City: "Konya", DewPointC: 5}))
	assert.Equal(t, "dry", c.State().City1.Comfort.Label)
}

func TestClearDiscardsInFlightFetch(t *testing.T) {
	p := newFakeProvider()
	gate := make(chan struct{})
	p.gates["London"] = gate
	c := newTestController(t, p, nil, nil)

	require.NoError(t, c.SelectCity(Slot1, "London,GB"))
	require.NoError(t, c.SelectCity(Slot1, ""))
	close(gate)
	wait(t, c)

	snap := c.Snapshot()
	assert.Nil(t, snap.Slots[0].Result)
	assert.Empty(t, snap.Slots[0].CityID)
	assert.Empty(t, snap.Slots[0].Error)
	assert.False(t, snap.Slots[0].Pending)
}

func TestFetchTimeoutIsNetworkError(t *testing.T) {
	p := newFakeProvider()
	p.gates["London"] = make(chan struct{})
	clk := &clock{t: afternoonUTC}
	c := NewController(p, catalog.New(), nil, Options{FetchTimeout: 20 * time.Millisecond, Now: clk.Now})
	t.Cleanup(c.Close)

	require.NoError(t, c.SelectCity(Slot1, "London,GB"))
	wait(t, c)

	assert.Equal(t, "network_error", c.Snapshot().Slots[0].ErrorKind)
}

func TestRefreshTimeOptions(t *testing.T) {
	p := newFakeProvider()
	clk := &clock{t: time.Date(2024, time.June, 10, 11, 0, 0, 0, time.UTC)}
	c := newTestController(t, p, nil, clk)

	require.NoError(t, c.SelectCity(Slot1, "London,GB"))
	wait(t, c)
	assert.False(t, selectable(c.Snapshot(), timeopt.TodayNoon))

	clk.Set(time.Date(2024, time.June, 10, 12, 30, 0, 0, time.UTC))
	assert.False(t, c.RefreshTimeOptions())
	assert.True(t, selectable(c.Snapshot(), timeopt.TodayNoon))
	require.NoError(t, c.SetTimeOption(timeopt.TodayNoon))
	wait(t, c)

	// Past midnight the new day's noon has not happened yet.
	clk.Set(time.Date(2024, time.June, 11, 0, 30, 0, 0, time.UTC))
	assert.True(t, c.RefreshTimeOptions())
	wait(t, c)
	assert.Equal(t, timeopt.Now, c.ActiveOption())
	last, _ := p.lastCall("London")
	assert.Equal(t, timeopt.Now, last.opt)
}

func TestInvalidSlotAndCity(t *testing.T) {
	c := newTestController(t, newFakeProvider(), nil, nil)

	assert.ErrorIs(t, c.SelectCity(Slot(3), "London,GB"), ErrInvalidSlot)
	assert.Error(t, c.SelectCity(Slot1, "London"))

	_, err := ParseSlot(0)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	s, err := ParseSlot(2)
	require.NoError(t, err)
	assert.Equal(t, Slot2, s)
}

func TestClosedController(t *testing.T) {
	c := newTestController(t, newFakeProvider(), nil, nil)
	c.Close()

	assert.ErrorIs(t, c.SelectCity(Slot1, "London,GB"), ErrClosed)
	assert.ErrorIs(t, c.SetTimeOption(timeopt.Now), ErrClosed)
}

func TestSessionsAreIndependent(t *testing.T) {
	p := newFakeProvider()
	a := newTestController(t, p, nil, nil)
	b := newTestController(t, p, nil, nil)

	require.NoError(t, a.SelectCity(Slot1, "London,GB"))
	wait(t, a)

	assert.NotNil(t, a.State().City1)
	assert.Nil(t, b.State().City1)
}
