// Package compare runs a two-city comfort comparison session.
package compare

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/i474232898/humidity-comfort/internal/comfort"
	"github.com/i474232898/humidity-comfort/internal/logger"
	"github.com/i474232898/humidity-comfort/internal/timeopt"
	"github.com/i474232898/humidity-comfort/internal/weather"
)

// DefaultFetchTimeout bounds each upstream call when Options leaves it unset.
const DefaultFetchTimeout = 10 * time.Second

var (
	// ErrOptionUnavailable is returned when selecting a disabled time option.
	ErrOptionUnavailable = errors.New("time option not available")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("comparison closed")
)

// CityResolver maps a city id to a location.
type CityResolver interface {
	Resolve(id string) (weather.Location, error)
}

// Options tunes a Controller. Zero values select defaults.
type Options struct {
	FetchTimeout time.Duration
	Now          func() time.Time
}

type slotState struct {
	cityID  string
	loc     weather.Location
	seq     uint64
	cancel  context.CancelFunc
	pending bool
	err     error

	// Known once the UTC offset lookup succeeded.
	offset  int
	options []timeopt.Option
}

func (s *slotState) resolved() bool {
	return s.options != nil
}

// Controller owns the state of one comparison: what each slot shows, which
// time option is active, and which fetches are in flight. A newer request on
// a slot supersedes older ones; their results are discarded on arrival.
type Controller struct {
	provider weather.Provider
	cities   CityResolver
	renderer Renderer
	timeout  time.Duration
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	slots    [2]slotState
	state    PairState
	active   timeopt.ID
	closed   bool
	inflight int
	idle     chan struct{}
}

// NewController creates a Controller. renderer may be nil.
func NewController(provider weather.Provider, cities CityResolver, renderer Renderer, opts Options) *Controller {
	if renderer == nil {
		renderer = nopRenderer{}
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		provider: provider,
		cities:   cities,
		renderer: renderer,
		timeout:  opts.FetchTimeout,
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
		active:   timeopt.Now,
		idle:     make(chan struct{}),
	}
}

// SelectCity sets the city shown in slot and starts fetching it. An empty
// cityID clears the slot.
func (c *Controller) SelectCity(slot Slot, cityID string) error {
	idx, err := slot.index()
	if err != nil {
		return err
	}
	if cityID == "" {
		return c.clear(slot, idx)
	}

	loc, err := c.cities.Resolve(cityID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	s := &c.slots[idx]
	s.cityID = cityID
	s.loc = loc
	s.options = nil
	s.offset = 0
	s.err = nil
	c.startFetchLocked(idx)

	logger.WithFields(logrus.Fields{
		"slot": int(slot),
		"city": loc.Key(),
		"seq":  s.seq,
	}).Debug("city selected")
	return nil
}

// SetTimeOption activates id and re-fetches every occupied slot.
func (c *Controller) SetTimeOption(id timeopt.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if !isEnabled(c.optionsLocked(), id) {
		return fmt.Errorf("%w: %s", ErrOptionUnavailable, id)
	}

	c.active = id
	for idx := range c.slots {
		if c.slots[idx].cityID != "" {
			c.startFetchLocked(idx)
		}
	}
	return nil
}

// OnFetchComplete commits an observation fetched for request seq of slot.
// It reports false when the request has been superseded.
func (c *Controller) OnFetchComplete(slot Slot, seq uint64, obs weather.Observation) bool {
	idx, err := slot.index()
	if err != nil {
		return false
	}

	res, err := comfort.Compute(obs.DewPointC)
	if err != nil {
		return c.OnFetchError(slot, seq, err)
	}

	c.mu.Lock()
	s := &c.slots[idx]
	if c.closed || s.seq != seq {
		c.mu.Unlock()
		c.logStale(slot, seq)
		return false
	}
	s.pending = false
	s.err = nil
	c.state.set(slot, &CityResult{Observation: obs, Comfort: res})
	state := c.state.clone()
	c.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"slot":     int(slot),
		"city":     obs.City,
		"dewPoint": obs.DewPointC,
		"index":    res.Index,
	}).Debug("slot updated")

	c.renderer.Render(state)
	return true
}

// OnFetchError records a failed request for slot. Data already shown in the
// slot is kept. It reports false when the request has been superseded.
func (c *Controller) OnFetchError(slot Slot, seq uint64, err error) bool {
	idx, ierr := slot.index()
	if ierr != nil {
		return false
	}

	c.mu.Lock()
	s := &c.slots[idx]
	if c.closed || s.seq != seq {
		c.mu.Unlock()
		c.logStale(slot, seq)
		return false
	}
	s.pending = false
	s.err = err
	city := s.loc.Key()
	c.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"slot": int(slot),
		"city": city,
	}).WithError(err).Warn("slot fetch failed")

	c.renderer.ShowError(slot, err)
	return true
}

// RefreshTimeOptions re-resolves the options of every slot against the
// current time. If the active option is no longer available it falls back to
// Now and occupied slots are re-fetched. It reports whether that happened.
func (c *Controller) RefreshTimeOptions() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	now := c.now().UTC()
	for idx := range c.slots {
		s := &c.slots[idx]
		if s.resolved() {
			s.options = timeopt.Resolve(s.offset, now)
		}
	}
	return c.applyFallbackLocked(-1)
}

// Seq returns the sequence number of the latest request for slot.
func (c *Controller) Seq(slot Slot) uint64 {
	idx, err := slot.index()
	if err != nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots[idx].seq
}

// State returns a copy of the current pair state.
func (c *Controller) State() PairState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// ActiveOption returns the time option new fetches use.
func (c *Controller) ActiveOption() timeopt.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Wait blocks until no fetch is in flight or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	if c.inflight == 0 {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels in-flight fetches. Results arriving afterwards are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
}

func (c *Controller) clear(slot Slot, idx int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	s := &c.slots[idx]
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	*s = slotState{seq: s.seq}
	c.state.set(slot, nil)
	c.applyFallbackLocked(-1)
	state := c.state.clone()
	c.mu.Unlock()

	logger.WithFields(logrus.Fields{"slot": int(slot)}).Debug("slot cleared")
	c.renderer.Render(state)
	return nil
}

// startFetchLocked supersedes any request in flight for the slot and starts
// a new one. The UTC offset is looked up only if it is not known yet.
func (c *Controller) startFetchLocked(idx int) {
	s := &c.slots[idx]
	s.seq++
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	s.cancel = cancel
	s.pending = true

	c.inflight++
	go c.run(ctx, idx, s.seq, s.loc, c.active, !s.resolved())
}

func (c *Controller) run(ctx context.Context, idx int, seq uint64, loc weather.Location, opt timeopt.ID, needOffset bool) {
	defer c.finish()
	slot := Slot(idx + 1)

	if needOffset {
		octx, cancel := context.WithTimeout(ctx, c.timeout)
		offset, err := c.provider.FetchUTCOffsetHours(octx, loc)
		cancel()
		if err != nil {
			c.OnFetchError(slot, seq, classify(err))
			return
		}

		var ok bool
		opt, ok = c.applyOffset(idx, seq, offset)
		if !ok {
			c.logStale(slot, seq)
			return
		}
	}

	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	obs, err := c.provider.FetchObservation(fctx, loc, opt)
	cancel()
	if err != nil {
		c.OnFetchError(slot, seq, classify(err))
		return
	}
	c.OnFetchComplete(slot, seq, obs)
}

// applyOffset stores the slot's options and reconciles the active option. It
// returns the option the slot's observation must be fetched for.
func (c *Controller) applyOffset(idx int, seq uint64, offset int) (timeopt.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.slots[idx]
	if c.closed || s.seq != seq {
		return "", false
	}
	s.offset = offset
	s.options = timeopt.Resolve(offset, c.now().UTC())
	c.applyFallbackLocked(idx)
	return c.active, true
}

// applyFallbackLocked resets the active option to Now when it is no longer
// available and re-fetches occupied slots, except skip, that were requested
// under the old option.
func (c *Controller) applyFallbackLocked(skip int) bool {
	opts := c.reconciledLocked()
	if opts == nil {
		return false
	}

	next := timeopt.Fallback(c.active, opts)
	if next == c.active {
		return false
	}

	logger.WithFields(logrus.Fields{
		"from": c.active,
		"to":   next,
	}).Info("time option no longer available, falling back")

	c.active = next
	for idx := range c.slots {
		if idx != skip && c.slots[idx].cityID != "" {
			c.startFetchLocked(idx)
		}
	}
	return true
}

// reconciledLocked combines the options of the slots whose offset is known.
// It returns nil when no slot has resolved options.
func (c *Controller) reconciledLocked() []timeopt.Option {
	a, b := c.slots[0], c.slots[1]
	switch {
	case a.resolved() && b.resolved():
		return timeopt.Reconcile(a.options, b.options)
	case a.resolved():
		return a.options
	case b.resolved():
		return b.options
	default:
		return nil
	}
}

// optionsLocked is reconciledLocked with a default for when no city is known:
// Today at Noon needs a city to refer to, so it is off.
func (c *Controller) optionsLocked() []timeopt.Option {
	if opts := c.reconciledLocked(); opts != nil {
		return opts
	}
	opts := timeopt.Resolve(0, c.now().UTC())
	for i := range opts {
		if opts[i].ID == timeopt.TodayNoon {
			opts[i].Enabled = false
		}
	}
	return opts
}

func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight == 0 {
		close(c.idle)
		c.idle = make(chan struct{})
	}
}

func (c *Controller) logStale(slot Slot, seq uint64) {
	logger.WithFields(logrus.Fields{
		"slot": int(slot),
		"seq":  seq,
	}).Debug("discarding superseded fetch result")
}

// classify makes sure timeouts and cancellations surface as network errors.
func classify(err error) error {
	if errors.Is(err, weather.ErrNetwork) || errors.Is(err, weather.ErrCityNotFound) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", weather.ErrNetwork, err)
	}
	return err
}

func isEnabled(opts []timeopt.Option, id timeopt.ID) bool {
	for _, o := range opts {
		if o.ID == id {
			return o.Enabled
		}
	}
	return false
}
