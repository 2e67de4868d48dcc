package httpapi

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/humidity-comfort/internal/catalog"
	"github.com/i474232898/humidity-comfort/internal/charts"
	"github.com/i474232898/humidity-comfort/internal/comfort"
	"github.com/i474232898/humidity-comfort/internal/compare"
	"github.com/i474232898/humidity-comfort/internal/store"
	"github.com/i474232898/humidity-comfort/internal/timeopt"
	"github.com/i474232898/humidity-comfort/internal/weather"
)

var validate = validator.New()

// Deps are the collaborators the HTTP handlers need.
type Deps struct {
	Sessions *store.MemoryStore
	Catalog  *catalog.Catalog
	Provider weather.Provider
	// Options are passed to every new comparison.
	Options compare.Options
	// WaitTimeout caps how long ?wait=true blocks for pending fetches.
	WaitTimeout time.Duration
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.WaitTimeout <= 0 {
		deps.WaitTimeout = 3 * compare.DefaultFetchTimeout
	}
	h := &handlers{deps: deps}

	v1 := app.Group("/api/v1")

	v1.Get("/cities", h.listCities)
	v1.Get("/comfort", h.computeComfort)
	v1.Get("/comfort/bands", h.listBands)

	sessions := v1.Group("/sessions")
	sessions.Post("/", h.createSession)
	sessions.Get("/:id", h.getSession)
	sessions.Delete("/:id", h.deleteSession)
	sessions.Put("/:id/slots/:slot", h.selectCity)
	sessions.Delete("/:id/slots/:slot", h.clearSlot)
	sessions.Put("/:id/time-option", h.setTimeOption)
	sessions.Get("/:id/charts/:metric", h.getChart)
}

// ErrorHandler renders errors as {"error": true, "message": ...} with a status
// derived from the error.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, compare.ErrClosed),
		errors.Is(err, charts.ErrIncomplete):
		return fiber.StatusNotFound
	case errors.Is(err, compare.ErrInvalidSlot),
		errors.Is(err, weather.ErrInvalidLocation),
		errors.Is(err, timeopt.ErrUnknownOption),
		errors.Is(err, comfort.ErrInvalidInput),
		errors.Is(err, charts.ErrUnknownMetric):
		return fiber.StatusBadRequest
	case errors.Is(err, compare.ErrOptionUnavailable):
		return fiber.StatusConflict
	case errors.Is(err, store.ErrFull):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

type handlers struct {
	deps Deps
}

func (h *handlers) listCities(c *fiber.Ctx) error {
	return c.JSON(h.deps.Catalog.List())
}

func (h *handlers) computeComfort(c *fiber.Ctx) error {
	raw := c.Query("dewPoint")
	if raw == "" {
		return fiber.NewError(fiber.StatusBadRequest, "dewPoint query parameter is required")
	}
	dp, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "dewPoint must be a number in degrees Celsius")
	}

	res, err := comfort.Compute(dp)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"dewPointC": dp,
		"index":     res.Index,
		"label":     res.Label,
		"color":     res.Color,
	})
}

// bandView is a legend entry. UpperBoundC is null for the open-ended last band.
type bandView struct {
	UpperBoundC *float64 `json:"upperBoundC"`
	Label       string   `json:"label"`
	Color       string   `json:"color"`
}

func (h *handlers) listBands(c *fiber.Ctx) error {
	bands := comfort.Bands()
	out := make([]bandView, 0, len(bands))
	for _, b := range bands {
		v := bandView{Label: b.Label, Color: b.Color}
		if !math.IsInf(b.UpperBoundC, 1) {
			bound := b.UpperBoundC
			v.UpperBoundC = &bound
		}
		out = append(out, v)
	}
	return c.JSON(out)
}

type sessionResponse struct {
	ID string `json:"id"`
	compare.Snapshot
}

func (h *handlers) createSession(c *fiber.Ctx) error {
	sess := store.NewSession(h.deps.Provider, h.deps.Catalog, h.deps.Options)
	if err := h.deps.Sessions.Save(sess); err != nil {
		sess.Controller.Close()
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sessionResponse{ID: sess.ID, Snapshot: sess.Controller.Snapshot()})
}

func (h *handlers) getSession(c *fiber.Ctx) error {
	sess, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return err
	}

	if c.QueryBool("wait") {
		ctx, cancel := context.WithTimeout(c.UserContext(), h.deps.WaitTimeout)
		defer cancel()
		// On timeout the snapshot still reports the pending slots.
		_ = sess.Controller.Wait(ctx)
	}

	return c.JSON(sessionResponse{ID: sess.ID, Snapshot: sess.Controller.Snapshot()})
}

func (h *handlers) deleteSession(c *fiber.Ctx) error {
	if err := h.deps.Sessions.Delete(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// selectCityRequest is the body of PUT /sessions/:id/slots/:slot.
type selectCityRequest struct {
	City string `json:"city" validate:"required,max=120"`
}

func (h *handlers) selectCity(c *fiber.Ctx) error {
	sess, slot, err := h.sessionSlot(c)
	if err != nil {
		return err
	}

	var req selectCityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := sess.Controller.SelectCity(slot, req.City); err != nil {
		return err
	}
	return c.JSON(sessionResponse{ID: sess.ID, Snapshot: sess.Controller.Snapshot()})
}

func (h *handlers) clearSlot(c *fiber.Ctx) error {
	sess, slot, err := h.sessionSlot(c)
	if err != nil {
		return err
	}
	if err := sess.Controller.SelectCity(slot, ""); err != nil {
		return err
	}
	return c.JSON(sessionResponse{ID: sess.ID, Snapshot: sess.Controller.Snapshot()})
}

// timeOptionRequest is the body of PUT /sessions/:id/time-option.
type timeOptionRequest struct {
	Option string `json:"option" validate:"required,oneof=now yesterday_noon today_noon"`
}

func (h *handlers) setTimeOption(c *fiber.Ctx) error {
	sess, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return err
	}

	var req timeOptionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	id, err := timeopt.Parse(req.Option)
	if err != nil {
		return err
	}
	if err := sess.Controller.SetTimeOption(id); err != nil {
		return err
	}
	return c.JSON(sessionResponse{ID: sess.ID, Snapshot: sess.Controller.Snapshot()})
}

func (h *handlers) getChart(c *fiber.Ctx) error {
	sess, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return err
	}
	m, err := charts.ParseMetric(c.Params("metric"))
	if err != nil {
		return err
	}

	img, ok := sess.Charts.PNG(m)
	if !ok {
		return charts.ErrIncomplete
	}
	c.Type("png")
	return c.Send(img)
}

func (h *handlers) sessionSlot(c *fiber.Ctx) (*store.Session, compare.Slot, error) {
	sess, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return nil, 0, err
	}
	n, err := c.ParamsInt("slot")
	if err != nil {
		return nil, 0, fiber.NewError(fiber.StatusBadRequest, "slot must be 1 or 2")
	}
	slot, err := compare.ParseSlot(n)
	if err != nil {
		return nil, 0, err
	}
	return sess, slot, nil
}
