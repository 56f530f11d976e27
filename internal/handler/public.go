package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theater-seat-reservation/internal/apperror"
    "github.com/iliyamo/theater-seat-reservation/internal/availability"
    "github.com/iliyamo/theater-seat-reservation/internal/model"
    "github.com/iliyamo/theater-seat-reservation/internal/repository"
)

// AvailabilityService answers seat map queries.
type AvailabilityService interface {
    GetAvailability(ctx context.Context, eventID uint64) (*availability.View, error)
}

// TheaterReader is the read side of the theater repository.
type TheaterReader interface {
    GetByID(ctx context.Context, id uint64) (*model.Theater, error)
    List(ctx context.Context) ([]*model.Theater, error)
}

// EventReader is the read side of the event repository.
type EventReader interface {
    GetByID(ctx context.Context, id uint64) (*model.Event, error)
    List(ctx context.Context, f repository.EventFilter) ([]*model.Event, error)
}

// PublicHandler serves the unauthenticated browse routes.
type PublicHandler struct {
    AvailabilitySvc AvailabilityService
    Theaters     TheaterReader
    Events       EventReader
}

func NewPublicHandler(a AvailabilityService, t TheaterReader, e EventReader) *PublicHandler {
    if a == nil || t == nil || e == nil {
        panic("nil dependency passed to NewPublicHandler")
    }
    return &PublicHandler{AvailabilitySvc: a, Theaters: t, Events: e}
}

// Availability handles GET /v1/events/:id/availability.  The answer is
// always computed from the current bookings.
func (h *PublicHandler) Availability(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return err
    }
    v, err := h.AvailabilitySvc.GetAvailability(c.Request().Context(), id)
    if err != nil {
        return err
    }
    c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
    return c.JSON(http.StatusOK, v)
}

// theaterSummary is the public list item for a theater.
type theaterSummary struct {
    ID           uint64 `json:"id"`
    Name         string `json:"name"`
    Description  string `json:"description,omitempty"`
    TotalSeats   int    `json:"total_seats"`
    VIPSeats     int    `json:"vip_seats"`
    PremiumSeats int    `json:"premium_seats"`
    HasBalcony   bool   `json:"has_balcony"`
}

// ListTheaters handles GET /v1/theaters.  Inactive theaters are hidden.
func (h *PublicHandler) ListTheaters(c echo.Context) error {
    list, err := h.Theaters.List(c.Request().Context())
    if err != nil {
        return err
    }
    out := make([]theaterSummary, 0, len(list))
    for _, th := range list {
        if !th.IsActive {
            continue
        }
        out = append(out, theaterSummary{
            ID: th.ID, Name: th.Name, Description: th.Description,
            TotalSeats: th.TotalSeats, VIPSeats: th.VIPSeats, PremiumSeats: th.PremiumSeats,
            HasBalcony: th.Layout.HasBalcony,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"theaters": out})
}

// GetTheater handles GET /v1/theaters/:id and returns the full layout.
func (h *PublicHandler) GetTheater(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return err
    }
    th, err := h.Theaters.GetByID(c.Request().Context(), id)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, th)
}

// ListEvents handles GET /v1/events?category=&from=&to=&q=.  Dates are
// RFC 3339 or YYYY-MM-DD.
func (h *PublicHandler) ListEvents(c echo.Context) error {
    f := repository.EventFilter{Category: c.QueryParam("category"), Query: c.QueryParam("q")}
    var err error
    if f.From, err = parseDateParam(c.QueryParam("from"), false); err != nil {
        return apperror.Invalidf("invalid from date")
    }
    if f.To, err = parseDateParam(c.QueryParam("to"), true); err != nil {
        return apperror.Invalidf("invalid to date")
    }
    if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
        return apperror.Invalidf("to must not be before from")
    }
    list, err := h.Events.List(c.Request().Context(), f)
    if err != nil {
        return err
    }
    if list == nil {
        list = []*model.Event{}
    }
    return c.JSON(http.StatusOK, echo.Map{"events": list})
}

// GetEvent handles GET /v1/events/:id.
func (h *PublicHandler) GetEvent(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return err
    }
    ev, err := h.Events.GetByID(c.Request().Context(), id)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, ev)
}

// parseDateParam accepts RFC 3339 or a bare date.  A bare "to" date covers
// the whole day.
func parseDateParam(s string, endOfDay bool) (time.Time, error) {
    if s == "" {
        return time.Time{}, nil
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t.UTC(), nil
    }
    t, err := time.Parse(time.DateOnly, s)
    if err != nil {
        return time.Time{}, err
    }
    if endOfDay {
        t = t.Add(24*time.Hour - time.Second)
    }
    return t, nil
}
