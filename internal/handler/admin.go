package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theater-seat-reservation/internal/apperror"
    "github.com/iliyamo/theater-seat-reservation/internal/availability"
    "github.com/iliyamo/theater-seat-reservation/internal/layout"
    "github.com/iliyamo/theater-seat-reservation/internal/model"
)

// TheaterWriter persists theaters.
type TheaterWriter interface {
    TheaterReader
    Create(ctx context.Context, th *model.Theater) error
    Update(ctx context.Context, th *model.Theater) error
}

// EventWriter persists events.
type EventWriter interface {
    EventReader
    Create(ctx context.Context, ev *model.Event) error
    UpdateSeating(ctx context.Context, id uint64, pricing []model.SeatPrice, cfg []model.SeatConfig) error
}

// Purger drops cached browse responses after a write.
type Purger interface {
    Purge(ctx context.Context) error
}

// AdminHandler serves theater and event administration for the OWNER and
// ADMIN roles.
type AdminHandler struct {
    Theaters TheaterWriter
    Events   EventWriter
    Cache    Purger
}

func NewAdminHandler(t TheaterWriter, e EventWriter, cache Purger) *AdminHandler {
    if t == nil || e == nil {
        panic("nil repository passed to NewAdminHandler")
    }
    return &AdminHandler{Theaters: t, Events: e, Cache: cache}
}

type theaterRequest struct {
    Name        string             `json:"name" validate:"required,max=200"`
    Description string             `json:"description" validate:"max=2000"`
    IsActive    *bool              `json:"is_active"`
    Layout      layout.Layout      `json:"layout"`
    SeatConfig  []model.SeatConfig `json:"seat_config"`
}

func (r theaterRequest) theater(ownerID uint64) *model.Theater {
    active := true
    if r.IsActive != nil {
        active = *r.IsActive
    }
    return &model.Theater{
        OwnerID:     ownerID,
        Name:        r.Name,
        Description: r.Description,
        IsActive:    active,
        Layout:      r.Layout,
        SeatConfig:  r.SeatConfig,
    }
}

// CreateTheater handles POST /v1/admin/theaters.
func (h *AdminHandler) CreateTheater(c echo.Context) error {
    uid, err := currentUser(c)
    if err != nil {
        return err
    }
    var req theaterRequest
    if err := bind(c, &req); err != nil {
        return err
    }
    th := req.theater(uid)
    if err := availability.NormalizeTheater(th); err != nil {
        return err
    }
    if err := h.Theaters.Create(c.Request().Context(), th); err != nil {
        return err
    }
    h.purge(c)
    return c.JSON(http.StatusCreated, th)
}

// UpdateTheater handles PUT /v1/admin/theaters/:id.  The owner is kept.
func (h *AdminHandler) UpdateTheater(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return err
    }
    var req theaterRequest
    if err := bind(c, &req); err != nil {
        return err
    }
    cur, err := h.Theaters.GetByID(c.Request().Context(), id)
    if err != nil {
        return err
    }
    th := req.theater(cur.OwnerID)
    th.ID = id
    if err := availability.NormalizeTheater(th); err != nil {
        return err
    }
    if err := h.Theaters.Update(c.Request().Context(), th); err != nil {
        return err
    }
    h.purge(c)
    return c.JSON(http.StatusOK, th)
}

type eventRequest struct {
    Title             string             `json:"title" validate:"required,max=200"`
    Description       string             `json:"description" validate:"max=2000"`
    Date              time.Time          `json:"date" validate:"required"`
    Location          string             `json:"location" validate:"max=200"`
    Category          string             `json:"category" validate:"max=64"`
    TicketPriceCents  int64              `json:"ticket_price_cents" validate:"min=0"`
    TotalTickets      int                `json:"total_tickets" validate:"min=0"`
    HasTheaterSeating bool               `json:"has_theater_seating"`
    TheaterID         *uint64            `json:"theater_id" validate:"required_if=HasTheaterSeating true"`
    SeatPricing       []model.SeatPrice  `json:"seat_pricing"`
    SeatConfig        []model.SeatConfig `json:"seat_config"`
}

// CreateEvent handles POST /v1/admin/events.  Ticket events need a
// positive total; seated events take their capacity from the theater.
func (h *AdminHandler) CreateEvent(c echo.Context) error {
    uid, err := currentUser(c)
    if err != nil {
        return err
    }
    var req eventRequest
    if err := bind(c, &req); err != nil {
        return err
    }
    ev := &model.Event{
        OwnerID:           uid,
        Title:             req.Title,
        Description:       req.Description,
        Date:              req.Date.UTC(),
        Location:          req.Location,
        Category:          req.Category,
        TicketPriceCents:  req.TicketPriceCents,
        TotalTickets:      req.TotalTickets,
        Status:            model.EventActive,
        HasTheaterSeating: req.HasTheaterSeating,
    }
    if req.HasTheaterSeating {
        th, err := h.Theaters.GetByID(c.Request().Context(), *req.TheaterID)
        if err != nil {
            return err
        }
        if err := availability.ValidateEventSeating(th, req.SeatPricing, req.SeatConfig); err != nil {
            return err
        }
        ev.TheaterID = req.TheaterID
        ev.SeatPricing = req.SeatPricing
        ev.SeatConfig = req.SeatConfig
    } else {
        if req.TotalTickets < 1 {
            return apperror.Invalidf("total_tickets must be at least 1")
        }
        if len(req.SeatPricing) > 0 || len(req.SeatConfig) > 0 {
            return apperror.Invalidf("seat pricing and seat config need theater seating")
        }
    }
    if err := h.Events.Create(c.Request().Context(), ev); err != nil {
        return err
    }
    h.purge(c)
    return c.JSON(http.StatusCreated, ev)
}

type eventSeatingRequest struct {
    SeatPricing []model.SeatPrice  `json:"seat_pricing"`
    SeatConfig  []model.SeatConfig `json:"seat_config"`
}

// UpdateEventSeating handles PUT /v1/admin/events/:id/seating.  It
// replaces pricing and seat overrides; booked seats stay booked.
func (h *AdminHandler) UpdateEventSeating(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return err
    }
    var req eventSeatingRequest
    if err := bind(c, &req); err != nil {
        return err
    }
    ctx := c.Request().Context()
    ev, err := h.Events.GetByID(ctx, id)
    if err != nil {
        return err
    }
    if !ev.HasTheaterSeating || ev.TheaterID == nil {
        return apperror.Invalidf("event %d has no theater seating", id)
    }
    th, err := h.Theaters.GetByID(ctx, *ev.TheaterID)
    if err != nil {
        return err
    }
    if err := availability.ValidateEventSeating(th, req.SeatPricing, req.SeatConfig); err != nil {
        return err
    }
    if err := h.Events.UpdateSeating(ctx, id, req.SeatPricing, req.SeatConfig); err != nil {
        return err
    }
    h.purge(c)
    ev.SeatPricing = req.SeatPricing
    ev.SeatConfig = req.SeatConfig
    return c.JSON(http.StatusOK, ev)
}

func (h *AdminHandler) purge(c echo.Context) {
    if h.Cache == nil {
        return
    }
    if err := h.Cache.Purge(c.Request().Context()); err != nil {
        c.Logger().Warnf("purge response cache: %v", err)
    }
}
