package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theater-seat-reservation/internal/apperror"
    "github.com/iliyamo/theater-seat-reservation/internal/layout"
    "github.com/iliyamo/theater-seat-reservation/internal/model"
    "github.com/iliyamo/theater-seat-reservation/internal/reservation"
)

// BookingService is the part of reservation.Engine the booking handlers use.
type BookingService interface {
    CreateBooking(ctx context.Context, eventID, userID uint64, mode reservation.Mode) (*model.Booking, error)
    CancelBooking(ctx context.Context, bookingID uint64) error
    CancelBookingForUser(ctx context.Context, bookingID, userID uint64) error
    GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error)
    GetBookingForUser(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)
    ListBookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
    ListBookingsByEvent(ctx context.Context, eventID uint64) ([]model.Booking, error)
}

// BookingHandler serves the customer booking routes and the admin
// booking routes.  Ownership checks happen in the engine.
type BookingHandler struct {
    Bookings BookingService
}

func NewBookingHandler(b BookingService) *BookingHandler {
    if b == nil {
        panic("nil booking service passed to NewBookingHandler")
    }
    return &BookingHandler{Bookings: b}
}

type seatRequest struct {
    Section    string `json:"section" validate:"omitempty,oneof=main balcony"`
    Row        string `json:"row" validate:"required,max=32"`
    SeatNumber int    `json:"seat_number" validate:"min=1"`
}

// createBookingRequest carries exactly one of the two booking modes.
type createBookingRequest struct {
    NumberOfTickets *int          `json:"number_of_tickets" validate:"omitempty,min=1"`
    Seats           []seatRequest `json:"seats" validate:"omitempty,max=50,dive"`
}

func (r createBookingRequest) mode() (reservation.Mode, error) {
    switch {
    case r.NumberOfTickets != nil && r.Seats != nil:
        return nil, apperror.Invalidf("give either number_of_tickets or seats, not both")
    case r.NumberOfTickets != nil:
        return reservation.TicketCount(*r.NumberOfTickets), nil
    case len(r.Seats) > 0:
        seats := make(reservation.Seats, len(r.Seats))
        for i, s := range r.Seats {
            seats[i] = layout.SeatKey{Section: layout.Section(s.Section), Row: s.Row, Number: s.SeatNumber}
        }
        return seats, nil
    }
    return nil, apperror.Invalidf("number_of_tickets or seats is required")
}

// Create handles POST /v1/events/:id/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
    uid, err := currentUser(c)
    if err != nil {
        return err
    }
    eventID, err := pathID(c, "id")
    if err != nil {
        return err
    }
    var req createBookingRequest
    if err := bind(c, &req); err != nil {
        return err
    }
    mode, err := req.mode()
    if err != nil {
        return err
    }
    b, err := h.Bookings.CreateBooking(c.Request().Context(), eventID, uid, mode)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusCreated, b)
}

// ListMine handles GET /v1/bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
    uid, err := currentUser(c)
    if err != nil {
        return err
    }
    list, err := h.Bookings.ListBookingsByUser(c.Request().Context(), uid)
    if err != nil {
        return err
    }
    if list == nil {
        list = []model.Booking{}
    }
    return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// GetMine handles GET /v1/bookings/:id.  Other users' bookings are 404.
func (h *BookingHandler) GetMine(c echo.Context) error {
    uid, err := currentUser(c)
    if err != nil {
        return err
    }
    id, err := pathID(c, "id")
    if err != nil {
        return err
    }
    b, err := h.Bookings.GetBookingForUser(c.Request().Context(), id, uid)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, b)
}

// CancelMine handles DELETE /v1/bookings/:id.
func (h *BookingHandler) CancelMine(c echo.Context) error {
    uid, err := currentUser(c)
    if err != nil {
        return err
    }
    id, err := pathID(c, "id")
    if err != nil {
        return err
    }
    if err := h.Bookings.CancelBookingForUser(c.Request().Context(), id, uid); err != nil {
        return err
    }
    return c.NoContent(http.StatusNoContent)
}

// AdminGet handles GET /v1/admin/bookings/:id.
func (h *BookingHandler) AdminGet(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return err
    }
    b, err := h.Bookings.GetBooking(c.Request().Context(), id)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, b)
}

// AdminCancel handles DELETE /v1/admin/bookings/:id without an ownership
// check.
func (h *BookingHandler) AdminCancel(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return err
    }
    if err := h.Bookings.CancelBooking(c.Request().Context(), id); err != nil {
        return err
    }
    return c.NoContent(http.StatusNoContent)
}

// ListForEvent handles GET /v1/admin/events/:id/bookings.
func (h *BookingHandler) ListForEvent(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return err
    }
    list, err := h.Bookings.ListBookingsByEvent(c.Request().Context(), id)
    if err != nil {
        return err
    }
    if list == nil {
        list = []model.Booking{}
    }
    return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}
