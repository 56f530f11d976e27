// Package queue carries booking lifecycle messages over RabbitMQ: a
// publisher the reservation engine notifies after commit, and a consumer
// that keeps the booking audit log and fans changes out to live clients.
package queue

import (
    "time"

    "github.com/iliyamo/theater-seat-reservation/internal/model"
)

const (
    // ExchangeName is the durable topic exchange booking messages go to.
    ExchangeName = "bookings"
    ExchangeKind = "topic"

    RoutingConfirmed = "booking.confirmed"
    RoutingCancelled = "booking.cancelled"
)

// BookingMessage is the body of booking.confirmed and booking.cancelled.
// It carries enough to log or notify without querying the database.
type BookingMessage struct {
    Type            string    `json:"type"`
    BookingID       uint64    `json:"booking_id"`
    Reference       string    `json:"reference"`
    EventID         uint64    `json:"event_id"`
    UserID          uint64    `json:"user_id"`
    Seats           []string  `json:"seats,omitempty"`
    NumberOfTickets int       `json:"number_of_tickets"`
    TotalPriceCents int64     `json:"total_price_cents"`
    OccurredAt      time.Time `json:"occurred_at"`
}

// NewBookingMessage builds the message for routing key typ.  Seats are
// rendered as their storage keys, e.g. main-A-1.
func NewBookingMessage(typ string, b *model.Booking, at time.Time) BookingMessage {
    m := BookingMessage{
        Type:            typ,
        BookingID:       b.ID,
        Reference:       b.Reference,
        EventID:         b.EventID,
        UserID:          b.UserID,
        NumberOfTickets: b.NumberOfTickets,
        TotalPriceCents: b.TotalPriceCents,
        OccurredAt:      at.UTC(),
    }
    for _, s := range b.SelectedSeats {
        m.Seats = append(m.Seats, s.Key().String())
    }
    return m
}
