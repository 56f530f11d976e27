package model

import (
	"time"

	"github.com/iliyamo/theater-seat-reservation/internal/layout"
)

// BookingStatus is the lifecycle state of a booking.  A booking is created
// confirmed and may move to cancelled, which is terminal.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking records one successful reservation.  Ticket bookings carry
// NumberOfTickets; seated bookings carry SelectedSeats and have
// NumberOfTickets equal to the seat count.
//
// Fields:
//
//	ID                – primary key identifier.
//	Reference         – public booking reference (UUID).
//	EventID           – booked event.
//	UserID            – owner of the booking.
//	Status            – confirmed or cancelled.
//	HasTheaterSeating – true for seat bookings.
//	NumberOfTickets   – tickets consumed.
//	SelectedSeats     – seats with resolved category and price.
//	TotalPriceCents   – sum charged.
//	CancelledAt       – set when the booking was cancelled.
type Booking struct {
	ID                uint64         `json:"id"`
	Reference         string         `json:"reference"`
	EventID           uint64         `json:"event_id"`
	UserID            uint64         `json:"user_id"`
	Status            BookingStatus  `json:"status"`
	HasTheaterSeating bool           `json:"has_theater_seating"`
	NumberOfTickets   int            `json:"number_of_tickets"`
	SelectedSeats     []SelectedSeat `json:"selected_seats,omitempty"`
	TotalPriceCents   int64          `json:"total_price_cents"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	CancelledAt       *time.Time     `json:"cancelled_at,omitempty"`
}

// SelectedSeat is a seat held by a booking together with the category and
// price it resolved to at booking time.
type SelectedSeat struct {
	Section    layout.Section  `json:"section"`
	Row        string          `json:"row"`
	SeatNumber int             `json:"seat_number"`
	SeatType   layout.SeatType `json:"seat_type"`
	PriceCents int64           `json:"price_cents"`
}

func (s SelectedSeat) Key() layout.SeatKey {
	return layout.SeatKey{Section: s.Section, Row: s.Row, Number: s.SeatNumber}
}

// SeatKeys returns the keys of the booking's selected seats.
func (b *Booking) SeatKeys() []layout.SeatKey {
	out := make([]layout.SeatKey, len(b.SelectedSeats))
	for i, s := range b.SelectedSeats {
		out[i] = s.Key()
	}
	return out
}
