package model

import (
	"time"

	"github.com/iliyamo/theater-seat-reservation/internal/layout"
)

// EventStatus is the publication state of an event.
type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

// Event is something tickets are sold for.  Ticket events only track a
// counter; seated events (HasTheaterSeating) reference a theater and track
// every consumed seat in BookedSeats.
//
// Fields:
//
//	ID                – primary key identifier.
//	OwnerID           – organizer who created the event.
//	Title, Description, Location, Category – descriptive fields.
//	Date              – when the event takes place (UTC).
//	TicketPriceCents  – price per ticket, and fallback seat price.
//	TotalTickets      – capacity.  For seated events this is the active seat count.
//	RemainingTickets  – tickets still for sale; mutated only by the reservation engine.
//	Status            – active, cancelled or completed.
//	HasTheaterSeating – true when bookings must select seats.
//	TheaterID         – referenced theater for seated events.
//	SeatPricing       – price per seat category.
//	SeatConfig        – event-level overrides layered over the theater's.
//	BookedSeats       – consumed seats with the owning booking id.
type Event struct {
	ID                uint64       `json:"id"`
	OwnerID           uint64       `json:"owner_id"`
	Title             string       `json:"title"`
	Description       string       `json:"description,omitempty"`
	Date              time.Time    `json:"date"`
	Location          string       `json:"location"`
	Category          string       `json:"category"`
	TicketPriceCents  int64        `json:"ticket_price_cents"`
	TotalTickets      int          `json:"total_tickets"`
	RemainingTickets  int          `json:"remaining_tickets"`
	Status            EventStatus  `json:"status"`
	HasTheaterSeating bool         `json:"has_theater_seating"`
	TheaterID         *uint64      `json:"theater_id,omitempty"`
	SeatPricing       []SeatPrice  `json:"seat_pricing,omitempty"`
	SeatConfig        []SeatConfig `json:"seat_config,omitempty"`
	BookedSeats       []BookedSeat `json:"-"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// SeatPrice is the price of one seat category for an event.
type SeatPrice struct {
	SeatType   layout.SeatType `json:"seat_type"`
	PriceCents int64           `json:"price_cents"`
}

// BookedSeat is one consumed seat of a seated event.
type BookedSeat struct {
	Key       layout.SeatKey
	BookingID uint64
}
