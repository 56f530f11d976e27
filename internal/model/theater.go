package model

import (
	"time"

	"github.com/iliyamo/theater-seat-reservation/internal/layout"
)

// Theater is a venue with a fixed seat map.  The layout document holds the
// geometry; SeatConfig holds explicit per-seat overrides that take
// precedence over the layout's seat categories.
//
// Fields:
//
//	ID           – primary key identifier.
//	OwnerID      – user who administers the theater.
//	Name         – display name.
//	Description  – optional free text.
//	IsActive     – inactive theaters cannot host new events.
//	Layout       – geometry document (theaters.layout JSON column).
//	SeatConfig   – per-seat overrides (theater_seat_config rows).
//	TotalSeats   – active seat count, recomputed on every geometry change.
//	VIPSeats     – active seats resolving to the vip category.
//	PremiumSeats – active seats resolving to the premium category.
type Theater struct {
	ID           uint64        `json:"id"`
	OwnerID      uint64        `json:"owner_id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	IsActive     bool          `json:"is_active"`
	Layout       layout.Layout `json:"layout"`
	SeatConfig   []SeatConfig  `json:"seat_config"`
	TotalSeats   int           `json:"total_seats"`
	VIPSeats     int           `json:"vip_seats"`
	PremiumSeats int           `json:"premium_seats"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// SeatConfig overrides the category or active flag of one seat.  A nil
// IsActive leaves the flag untouched; an empty SeatType leaves the category
// untouched.
type SeatConfig struct {
	Section    layout.Section  `json:"section"`
	Row        string          `json:"row"`
	SeatNumber int             `json:"seat_number"`
	SeatType   layout.SeatType `json:"seat_type,omitempty"`
	IsActive   *bool           `json:"is_active,omitempty"`
}

// Key returns the seat key the override applies to.  An empty section
// resolves to main.
func (c SeatConfig) Key() layout.SeatKey {
	sec := c.Section
	if sec == "" {
		sec = layout.Main
	}
	return layout.SeatKey{Section: sec, Row: c.Row, Number: c.SeatNumber}
}
