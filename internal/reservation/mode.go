package reservation

import "github.com/iliyamo/theater-seat-reservation/internal/layout"

// Mode is what a booking request consumes: either a ticket count or a list
// of seats.  The two variants are TicketCount and Seats.
type Mode interface {
	isMode()
}

// TicketCount books n unassigned tickets on a ticket event.
type TicketCount int

// Seats books specific seats on a seated event.
type Seats []layout.SeatKey

func (TicketCount) isMode() {}
func (Seats) isMode()       {}
