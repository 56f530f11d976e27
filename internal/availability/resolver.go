// Package availability projects a theater's layout and seat configuration,
// combined with an event's overrides, pricing and booked seats, into the
// list of seats a customer can book against.
package availability

import (
	"github.com/iliyamo/theater-seat-reservation/internal/layout"
	"github.com/iliyamo/theater-seat-reservation/internal/model"
)

// Seat is one entry of the bookable seat list.
type Seat struct {
	Section    layout.Section  `json:"section"`
	Row        string          `json:"row"`
	SeatNumber int             `json:"seat_number"`
	SeatType   layout.SeatType `json:"seat_type"`
	IsActive   bool            `json:"is_active"`
	IsBooked   bool            `json:"is_booked"`
	PriceCents int64           `json:"price_cents"`
}

func (s Seat) Key() layout.SeatKey {
	return layout.SeatKey{Section: s.Section, Row: s.Row, Number: s.SeatNumber}
}

// TheaterSummary is the theater header returned next to the seat list.
type TheaterSummary struct {
	ID                 uint64               `json:"id"`
	Name               string               `json:"name"`
	StagePosition      layout.StagePosition `json:"stage_position"`
	HasBalcony         bool                 `json:"has_balcony"`
	MainRows           []string             `json:"main_rows"`
	MainSeatsPerRow    int                  `json:"main_seats_per_row"`
	BalconyRows        []string             `json:"balcony_rows,omitempty"`
	BalconySeatsPerRow int                  `json:"balcony_seats_per_row,omitempty"`
	TotalSeats         int                  `json:"total_seats"`
	VIPSeats           int                  `json:"vip_seats"`
	PremiumSeats       int                  `json:"premium_seats"`
}

// View is the full availability answer for one event.
type View struct {
	EventID        uint64            `json:"event_id"`
	Theater        TheaterSummary    `json:"theater"`
	SeatPricing    []model.SeatPrice `json:"seat_pricing"`
	Seats          []Seat            `json:"seats"`
	BookedCount    int               `json:"booked_count"`
	AvailableCount int               `json:"available_count"`
}

// Resolver answers per-seat category, active and price questions for one
// theater/event pair.  Build one per request; it snapshots its inputs.
type Resolver struct {
	layout   *layout.Layout
	merged   map[layout.SeatKey]model.SeatConfig
	pricing  map[layout.SeatType]int64
	fallback int64
}

// NewResolver merges the theater's seat config with the event's.  Event
// entries replace theater entries with the same key.  ev may be nil, which
// yields the theater-level view with zero prices.
func NewResolver(th *model.Theater, ev *model.Event) *Resolver {
	r := &Resolver{
		layout:  &th.Layout,
		merged:  make(map[layout.SeatKey]model.SeatConfig, len(th.SeatConfig)),
		pricing: map[layout.SeatType]int64{},
	}
	for _, c := range th.SeatConfig {
		r.merged[c.Key()] = c
	}
	if ev == nil {
		return r
	}
	for _, c := range ev.SeatConfig {
		r.merged[c.Key()] = c
	}
	for _, p := range ev.SeatPricing {
		if _, dup := r.pricing[p.SeatType]; !dup {
			r.pricing[p.SeatType] = p.PriceCents
		}
	}
	r.fallback = ev.TicketPriceCents
	return r
}

// SeatType resolves the category of k: merged config first, then the
// layout's seat categories, then standard.
func (r *Resolver) SeatType(k layout.SeatKey) layout.SeatType {
	if c, ok := r.merged[k]; ok && c.SeatType != "" {
		return c.SeatType
	}
	return r.layout.Category(k)
}

// IsActive is false for disabled seats and for seats explicitly configured
// inactive.
func (r *Resolver) IsActive(k layout.SeatKey) bool {
	if r.layout.IsDisabled(k) {
		return false
	}
	if c, ok := r.merged[k]; ok && c.IsActive != nil && !*c.IsActive {
		return false
	}
	return true
}

// Price returns the event price for category t, falling back to the
// ticket price.
func (r *Resolver) Price(t layout.SeatType) int64 {
	if p, ok := r.pricing[t]; ok {
		return p
	}
	return r.fallback
}

// Seat resolves one seat.
func (r *Resolver) Seat(k layout.SeatKey, booked bool) Seat {
	t := r.SeatType(k)
	return Seat{
		Section:    k.Section,
		Row:        k.Row,
		SeatNumber: k.Number,
		SeatType:   t,
		IsActive:   r.IsActive(k),
		IsBooked:   booked,
		PriceCents: r.Price(t),
	}
}

// Bookable reports whether k exists, is not removed and is active.
func (r *Resolver) Bookable(k layout.SeatKey) bool {
	return r.layout.Contains(k) && !r.layout.IsRemoved(k) && r.IsActive(k)
}

// Capacity counts the seats of ev that can ever be sold: present in the
// layout, not removed and active once event overrides are applied.  A nil
// ev counts the theater alone.
func Capacity(th *model.Theater, ev *model.Event) int {
	r := NewResolver(th, ev)
	n := 0
	for _, sec := range th.Layout.Sections() {
		for _, k := range th.Layout.Seats(sec) {
			if !th.Layout.IsRemoved(k) && r.IsActive(k) {
				n++
			}
		}
	}
	return n
}

// Remaining counts the bookable seats of ev that no booking holds.  It is
// the AvailableCount of the view Resolve would build.
func Remaining(th *model.Theater, ev *model.Event) int {
	r := NewResolver(th, ev)
	booked := make(map[layout.SeatKey]struct{}, len(ev.BookedSeats))
	for _, b := range ev.BookedSeats {
		booked[b.Key] = struct{}{}
	}
	n := 0
	for _, sec := range th.Layout.Sections() {
		for _, k := range th.Layout.Seats(sec) {
			if th.Layout.IsRemoved(k) || !r.IsActive(k) {
				continue
			}
			if _, ok := booked[k]; !ok {
				n++
			}
		}
	}
	return n
}

// Resolve builds the availability view of ev on th.  Main floor seats come
// first, then balcony seats; removed seats are skipped.
func Resolve(th *model.Theater, ev *model.Event) *View {
	r := NewResolver(th, ev)
	booked := make(map[layout.SeatKey]struct{}, len(ev.BookedSeats))
	for _, b := range ev.BookedSeats {
		booked[b.Key] = struct{}{}
	}

	v := &View{
		EventID:     ev.ID,
		Theater:     Summarize(th),
		SeatPricing: append([]model.SeatPrice{}, ev.SeatPricing...),
		Seats:       make([]Seat, 0, th.Layout.GeometrySeatCount()),
	}
	for _, sec := range th.Layout.Sections() {
		for _, k := range th.Layout.Seats(sec) {
			if th.Layout.IsRemoved(k) {
				continue
			}
			_, isBooked := booked[k]
			s := r.Seat(k, isBooked)
			v.Seats = append(v.Seats, s)
			if s.IsBooked {
				v.BookedCount++
			} else if s.IsActive {
				v.AvailableCount++
			}
		}
	}
	return v
}

// Summarize computes the theater header and its denormalized counts from
// the layout and the theater-level seat config.
func Summarize(th *model.Theater) TheaterSummary {
	l := &th.Layout
	s := TheaterSummary{
		ID:              th.ID,
		Name:            th.Name,
		StagePosition:   l.Stage.Position,
		HasBalcony:      l.HasBalcony,
		MainRows:        l.OrderedRows(layout.Main),
		MainSeatsPerRow: l.MainFloor.SeatsPerRow,
		TotalSeats:      l.ActiveSeatCount(),
	}
	if l.HasBalcony {
		s.BalconyRows = l.OrderedRows(layout.Balcony)
		s.BalconySeatsPerRow = l.Balcony.SeatsPerRow
	}
	r := NewResolver(th, nil)
	for _, sec := range l.Sections() {
		for _, k := range l.Seats(sec) {
			if l.IsRemoved(k) || l.IsDisabled(k) {
				continue
			}
			switch r.SeatType(k) {
			case layout.VIP:
				s.VIPSeats++
			case layout.Premium:
				s.PremiumSeats++
			}
		}
	}
	return s
}
