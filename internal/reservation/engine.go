// Package reservation is the transactional core: it is the only component
// that creates or cancels bookings and mutates an event's remaining tickets
// and booked seats.
package reservation

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/theater-seat-reservation/internal/apperror"
	"github.com/iliyamo/theater-seat-reservation/internal/availability"
	"github.com/iliyamo/theater-seat-reservation/internal/layout"
	"github.com/iliyamo/theater-seat-reservation/internal/model"
)

// Logger is the subset of the gommon/echo logger the engine writes to.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Engine creates, cancels and reads bookings.  Every state change runs as
// one storage transaction that locks the event first, so concurrent
// requests for the same seat resolve first-committer-wins.
type Engine struct {
	store  Store
	notify Notifier
	log    Logger
	now    func() time.Time
	newRef func() string
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notify = n } }

func WithLogger(l Logger) Option { return func(e *Engine) { e.log = l } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		notify: nopNotifier{},
		log:    log.New("reservation"),
		now:    func() time.Time { return time.Now().UTC() },
		newRef: uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// CreateBooking reserves mode on the event for userID and returns the
// confirmed booking.
func (e *Engine) CreateBooking(ctx context.Context, eventID, userID uint64, mode Mode) (*model.Booking, error) {
	var (
		b   *model.Booking
		err error
	)
	switch m := mode.(type) {
	case TicketCount:
		b, err = e.createTickets(ctx, eventID, userID, int(m))
	case Seats:
		b, err = e.createSeats(ctx, eventID, userID, m)
	default:
		return nil, apperror.Invalidf("unsupported booking mode %T", mode)
	}
	if err != nil {
		e.logFailure("create booking", eventID, err)
		return nil, err
	}
	e.log.Infof("booking %d confirmed: event=%d user=%d tickets=%d total=%d", b.ID, b.EventID, b.UserID, b.NumberOfTickets, b.TotalPriceCents)
	e.notify.BookingConfirmed(ctx, b)
	return b, nil
}

func (e *Engine) createTickets(ctx context.Context, eventID, userID uint64, n int) (*model.Booking, error) {
	if n < 1 {
		return nil, apperror.Invalidf("number of tickets must be at least 1")
	}
	b := e.newBooking(eventID, userID)
	b.NumberOfTickets = n

	err := e.store.InTx(ctx, func(tx Tx) error {
		ev, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := checkOpen(ev); err != nil {
			return err
		}
		if ev.HasTheaterSeating {
			return apperror.Invalidf("event %d requires seat selection", eventID)
		}
		if ev.RemainingTickets < n {
			return apperror.NotEnoughTickets(ev.RemainingTickets)
		}
		b.TotalPriceCents = int64(n) * ev.TicketPriceCents
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		return tx.SetRemainingTickets(ctx, ev.ID, ev.RemainingTickets-n)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (e *Engine) createSeats(ctx context.Context, eventID, userID uint64, seats Seats) (*model.Booking, error) {
	keys, err := normalizeSeats(seats)
	if err != nil {
		return nil, err
	}
	b := e.newBooking(eventID, userID)
	b.HasTheaterSeating = true
	b.NumberOfTickets = len(keys)

	err = e.store.InTx(ctx, func(tx Tx) error {
		ev, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := checkOpen(ev); err != nil {
			return err
		}
		if !ev.HasTheaterSeating || ev.TheaterID == nil {
			return apperror.Invalidf("event %d has no theater seating", eventID)
		}
		th, err := tx.Theater(ctx, *ev.TheaterID)
		if err != nil {
			return err
		}
		res := availability.NewResolver(th, ev)

		var bad []layout.SeatKey
		for _, k := range keys {
			if !res.Bookable(k) {
				bad = append(bad, k)
			}
		}
		if len(bad) > 0 {
			return inSeatOrder(&th.Layout, apperror.InvalidSeats("some seats cannot be booked", bad))
		}
		if taken := collisions(ev.BookedSeats, keys); len(taken) > 0 {
			return inSeatOrder(&th.Layout, apperror.SeatsTaken(taken))
		}

		b.SelectedSeats = make([]model.SelectedSeat, len(keys))
		b.TotalPriceCents = 0
		for i, k := range keys {
			s := res.Seat(k, false)
			b.SelectedSeats[i] = model.SelectedSeat{
				Section:    k.Section,
				Row:        k.Row,
				SeatNumber: k.Number,
				SeatType:   s.SeatType,
				PriceCents: s.PriceCents,
			}
			b.TotalPriceCents += s.PriceCents
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		if err := tx.ClaimSeats(ctx, ev.ID, b.ID, keys); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				return inSeatOrder(&th.Layout, reportClaimConflict(ctx, tx, ev.ID, keys))
			}
			return err
		}
		for _, k := range keys {
			ev.BookedSeats = append(ev.BookedSeats, model.BookedSeat{Key: k, BookingID: b.ID})
		}
		return tx.SetRemainingTickets(ctx, ev.ID, availability.Remaining(th, ev))
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CancelBooking cancels a booking regardless of its owner.
func (e *Engine) CancelBooking(ctx context.Context, bookingID uint64) error {
	return e.cancel(ctx, bookingID, func(*model.Booking) bool { return true })
}

// CancelBookingForUser cancels a booking owned by userID.  Bookings of
// other users are reported as not found.
func (e *Engine) CancelBookingForUser(ctx context.Context, bookingID, userID uint64) error {
	return e.cancel(ctx, bookingID, func(b *model.Booking) bool { return b.UserID == userID })
}

func (e *Engine) cancel(ctx context.Context, bookingID uint64, visible func(*model.Booking) bool) error {
	var cancelled *model.Booking
	err := e.store.InTx(ctx, func(tx Tx) error {
		cur, err := tx.Booking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !visible(cur) {
			return apperror.NotFoundf("booking %d not found", bookingID)
		}
		// lock order is event then booking, same as the create path
		ev, err := tx.LockEvent(ctx, cur.EventID)
		if err != nil {
			return err
		}
		if cur, err = tx.LockBooking(ctx, bookingID); err != nil {
			return err
		}
		if cur.Status == model.BookingCancelled {
			return apperror.Conflictf("booking %d is already cancelled", bookingID)
		}

		var remaining int
		if cur.HasTheaterSeating {
			released, err := tx.ReleaseSeats(ctx, ev.ID, cur.ID)
			if err != nil {
				return err
			}
			if ev.TheaterID == nil {
				remaining = ev.RemainingTickets + released
			} else {
				th, err := tx.Theater(ctx, *ev.TheaterID)
				if err != nil {
					return err
				}
				ev.BookedSeats = withoutBooking(ev.BookedSeats, cur.ID)
				remaining = availability.Remaining(th, ev)
			}
		} else {
			remaining = ev.RemainingTickets + cur.NumberOfTickets
		}
		if err := tx.SetRemainingTickets(ctx, ev.ID, remaining); err != nil {
			return err
		}
		at := e.now()
		if err := tx.MarkCancelled(ctx, cur.ID, at); err != nil {
			return err
		}
		cur.Status = model.BookingCancelled
		cur.CancelledAt = &at
		cur.UpdatedAt = at
		cancelled = cur
		return nil
	})
	if err != nil {
		e.logFailure("cancel booking", bookingID, err)
		return err
	}
	e.log.Infof("booking %d cancelled: event=%d user=%d", cancelled.ID, cancelled.EventID, cancelled.UserID)
	e.notify.BookingCancelled(ctx, cancelled)
	return nil
}

// GetBooking returns a booking by id.
func (e *Engine) GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	var b *model.Booking
	err := e.store.ViewTx(ctx, func(tx Tx) error {
		var err error
		b, err = tx.Booking(ctx, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBookingForUser returns a booking owned by userID.
func (e *Engine) GetBookingForUser(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	b, err := e.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, apperror.NotFoundf("booking %d not found", bookingID)
	}
	return b, nil
}

// ListBookingsByUser returns the user's bookings, newest first.
func (e *Engine) ListBookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	out, err := e.store.BookingsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

// ListBookingsByEvent returns every booking of an event, newest first.
func (e *Engine) ListBookingsByEvent(ctx context.Context, eventID uint64) ([]model.Booking, error) {
	out, err := e.store.BookingsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (e *Engine) newBooking(eventID, userID uint64) *model.Booking {
	return &model.Booking{
		Reference: e.newRef(),
		EventID:   eventID,
		UserID:    userID,
		Status:    model.BookingConfirmed,
	}
}

func (e *Engine) logFailure(op string, id uint64, err error) {
	if apperror.KindOf(err) == apperror.Unavailable {
		e.log.Warnf("%s %d: storage unavailable: %v", op, id, err)
	}
}

func checkOpen(ev *model.Event) error {
	if ev.Status != model.EventActive {
		return apperror.Invalidf("event %d is not open for booking (status %s)", ev.ID, ev.Status)
	}
	return nil
}

// normalizeSeats defaults empty sections to main and rejects empty or
// duplicate requests.
func normalizeSeats(seats Seats) ([]layout.SeatKey, error) {
	if len(seats) == 0 {
		return nil, apperror.Invalidf("at least one seat is required")
	}
	keys := make([]layout.SeatKey, len(seats))
	seen := make(map[layout.SeatKey]bool, len(seats))
	var dups []layout.SeatKey
	for i, k := range seats {
		if k.Section == "" {
			k.Section = layout.Main
		}
		if seen[k] {
			dups = append(dups, k)
		}
		seen[k] = true
		keys[i] = k
	}
	if len(dups) > 0 {
		return nil, apperror.InvalidSeats("duplicate seats in request", dups)
	}
	return keys, nil
}

func collisions(booked []model.BookedSeat, keys []layout.SeatKey) []layout.SeatKey {
	set := make(map[layout.SeatKey]struct{}, len(booked))
	for _, b := range booked {
		set[b.Key] = struct{}{}
	}
	var out []layout.SeatKey
	for _, k := range keys {
		if _, ok := set[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// inSeatOrder lists the seats of a seat-level error in the theater's
// physical row order.
func inSeatOrder(l *layout.Layout, err *apperror.Error) *apperror.Error {
	l.SortSeats(err.Seats)
	return err
}

// reportClaimConflict re-reads the booked seats after the storage layer
// rejected a claim, so the conflict lists the seats actually taken.
func reportClaimConflict(ctx context.Context, tx Tx, eventID uint64, keys []layout.SeatKey) *apperror.Error {
	ev, err := tx.Event(ctx, eventID)
	if err != nil {
		return apperror.SeatsTaken(keys)
	}
	if taken := collisions(ev.BookedSeats, keys); len(taken) > 0 {
		return apperror.SeatsTaken(taken)
	}
	return apperror.SeatsTaken(keys)
}

// withoutBooking drops the seats held by bookingID.  Remaining tickets of a
// seated event are recounted from what is left rather than adjusted.
func withoutBooking(seats []model.BookedSeat, bookingID uint64) []model.BookedSeat {
	out := seats[:0:0]
	for _, s := range seats {
		if s.BookingID != bookingID {
			out = append(out, s)
		}
	}
	return out
}

func sortNewestFirst(bs []model.Booking) {
	sort.SliceStable(bs, func(i, j int) bool {
		if !bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			return bs[i].CreatedAt.After(bs[j].CreatedAt)
		}
		return bs[i].ID > bs[j].ID
	})
}
