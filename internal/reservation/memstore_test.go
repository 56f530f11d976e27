package reservation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/theater-seat-reservation/internal/apperror"
	"github.com/iliyamo/theater-seat-reservation/internal/layout"
	"github.com/iliyamo/theater-seat-reservation/internal/model"
)

// memStore is a transactional in-memory Store for engine tests.
// Transactions are serialized by a mutex, run against a deep copy of the
// state and swap it in only when fn succeeds.
type memStore struct {
	mu    sync.Mutex
	state memState

	// failCommit makes every read-write transaction fail at commit.
	failCommit error
	// staleLock makes LockEvent hide booked seats, emulating a lost lock so
	// only the claim-time uniqueness check stands between two bookings.
	staleLock bool
}

type memState struct {
	theaters map[uint64]*model.Theater
	events   map[uint64]*model.Event
	bookings map[uint64]*model.Booking
	nextID   uint64
	clock    time.Time
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		theaters: map[uint64]*model.Theater{},
		events:   map[uint64]*model.Event{},
		bookings: map[uint64]*model.Booking{},
		nextID:   1,
		clock:    time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
	}}
}

func (s *memStore) addTheater(th *model.Theater) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.theaters[th.ID] = th
}

func (s *memStore) addEvent(ev *model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.events[ev.ID] = copyEvent(ev)
}

func (s *memStore) deleteEvent(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.events, id)
}

func (s *memStore) event(id uint64) *model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyEvent(s.state.events[id])
}

func (s *memStore) InTx(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(&memTx{st: &work, staleLock: s.staleLock}); err != nil {
		return err
	}
	if s.failCommit != nil {
		return apperror.Unavailablef(s.failCommit, "commit")
	}
	s.state = work
	return nil
}

func (s *memStore) ViewTx(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	return fn(&memTx{st: &work})
}

func (s *memStore) BookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.state.bookings {
		if b.UserID == userID {
			out = append(out, *copyBooking(b))
		}
	}
	return out, nil
}

func (s *memStore) BookingsByEvent(ctx context.Context, eventID uint64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.state.bookings {
		if b.EventID == eventID {
			out = append(out, *copyBooking(b))
		}
	}
	return out, nil
}

func (st memState) clone() memState {
	out := memState{
		theaters: st.theaters,
		events:   make(map[uint64]*model.Event, len(st.events)),
		bookings: make(map[uint64]*model.Booking, len(st.bookings)),
		nextID:   st.nextID,
		clock:    st.clock,
	}
	for id, ev := range st.events {
		out.events[id] = copyEvent(ev)
	}
	for id, b := range st.bookings {
		out.bookings[id] = copyBooking(b)
	}
	return out
}

func copyEvent(ev *model.Event) *model.Event {
	if ev == nil {
		return nil
	}
	c := *ev
	c.BookedSeats = append([]model.BookedSeat(nil), ev.BookedSeats...)
	c.SeatPricing = append([]model.SeatPrice(nil), ev.SeatPricing...)
	c.SeatConfig = append([]model.SeatConfig(nil), ev.SeatConfig...)
	return &c
}

func copyBooking(b *model.Booking) *model.Booking {
	c := *b
	c.SelectedSeats = append([]model.SelectedSeat(nil), b.SelectedSeats...)
	return &c
}

type memTx struct {
	st        *memState
	staleLock bool
}

func (t *memTx) Event(ctx context.Context, id uint64) (*model.Event, error) {
	ev, ok := t.st.events[id]
	if !ok {
		return nil, apperror.NotFoundf("event %d not found", id)
	}
	return copyEvent(ev), nil
}

func (t *memTx) LockEvent(ctx context.Context, id uint64) (*model.Event, error) {
	ev, err := t.Event(ctx, id)
	if err == nil && t.staleLock {
		ev.BookedSeats = nil
	}
	return ev, err
}

func (t *memTx) Theater(ctx context.Context, id uint64) (*model.Theater, error) {
	th, ok := t.st.theaters[id]
	if !ok {
		return nil, apperror.NotFoundf("theater %d not found", id)
	}
	return th, nil
}

func (t *memTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	t.st.clock = t.st.clock.Add(time.Minute)
	b.ID = t.st.nextID
	t.st.nextID++
	b.CreatedAt = t.st.clock
	b.UpdatedAt = t.st.clock
	t.st.bookings[b.ID] = copyBooking(b)
	return nil
}

func (t *memTx) ClaimSeats(ctx context.Context, eventID, bookingID uint64, seats []layout.SeatKey) error {
	ev, ok := t.st.events[eventID]
	if !ok {
		return apperror.NotFoundf("event %d not found", eventID)
	}
	for _, k := range seats {
		for _, b := range ev.BookedSeats {
			if b.Key == k {
				return apperror.Conflictf("seat %s already booked", k)
			}
		}
	}
	for _, k := range seats {
		ev.BookedSeats = append(ev.BookedSeats, model.BookedSeat{Key: k, BookingID: bookingID})
	}
	return nil
}

func (t *memTx) ReleaseSeats(ctx context.Context, eventID, bookingID uint64) (int, error) {
	ev, ok := t.st.events[eventID]
	if !ok {
		return 0, apperror.NotFoundf("event %d not found", eventID)
	}
	kept := ev.BookedSeats[:0]
	released := 0
	for _, b := range ev.BookedSeats {
		if b.BookingID == bookingID {
			released++
			continue
		}
		kept = append(kept, b)
	}
	ev.BookedSeats = kept
	return released, nil
}

func (t *memTx) SetRemainingTickets(ctx context.Context, eventID uint64, remaining int) error {
	ev, ok := t.st.events[eventID]
	if !ok {
		return apperror.NotFoundf("event %d not found", eventID)
	}
	if remaining < 0 {
		return errors.New("remaining tickets would go negative")
	}
	ev.RemainingTickets = remaining
	return nil
}

func (t *memTx) Booking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, ok := t.st.bookings[id]
	if !ok {
		return nil, apperror.NotFoundf("booking %d not found", id)
	}
	return copyBooking(b), nil
}

func (t *memTx) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return t.Booking(ctx, id)
}

func (t *memTx) MarkCancelled(ctx context.Context, id uint64, at time.Time) error {
	b, ok := t.st.bookings[id]
	if !ok {
		return apperror.NotFoundf("booking %d not found", id)
	}
	b.Status = model.BookingCancelled
	b.CancelledAt = &at
	b.UpdatedAt = at
	return nil
}
