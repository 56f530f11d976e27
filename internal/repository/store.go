package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/theater-seat-reservation/internal/apperror"
	"github.com/iliyamo/theater-seat-reservation/internal/layout"
	"github.com/iliyamo/theater-seat-reservation/internal/model"
	"github.com/iliyamo/theater-seat-reservation/internal/reservation"
)

// Store is the MySQL implementation of reservation.Store and
// availability.Source.  Each engine transaction maps onto one *sql.Tx; the
// event row lock taken by LockEvent serializes mutations per event.
type Store struct {
	db       *sql.DB
	bookings *BookingRepo
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, bookings: NewBookingRepo(db)}
}

// InTx runs fn in a read-write transaction and commits when fn succeeds.
// It runs at READ COMMITTED: a plain read issued before the event lock must
// not pin a snapshot that later reads under the lock would be served from.
func (s *Store) InTx(ctx context.Context, fn func(reservation.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

// ViewTx runs fn in a read-only transaction.  InnoDB serves every read of
// the transaction from one snapshot.
func (s *Store) ViewTx(ctx context.Context, fn func(reservation.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, fn func(reservation.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return classify(err, "begin")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&sqlTx{tx: tx, bookings: s.bookings}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperror.Unavailablef(err, "commit")
	}
	committed = true
	return nil
}

func (s *Store) BookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

func (s *Store) BookingsByEvent(ctx context.Context, eventID uint64) ([]model.Booking, error) {
	return s.bookings.ListByEvent(ctx, eventID)
}

// LoadSeating reads an event, its booked seats and its theater from one
// read-only snapshot.  The theater is nil for ticket events.
func (s *Store) LoadSeating(ctx context.Context, eventID uint64) (*model.Event, *model.Theater, error) {
	var (
		ev *model.Event
		th *model.Theater
	)
	err := s.ViewTx(ctx, func(tx reservation.Tx) error {
		var err error
		if ev, err = tx.Event(ctx, eventID); err != nil {
			return err
		}
		if !ev.HasTheaterSeating || ev.TheaterID == nil {
			return nil
		}
		th, err = tx.Theater(ctx, *ev.TheaterID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return ev, th, nil
}

// sqlTx adapts a *sql.Tx to reservation.Tx.
type sqlTx struct {
	tx       *sql.Tx
	bookings *BookingRepo
}

func (t *sqlTx) Event(ctx context.Context, eventID uint64) (*model.Event, error) {
	return getEvent(ctx, t.tx, eventID, false)
}

func (t *sqlTx) LockEvent(ctx context.Context, eventID uint64) (*model.Event, error) {
	return getEvent(ctx, t.tx, eventID, true)
}

func (t *sqlTx) Theater(ctx context.Context, theaterID uint64) (*model.Theater, error) {
	return getTheater(ctx, t.tx, theaterID)
}

func (t *sqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return t.bookings.InsertTx(ctx, t.tx, b)
}

func (t *sqlTx) ClaimSeats(ctx context.Context, eventID, bookingID uint64, seats []layout.SeatKey) error {
	return t.bookings.ClaimSeatsTx(ctx, t.tx, eventID, bookingID, seats)
}

func (t *sqlTx) ReleaseSeats(ctx context.Context, eventID, bookingID uint64) (int, error) {
	return t.bookings.ReleaseSeatsTx(ctx, t.tx, eventID, bookingID)
}

func (t *sqlTx) SetRemainingTickets(ctx context.Context, eventID uint64, remaining int) error {
	return t.bookings.SetRemainingTx(ctx, t.tx, eventID, remaining)
}

func (t *sqlTx) Booking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	return t.bookings.GetTx(ctx, t.tx, bookingID, false)
}

func (t *sqlTx) LockBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	return t.bookings.GetTx(ctx, t.tx, bookingID, true)
}

func (t *sqlTx) MarkCancelled(ctx context.Context, bookingID uint64, at time.Time) error {
	return t.bookings.MarkCancelledTx(ctx, t.tx, bookingID, at)
}

var _ reservation.Store = (*Store)(nil)
