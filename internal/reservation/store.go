package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/theater-seat-reservation/internal/layout"
	"github.com/iliyamo/theater-seat-reservation/internal/model"
)

// Tx is the set of reads and writes the engine performs inside one storage
// transaction.  Implementations must make every write visible atomically at
// commit, or not at all.  Missing rows are reported as apperror NotFound.
type Tx interface {
	// Event loads an event with its pricing, seat config and booked seats.
	Event(ctx context.Context, eventID uint64) (*model.Event, error)
	// LockEvent is Event plus an exclusive lock on the event held until the
	// transaction ends.  Concurrent mutations of the same event serialize here.
	LockEvent(ctx context.Context, eventID uint64) (*model.Event, error)
	Theater(ctx context.Context, theaterID uint64) (*model.Theater, error)

	// InsertBooking stores b and its selected seats and fills in ID and
	// timestamps.
	InsertBooking(ctx context.Context, b *model.Booking) error
	// ClaimSeats attaches seats to bookingID on the event.  A seat already
	// claimed fails with apperror Conflict.
	ClaimSeats(ctx context.Context, eventID, bookingID uint64, seats []layout.SeatKey) error
	// ReleaseSeats removes every seat claimed by bookingID and returns how
	// many were removed.
	ReleaseSeats(ctx context.Context, eventID, bookingID uint64) (int, error)
	SetRemainingTickets(ctx context.Context, eventID uint64, remaining int) error

	Booking(ctx context.Context, bookingID uint64) (*model.Booking, error)
	LockBooking(ctx context.Context, bookingID uint64) (*model.Booking, error)
	MarkCancelled(ctx context.Context, bookingID uint64, at time.Time) error
}

// Store runs transactions and serves plain booking reads.
type Store interface {
	// InTx runs fn in a read-write transaction.  fn returning an error
	// rolls everything back.
	InTx(ctx context.Context, fn func(Tx) error) error
	// ViewTx runs fn in a read-only transaction over a consistent snapshot.
	ViewTx(ctx context.Context, fn func(Tx) error) error
	BookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	BookingsByEvent(ctx context.Context, eventID uint64) ([]model.Booking, error)
}

// Notifier is told about committed booking changes.  It runs after commit
// and cannot affect the outcome.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b *model.Booking)
	BookingCancelled(ctx context.Context, b *model.Booking)
}

// Notifiers fans a notification out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) BookingConfirmed(ctx context.Context, b *model.Booking) {
	for _, n := range ns {
		n.BookingConfirmed(ctx, b)
	}
}

func (ns Notifiers) BookingCancelled(ctx context.Context, b *model.Booking) {
	for _, n := range ns {
		n.BookingCancelled(ctx, b)
	}
}

type nopNotifier struct{}

func (nopNotifier) BookingConfirmed(context.Context, *model.Booking) {}
func (nopNotifier) BookingCancelled(context.Context, *model.Booking) {}
