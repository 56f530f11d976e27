package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-seat-reservation/internal/apperror"
	"github.com/iliyamo/theater-seat-reservation/internal/layout"
	"github.com/iliyamo/theater-seat-reservation/internal/model"
	"github.com/iliyamo/theater-seat-reservation/internal/reservation"
)

var (
	eventCols   = []string{"id", "owner_id", "title", "description", "event_date", "location", "category", "ticket_price_cents", "total_tickets", "remaining_tickets", "status", "has_theater_seating", "theater_id", "created_at", "updated_at"}
	bookingCols = []string{"id", "reference", "event_id", "user_id", "status", "has_theater_seating", "number_of_tickets", "total_price_cents", "created_at", "updated_at", "cancelled_at"}
	theaterCols = []string{"id", "owner_id", "name", "description", "is_active", "layout", "total_seats", "vip_seats", "premium_seats", "created_at", "updated_at"}
	ts          = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
)

type quietLogger struct{}

func (quietLogger) Infof(string, ...interface{}) {}
func (quietLogger) Warnf(string, ...interface{}) {}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func expectEvent(mock sqlmock.Sqlmock, id uint64, lock bool, remaining int, seated bool, theaterID interface{}, booked *sqlmock.Rows) {
	query := q("FROM events WHERE id = ?")
	if lock {
		query = q("FROM events WHERE id = ? FOR UPDATE")
	}
	mock.ExpectQuery(query).WithArgs(id).WillReturnRows(sqlmock.NewRows(eventCols).AddRow(
		id, 1, "Jazz Night", "", ts, "Hall", "music", int64(2500), 50, remaining, "active", seated, theaterID, ts, ts))
	mock.ExpectQuery(q("FROM event_seat_pricing WHERE event_id = ?")).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"seat_type", "price_cents"}))
	mock.ExpectQuery(q("FROM event_seat_config WHERE event_id = ?")).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"section", "row_label", "seat_number", "seat_type", "is_active"}))
	if booked == nil {
		booked = sqlmock.NewRows([]string{"section", "row_label", "seat_number", "booking_id"})
	}
	bookedQuery := q("FROM event_booked_seats WHERE event_id = ?")
	if lock {
		bookedQuery = q("FROM event_booked_seats WHERE event_id = ? FOR UPDATE")
	}
	mock.ExpectQuery(bookedQuery).WithArgs(id).WillReturnRows(booked)
}

func TestClassify(t *testing.T) {
	dup := classify(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, "claim seats")
	assert.ErrorIs(t, dup, apperror.ErrConflict)

	deadlock := classify(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, "lock event")
	assert.ErrorIs(t, deadlock, apperror.ErrUnavailable)

	assert.ErrorIs(t, classify(driver.ErrBadConn, "select"), apperror.ErrUnavailable)
	assert.ErrorIs(t, classify(mysql.ErrInvalidConn, "select"), apperror.ErrUnavailable)
	assert.ErrorIs(t, classify(context.DeadlineExceeded, "select"), apperror.ErrUnavailable)

	other := classify(errors.New("syntax error"), "select")
	assert.Equal(t, apperror.Internal, apperror.KindOf(other))
	assert.Contains(t, other.Error(), "select: syntax error")

	assert.Same(t, ErrEventNotFound, notFound(sql.ErrNoRows, ErrEventNotFound, "select event"))
	assert.Nil(t, classify(nil, "noop"))
}

func TestEngineOnStore_TicketBookingCommits(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	expectEvent(mock, 5, true, 3, false, nil, nil)
	mock.ExpectExec(q("INSERT INTO bookings")).
		WithArgs(sqlmock.AnyArg(), uint64(5), uint64(9), "confirmed", false, 2, int64(5000)).
		WillReturnResult(sqlmock.NewResult(77, 1))
	mock.ExpectQuery(q("SELECT created_at, updated_at FROM bookings WHERE id = ?")).WithArgs(uint64(77)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ts, ts))
	mock.ExpectExec(q("UPDATE events SET remaining_tickets = ?")).WithArgs(1, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	eng := reservation.New(NewStore(db), reservation.WithLogger(quietLogger{}))
	b, err := eng.CreateBooking(context.Background(), 5, 9, reservation.TicketCount(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(77), b.ID)
	assert.Equal(t, int64(5000), b.TotalPriceCents)
	assert.Equal(t, ts, b.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineOnStore_NotEnoughTicketsRollsBack(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	expectEvent(mock, 5, true, 1, false, nil, nil)
	mock.ExpectRollback()

	eng := reservation.New(NewStore(db), reservation.WithLogger(quietLogger{}))
	_, err := eng.CreateBooking(context.Background(), 5, 9, reservation.TicketCount(2))
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperror.Conflict, ae.Kind)
	assert.Equal(t, 1, *ae.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineOnStore_MissingEventIsNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM events WHERE id = ? FOR UPDATE")).WithArgs(uint64(404)).
		WillReturnRows(sqlmock.NewRows(eventCols))
	mock.ExpectRollback()

	eng := reservation.New(NewStore(db), reservation.WithLogger(quietLogger{}))
	_, err := eng.CreateBooking(context.Background(), 404, 9, reservation.TicketCount(1))
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineOnStore_DeadlockIsUnavailable(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM events WHERE id = ? FOR UPDATE")).WithArgs(uint64(5)).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()

	eng := reservation.New(NewStore(db), reservation.WithLogger(quietLogger{}))
	_, err := eng.CreateBooking(context.Background(), 5, 9, reservation.TicketCount(1))
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CommitFailureIsUnavailable(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE events SET remaining_tickets = ?")).WithArgs(4, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(driver.ErrBadConn)

	err := NewStore(db).InTx(context.Background(), func(tx reservation.Tx) error {
		return tx.SetRemainingTickets(context.Background(), 5, 4)
	})
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ClaimSeatsDuplicateIsConflict(t *testing.T) {
	db, mock := newMock(t)
	seats := []layout.SeatKey{{Section: layout.Main, Row: "A", Number: 1}, {Section: layout.Main, Row: "A", Number: 2}}

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO event_booked_seats (event_id, section, row_label, seat_number, booking_id) VALUES (?, ?, ?, ?, ?),(?, ?, ?, ?, ?)")).
		WithArgs(uint64(5), "main", "A", 1, uint64(8), uint64(5), "main", "A", 2, uint64(8)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '5-main-A-1'"})
	mock.ExpectRollback()

	err := NewStore(db).InTx(context.Background(), func(tx reservation.Tx) error {
		return tx.ClaimSeats(context.Background(), 5, 8, seats)
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReleaseSeatsReturnsCount(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM event_booked_seats WHERE event_id = ? AND booking_id = ?")).
		WithArgs(uint64(5), uint64(8)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	var released int
	err := NewStore(db).InTx(context.Background(), func(tx reservation.Tx) error {
		var err error
		released, err = tx.ReleaseSeats(context.Background(), 5, 8)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineOnStore_CancelSeatedRecountsUnderEventLock(t *testing.T) {
	db, mock := newMock(t)
	bookingRow := func() *sqlmock.Rows {
		return sqlmock.NewRows(bookingCols).AddRow(uint64(8), "ref-8", uint64(6), uint64(9), "confirmed", true, 1, int64(3000), ts, ts, nil)
	}
	seatRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"booking_id", "section", "row_label", "seat_number", "seat_type", "price_cents"}).
			AddRow(uint64(8), "main", "A", 1, "standard", int64(3000))
	}
	// A2 belongs to a booking committed after the first read of this
	// transaction; the recount has to include it.
	booked := sqlmock.NewRows([]string{"section", "row_label", "seat_number", "booking_id"}).
		AddRow("main", "A", 1, uint64(8)).
		AddRow("main", "A", 2, uint64(11))

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM bookings WHERE id = ?") + "$").WithArgs(uint64(8)).WillReturnRows(bookingRow())
	mock.ExpectQuery(q("FROM booking_seats WHERE booking_id = ?")).WithArgs(uint64(8)).WillReturnRows(seatRow())
	expectEvent(mock, 6, true, 2, true, uint64(2), booked)
	mock.ExpectQuery(q("FROM bookings WHERE id = ? FOR UPDATE")).WithArgs(uint64(8)).WillReturnRows(bookingRow())
	mock.ExpectQuery(q("FROM booking_seats WHERE booking_id = ?")).WithArgs(uint64(8)).WillReturnRows(seatRow())
	mock.ExpectExec(q("DELETE FROM event_booked_seats WHERE event_id = ? AND booking_id = ?")).
		WithArgs(uint64(6), uint64(8)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("FROM theaters WHERE id = ?")).WithArgs(uint64(2)).WillReturnRows(
		sqlmock.NewRows(theaterCols).AddRow(uint64(2), 1, "Playhouse", "", true,
			`{"stage":{"position":"top"},"mainFloor":{"rows":2,"seatsPerRow":2}}`, 4, 0, 0, ts, ts))
	mock.ExpectQuery(q("FROM theater_seat_config WHERE theater_id = ?")).WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"section", "row_label", "seat_number", "seat_type", "is_active"}))
	mock.ExpectExec(q("UPDATE events SET remaining_tickets = ?")).WithArgs(3, uint64(6)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE bookings SET status = ?, cancelled_at = ?, updated_at = ? WHERE id = ?")).
		WithArgs("cancelled", ts, ts, uint64(8)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	eng := reservation.New(NewStore(db), reservation.WithLogger(quietLogger{}),
		reservation.WithClock(func() time.Time { return ts }))
	require.NoError(t, eng.CancelBooking(context.Background(), 8))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadSeating(t *testing.T) {
	db, mock := newMock(t)
	booked := sqlmock.NewRows([]string{"section", "row_label", "seat_number", "booking_id"}).
		AddRow("main", "A", 1, uint64(3))

	mock.ExpectBegin()
	expectEvent(mock, 6, false, 3, true, uint64(2), booked)
	mock.ExpectQuery(q("FROM theaters WHERE id = ?")).WithArgs(uint64(2)).WillReturnRows(
		sqlmock.NewRows(theaterCols).AddRow(uint64(2), 1, "Playhouse", "", true,
			`{"stage":{"position":"top"},"mainFloor":{"rows":2,"seatsPerRow":2}}`, 4, 0, 0, ts, ts))
	mock.ExpectQuery(q("FROM theater_seat_config WHERE theater_id = ?")).WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"section", "row_label", "seat_number", "seat_type", "is_active"}).
			AddRow("main", "B", 2, "vip", nil))
	mock.ExpectCommit()

	ev, th, err := NewStore(db).LoadSeating(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, ev.BookedSeats, 1)
	assert.Equal(t, layout.SeatKey{Section: layout.Main, Row: "A", Number: 1}, ev.BookedSeats[0].Key)
	assert.Equal(t, uint64(3), ev.BookedSeats[0].BookingID)
	require.NotNil(t, th)
	assert.Equal(t, 2, th.Layout.MainFloor.Rows)
	require.Len(t, th.SeatConfig, 1)
	assert.Equal(t, layout.VIP, th.SeatConfig[0].SeatType)
	assert.Nil(t, th.SeatConfig[0].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetBookingForCancel(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM bookings WHERE id = ? FOR UPDATE")).WithArgs(uint64(8)).WillReturnRows(
		sqlmock.NewRows(bookingCols).AddRow(uint64(8), "ref-8", uint64(5), uint64(9), "confirmed", true, 1, int64(3000), ts, ts, nil))
	mock.ExpectQuery(q("FROM booking_seats WHERE booking_id = ?")).WithArgs(uint64(8)).WillReturnRows(
		sqlmock.NewRows([]string{"booking_id", "section", "row_label", "seat_number", "seat_type", "price_cents"}).
			AddRow(uint64(8), "balcony", "BALC-A", 2, "premium", int64(3000)))
	mock.ExpectExec(q("UPDATE bookings SET status = ?, cancelled_at = ?, updated_at = ? WHERE id = ?")).
		WithArgs("cancelled", ts, ts, uint64(8)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var b *model.Booking
	err := NewStore(db).InTx(context.Background(), func(tx reservation.Tx) error {
		var err error
		if b, err = tx.LockBooking(context.Background(), 8); err != nil {
			return err
		}
		return tx.MarkCancelled(context.Background(), 8, ts)
	})
	require.NoError(t, err)
	require.Len(t, b.SelectedSeats, 1)
	assert.Equal(t, layout.Balcony, b.SelectedSeats[0].Section)
	assert.Equal(t, layout.Premium, b.SelectedSeats[0].SeatType)
	assert.Nil(t, b.CancelledAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_ListByUser(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(q("FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC")).WithArgs(uint64(9)).WillReturnRows(
		sqlmock.NewRows(bookingCols).
			AddRow(uint64(2), "ref-2", uint64(6), uint64(9), "confirmed", true, 2, int64(6000), ts, ts, nil).
			AddRow(uint64(1), "ref-1", uint64(5), uint64(9), "cancelled", false, 3, int64(7500), ts, ts, ts))
	mock.ExpectQuery(q("JOIN bookings b ON b.id = s.booking_id WHERE b.user_id = ?")).WithArgs(uint64(9)).WillReturnRows(
		sqlmock.NewRows([]string{"booking_id", "section", "row_label", "seat_number", "seat_type", "price_cents"}).
			AddRow(uint64(2), "main", "A", 1, "standard", int64(3000)).
			AddRow(uint64(2), "main", "A", 2, "standard", int64(3000)))

	list, err := NewBookingRepo(db).ListByUser(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Len(t, list[0].SelectedSeats, 2)
	assert.Empty(t, list[1].SelectedSeats)
	require.NotNil(t, list[1].CancelledAt)
	assert.Equal(t, model.BookingCancelled, list[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
