package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/theater-seat-reservation/internal/layout"
	"github.com/iliyamo/theater-seat-reservation/internal/model"
)

// BookingRepo reads and writes bookings, their selected seats and the
// event_booked_seats claims.  Write methods take the caller's transaction;
// the reservation Store decides the transaction boundaries.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, reference, event_id, user_id, status, has_theater_seating,
	number_of_tickets, total_price_cents, created_at, updated_at, cancelled_at`

// InsertTx stores b and its selected seats and fills ID and timestamps.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (reference, event_id, user_id, status, has_theater_seating,
	                                 number_of_tickets, total_price_cents)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.Reference, b.EventID, b.UserID, string(b.Status),
		b.HasTheaterSeating, b.NumberOfTickets, b.TotalPriceCents)
	if err != nil {
		return classify(err, "insert booking")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify(err, "insert booking")
	}
	b.ID = uint64(id)

	if len(b.SelectedSeats) > 0 {
		var sb strings.Builder
		sb.WriteString("INSERT INTO booking_seats (booking_id, section, row_label, seat_number, seat_type, price_cents) VALUES ")
		args := make([]interface{}, 0, len(b.SelectedSeats)*6)
		for i, s := range b.SelectedSeats {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?)")
			args = append(args, b.ID, string(s.Section), s.Row, s.SeatNumber, string(s.SeatType), s.PriceCents)
		}
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return classify(err, "insert booking seats")
		}
	}
	if err := tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM bookings WHERE id = ?`, b.ID).
		Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return classify(err, "select booking")
	}
	return nil
}

// ClaimSeatsTx inserts one event_booked_seats row per seat.  The unique key
// on (event_id, section, row_label, seat_number) turns a double claim into
// an apperror Conflict.
func (r *BookingRepo) ClaimSeatsTx(ctx context.Context, tx *sql.Tx, eventID, bookingID uint64, seats []layout.SeatKey) error {
	if len(seats) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO event_booked_seats (event_id, section, row_label, seat_number, booking_id) VALUES ")
	args := make([]interface{}, 0, len(seats)*5)
	for i, k := range seats {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, eventID, string(k.Section), k.Row, k.Number, bookingID)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return classify(err, "claim seats")
	}
	return nil
}

// ReleaseSeatsTx deletes the claims of bookingID and returns their count.
func (r *BookingRepo) ReleaseSeatsTx(ctx context.Context, tx *sql.Tx, eventID, bookingID uint64) (int, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM event_booked_seats WHERE event_id = ? AND booking_id = ?`, eventID, bookingID)
	if err != nil {
		return 0, classify(err, "release seats")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(err, "release seats")
	}
	return int(n), nil
}

// SetRemainingTx writes the event's remaining ticket count.
func (r *BookingRepo) SetRemainingTx(ctx context.Context, tx *sql.Tx, eventID uint64, remaining int) error {
	const q = `UPDATE events SET remaining_tickets = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, remaining, eventID)
	if err != nil {
		return classify(err, "update remaining tickets")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 affected rows when the value is unchanged, so
		// confirm the row exists before calling it missing.
		var id uint64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM events WHERE id = ?`, eventID).Scan(&id); err != nil {
			return notFound(err, ErrEventNotFound, "select event")
		}
	}
	return nil
}

// MarkCancelledTx moves a booking to cancelled.
func (r *BookingRepo) MarkCancelledTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	const q = `UPDATE bookings SET status = ?, cancelled_at = ?, updated_at = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, string(model.BookingCancelled), at.UTC(), at.UTC(), id)
	if err != nil {
		return classify(err, "cancel booking")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// GetTx loads a booking and its seats.  With lock the booking row is read
// FOR UPDATE.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64, lock bool) (*model.Booking, error) {
	return getBooking(ctx, tx, id, lock)
}

// ListByUser returns the user's bookings with their seats.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return listBookings(ctx, r.db, "user_id", userID)
}

// ListByEvent returns every booking of the event with its seats.
func (r *BookingRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Booking, error) {
	return listBookings(ctx, r.db, "event_id", eventID)
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	var (
		b         model.Booking
		status    string
		cancelled sql.NullTime
	)
	if err := s.Scan(&b.ID, &b.Reference, &b.EventID, &b.UserID, &status, &b.HasTheaterSeating,
		&b.NumberOfTickets, &b.TotalPriceCents, &b.CreatedAt, &b.UpdatedAt, &cancelled); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	if cancelled.Valid {
		t := cancelled.Time
		b.CancelledAt = &t
	}
	return &b, nil
}

func getBooking(ctx context.Context, q querier, id uint64, lock bool) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	b, err := scanBooking(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, ErrBookingNotFound, "select booking")
	}
	const qSeats = `SELECT booking_id, section, row_label, seat_number, seat_type, price_cents
	                FROM booking_seats WHERE booking_id = ? ORDER BY id`
	seats, err := scanSelectedSeats(ctx, q, qSeats, id)
	if err != nil {
		return nil, err
	}
	b.SelectedSeats = seats[id]
	return b, nil
}

// listBookings loads bookings where column = id, then all of their seats
// with a single join instead of one query per booking.
func listBookings(ctx context.Context, q querier, column string, id uint64) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+column+` = ? ORDER BY created_at DESC, id DESC`, id)
	if err != nil {
		return nil, classify(err, "list bookings")
	}
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, classify(err, "scan booking")
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, classify(err, "list bookings")
	}
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	qSeats := `SELECT s.booking_id, s.section, s.row_label, s.seat_number, s.seat_type, s.price_cents
	           FROM booking_seats s JOIN bookings b ON b.id = s.booking_id
	           WHERE b.` + column + ` = ? ORDER BY s.id`
	seats, err := scanSelectedSeats(ctx, q, qSeats, id)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].SelectedSeats = seats[out[i].ID]
	}
	return out, nil
}

func scanSelectedSeats(ctx context.Context, q querier, query string, arg uint64) (map[uint64][]model.SelectedSeat, error) {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, classify(err, "select booking seats")
	}
	defer rows.Close()

	out := map[uint64][]model.SelectedSeat{}
	for rows.Next() {
		var (
			bookingID uint64
			s         model.SelectedSeat
			sec, typ  string
		)
		if err := rows.Scan(&bookingID, &sec, &s.Row, &s.SeatNumber, &typ, &s.PriceCents); err != nil {
			return nil, classify(err, "scan booking seat")
		}
		s.Section = layout.Section(sec)
		s.SeatType = layout.SeatType(typ)
		out[bookingID] = append(out[bookingID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "select booking seats")
	}
	return out, nil
}
