package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/theater-seat-reservation/internal/apperror"
	"github.com/iliyamo/theater-seat-reservation/internal/availability"
	"github.com/iliyamo/theater-seat-reservation/internal/layout"
	"github.com/iliyamo/theater-seat-reservation/internal/model"
)

// EventRepo stores events with their pricing and seat overrides.  The
// remaining ticket count and booked seats are written only by the
// reservation Store.
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// EventFilter narrows ListEvents.  Zero fields do not filter.
type EventFilter struct {
	Category string
	From     time.Time
	To       time.Time
	Query    string
}

const eventColumns = `id, owner_id, title, description, event_date, location, category,
	ticket_price_cents, total_tickets, remaining_tickets, status, has_theater_seating,
	theater_id, created_at, updated_at`

// Create inserts ev with its pricing and seat config.  For seated events
// the theater row is share-locked and the capacity is the number of seats
// left active once the event's own overrides are applied, ignoring
// ev.TotalTickets.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "begin")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var theaterID interface{}
	if ev.HasTheaterSeating {
		if ev.TheaterID == nil {
			return apperror.Invalidf("seated event requires a theater")
		}
		var active bool
		const q = `SELECT is_active FROM theaters WHERE id = ? LOCK IN SHARE MODE`
		if err := tx.QueryRowContext(ctx, q, *ev.TheaterID).Scan(&active); err != nil {
			return notFound(err, ErrTheaterNotFound, "lock theater")
		}
		if !active {
			return apperror.Invalidf("theater %d is not active", *ev.TheaterID)
		}
		th, err := getTheater(ctx, tx, *ev.TheaterID)
		if err != nil {
			return err
		}
		ev.BookedSeats = nil
		ev.TotalTickets = availability.Capacity(th, ev)
		theaterID = *ev.TheaterID
	}
	ev.RemainingTickets = ev.TotalTickets
	if ev.Status == "" {
		ev.Status = model.EventActive
	}

	const q = `INSERT INTO events (owner_id, title, description, event_date, location, category,
	                               ticket_price_cents, total_tickets, remaining_tickets, status,
	                               has_theater_seating, theater_id)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, ev.OwnerID, ev.Title, ev.Description, ev.Date.UTC(), ev.Location,
		ev.Category, ev.TicketPriceCents, ev.TotalTickets, ev.RemainingTickets, string(ev.Status),
		ev.HasTheaterSeating, theaterID)
	if err != nil {
		return classify(err, "insert event")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify(err, "insert event")
	}
	ev.ID = uint64(id)
	if err := replaceEventSeating(ctx, tx, ev.ID, ev.SeatPricing, ev.SeatConfig, false); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM events WHERE id = ?`, ev.ID).
		Scan(&ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return classify(err, "select event")
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "commit")
	}
	committed = true
	return nil
}

// UpdateSeating replaces the event's pricing and seat overrides.  Booked
// seats are left alone; for seated events the capacity and the remaining
// count are recomputed, since overrides can switch seats on or off.
func (r *EventRepo) UpdateSeating(ctx context.Context, id uint64, pricing []model.SeatPrice, cfg []model.SeatConfig) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err, "begin")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ev, err := getEvent(ctx, tx, id, true)
	if err != nil {
		return err
	}
	if err := replaceEventSeating(ctx, tx, id, pricing, cfg, true); err != nil {
		return err
	}
	if ev.HasTheaterSeating && ev.TheaterID != nil {
		th, err := getTheater(ctx, tx, *ev.TheaterID)
		if err != nil {
			return err
		}
		ev.SeatPricing, ev.SeatConfig = pricing, cfg
		const q = `UPDATE events SET total_tickets = ?, remaining_tickets = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
		if _, err := tx.ExecContext(ctx, q, availability.Capacity(th, ev), availability.Remaining(th, ev), id); err != nil {
			return classify(err, "resize event")
		}
	} else if _, err := tx.ExecContext(ctx, `UPDATE events SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
		return classify(err, "touch event")
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "commit")
	}
	committed = true
	return nil
}

// GetByID loads an event with pricing, seat config and booked seats.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	return getEvent(ctx, r.db, id, false)
}

// List returns events matching f, latest date first.  Child rows are not
// loaded.
func (r *EventRepo) List(ctx context.Context, f EventFilter) ([]*model.Event, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		where = append(where, "event_date >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "event_date <= ?")
		args = append(args, f.To.UTC())
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "(title LIKE ? OR location LIKE ?)")
		like := "%" + escapeLike(q) + "%"
		args = append(args, like, like)
	}
	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY event_date DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "list events")
	}
	defer rows.Close()

	var out []*model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, classify(err, "scan event")
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list events")
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanEvent(s rowScanner) (*model.Event, error) {
	var (
		ev        model.Event
		status    string
		theaterID sql.NullInt64
	)
	if err := s.Scan(&ev.ID, &ev.OwnerID, &ev.Title, &ev.Description, &ev.Date, &ev.Location, &ev.Category,
		&ev.TicketPriceCents, &ev.TotalTickets, &ev.RemainingTickets, &status, &ev.HasTheaterSeating,
		&theaterID, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return nil, err
	}
	ev.Status = model.EventStatus(status)
	if theaterID.Valid {
		id := uint64(theaterID.Int64)
		ev.TheaterID = &id
	}
	return &ev, nil
}

// getEvent loads the event row and its children.  With lock the event row
// is read FOR UPDATE, which is the serialization point of every booking
// mutation on that event, and the booked seats are read FOR UPDATE too so
// they come from the latest committed state rather than the snapshot.
func getEvent(ctx context.Context, q querier, id uint64, lock bool) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	ev, err := scanEvent(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, ErrEventNotFound, "select event")
	}
	if ev.SeatPricing, err = loadSeatPricing(ctx, q, id); err != nil {
		return nil, err
	}
	if ev.SeatConfig, err = loadSeatConfig(ctx, q, "event_seat_config", "event_id", id); err != nil {
		return nil, err
	}
	if ev.BookedSeats, err = loadBookedSeats(ctx, q, id, lock); err != nil {
		return nil, err
	}
	return ev, nil
}

func loadSeatPricing(ctx context.Context, q querier, eventID uint64) ([]model.SeatPrice, error) {
	rows, err := q.QueryContext(ctx, `SELECT seat_type, price_cents FROM event_seat_pricing WHERE event_id = ? ORDER BY seat_type`, eventID)
	if err != nil {
		return nil, classify(err, "select seat pricing")
	}
	defer rows.Close()

	var out []model.SeatPrice
	for rows.Next() {
		var (
			p   model.SeatPrice
			typ string
		)
		if err := rows.Scan(&typ, &p.PriceCents); err != nil {
			return nil, classify(err, "scan seat pricing")
		}
		p.SeatType = layout.SeatType(typ)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "select seat pricing")
	}
	return out, nil
}

func loadBookedSeats(ctx context.Context, q querier, eventID uint64, lock bool) ([]model.BookedSeat, error) {
	query := `SELECT section, row_label, seat_number, booking_id FROM event_booked_seats WHERE event_id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, classify(err, "select booked seats")
	}
	defer rows.Close()

	var out []model.BookedSeat
	for rows.Next() {
		var (
			b   model.BookedSeat
			sec string
		)
		if err := rows.Scan(&sec, &b.Key.Row, &b.Key.Number, &b.BookingID); err != nil {
			return nil, classify(err, "scan booked seat")
		}
		b.Key.Section = layout.Section(sec)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "select booked seats")
	}
	return out, nil
}

// replaceEventSeating writes pricing and config rows.  With clear the
// existing rows are deleted first.
func replaceEventSeating(ctx context.Context, q querier, eventID uint64, pricing []model.SeatPrice, cfg []model.SeatConfig, clear bool) error {
	if clear {
		if _, err := q.ExecContext(ctx, `DELETE FROM event_seat_pricing WHERE event_id = ?`, eventID); err != nil {
			return classify(err, "delete seat pricing")
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM event_seat_config WHERE event_id = ?`, eventID); err != nil {
			return classify(err, "delete seat config")
		}
	}
	if len(pricing) > 0 {
		var sb strings.Builder
		sb.WriteString("INSERT INTO event_seat_pricing (event_id, seat_type, price_cents) VALUES ")
		args := make([]interface{}, 0, len(pricing)*3)
		for i, p := range pricing {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("(?, ?, ?)")
			args = append(args, eventID, string(p.SeatType), p.PriceCents)
		}
		if _, err := q.ExecContext(ctx, sb.String(), args...); err != nil {
			return classify(err, "insert seat pricing")
		}
	}
	if err := insertSeatConfig(ctx, q, "event_seat_config", "event_id", eventID, cfg); err != nil {
		return fmt.Errorf("event %d: %w", eventID, err)
	}
	return nil
}
