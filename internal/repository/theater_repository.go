package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iliyamo/theater-seat-reservation/internal/availability"
	"github.com/iliyamo/theater-seat-reservation/internal/layout"
	"github.com/iliyamo/theater-seat-reservation/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TheaterRepo stores theaters, their layout document and their seat
// config rows.
type TheaterRepo struct {
	db *sql.DB
}

func NewTheaterRepo(db *sql.DB) *TheaterRepo { return &TheaterRepo{db: db} }

const theaterColumns = `id, owner_id, name, description, is_active, layout,
	total_seats, vip_seats, premium_seats, created_at, updated_at`

// Create inserts th and its seat config in one transaction.  th must
// already be normalized; ID and timestamps are filled in.
func (r *TheaterRepo) Create(ctx context.Context, th *model.Theater) error {
	doc, err := json.Marshal(th.Layout)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
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

	const q = `INSERT INTO theaters (owner_id, name, description, is_active, layout, total_seats, vip_seats, premium_seats)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, th.OwnerID, th.Name, th.Description, th.IsActive, doc,
		th.TotalSeats, th.VIPSeats, th.PremiumSeats)
	if err != nil {
		return classify(err, "insert theater")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify(err, "insert theater")
	}
	th.ID = uint64(id)
	if err := insertSeatConfig(ctx, tx, "theater_seat_config", "theater_id", th.ID, th.SeatConfig); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM theaters WHERE id = ?`, th.ID).
		Scan(&th.CreatedAt, &th.UpdatedAt); err != nil {
		return classify(err, "select theater")
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "commit")
	}
	committed = true
	return nil
}

// Update replaces the theater's descriptive fields, layout and seat config.
// The change is refused with ErrTheaterInUse while any of its events hold
// booked seats; otherwise the capacity of each seated event is recomputed
// from the new layout and that event's overrides in the same transaction.
func (r *TheaterRepo) Update(ctx context.Context, th *model.Theater) error {
	doc, err := json.Marshal(th.Layout)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
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

	var id uint64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM theaters WHERE id = ? FOR UPDATE`, th.ID).Scan(&id); err != nil {
		return notFound(err, ErrTheaterNotFound, "lock theater")
	}
	// Event rows are locked after the theater row.  Booking transactions
	// lock events only, so the order cannot cycle.
	locked, err := tx.QueryContext(ctx, `SELECT id FROM events WHERE theater_id = ? FOR UPDATE`, th.ID)
	if err != nil {
		return classify(err, "lock events")
	}
	var eventIDs []uint64
	for locked.Next() {
		var id uint64
		if err := locked.Scan(&id); err != nil {
			locked.Close()
			return classify(err, "lock events")
		}
		eventIDs = append(eventIDs, id)
	}
	locked.Close()
	if err := locked.Err(); err != nil {
		return classify(err, "lock events")
	}
	var booked int
	const qBooked = `SELECT COUNT(*) FROM event_booked_seats b
	                 JOIN events e ON e.id = b.event_id
	                 WHERE e.theater_id = ?`
	if err := tx.QueryRowContext(ctx, qBooked, th.ID).Scan(&booked); err != nil {
		return classify(err, "count booked seats")
	}
	if booked > 0 {
		return ErrTheaterInUse
	}

	const q = `UPDATE theaters
	           SET name = ?, description = ?, is_active = ?, layout = ?,
	               total_seats = ?, vip_seats = ?, premium_seats = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, th.Name, th.Description, th.IsActive, doc,
		th.TotalSeats, th.VIPSeats, th.PremiumSeats, th.ID); err != nil {
		return classify(err, "update theater")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM theater_seat_config WHERE theater_id = ?`, th.ID); err != nil {
		return classify(err, "delete seat config")
	}
	if err := insertSeatConfig(ctx, tx, "theater_seat_config", "theater_id", th.ID, th.SeatConfig); err != nil {
		return err
	}
	// No seat is booked, so each event's remaining count is its capacity.
	const qEvents = `UPDATE events SET total_tickets = ?, remaining_tickets = ?, updated_at = CURRENT_TIMESTAMP
	                 WHERE id = ? AND has_theater_seating = 1`
	for _, id := range eventIDs {
		cfg, err := loadSeatConfig(ctx, tx, "event_seat_config", "event_id", id)
		if err != nil {
			return err
		}
		n := availability.Capacity(th, &model.Event{ID: id, SeatConfig: cfg})
		if _, err := tx.ExecContext(ctx, qEvents, n, n, id); err != nil {
			return classify(err, "resize events")
		}
	}
	if err := tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM theaters WHERE id = ?`, th.ID).
		Scan(&th.CreatedAt, &th.UpdatedAt); err != nil {
		return classify(err, "select theater")
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "commit")
	}
	committed = true
	return nil
}

// GetByID loads a theater with its layout and seat config.
func (r *TheaterRepo) GetByID(ctx context.Context, id uint64) (*model.Theater, error) {
	return getTheater(ctx, r.db, id)
}

// List returns every theater ordered by id.  Seat config rows are not
// loaded.
func (r *TheaterRepo) List(ctx context.Context) ([]*model.Theater, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+theaterColumns+` FROM theaters ORDER BY id`)
	if err != nil {
		return nil, classify(err, "list theaters")
	}
	defer rows.Close()

	var out []*model.Theater
	for rows.Next() {
		th, err := scanTheater(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, th)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list theaters")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTheater(s rowScanner) (*model.Theater, error) {
	var (
		th  model.Theater
		doc []byte
	)
	if err := s.Scan(&th.ID, &th.OwnerID, &th.Name, &th.Description, &th.IsActive, &doc,
		&th.TotalSeats, &th.VIPSeats, &th.PremiumSeats, &th.CreatedAt, &th.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(doc, &th.Layout); err != nil {
		return nil, fmt.Errorf("decode layout of theater %d: %w", th.ID, err)
	}
	return &th, nil
}

func getTheater(ctx context.Context, q querier, id uint64) (*model.Theater, error) {
	th, err := scanTheater(q.QueryRowContext(ctx, `SELECT `+theaterColumns+` FROM theaters WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, ErrTheaterNotFound, "select theater")
	}
	if th.SeatConfig, err = loadSeatConfig(ctx, q, "theater_seat_config", "theater_id", id); err != nil {
		return nil, err
	}
	return th, nil
}

// loadSeatConfig reads override rows from table, which is either
// theater_seat_config or event_seat_config.
func loadSeatConfig(ctx context.Context, q querier, table, owner string, id uint64) ([]model.SeatConfig, error) {
	query := fmt.Sprintf(`SELECT section, row_label, seat_number, seat_type, is_active
	                      FROM %s WHERE %s = ? ORDER BY section, row_label, seat_number`, table, owner)
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, classify(err, "select "+table)
	}
	defer rows.Close()

	var out []model.SeatConfig
	for rows.Next() {
		var (
			c      model.SeatConfig
			sec    string
			typ    sql.NullString
			active sql.NullBool
		)
		if err := rows.Scan(&sec, &c.Row, &c.SeatNumber, &typ, &active); err != nil {
			return nil, classify(err, "scan "+table)
		}
		c.Section = layout.Section(sec)
		if typ.Valid {
			c.SeatType = layout.SeatType(typ.String)
		}
		if active.Valid {
			v := active.Bool
			c.IsActive = &v
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "select "+table)
	}
	return out, nil
}

// insertSeatConfig writes all override rows with one multi-row INSERT.
// An empty slice is a no-op.
func insertSeatConfig(ctx context.Context, q querier, table, owner string, id uint64, cfg []model.SeatConfig) error {
	if len(cfg) == 0 {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s, section, row_label, seat_number, seat_type, is_active) VALUES ", table, owner)
	args := make([]interface{}, 0, len(cfg)*6)
	for i, c := range cfg {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		k := c.Key()
		var typ, active interface{}
		if c.SeatType != "" {
			typ = string(c.SeatType)
		}
		if c.IsActive != nil {
			active = *c.IsActive
		}
		args = append(args, id, string(k.Section), k.Row, k.Number, typ, active)
	}
	if _, err := q.ExecContext(ctx, sb.String(), args...); err != nil {
		return classify(err, "insert "+table)
	}
	return nil
}
