// Package layout models a theater's physical seat grid: rows, sections,
// corridors, removed and disabled slots, seat categories and stage placement.
// Everything here is pure; nothing performs I/O or knows about bookings.
package layout

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// StagePosition says where the stage sits relative to the seat grid.
type StagePosition string

const (
	StageTop    StagePosition = "top"
	StageBottom StagePosition = "bottom"
)

type Stage struct {
	Position StagePosition `json:"position"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
}

// Floor describes one section's grid. RowLabels may be empty, in which
// case labels are generated on demand.
type Floor struct {
	Rows           int      `json:"rows"`
	SeatsPerRow    int      `json:"seatsPerRow"`
	AislePositions []int    `json:"aislePositions,omitempty"`
	RowLabels      []string `json:"rowLabels,omitempty"`
}

// Label is a decorative annotation drawn on the seat map. It carries no
// semantics for availability or booking.
type Label struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Layout is the persisted geometry document of a theater.
type Layout struct {
	Stage          Stage                `json:"stage"`
	MainFloor      Floor                `json:"mainFloor"`
	HasBalcony     bool                 `json:"hasBalcony"`
	Balcony        Floor                `json:"balcony"`
	RemovedSeats   SeatSet              `json:"removedSeats"`
	DisabledSeats  SeatSet              `json:"disabledSeats"`
	HCorridors     map[CorridorKey]int  `json:"hCorridors,omitempty"`
	VCorridors     map[CorridorKey]int  `json:"vCorridors,omitempty"`
	SeatCategories map[SeatKey]SeatType `json:"seatCategories,omitempty"`
	Labels         []Label              `json:"labels,omitempty"`
}

// BalconyPrefix is prepended to generated balcony row labels.
const BalconyPrefix = "BALC-"

// GenerateRowLabels returns count labels: A..Z for the first 26 rows, then
// R27, R28, ... Each label carries prefix.
func GenerateRowLabels(count int, prefix string) []string {
	if count <= 0 {
		return []string{}
	}
	out := make([]string, count)
	for i := 0; i < count; i++ {
		out[i] = prefix + rowLabel(i)
	}
	return out
}

func rowLabel(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return "R" + strconv.Itoa(i+1)
}

// RowPrefix returns the label prefix used for rows in sec.
func RowPrefix(sec Section) string {
	if sec == Balcony {
		return BalconyPrefix
	}
	return ""
}

// Floor returns the grid of sec. The balcony only exists when HasBalcony
// is set.
func (l *Layout) Floor(sec Section) (Floor, bool) {
	switch sec {
	case Main:
		return l.MainFloor, true
	case Balcony:
		if l.HasBalcony {
			return l.Balcony, true
		}
	}
	return Floor{}, false
}

// Sections lists the sections present in the layout, main first.
func (l *Layout) Sections() []Section {
	if l.HasBalcony {
		return []Section{Main, Balcony}
	}
	return []Section{Main}
}

// RowLabels returns the row labels of sec in generation order. Stored
// labels are used when they match the row count; otherwise labels are
// generated.
func (l *Layout) RowLabels(sec Section) []string {
	f, ok := l.Floor(sec)
	if !ok {
		return []string{}
	}
	if len(f.RowLabels) == f.Rows && f.Rows > 0 {
		out := make([]string, len(f.RowLabels))
		copy(out, f.RowLabels)
		return out
	}
	return GenerateRowLabels(f.Rows, RowPrefix(sec))
}

// OrderedRows returns the rows of sec in top-to-bottom rendering order.
// With the stage at the bottom the generation order is reversed so the
// first row always sits nearest the stage.
func (l *Layout) OrderedRows(sec Section) []string {
	rows := l.RowLabels(sec)
	if l.Stage.Position == StageBottom {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	return rows
}

// Seats enumerates every physical seat of sec (removed ones included) in
// generation order.
func (l *Layout) Seats(sec Section) []SeatKey {
	f, ok := l.Floor(sec)
	if !ok {
		return nil
	}
	rows := l.RowLabels(sec)
	out := make([]SeatKey, 0, f.Rows*f.SeatsPerRow)
	for _, r := range rows {
		for n := 1; n <= f.SeatsPerRow; n++ {
			out = append(out, SeatKey{Section: sec, Row: r, Number: n})
		}
	}
	return out
}

// Contains reports whether k lies inside the geometry.
func (l *Layout) Contains(k SeatKey) bool {
	f, ok := l.Floor(k.Section)
	if !ok || k.Number < 1 || k.Number > f.SeatsPerRow {
		return false
	}
	for _, r := range l.RowLabels(k.Section) {
		if r == k.Row {
			return true
		}
	}
	return false
}

// SortSeats sorts keys in physical order: main before balcony, rows by
// their position in RowLabels, then seat number.  Rows the layout does not
// know sort after its own rows, in SeatKey.Less order.
func (l *Layout) SortSeats(keys []SeatKey) {
	pos := map[Section]map[string]int{}
	for _, sec := range l.Sections() {
		m := map[string]int{}
		for i, r := range l.RowLabels(sec) {
			m[r] = i
		}
		pos[sec] = m
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Section != b.Section || a.Row == b.Row {
			return a.Less(b)
		}
		ia, okA := pos[a.Section][a.Row]
		ib, okB := pos[b.Section][b.Row]
		switch {
		case okA && okB:
			return ia < ib
		case okA != okB:
			return okA
		}
		return a.Less(b)
	})
}

func (l *Layout) IsRemoved(k SeatKey) bool { return l.RemovedSeats.Has(k) }

func (l *Layout) IsDisabled(k SeatKey) bool { return l.DisabledSeats.Has(k) }

// Remove marks k as a removed slot. A removed seat is no longer disabled.
func (l *Layout) Remove(k SeatKey) {
	if l.RemovedSeats == nil {
		l.RemovedSeats = SeatSet{}
	}
	delete(l.DisabledSeats, k)
	l.RemovedSeats[k] = struct{}{}
}

// Disable marks k as disabled and clears it from the removed set.
func (l *Layout) Disable(k SeatKey) {
	if l.DisabledSeats == nil {
		l.DisabledSeats = SeatSet{}
	}
	delete(l.RemovedSeats, k)
	l.DisabledSeats[k] = struct{}{}
}

// Restore clears k from both the removed and disabled sets.
func (l *Layout) Restore(k SeatKey) {
	delete(l.RemovedSeats, k)
	delete(l.DisabledSeats, k)
}

// CorridorCount returns the number of stacked corridor segments at k.
func (l *Layout) CorridorCount(k CorridorKey) int {
	m := l.HCorridors
	if k.Orientation == Vertical {
		m = l.VCorridors
	}
	return m[k]
}

// SetCorridor stores count segments at k. A zero count deletes the entry.
func (l *Layout) SetCorridor(k CorridorKey, count int) error {
	if count < 0 {
		return fmt.Errorf("corridor %s: negative count %d", k, count)
	}
	var m *map[CorridorKey]int
	switch k.Orientation {
	case Horizontal:
		m = &l.HCorridors
	case Vertical:
		m = &l.VCorridors
	default:
		return fmt.Errorf("corridor %s: unknown orientation", k)
	}
	if count == 0 {
		delete(*m, k)
		return nil
	}
	if *m == nil {
		*m = map[CorridorKey]int{}
	}
	(*m)[k] = count
	return nil
}

// GeometrySeatCount is the number of grid slots across all present sections.
func (l *Layout) GeometrySeatCount() int {
	n := l.MainFloor.Rows * l.MainFloor.SeatsPerRow
	if l.HasBalcony {
		n += l.Balcony.Rows * l.Balcony.SeatsPerRow
	}
	return n
}

// ActiveSeatCount is the geometry total minus removed and disabled seats.
// Set members outside the geometry are not subtracted.
func (l *Layout) ActiveSeatCount() int {
	n := l.GeometrySeatCount()
	for k := range l.RemovedSeats {
		if l.Contains(k) {
			n--
		}
	}
	for k := range l.DisabledSeats {
		if l.Contains(k) && !l.RemovedSeats.Has(k) {
			n--
		}
	}
	return n
}

// Category returns the layout-level category of k, standard when unset.
func (l *Layout) Category(k SeatKey) SeatType {
	if t, ok := l.SeatCategories[k]; ok && t != "" {
		return t
	}
	return Standard
}

// Normalize fills in missing row labels, enforces disable-wins between the
// removed and disabled sets and drops empty corridor entries. It is
// idempotent.
func (l *Layout) Normalize() {
	if l.Stage.Position == "" {
		l.Stage.Position = StageTop
	}
	if len(l.MainFloor.RowLabels) != l.MainFloor.Rows {
		l.MainFloor.RowLabels = GenerateRowLabels(l.MainFloor.Rows, "")
	}
	if l.HasBalcony && len(l.Balcony.RowLabels) != l.Balcony.Rows {
		l.Balcony.RowLabels = GenerateRowLabels(l.Balcony.Rows, BalconyPrefix)
	}
	if l.RemovedSeats == nil {
		l.RemovedSeats = SeatSet{}
	}
	if l.DisabledSeats == nil {
		l.DisabledSeats = SeatSet{}
	}
	for k := range l.DisabledSeats {
		delete(l.RemovedSeats, k)
	}
	for k, v := range l.HCorridors {
		if v == 0 {
			delete(l.HCorridors, k)
		}
	}
	for k, v := range l.VCorridors {
		if v == 0 {
			delete(l.VCorridors, k)
		}
	}
}

// ErrInvalidLayout wraps every Validate failure.
var ErrInvalidLayout = errors.New("invalid layout")

// Validate checks the geometry and that every key refers to a seat or gap
// inside it.
func (l *Layout) Validate() error {
	if l.Stage.Position != "" && l.Stage.Position != StageTop && l.Stage.Position != StageBottom {
		return fmt.Errorf("%w: stage position %q", ErrInvalidLayout, l.Stage.Position)
	}
	if err := validateFloor("main floor", l.MainFloor); err != nil {
		return err
	}
	if l.HasBalcony {
		if err := validateFloor("balcony", l.Balcony); err != nil {
			return err
		}
	}
	for _, set := range []SeatSet{l.RemovedSeats, l.DisabledSeats} {
		for k := range set {
			if !l.Contains(k) {
				return fmt.Errorf("%w: seat %s outside geometry", ErrInvalidLayout, k)
			}
		}
	}
	for k, t := range l.SeatCategories {
		if !l.Contains(k) {
			return fmt.Errorf("%w: category for seat %s outside geometry", ErrInvalidLayout, k)
		}
		if !t.Valid() {
			return fmt.Errorf("%w: seat %s has unknown category %q", ErrInvalidLayout, k, t)
		}
	}
	for k, v := range l.HCorridors {
		if err := l.validateCorridor(k, v, Horizontal); err != nil {
			return err
		}
	}
	for k, v := range l.VCorridors {
		if err := l.validateCorridor(k, v, Vertical); err != nil {
			return err
		}
	}
	return nil
}

func validateFloor(name string, f Floor) error {
	if f.Rows < 1 || f.SeatsPerRow < 1 {
		return fmt.Errorf("%w: %s needs at least one row and one seat per row", ErrInvalidLayout, name)
	}
	if len(f.RowLabels) != 0 && len(f.RowLabels) != f.Rows {
		return fmt.Errorf("%w: %s has %d row labels for %d rows", ErrInvalidLayout, name, len(f.RowLabels), f.Rows)
	}
	seen := make(map[string]bool, len(f.RowLabels))
	for _, r := range f.RowLabels {
		if r == "" || seen[r] {
			return fmt.Errorf("%w: %s has empty or duplicate row label %q", ErrInvalidLayout, name, r)
		}
		seen[r] = true
	}
	for _, a := range f.AislePositions {
		if a < 0 || a > f.SeatsPerRow {
			return fmt.Errorf("%w: %s aisle position %d out of range", ErrInvalidLayout, name, a)
		}
	}
	return nil
}

func (l *Layout) validateCorridor(k CorridorKey, count int, want Orientation) error {
	if k.Orientation != want {
		return fmt.Errorf("%w: corridor %s stored under wrong orientation", ErrInvalidLayout, k)
	}
	if count < 0 {
		return fmt.Errorf("%w: corridor %s has negative count", ErrInvalidLayout, k)
	}
	f, ok := l.Floor(k.Section)
	if !ok {
		return fmt.Errorf("%w: corridor %s in missing section", ErrInvalidLayout, k)
	}
	if want == Horizontal && (k.Index < -1 || k.Index >= f.Rows) {
		return fmt.Errorf("%w: corridor %s index out of range", ErrInvalidLayout, k)
	}
	if want == Vertical && (k.Index < 0 || k.Index > f.SeatsPerRow) {
		return fmt.Errorf("%w: corridor %s index out of range", ErrInvalidLayout, k)
	}
	return nil
}
