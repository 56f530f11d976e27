package layout

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Section identifies the floor a seat belongs to.
type Section string

const (
	Main    Section = "main"
	Balcony Section = "balcony"
)

// ParseSection accepts "main" or "balcony" (case-insensitive). An empty
// string resolves to Main.
func ParseSection(s string) (Section, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Main):
		return Main, nil
	case string(Balcony):
		return Balcony, nil
	}
	return "", fmt.Errorf("unknown section %q", s)
}

// SeatType is the pricing tier attached to a seat.
type SeatType string

const (
	Standard   SeatType = "standard"
	VIP        SeatType = "vip"
	Premium    SeatType = "premium"
	Wheelchair SeatType = "wheelchair"
)

// Valid reports whether t is one of the known seat categories.
func (t SeatType) Valid() bool {
	switch t {
	case Standard, VIP, Premium, Wheelchair:
		return true
	}
	return false
}

// SeatKey uniquely identifies one physical seat.
//
// As a JSON value it encodes as {"section","row","seat_number"}; as a map
// key (and inside SeatSet) it uses the compact text form "main-A-1".
type SeatKey struct {
	Section Section
	Row     string
	Number  int
}

func (k SeatKey) String() string {
	return fmt.Sprintf("%s-%s-%d", k.Section, k.Row, k.Number)
}

// ParseSeatKey parses the text form produced by String. Row labels may
// themselves contain dashes (BALC-A), so the section is taken up to the
// first dash and the seat number after the last one.
func ParseSeatKey(s string) (SeatKey, error) {
	first := strings.IndexByte(s, '-')
	last := strings.LastIndexByte(s, '-')
	if first <= 0 || last <= first+1 || last == len(s)-1 {
		return SeatKey{}, fmt.Errorf("invalid seat key %q", s)
	}
	sec, err := ParseSection(s[:first])
	if err != nil {
		return SeatKey{}, fmt.Errorf("invalid seat key %q: %w", s, err)
	}
	n, err := strconv.Atoi(s[last+1:])
	if err != nil || n < 1 {
		return SeatKey{}, fmt.Errorf("invalid seat number in %q", s)
	}
	return SeatKey{Section: sec, Row: s[first+1 : last], Number: n}, nil
}

func (k SeatKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *SeatKey) UnmarshalText(b []byte) error {
	parsed, err := ParseSeatKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

type seatKeyJSON struct {
	Section    string `json:"section"`
	Row        string `json:"row"`
	SeatNumber int    `json:"seat_number"`
}

func (k SeatKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(seatKeyJSON{Section: string(k.Section), Row: k.Row, SeatNumber: k.Number})
}

// UnmarshalJSON accepts the object form; a missing section defaults to main.
func (k *SeatKey) UnmarshalJSON(b []byte) error {
	var raw seatKeyJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	sec, err := ParseSection(raw.Section)
	if err != nil {
		return err
	}
	*k = SeatKey{Section: sec, Row: strings.TrimSpace(raw.Row), Number: raw.SeatNumber}
	return nil
}

// Less orders keys by section (main first), row, then seat number.  Rows
// follow generation order: shorter labels first, so Z sorts before R27 and
// R99 before R100.  Layout.SortSeats orders by a layout's own labels.
func (k SeatKey) Less(o SeatKey) bool {
	if k.Section != o.Section {
		return k.Section == Main
	}
	if k.Row != o.Row {
		return rowLess(k.Row, o.Row)
	}
	return k.Number < o.Number
}

func rowLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// SortSeatKeys sorts keys in place using SeatKey.Less.
func SortSeatKeys(keys []SeatKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// Orientation of a corridor: horizontal gaps sit between rows, vertical
// gaps between seat columns.
type Orientation string

const (
	Horizontal Orientation = "h"
	Vertical   Orientation = "v"
)

// CorridorKey locates a corridor. Horizontal corridors sit after row index
// Index (-1 is before the first row); vertical corridors sit after column
// index Index (0 is before the first seat).
type CorridorKey struct {
	Section     Section
	Orientation Orientation
	Index       int
}

func (k CorridorKey) String() string {
	return fmt.Sprintf("%s-%s-%d", k.Section, k.Orientation, k.Index)
}

// ParseCorridorKey parses "main-h-3" or "main-h--1".
func ParseCorridorKey(s string) (CorridorKey, error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return CorridorKey{}, fmt.Errorf("invalid corridor key %q", s)
	}
	sec, err := ParseSection(parts[0])
	if err != nil || parts[0] == "" {
		return CorridorKey{}, fmt.Errorf("invalid corridor key %q", s)
	}
	o := Orientation(parts[1])
	if o != Horizontal && o != Vertical {
		return CorridorKey{}, fmt.Errorf("invalid corridor orientation in %q", s)
	}
	idx, err := strconv.Atoi(parts[2])
	if err != nil {
		return CorridorKey{}, fmt.Errorf("invalid corridor index in %q", s)
	}
	return CorridorKey{Section: sec, Orientation: o, Index: idx}, nil
}

func (k CorridorKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *CorridorKey) UnmarshalText(b []byte) error {
	parsed, err := ParseCorridorKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// SeatSet is a set of seat keys. It serializes as a sorted array of text
// keys so stored documents are stable.
type SeatSet map[SeatKey]struct{}

func NewSeatSet(keys ...SeatKey) SeatSet {
	s := make(SeatSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s SeatSet) Has(k SeatKey) bool {
	_, ok := s[k]
	return ok
}

// Keys returns the members in SeatKey.Less order.
func (s SeatSet) Keys() []SeatKey {
	out := make([]SeatKey, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	SortSeatKeys(out)
	return out
}

func (s SeatSet) MarshalJSON() ([]byte, error) {
	keys := s.Keys()
	strs := make([]string, len(keys))
	for i, k := range keys {
		strs[i] = k.String()
	}
	return json.Marshal(strs)
}

func (s *SeatSet) UnmarshalJSON(b []byte) error {
	var strs []string
	if err := json.Unmarshal(b, &strs); err != nil {
		return err
	}
	set := make(SeatSet, len(strs))
	for _, str := range strs {
		k, err := ParseSeatKey(str)
		if err != nil {
			return err
		}
		set[k] = struct{}{}
	}
	*s = set
	return nil
}
