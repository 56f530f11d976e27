package layout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRowLabels_PastZ(t *testing.T) {
	labels := GenerateRowLabels(28, "")
	require.Len(t, labels, 28)
	assert.Equal(t, "A", labels[0])
	assert.Equal(t, "Z", labels[25])
	assert.Equal(t, "R27", labels[26])
	assert.Equal(t, "R28", labels[27])

	balc := GenerateRowLabels(28, BalconyPrefix)
	assert.Equal(t, "BALC-A", balc[0])
	assert.Equal(t, "BALC-Z", balc[25])
	assert.Equal(t, "BALC-R27", balc[26])
	assert.Equal(t, "BALC-R28", balc[27])
}

func TestGenerateRowLabels_Empty(t *testing.T) {
	assert.Empty(t, GenerateRowLabels(0, ""))
	assert.Empty(t, GenerateRowLabels(-3, ""))
}

func TestGenerateRowLabels_Idempotent(t *testing.T) {
	assert.Equal(t, GenerateRowLabels(40, BalconyPrefix), GenerateRowLabels(40, BalconyPrefix))
}

func TestOrderedRows_StageBottom(t *testing.T) {
	l := &Layout{
		Stage:     Stage{Position: StageBottom},
		MainFloor: Floor{Rows: 3, SeatsPerRow: 4},
	}
	assert.Equal(t, []string{"C", "B", "A"}, l.OrderedRows(Main))
	assert.Equal(t, []string{"A", "B", "C"}, GenerateRowLabels(3, ""))
	// repeated calls must not reverse the stored labels twice
	assert.Equal(t, l.OrderedRows(Main), l.OrderedRows(Main))

	l.Normalize()
	assert.Equal(t, []string{"C", "B", "A"}, l.OrderedRows(Main))
	assert.Equal(t, []string{"A", "B", "C"}, l.MainFloor.RowLabels)
}

func TestOrderedRows_StageTopAndBalcony(t *testing.T) {
	l := &Layout{
		Stage:      Stage{Position: StageTop},
		MainFloor:  Floor{Rows: 2, SeatsPerRow: 2},
		HasBalcony: true,
		Balcony:    Floor{Rows: 2, SeatsPerRow: 2},
	}
	assert.Equal(t, []string{"A", "B"}, l.OrderedRows(Main))
	assert.Equal(t, []string{"BALC-A", "BALC-B"}, l.OrderedRows(Balcony))

	l.HasBalcony = false
	assert.Empty(t, l.OrderedRows(Balcony))
}

func TestDisableClearsRemoved(t *testing.T) {
	l := &Layout{MainFloor: Floor{Rows: 2, SeatsPerRow: 2}}
	k := SeatKey{Section: Main, Row: "A", Number: 1}

	l.Remove(k)
	assert.True(t, l.IsRemoved(k))

	l.Disable(k)
	assert.True(t, l.IsDisabled(k))
	assert.False(t, l.IsRemoved(k))
}

func TestNormalize_DisableWins(t *testing.T) {
	k := SeatKey{Section: Main, Row: "B", Number: 2}
	l := &Layout{
		MainFloor:     Floor{Rows: 2, SeatsPerRow: 2},
		RemovedSeats:  NewSeatSet(k),
		DisabledSeats: NewSeatSet(k),
	}
	l.Normalize()
	assert.False(t, l.IsRemoved(k))
	assert.True(t, l.IsDisabled(k))
}

func TestCorridorCount(t *testing.T) {
	l := &Layout{MainFloor: Floor{Rows: 3, SeatsPerRow: 5}}
	before := CorridorKey{Section: Main, Orientation: Horizontal, Index: -1}
	aisle := CorridorKey{Section: Main, Orientation: Vertical, Index: 0}

	assert.Equal(t, 0, l.CorridorCount(before))
	require.NoError(t, l.SetCorridor(before, 2))
	require.NoError(t, l.SetCorridor(aisle, 1))
	assert.Equal(t, 2, l.CorridorCount(before))
	assert.Equal(t, 1, l.CorridorCount(aisle))

	require.NoError(t, l.SetCorridor(before, 0))
	assert.Equal(t, 0, l.CorridorCount(before))
	assert.Error(t, l.SetCorridor(aisle, -1))
	assert.NoError(t, l.Validate())
}

func TestActiveSeatCount(t *testing.T) {
	l := &Layout{
		MainFloor:  Floor{Rows: 10, SeatsPerRow: 12},
		HasBalcony: true,
		Balcony:    Floor{Rows: 3, SeatsPerRow: 8},
	}
	assert.Equal(t, 144, l.ActiveSeatCount())

	l.Remove(SeatKey{Section: Main, Row: "A", Number: 1})
	l.Remove(SeatKey{Section: Main, Row: "A", Number: 2})
	l.Disable(SeatKey{Section: Balcony, Row: "BALC-C", Number: 8})
	assert.Equal(t, 141, l.ActiveSeatCount())

	l.HasBalcony = false
	assert.Equal(t, 118, l.ActiveSeatCount())
}

func TestContains(t *testing.T) {
	l := &Layout{MainFloor: Floor{Rows: 27, SeatsPerRow: 3}}
	assert.True(t, l.Contains(SeatKey{Section: Main, Row: "R27", Number: 3}))
	assert.False(t, l.Contains(SeatKey{Section: Main, Row: "AA", Number: 1}))
	assert.False(t, l.Contains(SeatKey{Section: Main, Row: "A", Number: 4}))
	assert.False(t, l.Contains(SeatKey{Section: Balcony, Row: "BALC-A", Number: 1}))
}

func TestValidate(t *testing.T) {
	ok := Layout{MainFloor: Floor{Rows: 2, SeatsPerRow: 2}}
	assert.NoError(t, ok.Validate())

	cases := map[string]Layout{
		"no rows":          {MainFloor: Floor{Rows: 0, SeatsPerRow: 2}},
		"balcony empty":    {MainFloor: Floor{Rows: 1, SeatsPerRow: 1}, HasBalcony: true},
		"removed outside":  {MainFloor: Floor{Rows: 1, SeatsPerRow: 1}, RemovedSeats: NewSeatSet(SeatKey{Section: Main, Row: "B", Number: 1})},
		"bad category":     {MainFloor: Floor{Rows: 1, SeatsPerRow: 1}, SeatCategories: map[SeatKey]SeatType{{Section: Main, Row: "A", Number: 1}: "gold"}},
		"h corridor range": {MainFloor: Floor{Rows: 2, SeatsPerRow: 2}, HCorridors: map[CorridorKey]int{{Section: Main, Orientation: Horizontal, Index: 2}: 1}},
		"v corridor range": {MainFloor: Floor{Rows: 2, SeatsPerRow: 2}, VCorridors: map[CorridorKey]int{{Section: Main, Orientation: Vertical, Index: 3}: 1}},
		"label mismatch":   {MainFloor: Floor{Rows: 2, SeatsPerRow: 2, RowLabels: []string{"A"}}},
		"stage":            {Stage: Stage{Position: "left"}, MainFloor: Floor{Rows: 1, SeatsPerRow: 1}},
	}
	for name, l := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, l.Validate(), ErrInvalidLayout)
		})
	}
}

func TestLayoutDocumentRoundTrip(t *testing.T) {
	l := Layout{
		Stage:         Stage{Position: StageBottom, Width: 600, Height: 40},
		MainFloor:     Floor{Rows: 2, SeatsPerRow: 3, AislePositions: []int{2}},
		HasBalcony:    true,
		Balcony:       Floor{Rows: 1, SeatsPerRow: 2},
		RemovedSeats:  NewSeatSet(SeatKey{Section: Main, Row: "A", Number: 3}),
		DisabledSeats: NewSeatSet(SeatKey{Section: Balcony, Row: "BALC-A", Number: 1}),
		HCorridors:    map[CorridorKey]int{{Section: Main, Orientation: Horizontal, Index: -1}: 2},
		VCorridors:    map[CorridorKey]int{{Section: Main, Orientation: Vertical, Index: 0}: 1},
		SeatCategories: map[SeatKey]SeatType{
			{Section: Main, Row: "A", Number: 1}: VIP,
		},
	}
	l.Normalize()

	b, err := json.Marshal(l)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"removedSeats":["main-A-3"]`)
	assert.Contains(t, string(b), `"main-h--1":2`)
	assert.Contains(t, string(b), `"balcony-BALC-A-1"`)

	var back Layout
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, l, back)
	assert.Equal(t, l.ActiveSeatCount(), back.ActiveSeatCount())
}

func TestSortSeats_FollowsRowLabels(t *testing.T) {
	l := Layout{
		MainFloor:  Floor{Rows: 3, SeatsPerRow: 4, RowLabels: []string{"Front", "AA", "B"}},
		HasBalcony: true,
		Balcony:    Floor{Rows: 28, SeatsPerRow: 2},
	}
	keys := []SeatKey{
		{Section: Balcony, Row: "BALC-R27", Number: 1},
		{Section: Main, Row: "B", Number: 1},
		{Section: Main, Row: "Q", Number: 1},
		{Section: Balcony, Row: "BALC-Z", Number: 1},
		{Section: Main, Row: "AA", Number: 2},
		{Section: Main, Row: "Front", Number: 3},
		{Section: Main, Row: "AA", Number: 1},
	}
	l.SortSeats(keys)
	assert.Equal(t, []SeatKey{
		{Section: Main, Row: "Front", Number: 3},
		{Section: Main, Row: "AA", Number: 1},
		{Section: Main, Row: "AA", Number: 2},
		{Section: Main, Row: "B", Number: 1},
		{Section: Main, Row: "Q", Number: 1},
		{Section: Balcony, Row: "BALC-Z", Number: 1},
		{Section: Balcony, Row: "BALC-R27", Number: 1},
	}, keys)
}
