package availability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-seat-reservation/internal/apperror"
	"github.com/iliyamo/theater-seat-reservation/internal/layout"
	"github.com/iliyamo/theater-seat-reservation/internal/model"
)

func key(sec layout.Section, row string, n int) layout.SeatKey {
	return layout.SeatKey{Section: sec, Row: row, Number: n}
}

func boolPtr(b bool) *bool { return &b }

func sampleTheater() *model.Theater {
	th := &model.Theater{
		ID:   7,
		Name: "Grand Hall",
		Layout: layout.Layout{
			Stage:      layout.Stage{Position: layout.StageTop},
			MainFloor:  layout.Floor{Rows: 2, SeatsPerRow: 3},
			HasBalcony: true,
			Balcony:    layout.Floor{Rows: 1, SeatsPerRow: 2},
			SeatCategories: map[layout.SeatKey]layout.SeatType{
				key(layout.Main, "A", 1): layout.VIP,
				key(layout.Main, "A", 2): layout.VIP,
			},
		},
	}
	th.Layout.Normalize()
	return th
}

func sampleEvent() *model.Event {
	return &model.Event{
		ID:                11,
		HasTheaterSeating: true,
		TicketPriceCents:  1500,
		SeatPricing: []model.SeatPrice{
			{SeatType: layout.Standard, PriceCents: 2000},
			{SeatType: layout.VIP, PriceCents: 5000},
		},
	}
}

func findSeat(t *testing.T, v *View, k layout.SeatKey) Seat {
	t.Helper()
	for _, s := range v.Seats {
		if s.Key() == k {
			return s
		}
	}
	t.Fatalf("seat %s not in view", k)
	return Seat{}
}

func TestResolve_EventOverrideBeatsTheaterCategory(t *testing.T) {
	th := sampleTheater()
	ev := sampleEvent()
	ev.SeatConfig = []model.SeatConfig{{Section: layout.Main, Row: "A", SeatNumber: 1, SeatType: layout.Standard}}

	v := Resolve(th, ev)

	a1 := findSeat(t, v, key(layout.Main, "A", 1))
	assert.Equal(t, layout.Standard, a1.SeatType)
	assert.Equal(t, int64(2000), a1.PriceCents)

	a2 := findSeat(t, v, key(layout.Main, "A", 2))
	assert.Equal(t, layout.VIP, a2.SeatType)
	assert.Equal(t, int64(5000), a2.PriceCents)
}

func TestResolve_TheaterSeatConfigBeatsLayoutCategory(t *testing.T) {
	th := sampleTheater()
	th.SeatConfig = []model.SeatConfig{{Row: "B", SeatNumber: 3, SeatType: layout.Premium}}
	ev := sampleEvent()

	v := Resolve(th, ev)
	b3 := findSeat(t, v, key(layout.Main, "B", 3))
	assert.Equal(t, layout.Premium, b3.SeatType)
	// no premium pricing entry -> falls back to the ticket price
	assert.Equal(t, int64(1500), b3.PriceCents)
}

func TestResolve_PriceFallsBackToZero(t *testing.T) {
	th := sampleTheater()
	ev := &model.Event{ID: 1, HasTheaterSeating: true}
	v := Resolve(th, ev)
	for _, s := range v.Seats {
		assert.Zero(t, s.PriceCents)
	}
}

func TestResolve_OrderSkipsRemovedAndCounts(t *testing.T) {
	th := sampleTheater()
	th.Layout.Remove(key(layout.Main, "A", 3))
	th.Layout.Disable(key(layout.Main, "B", 1))
	ev := sampleEvent()
	ev.SeatConfig = []model.SeatConfig{{Section: layout.Balcony, Row: "BALC-A", SeatNumber: 2, IsActive: boolPtr(false)}}
	ev.BookedSeats = []model.BookedSeat{
		{Key: key(layout.Main, "A", 1), BookingID: 1},
		{Key: key(layout.Balcony, "BALC-A", 1), BookingID: 2},
	}

	v := Resolve(th, ev)

	require.Len(t, v.Seats, 7)
	assert.Equal(t, key(layout.Main, "A", 1), v.Seats[0].Key())
	assert.Equal(t, key(layout.Main, "B", 3), v.Seats[4].Key())
	assert.Equal(t, key(layout.Balcony, "BALC-A", 1), v.Seats[5].Key())

	assert.False(t, findSeat(t, v, key(layout.Main, "B", 1)).IsActive)
	assert.False(t, findSeat(t, v, key(layout.Balcony, "BALC-A", 2)).IsActive)
	assert.True(t, findSeat(t, v, key(layout.Main, "A", 1)).IsBooked)

	assert.Equal(t, 2, v.BookedCount)
	// A2, B2, B3 remain
	assert.Equal(t, 3, v.AvailableCount)
}

func TestResolve_CapacityConservation(t *testing.T) {
	th := sampleTheater()
	th.Layout.Remove(key(layout.Main, "B", 2))
	th.Layout.Disable(key(layout.Balcony, "BALC-A", 2))
	ev := sampleEvent()
	ev.BookedSeats = []model.BookedSeat{{Key: key(layout.Main, "A", 2), BookingID: 3}}

	v := Resolve(th, ev)
	assert.Equal(t, th.Layout.ActiveSeatCount(), v.AvailableCount+v.BookedCount)
}

func TestCapacityAndRemaining_EventOverrides(t *testing.T) {
	th := sampleTheater()
	th.Layout.Remove(key(layout.Main, "B", 2))
	ev := sampleEvent()
	ev.SeatConfig = []model.SeatConfig{
		{Section: layout.Main, Row: "B", SeatNumber: 3, IsActive: boolPtr(false)},
		{Section: layout.Main, Row: "B", SeatNumber: 2, IsActive: boolPtr(false)},
	}
	ev.BookedSeats = []model.BookedSeat{{Key: key(layout.Main, "A", 1), BookingID: 4}}

	// 8 slots, B2 removed, B3 off for the event
	assert.Equal(t, 6, Capacity(th, ev))
	assert.Equal(t, 7, Capacity(th, nil))

	v := Resolve(th, ev)
	assert.Equal(t, 5, Remaining(th, ev))
	assert.Equal(t, v.AvailableCount, Remaining(th, ev))
	assert.Equal(t, Capacity(th, ev), v.AvailableCount+v.BookedCount)
}

func TestSummarize(t *testing.T) {
	th := sampleTheater()
	th.Layout.Stage.Position = layout.StageBottom
	th.Layout.Disable(key(layout.Main, "A", 2))

	s := Summarize(th)
	assert.Equal(t, 7, s.TotalSeats)
	assert.Equal(t, 1, s.VIPSeats)
	assert.Equal(t, []string{"B", "A"}, s.MainRows)
	assert.Equal(t, []string{"BALC-A"}, s.BalconyRows)
}

func TestNormalizeTheater_FoldsInactiveConfig(t *testing.T) {
	th := sampleTheater()
	th.SeatConfig = []model.SeatConfig{
		{Row: "B", SeatNumber: 2, IsActive: boolPtr(false)},
		{Row: "B", SeatNumber: 3, SeatType: layout.Premium},
	}
	require.NoError(t, NormalizeTheater(th))

	assert.True(t, th.Layout.IsDisabled(key(layout.Main, "B", 2)))
	assert.Equal(t, layout.Main, th.SeatConfig[0].Section)
	assert.Equal(t, 7, th.TotalSeats)
	assert.Equal(t, 2, th.VIPSeats)
	assert.Equal(t, 1, th.PremiumSeats)
}

func TestNormalizeTheater_RejectsOutsideSeat(t *testing.T) {
	th := sampleTheater()
	th.SeatConfig = []model.SeatConfig{{Row: "Z", SeatNumber: 1, SeatType: layout.VIP}}
	err := NormalizeTheater(th)
	assert.ErrorIs(t, err, apperror.ErrInvalidRequest)
}

func TestValidateEventSeating(t *testing.T) {
	th := sampleTheater()
	assert.NoError(t, ValidateEventSeating(th, sampleEvent().SeatPricing, []model.SeatConfig{{Row: "A", SeatNumber: 1, SeatType: layout.Standard}}))
	assert.ErrorIs(t, ValidateEventSeating(th, []model.SeatPrice{{SeatType: "gold", PriceCents: 1}}, nil), apperror.ErrInvalidRequest)
	assert.ErrorIs(t, ValidateEventSeating(th, []model.SeatPrice{{SeatType: layout.VIP, PriceCents: -1}}, nil), apperror.ErrInvalidRequest)
	assert.ErrorIs(t, ValidateEventSeating(th, nil, []model.SeatConfig{{Section: layout.Balcony, Row: "A", SeatNumber: 1}}), apperror.ErrInvalidRequest)
}

type fakeSource struct {
	ev  *model.Event
	th  *model.Theater
	err error
}

func (f fakeSource) LoadSeating(ctx context.Context, eventID uint64) (*model.Event, *model.Theater, error) {
	return f.ev, f.th, f.err
}

func TestService_GetAvailability(t *testing.T) {
	ev := sampleEvent()
	th := sampleTheater()

	v, err := NewService(fakeSource{ev: ev, th: th}).GetAvailability(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, len(v.Seats))
	assert.Equal(t, "Grand Hall", v.Theater.Name)

	_, err = NewService(fakeSource{err: apperror.NotFoundf("event 9 not found")}).GetAvailability(context.Background(), 9)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	plain := &model.Event{ID: 3}
	_, err = NewService(fakeSource{ev: plain}).GetAvailability(context.Background(), 3)
	assert.ErrorIs(t, err, apperror.ErrInvalidRequest)

	_, err = NewService(fakeSource{err: errors.New("io")}).GetAvailability(context.Background(), 1)
	assert.EqualError(t, err, "io")
}
