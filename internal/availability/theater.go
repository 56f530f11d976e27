package availability

import (
	"github.com/iliyamo/theater-seat-reservation/internal/apperror"
	"github.com/iliyamo/theater-seat-reservation/internal/layout"
	"github.com/iliyamo/theater-seat-reservation/internal/model"
)

// NormalizeTheater prepares a theater for storage: it normalizes and
// validates the layout, checks the seat config against the geometry, folds
// seats configured inactive into the disabled set and recomputes the
// denormalized seat counts.  Validation failures are InvalidRequest.
func NormalizeTheater(th *model.Theater) error {
	th.Layout.Normalize()
	if err := th.Layout.Validate(); err != nil {
		return apperror.Invalidf("%v", err)
	}
	seen := make(map[layout.SeatKey]bool, len(th.SeatConfig))
	for i, c := range th.SeatConfig {
		if c.Section == "" {
			th.SeatConfig[i].Section = layout.Main
		}
		k := c.Key()
		if !th.Layout.Contains(k) {
			return apperror.Invalidf("seat config for %s is outside the layout", k)
		}
		if seen[k] {
			return apperror.Invalidf("duplicate seat config for %s", k)
		}
		seen[k] = true
		if c.SeatType != "" && !c.SeatType.Valid() {
			return apperror.Invalidf("seat config for %s has unknown seat type %q", k, c.SeatType)
		}
		if c.IsActive != nil && !*c.IsActive && !th.Layout.IsRemoved(k) {
			th.Layout.Disable(k)
		}
	}
	sum := Summarize(th)
	th.TotalSeats = sum.TotalSeats
	th.VIPSeats = sum.VIPSeats
	th.PremiumSeats = sum.PremiumSeats
	return nil
}

// ValidateEventSeating checks event-level pricing and overrides against the
// theater.  It normalizes empty sections to main.
func ValidateEventSeating(th *model.Theater, pricing []model.SeatPrice, cfg []model.SeatConfig) error {
	types := map[layout.SeatType]bool{}
	for _, p := range pricing {
		if !p.SeatType.Valid() {
			return apperror.Invalidf("unknown seat type %q in pricing", p.SeatType)
		}
		if p.PriceCents < 0 {
			return apperror.Invalidf("negative price for seat type %q", p.SeatType)
		}
		if types[p.SeatType] {
			return apperror.Invalidf("duplicate pricing for seat type %q", p.SeatType)
		}
		types[p.SeatType] = true
	}
	seen := map[layout.SeatKey]bool{}
	for i := range cfg {
		if cfg[i].Section == "" {
			cfg[i].Section = layout.Main
		}
		k := cfg[i].Key()
		if !th.Layout.Contains(k) {
			return apperror.Invalidf("seat config for %s is outside the layout", k)
		}
		if seen[k] {
			return apperror.Invalidf("duplicate seat config for %s", k)
		}
		seen[k] = true
		if cfg[i].SeatType != "" && !cfg[i].SeatType.Valid() {
			return apperror.Invalidf("seat config for %s has unknown seat type %q", k, cfg[i].SeatType)
		}
	}
	return nil
}
