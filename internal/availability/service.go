package availability

import (
	"context"

	"github.com/iliyamo/theater-seat-reservation/internal/apperror"
	"github.com/iliyamo/theater-seat-reservation/internal/model"
)

// Source loads an event together with its theater from one consistent
// snapshot.  The theater is nil for events without theater seating.  A
// missing event must be reported as an apperror NotFound.
type Source interface {
	LoadSeating(ctx context.Context, eventID uint64) (*model.Event, *model.Theater, error)
}

// Service answers availability queries.  Results are computed on every
// call and never cached.
type Service struct {
	src Source
}

func NewService(src Source) *Service { return &Service{src: src} }

// GetAvailability returns the bookable seat list of a seated event.
func (s *Service) GetAvailability(ctx context.Context, eventID uint64) (*View, error) {
	ev, th, err := s.src.LoadSeating(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.HasTheaterSeating || th == nil {
		return nil, apperror.Invalidf("event %d has no theater seating", eventID)
	}
	return Resolve(th, ev), nil
}
