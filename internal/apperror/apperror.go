// Package apperror defines the error taxonomy shared by the availability
// resolver, the reservation engine and the storage layer. Callers branch on
// the Kind with errors.Is against the sentinel values, and read conflict
// details with errors.As.
package apperror

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/theater-seat-reservation/internal/layout"
)

// Kind classifies an error for the caller.
type Kind int

const (
	Internal Kind = iota
	NotFound
	InvalidRequest
	Conflict
	// Unavailable is a transient storage failure. No partial effect was
	// committed so the caller may retry.
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidRequest:
		return "invalid_request"
	case Conflict:
		return "conflict"
	case Unavailable:
		return "unavailable"
	}
	return "internal"
}

// Error carries a Kind plus optional details. Seats lists the offending
// seat keys for seat conflicts and invalid seat requests; Remaining is set
// on ticket-count conflicts.
type Error struct {
	Kind      Kind
	Message   string
	Seats     []layout.SeatKey
	Remaining *int
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if b.Len() == 0 {
		b.WriteString(e.Kind.String())
	}
	if len(e.Seats) > 0 {
		keys := make([]string, len(e.Seats))
		for i, k := range e.Seats {
			keys[i] = k.String()
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(keys, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrConflict)
// works regardless of message or details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound       = &Error{Kind: NotFound}
	ErrInvalidRequest = &Error{Kind: InvalidRequest}
	ErrConflict       = &Error{Kind: Conflict}
	ErrUnavailable    = &Error{Kind: Unavailable}
)

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

func Invalidf(format string, args ...any) *Error {
	return &Error{Kind: InvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: Conflict, Message: fmt.Sprintf(format, args...)}
}

// InvalidSeats reports requested seats that cannot be booked at all.
func InvalidSeats(msg string, seats []layout.SeatKey) *Error {
	s := append([]layout.SeatKey(nil), seats...)
	layout.SortSeatKeys(s)
	return &Error{Kind: InvalidRequest, Message: msg, Seats: s}
}

// SeatsTaken reports every requested seat that is already booked.
func SeatsTaken(seats []layout.SeatKey) *Error {
	s := append([]layout.SeatKey(nil), seats...)
	layout.SortSeatKeys(s)
	return &Error{Kind: Conflict, Message: "some seats are unavailable", Seats: s}
}

// NotEnoughTickets reports a ticket-count conflict with the actual
// remaining count.
func NotEnoughTickets(remaining int) *Error {
	r := remaining
	return &Error{
		Kind:      Conflict,
		Message:   fmt.Sprintf("not enough tickets: %d remaining", remaining),
		Remaining: &r,
	}
}

// Unavailablef wraps a transient storage failure.
func Unavailablef(err error, format string, args ...any) *Error {
	return &Error{Kind: Unavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
