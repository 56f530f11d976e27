// Package repository is the MySQL data access layer.  It implements the
// reservation engine's Store contract and the availability Source, plus
// the plain CRUD used by the admin handlers.  Errors leaving this package
// are apperror values so handlers can map them to HTTP status codes
// without knowing about MySQL.
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/theater-seat-reservation/internal/apperror"
)

// ErrTheaterNotFound is returned when no theater has the requested id.
var ErrTheaterNotFound = apperror.New(apperror.NotFound, "theater not found")

// ErrEventNotFound is returned when no event has the requested id.
var ErrEventNotFound = apperror.New(apperror.NotFound, "event not found")

// ErrBookingNotFound is returned when no booking has the requested id.
var ErrBookingNotFound = apperror.New(apperror.NotFound, "booking not found")

// ErrTheaterInUse is returned when a theater's geometry is changed while
// one of its events still holds booked seats.
var ErrTheaterInUse = apperror.New(apperror.Conflict, "theater has events with booked seats")

// MySQL server error numbers we translate.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errLockDeadlock    = 1213
)

// classify converts a driver error into an apperror.  Values that already
// are apperrors pass through unchanged.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return err
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDupEntry:
			return &apperror.Error{Kind: apperror.Conflict, Message: op + ": duplicate key", Err: err}
		case errLockDeadlock, errLockWaitTimeout:
			return apperror.Unavailablef(err, "%s", op)
		}
	}
	if isTransient(err) {
		return apperror.Unavailablef(err, "%s", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// notFound maps sql.ErrNoRows to the given sentinel.
func notFound(err error, sentinel *apperror.Error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return classify(err, op)
}
