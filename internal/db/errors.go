package db

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/kailas-cloud/consolidator/internal/domain"
)

// Sentinel errors returned by drivers.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	ErrIndexExists = errors.New("db: index already exists")
	ErrUnsupported = errors.New("db: operation not supported by driver")
)

// Op names the command behind a failed call.
type Op string

// Commands issued by the drivers.
const (
	OpPing        Op = "PING"
	OpCreateIndex Op = "FT.CREATE"
	OpIndexInfo   Op = "FT.INFO"
	OpSearch      Op = "FT.SEARCH"
	OpDel         Op = "DEL"
	OpHGetAll     Op = "HGETALL"
	OpHSet        Op = "HSET"
	OpExists      Op = "EXISTS"
	OpScan        Op = "SCAN"
	OpGet         Op = "GET"
	OpSet         Op = "SET"
)

// Error records the command and key of a failed driver call.
type Error struct {
	Op  Op
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return string(e.Op) + ": " + e.Err.Error()
	}
	return string(e.Op) + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Classify turns a driver failure into a *domain.BackendError reported under
// backend, so callers see ErrBackendUnavailable. Nil, not-found, unsupported,
// cancellation and already classified errors are returned unchanged.
func Classify(backend string, err error) error {
	var be *domain.BackendError
	switch {
	case err == nil,
		errors.Is(err, ErrKeyNotFound),
		errors.Is(err, ErrIndexExists),
		errors.Is(err, ErrUnsupported),
		errors.Is(err, context.Canceled),
		errors.As(err, &be):
		return err
	}
	return domain.NewBackendError(backend, kindOf(err), 0, err)
}

func kindOf(err error) domain.BackendKind {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return domain.BackendTimeout
	case errors.As(err, &netErr),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET):
		return domain.BackendConnection
	default:
		return domain.BackendServer
	}
}
