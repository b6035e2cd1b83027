package database

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by a pool that has been shut down.
	ErrClosed = errors.New("connection pool closed")

	// ErrPoolBusy is returned when no worker frees up before the caller's
	// deadline. It reflects load, not database health.
	ErrPoolBusy = errors.New("no free worker")
)

// ConnectionError reports that the analytical store could not be opened or
// read. Callers degrade to an empty result.
type ConnectionError struct {
	Op      string // open, ping, reset
	Backend string
	Target  string // file path or host:port
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s connection to %s: %v", e.Backend, e.Op, e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is or wraps a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
