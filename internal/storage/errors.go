package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/h1bexplorer/internal/database"
)

var (
	// ErrUnknownColumn is returned when a clause or spec names a column
	// outside the petitions schema.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrInvalidClause is returned for a clause whose value does not fit its operator.
	ErrInvalidClause = errors.New("invalid clause")

	// ErrInvalidAggregation is returned for a malformed AggregationSpec.
	ErrInvalidAggregation = errors.New("invalid aggregation")

	// ErrCircuitOpen is returned without touching the database while the
	// breaker is open.
	ErrCircuitOpen = errors.New("database circuit breaker open")
)

// QueryExecutionError wraps a failure of a well formed query: a driver error,
// a resource limit hit by the engine, or a scan failure.
type QueryExecutionError struct {
	Op    string
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query %s failed: %v", e.Op, e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// ErrorType classifies err for metrics labels and API warning codes
func ErrorType(err error) string {
	var qe *QueryExecutionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, database.ErrPoolBusy):
		return "timeout"
	case database.IsConnectionError(err), errors.Is(err, database.ErrClosed):
		return "connection"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, ErrUnknownColumn), errors.Is(err, ErrInvalidClause), errors.Is(err, ErrInvalidAggregation):
		return "invalid_query"
	case errors.As(err, &qe):
		return "query"
	}
	return "unknown"
}
