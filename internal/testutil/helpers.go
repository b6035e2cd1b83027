// Package testutil holds assertions shared by the package tests. Fixtures
// live in testutil/fixtures and hand-written fakes in testutil/mocks.
package testutil

import (
	"math"
	"path/filepath"
	"testing"
)

// MissingPath returns a path under a fresh temp dir that does not exist,
// for exercising the missing dataset paths.
func MissingPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing", name)
}

// AssertNoError stops the test on a non-nil error
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError stops the test when err is nil
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected an error", msg)
	}
}

func AssertEqual[T comparable](t *testing.T, expected, actual T, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: want %v, got %v", msg, expected, actual)
	}
}

// AssertFloat compares wages and percentages with an absolute tolerance
func AssertFloat(t *testing.T, expected, actual, tolerance float64, msg string) {
	t.Helper()
	if math.Abs(expected-actual) > tolerance {
		t.Errorf("%s: want %v (±%v), got %v", msg, expected, tolerance, actual)
	}
}

func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Errorf("%s: condition is false", msg)
	}
}

func AssertFalse(t *testing.T, condition bool, msg string) {
	t.Helper()
	if condition {
		t.Errorf("%s: condition is true", msg)
	}
}

// SkipIfShort skips slow tests under -short
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("short mode: %s", reason)
	}
}
