package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReferenceNotFound means no input dataset matches the configured
	// reference name. Every metric is reference-relative, so the run aborts.
	ErrReferenceNotFound = errors.New("reference dataset not found")

	// ErrDuplicateAlias means two datasets resolve to the same alias.
	ErrDuplicateAlias = errors.New("duplicate dataset alias")

	// ErrEmptyMask means the region selects no usable grid cell.
	ErrEmptyMask = errors.New("spatial mask selects no cells")

	// ErrDegenerateRegression means the independent variable has no variance
	// or the inputs are not finite.
	ErrDegenerateRegression = errors.New("degenerate regression")

	// ErrMissingMonth means a calendar month has no observations.
	ErrMissingMonth = errors.New("calendar month has no observations")

	// ErrUndefinedSlopeRatio means the reference slope is zero.
	ErrUndefinedSlopeRatio = errors.New("slope ratio undefined for zero reference slope")

	// ErrMissingBounds means cell bounds are required but absent.
	ErrMissingBounds = errors.New("grid cell bounds unavailable")

	// ErrIncompatibleUnits means a unit conversion is not possible.
	ErrIncompatibleUnits = errors.New("incompatible units")

	// ErrGridMismatch means two fields or a field and a mask disagree on shape.
	ErrGridMismatch = errors.New("grid mismatch")
)

// MissingMonthError reports which calendar month had no observations.
type MissingMonthError struct {
	Month time.Month
}

func (e *MissingMonthError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingMonth, e.Month)
}

// Unwrap lets errors.Is match ErrMissingMonth.
func (e *MissingMonthError) Unwrap() error {
	return ErrMissingMonth
}
