package repository

import "github.com/tphakala/parkpulse/internal/errors"

// Sentinel errors for repository operations.
var (
	// ErrParkNotFound indicates the requested park does not exist.
	ErrParkNotFound = errors.NewStd("park not found")

	// ErrRideNotFound indicates the requested ride does not exist.
	ErrRideNotFound = errors.NewStd("ride not found")

	// ErrSampleNotFound indicates no sample exists for the ride.
	ErrSampleNotFound = errors.NewStd("sample not found")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.NewStd("invalid input")
)
