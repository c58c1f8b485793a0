package domain

import (
	"github.com/pkg/errors"
)

// Admission and cancellation outcomes. Callers classify with errors.Is.
var (
	ErrInvalidInterval = errors.New("start time must be strictly before end time")
	ErrPastReservation = errors.New("reservations cannot be created in the past")
	ErrOverlapConflict = errors.New("reservation overlaps with an existing reservation")
	ErrNotFound        = errors.New("reservation not found")
)

// Boundary errors raised before a request reaches admission.
var (
	ErrMalformedRequest   = errors.New("malformed request")
	ErrMalformedTimestamp = errors.New("timestamp must be RFC 3339 with an explicit offset")
)

// Stable error codes shared by every transport.
const (
	CodeInvalidInterval  = "invalid_interval"
	CodePastReservation  = "past_reservation"
	CodeOverlapConflict  = "overlap_conflict"
	CodeNotFound         = "not_found"
	CodeMalformedRequest = "malformed_request"
	CodeInternal         = "internal"
)

// ErrorCode classifies err. A nil error has no code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInterval):
		return CodeInvalidInterval
	case errors.Is(err, ErrPastReservation):
		return CodePastReservation
	case errors.Is(err, ErrOverlapConflict):
		return CodeOverlapConflict
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrMalformedRequest), errors.Is(err, ErrMalformedTimestamp):
		return CodeMalformedRequest
	default:
		return CodeInternal
	}
}

// ErrAdmissionIncomplete means the chain finished without storing anything.
// It indicates a misconfigured chain, never a caller mistake.
var ErrAdmissionIncomplete = errors.New("admission chain finished without a reservation")
