package service

import (
	"errors"

	"driverledger/storage"
)

var (
	ErrRatingOutOfRange   = errors.New("rating must be between 1 and 5")
	ErrInvalidAuthority   = errors.New("invalid platform authority")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// ErrorKind names the failure class of err for metrics and transports.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRatingOutOfRange):
		return "rating_out_of_range"
	case errors.Is(err, ErrInvalidAuthority):
		return "invalid_authority"
	case errors.Is(err, ErrArithmeticOverflow):
		return "arithmetic_overflow"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, storage.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, storage.ErrRecordNotFound):
		return "record_not_found"
	case errors.Is(err, storage.ErrInsufficientResources):
		return "insufficient_resources"
	case errors.Is(err, storage.ErrConflictingMutation):
		return "conflicting_mutation"
	default:
		return "internal"
	}
}

// isRejection reports whether err is an expected refusal rather than a fault.
func isRejection(err error) bool {
	return ErrorKind(err) != "internal"
}
