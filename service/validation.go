package service

import (
	"fmt"
	"math/bits"
	"strings"
	"unicode/utf8"

	"driverledger/pkg/models"
)

const (
	MinRating = 1
	MaxRating = 5

	MaxNameLength  = 64
	MaxPlateLength = 32
)

func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("%w: got %d", ErrRatingOutOfRange, rating)
	}
	return nil
}

// checkedAdd fails instead of wrapping around.
func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// NormalizePlate trims and upper-cases a plate so that "ka-01-1234 " and
// "KA-01-1234" claim the same mapping.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

func validateIdentity(field string, id models.Identity) error {
	if strings.TrimSpace(id.String()) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, field)
	}
	return nil
}

// validateText checks value as it will be stored; callers trim first.
func validateText(field, value string, max int) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, field)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidArgument, field)
	}
	if len(value) > max {
		return fmt.Errorf("%w: %s longer than %d bytes", ErrInvalidArgument, field, max)
	}
	return nil
}
