package details

import (
	"errors"
	"fmt"
)

var ErrInvalidDetails = errors.New("invalid details")

func missing(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidDetails, field)
}

func tooLong(field string, max int) error {
	return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidDetails, field, max)
}
