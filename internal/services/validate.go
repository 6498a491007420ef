package services

import (
	"fmt"

	"ticket-shop/internal/status"
)

// invalid tags an ozzo-validation failure for subject as ErrInvalidInput.
func invalid(subject string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %v: %w", subject, err, status.ErrInvalidInput)
}
