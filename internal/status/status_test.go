package status

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", fmt.Errorf("purchase TS-1: %w", ErrNotFound), http.StatusNotFound},
		{"conflict", ErrConflict, http.StatusConflict},
		{"insufficient", ErrInsufficientAvailability, http.StatusConflict},
		{"already used", ErrAlreadyUsed, http.StatusConflict},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"gateway down", fmt.Errorf("verify: %w", ErrPaymentUnavailable), http.StatusServiceUnavailable},
		{"verification", ErrPaymentVerificationFailed, http.StatusPaymentRequired},
		{"invalid code", ErrInvalidCode, http.StatusUnprocessableEntity},
		{"issuance", ErrIssuanceFailed, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "entry: ticket already used", Message(fmt.Errorf("ticket X: %w", ErrAlreadyUsed)))
	assert.Equal(t, "internal error", Message(errors.New("sql: connection reset")))
}
