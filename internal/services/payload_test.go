package services

import (
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-shop/internal/status"
)

func TestPayloadSigner_RoundTrip(t *testing.T) {
	s := NewPayloadSigner("secret")

	payload, err := s.Sign("TKT-ABC123-LX1-9F00AA", "TS-1", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(payload, "."))

	number, ref, err := s.Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, "TKT-ABC123-LX1-9F00AA", number)
	assert.Equal(t, "TS-1", ref)
}

func TestPayloadSigner_RejectsTampering(t *testing.T) {
	s := NewPayloadSigner("secret")
	payload, err := s.Sign("TKT-1", "TS-1", fixedNow)
	require.NoError(t, err)

	_, _, err = NewPayloadSigner("other").Parse(payload)
	assert.ErrorIs(t, err, status.ErrInvalidCode)

	_, _, err = s.Parse(payload + "x")
	assert.ErrorIs(t, err, status.ErrInvalidCode)
}

func TestPayloadSigner_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"tn": "TKT-1", "ref": "TS-1"})
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, _, err = NewPayloadSigner("secret").Parse(unsigned)

	assert.ErrorIs(t, err, status.ErrInvalidCode)
}
