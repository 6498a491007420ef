package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ticket-shop/internal/status"
)

// ticketClaims is what a ticket QR carries.
type ticketClaims struct {
	TicketNumber string `json:"tn"`
	Reference    string `json:"ref"`
	jwt.RegisteredClaims
}

// PayloadSigner signs and verifies ticket QR payloads with HS256.
type PayloadSigner struct {
	key []byte
}

func NewPayloadSigner(key string) *PayloadSigner {
	return &PayloadSigner{key: []byte(key)}
}

func (s *PayloadSigner) Sign(ticketNumber, reference string, issuedAt time.Time) (string, error) {
	claims := ticketClaims{
		TicketNumber: ticketNumber,
		Reference:    reference,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issuedAt),
			Subject:  ticketNumber,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign ticket payload: %w", err)
	}
	return signed, nil
}

// Parse returns the ticket number and reference of a signed payload.
func (s *PayloadSigner) Parse(payload string) (string, string, error) {
	claims := &ticketClaims{}
	token, err := jwt.ParseWithClaims(payload, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", "", fmt.Errorf("ticket payload: %w", status.ErrInvalidCode)
	}
	if claims.TicketNumber == "" {
		return "", "", fmt.Errorf("ticket payload has no ticket number: %w", status.ErrInvalidCode)
	}
	return claims.TicketNumber, claims.Reference, nil
}
