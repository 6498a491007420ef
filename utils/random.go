package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GenerateCode returns 2n upper-case hex characters from crypto/rand.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// NewReference builds a checkout reference: PREFIX-{unix millis}-{random}.
func NewReference(prefix string, now time.Time) (string, error) {
	code, err := GenerateCode(4)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return fmt.Sprintf("%d-%s", now.UnixMilli(), code), nil
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), code), nil
}

// NewTicketNumber derives a ticket number from the owning purchase id,
// the issue time and a random suffix.
func NewTicketNumber(purchaseID string, now time.Time) (string, error) {
	code, err := GenerateCode(3)
	if err != nil {
		return "", err
	}
	owner := strings.ToUpper(purchaseID)
	if len(owner) > 6 {
		owner = owner[len(owner)-6:]
	}
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixNano()/int64(time.Millisecond), 36))
	return fmt.Sprintf("TKT-%s-%s-%s", owner, stamp, code), nil
}
