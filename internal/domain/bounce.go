package domain

import (
	"fmt"
	"strings"
	"time"
)

// BounceType classifies a delivery-status notification.
type BounceType string

const (
	BounceTypeHard BounceType = "hard"
	BounceTypeSoft BounceType = "soft"
)

func (t BounceType) String() string { return string(t) }

func (t BounceType) IsValid() bool {
	switch t {
	case BounceTypeHard, BounceTypeSoft:
		return true
	}
	return false
}

func ParseBounceTypeFromString(s string) (BounceType, error) {
	t := BounceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid bounce type %q", ErrValidation, s)
	}
	return t, nil
}

// MaxBounceMessageBytes caps the stored raw bounce body.
const MaxBounceMessageBytes = 65000

// BounceRecord aggregates delivery-status notifications per recipient
// address. One record per canonical address; repeat bounces increment the
// counter and replace the stored message.
type BounceRecord struct {
	Email       string
	BounceType  BounceType
	LastMessage string
	Count       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanonicalEmail normalizes an address for use as a bounce registry key.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TruncateBounceMessage bounds a raw bounce body to the stored maximum.
func TruncateBounceMessage(message string) string {
	if len(message) <= MaxBounceMessageBytes {
		return message
	}
	return message[:MaxBounceMessageBytes]
}
