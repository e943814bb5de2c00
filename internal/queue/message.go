package queue

import (
	"fmt"
	"regexp"
)

var fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// RetryMessage is the broker payload for a manual retry request.
type RetryMessage struct {
	Fingerprint   string `json:"fingerprint"`
	CorrelationID string `json:"correlationId,omitempty"`
	RequestedBy   string `json:"requestedBy,omitempty"`
}

func (m RetryMessage) Validate() error {
	if !fingerprintPattern.MatchString(m.Fingerprint) {
		return fmt.Errorf("invalid fingerprint %q", m.Fingerprint)
	}
	return nil
}
