package domain

import (
	"crypto/md5" //nolint:gosec // dedup identity, not security; must match existing log hashes
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// LogStatus is the delivery outcome recorded in the mail log.
type LogStatus string

const (
	LogStatusOK    LogStatus = "OK"
	LogStatusError LogStatus = "ERROR"
)

func (s LogStatus) String() string { return string(s) }

func (s LogStatus) IsValid() bool {
	switch s {
	case LogStatusOK, LogStatusError:
		return true
	}
	return false
}

func ParseLogStatusFromString(s string) (LogStatus, error) {
	st := LogStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid log status %q", ErrValidation, s)
	}
	return st, nil
}

// LogEntry is one delivery attempt read from the mail log. Entries are
// immutable; the log itself is owned by the mailer, never by this module.
type LogEntry struct {
	Status       LogStatus
	Timestamp    time.Time
	From         string
	To           string
	Subject      string
	ErrorMessage string
	Fingerprint  string
}

// IsFailure reports whether the entry is a delivery failure worth tracking.
// Errors without any recipient (e.g. "no recipient address given") are
// excluded; there is nothing to retry or report against.
func (e LogEntry) IsFailure() bool {
	return e.Status == LogStatusError && strings.TrimSpace(e.To) != ""
}

// Fingerprint computes the stable dedup identity of a log line: the md5 hex
// of the unix timestamp and the raw field values. Two reads of the same line
// always agree, across runs and across processes.
func Fingerprint(ts time.Time, from, to, subject, errorMessage string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d%s%s%s%s", ts.Unix(), from, to, subject, errorMessage))) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
