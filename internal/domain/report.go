package domain

import "time"

// ReportedFailure marks a log entry fingerprint as already surfaced in an
// operator report. Append-only; one marker per fingerprint.
type ReportedFailure struct {
	Fingerprint  string
	Recipient    string
	Subject      string
	ErrorMessage string
	LogTimestamp time.Time
	ReportedAt   time.Time
}
