// Package maillog reads the mailer delivery log. The log is an append-only
// text file owned by the mailer; this package only ever reads it.
package maillog

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultReadLimit bounds a full log scan.
	DefaultReadLimit = 1000

	timestampLayout = "2006-01-02 15:04:05"
	fieldSeparator  = " | "
	entryFieldCount = 6

	// maxLineBytes bounds a single log line; error messages can carry whole
	// SMTP transcripts.
	maxLineBytes = 1 << 20
)

// Source reads delivery-attempt entries from the mail log file.
type Source struct {
	path   string
	logger *zap.Logger
}

func NewSource(path string, logger *zap.Logger) (*Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: mail log path is required", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Source{path: path, logger: logger}, nil
}

// ReadEntries returns up to limit entries, most recent first. A missing log
// file is an empty log, not an error. The scan honors context cancellation
// so a shutdown signal can abort it.
func (s *Source) ReadEntries(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = DefaultReadLimit
	}

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open mail log %s: %w", s.path, err)
	}
	defer file.Close() //nolint:errcheck

	var entries []domain.LogEntry

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		if line%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		entry, ok := s.parseLine(scanner.Text())
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan mail log: %w", err)
	}

	// The file is appended oldest-first; callers want most recent first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

// FailedEntries returns failure entries only, most recent first.
func (s *Source) FailedEntries(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	entries, err := s.ReadEntries(ctx, limit)
	if err != nil {
		return nil, err
	}

	failed := entries[:0]
	for _, entry := range entries {
		if entry.IsFailure() {
			failed = append(failed, entry)
		}
	}

	return failed, nil
}

// parseLine splits one log line of the form
//
//	2024-01-15 10:30:45 | ERROR | from | to | subject | error message
//
// Lines that do not fit the format (continuations, corruption) are skipped.
func (s *Source) parseLine(raw string) (domain.LogEntry, bool) {
	fields := strings.SplitN(raw, fieldSeparator, entryFieldCount)
	if len(fields) < entryFieldCount {
		return domain.LogEntry{}, false
	}

	ts, err := time.ParseInLocation(timestampLayout, strings.TrimSpace(fields[0]), time.Local)
	if err != nil {
		return domain.LogEntry{}, false
	}

	status, err := domain.ParseLogStatusFromString(fields[1])
	if err != nil {
		s.logger.Debug("skipping log line with unknown status", zap.String("status", fields[1]))
		return domain.LogEntry{}, false
	}

	from := strings.TrimSpace(fields[2])
	to := strings.TrimSpace(fields[3])
	subject := strings.TrimSpace(fields[4])
	message := strings.TrimSpace(fields[5])

	return domain.LogEntry{
		Status:       status,
		Timestamp:    ts,
		From:         from,
		To:           to,
		Subject:      subject,
		ErrorMessage: message,
		Fingerprint:  domain.Fingerprint(ts, from, to, subject, message),
	}, true
}
