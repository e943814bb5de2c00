// Package archive resolves failed log entries to their archived original
// messages. The mailer stores one .eml file per sent message under
// <root>/YYYY/MM/STATUS_YYYY-MM-DD_HH_ii_ss.eml.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
)

// ClockSkewTolerance is the accepted drift between a log timestamp and the
// archive filename timestamp. Log and archive are written by separate code
// paths and can disagree by a few seconds.
const ClockSkewTolerance = 60 * time.Second

// Locator resolves a log entry to the raw bytes of its archived message.
type Locator interface {
	// Find returns the archived message for the given subject and send time,
	// or domain.ErrNotFound when no archive file matches.
	Find(ctx context.Context, subject string, timestamp time.Time) ([]byte, error)
}

var archiveNamePattern = regexp.MustCompile(`_(\d{4}-\d{2}-\d{2})_(\d{2})_(\d{2})_(\d{2})\.eml$`)

// FSLocator looks up archived messages on the local filesystem.
type FSLocator struct {
	root string
}

func NewFSLocator(root string) (*FSLocator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: archive directory is required", domain.ErrConfiguration)
	}
	return &FSLocator{root: root}, nil
}

// Find tries three strategies in order: filename match at minute precision,
// filename timestamp within the skew tolerance, and finally a subject scan
// over the month's files.
func (l *FSLocator) Find(ctx context.Context, subject string, timestamp time.Time) ([]byte, error) {
	monthDir := filepath.Join(l.root, timestamp.Format("2006"), timestamp.Format("01"))

	files, err := filepath.Glob(filepath.Join(monthDir, "*.eml"))
	if err != nil || len(files) == 0 {
		return nil, domain.ErrNotFound
	}

	// Minute precision, matching the filename format without seconds.
	minutePattern := timestamp.Format("2006-01-02_15_04")
	for _, file := range files {
		if strings.Contains(filepath.Base(file), minutePattern) {
			return readArchive(file)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, file := range files {
		fileTS, ok := timestampFromName(filepath.Base(file))
		if !ok {
			continue
		}
		if absDuration(fileTS.Sub(timestamp)) <= ClockSkewTolerance {
			return readArchive(file)
		}
	}

	// Last resort: the subject appears in the message content.
	normalizedSubject := strings.ToLower(strings.TrimSpace(subject))
	if normalizedSubject == "" {
		return nil, domain.ErrNotFound
	}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(string(content)), normalizedSubject) {
			return content, nil
		}
	}

	return nil, domain.ErrNotFound
}

func readArchive(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive file %s: %w", path, err)
	}
	return content, nil
}

// timestampFromName parses STATUS_YYYY-MM-DD_HH_ii_ss.eml filenames.
func timestampFromName(name string) (time.Time, bool) {
	match := archiveNamePattern.FindStringSubmatch(name)
	if match == nil {
		return time.Time{}, false
	}

	raw := fmt.Sprintf("%s %s:%s:%s", match[1], match[2], match[3], match[4])
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", raw, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
