package maillog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"go.uber.org/zap"
)

func writeLog(t *testing.T, lines string) *Source {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mail_log")
	if err := os.WriteFile(path, []byte(lines), 0o600); err != nil {
		t.Fatalf("failed to write log fixture: %v", err)
	}

	source, err := NewSource(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	return source
}

func TestReadEntriesParsesAndReverses(t *testing.T) {
	t.Parallel()

	source := writeLog(t,
		"2024-01-15 10:30:45 | OK | noreply@site.example | user@example.com | Welcome | \n"+
			"2024-01-15 10:31:02 | ERROR | noreply@site.example | gone@example.com | Invoice | 550 user unknown\n"+
			"garbage line without separators\n"+
			"2024-01-15 10:32:10 | ERROR | noreply@site.example | slow@example.org | Reminder | Connection timed out\n")

	entries, err := source.ReadEntries(context.Background(), 100)
	if err != nil {
		t.Fatalf("ReadEntries() error = %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3 (garbage line skipped)", len(entries))
	}

	// Most recent first.
	if entries[0].To != "slow@example.org" {
		t.Fatalf("entries[0].To = %q, want slow@example.org", entries[0].To)
	}
	if entries[2].Status != domain.LogStatusOK {
		t.Fatalf("entries[2].Status = %s, want OK", entries[2].Status)
	}

	if entries[0].ErrorMessage != "Connection timed out" {
		t.Fatalf("error message = %q", entries[0].ErrorMessage)
	}

	wantTS := time.Date(2024, 1, 15, 10, 32, 10, 0, time.Local)
	if !entries[0].Timestamp.Equal(wantTS) {
		t.Fatalf("timestamp = %v, want %v", entries[0].Timestamp, wantTS)
	}

	if entries[0].Fingerprint == "" || entries[0].Fingerprint == entries[1].Fingerprint {
		t.Fatal("fingerprints must be set and distinct per entry")
	}
}

func TestReadEntriesStableFingerprints(t *testing.T) {
	t.Parallel()

	line := "2024-01-15 10:31:02 | ERROR | a@b.example | c@d.example | Hello | 550 user unknown\n"
	source := writeLog(t, line)

	first, err := source.ReadEntries(context.Background(), 10)
	if err != nil {
		t.Fatalf("ReadEntries() error = %v", err)
	}
	second, err := source.ReadEntries(context.Background(), 10)
	if err != nil {
		t.Fatalf("ReadEntries() error = %v", err)
	}

	if first[0].Fingerprint != second[0].Fingerprint {
		t.Fatal("re-reading the same line must yield the same fingerprint")
	}
}

func TestReadEntriesLimit(t *testing.T) {
	t.Parallel()

	var lines string
	for i := 0; i < 5; i++ {
		lines += "2024-01-15 10:30:4" + string(rune('0'+i)) + " | ERROR | a@b.example | c@d.example | S | boom\n"
	}
	source := writeLog(t, lines)

	entries, err := source.ReadEntries(context.Background(), 2)
	if err != nil {
		t.Fatalf("ReadEntries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	// Limit keeps the most recent entries.
	if entries[0].Timestamp.Second() != 44 {
		t.Fatalf("entries[0] second = %d, want 44", entries[0].Timestamp.Second())
	}
}

func TestReadEntriesMissingFile(t *testing.T) {
	t.Parallel()

	source, err := NewSource(filepath.Join(t.TempDir(), "does-not-exist"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	entries, err := source.ReadEntries(context.Background(), 10)
	if err != nil {
		t.Fatalf("ReadEntries() on missing file error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("len(entries) = %d, want 0", len(entries))
	}
}

func TestFailedEntriesFiltering(t *testing.T) {
	t.Parallel()

	source := writeLog(t,
		"2024-01-15 10:30:45 | OK | a@b.example | ok@example.com | S | \n"+
			"2024-01-15 10:31:02 | ERROR | a@b.example |  | S | no recipient given\n"+
			"2024-01-15 10:32:10 | ERROR | a@b.example | fail@example.com | S | 550 user unknown\n")

	failed, err := source.FailedEntries(context.Background(), 100)
	if err != nil {
		t.Fatalf("FailedEntries() error = %v", err)
	}

	if len(failed) != 1 {
		t.Fatalf("len(failed) = %d, want 1", len(failed))
	}
	if failed[0].To != "fail@example.com" {
		t.Fatalf("failed[0].To = %q", failed[0].To)
	}
}

func TestReadEntriesAbortable(t *testing.T) {
	t.Parallel()

	var lines string
	for i := 0; i < 1000; i++ {
		lines += "2024-01-15 10:30:45 | ERROR | a@b.example | c@d.example | S | boom\n"
	}
	source := writeLog(t, lines)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := source.ReadEntries(ctx, 0); err == nil {
		t.Fatal("expected context error for canceled scan")
	}
}

func TestExtractAddresses(t *testing.T) {
	t.Parallel()

	got := ExtractAddresses("The following recipients failed: a@example.com, b@example.org and a@example.com again")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 unique addresses", len(got))
	}
	if got[0] != "a@example.com" || got[1] != "b@example.org" {
		t.Fatalf("addresses = %v", got)
	}

	if got := ExtractAddresses("no addresses here"); got != nil {
		t.Fatalf("expected nil for text without addresses, got %v", got)
	}
}

func TestExtractDomain(t *testing.T) {
	t.Parallel()

	if got := ExtractDomain("user@sub.example.com"); got != "sub.example.com" {
		t.Fatalf("ExtractDomain() = %q", got)
	}
	if got := ExtractDomain("not an address"); got != "" {
		t.Fatalf("ExtractDomain() = %q, want empty", got)
	}
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)

	source := writeLog(t,
		"2023-12-01 09:00:00 | ERROR | a@b.example | old@stale.example | S | 550 user unknown\n"+
			"2024-01-10 09:00:00 | ERROR | a@b.example | week@example.com | S | 550 user unknown\n"+
			"2024-01-15 09:00:00 | ERROR | a@b.example | today@example.com | S | 550 user unknown\n")

	stats, err := source.Statistics(context.Background(), now)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}

	if stats.Total != 3 {
		t.Fatalf("Total = %d, want 3", stats.Total)
	}
	if stats.Today != 1 {
		t.Fatalf("Today = %d, want 1", stats.Today)
	}
	if stats.Week != 2 {
		t.Fatalf("Week = %d, want 2", stats.Week)
	}
	if stats.Month != 2 {
		t.Fatalf("Month = %d, want 2", stats.Month)
	}

	if len(stats.TopDomains) == 0 || stats.TopDomains[0].Domain != "example.com" {
		t.Fatalf("TopDomains = %v, want example.com first", stats.TopDomains)
	}
}
