package service

import (
	"context"
	"testing"
	"time"
)

func TestNewRetryScannerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRetryScanner(nil, time.Minute, nil); err == nil {
		t.Fatal("expected error for nil retry service")
	}

	f := newRetryFixture(t)
	scanner, err := NewRetryScanner(f.service, 0, nil)
	if err != nil {
		t.Fatalf("NewRetryScanner() error = %v", err)
	}
	if scanner.interval != defaultRetryScanInterval {
		t.Fatalf("interval = %v, want default %v", scanner.interval, defaultRetryScanInterval)
	}
}

func TestRetryScannerRunOnce(t *testing.T) {
	t.Parallel()

	entry := failureEntry("greeting", transientError)
	f := newRetryFixture(t, entry)
	f.archive.messages["greeting"] = validEML()

	scanner, err := NewRetryScanner(f.service, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewRetryScanner() error = %v", err)
	}

	scanner.runOnce(context.Background())
	if f.sender.sent != 1 {
		t.Fatalf("sent = %d, want 1", f.sender.sent)
	}
}

func TestRetryScannerRunOnceSwallowsBatchError(t *testing.T) {
	t.Parallel()

	f := newRetryFixture(t)
	f.source.readErr = context.DeadlineExceeded

	scanner, err := NewRetryScanner(f.service, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewRetryScanner() error = %v", err)
	}

	// Must not panic or abort; the next tick retries.
	scanner.runOnce(context.Background())
}
