package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/bounce"
)

type fakeIngestor struct {
	result    *bounce.Result
	ingestErr error
	calls     int
}

func (i *fakeIngestor) Ingest(context.Context) (*bounce.Result, error) {
	i.calls++
	if i.ingestErr != nil {
		return nil, i.ingestErr
	}
	return i.result, nil
}

func TestNewBouncePollerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewBouncePoller(nil, time.Minute, nil, nil); err == nil {
		t.Fatal("expected error for nil ingestor")
	}

	poller, err := NewBouncePoller(&fakeIngestor{}, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewBouncePoller() error = %v", err)
	}
	if poller.interval != defaultBouncePollInterval {
		t.Fatalf("interval = %v, want default %v", poller.interval, defaultBouncePollInterval)
	}
}

func TestBouncePollerRunOnce(t *testing.T) {
	t.Parallel()

	ingestor := &fakeIngestor{
		result: &bounce.Result{
			Found:     3,
			Processed: []string{"alice@example.com", "bob@example.com"},
			Skipped:   1,
		},
	}
	poller, err := NewBouncePoller(ingestor, time.Hour, nil, nil)
	if err != nil {
		t.Fatalf("NewBouncePoller() error = %v", err)
	}

	poller.runOnce(context.Background())
	if ingestor.calls != 1 {
		t.Fatalf("calls = %d, want 1", ingestor.calls)
	}
}

func TestBouncePollerRunOnceSwallowsError(t *testing.T) {
	t.Parallel()

	ingestor := &fakeIngestor{ingestErr: errors.New("mailbox unreachable")}
	poller, err := NewBouncePoller(ingestor, time.Hour, nil, nil)
	if err != nil {
		t.Fatalf("NewBouncePoller() error = %v", err)
	}

	poller.runOnce(context.Background())
}
