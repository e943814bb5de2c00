package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/report"
)

type fakeReporter struct {
	result  *report.Result
	sendErr error
	calls   int
}

func (r *fakeReporter) Send(context.Context) (*report.Result, error) {
	r.calls++
	if r.sendErr != nil {
		return nil, r.sendErr
	}
	return r.result, nil
}

func TestNewReportSchedulerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewReportScheduler(nil, time.Hour, nil, nil); err == nil {
		t.Fatal("expected error for nil reporter")
	}

	scheduler, err := NewReportScheduler(&fakeReporter{}, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewReportScheduler() error = %v", err)
	}
	if scheduler.interval != defaultReportInterval {
		t.Fatalf("interval = %v, want default %v", scheduler.interval, defaultReportInterval)
	}
}

func TestReportSchedulerRunOnce(t *testing.T) {
	t.Parallel()

	reporter := &fakeReporter{
		result: &report.Result{ReportID: "r1", Sent: true, Failures: 4},
	}
	scheduler, err := NewReportScheduler(reporter, time.Hour, nil, nil)
	if err != nil {
		t.Fatalf("NewReportScheduler() error = %v", err)
	}

	scheduler.runOnce(context.Background())
	if reporter.calls != 1 {
		t.Fatalf("calls = %d, want 1", reporter.calls)
	}
}

func TestReportSchedulerRunOnceSwallowsError(t *testing.T) {
	t.Parallel()

	reporter := &fakeReporter{sendErr: errors.New("relay unavailable")}
	scheduler, err := NewReportScheduler(reporter, time.Hour, nil, nil)
	if err != nil {
		t.Fatalf("NewReportScheduler() error = %v", err)
	}

	scheduler.runOnce(context.Background())
}
