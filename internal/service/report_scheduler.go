package service

import (
	"context"
	"fmt"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/observability"
	"github.com/FriendsOfREDAXO/mail-tools/internal/report"
	"go.uber.org/zap"
)

const defaultReportInterval = 24 * time.Hour

// ReportSender assembles and delivers one failure report.
type ReportSender interface {
	Send(ctx context.Context) (*report.Result, error)
}

// ReportScheduler periodically sends the operator failure report. Passes
// with nothing new to report are silent no-ops.
type ReportScheduler struct {
	reporter ReportSender
	metrics  *observability.Metrics
	logger   *zap.Logger
	interval time.Duration
}

func NewReportScheduler(reporter ReportSender, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) (*ReportScheduler, error) {
	if reporter == nil {
		return nil, fmt.Errorf("reporter is required")
	}
	if interval <= 0 {
		interval = defaultReportInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReportScheduler{
		reporter: reporter,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
	}, nil
}

func (s *ReportScheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ReportScheduler) runOnce(ctx context.Context) {
	result, err := s.reporter.Send(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("failure report pass failed", zap.Error(err))
		}
		return
	}

	if !result.Sent {
		return
	}

	s.metrics.IncReportSent()
	s.logger.Info("failure report sent",
		zap.String("reportId", result.ReportID),
		zap.Int("failures", result.Failures),
		zap.Int("attachments", result.Attachments),
	)
}
