package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultRetryScanInterval = 15 * time.Minute

// RetryScanner periodically runs the retry batch.
type RetryScanner struct {
	retries  *RetryService
	logger   *zap.Logger
	interval time.Duration
}

func NewRetryScanner(retries *RetryService, interval time.Duration, logger *zap.Logger) (*RetryScanner, error) {
	if retries == nil {
		return nil, fmt.Errorf("retry service is required")
	}
	if interval <= 0 {
		interval = defaultRetryScanInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryScanner{
		retries:  retries,
		logger:   logger,
		interval: interval,
	}, nil
}

func (s *RetryScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial pass so already-due retries do not wait for the first
	// ticker edge.
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

func (s *RetryScanner) runOnce(ctx context.Context) {
	stats, err := s.retries.ProcessDueRetries(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("retry batch failed", zap.Error(err))
		}
		return
	}

	if stats.Total > 0 {
		s.logger.Info("retry batch finished",
			zap.Int("total", stats.Total),
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("failed", stats.Failed),
			zap.Int("skipped", stats.Skipped),
		)
	}
}
