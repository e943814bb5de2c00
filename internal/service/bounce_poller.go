package service

import (
	"context"
	"fmt"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/bounce"
	"github.com/FriendsOfREDAXO/mail-tools/internal/observability"
	"go.uber.org/zap"
)

const defaultBouncePollInterval = 30 * time.Minute

// Ingestor runs one mailbox pass for bounce notifications.
type Ingestor interface {
	Ingest(ctx context.Context) (*bounce.Result, error)
}

// BouncePoller periodically ingests bounce notifications from the mailbox.
type BouncePoller struct {
	ingestor Ingestor
	metrics  *observability.Metrics
	logger   *zap.Logger
	interval time.Duration
}

func NewBouncePoller(ingestor Ingestor, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) (*BouncePoller, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("bounce ingestor is required")
	}
	if interval <= 0 {
		interval = defaultBouncePollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BouncePoller{
		ingestor: ingestor,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
	}, nil
}

func (p *BouncePoller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p.runOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *BouncePoller) runOnce(ctx context.Context) {
	result, err := p.ingestor.Ingest(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("bounce ingestion failed", zap.Error(err))
		}
		return
	}

	p.metrics.AddBouncesIngested(len(result.Processed))
	p.metrics.AddBouncesSkipped(result.Skipped)

	if result.Found > 0 {
		p.logger.Info("bounce ingestion finished",
			zap.Int("found", result.Found),
			zap.Int("recorded", len(result.Processed)),
			zap.Int("skipped", result.Skipped),
		)
	}
}
