package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/archive"
	"github.com/FriendsOfREDAXO/mail-tools/internal/classifier"
	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"github.com/FriendsOfREDAXO/mail-tools/internal/mailer"
	"github.com/FriendsOfREDAXO/mail-tools/internal/observability"
	"github.com/FriendsOfREDAXO/mail-tools/internal/ratelimit"
	"github.com/FriendsOfREDAXO/mail-tools/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultScanLimit = 1000
	smtpTransport    = "smtp"
)

// retryBackoff holds the wait before the next attempt, indexed by the number
// of attempts already made. The third failure exhausts the record.
var retryBackoff = [domain.MaxRetryAttempts]time.Duration{
	1 * time.Hour,
	6 * time.Hour,
	24 * time.Hour,
}

// LogSource yields delivery failures from the mail log.
type LogSource interface {
	FailedEntries(ctx context.Context, limit int) ([]domain.LogEntry, error)
}

// Locker serializes work per key across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// RetryStats summarizes one scheduler pass.
type RetryStats struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

// RetryService drives resend attempts for failed deliveries. The scheduled
// batch only touches transient failures; operator-triggered retries go
// through RetryOne, which skips the classification gate but shares the
// attempt ceiling and the per-fingerprint lock.
type RetryService struct {
	source  LogSource
	ledger  repository.RetryLedger
	archive archive.Locator
	mailer  mailer.Mailer
	locker  Locker
	limiter ratelimit.RateLimiter
	metrics *observability.Metrics
	logger  *zap.Logger

	scanLimit int
	now       func() time.Time
}

func NewRetryService(
	source LogSource,
	ledger repository.RetryLedger,
	archiveLocator archive.Locator,
	sender mailer.Mailer,
	locker Locker,
	limiter ratelimit.RateLimiter,
	metrics *observability.Metrics,
	scanLimit int,
	logger *zap.Logger,
) (*RetryService, error) {
	if source == nil {
		return nil, fmt.Errorf("log source is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("retry ledger is required")
	}
	if archiveLocator == nil {
		return nil, fmt.Errorf("archive locator is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}
	if scanLimit <= 0 {
		scanLimit = defaultScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryService{
		source:    source,
		ledger:    ledger,
		archive:   archiveLocator,
		mailer:    sender,
		locker:    locker,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger,
		scanLimit: scanLimit,
		now:       time.Now,
	}, nil
}

// ProcessDueRetries runs one batch pass: every transient failure whose
// backoff has elapsed gets one resend attempt. A failure on one entry never
// aborts the rest of the batch.
func (s *RetryService) ProcessDueRetries(ctx context.Context) (RetryStats, error) {
	var stats RetryStats

	entries, err := s.source.FailedEntries(ctx, s.scanLimit)
	if err != nil {
		return stats, fmt.Errorf("failed to read mail log: %w", err)
	}

	seen := make(map[string]struct{}, len(entries))
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		entry := entries[i]
		// Entries are newest-first; keep only the most recent sighting of
		// each fingerprint.
		if _, ok := seen[entry.Fingerprint]; ok {
			continue
		}
		seen[entry.Fingerprint] = struct{}{}

		if !classifier.IsTransient(entry.ErrorMessage) {
			continue
		}

		stats.Total++
		s.processEntry(ctx, entry, &stats)
	}

	return stats, nil
}

func (s *RetryService) processEntry(ctx context.Context, entry domain.LogEntry, stats *RetryStats) {
	defer func() {
		if r := recover(); r != nil {
			stats.Failed++
			s.metrics.IncRetryProcessed(observability.RetryOutcomeFailed)
			s.logger.Error("panic while processing retry entry",
				zap.String("fingerprint", entry.Fingerprint),
				zap.Any("panic", r))
		}
	}()

	release, err := s.locker.Lock(ctx, entry.Fingerprint)
	if err != nil {
		s.logger.Warn("failed to lock fingerprint, skipping",
			zap.String("fingerprint", entry.Fingerprint),
			zap.Error(err))
		stats.Skipped++
		s.metrics.IncRetryProcessed(observability.RetryOutcomeSkipped)
		return
	}
	defer release()

	record, err := s.ledger.Get(ctx, entry.Fingerprint)
	if err != nil {
		s.logger.Error("failed to load retry record",
			zap.String("fingerprint", entry.Fingerprint),
			zap.Error(err))
		stats.Skipped++
		s.metrics.IncRetryProcessed(observability.RetryOutcomeSkipped)
		return
	}

	// Re-checked under the lock: a concurrent manual retry may have just
	// consumed this fingerprint's eligibility.
	if !record.DueAt(s.now()) {
		return
	}

	outcome := s.attempt(ctx, entry, &record)
	switch outcome {
	case observability.RetryOutcomeSucceeded:
		stats.Succeeded++
	case observability.RetryOutcomeFailed:
		stats.Failed++
	default:
		stats.Skipped++
	}
	s.metrics.IncRetryProcessed(outcome)
}

// RetryOne executes one operator-triggered attempt for a fingerprint. The
// failure does not have to classify as transient, but exhausted records are
// refused and the archived message must still exist.
func (s *RetryService) RetryOne(ctx context.Context, fingerprint string) (bool, error) {
	entries, err := s.source.FailedEntries(ctx, s.scanLimit)
	if err != nil {
		return false, fmt.Errorf("failed to read mail log: %w", err)
	}

	var entry *domain.LogEntry
	for i := range entries {
		if entries[i].Fingerprint == fingerprint {
			entry = &entries[i]
			break
		}
	}
	if entry == nil {
		return false, fmt.Errorf("%w: no failure with fingerprint %s", domain.ErrNotFound, fingerprint)
	}

	release, err := s.locker.Lock(ctx, fingerprint)
	if err != nil {
		return false, fmt.Errorf("failed to lock fingerprint %s: %w", fingerprint, err)
	}
	defer release()

	record, err := s.ledger.Get(ctx, fingerprint)
	if err != nil {
		return false, fmt.Errorf("failed to load retry record: %w", err)
	}
	if record.Exhausted() {
		return false, fmt.Errorf("%w: attempts exhausted for %s", domain.ErrConflict, fingerprint)
	}

	outcome := s.attempt(ctx, *entry, &record)
	s.metrics.IncRetryProcessed(outcome)
	if outcome == observability.RetryOutcomeSkipped {
		return false, fmt.Errorf("%w: archived message for %s", domain.ErrNotFound, fingerprint)
	}
	return outcome == observability.RetryOutcomeSucceeded, nil
}

// attempt resolves the archived message and resends it, recording the result
// in the ledger. A missing archive is a skip: nothing is recorded, so the
// entry stays eligible should the archive reappear.
func (s *RetryService) attempt(ctx context.Context, entry domain.LogEntry, record *domain.RetryRecord) string {
	started := s.now()

	raw, err := s.archive.Find(ctx, entry.Subject, entry.Timestamp)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("archive lookup failed",
				zap.String("fingerprint", entry.Fingerprint),
				zap.Error(err))
		}
		return observability.RetryOutcomeSkipped
	}

	sendErr := s.resend(ctx, raw)
	s.recordAttempt(ctx, entry, record, sendErr == nil)
	s.metrics.ObserveRetryDuration(s.now().Sub(started))

	if sendErr != nil {
		s.logger.Warn("retry attempt failed",
			zap.String("fingerprint", entry.Fingerprint),
			zap.Int("attempt", record.AttemptCount),
			zap.Error(sendErr))
		return observability.RetryOutcomeFailed
	}

	s.logger.Info("retry attempt succeeded",
		zap.String("fingerprint", entry.Fingerprint),
		zap.Int("attempt", record.AttemptCount))
	return observability.RetryOutcomeSucceeded
}

func (s *RetryService) resend(ctx context.Context, raw []byte) error {
	msg, err := mailer.ParseEML(raw)
	if err != nil {
		return fmt.Errorf("failed to parse archived message: %w", err)
	}
	if len(msg.Recipients()) == 0 {
		return fmt.Errorf("%w: archived message has no recipients", domain.ErrValidation)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, smtpTransport); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	return s.mailer.Resend(ctx, msg)
}

// recordAttempt advances the ledger state. Persistence failures are logged
// and swallowed: losing one attempt count is better than blocking the batch.
func (s *RetryService) recordAttempt(ctx context.Context, entry domain.LogEntry, record *domain.RetryRecord, succeeded bool) {
	now := s.now().UTC()

	record.AttemptCount++
	record.LastAttemptAt = &now
	record.LastSucceeded = succeeded

	if succeeded || record.Exhausted() {
		record.NextAttemptAt = nil
	} else {
		step := record.AttemptCount - 1
		if step >= len(retryBackoff) {
			step = len(retryBackoff) - 1
		}
		next := now.Add(retryBackoff[step])
		record.NextAttemptAt = &next
		s.metrics.IncRetryScheduled(record.AttemptCount)
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if err := s.ledger.Upsert(ctx, *record); err != nil {
		s.logger.Error("failed to persist retry record",
			zap.String("fingerprint", entry.Fingerprint),
			zap.Int("attempt", record.AttemptCount),
			zap.Error(err))
	}
}
