package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/archive"
	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"github.com/FriendsOfREDAXO/mail-tools/internal/mailer"
	"github.com/FriendsOfREDAXO/mail-tools/internal/maillog"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// maxAttachments caps how many original messages ride along with a
	// report so the report itself cannot bounce on size.
	maxAttachments = 10

	scanLimit      = 1000
	webhookTimeout = 10 * time.Second
)

// Config holds the operator report settings.
type Config struct {
	From       string
	Recipients []string
	AttachEML  bool
	WebhookURL string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.From) == "" {
		return fmt.Errorf("%w: report sender address is required", domain.ErrConfiguration)
	}
	if len(c.Recipients) == 0 {
		return fmt.Errorf("%w: at least one report recipient is required", domain.ErrConfiguration)
	}
	return nil
}

// LogSource is the subset of the mail log the reporter reads.
type LogSource interface {
	FailedEntries(ctx context.Context, limit int) ([]domain.LogEntry, error)
	Statistics(ctx context.Context, now time.Time) (maillog.Statistics, error)
}

// Marker tracks which failures already appeared in a report.
type Marker interface {
	MarkReported(ctx context.Context, failures []domain.ReportedFailure) error
	ReportedFingerprints(ctx context.Context) (map[string]struct{}, error)
}

// Result summarizes one reporting pass.
type Result struct {
	ReportID    string
	Sent        bool
	Failures    int
	Attachments int
}

// Reporter assembles and mails the operator failure report. A failure is
// included at most once across all reports; the marker is written only
// after the report was actually delivered.
type Reporter struct {
	cfg     Config
	source  LogSource
	marker  Marker
	archive archive.Locator
	mailer  mailer.Mailer
	webhook *resty.Client
	logger  *zap.Logger
	now     func() time.Time
}

func NewReporter(
	cfg Config,
	source LogSource,
	marker Marker,
	archiveLocator archive.Locator,
	sender mailer.Mailer,
	logger *zap.Logger,
) (*Reporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("log source is required")
	}
	if marker == nil {
		return nil, fmt.Errorf("reported-failure marker is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reporter{
		cfg:     cfg,
		source:  source,
		marker:  marker,
		archive: archiveLocator,
		mailer:  sender,
		webhook: resty.New().SetTimeout(webhookTimeout),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Send runs one reporting pass. When no unreported failures exist it is a
// no-op and returns Sent=false.
func (r *Reporter) Send(ctx context.Context) (*Result, error) {
	result := &Result{ReportID: uuid.NewString()}

	reported, err := r.marker.ReportedFingerprints(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reported fingerprints: %w", err)
	}

	failed, err := r.source.FailedEntries(ctx, scanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read mail log: %w", err)
	}

	var unreported []domain.LogEntry
	for _, entry := range failed {
		if _, ok := reported[entry.Fingerprint]; ok {
			continue
		}
		unreported = append(unreported, entry)
	}
	result.Failures = len(unreported)
	if len(unreported) == 0 {
		return result, nil
	}

	stats, err := r.source.Statistics(ctx, r.now())
	if err != nil {
		return nil, fmt.Errorf("failed to compute failure statistics: %w", err)
	}

	textBody, htmlBody, err := r.render(stats, unreported)
	if err != nil {
		return nil, err
	}

	attachments := r.collectAttachments(ctx, unreported)
	result.Attachments = len(attachments)

	subject := fmt.Sprintf("Mail delivery failure report: %d new failures", len(unreported))
	message, err := mailer.Compose(r.cfg.From, r.cfg.Recipients, subject, textBody, htmlBody, attachments)
	if err != nil {
		return nil, fmt.Errorf("failed to compose report: %w", err)
	}

	if err := r.mailer.Resend(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to send report: %w", err)
	}
	result.Sent = true

	// Markers are written only after the send succeeded, so a failed send
	// keeps the failures eligible for the next report.
	now := r.now().UTC()
	markers := make([]domain.ReportedFailure, 0, len(unreported))
	for _, entry := range unreported {
		markers = append(markers, domain.ReportedFailure{
			Fingerprint:  entry.Fingerprint,
			Recipient:    entry.To,
			Subject:      entry.Subject,
			ErrorMessage: entry.ErrorMessage,
			LogTimestamp: entry.Timestamp,
			ReportedAt:   now,
		})
	}
	if err := r.marker.MarkReported(ctx, markers); err != nil {
		// The report went out; failing the pass now would resend the same
		// failures next time. Log loudly instead.
		r.logger.Error("report sent but markers could not be written",
			zap.String("report_id", result.ReportID),
			zap.Int("failures", len(markers)),
			zap.Error(err))
	}

	r.notifyWebhook(ctx, result)

	return result, nil
}

func (r *Reporter) render(stats maillog.Statistics, entries []domain.LogEntry) (string, string, error) {
	rows := make([]failureRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, failureRow{
			Timestamp: entry.Timestamp,
			Recipient: entry.To,
			Subject:   entry.Subject,
			Error:     entry.ErrorMessage,
		})
	}
	data := reportData{
		GeneratedAt: r.now(),
		Stats:       stats,
		Failures:    rows,
	}

	var text bytes.Buffer
	if err := textTemplate.Execute(&text, data); err != nil {
		return "", "", fmt.Errorf("failed to render text report: %w", err)
	}
	var html bytes.Buffer
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("failed to render html report: %w", err)
	}
	return text.String(), html.String(), nil
}

func (r *Reporter) collectAttachments(ctx context.Context, entries []domain.LogEntry) []mailer.Attachment {
	if !r.cfg.AttachEML || r.archive == nil {
		return nil
	}

	var attachments []mailer.Attachment
	for _, entry := range entries {
		if len(attachments) >= maxAttachments {
			break
		}
		raw, err := r.archive.Find(ctx, entry.Subject, entry.Timestamp)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				r.logger.Warn("failed to load archived message for report",
					zap.String("fingerprint", entry.Fingerprint),
					zap.Error(err))
			}
			continue
		}
		attachments = append(attachments, mailer.Attachment{
			Filename:    fmt.Sprintf("failure_%s.eml", entry.Fingerprint[:12]),
			ContentType: "message/rfc822",
			Content:     raw,
		})
	}
	return attachments
}

func (r *Reporter) notifyWebhook(ctx context.Context, result *Result) {
	if r.cfg.WebhookURL == "" {
		return
	}

	resp, err := r.webhook.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"reportId":    result.ReportID,
			"failures":    result.Failures,
			"attachments": result.Attachments,
			"sentAt":      r.now().UTC().Format(time.RFC3339),
		}).
		Post(r.cfg.WebhookURL)
	if err != nil {
		r.logger.Warn("report webhook notification failed",
			zap.String("report_id", result.ReportID),
			zap.Error(err))
		return
	}
	if resp.IsError() {
		r.logger.Warn("report webhook returned an error status",
			zap.String("report_id", result.ReportID),
			zap.Int("status", resp.StatusCode()))
	}
}
