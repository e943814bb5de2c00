package bounce

import (
	"context"
	"fmt"
	"strings"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"go.uber.org/zap"
)

// Config holds the mailbox settings for bounce ingestion.
type Config struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Folder          string
	RecipientFilter string
	DeleteProcessed bool
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: imap host is required", domain.ErrConfiguration)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: imap port %d is out of range", domain.ErrConfiguration, c.Port)
	}
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("%w: imap username is required", domain.ErrConfiguration)
	}
	return nil
}

// Session is one authenticated, folder-selected mailbox connection.
type Session interface {
	// SearchBounces returns the UIDs of unseen delivery-status notifications.
	SearchBounces(ctx context.Context) ([]uint32, error)
	FetchBody(ctx context.Context, uid uint32) ([]byte, error)
	MarkSeen(ctx context.Context, uid uint32) error
	Delete(ctx context.Context, uid uint32) error
	Expunge(ctx context.Context) error
	Close() error
}

// Dialer opens a Session against the configured mailbox.
type Dialer func(ctx context.Context, cfg Config) (Session, error)

// Registry is the subset of the bounce repository the ingestor needs.
type Registry interface {
	Record(ctx context.Context, email string, bounceType domain.BounceType, message string) error
}

// Result summarizes one ingestion pass.
type Result struct {
	Found     int
	Processed []string
	Skipped   int
}

// Ingestor polls a mailbox for bounce notifications and records the bounced
// addresses. Messages it cannot attribute to an address are left unread so
// an operator can inspect them.
type Ingestor struct {
	cfg      Config
	dial     Dialer
	registry Registry
	logger   *zap.Logger
}

func NewIngestor(cfg Config, registry Registry, logger *zap.Logger) (*Ingestor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("bounce registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ingestor{
		cfg:      cfg,
		dial:     DialIMAP,
		registry: registry,
		logger:   logger,
	}, nil
}

// Ingest runs one pass over the mailbox. Every notification whose recipient
// can be extracted is recorded as a hard bounce and marked seen; failures on
// a single message never abort the pass.
func (i *Ingestor) Ingest(ctx context.Context) (*Result, error) {
	session, err := i.dial(ctx, i.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open mailbox %s: %v", domain.ErrConnectivity, i.cfg.Host, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			i.logger.Warn("failed to close mailbox session", zap.Error(err))
		}
	}()

	uids, err := session.SearchBounces(ctx)
	if err != nil {
		return nil, fmt.Errorf("bounce search failed: %w", err)
	}

	result := &Result{Found: len(uids)}
	deleted := false
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		body, err := session.FetchBody(ctx, uid)
		if err != nil {
			i.logger.Warn("failed to fetch bounce message",
				zap.Uint32("uid", uid),
				zap.Error(err))
			result.Skipped++
			continue
		}

		recipient, ok := ExtractRecipient(string(body))
		if !ok || !i.matchesFilter(recipient) {
			result.Skipped++
			continue
		}

		if err := i.registry.Record(ctx, recipient, domain.BounceTypeHard, string(body)); err != nil {
			i.logger.Error("failed to record bounce",
				zap.String("recipient", recipient),
				zap.Error(err))
			result.Skipped++
			continue
		}

		if err := session.MarkSeen(ctx, uid); err != nil {
			i.logger.Warn("failed to mark bounce message seen",
				zap.Uint32("uid", uid),
				zap.Error(err))
		}
		if i.cfg.DeleteProcessed {
			if err := session.Delete(ctx, uid); err != nil {
				i.logger.Warn("failed to delete bounce message",
					zap.Uint32("uid", uid),
					zap.Error(err))
			} else {
				deleted = true
			}
		}

		result.Processed = append(result.Processed, domain.CanonicalEmail(recipient))
	}

	if deleted {
		if err := session.Expunge(ctx); err != nil {
			i.logger.Warn("failed to expunge mailbox", zap.Error(err))
		}
	}

	return result, nil
}

func (i *Ingestor) matchesFilter(recipient string) bool {
	if i.cfg.RecipientFilter == "" {
		return true
	}
	return strings.Contains(
		strings.ToLower(recipient),
		strings.ToLower(i.cfg.RecipientFilter),
	)
}
