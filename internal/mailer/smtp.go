package mailer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

const defaultSendTimeout = 30 * time.Second

var _ Mailer = (*SMTPMailer)(nil)

// SMTPMailer delivers messages through a single SMTP relay.
type SMTPMailer struct {
	addr     string
	username string
	password string
	from     string
	timeout  time.Duration

	// sendMail is swapped in tests.
	sendMail func(addr string, auth sasl.Client, from string, to []string, r *bytes.Reader) error
}

func NewSMTPMailer(addr, username, password, from string) (*SMTPMailer, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("%w: smtp address is required", domain.ErrConfiguration)
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("%w: smtp sender address is required", domain.ErrConfiguration)
	}

	return &SMTPMailer{
		addr:     addr,
		username: username,
		password: password,
		from:     from,
		timeout:  defaultSendTimeout,
		sendMail: func(addr string, auth sasl.Client, from string, to []string, r *bytes.Reader) error {
			return smtp.SendMail(addr, auth, from, to, r)
		},
	}, nil
}

// Resend submits the message's raw bytes with a fresh envelope. The call is
// bounded by the mailer's timeout so one stalled relay cannot stall a whole
// batch.
func (m *SMTPMailer) Resend(ctx context.Context, msg *domain.ParsedMessage) error {
	if m == nil {
		return fmt.Errorf("mailer is not initialized")
	}
	if msg == nil {
		return fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	var auth sasl.Client
	if m.username != "" {
		auth = sasl.NewPlainClient("", m.username, m.password)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.sendMail(m.addr, auth, m.from, msg.Recipients(), bytes.NewReader(msg.Raw))
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: smtp send aborted: %v", domain.ErrConnectivity, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	}
}
