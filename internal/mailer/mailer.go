// Package mailer is the outbound delivery port: it resends archived
// messages and composes new ones (operator reports) for the same transport.
package mailer

import (
	"context"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
)

// Mailer delivers a parsed message to its envelope recipients.
type Mailer interface {
	// Resend puts the message's raw bytes on the wire with a fresh
	// envelope. The returned error's text is the delivery error message;
	// nil means the transport accepted the message.
	Resend(ctx context.Context, msg *domain.ParsedMessage) error
}
