package mailer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	_ "github.com/emersion/go-message/charset" // register legacy charsets
	"github.com/emersion/go-message/mail"
)

// ParseEML decodes an archived message far enough to resend it: recipient
// headers, subject, reply-to and the inline bodies. The raw bytes are kept
// unchanged; they are what actually goes back on the wire.
func ParseEML(raw []byte) (*domain.ParsedMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty message", domain.ErrValidation)
	}

	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	parsed := &domain.ParsedMessage{Raw: raw}

	parsed.To = addressList(reader.Header, "To")
	parsed.Cc = addressList(reader.Header, "Cc")

	if subject, err := reader.Header.Subject(); err == nil {
		parsed.Subject = subject
	}
	if replyTo := addressList(reader.Header, "Reply-To"); len(replyTo) > 0 {
		parsed.ReplyTo = replyTo[0]
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A broken MIME part does not invalidate the headers already
			// read; the raw bytes are resent as-is anyway.
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, err := header.ContentType()
		if err != nil {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch contentType {
		case "text/plain":
			if parsed.TextBody == "" {
				parsed.TextBody = string(body)
			}
		case "text/html":
			if parsed.HTMLBody == "" {
				parsed.HTMLBody = string(body)
			}
		}
	}

	return parsed, nil
}

func addressList(header mail.Header, key string) []string {
	addresses, err := header.AddressList(key)
	if err != nil || len(addresses) == 0 {
		// Fall back to bare address extraction for garbled headers.
		raw := header.Get(key)
		if strings.TrimSpace(raw) == "" {
			return nil
		}
		return extractBareAddresses(raw)
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if addr.Address != "" {
			result = append(result, addr.Address)
		}
	}
	return result
}
