package mailer

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"github.com/emersion/go-message/mail"
)

// Attachment is a file added to a composed message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Compose builds a multipart message (plain text plus HTML alternative,
// optional attachments) ready for the Mailer. Raw holds the full MIME
// encoding; the parsed fields mirror what went into it.
func Compose(from string, to []string, subject, textBody, htmlBody string, attachments []Attachment) (*domain.ParsedMessage, error) {
	if len(to) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", domain.ErrValidation)
	}

	var header mail.Header
	header.SetDate(time.Now())
	header.SetAddressList("From", []*mail.Address{{Address: from}})

	toAddresses := make([]*mail.Address, 0, len(to))
	for _, addr := range to {
		toAddresses = append(toAddresses, &mail.Address{Address: addr})
	}
	header.SetAddressList("To", toAddresses)
	header.SetSubject(subject)

	var buf bytes.Buffer
	writer, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	inline, err := writer.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline part: %w", err)
	}
	if err := writeInlinePart(inline, "text/plain", textBody); err != nil {
		return nil, err
	}
	if htmlBody != "" {
		if err := writeInlinePart(inline, "text/html", htmlBody); err != nil {
			return nil, err
		}
	}
	if err := inline.Close(); err != nil {
		return nil, fmt.Errorf("failed to close inline part: %w", err)
	}

	for _, attachment := range attachments {
		var attachmentHeader mail.AttachmentHeader
		contentType := attachment.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		attachmentHeader.Set("Content-Type", contentType)
		attachmentHeader.SetFilename(attachment.Filename)

		part, err := writer.CreateAttachment(attachmentHeader)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment %s: %w", attachment.Filename, err)
		}
		if _, err := part.Write(attachment.Content); err != nil {
			return nil, fmt.Errorf("failed to write attachment %s: %w", attachment.Filename, err)
		}
		if err := part.Close(); err != nil {
			return nil, fmt.Errorf("failed to close attachment %s: %w", attachment.Filename, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize message: %w", err)
	}

	return &domain.ParsedMessage{
		To:       to,
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
		Raw:      buf.Bytes(),
	}, nil
}

func writeInlinePart(inline *mail.InlineWriter, contentType, body string) error {
	var header mail.InlineHeader
	header.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	part, err := inline.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(part, body); err != nil {
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return part.Close()
}
