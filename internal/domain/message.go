package domain

import "fmt"

// ParsedMessage is an archived message decoded far enough to resend: the
// envelope-relevant headers plus the original raw bytes, which are put on
// the wire unchanged.
type ParsedMessage struct {
	To       []string
	Cc       []string
	Subject  string
	ReplyTo  string
	TextBody string
	HTMLBody string
	Raw      []byte
}

// Recipients returns all envelope recipients (To and Cc).
func (m ParsedMessage) Recipients() []string {
	recipients := make([]string, 0, len(m.To)+len(m.Cc))
	recipients = append(recipients, m.To...)
	recipients = append(recipients, m.Cc...)
	return recipients
}

func (m ParsedMessage) Validate() error {
	if len(m.Recipients()) == 0 {
		return fmt.Errorf("%w: message has no recipient addresses", ErrValidation)
	}
	if len(m.Raw) == 0 {
		return fmt.Errorf("%w: message has no raw content", ErrValidation)
	}
	return nil
}
