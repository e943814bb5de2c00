package bounce

import "regexp"

// Delivery-status notifications vary wildly between MTAs. The patterns are
// tried in order from most to least structured: RFC 3464 machine-readable
// fields first, then the free-text forms Postfix and Exim emit.
var recipientPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Final-Recipient:\s*rfc822;\s*<?([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})>?`),
	regexp.MustCompile(`(?i)Original-Recipient:\s*rfc822;\s*<?([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})>?`),
	regexp.MustCompile(`(?i)failed:?\s*<?([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})>?`),
	regexp.MustCompile(`<([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})>:`),
}

// ExtractRecipient pulls the bounced address out of a notification body.
// The second return value reports whether any pattern matched.
func ExtractRecipient(body string) (string, bool) {
	for _, pattern := range recipientPatterns {
		if match := pattern.FindStringSubmatch(body); match != nil {
			return match[1], true
		}
	}
	return "", false
}
