// Package classifier decides whether an SMTP delivery error is worth
// retrying. The domain is free-text error messages, so classification is
// ordered pattern matching, not a typed error hierarchy.
package classifier

import (
	"regexp"
	"strings"
)

// Outcome is the classification of a delivery error message.
type Outcome string

const (
	// OutcomeTransient marks errors where a later retry may succeed.
	OutcomeTransient Outcome = "TRANSIENT"
	// OutcomePermanent marks definitive failures; retrying is pointless.
	OutcomePermanent Outcome = "PERMANENT"
	// OutcomeUnknown is the fail-safe for unrecognized errors: do not retry.
	OutcomeUnknown Outcome = "UNKNOWN"
)

func (o Outcome) String() string { return string(o) }

// pattern matches lowercased error text either as a literal substring or as
// a case-insensitive regular expression.
type pattern struct {
	literal string
	re      *regexp.Regexp
}

func (p pattern) matches(lowered string) bool {
	if p.re != nil {
		return p.re.MatchString(lowered)
	}
	return strings.Contains(lowered, p.literal)
}

// transientPatterns covers errors that tend to clear on their own:
// connection failures, SMTP 4xx codes, greylisting, rate limiting and
// overloaded servers.
var transientPatterns = compile([]string{
	// connection problems
	"connection timed out",
	"connection refused",
	"could not connect",
	"unable to connect",
	"network is unreachable",
	"no route to host",

	// SMTP 4xx codes
	`smtp.*4\d{2}`,
	"421", // service not available
	"450", // mailbox temporarily unavailable
	"451", // local error in processing
	"452", // insufficient storage

	// temporary rejections
	"try again later",
	"temporarily rejected",
	"temporary failure",
	"temporarily unavailable",
	"please retry",
	"greylisting",
	"greylist",

	// rate limiting
	"rate limit",
	"too many connections",
	"too many recipients",
	"too many messages",
	"throttl",
	"deferred",

	// server overloaded
	"server busy",
	"service unavailable",
	"resources temporarily unavailable",
})

// permanentPatterns covers definitive failures: unknown recipients, dead
// domains, SMTP 5xx codes, spam/policy rejections and relay denials.
var permanentPatterns = compile([]string{
	// recipient does not exist
	"user unknown",
	"user not found",
	`recipient.*rejected`,
	"address rejected",
	"mailbox not found",
	"does not exist",
	"no such user",
	"invalid recipient",
	"unknown user",

	// domain problems
	"domain not found",
	"no mx record",
	"bad destination",

	// SMTP 5xx codes
	"550", // mailbox unavailable
	"551", // user not local
	"552", // message size exceeded
	"553", // mailbox name invalid
	"554", // transaction failed

	// spam / blocking
	"blacklisted",
	"blocked",
	"banned",
	`rejected.*spam`,
	`spam.*detected`,
	"policy rejection",

	// authentication
	"authentication required",
	`auth.*failed`,
	`relay.*denied`,
	"relaying denied",
})

// compile builds the immutable matcher list once at startup. Entries
// containing regexp syntax become case-insensitive regexes, plain entries
// stay literal substrings.
func compile(raw []string) []pattern {
	compiled := make([]pattern, 0, len(raw))
	for _, entry := range raw {
		if strings.Contains(entry, ".*") || strings.Contains(entry, `\d`) {
			compiled = append(compiled, pattern{re: regexp.MustCompile("(?i)" + entry)})
			continue
		}
		compiled = append(compiled, pattern{literal: entry})
	}
	return compiled
}

// Classify maps a delivery error message to an outcome. Permanent patterns
// are checked first and win over transient ones: a message may contain both
// incidental and definitive language, and a definitive rejection must never
// be retried. Unmatched messages are Unknown, which the scheduler treats as
// not retryable.
func Classify(errorMessage string) Outcome {
	lowered := strings.ToLower(errorMessage)

	for _, p := range permanentPatterns {
		if p.matches(lowered) {
			return OutcomePermanent
		}
	}

	for _, p := range transientPatterns {
		if p.matches(lowered) {
			return OutcomeTransient
		}
	}

	return OutcomeUnknown
}

// IsTransient reports whether a delivery error is worth retrying.
func IsTransient(errorMessage string) bool {
	return Classify(errorMessage) == OutcomeTransient
}

// IsPermanent reports whether a delivery error is definitive.
func IsPermanent(errorMessage string) bool {
	return Classify(errorMessage) == OutcomePermanent
}
