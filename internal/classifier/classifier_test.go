package classifier

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		want    Outcome
	}{
		{
			name:    "smtp 450 temporary mailbox",
			message: "450 mailbox temporarily unavailable",
			want:    OutcomeTransient,
		},
		{
			name:    "smtp 550 user unknown",
			message: "550 user unknown",
			want:    OutcomePermanent,
		},
		{
			name:    "unrelated text",
			message: "random unrelated text",
			want:    OutcomeUnknown,
		},
		{
			name:    "connection timeout",
			message: "SMTP connect(): Connection timed out",
			want:    OutcomeTransient,
		},
		{
			name:    "greylisting",
			message: "451 4.7.1 Greylisting in action, please come back later",
			want:    OutcomeTransient,
		},
		{
			name:    "rate limiting",
			message: "421 too many connections from your host",
			want:    OutcomeTransient,
		},
		{
			name:    "smtp 4xx regex",
			message: "SMTP error from remote server: 432 mailbox busy",
			want:    OutcomeTransient,
		},
		{
			name:    "recipient rejected regex",
			message: "recipient address was rejected by the server",
			want:    OutcomePermanent,
		},
		{
			name:    "domain not found",
			message: "domain not found for recipient",
			want:    OutcomePermanent,
		},
		{
			name:    "spam detection regex",
			message: "message rejected, spam content detected",
			want:    OutcomePermanent,
		},
		{
			name:    "relay denied",
			message: "554 relay access denied for unauthenticated sender",
			want:    OutcomePermanent,
		},
		{
			name:    "case insensitive",
			message: "CONNECTION REFUSED by mail.example.com",
			want:    OutcomeTransient,
		},
		{
			name:    "empty message",
			message: "",
			want:    OutcomeUnknown,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tt.message); got != tt.want {
				t.Fatalf("Classify(%q) = %s, want %s", tt.message, got, tt.want)
			}
		})
	}
}

// Messages matching both lists must classify as permanent: definitive
// rejections are never retried regardless of incidental transient language.
func TestClassifyPermanentPrecedence(t *testing.T) {
	t.Parallel()

	mixed := []string{
		"550 user unknown, please try again later",
		"connection timed out while talking to blacklisted host",
		"451 greylisted, but recipient address rejected permanently",
	}

	for _, message := range mixed {
		if got := Classify(message); got != OutcomePermanent {
			t.Fatalf("Classify(%q) = %s, want PERMANENT", message, got)
		}
	}
}

func TestIsTransientIsPermanent(t *testing.T) {
	t.Parallel()

	if !IsTransient("server busy, please retry") {
		t.Fatal("IsTransient() = false for a transient error")
	}
	if IsTransient("no such user here") {
		t.Fatal("IsTransient() = true for a permanent error")
	}
	if !IsPermanent("relaying denied") {
		t.Fatal("IsPermanent() = false for a permanent error")
	}
	if IsPermanent("some novel failure mode") {
		t.Fatal("IsPermanent() = true for an unknown error")
	}
}
