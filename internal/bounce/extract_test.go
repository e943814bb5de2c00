package bounce

import "testing"

func TestExtractRecipient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{
			name:   "final recipient field",
			body:   "Reporting-MTA: dns; mx.example.com\r\nFinal-Recipient: rfc822; alice@example.com\r\nAction: failed\r\n",
			want:   "alice@example.com",
			wantOK: true,
		},
		{
			name:   "final recipient with angle brackets",
			body:   "Final-Recipient: rfc822; <bob@example.org>\r\n",
			want:   "bob@example.org",
			wantOK: true,
		},
		{
			name:   "original recipient fallback",
			body:   "Original-Recipient: rfc822;carol@example.net\r\nAction: failed\r\n",
			want:   "carol@example.net",
			wantOK: true,
		},
		{
			name:   "free text failed form",
			body:   "Delivery to the following recipient failed: dave@example.com\r\n",
			want:   "dave@example.com",
			wantOK: true,
		},
		{
			name:   "postfix angle bracket form",
			body:   "<eve@example.com>: host mx.example.com said: 550 5.1.1 unknown user\r\n",
			want:   "eve@example.com",
			wantOK: true,
		},
		{
			name: "final recipient wins over free text",
			body: "The original message was received at Mon\r\n" +
				"<wrong@example.com>: deferred\r\n" +
				"Final-Recipient: rfc822; right@example.com\r\n",
			want:   "right@example.com",
			wantOK: true,
		},
		{
			name:   "no recipient present",
			body:   "Your message could not be delivered for unspecified reasons.\r\n",
			wantOK: false,
		},
		{
			name:   "empty body",
			body:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := ExtractRecipient(tt.body)
			if ok != tt.wantOK {
				t.Fatalf("ExtractRecipient() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ExtractRecipient() = %q, want %q", got, tt.want)
			}
		})
	}
}
