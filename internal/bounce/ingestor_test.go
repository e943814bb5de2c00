package bounce

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
)

type fakeSession struct {
	uids      []uint32
	bodies    map[uint32][]byte
	fetchErr  map[uint32]error
	searchErr error
	seen      []uint32
	deleted   []uint32
	expunged  bool
	closed    bool
}

func (s *fakeSession) SearchBounces(context.Context) ([]uint32, error) {
	return s.uids, s.searchErr
}

func (s *fakeSession) FetchBody(_ context.Context, uid uint32) ([]byte, error) {
	if err := s.fetchErr[uid]; err != nil {
		return nil, err
	}
	body, ok := s.bodies[uid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return body, nil
}

func (s *fakeSession) MarkSeen(_ context.Context, uid uint32) error {
	s.seen = append(s.seen, uid)
	return nil
}

func (s *fakeSession) Delete(_ context.Context, uid uint32) error {
	s.deleted = append(s.deleted, uid)
	return nil
}

func (s *fakeSession) Expunge(context.Context) error {
	s.expunged = true
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeRegistry struct {
	recorded  map[string]int
	types     map[string]domain.BounceType
	recordErr error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		recorded: make(map[string]int),
		types:    make(map[string]domain.BounceType),
	}
}

func (r *fakeRegistry) Record(_ context.Context, email string, bounceType domain.BounceType, _ string) error {
	if r.recordErr != nil {
		return r.recordErr
	}
	canonical := domain.CanonicalEmail(email)
	r.recorded[canonical]++
	r.types[canonical] = bounceType
	return nil
}

func validConfig() Config {
	return Config{
		Host:     "imap.example.com",
		Port:     993,
		Username: "bounces@example.com",
		Password: "secret",
	}
}

func newTestIngestor(t *testing.T, cfg Config, session *fakeSession, registry *fakeRegistry) *Ingestor {
	t.Helper()

	ingestor, err := NewIngestor(cfg, registry, nil)
	if err != nil {
		t.Fatalf("NewIngestor() error = %v", err)
	}
	ingestor.dial = func(context.Context, Config) (Session, error) {
		return session, nil
	}
	return ingestor
}

func TestNewIngestorValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing host", func(c *Config) { c.Host = "" }},
		{"port too low", func(c *Config) { c.Port = 0 }},
		{"port too high", func(c *Config) { c.Port = 70000 }},
		{"missing username", func(c *Config) { c.Username = "" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)
			if _, err := NewIngestor(cfg, newFakeRegistry(), nil); !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("NewIngestor() error = %v, want ErrConfiguration", err)
			}
		})
	}

	if _, err := NewIngestor(validConfig(), nil, nil); err == nil {
		t.Error("NewIngestor() without registry should fail")
	}
}

func TestIngestRecordsHardBounces(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		uids: []uint32{1, 2},
		bodies: map[uint32][]byte{
			1: []byte("Final-Recipient: rfc822; alice@example.com\r\nAction: failed\r\n"),
			2: []byte("<Bob@Example.org>: host said: 550 unknown user\r\n"),
		},
	}
	registry := newFakeRegistry()
	ingestor := newTestIngestor(t, validConfig(), session, registry)

	result, err := ingestor.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if result.Found != 2 {
		t.Errorf("Found = %d, want 2", result.Found)
	}
	if len(result.Processed) != 2 {
		t.Fatalf("Processed = %v, want 2 entries", result.Processed)
	}
	if registry.recorded["alice@example.com"] != 1 {
		t.Error("alice@example.com should be recorded")
	}
	if registry.recorded["bob@example.org"] != 1 {
		t.Error("bob@example.org should be recorded canonically")
	}
	for email, bounceType := range registry.types {
		if bounceType != domain.BounceTypeHard {
			t.Errorf("bounce type for %s = %q, want hard", email, bounceType)
		}
	}
	if len(session.seen) != 2 {
		t.Errorf("seen = %v, want both messages marked", session.seen)
	}
	if len(session.deleted) != 0 || session.expunged {
		t.Error("messages must not be deleted unless configured")
	}
	if !session.closed {
		t.Error("session should be closed")
	}
}

func TestIngestLeavesUnmatchedMessagesUntouched(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		uids: []uint32{7},
		bodies: map[uint32][]byte{
			7: []byte("Your message could not be delivered.\r\n"),
		},
	}
	registry := newFakeRegistry()
	ingestor := newTestIngestor(t, validConfig(), session, registry)

	result, err := ingestor.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if len(registry.recorded) != 0 {
		t.Errorf("recorded = %v, want none", registry.recorded)
	}
	if len(session.seen) != 0 {
		t.Errorf("seen = %v, want untouched", session.seen)
	}
}

func TestIngestRecipientFilter(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		uids: []uint32{1, 2},
		bodies: map[uint32][]byte{
			1: []byte("Final-Recipient: rfc822; alice@example.com\r\n"),
			2: []byte("Final-Recipient: rfc822; mallory@other.net\r\n"),
		},
	}
	registry := newFakeRegistry()
	cfg := validConfig()
	cfg.RecipientFilter = "@example.com"
	ingestor := newTestIngestor(t, cfg, session, registry)

	result, err := ingestor.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(result.Processed) != 1 || result.Processed[0] != "alice@example.com" {
		t.Errorf("Processed = %v, want only alice@example.com", result.Processed)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
}

func TestIngestDeleteProcessed(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		uids: []uint32{3},
		bodies: map[uint32][]byte{
			3: []byte("Final-Recipient: rfc822; alice@example.com\r\n"),
		},
	}
	cfg := validConfig()
	cfg.DeleteProcessed = true
	ingestor := newTestIngestor(t, cfg, session, newFakeRegistry())

	if _, err := ingestor.Ingest(context.Background()); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(session.deleted) != 1 || session.deleted[0] != 3 {
		t.Errorf("deleted = %v, want [3]", session.deleted)
	}
	if !session.expunged {
		t.Error("mailbox should be expunged after deleting")
	}
}

func TestIngestRegistryErrorKeepsMessageUnseen(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		uids: []uint32{1},
		bodies: map[uint32][]byte{
			1: []byte("Final-Recipient: rfc822; alice@example.com\r\n"),
		},
	}
	registry := newFakeRegistry()
	registry.recordErr = errors.New("database unavailable")
	ingestor := newTestIngestor(t, validConfig(), session, registry)

	result, err := ingestor.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if result.Skipped != 1 || len(result.Processed) != 0 {
		t.Errorf("result = %+v, want one skipped", result)
	}
	if len(session.seen) != 0 {
		t.Error("message must stay unseen when recording fails")
	}
}

func TestIngestFetchErrorIsolated(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		uids: []uint32{1, 2},
		bodies: map[uint32][]byte{
			2: []byte("Final-Recipient: rfc822; alice@example.com\r\n"),
		},
		fetchErr: map[uint32]error{1: errors.New("connection reset")},
	}
	registry := newFakeRegistry()
	ingestor := newTestIngestor(t, validConfig(), session, registry)

	result, err := ingestor.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.Skipped != 1 || len(result.Processed) != 1 {
		t.Errorf("result = %+v, want one skipped and one processed", result)
	}
}

func TestIngestDialError(t *testing.T) {
	t.Parallel()

	ingestor, err := NewIngestor(validConfig(), newFakeRegistry(), nil)
	if err != nil {
		t.Fatalf("NewIngestor() error = %v", err)
	}
	ingestor.dial = func(context.Context, Config) (Session, error) {
		return nil, fmt.Errorf("no route to host")
	}

	if _, err := ingestor.Ingest(context.Background()); !errors.Is(err, domain.ErrConnectivity) {
		t.Errorf("Ingest() error = %v, want ErrConnectivity", err)
	}
}
