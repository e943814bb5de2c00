package bounce

import (
	"context"
	"fmt"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

const defaultFolder = "INBOX"

// DialIMAP opens a TLS connection, authenticates, and selects the bounce
// folder. It is the production Dialer.
func DialIMAP(ctx context.Context, cfg Config) (Session, error) {
	address := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client, err := imapclient.DialTLS(address, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", address, err)
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}

	folder := cfg.Folder
	if folder == "" {
		folder = defaultFolder
	}
	if _, err := client.Select(folder, nil).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap select %s: %w", folder, err)
	}

	return &imapSession{client: client}, nil
}

type imapSession struct {
	client *imapclient.Client
}

func (s *imapSession) SearchBounces(_ context.Context) ([]uint32, error) {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "From", Value: "MAILER-DAEMON"},
		},
	}

	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, err
	}

	uids := make([]uint32, 0, len(data.AllUIDs()))
	for _, uid := range data.AllUIDs() {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}

func (s *imapSession) FetchBody(_ context.Context, uid uint32) ([]byte, error) {
	// Peek keeps the \Seen flag untouched until the message is attributed.
	section := &imap.FetchItemBodySection{Peek: true}
	options := &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{section},
	}

	messages, err := s.client.Fetch(imap.UIDSetNum(imap.UID(uid)), options).Collect()
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: message %d", domain.ErrNotFound, uid)
	}

	body := messages[0].FindBodySection(section)
	if body == nil {
		return nil, fmt.Errorf("%w: body of message %d", domain.ErrNotFound, uid)
	}
	return body, nil
}

func (s *imapSession) MarkSeen(_ context.Context, uid uint32) error {
	return s.store(uid, imap.FlagSeen)
}

func (s *imapSession) Delete(_ context.Context, uid uint32) error {
	return s.store(uid, imap.FlagDeleted)
}

func (s *imapSession) store(uid uint32, flag imap.Flag) error {
	flags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{flag},
	}
	return s.client.Store(imap.UIDSetNum(imap.UID(uid)), flags, nil).Close()
}

func (s *imapSession) Expunge(_ context.Context) error {
	return s.client.Expunge().Close()
}

func (s *imapSession) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		return s.client.Close()
	}
	return nil
}
