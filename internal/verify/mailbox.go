// Package verify bridges the asynchronous arrival of an ATS verification
// email to the synchronous application state machine.
package verify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Message is a minimal representation of a mailbox message. Raw holds the
// full RFC822 bytes, fetched with BODY.PEEK[] so nothing gets marked \Seen.
type Message struct {
	UID     imap.UID
	From    string
	Subject string
	Date    time.Time
	Raw     []byte
}

// Mailbox is the external collaborator the waiter polls. Implementations
// return candidate messages newest first.
type Mailbox interface {
	Fetch(ctx context.Context) ([]Message, error)
}

// IMAPMailbox dials a fresh TLS connection on every Fetch. A broken
// connection in one polling cycle is then naturally retried on the next.
type IMAPMailbox struct {
	Addr     string // host:port
	Username string
	Password string
	Mailbox  string        // empty = INBOX
	Window   time.Duration // how far back to search, 0 = 24h
	MaxMsgs  int           // 0 = 20
	TLS      *tls.Config
}

func (m *IMAPMailbox) Fetch(ctx context.Context) ([]Message, error) {
	if m.Addr == "" {
		return nil, errors.New("imap addr is required")
	}
	if m.Username == "" || m.Password == "" {
		return nil, errors.New("imap username/password is required")
	}

	tlsCfg := m.TLS
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	c, err := imapclient.DialTLS(m.Addr, &imapclient.Options{TLSConfig: tlsCfg})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}
	defer func() { _ = c.Close() }()

	// Best-effort close on context cancel.
	fetchDone := make(chan struct{})
	defer close(fetchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-fetchDone:
		}
	}()

	if err := c.Login(m.Username, m.Password).Wait(); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	defer func() {
		_ = c.Logout().Wait()
	}()

	mailbox := m.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %q: %w", mailbox, err)
	}

	window := m.Window
	if window <= 0 {
		window = 24 * time.Hour
	}
	criteria := &imap.SearchCriteria{
		Since: time.Now().Add(-window),
	}

	searchData, err := c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// Newest first.
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	max := m.MaxMsgs
	if max <= 0 {
		max = 20
	}
	if len(uids) > max {
		uids = uids[:max]
	}

	bodyAll := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierNone,
		Peek:      true,
	}
	fetchCmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	byUID := make(map[imap.UID]Message, len(uids))
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			// Malformed envelopes are skipped, not fatal.
			continue
		}

		var msg Message
		msg.UID = buf.UID
		if buf.Envelope != nil {
			msg.Subject = buf.Envelope.Subject
			msg.Date = buf.Envelope.Date
			msg.From = joinAddrs(buf.Envelope.From)
		}
		if b := buf.FindBodySection(bodyAll); b != nil {
			msg.Raw = append([]byte(nil), b...)
		}
		byUID[msg.UID] = msg
	}

	// IMAP servers do not guarantee fetch response order; restore the
	// newest-first order of the UID list.
	out := make([]Message, 0, len(byUID))
	for _, uid := range uids {
		if msg, ok := byUID[uid]; ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

func joinAddrs(addrs []imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(addrs))
	for i := range addrs {
		a := &addrs[i]
		addr := strings.TrimSpace(a.Addr())
		if addr == "" {
			addr = strings.TrimSpace(a.Name)
		}
		if addr != "" {
			parts = append(parts, addr)
		}
	}
	return strings.Join(parts, ", ")
}
