package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
)

// IMAPMailbox searches a mailbox over IMAPS, authenticating with an OAuth
// access token via SASL XOAUTH2.
type IMAPMailbox struct {
	host        string
	port        int
	username    string
	accessToken string
	folder      string
	logger      *slog.Logger
}

// NewIMAP creates an IMAP mailbox.
func NewIMAP(host string, port int, username, accessToken, folder string, logger *slog.Logger) *IMAPMailbox {
	if folder == "" {
		folder = "INBOX"
	}
	return &IMAPMailbox{
		host:        host,
		port:        port,
		username:    username,
		accessToken: accessToken,
		folder:      folder,
		logger:      logger,
	}
}

func (m *IMAPMailbox) Search(ctx context.Context, win Window, filter string) ([]Message, error) {
	addr := net.JoinHostPort(m.host, fmt.Sprintf("%d", m.port))

	client, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{ServerName: m.host},
	})
	if err != nil {
		return nil, fmt.Errorf("imap connect %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Authenticate(newXOAuth2(m.username, m.accessToken)); err != nil {
		return nil, fmt.Errorf("imap authenticate %s: %w", m.username, err)
	}
	defer client.Logout()

	if _, err := client.Select(m.folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", m.folder, err)
	}

	// TEXT matches headers and body, case-insensitively, server-side.
	criteria := &imap.SearchCriteria{
		Since:  win.Since,
		Before: win.Before,
		Text:   []string{filter},
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		m.logger.Info("no matching messages in window")
		return nil, nil
	}
	m.logger.Info("found matching messages", "count", len(uids))

	uidSet := imap.UIDSetNum(uids...)
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOptions := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	buffers, err := client.Fetch(uidSet, fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	var messages []Message
	for _, buf := range buffers {
		raw := buf.FindBodySection(bodySection)
		if len(raw) == 0 {
			m.logger.Warn("empty body, skipping", "uid", buf.UID)
			continue
		}

		parsed, err := parseMessage(raw)
		if err != nil {
			m.logger.Warn("unparsable message, skipping", "uid", buf.UID, "error", err)
			continue
		}

		msg := Message{
			Subject:     parsed.Subject,
			From:        parsed.From,
			Date:        parsed.Date,
			Attachments: parsed.Attachments,
		}
		if buf.Envelope != nil {
			if msg.Subject == "" {
				msg.Subject = buf.Envelope.Subject
			}
			if msg.Date.IsZero() {
				msg.Date = buf.Envelope.Date
			}
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

func (m *IMAPMailbox) Close() error {
	return nil
}

// xoauth2Client is a minimal SASL XOAUTH2 client for go-sasl; neither Gmail
// nor Office 365 sends a challenge on success.
type xoauth2Client struct {
	username string
	token    string
}

func newXOAuth2(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	// A challenge carries a JSON error blob; an empty reply makes the
	// server fail the exchange with a proper NO response.
	return []byte{}, nil
}
