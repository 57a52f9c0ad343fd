package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	pop3client "github.com/knadh/go-pop3"
)

// POP3Mailbox fetches over POP3S with password auth. POP3 has no server-side
// search, so the date window and content filter are applied client-side.
type POP3Mailbox struct {
	host     string
	port     int
	username string
	password string
	logger   *slog.Logger
}

// NewPOP3 creates a POP3 mailbox.
func NewPOP3(host string, port int, username, password string, logger *slog.Logger) *POP3Mailbox {
	return &POP3Mailbox{
		host:     host,
		port:     port,
		username: username,
		password: password,
		logger:   logger,
	}
}

func (m *POP3Mailbox) Search(ctx context.Context, win Window, filter string) ([]Message, error) {
	addr := net.JoinHostPort(m.host, fmt.Sprintf("%d", m.port))

	opt := pop3client.Opt{
		Host:       m.host,
		Port:       m.port,
		TLSEnabled: true,
	}

	client := pop3client.New(opt)
	conn, err := client.NewConn()
	if err != nil {
		return nil, fmt.Errorf("pop3 connect %s: %w", addr, err)
	}
	defer conn.Quit()

	if err := conn.Auth(m.username, m.password); err != nil {
		return nil, fmt.Errorf("pop3 auth %s: %w", m.username, err)
	}

	msgs, err := conn.List(0)
	if err != nil {
		return nil, fmt.Errorf("pop3 list: %w", err)
	}
	m.logger.Info("fetched message list", "count", len(msgs))

	var messages []Message
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rawBuf, err := conn.RetrRaw(msg.ID)
		if err != nil {
			m.logger.Warn("pop3 retrieve failed", "msg_id", msg.ID, "error", err)
			continue
		}

		parsed, err := parseMessage(rawBuf.Bytes())
		if err != nil {
			m.logger.Warn("unparsable message, skipping", "msg_id", msg.ID, "error", err)
			continue
		}

		if parsed.Date.IsZero() || !win.Contains(parsed.Date) {
			continue
		}
		if !Matches(parsed.Subject, parsed.TextBody, filter) {
			continue
		}

		messages = append(messages, Message{
			Subject:     parsed.Subject,
			From:        parsed.From,
			Date:        parsed.Date,
			Attachments: parsed.Attachments,
		})
	}

	m.logger.Info("filtered messages", "matched", len(messages))
	return messages, nil
}

func (m *POP3Mailbox) Close() error {
	return nil
}
