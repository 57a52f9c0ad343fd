package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const gmailUser = "me"

// gmailDateFormat is the date layout Gmail's search operators expect.
const gmailDateFormat = "2006/01/02"

// GmailMailbox searches via the Gmail API. The content filter and date
// window are pushed into Gmail's server-side query syntax.
type GmailMailbox struct {
	srv    *gmail.Service
	logger *slog.Logger
}

// NewGmail creates a Gmail API mailbox authenticated with accessToken.
func NewGmail(ctx context.Context, accessToken string, logger *slog.Logger) (*GmailMailbox, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	srv, err := gmail.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &GmailMailbox{srv: srv, logger: logger}, nil
}

func (m *GmailMailbox) Search(ctx context.Context, win Window, filter string) ([]Message, error) {
	// Gmail search is case-insensitive; after: is inclusive of the day,
	// before: exclusive, matching the window semantics.
	query := fmt.Sprintf("%q after:%s", filter, win.Since.Format(gmailDateFormat))
	if !win.Before.IsZero() {
		query += " before:" + win.Before.Format(gmailDateFormat)
	}

	var refs []*gmail.Message
	pageToken := ""
	for {
		call := m.srv.Users.Messages.List(gmailUser).Q(query).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("gmail list messages: %w", err)
		}
		refs = append(refs, list.Messages...)
		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	if len(refs) == 0 {
		m.logger.Info("no matching messages in window")
		return nil, nil
	}
	m.logger.Info("found matching messages", "count", len(refs))

	var messages []Message
	for _, ref := range refs {
		full, err := m.srv.Users.Messages.Get(gmailUser, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("gmail get message %s: %w", ref.Id, err)
		}

		msg := Message{
			Date: time.UnixMilli(full.InternalDate).UTC(),
		}
		if full.Payload != nil {
			for _, header := range full.Payload.Headers {
				switch header.Name {
				case "Subject":
					msg.Subject = header.Value
				case "From":
					msg.From = header.Value
				}
			}
		}

		attachments, err := m.collectAttachments(ctx, ref.Id, full.Payload)
		if err != nil {
			return nil, err
		}
		msg.Attachments = attachments

		messages = append(messages, msg)
	}

	return messages, nil
}

// collectAttachments walks the message part tree and downloads every part
// that carries a filename.
func (m *GmailMailbox) collectAttachments(ctx context.Context, msgID string, part *gmail.MessagePart) ([]Attachment, error) {
	if part == nil {
		return nil, nil
	}

	var attachments []Attachment
	if part.Filename != "" && part.Body != nil {
		data, err := m.partData(ctx, msgID, part)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, Attachment{
			Filename: part.Filename,
			MIMEType: part.MimeType,
			Data:     data,
		})
	}

	for _, child := range part.Parts {
		nested, err := m.collectAttachments(ctx, msgID, child)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, nested...)
	}

	return attachments, nil
}

func (m *GmailMailbox) partData(ctx context.Context, msgID string, part *gmail.MessagePart) ([]byte, error) {
	encoded := part.Body.Data
	if encoded == "" && part.Body.AttachmentId != "" {
		body, err := m.srv.Users.Messages.Attachments.Get(gmailUser, msgID, part.Body.AttachmentId).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("gmail get attachment %s: %w", part.Filename, err)
		}
		encoded = body.Data
	}
	data, err := decodeBase64URL(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode attachment %s: %w", part.Filename, err)
	}
	return data, nil
}

func (m *GmailMailbox) Close() error {
	return nil
}

// decodeBase64URL handles both padded and unpadded base64url, which the
// Gmail API is inconsistent about.
func decodeBase64URL(s string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
