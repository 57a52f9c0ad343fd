package mailbox

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// parsedMessage is the result of decoding one raw RFC 5322 message.
type parsedMessage struct {
	Subject     string
	From        string
	Date        time.Time
	TextBody    string
	Attachments []Attachment
}

// parseMessage decodes raw message bytes: headers, the plain-text body, and
// all attachments with their content.
func parseMessage(raw []byte) (parsedMessage, error) {
	var out parsedMessage

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return out, err
	}
	defer mr.Close()

	out.Subject, _ = mr.Header.Subject()
	if date, err := mr.Header.Date(); err == nil {
		out.Date = date
	}
	if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 {
		out.From = addrs[0].Address
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			if !strings.HasPrefix(contentType, "text/plain") {
				continue
			}
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			if out.TextBody == "" {
				out.TextBody = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			out.Attachments = append(out.Attachments, Attachment{
				Filename: filename,
				MIMEType: contentType,
				Data:     body,
			})
		}
	}

	return out, nil
}
