package mailbox

import (
	"context"
	"strings"
	"time"
)

// Attachment is one raw attachment pulled from a message.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Message is one matched mail message.
type Message struct {
	Subject     string
	From        string
	Date        time.Time
	Attachments []Attachment
}

// Window bounds a scan. Since is inclusive, Before exclusive; a zero Before
// leaves the window open-ended.
type Window struct {
	Since  time.Time
	Before time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if t.Before(w.Since) {
		return false
	}
	if !w.Before.IsZero() && !t.Before(w.Before) {
		return false
	}
	return true
}

// Mailbox searches a remote mailbox for messages matching a content filter.
type Mailbox interface {
	// Search returns messages within the window whose subject or body
	// contains filter, case-insensitively.
	Search(ctx context.Context, win Window, filter string) ([]Message, error)

	// Close releases any resources held by the mailbox.
	Close() error
}

// Matches reports whether subject or body contains filter, ignoring case.
// Used by implementations that filter client-side.
func Matches(subject, body, filter string) bool {
	f := strings.ToLower(filter)
	return strings.Contains(strings.ToLower(subject), f) ||
		strings.Contains(strings.ToLower(body), f)
}
