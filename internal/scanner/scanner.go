package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tracyhatemice/mailsift/internal/extract"
	"github.com/tracyhatemice/mailsift/internal/ledger"
	"github.com/tracyhatemice/mailsift/internal/mailbox"
)

// Summary reports what one run did.
type Summary struct {
	Messages    int // matched messages processed
	Skipped     int // messages on already-scanned days
	Attachments int // attachment files saved
}

// Scanner drives one date-bounded scan: search the mailbox, skip days the
// ledger marks complete, save attachments, record progress, persist the
// ledger once at the end.
type Scanner struct {
	mailbox   mailbox.Mailbox
	ledger    *ledger.Ledger
	extractor extract.Extractor
	dir       string
	filter    string
	logger    *slog.Logger
}

// New creates a Scanner saving attachments under dir.
func New(mbox mailbox.Mailbox, led *ledger.Ledger, ex extract.Extractor, dir, filter string, logger *slog.Logger) *Scanner {
	return &Scanner{
		mailbox:   mbox,
		ledger:    led,
		extractor: ex,
		dir:       dir,
		filter:    filter,
		logger:    logger,
	}
}

// Run scans the window and returns a summary. The ledger is persisted
// exactly once, after all messages are processed: if the run dies midway
// no day is marked done, so the next run repeats the whole window rather
// than trusting a half-scanned day.
func (s *Scanner) Run(ctx context.Context, win mailbox.Window) (Summary, error) {
	var sum Summary

	messages, err := s.mailbox.Search(ctx, win, s.filter)
	if err != nil {
		return sum, fmt.Errorf("search mailbox: %w", err)
	}
	if len(messages) == 0 {
		return sum, nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return sum, fmt.Errorf("create attachments dir: %w", err)
	}

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		if msg.Date.IsZero() {
			s.logger.Warn("message without date, skipping", "subject", msg.Subject)
			continue
		}
		day := ledger.DateKey(msg.Date)

		if s.ledger.IsScanned(day) {
			s.logger.Debug("day already scanned, skipping", "date", day, "subject", msg.Subject)
			sum.Skipped++
			continue
		}

		s.ledger.RecordMessage(day)
		sum.Messages++

		for _, att := range msg.Attachments {
			path, err := s.saveAttachment(att)
			if err != nil {
				return sum, err
			}
			s.ledger.RecordAttachment(day)
			sum.Attachments++
			s.logger.Info("saved attachment", "file", filepath.Base(path), "date", day, "from", msg.From)

			lines, err := s.extractor.Extract(att.Data, att.MIMEType)
			if err != nil {
				// Extraction failures never abort the scan.
				s.logger.Warn("extraction failed", "file", filepath.Base(path), "error", err)
				continue
			}
			if len(lines) > 0 {
				s.logger.Info("extracted text", "file", filepath.Base(path), "first_line", lines[0], "lines", len(lines))
			}
		}
	}

	if err := s.ledger.Persist(); err != nil {
		return sum, fmt.Errorf("persist ledger: %w", err)
	}

	s.logger.Info("scan complete",
		"messages", sum.Messages,
		"skipped", sum.Skipped,
		"attachments", sum.Attachments,
	)
	return sum, nil
}

// saveAttachment writes the attachment under a collision-avoiding name.
func (s *Scanner) saveAttachment(att mailbox.Attachment) (string, error) {
	name := sanitizeFilename(att.Filename)
	path := uniquePath(s.dir, name)
	if err := os.WriteFile(path, att.Data, 0o644); err != nil {
		return "", fmt.Errorf("save attachment %s: %w", name, err)
	}
	return path, nil
}

// uniquePath appends a numeric suffix to name until the path is unused.
func uniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, i, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}

// sanitizeFilename strips path separators and falls back to a fixed name
// for attachments without one.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "attachment.bin"
	}
	return name
}
