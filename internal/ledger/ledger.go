package ledger

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DateFormat is the calendar-day key format used in the ledger file.
const DateFormat = "2006-01-02"

// epoch is the resume point for an empty ledger.
var epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// Entry records completed work for one calendar day. A day present in the
// ledger is fully processed and must not be scanned again.
type Entry struct {
	EmailsSeen       int
	AttachmentsSaved int
}

// Ledger is the durable per-day record of scan completion. Entries are
// persisted as one CSV record per day, sorted ascending by date.
type Ledger struct {
	mu      sync.Mutex
	file    string
	entries map[string]Entry
	frozen  map[string]struct{} // dates present at load time, never recorded against again
	logger  *slog.Logger
}

// Load reads (or creates) the ledger backed by filePath. Malformed lines
// are skipped with a warning; a missing file yields an empty ledger.
func Load(filePath string, logger *slog.Logger) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	l := &Ledger{
		file:    filePath,
		entries: make(map[string]Entry),
		frozen:  make(map[string]struct{}),
		logger:  logger,
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		date, entry, err := parseLine(line)
		if err != nil {
			logger.Warn("skipping malformed ledger line", "line", line, "error", err)
			continue
		}
		l.entries[date] = entry
		l.frozen[date] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}

	return l, nil
}

// parseLine parses one ledger record. Legacy two-column records carry only
// the email count; the attachment count defaults to zero.
func parseLine(line string) (string, Entry, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 2 && len(fields) != 3 {
		return "", Entry{}, fmt.Errorf("want 2 or 3 fields, got %d", len(fields))
	}

	date := strings.TrimSpace(fields[0])
	if _, err := time.Parse(DateFormat, date); err != nil {
		return "", Entry{}, fmt.Errorf("bad date %q", date)
	}

	emails, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil || emails < 0 {
		return "", Entry{}, fmt.Errorf("bad email count %q", fields[1])
	}

	attachments := 0
	if len(fields) == 3 {
		attachments, err = strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil || attachments < 0 {
			return "", Entry{}, fmt.Errorf("bad attachment count %q", fields[2])
		}
	}

	return date, Entry{EmailsSeen: emails, AttachmentsSaved: attachments}, nil
}

// IsScanned reports whether date was already fully processed when the
// ledger was loaded. Dates first recorded during the current run are not
// scanned; their counters keep accumulating until Persist.
func (l *Ledger) IsScanned(date string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.frozen[date]
	return ok
}

// RecordMessage counts one processed message against date, creating the
// entry if absent. Records against an already-scanned date are a caller
// bug; they are dropped with a warning, never double-counted.
func (l *Ledger) RecordMessage(date string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.frozen[date]; ok {
		l.logger.Warn("dropping message record for already-scanned date", "date", date)
		return
	}
	entry := l.entries[date]
	entry.EmailsSeen++
	l.entries[date] = entry
}

// RecordAttachment counts one saved attachment against date, creating the
// entry if absent. Records against an already-scanned date are dropped
// with a warning, like RecordMessage.
func (l *Ledger) RecordAttachment(date string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.frozen[date]; ok {
		l.logger.Warn("dropping attachment record for already-scanned date", "date", date)
		return
	}
	entry := l.entries[date]
	entry.AttachmentsSaved++
	l.entries[date] = entry
}

// Entry returns the entry for date, if present.
func (l *Ledger) Entry(date string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[date]
	return entry, ok
}

// Len returns the number of recorded days.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Persist writes all entries sorted by date ascending, replacing the prior
// file via write-temp-then-rename so a crash mid-write cannot truncate it.
func (l *Ledger) Persist() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dates := make([]string, 0, len(l.entries))
	for date := range l.entries {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	var sb strings.Builder
	for _, date := range dates {
		entry := l.entries[date]
		fmt.Fprintf(&sb, "%s,%d,%d\n", date, entry.EmailsSeen, entry.AttachmentsSaved)
	}

	tmp := l.file + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.file); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// ResumePoint returns the date to start scanning from: the override when
// supplied, else the maximum recorded date, else the epoch.
func (l *Ledger) ResumePoint(override time.Time) time.Time {
	if !override.IsZero() {
		return override
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var max time.Time
	for date := range l.entries {
		t, err := time.Parse(DateFormat, date)
		if err != nil {
			continue
		}
		if t.After(max) {
			max = t
		}
	}
	if max.IsZero() {
		return epoch
	}
	return max
}

// DateKey formats t as a ledger date key.
func DateKey(t time.Time) string {
	return t.Format(DateFormat)
}
