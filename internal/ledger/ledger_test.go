package ledger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scanned.csv")

	l, err := Load(file, testLogger())
	require.NoError(t, err)

	l.RecordMessage("2024-01-02")
	l.RecordMessage("2024-01-02")
	l.RecordAttachment("2024-01-02")
	l.RecordMessage("2024-01-01")
	require.NoError(t, l.Persist())

	reloaded, err := Load(file, testLogger())
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.Len())

	entry, ok := reloaded.Entry("2024-01-02")
	require.True(t, ok)
	assert.Equal(t, Entry{EmailsSeen: 2, AttachmentsSaved: 1}, entry)

	entry, ok = reloaded.Entry("2024-01-01")
	require.True(t, ok)
	assert.Equal(t, Entry{EmailsSeen: 1, AttachmentsSaved: 0}, entry)
}

func TestPersistSortsByDate(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scanned.csv")

	l, err := Load(file, testLogger())
	require.NoError(t, err)
	l.RecordMessage("2024-03-01")
	l.RecordMessage("2024-01-15")
	l.RecordMessage("2024-02-20")
	require.NoError(t, l.Persist())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15,1,0\n2024-02-20,1,0\n2024-03-01,1,0\n", string(data))
}

func TestLoadLegacyTwoColumn(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scanned.csv")
	require.NoError(t, os.WriteFile(file, []byte("2024-01-01,3\n2024-01-02,2,5\n"), 0o644))

	l, err := Load(file, testLogger())
	require.NoError(t, err)

	entry, ok := l.Entry("2024-01-01")
	require.True(t, ok)
	assert.Equal(t, Entry{EmailsSeen: 3, AttachmentsSaved: 0}, entry)

	entry, ok = l.Entry("2024-01-02")
	require.True(t, ok)
	assert.Equal(t, Entry{EmailsSeen: 2, AttachmentsSaved: 5}, entry)
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scanned.csv")
	content := "garbage\n" +
		"2024-13-99,1,1\n" +
		"2024-01-03,-1,0\n" +
		"2024-01-03,x,0\n" +
		"2024-01-04,1,2\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	l, err := Load(file, testLogger())
	require.NoError(t, err)
	require.Equal(t, 1, l.Len())

	entry, ok := l.Entry("2024-01-04")
	require.True(t, ok)
	assert.Equal(t, Entry{EmailsSeen: 1, AttachmentsSaved: 2}, entry)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "nothing.csv"), testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestIsScanned(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scanned.csv")
	require.NoError(t, os.WriteFile(file, []byte("2024-01-01,3,2\n"), 0o644))

	l, err := Load(file, testLogger())
	require.NoError(t, err)

	assert.True(t, l.IsScanned("2024-01-01"))
	assert.False(t, l.IsScanned("2024-01-02"))

	// A date first recorded in this run stays unscanned until persisted and
	// reloaded; its counters are still accumulating.
	l.RecordMessage("2024-01-02")
	assert.False(t, l.IsScanned("2024-01-02"))
	require.NoError(t, l.Persist())

	reloaded, err := Load(file, testLogger())
	require.NoError(t, err)
	assert.True(t, reloaded.IsScanned("2024-01-02"))
}

func TestRecordOnScannedDateIsDropped(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scanned.csv")
	require.NoError(t, os.WriteFile(file, []byte("2024-01-01,3,2\n"), 0o644))

	l, err := Load(file, testLogger())
	require.NoError(t, err)

	l.RecordMessage("2024-01-01")
	l.RecordAttachment("2024-01-01")

	entry, ok := l.Entry("2024-01-01")
	require.True(t, ok)
	assert.Equal(t, Entry{EmailsSeen: 3, AttachmentsSaved: 2}, entry)

	require.NoError(t, l.Persist())
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01,3,2\n", string(data))
}

func TestResumePoint(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "scanned.csv"), testLogger())
	require.NoError(t, err)

	// Empty ledger resumes from the epoch.
	assert.Equal(t, epoch, l.ResumePoint(time.Time{}))

	l.RecordMessage("2024-01-05")
	l.RecordMessage("2024-01-10")
	l.RecordMessage("2024-01-07")

	want := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, l.ResumePoint(time.Time{}))

	override := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, override, l.ResumePoint(override))
}

func TestPersistFailureLeavesPriorFileIntact(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	dir := filepath.Join(t.TempDir(), "state")
	file := filepath.Join(dir, "scanned.csv")

	l, err := Load(file, testLogger())
	require.NoError(t, err)
	l.RecordMessage("2024-01-01")
	require.NoError(t, l.Persist())

	// Make the temp-file write fail mid-persist.
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	l.RecordMessage("2024-01-02")
	require.Error(t, l.Persist())

	require.NoError(t, os.Chmod(dir, 0o755))
	reloaded, err := Load(file, testLogger())
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Len())
	assert.True(t, reloaded.IsScanned("2024-01-01"))
}

func TestDateKey(t *testing.T) {
	d := time.Date(2024, time.March, 5, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-05", DateKey(d))
}
