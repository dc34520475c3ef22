package overview

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTable(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	submitted := now.Add(-90 * time.Minute)

	remote := remoteCopy("c1", attendance.MarkPresent, attendance.MarkAbsent)
	remote.SubmittedAt = &submitted
	queued := queuedCopy("c2", attendance.MarkPresent)

	var buf bytes.Buffer
	n := FormatTable(&buf, []*attendance.Session{remote, queued}, now)
	assert.Equal(t, 2, n)

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)

	assert.Contains(t, lines[0], "DATE")
	assert.Contains(t, lines[2], "Class c1")
	assert.Contains(t, lines[2], "50%")
	assert.Contains(t, lines[2], "1h ago")
	assert.Contains(t, lines[2], "synced")
	assert.Contains(t, lines[3], "pending")
	assert.Contains(t, lines[3], " - ")
	assert.Equal(t, "2 sessions, 3 learners marked, 67% attendance (1 not yet synced)", lines[5])
}

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 0, FormatTable(&buf, nil, time.Now()))
	assert.Equal(t, "No submitted sessions found\n", buf.String())
}

func TestFormatJSONL(t *testing.T) {
	sessions := []*attendance.Session{remoteCopy("c1"), queuedCopy("c2")}

	var buf bytes.Buffer
	require.NoError(t, FormatJSONL(&buf, sessions))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var decoded attendance.Session
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	assert.Equal(t, "offline_c2", decoded.ID)
	assert.Equal(t, attendance.SyncPending, decoded.SyncStatus)
}

func TestFormatSingleJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatSingleJSON(&buf, remoteCopy("c1")))

	assert.True(t, strings.HasSuffix(buf.String(), "}\n"))
	assert.Contains(t, buf.String(), `  "id": "c1_t1_20240304"`)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "-", truncate("", 10))
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééééééé...", truncate(strings.Repeat("é", 12), 10))
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	assert.Equal(t, "-", formatAge(nil, now))
	assert.Equal(t, "now", formatAge(at(-time.Minute), now))
	assert.Equal(t, "30s ago", formatAge(at(30*time.Second), now))
	assert.Equal(t, "5m ago", formatAge(at(5*time.Minute), now))
	assert.Equal(t, "3h ago", formatAge(at(3*time.Hour), now))
	assert.Equal(t, "2d ago", formatAge(at(49*time.Hour), now))
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatDefault, f)

	f, err = ParseOutputFormat("json")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatJSONL, f)

	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}
