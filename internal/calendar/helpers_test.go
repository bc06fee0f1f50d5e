package calendar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
)

// testNow is the pinned clock for window-dependent tests.
var testNow = time.Date(2026, time.October, 14, 15, 0, 0, 0, time.UTC)

func testWindow(days int) Window {
	return NewWindow(testNow, days, time.UTC)
}

// vevent builds a VEVENT block from property lines.
func vevent(props ...string) string {
	lines := append([]string{"BEGIN:VEVENT"}, props...)
	lines = append(lines, "END:VEVENT")
	return strings.Join(lines, "\r\n")
}

func icsBody(events ...string) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//pinchy//test//EN\r\n")
	for _, ev := range events {
		b.WriteString(ev)
		b.WriteString("\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

// writeICS writes a calendar file with the given VEVENT blocks and
// returns its path.
func writeICS(t *testing.T, dir, name string, events ...string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(icsBody(events...)), 0o644))
	return path
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func realPath(t *testing.T, p string) string {
	t.Helper()
	r, err := filepath.EvalSymlinks(p)
	require.NoError(t, err)
	return r
}
