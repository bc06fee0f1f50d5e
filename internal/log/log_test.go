package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := ParseLevel("loud")
	assert.False(t, ok)
	assert.Equal(t, LevelInfo, got)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown warn", "path", "/tmp/a b")
	Error("shown error", errors.New("boom"), "id", "work")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `[WARN] shown warn path="/tmp/a b"`)
	assert.Contains(t, out, "[ERROR] shown error err=boom id=work")
}

func TestFormatKVsIgnoresOddAndNonStringKeys(t *testing.T) {
	assert.Equal(t, " a=1", formatKVs("a", 1, 2, 3, "dangling"))
}
