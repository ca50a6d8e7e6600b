package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(Config{Level: level, Output: buf}), buf
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(WARN)

	l.Info("queued lead %s", "l-1")
	l.Warn("queue drift in %s", "inst-1")

	out := buf.String()
	assert.NotContains(t, out, "queued lead")
	assert.Contains(t, out, "WARN queue drift in inst-1")
}

func TestLogger_WithFields(t *testing.T) {
	l, buf := newBufferLogger(DEBUG)

	l.With("institution", "inst-1", "lead", "l-9").Info("lead assigned")

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "INFO institution=inst-1 lead=l-9 lead assigned")
}

func TestLogger_WithFieldsDoesNotLeak(t *testing.T) {
	l, buf := newBufferLogger(DEBUG)

	_ = l.With("counselor", "c-1")
	l.Info("plain")

	assert.NotContains(t, buf.String(), "counselor=")
}

func TestLogger_FatalCallsExit(t *testing.T) {
	l, buf := newBufferLogger(INFO)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal("store unreachable")

	require.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "FATAL store unreachable")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" ERROR "))
	assert.Equal(t, INFO, ParseLevel(""))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}
