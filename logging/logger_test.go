package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected []string
		excluded []string
	}{
		{"debug", []string{"dbg-msg", "inf-msg", "wrn-msg", "err-msg"}, nil},
		{"info", []string{"inf-msg", "wrn-msg", "err-msg"}, []string{"dbg-msg"}},
		{"warn", []string{"wrn-msg", "err-msg"}, []string{"dbg-msg", "inf-msg"}},
		{"error", []string{"err-msg"}, []string{"dbg-msg", "inf-msg", "wrn-msg"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := New("test", WithWriter(&buf), WithLevel(tt.level))

			l.Debugf("dbg-msg")
			l.Infof("inf-msg")
			l.Warnf("wrn-msg")
			l.Errorf("err-msg")

			out := buf.String()
			for _, s := range tt.expected {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excluded {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("watch", WithWriter(&buf))
	l.Infof("balance %d", 42)

	out := buf.String()
	assert.Contains(t, out, "| INFO  |")
	assert.Contains(t, out, "| watch   | balance 42")
	assert.NotContains(t, out, "\x1b[", "colour is disabled for non-terminal writers")
}

func TestJSONOutputAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New("wallet", WithWriter(&buf), WithJSON(), WithLevel("debug")).With("scanner")
	l.Debugf("index %d", 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "wallet", entry["service"])
	assert.Equal(t, "scanner", entry["component"])
	assert.Equal(t, "index 3", entry["message"])
	assert.Equal(t, "debug", l.Level())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
	assert.Equal(t, zerolog.Disabled, ParseLevel("disabled"))
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Errorf("nothing %s", "here")
	assert.NotNil(t, l.With("x"))
}
