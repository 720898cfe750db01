package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newWithWriter(&buf, "json", "info", false)
	log.Debug("hidden")
	log.Info("order ignored", "reason", "unmapped")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "order ignored", rec["msg"])
	require.Equal(t, "unmapped", rec["reason"])
}

func TestNew_VerboseText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newWithWriter(&buf, "text", "error", true)
	log.Debug("visible", "empty", "")
	require.Contains(t, buf.String(), "visible")
	require.NotContains(t, buf.String(), "empty=")
}

func TestFormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 5, 6, 7, 8, 9, 123456789, time.FixedZone("x", 3600))
	require.Equal(t, "2025-05-06T06:08:09.123Z", formatRFC3339Millis(ts))
}
