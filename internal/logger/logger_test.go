package logger_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/mailworker/internal/logger"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "worker.log")

	log, closer, err := logger.New(logger.Options{Level: "debug", File: path})
	require.NoError(t, err)
	log.Debug("hello", "notification_id", "abc")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "abc", rec["notification_id"])
	assert.Equal(t, "DEBUG", rec["level"])
}

func TestNew_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")

	log, closer, err := logger.New(logger.Options{Level: "warn", Format: "text", File: path})
	require.NoError(t, err)
	log.Info("dropped")
	log.Warn("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "msg=kept")
}

func TestNew_RejectsUnknownValues(t *testing.T) {
	_, _, err := logger.New(logger.Options{Format: "xml"})
	assert.Error(t, err)

	_, _, err = logger.New(logger.Options{Level: "loud"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := logger.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestRedactEmail(t *testing.T) {
	cases := map[string]string{
		"john.doe@example.com": "jo***@example.com",
		"ab@example.com":       "***@example.com",
		"a@b.com":              "***@b.com",
		"not-an-email":         "***@***",
		"a@b@c.com":            "***@***",
		"":                     "***@***",
	}
	for in, want := range cases {
		assert.Equal(t, want, logger.RedactEmail(in), in)
	}
}
