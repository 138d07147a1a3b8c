package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/supportbot/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("dropped")
	logger.Warn("kept", "strategy", "balanced")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "balanced", rec["strategy"])
	assert.NotContains(t, buf.String(), "dropped")
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello k=v")
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supportbot.log")
	var buf bytes.Buffer
	logger, closer, err := New(config.LoggingConfig{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1}, &buf)
	require.NoError(t, err)

	logger.Info("to both")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestNew_Errors(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, _, err = New(config.LoggingConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
