package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantJSON    bool
	}{
		{"production uses json", "production", true},
		{"development uses pretty", "development", false},
		{"staging uses pretty", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf})
			log.Info("ingest started")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"ingest started"`)
			} else {
				assert.Contains(t, buf.String(), "INF ingest started")
			}
		})
	}
}

func TestNew_ExplicitFormatWins(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Environment: "development", Writer: &buf})
	log.Info("test")

	assert.Contains(t, buf.String(), `"msg":"test"`)
}

func TestNew_NonTerminalWriterHasNoColor(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Writer: &buf})
	log.Info("plain", "book_id", "b1")

	assert.NotContains(t, buf.String(), "\033[")
	assert.Contains(t, buf.String(), "plain book_id=b1")
}

func TestNew_RegularFileHasNoColor(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log.txt"))
	require.NoError(t, err)
	defer f.Close()

	log := New(Config{Level: slog.LevelInfo, Writer: f})
	log.Info("to file")

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\033[")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelWarn, Format: "json", Writer: &buf})

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_ColorsWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewPrettyHandler(&buf, nil)).Info("colored")

	assert.Contains(t, buf.String(), colorBold+"colored"+colorReset)
}

func TestPrettyHandler_LevelLabels(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, " DBG "},
		{slog.LevelInfo, " INF "},
		{slog.LevelWarn, " WRN "},
		{slog.LevelError, " ERR "},
		{slog.LevelError + 4, " ERR "},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.want), func(t *testing.T) {
			var buf bytes.Buffer
			h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
			h.noColor = true
			slog.New(h).Log(context.Background(), tt.level, "test")

			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))

	def := NewPrettyHandler(&bytes.Buffer{}, nil)
	assert.False(t, def.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, def.Enabled(context.Background(), slog.LevelInfo))
}

func TestPrettyHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)
	h.noColor = true

	log := slog.New(h).With("voice", "zh-CN-YunyangNeural").WithGroup("job")
	log.Info("segment synthesized", "segment", 2, slog.Group("chapter", "id", "003"))

	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "voice=zh-CN-YunyangNeural job.segment=2 job.chapter.id=003")
}

func TestPrettyHandler_QuotesAwkwardStrings(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)
	h.noColor = true

	slog.New(h).Warn("merge failed", "stderr", "no such file", "title", "")

	assert.Contains(t, buf.String(), `stderr="no such file" title=""`)
}
