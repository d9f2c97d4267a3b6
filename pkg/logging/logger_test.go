package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, slog.LevelInfo).WithRun("abc").WithThread(2)
	log.LogFileDone(context.Background(), "a.ms2", 4, 10)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "abc", rec["run"])
	assert.Equal(t, float64(2), rec["thread"])
	assert.Equal(t, "a.ms2", rec["file"])
	assert.Equal(t, "2.50", rec["avg_candidates"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewText(&buf, slog.LevelWarn)
	log.LogNoCandidates(context.Background(), 1, 2, "[100.0000, 101.0000]")
	assert.Empty(t, buf.String())

	log.LogEmptySpectrum(context.Background(), 1, 2)
	assert.Contains(t, buf.String(), "no peaks retained after preprocessing")

	buf.Reset()
	info := NewText(&buf, slog.LevelInfo)
	info.LogThreadPeaks(context.Background(), 0, 40, 1, 0, 0)
	assert.Empty(t, buf.String())
	info.LogProgress(context.Background(), 1, 4)
	assert.Contains(t, buf.String(), "percent=25.0")
}

func TestDegradedCaseLevels(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		log     func(*Logger)
		level   string
		message string
	}{
		{
			name:    "empty spectrum",
			log:     func(l *Logger) { l.LogEmptySpectrum(ctx, 7, 2) },
			level:   "WARN",
			message: "no peaks retained after preprocessing",
		},
		{
			name:    "no candidates",
			log:     func(l *Logger) { l.LogNoCandidates(ctx, 7, 2, "[100.0000, 101.0000]") },
			level:   "INFO",
			message: "no candidate peptides in window",
		},
		{
			name:    "thread saw no peaks",
			log:     func(l *Logger) { l.LogThreadPeaks(ctx, 1, 0, 0, 0, 0) },
			level:   "INFO",
			message: "no peaks found",
		},
		{
			name:    "thread kept no peaks",
			log:     func(l *Logger) { l.LogThreadPeaks(ctx, 1, 0, 12, 3, 0) },
			level:   "INFO",
			message: "no peaks retained",
		},
		{
			name:    "thread counts",
			log:     func(l *Logger) { l.LogThreadPeaks(ctx, 1, 40, 12, 3, 1) },
			level:   "DEBUG",
			message: "thread peak counts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewJSON(&buf, slog.LevelDebug))

			var rec map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
			assert.Equal(t, tt.level, rec["level"])
			assert.Equal(t, tt.message, rec["msg"])
		})
	}

	var buf bytes.Buffer
	NewJSON(&buf, slog.LevelDebug).LogNoCandidates(ctx, 7, 2, "[100.0000, 101.0000]")
	assert.Contains(t, buf.String(), `"window":"[100.0000, 101.0000]"`)
}
