package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(buf *bytes.Buffer, sourceLevels ...slog.Level) *slog.Logger {
	base := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(newAppHandler(base, handlerOptions{
		SourceLevels: sourceLevels,
		RedactKeys:   defaultRedactedKeys,
	}))
}

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestAppHandler_Source(t *testing.T) {
	tests := []struct {
		name       string
		level      slog.Level
		sourceFor  []slog.Level
		wantSource bool
	}{
		{"info without source", slog.LevelInfo, []slog.Level{slog.LevelWarn, slog.LevelError}, false},
		{"warn with source", slog.LevelWarn, []slog.Level{slog.LevelWarn, slog.LevelError}, true},
		{"error with source", slog.LevelError, []slog.Level{slog.LevelWarn, slog.LevelError}, true},
		{"debug in debug mode", slog.LevelDebug, []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := newTestHandler(&buf, tt.sourceFor...)

			log.Log(t.Context(), tt.level, "renewal attempt", "subscription_id", 42)

			rec := decodeRecord(t, &buf)
			_, hasSource := rec[slog.SourceKey]
			assert.Equal(t, tt.wantSource, hasSource)
			assert.EqualValues(t, 42, rec["subscription_id"])
		})
	}
}

func TestAppHandler_SourcePointsAtCaller(t *testing.T) {
	var buf bytes.Buffer
	log := newTestHandler(&buf, slog.LevelError)

	log.Error("charge failed")

	rec := decodeRecord(t, &buf)
	source, ok := rec[slog.SourceKey].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source["file"], "handler_test.go")
}

func TestAppHandler_RedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := newTestHandler(&buf)

	log.Info("saved payment method",
		"payment_method_id", "pm_2c7a",
		"Authorization", "Basic c2hvcDpzZWNyZXQ=",
		"user_id", 7,
	)

	rec := decodeRecord(t, &buf)
	assert.Equal(t, redactedValue, rec["payment_method_id"])
	assert.Equal(t, redactedValue, rec["Authorization"])
	assert.EqualValues(t, 7, rec["user_id"])
}

func TestAppHandler_RedactsGroupsAndWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := newTestHandler(&buf).With("bot_token", "123:abc")

	log.Info("provider request", slog.Group("provider", "shop_id", "5001", "secret_key", "live_xyz"))

	rec := decodeRecord(t, &buf)
	assert.Equal(t, redactedValue, rec["bot_token"])
	provider, ok := rec["provider"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "5001", provider["shop_id"])
	assert.Equal(t, redactedValue, provider["secret_key"])
}

func TestSlogLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithSlog(newTestHandler(&buf)).Named("scheduler")

	log.Infow("job registered", "job", "collect_today")

	rec := decodeRecord(t, &buf)
	assert.Equal(t, "scheduler", rec["component"])
	assert.Equal(t, "collect_today", rec["job"])
}
