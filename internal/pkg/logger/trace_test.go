package logger

import (
	"bytes"
	"context"
	log "log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_AddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&ContextHandler{log.NewJSONHandler(&buf, nil)}).With("component", "test")

	ctx := WithTraceID(context.Background(), "view-sync")
	l.InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	traceID, _ := rec[TraceIDKey].(string)
	assert.True(t, strings.HasPrefix(traceID, "job-view-sync-"), traceID)
	assert.Equal(t, "test", rec["component"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, log.LevelWarn, parseLevel("warn"))
	assert.Equal(t, log.LevelInfo, parseLevel(""))
}
