package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestLoggerEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(InfoLevel, &buf)

	log.WithField("role_id", "role-1").Info("role created")

	entry := lastLogLine(t, &buf)
	assert.Equal(t, "role created", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "role-1", entry["role_id"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(WarnLevel, &buf)

	log.Debug("too quiet")
	log.Info("still too quiet")
	assert.Zero(t, buf.Len())

	log.Warn("loud enough")
	assert.NotZero(t, buf.Len())
}

func TestWithWorkspaceAndError(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(InfoLevel, &buf)

	log.WithWorkspace("ws-1").WithError(assert.AnError).Warnf("invalidation failed for %s", "ws-1")

	entry := lastLogLine(t, &buf)
	assert.Equal(t, "ws-1", entry["workspace_id"])
	assert.Equal(t, assert.AnError.Error(), entry["error"])
}

func TestWithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(InfoLevel, &buf)

	log.WithError(nil).Info("no error attached")

	entry := lastLogLine(t, &buf)
	_, hasError := entry["error"]
	assert.False(t, hasError)
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(InfoLevel, &buf))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithWorkspaceID(ctx, "ws-1")

	FromContext(ctx).Info("contextual")

	entry := lastLogLine(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "ws-1", entry["workspace_id"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLogLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLogLevel("unknown"))
}
