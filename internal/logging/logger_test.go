package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	buf.Reset()
	return entry
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := New("gateway", "debug", "json")
	l.SetOutput(&buf)

	ctx := WithUserID(WithTraceID(context.Background(), "trace-1"), "user-1")
	l.Info(ctx, "hello", map[string]interface{}{"call": "transfer"})

	entry := decodeLine(t, &buf)
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "gateway", entry["service"])
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "transfer", entry["call"])
}

func TestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	l := New("gateway", "info", "json")
	l.SetOutput(&buf)

	l.Error(context.Background(), "failed", errors.New("boom"), nil)
	entry := decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := New("gateway", "warn", "json")
	l.SetOutput(&buf)

	l.Info(context.Background(), "dropped", nil)
	assert.Zero(t, buf.Len())

	l.LogRequest(context.Background(), "POST", "/account/fund", 400, time.Millisecond)
	entry := decodeLine(t, &buf)
	assert.Equal(t, "warning", entry["level"])
	assert.EqualValues(t, 400, entry["status"])
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetUserID(ctx))

	id := NewTraceID()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, NewTraceID())
}
