package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithMatchID(ctx, "match-1")

	log.Error(ctx, "accept failed", errors.New("boom"))

	entry := decodeLine(t, buf)
	require.Equal(t, "req-123", entry["request_id"])
	require.Equal(t, "match-1", entry["match_id"])
	require.Equal(t, "boom", entry["error"])
	require.Equal(t, "test", entry["service"])
	require.Contains(t, entry, "stack")
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, WarnStack: true})
	log.Warn(context.Background(), "oracle slow")
	require.Contains(t, decodeLine(t, buf), "stack")

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "oracle slow")
	require.NotContains(t, decodeLine(t, buf), "stack")
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.WarnLevel, Output: buf})
	log.Info(context.Background(), "dropped")
	require.Zero(t, buf.Len())
}

func TestParseLevelDefaults(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	require.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}

func TestLoggerFieldsStayScopedToContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: "json"})

	parent := log.WithFoodItemID(context.Background(), "food-1")
	child := log.WithFields(parent, map[string]any{"match_id": "m-1", "attempt": 2})

	log.Info(parent, "parent")
	entry := decodeLine(t, buf)
	require.Equal(t, "food-1", entry["food_item_id"])
	require.NotContains(t, entry, "match_id")

	buf.Reset()
	log.Info(child, "child")
	entry = decodeLine(t, buf)
	require.Equal(t, "food-1", entry["food_item_id"])
	require.Equal(t, "m-1", entry["match_id"])
	require.EqualValues(t, 2, entry["attempt"])
}
