package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansInheritTrace(t *testing.T) {
	ctx, root := Start(context.Background(), "search", "req-1")
	_, child := Start(ctx, "fusion", "ignored")
	child.Set("stop", "budget")
	child.End()
	root.End()

	assert.Equal(t, "req-1", child.TraceID)
	require.Len(t, root.Children(), 1)
	assert.Same(t, child, root.Children()[0])
	assert.Same(t, root, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}

func TestSpanLogsTree(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := Start(context.Background(), "search", "req-2")
	_, child := Start(ctx, "resolve", "")
	child.Set("hits", 3)
	child.End()
	root.End()
	root.Log(ctx, logger)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "req-2", rec["trace_id"])
	search := rec["search"].(map[string]any)
	resolve := search["resolve"].(map[string]any)
	assert.Equal(t, float64(3), resolve["hits"])
}

func TestNilSpanIsInert(t *testing.T) {
	var s *Span
	s.Set("k", 1)
	s.End()
}
