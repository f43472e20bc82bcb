package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekplan/internal/database"
	"weekplan/internal/shared"
)

func newTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewStore(db)
	s.now = func() time.Time { return now }
	return s
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	require.NoError(t, s.RecordMeta(ctx, shared.AgentMeta{
		AgentName: "ShopConsolidator",
		Usage:     shared.TokenUsage{PromptTokens: 100, CompletionTokens: 40, Model: "gemini-1.5-flash"},
		Latency:   300 * time.Millisecond,
		Outcome:   "accepted",
	}))
	require.NoError(t, s.Record(ctx, ExecutionMetric{
		AgentName:        "ShopConsolidator",
		Model:            "gemini-1.5-flash",
		PromptTokens:     50,
		CompletionTokens: 10,
		LatencyMS:        100,
		Outcome:          "invalid",
		Timestamp:        now.Add(-time.Hour),
	}))
	require.NoError(t, s.Record(ctx, ExecutionMetric{
		AgentName:    "ShopConsolidator",
		PromptTokens: 70,
		LatencyMS:    500,
		Timestamp:    now.AddDate(0, 0, -2),
	}))
	require.NoError(t, s.Record(ctx, ExecutionMetric{
		AgentName:    "ShopConsolidator",
		PromptTokens: 999,
		Timestamp:    now.AddDate(0, 0, -40),
	}))

	t.Run("GetDailyUsage", func(t *testing.T) {
		usage, err := s.GetDailyUsage(ctx, 7)
		require.NoError(t, err)
		require.Len(t, usage, 2)

		assert.Equal(t, DailyUsage{Date: "2026-03-12", TotalPrompt: 150, TotalCompletion: 50, TotalExecution: 2, AvgLatencyMS: 200}, usage[0])
		assert.Equal(t, DailyUsage{Date: "2026-03-10", TotalPrompt: 70, TotalExecution: 1, AvgLatencyMS: 500}, usage[1])
	})

	t.Run("Cleanup", func(t *testing.T) {
		n, err := s.Cleanup(ctx, 30)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		usage, err := s.GetDailyUsage(ctx, 90)
		require.NoError(t, err)
		assert.Len(t, usage, 2)
	})
}

func TestStoreEmpty(t *testing.T) {
	s := newTestStore(t, time.Now())
	usage, err := s.GetDailyUsage(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, usage)
}

func TestGetSysHealth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weekplan.db"), make([]byte, 2048), 0o644))

	h := GetSysHealth(dir)
	assert.Equal(t, "2.0 KB", h.DataDiskSize)
	assert.Greater(t, h.Goroutines, 0)
	assert.Empty(t, GetSysHealth("").DataDiskSize)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 MB", formatBytes(1536*1024))
}
