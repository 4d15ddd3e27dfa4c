package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/resource-governor/internal/model"
)

func newTestHistory(t *testing.T) *SQLiteExecutionHistory {
	t.Helper()

	store, err := NewSQLiteExecutionHistory(zaptest.NewLogger(t), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(executorID string, success bool, startedAt time.Time) *ExecutionRecord {
	return &ExecutionRecord{
		ID:          uuid.New().String(),
		ExecutorID:  executorID,
		Success:     success,
		Duration:    150 * time.Millisecond,
		MemoryMB:    64.5,
		Pressure:    model.PressureElevated,
		StartedAt:   startedAt,
		CompletedAt: startedAt.Add(150 * time.Millisecond),
	}
}

func TestSQLiteExecutionHistory_RecordAndList(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	oldest := testRecord("entity-extractor", true, base)
	newest := testRecord("entity-extractor", false, base.Add(10*time.Minute))
	other := testRecord("pattern-matcher", true, base)

	require.NoError(t, store.Record(ctx, oldest))
	require.NoError(t, store.Record(ctx, newest))
	require.NoError(t, store.Record(ctx, other))

	records, err := store.List(ctx, "entity-extractor", 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first
	assert.Equal(t, newest.ID, records[0].ID)
	assert.Equal(t, oldest.ID, records[1].ID)

	got := records[0]
	assert.Equal(t, "entity-extractor", got.ExecutorID)
	assert.False(t, got.Success)
	assert.Equal(t, 150*time.Millisecond, got.Duration)
	assert.Equal(t, 64.5, got.MemoryMB)
	assert.Equal(t, model.PressureElevated, got.Pressure)
}

func TestSQLiteExecutionHistory_ListPagination(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		record := testRecord("entity-extractor", true, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Record(ctx, record))
	}

	page1, err := store.List(ctx, "entity-extractor", 0, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page2, err := store.List(ctx, "entity-extractor", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)

	assert.NotEqual(t, page1[0].ID, page2[0].ID)
	assert.True(t, page1[1].StartedAt.After(page2[0].StartedAt))
}

func TestSQLiteExecutionHistory_CountByExecutor(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	require.NoError(t, store.Record(ctx, testRecord("entity-extractor", true, base)))
	require.NoError(t, store.Record(ctx, testRecord("entity-extractor", false, base)))
	require.NoError(t, store.Record(ctx, testRecord("entity-extractor", false, base)))

	total, failed, err := store.CountByExecutor(ctx, "entity-extractor")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, failed)

	total, failed, err = store.CountByExecutor(ctx, "never-ran")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, failed)
}

func TestSQLiteExecutionHistory_DeleteBefore(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()

	old := testRecord("entity-extractor", true, time.Now().Add(-48*time.Hour))
	recent := testRecord("entity-extractor", true, time.Now().Add(-time.Minute))
	require.NoError(t, store.Record(ctx, old))
	require.NoError(t, store.Record(ctx, recent))

	require.NoError(t, store.DeleteBefore(ctx, time.Now().Add(-24*time.Hour)))

	records, err := store.List(ctx, "entity-extractor", 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, recent.ID, records[0].ID)
}
