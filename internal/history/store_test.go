package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.sqlmaint/internal/maintenance"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSummary() maintenance.MaintenanceSummary {
	return maintenance.MaintenanceSummary{
		DatabasesProcessed:      2,
		DatabasesFailed:         0,
		DatabasesSkipped:        1,
		TotalIndexesRebuilt:     3,
		TotalIndexesReorganized: 1,
		TotalIndexesSkipped:     2,
		TotalDurationSecs:       12.5,
		DatabaseResults: []maintenance.DatabaseResult{
			{DatabaseName: "db1", Success: true, IndexesRebuilt: 3, IndexesReorganized: 1, IndexesSkipped: 2, IndexResults: []maintenance.IndexResult{}},
			{DatabaseName: "db2", Success: true, ManuallySkipped: true, IndexResults: []maintenance.IndexResult{}},
		},
	}
}

func TestOpenCreatesTable(t *testing.T) {
	s := newTestStore(t)
	records, err := s.GetRuns(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPersistAndGetRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PersistRun(ctx, "profile-1", "Prod", "sql01", "2026-07-30T10:00:00Z", "2026-07-30T10:05:00Z", sampleSummary()))

	records, err := s.GetRuns(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "profile-1", r.ProfileID)
	assert.Equal(t, "Prod", r.ProfileName)
	assert.EqualValues(t, 2, r.DatabasesProcessed)
	assert.EqualValues(t, 1, r.DatabasesSkipped)
	assert.EqualValues(t, 3, r.TotalIndexesRebuilt)
	require.Len(t, r.DatabaseResults, 2)
	assert.Equal(t, "db1", r.DatabaseResults[0].DatabaseName)
}

func TestGetRunsFiltersByProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PersistRun(ctx, "profile-1", "A", "srv", "t0", "t1", sampleSummary()))
	require.NoError(t, s.PersistRun(ctx, "profile-2", "B", "srv", "t0", "t1", sampleSummary()))

	profileID := "profile-2"
	records, err := s.GetRuns(ctx, &profileID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "profile-2", records[0].ProfileID)
}

func TestGetRunsOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.PersistRun(ctx, "profile-1", "A", "srv", "t0", "t1", sampleSummary()))
	}

	records, err := s.GetRuns(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Greater(t, records[0].ID, records[1].ID)
	assert.Greater(t, records[1].ID, records[2].ID)
}

func TestGetRunsRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.PersistRun(ctx, "profile-1", "A", "srv", "t0", "t1", sampleSummary()))
	}

	records, err := s.GetRuns(ctx, nil, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDeleteRunsScopedToProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PersistRun(ctx, "profile-1", "A", "srv", "t0", "t1", sampleSummary()))
	require.NoError(t, s.PersistRun(ctx, "profile-2", "B", "srv", "t0", "t1", sampleSummary()))

	profileID := "profile-1"
	require.NoError(t, s.DeleteRuns(ctx, &profileID))

	records, err := s.GetRuns(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "profile-2", records[0].ProfileID)
}

func TestDeleteRunsWithoutScopeClearsAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PersistRun(ctx, "profile-1", "A", "srv", "t0", "t1", sampleSummary()))
	require.NoError(t, s.PersistRun(ctx, "profile-2", "B", "srv", "t0", "t1", sampleSummary()))

	require.NoError(t, s.DeleteRuns(ctx, nil))

	records, err := s.GetRuns(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
