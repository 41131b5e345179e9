package profilestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.sqlmaint/internal/maintenance"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "profiles.json")
	s, err := Open(path)
	require.NoError(t, err)
	return s
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	s := newTestStore(t)
	_, err := os.Stat(filepath.Dir(s.path))
	assert.NoError(t, err)
}

func TestListOnMissingFileReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	profiles, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestSaveInsertsAndUpdates(t *testing.T) {
	s := newTestStore(t)

	p1 := maintenance.ServerProfileOnDisk{ID: "p1", Name: "First", Server: "host1", Port: 1433}
	require.NoError(t, s.Save(p1))

	profiles, err := s.List()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "First", profiles[0].Name)

	p1.Name = "First Renamed"
	require.NoError(t, s.Save(p1))

	profiles, err = s.List()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "First Renamed", profiles[0].Name)
}

func TestSaveAppendsDistinctIDs(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(maintenance.ServerProfileOnDisk{ID: "p1", Name: "First"}))
	require.NoError(t, s.Save(maintenance.ServerProfileOnDisk{ID: "p2", Name: "Second"}))

	profiles, err := s.List()
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestDeleteRemovesOnlyMatchingID(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(maintenance.ServerProfileOnDisk{ID: "p1", Name: "First"}))
	require.NoError(t, s.Save(maintenance.ServerProfileOnDisk{ID: "p2", Name: "Second"}))

	require.NoError(t, s.Delete("p1"))

	profiles, err := s.List()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "p2", profiles[0].ID)
}

func TestDeleteMissingIDIsANoOp(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(maintenance.ServerProfileOnDisk{ID: "p1"}))
	require.NoError(t, s.Delete("does-not-exist"))

	profiles, err := s.List()
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}
