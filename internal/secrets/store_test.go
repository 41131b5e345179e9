package secrets

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ring, err := keyring.NewArrayKeyring(nil)
	require.NoError(t, err)
	return &Store{ring: ring}
}

func TestStore(t *testing.T) {
	t.Run("get_missing_returns_empty", func(t *testing.T) {
		s := newTestStore(t)
		assert.Equal(t, "", s.Get("no-such-profile"))
	})

	t.Run("set_then_get_round_trips", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Set("profile-1", "hunter2"))
		assert.Equal(t, "hunter2", s.Get("profile-1"))
	})

	t.Run("set_empty_password_is_a_no_op", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Set("profile-1", "hunter2"))
		require.NoError(t, s.Set("profile-1", ""))
		assert.Equal(t, "hunter2", s.Get("profile-1"))
	})

	t.Run("multiple_profiles_share_one_consolidated_entry", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Set("profile-1", "pw1"))
		require.NoError(t, s.Set("profile-2", "pw2"))

		_, err := s.ring.Get(consolidatedKey)
		require.NoError(t, err)

		assert.Equal(t, "pw1", s.Get("profile-1"))
		assert.Equal(t, "pw2", s.Get("profile-2"))
	})

	t.Run("delete_removes_only_that_profile", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Set("profile-1", "pw1"))
		require.NoError(t, s.Set("profile-2", "pw2"))

		require.NoError(t, s.Delete("profile-1"))

		assert.Equal(t, "", s.Get("profile-1"))
		assert.Equal(t, "pw2", s.Get("profile-2"))
	})

	t.Run("delete_missing_profile_is_a_no_op", func(t *testing.T) {
		s := newTestStore(t)
		assert.NoError(t, s.Delete("never-existed"))
	})
}
