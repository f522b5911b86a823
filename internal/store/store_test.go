package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leafreadapp/leafread-server/internal/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestOpen_CreatesStoreAndStampsVersion(t *testing.T) {
	s := setupTestStore(t)

	version, err := s.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	for _, name := range []string{"books", "settings", "trash"} {
		exists, err := s.exists([]byte(collectionMetaPrefix + name))
		require.NoError(t, err)
		assert.True(t, exists, "collection marker %q missing", name)
	}
}

func TestOpen_SecondSessionBlocked(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(dbPath, nil)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck // Test cleanup

	// The directory lock is held; a second session cannot run its upgrade.
	_, err = Open(dbPath, nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUpgradeBlocked))
	assert.False(t, apperrors.Is(err, apperrors.ErrStorageUnavailable))
}

func TestOpen_UnusablePath(t *testing.T) {
	// A file where the directory should be.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	writeFile(t, blocker, "not a directory")

	_, err := Open(filepath.Join(blocker, "db"), nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrStorageUnavailable))
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dbPath, nil)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck // Test cleanup

	version, err := s.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}
