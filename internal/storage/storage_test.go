package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"review-sentiment/internal/ml"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	store, err := Open(filepath.Join(t.TempDir(), "registry", "models.db"), WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, clock
}

func addVersion(t *testing.T, s *Store, version string) ModelVersion {
	t.Helper()
	v, err := s.AddVersion(ModelVersion{
		Version:   version,
		ModelPath: "/models/" + version + "/model.json",
		VocabPath: "/models/" + version + "/tokenizer.json",
	})
	require.NoError(t, err)
	return v
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "models.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NotNil(t, store.db)

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")

	require.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "closing twice must be safe")
}

func TestOpen_InvalidPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := Open(filepath.Join(blocker, "models.db"))
	assert.Error(t, err)
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{}
	assert.NoError(t, store.Close())
}

func TestAddVersion(t *testing.T) {
	store, _ := newTestStore(t)

	v, err := store.AddVersion(ModelVersion{
		Version:   "v1",
		ModelPath: "model.json",
		VocabPath: "tokenizer.json",
		Metrics:   ml.TrainingMetrics{Accuracy: 0.91},
		Notes:     "baseline",
	})
	require.NoError(t, err)

	_, err = uuid.Parse(v.ID)
	assert.NoError(t, err, "ID must be a uuid")
	assert.Equal(t, epoch, v.CreatedAt)
	assert.False(t, v.IsActive)

	versions, err := store.ListVersions()
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, v, versions[0])
}

func TestAddVersion_GeneratedName(t *testing.T) {
	store, _ := newTestStore(t)

	v, err := store.AddVersion(ModelVersion{ModelPath: "m.json", VocabPath: "t.json"})
	require.NoError(t, err)
	assert.Equal(t, "20250301-120000", v.Version)
}

func TestAddVersion_Errors(t *testing.T) {
	store, _ := newTestStore(t)
	addVersion(t, store, "v1")

	_, err := store.AddVersion(ModelVersion{Version: "v1", ModelPath: "m", VocabPath: "t"})
	assert.ErrorIs(t, err, ErrVersionExists)

	_, err = store.AddVersion(ModelVersion{Version: "v2", ModelPath: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paths are required")
}

func TestListVersions_Order(t *testing.T) {
	store, clock := newTestStore(t)

	for _, name := range []string{"b", "a", "c"} {
		addVersion(t, store, name)
		clock.Advance(time.Hour)
	}

	versions, err := store.ListVersions()
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, "b", versions[0].Version)
	assert.Equal(t, "a", versions[1].Version)
	assert.Equal(t, "c", versions[2].Version)
	assert.True(t, versions[2].CreatedAt.After(versions[0].CreatedAt))
}

func TestActivateVersion(t *testing.T) {
	store, _ := newTestStore(t)
	addVersion(t, store, "v1")
	addVersion(t, store, "v2")

	_, err := store.ActiveVersion()
	assert.ErrorIs(t, err, ErrNoActiveVersion)

	require.NoError(t, store.ActivateVersion("v2"))
	active, err := store.ActiveVersion()
	require.NoError(t, err)
	assert.Equal(t, "v2", active.Version)
	assert.True(t, active.IsActive)
	assert.Equal(t, "/models/v2/model.json", active.ModelPath)

	versions, err := store.ListVersions()
	require.NoError(t, err)
	assert.False(t, versions[0].IsActive)
	assert.True(t, versions[1].IsActive)

	assert.ErrorIs(t, store.ActivateVersion("v9"), ErrVersionNotFound)

	// failed activation keeps the previous one
	active, err = store.ActiveVersion()
	require.NoError(t, err)
	assert.Equal(t, "v2", active.Version)
}

func TestRollback(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Rollback()
	assert.ErrorIs(t, err, ErrNoActiveVersion)

	addVersion(t, store, "v1")
	addVersion(t, store, "v2")
	addVersion(t, store, "v3")
	require.NoError(t, store.ActivateVersion("v3"))

	prev, err := store.Rollback()
	require.NoError(t, err)
	assert.Equal(t, "v2", prev.Version)

	prev, err = store.Rollback()
	require.NoError(t, err)
	assert.Equal(t, "v1", prev.Version)

	_, err = store.Rollback()
	assert.ErrorIs(t, err, ErrNoPrevious)

	active, err := store.ActiveVersion()
	require.NoError(t, err)
	assert.Equal(t, "v1", active.Version)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.db")

	store, err := Open(path)
	require.NoError(t, err)
	addVersion(t, store, "v1")
	require.NoError(t, store.ActivateVersion("v1"))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	active, err := store.ActiveVersion()
	require.NoError(t, err)
	assert.Equal(t, "v1", active.Version)
}
