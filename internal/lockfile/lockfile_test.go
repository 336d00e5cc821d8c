package lockfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndRemove(t *testing.T) {
	dir := t.TempDir()
	pub := NewPublisher(dir)

	desc := Descriptor{
		WorkspaceFolders: []string{"/work/project"},
		AuthToken:        "deadbeef",
		Port:             40231,
	}
	require.NoError(t, pub.Write(desc))

	path := filepath.Join(dir, "40231.lock")
	assert.Equal(t, path, pub.Path())

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), got.PID)
	assert.Equal(t, []string{"/work/project"}, got.WorkspaceFolders)
	assert.Equal(t, IdeName, got.IdeName)
	assert.Equal(t, Transport, got.Transport)
	assert.Equal(t, runtime.GOOS == "windows", got.RunningInWindows)
	assert.Equal(t, "deadbeef", got.AuthToken)
	assert.Equal(t, 40231, got.Port)

	require.NoError(t, pub.Remove())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "descriptor should be gone after Remove")

	// Second remove reports nothing published
	assert.ErrorIs(t, pub.Remove(), ErrNotPublished)
}

func TestDescriptorPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on Windows")
	}

	dir := t.TempDir()
	pub := NewPublisher(dir)
	require.NoError(t, pub.Write(Descriptor{AuthToken: "tok", Port: 40232}))
	defer pub.Remove()

	info, err := os.Stat(pub.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "descriptor embeds the credential and must be user-only")
}

func TestWriteValidation(t *testing.T) {
	pub := NewPublisher(t.TempDir())

	assert.Error(t, pub.Write(Descriptor{AuthToken: "tok"}), "missing port")
	assert.Error(t, pub.Write(Descriptor{Port: 1234}), "missing token")
}

func TestCleanStale(t *testing.T) {
	dir := t.TempDir()

	// A live descriptor: our own PID
	live := NewPublisher(dir)
	require.NoError(t, live.Write(Descriptor{AuthToken: "tok", Port: 40240}))

	// A stale descriptor pointing at a PID that cannot exist
	stale := Descriptor{PID: 1 << 30, AuthToken: "tok", Port: 40241, IdeName: IdeName, Transport: Transport}
	writeRaw(t, filepath.Join(dir, "40241.lock"), stale)

	// A corrupt descriptor
	require.NoError(t, os.WriteFile(filepath.Join(dir, "40242.lock"), []byte("not json"), 0600))

	removed := CleanStale(dir)
	assert.Equal(t, 2, removed)

	_, err := os.Stat(live.Path())
	assert.NoError(t, err, "live descriptor must survive the sweep")
}

func writeRaw(t *testing.T, path string, desc Descriptor) {
	t.Helper()
	data, err := json.Marshal(desc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))
}
