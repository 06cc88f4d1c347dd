package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	fs, err := New(logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	return fs
}

func TestReadWriteRoundTrip(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()
	require.NoError(t, fs.Mount("/data", dir, false))

	ok := fs.WriteFile("/data/note.txt", []byte("hello"))
	require.True(t, ok)

	data, ok := fs.ReadFile("/data/note.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
}

func TestReadOnlyMountRejectsWrite(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()
	require.NoError(t, fs.Mount("/ro", dir, true))

	ok := fs.WriteFile("/ro/note.txt", []byte("nope"))
	assert.False(t, ok)

	_, err := os.Stat(filepath.Join(dir, "note.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestResolveRejectsPathEscapingMount(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()
	require.NoError(t, fs.Mount("/data", dir, false))

	_, err := fs.Resolve("/data/../../etc/passwd")
	assert.Error(t, err)
}

func TestResolveRejectsDotDotComponent(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()
	require.NoError(t, fs.Mount("/data", dir, false))

	_, err := fs.Resolve("/data/sub/../../outside")
	assert.Error(t, err)
}

func TestResolveRejectsRelativePath(t *testing.T) {
	fs := newTestFS(t)
	_, err := fs.Resolve("relative/path")
	assert.Error(t, err)
}

func TestResolveRejectsUnmountedPath(t *testing.T) {
	fs := newTestFS(t)
	_, err := fs.Resolve("/nowhere/file.txt")
	assert.Error(t, err)
}

func TestFindMountPicksLongestPrefix(t *testing.T) {
	fs := newTestFS(t)
	outer := t.TempDir()
	inner := t.TempDir()
	require.NoError(t, fs.Mount("/a", outer, false))
	require.NoError(t, fs.Mount("/a/b", inner, false))

	mount, ok := fs.findMount("/a/b/file.txt")
	require.True(t, ok)
	assert.Equal(t, "/a/b", mount.VirtualPrefix)
}

func TestUnmountRemovesMountAndInvalidatesCache(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()
	require.NoError(t, fs.Mount("/data", dir, false))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644))

	_, ok := fs.ReadFile("/data/f.txt")
	require.True(t, ok)

	removed := fs.Unmount("/data")
	assert.True(t, removed)

	_, ok = fs.ReadFile("/data/f.txt")
	assert.False(t, ok)
}

func TestCheckAccessDeniesWriteOnReadOnlyMount(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()
	require.NoError(t, fs.Mount("/ro", dir, true))

	assert.True(t, fs.CheckAccess("/ro/x.txt", false))
	assert.False(t, fs.CheckAccess("/ro/x.txt", true))
}

func TestReadFileNonexistentReturnsNotOK(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()
	require.NoError(t, fs.Mount("/data", dir, false))

	_, ok := fs.ReadFile("/data/missing.txt")
	assert.False(t, ok)
}

func TestResolveCachesAcrossCalls(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()
	require.NoError(t, fs.Mount("/data", dir, false))

	first, err := fs.Resolve("/data/x.txt")
	require.NoError(t, err)
	second, err := fs.Resolve("/data/x.txt")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
