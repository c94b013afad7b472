package fs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDir_SortedWithTypes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "zeta"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "alpha"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mid.txt"), []byte("x"), 0o644))

	entries, err := NewOSFileSystem().ListDir(dir)

	require.NoError(t, err)
	assert.Equal(t, []DirEntry{
		{Name: "alpha", IsDir: true},
		{Name: "mid.txt"},
		{Name: "zeta", IsDir: true},
	}, entries)
}

func TestListDir_SymlinkToDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on Windows")
	}
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "real"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "link")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "dangling")))

	entries, err := NewOSFileSystem().ListDir(dir)

	require.NoError(t, err)
	assert.Equal(t, []DirEntry{
		{Name: "dangling", Symlink: true},
		{Name: "link", IsDir: true, Symlink: true},
		{Name: "real", IsDir: true},
	}, entries)
}

func TestListDir_Missing(t *testing.T) {
	_, err := NewOSFileSystem().ListDir(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, IsNotExist(err))
}

func TestReadWriteFile(t *testing.T) {
	fs := NewOSFileSystem()
	path := filepath.Join(t.TempDir(), "sentinel.txt")

	t.Run("WriteThenRead", func(t *testing.T) {
		require.NoError(t, fs.WriteFile(path, "FWDN_COMPLETED\n", 0o644))
		got, err := fs.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "FWDN_COMPLETED\n", got)
	})

	t.Run("OverwriteReplacesContent", func(t *testing.T) {
		require.NoError(t, fs.WriteFile(path, "short", 0o644))
		got, err := fs.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "short", got)
	})

	t.Run("NoTempFilesLeftBehind", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("ModeApplied", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("unix permissions")
		}
		script := filepath.Join(filepath.Dir(path), "run.sh")
		require.NoError(t, fs.WriteFile(script, "#!/bin/sh\n", 0o755))
		info, err := os.Stat(script)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	})
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	err := NewOSFileSystem().WriteFile(filepath.Join(t.TempDir(), "a", "b.txt"), "x", 0o644)

	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "create temp", writeErr.Stage)
	assert.Empty(t, writeErr.Temp)
	assert.True(t, IsNotExist(err))
}

func TestWriteFile_RenameOntoDirectoryCleansUp(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "settings.json")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "keep"), 0o755))

	err := NewOSFileSystem().WriteFile(target, "{}", 0o644)

	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "rename", writeErr.Stage)
	assert.Equal(t, target, writeErr.Path)
	assert.Contains(t, err.Error(), target)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not survive a failed write")
	assert.Equal(t, "settings.json", entries[0].Name())
}

func TestReadFile_InvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0o644))

	_, err := NewOSFileSystem().ReadFile(path)

	assert.ErrorIs(t, err, ErrNotUTF8)
}

func TestRemove(t *testing.T) {
	fs := NewOSFileSystem()
	path := filepath.Join(t.TempDir(), "gone")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	require.NoError(t, fs.Remove(path))
	assert.True(t, IsNotExist(fs.Remove(path)))
}
