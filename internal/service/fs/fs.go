package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"
)

// DirEntry is a single directory listing entry: a name and its type.
// Symlinks report the type of their target in IsDir and set Symlink.
type DirEntry struct {
	Name    string
	IsDir   bool
	Symlink bool
}

// OSFileSystem implements filesystem operations using the local OS filesystem primitives.
// Remote-mounted trees (sshfs, SMB shares, WSL drive bridges) go through the same calls.
type OSFileSystem struct{}

// NewOSFileSystem creates a new OSFileSystem.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// Stat returns file info for a path (follows symlinks).
func (fs *OSFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// ListDir lists the contents of a directory sorted by name.
// Entries whose symlink target cannot be resolved are reported as non-directories.
func (fs *OSFileSystem) ListDir(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	out := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		de := DirEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		if entry.Type()&os.ModeSymlink != 0 {
			de.Symlink = true
			if info, err := os.Stat(filepath.Join(path, entry.Name())); err == nil {
				de.IsDir = info.IsDir()
			}
		}
		out = append(out, de)
	}

	// os.ReadDir already sorts; keep the guarantee explicit for other backends.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadFile reads a whole file as UTF-8 text.
func (fs *OSFileSystem) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", &EncodingError{Path: path}
	}
	return string(data), nil
}

// WriteFile replaces the file at path with content using temp file + rename,
// so readers polling the path never observe a partial write.
// The temp file is created in the same directory as the target to ensure atomic rename.
func (fs *OSFileSystem) WriteFile(path string, content string, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &WriteError{Path: path, Stage: "create temp", Cause: err}
	}

	tmpPath := tmpFile.Name()
	needsCleanup := true

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
		}
		if needsCleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.WriteString(content); err != nil {
		return &WriteError{Path: path, Temp: tmpPath, Stage: "write", Cause: err}
	}

	if err := tmpFile.Sync(); err != nil {
		return &WriteError{Path: path, Temp: tmpPath, Stage: "sync", Cause: err}
	}

	// Close file before rename (required on some systems)
	if err := tmpFile.Close(); err != nil {
		tmpFile = nil
		return &WriteError{Path: path, Temp: tmpPath, Stage: "close", Cause: err}
	}
	tmpFile = nil

	if err := os.Chmod(tmpPath, perm); err != nil {
		return &WriteError{Path: path, Temp: tmpPath, Stage: fmt.Sprintf("chmod %v", perm), Cause: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return &WriteError{Path: path, Temp: tmpPath, Stage: "rename", Cause: err}
	}
	needsCleanup = false

	return nil
}

// Remove deletes a file. Removing a path that no longer exists returns an
// error satisfying IsNotExist.
func (fs *OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}

// EnsureDirs creates parent directories recursively if they don't exist.
func (fs *OSFileSystem) EnsureDirs(path string) error {
	return os.MkdirAll(path, 0o755)
}

// IsNotExist reports whether err means the path is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
