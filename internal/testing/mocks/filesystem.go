package mocks

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tccjustin/axon/internal/service/fs"
)

// MockFileInfo implements os.FileInfo
type MockFileInfo struct {
	NameVal    string
	SizeVal    int64
	ModeVal    os.FileMode
	ModTimeVal time.Time
	IsDirVal   bool
}

func (f *MockFileInfo) Name() string       { return f.NameVal }
func (f *MockFileInfo) Size() int64        { return f.SizeVal }
func (f *MockFileInfo) Mode() os.FileMode  { return f.ModeVal }
func (f *MockFileInfo) ModTime() time.Time { return f.ModTimeVal }
func (f *MockFileInfo) IsDir() bool        { return f.IsDirVal }
func (f *MockFileInfo) Sys() any           { return nil }

// MockFileSystem is an in-memory tree implementing the filesystem capability
// used by the resolver, monitor, launcher and cache.
type MockFileSystem struct {
	Mu       sync.RWMutex
	Files    map[string][]byte    // path -> content
	Dirs     map[string]bool      // directories
	Symlinks map[string]string    // symlink path -> target path
	ModTimes map[string]time.Time // path -> mtime
	Errors   map[string]error     // path -> error for every operation on it
	OpErrors map[string]error     // operation -> error to return

	// Calls counts operations per "Op:path" key.
	Calls map[string]int

	// ReadDelay stalls ReadFile after the content is taken, widening the
	// window between a read and a dependent write.
	ReadDelay time.Duration
}

// NewMockFileSystem creates an empty filesystem containing only "/".
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		Files:    make(map[string][]byte),
		Dirs:     map[string]bool{"/": true},
		Symlinks: make(map[string]string),
		ModTimes: make(map[string]time.Time),
		Errors:   make(map[string]error),
		OpErrors: make(map[string]error),
		Calls:    make(map[string]int),
	}
}

// SetError sets an error to return for a specific path
func (f *MockFileSystem) SetError(path string, err error) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	f.Errors[filepath.Clean(path)] = err
}

// SetOperationError sets an error to return for a specific operation.
func (f *MockFileSystem) SetOperationError(operation string, err error) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	f.OpErrors[operation] = err
}

// CreateFile creates a file and any missing parent directories.
func (f *MockFileSystem) CreateFile(path string, content []byte) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	path = filepath.Clean(path)
	f.mkdirAllLocked(filepath.Dir(path))
	f.Files[path] = content
	f.ModTimes[path] = time.Now()
}

// CreateDir creates a directory and any missing parents.
func (f *MockFileSystem) CreateDir(path string) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	f.mkdirAllLocked(filepath.Clean(path))
}

// CreateSymlink records link pointing at target.
func (f *MockFileSystem) CreateSymlink(link, target string) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	link = filepath.Clean(link)
	f.mkdirAllLocked(filepath.Dir(link))
	f.Symlinks[link] = filepath.Clean(target)
}

// SetModTime overrides the modification time of path.
func (f *MockFileSystem) SetModTime(path string, t time.Time) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	f.ModTimes[filepath.Clean(path)] = t
}

// Exists reports whether path is a file, directory or symlink.
func (f *MockFileSystem) Exists(path string) bool {
	f.Mu.RLock()
	defer f.Mu.RUnlock()
	path = filepath.Clean(path)
	_, isFile := f.Files[path]
	_, isLink := f.Symlinks[path]
	return isFile || isLink || f.Dirs[path]
}

// CallCount returns how many times op was invoked on path.
func (f *MockFileSystem) CallCount(op, path string) int {
	f.Mu.RLock()
	defer f.Mu.RUnlock()
	return f.Calls[op+":"+filepath.Clean(path)]
}

func (f *MockFileSystem) mkdirAllLocked(path string) {
	for p := path; ; p = filepath.Dir(p) {
		f.Dirs[p] = true
		if p == filepath.Dir(p) {
			return
		}
	}
}

// checkLocked records the call and returns any injected error. Callers must hold Mu.
func (f *MockFileSystem) checkLocked(op, path string) error {
	f.Calls[op+":"+path]++
	if err, ok := f.OpErrors[op]; ok {
		return err
	}
	if err, ok := f.Errors[path]; ok {
		return err
	}
	return nil
}

func (f *MockFileSystem) resolveLocked(path string) string {
	for i := 0; i < 16; i++ {
		target, ok := f.Symlinks[path]
		if !ok {
			return path
		}
		path = target
	}
	return path
}

func (f *MockFileSystem) Stat(path string) (os.FileInfo, error) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	path = filepath.Clean(path)
	if err := f.checkLocked("Stat", path); err != nil {
		return nil, err
	}

	resolved := f.resolveLocked(path)
	name := filepath.Base(path)
	if f.Dirs[resolved] {
		return &MockFileInfo{NameVal: name, ModeVal: os.ModeDir | 0o755, IsDirVal: true, ModTimeVal: f.ModTimes[resolved]}, nil
	}
	if content, ok := f.Files[resolved]; ok {
		return &MockFileInfo{NameVal: name, SizeVal: int64(len(content)), ModeVal: 0o644, ModTimeVal: f.ModTimes[resolved]}, nil
	}
	return nil, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
}

func (f *MockFileSystem) ListDir(path string) ([]fs.DirEntry, error) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	path = filepath.Clean(path)
	if err := f.checkLocked("ListDir", path); err != nil {
		return nil, err
	}

	dir := f.resolveLocked(path)
	if !f.Dirs[dir] {
		if _, ok := f.Files[dir]; ok {
			return nil, &os.PathError{Op: "readdir", Path: path, Err: fmt.Errorf("not a directory")}
		}
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	seen := make(map[string]fs.DirEntry)
	for p := range f.Dirs {
		if p != dir && filepath.Dir(p) == dir {
			seen[filepath.Base(p)] = fs.DirEntry{Name: filepath.Base(p), IsDir: true}
		}
	}
	for p := range f.Files {
		if filepath.Dir(p) == dir {
			seen[filepath.Base(p)] = fs.DirEntry{Name: filepath.Base(p)}
		}
	}
	for p, target := range f.Symlinks {
		if filepath.Dir(p) == dir {
			seen[filepath.Base(p)] = fs.DirEntry{Name: filepath.Base(p), IsDir: f.Dirs[f.resolveLocked(target)], Symlink: true}
		}
	}

	entries := make([]fs.DirEntry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// SetReadDelay makes every ReadFile sleep for d once it has the content.
func (f *MockFileSystem) SetReadDelay(d time.Duration) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	f.ReadDelay = d
}

func (f *MockFileSystem) ReadFile(path string) (string, error) {
	content, delay, err := f.readFile(path)
	if delay > 0 {
		time.Sleep(delay)
	}
	return content, err
}

func (f *MockFileSystem) readFile(path string) (string, time.Duration, error) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	content, err := f.readFileLocked(path)
	return content, f.ReadDelay, err
}

func (f *MockFileSystem) readFileLocked(path string) (string, error) {
	path = filepath.Clean(path)
	if err := f.checkLocked("ReadFile", path); err != nil {
		return "", err
	}

	content, ok := f.Files[f.resolveLocked(path)]
	if !ok {
		return "", &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return string(content), nil
}

func (f *MockFileSystem) WriteFile(path string, content string, perm os.FileMode) error {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	path = filepath.Clean(path)
	if err := f.checkLocked("WriteFile", path); err != nil {
		return err
	}

	if !f.Dirs[filepath.Dir(path)] {
		return &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	if f.Dirs[path] {
		return &os.PathError{Op: "open", Path: path, Err: fmt.Errorf("is a directory")}
	}
	f.Files[path] = []byte(content)
	f.ModTimes[path] = time.Now()
	return nil
}

func (f *MockFileSystem) Remove(path string) error {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	path = filepath.Clean(path)
	if err := f.checkLocked("Remove", path); err != nil {
		return err
	}

	if _, ok := f.Files[path]; ok {
		delete(f.Files, path)
		delete(f.ModTimes, path)
		return nil
	}
	if _, ok := f.Symlinks[path]; ok {
		delete(f.Symlinks, path)
		return nil
	}
	if f.Dirs[path] {
		prefix := path + string(filepath.Separator)
		for p := range f.Files {
			if strings.HasPrefix(p, prefix) {
				return &os.PathError{Op: "remove", Path: path, Err: fmt.Errorf("directory not empty")}
			}
		}
		delete(f.Dirs, path)
		return nil
	}
	return &os.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
}

func (f *MockFileSystem) EnsureDirs(path string) error {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	path = filepath.Clean(path)
	if err := f.checkLocked("EnsureDirs", path); err != nil {
		return err
	}
	if _, ok := f.Files[path]; ok {
		return &os.PathError{Op: "mkdir", Path: path, Err: fmt.Errorf("not a directory")}
	}
	f.mkdirAllLocked(path)
	return nil
}
