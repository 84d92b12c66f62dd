package mocks

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/hlsnap/pkg/ports"
)

// FileSystem is a mock implementation of ports.FileSystem backed by an
// in-memory file map.
type FileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool

	ReadFileFunc  func(path string) ([]byte, error)
	WriteFileFunc func(path string, data []byte) error
	ReadDirFunc   func(path string) ([]fs.DirEntry, error)
	StatFunc      func(path string) (fs.FileInfo, error)
	ExistsFunc    func(path string) (bool, error)
	RenameFunc    func(oldPath, newPath string) error
	RemoveFunc    func(path string) error
	RealPathFunc  func(path string) (string, error)
}

// NewFileSystem creates a new mock FileSystem.
func NewFileSystem() *FileSystem {
	return &FileSystem{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

func (m *FileSystem) ReadFile(p string) ([]byte, error) {
	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(p)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if data, ok := m.files[clean(p)]; ok {
		return data, nil
	}
	return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
}

func (m *FileSystem) WriteFile(p string, data []byte) error {
	if m.WriteFileFunc != nil {
		return m.WriteFileFunc(p, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(clean(p), data)
	return nil
}

func (m *FileSystem) ReadDir(p string) ([]fs.DirEntry, error) {
	if m.ReadDirFunc != nil {
		return m.ReadDirFunc(p)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	dir := clean(p)
	if !m.dirs[dir] {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}

	seen := map[string]bool{}
	var entries []fs.DirEntry
	add := func(name string, isDir bool, size int64) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		entries = append(entries, fakeDirEntry{fakeFileInfo{name: name, dir: isDir, size: size}})
	}
	prefix := dir + "/"
	for f, data := range m.files {
		if rest, ok := strings.CutPrefix(f, prefix); ok && !strings.Contains(rest, "/") {
			add(rest, false, int64(len(data)))
		}
	}
	for d := range m.dirs {
		if rest, ok := strings.CutPrefix(d, prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			add(rest, true, 0)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (m *FileSystem) Stat(p string) (fs.FileInfo, error) {
	if m.StatFunc != nil {
		return m.StatFunc(p)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := clean(p)
	if data, ok := m.files[cp]; ok {
		return fakeFileInfo{name: path.Base(cp), size: int64(len(data))}, nil
	}
	if m.dirs[cp] {
		return fakeFileInfo{name: path.Base(cp), dir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
}

func (m *FileSystem) Exists(p string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(p)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := clean(p)
	if _, ok := m.files[cp]; ok {
		return true, nil
	}
	return m.dirs[cp], nil
}

func (m *FileSystem) Rename(oldPath, newPath string) error {
	if m.RenameFunc != nil {
		return m.RenameFunc(oldPath, newPath)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	op, np := clean(oldPath), clean(newPath)
	data, ok := m.files[op]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldPath, Err: fs.ErrNotExist}
	}
	delete(m.files, op)
	m.put(np, data)
	return nil
}

func (m *FileSystem) Remove(p string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := clean(p)
	delete(m.files, cp)
	delete(m.dirs, cp)
	return nil
}

func (m *FileSystem) RealPath(p string) (string, error) {
	if m.RealPathFunc != nil {
		return m.RealPathFunc(p)
	}
	return clean(p), nil
}

// AddDir registers a directory, including its ancestors.
func (m *FileSystem) AddDir(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDirs(clean(p))
}

// GetFile returns the contents of a file (for test verification).
func (m *FileSystem) GetFile(p string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[clean(p)]
	return data, ok
}

// put stores a file and registers its parent directories.
// Callers must hold mu.
func (m *FileSystem) put(p string, data []byte) {
	m.files[p] = data
	m.addDirs(path.Dir(p))
}

func (m *FileSystem) addDirs(dir string) {
	for dir != "" && dir != "/" && dir != "." && !m.dirs[dir] {
		m.dirs[dir] = true
		dir = path.Dir(dir)
	}
	if dir == "/" {
		m.dirs["/"] = true
	}
}

func clean(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

type fakeFileInfo struct {
	name string
	dir  bool
	size int64
}

func (f fakeFileInfo) Name() string { return f.name }
func (f fakeFileInfo) Size() int64  { return f.size }
func (f fakeFileInfo) Mode() fs.FileMode {
	if f.dir {
		return fs.ModeDir | 0755
	}
	return 0644
}
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return f.dir }
func (f fakeFileInfo) Sys() interface{}   { return nil }

type fakeDirEntry struct {
	info fakeFileInfo
}

func (e fakeDirEntry) Name() string               { return e.info.name }
func (e fakeDirEntry) IsDir() bool                { return e.info.dir }
func (e fakeDirEntry) Type() fs.FileMode          { return e.info.Mode().Type() }
func (e fakeDirEntry) Info() (fs.FileInfo, error) { return e.info, nil }

var _ ports.FileSystem = (*FileSystem)(nil)
