package ports

import "io/fs"

// FileSystem abstracts file system operations.
type FileSystem interface {
	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte) error

	// ReadDir lists a directory's entries sorted by name.
	ReadDir(path string) ([]fs.DirEntry, error)

	// Stat returns file information, following symlinks.
	Stat(path string) (fs.FileInfo, error)

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)

	// Rename atomically replaces newPath with oldPath.
	Rename(oldPath, newPath string) error

	// Remove deletes a file or empty directory.
	Remove(path string) error

	// RealPath resolves symlinks to a canonical absolute path.
	RealPath(path string) (string, error)
}
