// Package scanner discovers HLS video bundles under a library root.
package scanner

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/user/hlsnap/pkg/ports"
)

// Bundle is one discovered video directory with its derived artifact paths.
type Bundle struct {
	// RelPath is the bundle directory relative to the scan root, using
	// forward slashes. It is the stable sort key for reports.
	RelPath string

	// Dir is the absolute bundle directory path.
	Dir string

	// ManifestPath is the playlist file inside the bundle.
	ManifestPath string

	// ThumbnailPath is the snapshot destination inside the bundle.
	ThumbnailPath string

	// FirstFramePath is the secondary snapshot copy inside the bundle.
	FirstFramePath string

	// CoverPath is the cover image in the bundle's parent directory.
	CoverPath string
}

// Options controls which directories qualify as bundles and how the
// artifact paths are derived.
type Options struct {
	ManifestFilename   string
	BundleSuffix       string
	SnapshotFilename   string
	FirstFrameFilename string
	CoverFilename      string
}

// DefaultOptions returns the conventional bundle layout.
func DefaultOptions() Options {
	return Options{
		ManifestFilename:   "playlist.m3u8",
		BundleSuffix:       "_hls",
		SnapshotFilename:   "thumbnail.jpg",
		FirstFrameFilename: "first_frame.jpg",
		CoverFilename:      "cover.jpg",
	}
}

// Scanner walks a directory tree looking for bundles.
type Scanner struct {
	fs     ports.FileSystem
	logger ports.Logger
}

// New creates a Scanner.
func New(fs ports.FileSystem, l ports.Logger) *Scanner {
	return &Scanner{
		fs:     fs,
		logger: l.WithComponent("scanner"),
	}
}

// Scan walks root depth-first and returns every bundle directory in
// deterministic lexicographic order. A directory qualifies when its
// base name ends with the bundle suffix and it directly contains the
// manifest file. Matched bundles are not descended into.
//
// An unreadable root is an error; unreadable subdirectories are logged
// and skipped. Symlink cycles are detected via resolved real paths and
// skipped with a warning.
func (s *Scanner) Scan(root string, opts Options) ([]Bundle, error) {
	absRoot, err := s.fs.RealPath(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	if _, err := s.fs.ReadDir(absRoot); err != nil {
		return nil, fmt.Errorf("read root %s: %w", root, err)
	}

	visited := map[string]bool{absRoot: true}
	var bundles []Bundle
	s.walk(absRoot, absRoot, opts, visited, &bundles)

	sort.Slice(bundles, func(i, j int) bool {
		return bundles[i].RelPath < bundles[j].RelPath
	})
	return bundles, nil
}

func (s *Scanner) walk(root, dir string, opts Options, visited map[string]bool, out *[]Bundle) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		s.logger.Warn("Skipping unreadable directory %s: %s", dir, err.Error())
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		child := filepath.Join(dir, name)
		info, err := s.fs.Stat(child)
		if err != nil {
			s.logger.Warn("Skipping unreadable directory %s: %s", child, err.Error())
			continue
		}
		if !info.IsDir() {
			continue
		}

		real, err := s.fs.RealPath(child)
		if err != nil {
			s.logger.Warn("Skipping unreadable directory %s: %s", child, err.Error())
			continue
		}
		if visited[real] {
			s.logger.Warn("Skipping symlink cycle at %s", child)
			continue
		}
		visited[real] = true

		if b, ok := s.match(root, child, opts); ok {
			*out = append(*out, b)
			continue
		}
		s.walk(root, child, opts, visited, out)
	}
}

// match reports whether dir is a bundle and builds its artifact paths.
func (s *Scanner) match(root, dir string, opts Options) (Bundle, bool) {
	if !strings.HasSuffix(filepath.Base(dir), opts.BundleSuffix) {
		return Bundle{}, false
	}
	manifest := filepath.Join(dir, opts.ManifestFilename)
	exists, err := s.fs.Exists(manifest)
	if err != nil || !exists {
		return Bundle{}, false
	}

	rel, err := filepath.Rel(root, dir)
	if err != nil {
		rel = dir
	}
	return Bundle{
		RelPath:        filepath.ToSlash(rel),
		Dir:            dir,
		ManifestPath:   manifest,
		ThumbnailPath:  filepath.Join(dir, opts.SnapshotFilename),
		FirstFramePath: filepath.Join(dir, opts.FirstFrameFilename),
		CoverPath:      filepath.Join(filepath.Dir(dir), opts.CoverFilename),
	}, true
}
