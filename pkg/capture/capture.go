// Package capture confirms engine snapshots on disk and installs them
// atomically over existing thumbnails.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/user/hlsnap/pkg/ports"
	"github.com/user/hlsnap/pkg/session"
)

// Request describes one snapshot to take.
type Request struct {
	// Offset is the playback position the session has already seeked to.
	// Carried for logging only.
	Offset time.Duration

	// Width and Height are the requested snapshot dimensions. Zero means
	// the engine's native resolution.
	Width  int
	Height int

	// OutputPath is the final thumbnail location. The snapshot is staged
	// next to it and renamed into place once confirmed.
	OutputPath string
}

// CaptureTimeoutError means the engine never produced a confirmable
// file within the ceiling. The session may be fine; callers retry.
type CaptureTimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *CaptureTimeoutError) Error() string {
	return fmt.Sprintf("snapshot %s not confirmed within %s", e.Path, e.Timeout)
}

// FilesystemError wraps a filesystem failure during capture. These are
// environmental and not retried.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// Capturer performs the snapshot-confirm-rename sequence.
type Capturer struct {
	fs     ports.FileSystem
	logger ports.Logger

	// PollInterval is how often the staged file is checked for growth.
	PollInterval time.Duration

	// Timeout is the ceiling on waiting for the staged file to settle.
	Timeout time.Duration
}

// New creates a Capturer with default poll settings.
func New(fs ports.FileSystem, l ports.Logger) *Capturer {
	return &Capturer{
		fs:           fs,
		logger:       l.WithComponent("capture"),
		PollInterval: 150 * time.Millisecond,
		Timeout:      10 * time.Second,
	}
}

// Capture asks sess for a snapshot staged at OutputPath + ".tmp", waits
// until the file exists, is non-empty and has stopped growing, then
// renames it over OutputPath. On any failure the staged file is removed
// and an existing thumbnail at OutputPath is left untouched.
func (c *Capturer) Capture(ctx context.Context, sess *session.Session, req Request) error {
	tmpPath := req.OutputPath + ".tmp"

	// Clear any stale staging file from an earlier crashed run.
	if exists, _ := c.fs.Exists(tmpPath); exists {
		if err := c.fs.Remove(tmpPath); err != nil {
			return &FilesystemError{Op: "remove stale", Path: tmpPath, Err: err}
		}
	}

	c.logger.Debug("Snapshot requested: %s", tmpPath)
	if err := sess.Snapshot(tmpPath, req.Width, req.Height); err != nil {
		c.cleanup(tmpPath)
		return err
	}

	size, err := c.awaitStable(ctx, tmpPath)
	if err != nil {
		c.cleanup(tmpPath)
		return err
	}
	c.logger.Debug("Snapshot confirmed: %d bytes", size)

	if err := c.fs.Rename(tmpPath, req.OutputPath); err != nil {
		c.cleanup(tmpPath)
		return &FilesystemError{Op: "rename", Path: req.OutputPath, Err: err}
	}
	c.logger.Debug("Replaced %s", req.OutputPath)
	return nil
}

// awaitStable polls path until its size is positive and unchanged
// between two consecutive checks, returning the settled size.
func (c *Capturer) awaitStable(ctx context.Context, path string) (int64, error) {
	deadline := time.Now().Add(c.Timeout)
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	var lastSize int64 = -1
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return 0, &CaptureTimeoutError{Path: path, Timeout: c.Timeout}
			}
			info, err := c.fs.Stat(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					// Engine has not written the file yet.
					lastSize = -1
					continue
				}
				return 0, &FilesystemError{Op: "stat", Path: path, Err: err}
			}
			size := info.Size()
			if size > 0 && size == lastSize {
				return size, nil
			}
			lastSize = size
		}
	}
}

func (c *Capturer) cleanup(tmpPath string) {
	if exists, _ := c.fs.Exists(tmpPath); exists {
		_ = c.fs.Remove(tmpPath)
	}
}

// AtomicWrite stages data next to path and renames it into place, so a
// reader never observes a partially written file.
func AtomicWrite(fsys ports.FileSystem, path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := fsys.WriteFile(tmpPath, data); err != nil {
		return &FilesystemError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		if exists, _ := fsys.Exists(tmpPath); exists {
			_ = fsys.Remove(tmpPath)
		}
		return &FilesystemError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
