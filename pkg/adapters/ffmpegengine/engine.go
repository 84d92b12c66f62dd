// Package ffmpegengine implements the playback engine ports on top of
// the ffmpeg binary. Each snapshot is one short-lived ffmpeg process
// that decodes a single frame from the HLS playlist.
package ffmpegengine

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/user/hlsnap/pkg/manifest"
	"github.com/user/hlsnap/pkg/ports"
)

// CommandRunner abstracts process execution so tests can intercept the
// ffmpeg invocation.
type CommandRunner interface {
	// Run executes the binary with args and waits for it to finish.
	Run(ctx context.Context, binary string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, binary string, args ...string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (output: %s)", binary, err, tail(output))
	}
	return nil
}

// tail keeps the last part of process output for error messages.
func tail(output []byte) string {
	const keep = 300
	s := string(output)
	if len(s) > keep {
		s = "..." + s[len(s)-keep:]
	}
	return s
}

// Factory creates ffmpeg-backed engine sessions. The only shared state
// is the resolved binary path.
type Factory struct {
	binary string
	runner CommandRunner
	logger ports.Logger
	fs     ports.FileSystem
}

// NewFactory resolves the ffmpeg binary and returns a Factory. An
// empty binaryPath falls back to "ffmpeg" on the PATH.
func NewFactory(binaryPath string, fs ports.FileSystem, l ports.Logger) (*Factory, error) {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	resolved, err := exec.LookPath(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("locate ffmpeg: %w", err)
	}
	return &Factory{
		binary: resolved,
		runner: execRunner{},
		logger: l.WithComponent("ffmpeg"),
		fs:     fs,
	}, nil
}

// NewFactoryWithRunner is like NewFactory but skips binary resolution
// and uses the given runner. Intended for tests.
func NewFactoryWithRunner(binaryPath string, runner CommandRunner, fs ports.FileSystem, l ports.Logger) *Factory {
	return &Factory{
		binary: binaryPath,
		runner: runner,
		logger: l.WithComponent("ffmpeg"),
		fs:     fs,
	}
}

// NewSession creates a fresh engine instance.
func (f *Factory) NewSession(ctx context.Context) (ports.PlaybackEngine, error) {
	sessCtx, cancel := context.WithCancel(ctx)
	return &Engine{
		factory: f,
		ctx:     sessCtx,
		cancel:  cancel,
		events:  make(chan ports.EngineEvent, 4),
	}, nil
}

// Shutdown releases shared state. The ffmpeg factory holds none.
func (f *Factory) Shutdown() error {
	return nil
}

// Engine is one ffmpeg-backed playback session. There is no persistent
// player process: Open probes the manifest, Seek records the offset,
// and Snapshot launches ffmpeg to decode one frame at that offset.
type Engine struct {
	factory *Factory
	ctx     context.Context
	cancel  context.CancelFunc
	events  chan ports.EngineEvent

	manifestPath string
	info         manifest.Info
	offset       time.Duration

	closeOnce sync.Once
}

// Open probes the manifest and reports readiness. ffmpeg needs no
// warm-up, so the engine is ready as soon as the playlist parses.
func (e *Engine) Open(ctx context.Context, manifestPath string) error {
	info, err := manifest.ProbeFile(e.factory.fs, manifestPath)
	if err != nil {
		return err
	}
	e.manifestPath = manifestPath
	e.info = info
	e.events <- ports.EngineEvent{State: ports.EngineBuffering}
	e.events <- ports.EngineEvent{State: ports.EngineReady}
	return nil
}

// Events returns the state-change channel.
func (e *Engine) Events() <-chan ports.EngineEvent {
	return e.events
}

// Duration reports the playlist duration. Live-style playlists without
// an end marker report unknown.
func (e *Engine) Duration() (time.Duration, bool) {
	if !e.info.VOD || e.info.Duration <= 0 {
		return 0, false
	}
	return e.info.Duration, true
}

// Seek records the frame position for the next snapshot.
func (e *Engine) Seek(offset time.Duration) error {
	if offset < 0 {
		return fmt.Errorf("negative offset %s", offset)
	}
	e.offset = offset
	return nil
}

// Snapshot launches ffmpeg to decode one frame at the recorded offset
// and write it to path. The process runs in the background; callers
// poll the file to confirm completion.
func (e *Engine) Snapshot(path string, width, height int) error {
	if e.manifestPath == "" {
		return fmt.Errorf("snapshot before open")
	}

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", e.offset.Seconds()),
		"-i", e.manifestPath,
		"-frames:v", "1",
		"-q:v", "2",
	}
	if width > 0 || height > 0 {
		args = append(args, "-vf", scaleFilter(width, height))
	}
	// The staging path carries a .tmp extension, so the muxer and codec
	// cannot be inferred from it.
	args = append(args, "-f", "image2", "-c:v", "mjpeg", path)

	e.factory.logger.Debug("Snapshot requested: %s", path)
	go func() {
		if err := e.factory.runner.Run(e.ctx, e.factory.binary, args...); err != nil {
			e.factory.logger.Debug("Failed to capture %s: %s", path, err.Error())
		}
	}()
	return nil
}

// scaleFilter builds an ffmpeg scale expression. A missing dimension
// becomes -2, which preserves aspect ratio at even pixel counts.
func scaleFilter(width, height int) string {
	w, h := -2, -2
	if width > 0 {
		w = width
	}
	if height > 0 {
		h = height
	}
	return fmt.Sprintf("scale=%d:%d", w, h)
}

// Close cancels any in-flight snapshot process and closes the channel.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.cancel()
		close(e.events)
	})
	return nil
}

var (
	_ ports.PlaybackEngine = (*Engine)(nil)
	_ ports.EngineFactory  = (*Factory)(nil)
)
