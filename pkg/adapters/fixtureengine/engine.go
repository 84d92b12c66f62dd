// Package fixtureengine implements the playback engine ports without
// any external process. Frames are rendered deterministically from the
// seek offset, so repeated runs produce byte-identical thumbnails.
// It backs the test suite and the dry-run engine selection.
package fixtureengine

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/user/hlsnap/pkg/manifest"
	"github.com/user/hlsnap/pkg/ports"
)

// Factory creates fixture engine sessions and enforces a session cap.
type Factory struct {
	fs     ports.FileSystem
	logger ports.Logger

	// MaxSessions caps concurrently open sessions. Zero means no cap.
	MaxSessions int

	mu   sync.Mutex
	open int
	peak int
	down bool
}

// NewFactory creates a Factory.
func NewFactory(fs ports.FileSystem, l ports.Logger) *Factory {
	return &Factory{
		fs:     fs,
		logger: l.WithComponent("fixture"),
	}
}

// NewSession allocates a session, failing when the cap is reached.
func (f *Factory) NewSession(ctx context.Context) (ports.PlaybackEngine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, fmt.Errorf("engine is shut down")
	}
	if f.MaxSessions > 0 && f.open >= f.MaxSessions {
		return nil, fmt.Errorf("engine session limit reached (%d)", f.MaxSessions)
	}
	f.open++
	if f.open > f.peak {
		f.peak = f.open
	}
	return &Engine{
		factory: f,
		events:  make(chan ports.EngineEvent, 4),
	}, nil
}

// Shutdown marks the factory unusable.
func (f *Factory) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = true
	return nil
}

// OpenSessions returns how many sessions are currently open.
func (f *Factory) OpenSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// PeakSessions returns the highest concurrent session count observed.
func (f *Factory) PeakSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func (f *Factory) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open--
}

// Engine is one fixture playback session.
type Engine struct {
	factory *Factory
	events  chan ports.EngineEvent

	info   manifest.Info
	offset time.Duration
	opened bool

	closeOnce sync.Once
}

// Open probes the manifest and reports readiness immediately.
func (e *Engine) Open(ctx context.Context, manifestPath string) error {
	info, err := manifest.ProbeFile(e.factory.fs, manifestPath)
	if err != nil {
		return err
	}
	e.info = info
	e.opened = true
	e.events <- ports.EngineEvent{State: ports.EngineBuffering}
	e.events <- ports.EngineEvent{State: ports.EngineReady}
	return nil
}

// Events returns the state-change channel.
func (e *Engine) Events() <-chan ports.EngineEvent {
	return e.events
}

// Duration reports the playlist duration.
func (e *Engine) Duration() (time.Duration, bool) {
	if !e.info.VOD || e.info.Duration <= 0 {
		return 0, false
	}
	return e.info.Duration, true
}

// Seek records the frame position.
func (e *Engine) Seek(offset time.Duration) error {
	if offset < 0 {
		return fmt.Errorf("negative offset %s", offset)
	}
	e.offset = offset
	return nil
}

// Snapshot renders the frame for the current offset and writes it
// synchronously, so callers confirm it on the first poll.
func (e *Engine) Snapshot(path string, width, height int) error {
	if !e.opened {
		return fmt.Errorf("snapshot before open")
	}
	if width <= 0 {
		width = 320
	}
	if height <= 0 {
		height = 180
	}
	data, err := renderFrame(e.offset, width, height)
	if err != nil {
		return err
	}
	return e.factory.fs.WriteFile(path, data)
}

// Close releases the session slot and closes the channel.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.events)
		e.factory.release()
	})
	return nil
}

// renderFrame draws a flat color block derived from the offset. The
// mapping is stable so equal offsets yield identical bytes.
func renderFrame(offset time.Duration, width, height int) ([]byte, error) {
	seconds := int(offset / time.Second)
	r := (seconds * 37) % 256
	g := (seconds * 73) % 256
	b := (seconds * 151) % 256

	dc := gg.NewContext(width, height)
	dc.SetRGB255(r, g, b)
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()

	// A contrasting strip marks the frame as synthetic.
	dc.SetRGB255(255-r, 255-g, 255-b)
	dc.DrawRectangle(0, float64(height)-8, float64(width), 8)
	dc.Fill()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	_ ports.PlaybackEngine = (*Engine)(nil)
	_ ports.EngineFactory  = (*Factory)(nil)
)
