// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"
	"time"
)

// EngineState represents the playback engine's reported state.
type EngineState int

const (
	// EngineBuffering means the engine is loading media and cannot seek yet.
	EngineBuffering EngineState = iota
	// EngineReady means enough media is buffered to seek and snapshot.
	EngineReady
	// EngineFailed means the engine gave up on this media.
	EngineFailed
)

// String returns the string representation of the engine state.
func (s EngineState) String() string {
	switch s {
	case EngineBuffering:
		return "buffering"
	case EngineReady:
		return "ready"
	case EngineFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EngineEvent is a state-change report emitted by a playback engine.
type EngineEvent struct {
	State EngineState
	Err   error // set when State is EngineFailed
}

// PlaybackEngine abstracts one playback instance bound to one manifest.
//
// Engines are asynchronous: Open returns once loading has started, and
// progress is reported on the Events channel. The channel is closed when
// the engine is closed.
type PlaybackEngine interface {
	// Open begins loading the given HLS manifest. It fails fast on a
	// missing or malformed manifest; slower failures arrive on Events.
	Open(ctx context.Context, manifestPath string) error

	// Events returns the engine's state-change reports.
	Events() <-chan EngineEvent

	// Duration returns the media duration and whether it is known.
	// Live-style manifests without a declared end report false.
	Duration() (time.Duration, bool)

	// Seek requests a position change. The offset has already been
	// clamped by the caller; the engine may still reject it.
	Seek(offset time.Duration) error

	// Snapshot requests that a frame at the current position be written
	// to path at the given resolution (0x0 means source dimensions).
	// The write may complete after Snapshot returns; callers confirm the
	// file on disk themselves.
	Snapshot(path string, width, height int) error

	// Close releases all engine resources. Idempotent.
	Close() error
}

// EngineFactory spawns playback engines from shared process-wide engine
// state (a native library handle, a browser allocator, a binary path).
// Construct one factory per process, pass it around explicitly, and call
// Shutdown at process exit.
type EngineFactory interface {
	// NewSession allocates a fresh engine instance. It fails when the
	// engine's session limit is reached.
	NewSession(ctx context.Context) (PlaybackEngine, error)

	// Shutdown tears down the shared engine state. No sessions may be
	// created afterwards.
	Shutdown() error
}
