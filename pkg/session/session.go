// Package session drives a playback engine through the load, seek and
// snapshot lifecycle for a single manifest.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/user/hlsnap/pkg/ports"
)

// State is the session's position in its lifecycle.
type State int

const (
	// StateClosed means the session holds no engine resources.
	StateClosed State = iota
	// StateOpening means the engine is being created and pointed at media.
	StateOpening
	// StateBuffering means the engine is loading and cannot seek yet.
	StateBuffering
	// StateReady means the session accepts seek and snapshot requests.
	StateReady
	// StateSeeking means a position change is in flight.
	StateSeeking
	// StateSnapshotting means a frame capture is in flight.
	StateSnapshotting
	// StateFailed is terminal: the session must be closed and replaced.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateBuffering:
		return "buffering"
	case StateReady:
		return "ready"
	case StateSeeking:
		return "seeking"
	case StateSnapshotting:
		return "snapshotting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session owns one playback engine instance for one manifest. A failed
// session is never reused; retries open a fresh one.
type Session struct {
	engine   ports.PlaybackEngine
	logger   ports.Logger
	manifest string

	state   State
	lastErr error
	closed  bool
}

// Open creates an engine instance from factory and starts loading the
// manifest. Failures are reported as *OpenError and leave no engine
// resources behind.
func Open(ctx context.Context, factory ports.EngineFactory, manifestPath string, l ports.Logger) (*Session, error) {
	log := l.WithComponent("session")
	log.Debug("Opening %s", manifestPath)

	engine, err := factory.NewSession(ctx)
	if err != nil {
		return nil, &OpenError{Manifest: manifestPath, Err: err}
	}

	s := &Session{
		engine:   engine,
		logger:   log,
		manifest: manifestPath,
		state:    StateOpening,
	}
	if err := engine.Open(ctx, manifestPath); err != nil {
		s.fail(err)
		_ = engine.Close()
		s.closed = true
		return nil, &OpenError{Manifest: manifestPath, Err: err}
	}
	s.state = StateBuffering
	return s, nil
}

// AwaitReady blocks until the engine reports it can seek, the timeout
// elapses, or ctx is cancelled. A timeout or failure event moves the
// session to StateFailed.
func (s *Session) AwaitReady(ctx context.Context, timeout time.Duration) error {
	if s.state == StateReady {
		return nil
	}
	if s.state != StateBuffering {
		return fmt.Errorf("await ready in state %s", s.state)
	}

	started := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.fail(ctx.Err())
			return ctx.Err()
		case <-timer.C:
			err := &TimeoutError{Stage: "buffering", Timeout: timeout}
			s.fail(err)
			return err
		case ev, ok := <-s.engine.Events():
			if !ok {
				err := &OpenError{Manifest: s.manifest, Err: fmt.Errorf("engine closed while buffering")}
				s.fail(err)
				return err
			}
			switch ev.State {
			case ports.EngineReady:
				s.state = StateReady
				s.logger.Debug("Ready after %d ms", time.Since(started).Milliseconds())
				return nil
			case ports.EngineFailed:
				err := &OpenError{Manifest: s.manifest, Err: ev.Err}
				s.fail(err)
				return err
			}
			// Buffering progress, keep waiting.
		}
	}
}

// Duration returns the media duration and whether it is known.
func (s *Session) Duration() (time.Duration, bool) {
	return s.engine.Duration()
}

// Seek moves playback to offset, clamped to [0, duration). When the
// duration is unknown the offset collapses to 0, which every engine
// accepts. A rejected seek returns *SeekError and leaves the session
// ready, so the caller may retry with a safer offset.
func (s *Session) Seek(offset time.Duration) error {
	if s.state != StateReady {
		return fmt.Errorf("seek in state %s", s.state)
	}

	clamped := clampOffset(offset, s.engine)
	if _, known := s.engine.Duration(); !known && offset != 0 {
		s.logger.Debug("Duration unknown, seeking to 0")
	}

	s.state = StateSeeking
	s.logger.Debug("Seeking to %s", clamped.String())
	if err := s.engine.Seek(clamped); err != nil {
		s.state = StateReady
		return &SeekError{Offset: clamped, Err: err}
	}
	s.state = StateReady
	return nil
}

// Snapshot asks the engine to write a frame at the current position.
// The file may land after Snapshot returns; confirming it on disk is
// the caller's job.
func (s *Session) Snapshot(path string, width, height int) error {
	if s.state != StateReady {
		return fmt.Errorf("snapshot in state %s", s.state)
	}
	s.state = StateSnapshotting
	if err := s.engine.Snapshot(path, width, height); err != nil {
		s.state = StateReady
		return fmt.Errorf("snapshot %s: %w", path, err)
	}
	s.state = StateReady
	return nil
}

// Close releases the engine. Safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.state != StateFailed {
		s.state = StateClosed
	}
	return s.engine.Close()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Err returns the error that moved the session to StateFailed, if any.
func (s *Session) Err() error {
	return s.lastErr
}

func (s *Session) fail(err error) {
	s.state = StateFailed
	s.lastErr = err
}

func clampOffset(offset time.Duration, engine ports.PlaybackEngine) time.Duration {
	duration, known := engine.Duration()
	if !known || duration <= 0 {
		return 0
	}
	if offset < 0 {
		return 0
	}
	if offset >= duration {
		// Stay strictly inside the media so the engine has a frame to show.
		return duration - time.Millisecond
	}
	return offset
}
