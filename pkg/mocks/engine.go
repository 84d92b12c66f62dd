// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"time"

	"github.com/user/hlsnap/pkg/ports"
)

// Engine is a mock implementation of ports.PlaybackEngine.
type Engine struct {
	OpenFunc     func(ctx context.Context, manifestPath string) error
	EventsFunc   func() <-chan ports.EngineEvent
	DurationFunc func() (time.Duration, bool)
	SeekFunc     func(offset time.Duration) error
	SnapshotFunc func(path string, width, height int) error
	CloseFunc    func() error
}

func (m *Engine) Open(ctx context.Context, manifestPath string) error {
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, manifestPath)
	}
	return nil
}

func (m *Engine) Events() <-chan ports.EngineEvent {
	if m.EventsFunc != nil {
		return m.EventsFunc()
	}
	ch := make(chan ports.EngineEvent)
	close(ch)
	return ch
}

func (m *Engine) Duration() (time.Duration, bool) {
	if m.DurationFunc != nil {
		return m.DurationFunc()
	}
	return 0, false
}

func (m *Engine) Seek(offset time.Duration) error {
	if m.SeekFunc != nil {
		return m.SeekFunc(offset)
	}
	return nil
}

func (m *Engine) Snapshot(path string, width, height int) error {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc(path, width, height)
	}
	return nil
}

func (m *Engine) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// ReadyEngine returns an Engine whose event channel reports buffering
// then ready, with the given duration. Covers the common happy path.
func ReadyEngine(duration time.Duration, known bool) *Engine {
	ch := make(chan ports.EngineEvent, 2)
	ch <- ports.EngineEvent{State: ports.EngineBuffering}
	ch <- ports.EngineEvent{State: ports.EngineReady}
	return &Engine{
		EventsFunc:   func() <-chan ports.EngineEvent { return ch },
		DurationFunc: func() (time.Duration, bool) { return duration, known },
	}
}

// EngineFactory is a mock implementation of ports.EngineFactory.
type EngineFactory struct {
	NewSessionFunc func(ctx context.Context) (ports.PlaybackEngine, error)
	ShutdownFunc   func() error
}

func (m *EngineFactory) NewSession(ctx context.Context) (ports.PlaybackEngine, error) {
	if m.NewSessionFunc != nil {
		return m.NewSessionFunc(ctx)
	}
	return &Engine{}, nil
}

func (m *EngineFactory) Shutdown() error {
	if m.ShutdownFunc != nil {
		return m.ShutdownFunc()
	}
	return nil
}

var (
	_ ports.PlaybackEngine = (*Engine)(nil)
	_ ports.EngineFactory  = (*EngineFactory)(nil)
)
