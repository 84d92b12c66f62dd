package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/user/hlsnap/pkg/adapters/fixtureengine"
	"github.com/user/hlsnap/pkg/adapters/logger"
	"github.com/user/hlsnap/pkg/capture"
	"github.com/user/hlsnap/pkg/mocks"
	"github.com/user/hlsnap/pkg/ports"
	"github.com/user/hlsnap/pkg/scanner"
)

func testBundle(name string) scanner.Bundle {
	dir := "/lib/" + name
	return scanner.Bundle{
		RelPath:        name,
		Dir:            dir,
		ManifestPath:   dir + "/playlist.m3u8",
		ThumbnailPath:  dir + "/thumbnail.jpg",
		FirstFramePath: dir + "/first_frame.jpg",
		CoverPath:      "/lib/cover.jpg",
	}
}

// writingEngine returns a ready engine that writes a frame on snapshot.
func writingEngine(fs *mocks.FileSystem) *mocks.Engine {
	engine := mocks.ReadyEngine(60*time.Second, true)
	engine.SnapshotFunc = func(path string, width, height int) error {
		return fs.WriteFile(path, []byte("frame"))
	}
	return engine
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.ReadyTimeout = 50 * time.Millisecond
	opts.ItemTimeout = time.Second
	return opts
}

func newOrchestrator(factory ports.EngineFactory, fs *mocks.FileSystem) *Orchestrator {
	capturer := capture.New(fs, logger.NewNoop())
	capturer.PollInterval = 2 * time.Millisecond
	capturer.Timeout = 200 * time.Millisecond
	return New(factory, capturer, fs, logger.NewNoop())
}

func TestRunIsolatesFailures(t *testing.T) {
	fs := mocks.NewFileSystem()
	factory := &mocks.EngineFactory{
		NewSessionFunc: func(ctx context.Context) (ports.PlaybackEngine, error) {
			return &mocks.Engine{
				OpenFunc: func(ctx context.Context, manifestPath string) error {
					if manifestPath == "/lib/b_hls/playlist.m3u8" {
						return errors.New("corrupt playlist")
					}
					return nil
				},
				EventsFunc: func() <-chan ports.EngineEvent {
					ch := make(chan ports.EngineEvent, 1)
					ch <- ports.EngineEvent{State: ports.EngineReady}
					return ch
				},
				SnapshotFunc: func(path string, width, height int) error {
					return fs.WriteFile(path, []byte("frame"))
				},
			}, nil
		},
	}

	bundles := []scanner.Bundle{testBundle("c_hls"), testBundle("a_hls"), testBundle("b_hls")}
	report := newOrchestrator(factory, fs).Run(context.Background(), bundles, testOptions())

	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("expected 2 succeeded and 1 failed, got %d/%d", report.Succeeded, report.Failed)
	}
	out, ok := report.Outcome("b_hls")
	if !ok || out.Status != StatusFailed || out.Reason != "open" {
		t.Errorf("expected b_hls to fail with open reason, got %+v", out)
	}
	if _, ok := fs.GetFile("/lib/a_hls/thumbnail.jpg"); !ok {
		t.Error("a_hls thumbnail missing")
	}
}

func TestRunReportIsSorted(t *testing.T) {
	fs := mocks.NewFileSystem()
	factory := &mocks.EngineFactory{
		NewSessionFunc: func(ctx context.Context) (ports.PlaybackEngine, error) {
			return writingEngine(fs), nil
		},
	}

	bundles := []scanner.Bundle{testBundle("z_hls"), testBundle("a_hls"), testBundle("m_hls")}
	opts := testOptions()
	opts.Concurrency = 3
	report := newOrchestrator(factory, fs).Run(context.Background(), bundles, opts)

	if len(report.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(report.Outcomes))
	}
	for i, want := range []string{"a_hls", "m_hls", "z_hls"} {
		if report.Outcomes[i].Bundle.RelPath != want {
			t.Errorf("outcome %d: expected %s, got %s", i, want, report.Outcomes[i].Bundle.RelPath)
		}
	}
}

func TestRunRetriesWithFreshSession(t *testing.T) {
	fs := mocks.NewFileSystem()
	sessions := 0
	factory := &mocks.EngineFactory{
		NewSessionFunc: func(ctx context.Context) (ports.PlaybackEngine, error) {
			sessions++
			if sessions == 1 {
				// First session never becomes ready.
				return &mocks.Engine{
					EventsFunc: func() <-chan ports.EngineEvent {
						return make(chan ports.EngineEvent)
					},
				}, nil
			}
			return writingEngine(fs), nil
		},
	}

	opts := testOptions()
	opts.Retries = 1
	report := newOrchestrator(factory, fs).Run(context.Background(), []scanner.Bundle{testBundle("a_hls")}, opts)

	out, _ := report.Outcome("a_hls")
	if out.Status != StatusSucceeded {
		t.Fatalf("expected success after retry, got %+v", out)
	}
	if out.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", out.Attempts)
	}
	if sessions != 2 {
		t.Errorf("expected a fresh session per attempt, got %d", sessions)
	}
}

func TestRunItemTimeoutIsRetryableTimeout(t *testing.T) {
	fs := mocks.NewFileSystem()
	sessions := 0
	factory := &mocks.EngineFactory{
		NewSessionFunc: func(ctx context.Context) (ports.PlaybackEngine, error) {
			sessions++
			// Never becomes ready, so the item budget expires first.
			return &mocks.Engine{
				EventsFunc: func() <-chan ports.EngineEvent {
					return make(chan ports.EngineEvent)
				},
			}, nil
		},
	}

	opts := testOptions()
	opts.ItemTimeout = 30 * time.Millisecond
	opts.ReadyTimeout = time.Second
	opts.Retries = 1
	report := newOrchestrator(factory, fs).Run(context.Background(), []scanner.Bundle{testBundle("a_hls")}, opts)

	out, _ := report.Outcome("a_hls")
	if out.Status != StatusFailed || out.Reason != "timeout" {
		t.Fatalf("expected timeout failure, got %+v", out)
	}
	if out.Attempts != 2 || sessions != 2 {
		t.Errorf("item timeouts earn a retry, expected 2 attempts/sessions, got %d/%d", out.Attempts, sessions)
	}
}

func TestRunDoesNotRetryOpenFailures(t *testing.T) {
	fs := mocks.NewFileSystem()
	sessions := 0
	factory := &mocks.EngineFactory{
		NewSessionFunc: func(ctx context.Context) (ports.PlaybackEngine, error) {
			sessions++
			return &mocks.Engine{
				OpenFunc: func(ctx context.Context, manifestPath string) error {
					return errors.New("missing manifest")
				},
			}, nil
		},
	}

	opts := testOptions()
	opts.Retries = 2
	report := newOrchestrator(factory, fs).Run(context.Background(), []scanner.Bundle{testBundle("a_hls")}, opts)

	out, _ := report.Outcome("a_hls")
	if out.Status != StatusFailed || out.Reason != "open" {
		t.Fatalf("expected open failure, got %+v", out)
	}
	if sessions != 1 {
		t.Errorf("open failures are permanent, expected 1 session, got %d", sessions)
	}
}

func TestRunCancelledMarksQueuedSkipped(t *testing.T) {
	fs := mocks.NewFileSystem()
	factory := &mocks.EngineFactory{
		NewSessionFunc: func(ctx context.Context) (ports.PlaybackEngine, error) {
			return writingEngine(fs), nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bundles := []scanner.Bundle{testBundle("a_hls"), testBundle("b_hls")}
	report := newOrchestrator(factory, fs).Run(ctx, bundles, testOptions())

	if report.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", report.Skipped)
	}
	for _, o := range report.Outcomes {
		if o.Reason != "cancelled" {
			t.Errorf("expected cancelled reason, got %q", o.Reason)
		}
	}
}

func TestRunMirrorsExistingFirstFrame(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFile("/lib/a_hls/first_frame.jpg", []byte("stale"))
	factory := &mocks.EngineFactory{
		NewSessionFunc: func(ctx context.Context) (ports.PlaybackEngine, error) {
			return writingEngine(fs), nil
		},
	}

	report := newOrchestrator(factory, fs).Run(context.Background(), []scanner.Bundle{testBundle("a_hls")}, testOptions())
	if report.Succeeded != 1 {
		t.Fatalf("expected success, got %+v", report.Outcomes)
	}

	data, _ := fs.GetFile("/lib/a_hls/first_frame.jpg")
	if string(data) != "frame" {
		t.Errorf("expected mirrored first frame, got %q", data)
	}
	// No first_frame.jpg means none is created.
	if _, ok := fs.GetFile("/lib/b_hls/first_frame.jpg"); ok {
		t.Error("first frame should not be created from nothing")
	}
}

func TestRunObserverSeesEveryOutcome(t *testing.T) {
	fs := mocks.NewFileSystem()
	factory := &mocks.EngineFactory{
		NewSessionFunc: func(ctx context.Context) (ports.PlaybackEngine, error) {
			return writingEngine(fs), nil
		},
	}

	var seen []string
	opts := testOptions()
	opts.Observer = func(done, total int, o Outcome) {
		seen = append(seen, fmt.Sprintf("%d/%d:%s", done, total, o.Status))
	}
	newOrchestrator(factory, fs).Run(context.Background(), []scanner.Bundle{testBundle("a_hls"), testBundle("b_hls")}, opts)

	if len(seen) != 2 {
		t.Errorf("expected 2 observer calls, got %v", seen)
	}
}

func TestRunBoundsConcurrentSessions(t *testing.T) {
	fs := mocks.NewFileSystem()
	playlist := []byte("#EXTM3U\n#EXTINF:10.0,\nseg0.ts\n#EXT-X-ENDLIST\n")

	var bundles []scanner.Bundle
	for i := 0; i < 8; i++ {
		b := testBundle(fmt.Sprintf("v%d_hls", i))
		fs.WriteFile(b.ManifestPath, playlist)
		bundles = append(bundles, b)
	}

	factory := fixtureengine.NewFactory(fs, logger.NewNoop())
	factory.MaxSessions = 2

	opts := testOptions()
	opts.Concurrency = 2
	report := newOrchestrator(factory, fs).Run(context.Background(), bundles, opts)

	if report.Succeeded != len(bundles) {
		t.Fatalf("expected all bundles to succeed, got %+v", report)
	}
	if factory.PeakSessions() > 2 {
		t.Errorf("expected at most 2 concurrent sessions, saw %d", factory.PeakSessions())
	}
	if factory.OpenSessions() != 0 {
		t.Errorf("expected all sessions closed, %d still open", factory.OpenSessions())
	}
}

func TestOffsetPolicyResolve(t *testing.T) {
	tests := []struct {
		name     string
		policy   OffsetPolicy
		duration time.Duration
		known    bool
		want     time.Duration
	}{
		{"fraction", OffsetPolicy{Strategy: "fraction", Fraction: 0.25}, 60 * time.Second, true, 15 * time.Second},
		{"fixed", OffsetPolicy{Strategy: "fixed", Seconds: 5}, 60 * time.Second, true, 5 * time.Second},
		{"fixed beyond duration", OffsetPolicy{Strategy: "fixed", Seconds: 90}, 60 * time.Second, true, 0},
		{"unknown duration", OffsetPolicy{Strategy: "fraction", Fraction: 0.25}, 0, false, 0},
		{"zero duration", OffsetPolicy{Strategy: "fraction", Fraction: 0.25}, 0, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Resolve(tt.duration, tt.known); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
