package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/hlsnap/pkg/adapters/fixtureengine"
	"github.com/user/hlsnap/pkg/adapters/logger"
	"github.com/user/hlsnap/pkg/adapters/osfilesystem"
	"github.com/user/hlsnap/pkg/capture"
	"github.com/user/hlsnap/pkg/scanner"
)

// TestEndToEnd walks a real directory tree and refreshes thumbnails
// with the fixture engine.
func TestEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeFile := func(rel, content string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	vod := "#EXTM3U\n#EXTINF:10.0,\nseg0.ts\n#EXTINF:10.0,\nseg1.ts\n#EXT-X-ENDLIST\n"
	writeFile("movies/alpha_hls/playlist.m3u8", vod)
	writeFile("movies/alpha_hls/thumbnail.jpg", "stale thumbnail")
	writeFile("movies/broken_hls/playlist.m3u8", "not a playlist")
	// Suffix-less directory with a playlist is not a bundle.
	writeFile("movies/extras/playlist.m3u8", vod)

	fs := osfilesystem.New()
	log := logger.NewNoop()

	bundles, err := scanner.New(fs, log).Scan(root, scanner.DefaultOptions())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(bundles) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(bundles))
	}

	factory := fixtureengine.NewFactory(fs, log)
	capturer := capture.New(fs, log)
	capturer.PollInterval = 2 * time.Millisecond
	capturer.Timeout = 500 * time.Millisecond

	opts := DefaultOptions()
	opts.ReadyTimeout = 100 * time.Millisecond
	run := func() *Report {
		return New(factory, capturer, fs, log).Run(context.Background(), bundles, opts)
	}

	report := run()
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("expected 1 succeeded and 1 failed, got %+v", report)
	}
	out, _ := report.Outcome("movies/broken_hls")
	if out.Status != StatusFailed || out.Reason != "open" {
		t.Errorf("expected broken bundle to fail opening, got %+v", out)
	}

	thumbPath := filepath.Join(root, "movies/alpha_hls/thumbnail.jpg")
	first, err := os.ReadFile(thumbPath)
	if err != nil {
		t.Fatalf("read thumbnail: %v", err)
	}
	if string(first) == "stale thumbnail" {
		t.Fatal("thumbnail was not refreshed")
	}
	if _, err := os.Stat(thumbPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("staging file left behind")
	}

	// A second run over unchanged media produces identical bytes.
	if report := run(); report.Succeeded != 1 {
		t.Fatalf("second run failed: %+v", report)
	}
	second, err := os.ReadFile(thumbPath)
	if err != nil {
		t.Fatalf("read thumbnail: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("expected idempotent runs to produce identical thumbnails")
	}
}
