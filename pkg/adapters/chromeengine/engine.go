package chromeengine

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/user/hlsnap/pkg/imgscale"
	"github.com/user/hlsnap/pkg/manifest"
	"github.com/user/hlsnap/pkg/ports"
)

//go:embed player.html
var playerHTML []byte

const (
	viewportWidth  = 1280
	viewportHeight = 720
	pollInterval   = 200 * time.Millisecond

	// opTimeout bounds every tab interaction after open, so a stuck
	// video can never block a worker past its item budget.
	opTimeout = 15 * time.Second

	hlsCDNURL = "https://cdn.jsdelivr.net/npm/hls.js@1.5.13/dist/hls.min.js"
)

// Factory shares one Chrome process allocator across sessions. Each
// session gets its own tab and its own loopback media server.
type Factory struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	fs          ports.FileSystem
	logger      ports.Logger
	hlsJS       []byte
}

// NewFactory launches the Chrome allocator. An empty chromePath falls
// back to the CHROME_PATH environment variable and system defaults.
// hlsJSPath names a local hls.js build to serve to the player page;
// when empty the HLSJS_PATH environment variable is consulted, and
// without either the player falls back to the CDN copy.
func NewFactory(chromePath, hlsJSPath string, fs ports.FileSystem, l ports.Logger) (*Factory, error) {
	resolved := ResolveChromePath(chromePath)
	if resolved == "" {
		return nil, fmt.Errorf("chrome not found: please install Chrome/Chromium, set CHROME_PATH environment variable, or use --chrome-path option")
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.ExecPath(resolved),
		chromedp.Flag("headless", "new"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.WindowSize(viewportWidth, viewportHeight),
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	f := &Factory{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		fs:          fs,
		logger:      l.WithComponent("chrome"),
	}
	f.hlsJS = loadHlsJS(hlsJSPath, fs, f.logger)
	return f, nil
}

// loadHlsJS reads a local hls.js build, resolved from the explicit
// path or the HLSJS_PATH environment variable. Nil means none is
// provisioned and the player page uses the CDN copy.
func loadHlsJS(explicitPath string, fs ports.FileSystem, log ports.Logger) []byte {
	path := explicitPath
	if path == "" {
		path = os.Getenv("HLSJS_PATH")
	}
	if path == "" {
		return nil
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		log.Warn("Failed to read hls.js at %s, falling back to CDN: %s", path, err.Error())
		return nil
	}
	return data
}

// NewSession creates a fresh tab-backed engine instance.
func (f *Factory) NewSession(ctx context.Context) (ports.PlaybackEngine, error) {
	return &Engine{
		factory: f,
		events:  make(chan ports.EngineEvent, 4),
	}, nil
}

// Shutdown tears down the Chrome process.
func (f *Factory) Shutdown() error {
	f.allocCancel()
	return nil
}

// Engine is one Chrome tab playing one HLS bundle. The bundle is
// served over a loopback HTTP server because media source extensions
// refuse file:// URLs.
type Engine struct {
	factory *Factory
	events  chan ports.EngineEvent

	tabCtx    context.Context
	tabCancel context.CancelFunc
	server    *http.Server
	listener  net.Listener

	duration time.Duration
	known    bool

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// Open probes the manifest, starts the media server and navigates a
// new tab to the player page. Loading continues in the background and
// completes with a ready or failed event.
func (e *Engine) Open(ctx context.Context, manifestPath string) error {
	info, err := manifest.ProbeFile(e.factory.fs, manifestPath)
	if err != nil {
		return err
	}
	e.duration = info.Duration
	e.known = info.VOD && info.Duration > 0

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	e.listener = listener

	bundleDir := filepath.Dir(manifestPath)
	mux := http.NewServeMux()
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(playerHTML)
	})
	mux.HandleFunc("/hls.min.js", hlsScriptHandler(e.factory.hlsJS))
	mux.Handle("/media/", http.StripPrefix("/media/", http.FileServer(http.Dir(bundleDir))))
	e.server = &http.Server{Handler: mux}
	go func() { _ = e.server.Serve(listener) }()

	e.tabCtx, e.tabCancel = chromedp.NewContext(e.factory.allocCtx)

	mediaURL := fmt.Sprintf("http://%s/media/%s", listener.Addr(), filepath.Base(manifestPath))
	playerURL := fmt.Sprintf("http://%s/player?src=%s", listener.Addr(), url.QueryEscape(mediaURL))

	e.emit(ports.EngineEvent{State: ports.EngineBuffering})
	go e.load(playerURL)
	return nil
}

// hlsScriptHandler serves a locally provisioned hls.js build, or
// redirects the player to the CDN copy when none is available.
func hlsScriptHandler(data []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(data) > 0 {
			w.Header().Set("Content-Type", "application/javascript")
			_, _ = w.Write(data)
			return
		}
		http.Redirect(w, r, hlsCDNURL, http.StatusFound)
	}
}

// load navigates and polls the video element until it has a decodable
// frame. It runs until success, a player error, or tab teardown.
func (e *Engine) load(playerURL string) {
	e.factory.logger.Debug("Opening %s", playerURL)
	err := chromedp.Run(e.tabCtx,
		emulation.SetDeviceMetricsOverride(viewportWidth, viewportHeight, 1, false),
		chromedp.Navigate(playerURL),
	)
	if err != nil {
		e.emitFailed(fmt.Errorf("navigate: %w", err))
		return
	}

	for {
		select {
		case <-e.tabCtx.Done():
			return
		case <-time.After(pollInterval):
		}

		var playerErr string
		if err := chromedp.Run(e.tabCtx,
			chromedp.Evaluate(`window.__playerError || ""`, &playerErr),
		); err != nil {
			e.emitFailed(fmt.Errorf("probe player: %w", err))
			return
		}
		if playerErr != "" {
			e.emitFailed(fmt.Errorf("player: %s", playerErr))
			return
		}

		var readyState int
		if err := chromedp.Run(e.tabCtx,
			chromedp.Evaluate(`document.getElementById('video').readyState`, &readyState),
		); err != nil {
			e.emitFailed(fmt.Errorf("probe video: %w", err))
			return
		}
		if readyState < 2 {
			continue
		}

		// Prefer the element's own duration when it is finite.
		var seconds float64
		if err := chromedp.Run(e.tabCtx,
			chromedp.Evaluate(`document.getElementById('video').duration`, &seconds),
		); err == nil && !math.IsNaN(seconds) && !math.IsInf(seconds, 0) && seconds > 0 {
			e.duration = time.Duration(seconds * float64(time.Second))
			e.known = true
		}

		e.emit(ports.EngineEvent{State: ports.EngineReady})
		return
	}
}

// Events returns the state-change channel.
func (e *Engine) Events() <-chan ports.EngineEvent {
	return e.events
}

// Duration reports the media duration once known.
func (e *Engine) Duration() (time.Duration, bool) {
	return e.duration, e.known
}

// Seek sets the video position and waits for the element to settle on
// a decodable frame there. The whole operation is bounded by opTimeout
// so a video stuck seeking cannot block its worker.
func (e *Engine) Seek(offset time.Duration) error {
	if e.tabCtx == nil {
		return fmt.Errorf("seek before open")
	}
	ctx, cancel := context.WithTimeout(e.tabCtx, opTimeout)
	defer cancel()

	seconds := offset.Seconds()
	set := fmt.Sprintf(`(function(){var v=document.getElementById('video');v.pause();v.currentTime=%.3f;return true;})()`, seconds)
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(set, &ok)); err != nil {
		return fmt.Errorf("set position: %w", err)
	}

	err := awaitSettled(ctx, pollInterval, func() (bool, error) {
		var settled bool
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(`(function(){var v=document.getElementById('video');return !v.seeking && v.readyState >= 2;})()`, &settled),
		); err != nil {
			return false, fmt.Errorf("probe seek: %w", err)
		}
		return settled, nil
	})
	if err != nil {
		return fmt.Errorf("seek to %s: %w", offset, err)
	}
	return nil
}

// awaitSettled polls probe until it reports true, the probe fails, or
// ctx expires.
func awaitSettled(ctx context.Context, interval time.Duration, probe func() (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			settled, err := probe()
			if err != nil {
				return err
			}
			if settled {
				return nil
			}
		}
	}
}

// Snapshot screenshots the video element, scales it and writes the
// JPEG to path.
func (e *Engine) Snapshot(path string, width, height int) error {
	if e.tabCtx == nil {
		return fmt.Errorf("snapshot before open")
	}
	ctx, cancel := context.WithTimeout(e.tabCtx, opTimeout)
	defer cancel()

	var png []byte
	if err := chromedp.Run(ctx,
		chromedp.Screenshot("#video", &png, chromedp.NodeVisible),
	); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	jpg, err := imgscale.ToJPEG(png, width, height)
	if err != nil {
		return err
	}
	return e.factory.fs.WriteFile(path, jpg)
}

// Close tears down the tab and the media server. The closed flag is
// flipped under the same lock emit takes, so the load goroutine can
// never send on the channel after it is closed.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		if e.tabCancel != nil {
			e.tabCancel()
		}
		if e.server != nil {
			_ = e.server.Close()
		}
		e.mu.Lock()
		e.closed = true
		close(e.events)
		e.mu.Unlock()
	})
	return nil
}

func (e *Engine) emit(ev ports.EngineEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
	}
}

func (e *Engine) emitFailed(err error) {
	e.factory.logger.Debug("Player failed: %s", err.Error())
	e.emit(ports.EngineEvent{State: ports.EngineFailed, Err: err})
}

var (
	_ ports.PlaybackEngine = (*Engine)(nil)
	_ ports.EngineFactory  = (*Factory)(nil)
)
