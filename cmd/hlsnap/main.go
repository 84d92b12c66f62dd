// Command hlsnap captures thumbnails for HLS video bundles.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/user/hlsnap/pkg/adapters/chromeengine"
	"github.com/user/hlsnap/pkg/adapters/ffmpegengine"
	"github.com/user/hlsnap/pkg/adapters/fixtureengine"
	"github.com/user/hlsnap/pkg/adapters/logger"
	"github.com/user/hlsnap/pkg/adapters/osfilesystem"
	"github.com/user/hlsnap/pkg/batch"
	"github.com/user/hlsnap/pkg/capture"
	"github.com/user/hlsnap/pkg/config"
	"github.com/user/hlsnap/pkg/ports"
	"github.com/user/hlsnap/pkg/scanner"
	"github.com/user/hlsnap/pkg/summarizer"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:    "hlsnap",
		Usage:   "capture thumbnails for HLS video bundles",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file path"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn, error or quiet"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress all output"},
		},
		Commands: []*cli.Command{
			batchCommand(),
			singleCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "scan a library root and refresh every bundle thumbnail",
		ArgsUsage: "[root]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Usage: "library root directory"},
			&cli.StringFlag{Name: "engine", Usage: "playback engine: ffmpeg, chrome or fixture"},
			&cli.IntFlag{Name: "concurrency", Usage: "worker count"},
			&cli.IntFlag{Name: "retries", Usage: "extra attempts for retryable failures"},
			&cli.StringFlag{Name: "ffmpeg-path", Usage: "ffmpeg binary path"},
			&cli.StringFlag{Name: "chrome-path", Usage: "chrome binary path"},
			&cli.StringFlag{Name: "hlsjs-path", Usage: "local hls.js build served to the chrome player"},
			&cli.StringFlag{Name: "summary", Usage: "write a markdown summary to this path"},
			&cli.BoolFlag{Name: "progress", Value: true, Usage: "show a progress bar"},
		},
		Action: runBatch,
	}
}

func singleCommand() *cli.Command {
	return &cli.Command{
		Name:      "single",
		Usage:     "capture one bundle directory",
		ArgsUsage: "<bundle-dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "engine", Usage: "playback engine: ffmpeg, chrome or fixture"},
			&cli.StringFlag{Name: "ffmpeg-path", Usage: "ffmpeg binary path"},
			&cli.StringFlag{Name: "chrome-path", Usage: "chrome binary path"},
			&cli.StringFlag{Name: "hlsjs-path", Usage: "local hls.js build served to the chrome player"},
			&cli.BoolFlag{Name: "cover", Usage: "also refresh the parent directory cover image"},
		},
		Action: runSingle,
	}
}

// loadConfig merges the config file with command-line overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if v := c.String("root"); v != "" {
		cfg.RootDirectory = v
	}
	if c.Args().Len() > 0 {
		cfg.RootDirectory = c.Args().First()
	}
	if v := c.String("engine"); v != "" {
		cfg.Engine = v
	}
	if v := c.Int("concurrency"); v > 0 {
		cfg.Concurrency = v
	}
	if c.IsSet("retries") {
		cfg.Retries = c.Int("retries")
	}
	if v := c.String("ffmpeg-path"); v != "" {
		cfg.FFmpegPath = v
	}
	if v := c.String("chrome-path"); v != "" {
		cfg.ChromePath = v
	}
	if v := c.String("hlsjs-path"); v != "" {
		cfg.HlsJSPath = v
	}
	return cfg, nil
}

func buildLogger(c *cli.Context) ports.Logger {
	if c.Bool("quiet") {
		return logger.NewNoop()
	}
	return logger.NewConsole(ports.ParseLogLevel(c.String("log-level")))
}

// buildFactory creates the engine factory selected by configuration.
func buildFactory(cfg config.Config, fs ports.FileSystem, log ports.Logger) (ports.EngineFactory, error) {
	switch cfg.Engine {
	case "ffmpeg":
		return ffmpegengine.NewFactory(cfg.FFmpegPath, fs, log)
	case "chrome":
		return chromeengine.NewFactory(cfg.ChromePath, cfg.HlsJSPath, fs, log)
	case "fixture":
		return fixtureengine.NewFactory(fs, log), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (expected ffmpeg, chrome or fixture)", cfg.Engine)
	}
}

func buildCapturer(cfg config.Config, fs ports.FileSystem, log ports.Logger) *capture.Capturer {
	capturer := capture.New(fs, log)
	if cfg.CaptureTimeoutMs > 0 {
		capturer.Timeout = time.Duration(cfg.CaptureTimeoutMs) * time.Millisecond
	}
	if cfg.PollIntervalMs > 0 {
		capturer.PollInterval = time.Duration(cfg.PollIntervalMs) * time.Millisecond
	}
	return capturer
}

func runBatch(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.RootDirectory == "" {
		return fmt.Errorf("no library root: pass a directory or set root_directory in the config")
	}

	log := buildLogger(c)
	fs := osfilesystem.New()

	factory, err := buildFactory(cfg, fs, log)
	if err != nil {
		return err
	}
	defer factory.Shutdown()

	log.Info("Scanning %s for video bundles...", cfg.RootDirectory)
	bundles, err := scanner.New(fs, log).Scan(cfg.RootDirectory, cfg.ScannerOptions())
	if err != nil {
		return err
	}
	log.Info("Found %d bundles", len(bundles))
	if len(bundles) == 0 {
		return nil
	}

	opts := cfg.BatchOptions()
	log.Info("Capturing thumbnails with %d workers", opts.Concurrency)

	var bar *progressbar.ProgressBar
	if c.Bool("progress") && !c.Bool("quiet") {
		bar = progressbar.NewOptions(len(bundles),
			progressbar.OptionSetDescription("capturing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		opts.Observer = func(done, total int, o batch.Outcome) {
			_ = bar.Add(1)
		}
	}

	orchestrator := batch.New(factory, buildCapturer(cfg, fs, log), fs, log)
	report := orchestrator.Run(c.Context, bundles, opts)
	if bar != nil {
		_ = bar.Finish()
	}
	if c.Context.Err() != nil {
		log.Info("Interrupted, shutting down...")
	}

	summary := summarizer.FromReport(report, cfg.RootDirectory, cfg.Engine, opts.Concurrency)
	log.Info("Batch completed: %d succeeded, %d skipped, %d failed",
		summary.Succeeded, summary.Skipped, summary.Failed)
	if !c.Bool("quiet") {
		fmt.Print(summarizer.FormatText(summary))
	}
	if path := c.String("summary"); path != "" {
		writer := summarizer.NewWriter(summarizer.FormatFunc(summarizer.FormatMarkdown))
		if err := writer.Write(path, summary); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if report.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d bundles failed", report.Failed), 1)
	}
	return nil
}

func runSingle(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one bundle directory")
	}
	dir := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := buildLogger(c)
	fs := osfilesystem.New()

	factory, err := buildFactory(cfg, fs, log)
	if err != nil {
		return err
	}
	defer factory.Shutdown()

	opts := cfg.ScannerOptions()
	b := scanner.Bundle{
		RelPath:        filepath.Base(dir),
		Dir:            dir,
		ManifestPath:   filepath.Join(dir, opts.ManifestFilename),
		ThumbnailPath:  filepath.Join(dir, opts.SnapshotFilename),
		FirstFramePath: filepath.Join(dir, opts.FirstFrameFilename),
		CoverPath:      filepath.Join(filepath.Dir(dir), opts.CoverFilename),
	}
	if exists, err := fs.Exists(b.ManifestPath); err != nil || !exists {
		return fmt.Errorf("%s is not a bundle: missing %s", dir, opts.ManifestFilename)
	}

	orchestrator := batch.New(factory, buildCapturer(cfg, fs, log), fs, log)
	outcome := orchestrator.RunOne(c.Context, b, cfg.BatchOptions())
	if outcome.Status != batch.StatusSucceeded {
		return fmt.Errorf("capture failed (%s): %w", outcome.Reason, outcome.Err)
	}
	log.Info("Completed %s in %d ms", b.RelPath, outcome.Elapsed.Milliseconds())

	if c.Bool("cover") {
		if err := refreshCover(fs, b, log); err != nil {
			return err
		}
	}
	return nil
}

// refreshCover mirrors the fresh thumbnail over an existing cover
// image in the bundle's parent directory.
func refreshCover(fs ports.FileSystem, b scanner.Bundle, log ports.Logger) error {
	exists, err := fs.Exists(b.CoverPath)
	if err != nil || !exists {
		return nil
	}
	data, err := fs.ReadFile(b.ThumbnailPath)
	if err != nil {
		return fmt.Errorf("read thumbnail: %w", err)
	}
	if err := capture.AtomicWrite(fs, b.CoverPath, data); err != nil {
		return err
	}
	log.Info("Mirrored snapshot to %s", b.CoverPath)
	return nil
}
