// Package config provides configuration loading and management.
package config

import (
	"os"
	"time"

	"github.com/user/hlsnap/pkg/batch"
	"github.com/user/hlsnap/pkg/scanner"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration for hlsnap.
type Config struct {
	// Library layout
	RootDirectory  string `yaml:"root_directory"`
	M3U8Filename   string `yaml:"m3u8_filename"`
	DirSuffix      string `yaml:"accepted_video_dir_suffix"`
	SnapshotName   string `yaml:"snapshot_filename"`
	FirstFrameName string `yaml:"first_frame_filename"`
	CoverName      string `yaml:"cover_filename"`

	// Theme is carried for config compatibility with the desktop tool.
	// The CLI renders no themed surface.
	Theme string `yaml:"theme"`

	// Snapshot
	SnapshotWidth  int          `yaml:"vlc_snapshot_width"`
	SnapshotHeight int          `yaml:"vlc_snapshot_height"`
	Offset         OffsetConfig `yaml:"capture_offset"`

	// Engine
	Engine     string `yaml:"engine"`
	FFmpegPath string `yaml:"ffmpeg_path"`
	ChromePath string `yaml:"chrome_path"`
	HlsJSPath  string `yaml:"hlsjs_path"`

	// Batch tuning
	Concurrency      int `yaml:"concurrency"`
	Retries          int `yaml:"retries"`
	ItemTimeoutMs    int `yaml:"item_timeout_ms"`
	ReadyTimeoutMs   int `yaml:"ready_timeout_ms"`
	CaptureTimeoutMs int `yaml:"capture_timeout_ms"`
	PollIntervalMs   int `yaml:"poll_interval_ms"`
}

// OffsetConfig selects the snapshot position within the media.
type OffsetConfig struct {
	Strategy string  `yaml:"strategy"`
	Fraction float64 `yaml:"fraction"`
	Seconds  float64 `yaml:"seconds"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		// Library layout
		M3U8Filename:   "playlist.m3u8",
		DirSuffix:      "_hls",
		SnapshotName:   "thumbnail.jpg",
		FirstFrameName: "first_frame.jpg",
		CoverName:      "cover.jpg",

		// Snapshot
		Offset: OffsetConfig{
			Strategy: "fraction",
			Fraction: 0.25,
		},

		// Engine
		Engine: "ffmpeg",

		// Batch tuning
		Concurrency:      2,
		Retries:          1,
		ItemTimeoutMs:    45000,
		ReadyTimeoutMs:   15000,
		CaptureTimeoutMs: 10000,
		PollIntervalMs:   150,
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ScannerOptions converts Config to scanner.Options.
func (c Config) ScannerOptions() scanner.Options {
	return scanner.Options{
		ManifestFilename:   c.M3U8Filename,
		BundleSuffix:       c.DirSuffix,
		SnapshotFilename:   c.SnapshotName,
		FirstFrameFilename: c.FirstFrameName,
		CoverFilename:      c.CoverName,
	}
}

// BatchOptions converts Config to batch.Options.
func (c Config) BatchOptions() batch.Options {
	return batch.Options{
		Concurrency:  c.Concurrency,
		Retries:      c.Retries,
		ItemTimeout:  time.Duration(c.ItemTimeoutMs) * time.Millisecond,
		ReadyTimeout: time.Duration(c.ReadyTimeoutMs) * time.Millisecond,
		Offset: batch.OffsetPolicy{
			Strategy: c.Offset.Strategy,
			Fraction: c.Offset.Fraction,
			Seconds:  c.Offset.Seconds,
		},
		Width:  c.SnapshotWidth,
		Height: c.SnapshotHeight,
	}
}
