// Package batch runs thumbnail capture across many bundles with a
// bounded worker pool.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/user/hlsnap/pkg/capture"
	"github.com/user/hlsnap/pkg/ports"
	"github.com/user/hlsnap/pkg/scanner"
	"github.com/user/hlsnap/pkg/session"
)

// OffsetPolicy decides where in the media to take the snapshot.
type OffsetPolicy struct {
	// Strategy is "fraction" or "fixed".
	Strategy string

	// Fraction of the total duration, used by the fraction strategy.
	Fraction float64

	// Seconds into the media, used by the fixed strategy.
	Seconds float64
}

// DefaultOffsetPolicy snapshots a quarter of the way in.
func DefaultOffsetPolicy() OffsetPolicy {
	return OffsetPolicy{Strategy: "fraction", Fraction: 0.25}
}

// Resolve computes the target offset for a media of the given duration.
// An unknown duration always resolves to 0.
func (p OffsetPolicy) Resolve(duration time.Duration, known bool) time.Duration {
	if !known || duration <= 0 {
		return 0
	}
	switch p.Strategy {
	case "fixed":
		offset := time.Duration(p.Seconds * float64(time.Second))
		if offset >= duration {
			return 0
		}
		return offset
	default:
		return time.Duration(p.Fraction * float64(duration))
	}
}

// Options tunes a batch run.
type Options struct {
	// Concurrency is the worker pool size; at most this many playback
	// sessions exist at once.
	Concurrency int

	// Retries is how many extra attempts a retryable failure earns.
	Retries int

	// ItemTimeout bounds one bundle end to end, across all its stages.
	ItemTimeout time.Duration

	// ReadyTimeout bounds buffering within one attempt.
	ReadyTimeout time.Duration

	// Offset decides where in the media the snapshot is taken.
	Offset OffsetPolicy

	// Width and Height are the snapshot dimensions. Zero means native.
	Width  int
	Height int

	// Observer, when set, is called after each bundle completes. It runs
	// on worker goroutines under the report lock, so keep it cheap.
	Observer func(done, total int, o Outcome)
}

// DefaultOptions returns the standard batch tuning.
func DefaultOptions() Options {
	return Options{
		Concurrency:  2,
		Retries:      1,
		ItemTimeout:  45 * time.Second,
		ReadyTimeout: 15 * time.Second,
		Offset:       DefaultOffsetPolicy(),
	}
}

// Orchestrator fans bundles out to workers and collects a report.
type Orchestrator struct {
	factory  ports.EngineFactory
	capturer *capture.Capturer
	fs       ports.FileSystem
	logger   ports.Logger
}

// New creates an Orchestrator.
func New(factory ports.EngineFactory, capturer *capture.Capturer, fs ports.FileSystem, l ports.Logger) *Orchestrator {
	return &Orchestrator{
		factory:  factory,
		capturer: capturer,
		fs:       fs,
		logger:   l.WithComponent("batch"),
	}
}

// Run captures a thumbnail for every bundle. One bundle's failure never
// stops the others. When ctx is cancelled, in-flight bundles finish
// their current attempt and queued bundles are marked skipped.
func (o *Orchestrator) Run(ctx context.Context, bundles []scanner.Bundle, opts Options) *Report {
	report := &Report{StartedAt: time.Now()}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	var mu sync.Mutex
	done := 0
	record := func(out Outcome) {
		mu.Lock()
		defer mu.Unlock()
		report.Outcomes = append(report.Outcomes, out)
		done++
		if opts.Observer != nil {
			opts.Observer(done, len(bundles), out)
		}
	}

	wp := workerpool.New(opts.Concurrency)
	for _, b := range bundles {
		b := b
		wp.Submit(func() {
			if ctx.Err() != nil {
				o.logger.Warn("Bundle %s skipped: %s", b.RelPath, ctx.Err().Error())
				record(Outcome{Bundle: b, Status: StatusSkipped, Reason: "cancelled", Err: ctx.Err()})
				return
			}
			record(o.processBundle(ctx, b, opts))
		})
	}
	wp.StopWait()

	report.FinishedAt = time.Now()
	report.finalize()
	return report
}

// RunOne captures a single bundle outside of a pool.
func (o *Orchestrator) RunOne(ctx context.Context, b scanner.Bundle, opts Options) Outcome {
	return o.processBundle(ctx, b, opts)
}

// processBundle runs the attempt loop for one bundle.
func (o *Orchestrator) processBundle(ctx context.Context, b scanner.Bundle, opts Options) Outcome {
	started := time.Now()
	maxAttempts := opts.Retries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		o.logger.Debug("Processing %s (attempt %d/%d)", b.RelPath, attempt, maxAttempts)
		err := o.attempt(ctx, b, opts)
		if err == nil {
			elapsed := time.Since(started)
			o.logger.Debug("Completed %s in %d ms", b.RelPath, elapsed.Milliseconds())
			return Outcome{Bundle: b, Status: StatusSucceeded, Elapsed: elapsed, Attempts: attempt}
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) || attempt == maxAttempts {
			break
		}
		o.logger.Warn("Retrying %s after %s", b.RelPath, err.Error())
	}

	o.logger.Error("Failed to capture %s: %s", b.RelPath, lastErr.Error())
	return Outcome{
		Bundle:   b,
		Status:   StatusFailed,
		Reason:   reason(lastErr),
		Err:      lastErr,
		Elapsed:  time.Since(started),
		Attempts: attempts,
	}
}

// attempt opens a fresh session, waits for readiness, seeks and
// captures. Each attempt runs under the per-item timeout.
func (o *Orchestrator) attempt(ctx context.Context, b scanner.Bundle, opts Options) error {
	itemCtx := ctx
	if opts.ItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, opts.ItemTimeout)
		defer cancel()
	}

	sess, err := session.Open(itemCtx, o.factory, b.ManifestPath, o.logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.AwaitReady(itemCtx, opts.ReadyTimeout); err != nil {
		return err
	}

	duration, known := sess.Duration()
	offset := opts.Offset.Resolve(duration, known)
	if err := sess.Seek(offset); err != nil {
		if offset == 0 {
			return err
		}
		// Some engines reject deep seeks into sparsely-segmented media.
		o.logger.Debug("Seek rejected, retrying at 0")
		if err := sess.Seek(0); err != nil {
			return err
		}
		offset = 0
	}

	req := capture.Request{
		Offset:     offset,
		Width:      opts.Width,
		Height:     opts.Height,
		OutputPath: b.ThumbnailPath,
	}
	if err := o.capturer.Capture(itemCtx, sess, req); err != nil {
		return err
	}

	return o.mirrorExisting(b)
}

// mirrorExisting copies the fresh thumbnail over the first-frame image
// when one already exists. Bundles without one are left alone.
func (o *Orchestrator) mirrorExisting(b scanner.Bundle) error {
	exists, err := o.fs.Exists(b.FirstFramePath)
	if err != nil || !exists {
		return nil
	}
	data, err := o.fs.ReadFile(b.ThumbnailPath)
	if err != nil {
		return &capture.FilesystemError{Op: "read", Path: b.ThumbnailPath, Err: err}
	}
	if err := capture.AtomicWrite(o.fs, b.FirstFramePath, data); err != nil {
		return err
	}
	o.logger.Debug("Mirrored snapshot to %s", b.FirstFramePath)
	return nil
}

// retryable reports whether a failure class is worth a fresh session.
// A bare deadline error means the per-item budget expired mid-stage,
// which is a timeout like any other.
func retryable(err error) bool {
	var timeout *session.TimeoutError
	var seek *session.SeekError
	var capTimeout *capture.CaptureTimeoutError
	return errors.As(err, &timeout) || errors.As(err, &seek) ||
		errors.As(err, &capTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// reason maps a failure to a short report label.
func reason(err error) string {
	var open *session.OpenError
	var timeout *session.TimeoutError
	var seek *session.SeekError
	var capTimeout *capture.CaptureTimeoutError
	var fsErr *capture.FilesystemError
	switch {
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &seek):
		return "seek"
	case errors.As(err, &capTimeout):
		return "capture-timeout"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &fsErr):
		return "filesystem"
	case errors.As(err, &open):
		return "open"
	default:
		return "error"
	}
}
