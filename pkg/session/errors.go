package session

import (
	"fmt"
	"time"
)

// OpenError means the engine could not load the manifest at all. Opens
// do not recover on retry, so callers treat this as permanent.
type OpenError struct {
	Manifest string
	Err      error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Manifest, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// TimeoutError means a stage did not finish within its deadline. The
// media may still be fine, so callers may retry with a fresh session.
type TimeoutError struct {
	Stage   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not complete within %s", e.Stage, e.Timeout)
}

// SeekError means the engine rejected a position change. The session
// stays usable, so the caller can fall back to a different offset.
type SeekError struct {
	Offset time.Duration
	Err    error
}

func (e *SeekError) Error() string {
	return fmt.Sprintf("seek to %s: %v", e.Offset, e.Err)
}

func (e *SeekError) Unwrap() error {
	return e.Err
}
