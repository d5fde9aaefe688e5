// Package enginerr defines the engine's error taxonomy (spec §7).
package enginerr

import "errors"

var (
	// ErrNotFound is returned for per-track queries on an id that is not present.
	ErrNotFound = errors.New("not found")
	// ErrInvalidFormat is returned when the decoder cannot parse a container.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrNoAudioTrack is returned when a container has no decodeable audio track.
	ErrNoAudioTrack = errors.New("no audio track")
	// ErrUnsupported is returned for recognized-but-unsupported codecs/containers.
	ErrUnsupported = errors.New("unsupported")
	// ErrResetRequired surfaces a mid-stream decoder reset request as fatal.
	ErrResetRequired = errors.New("decoder reset required")
	// ErrInvalidArgument marks a programmer error. No engine code returns it;
	// internal/assert reports such cases by panicking.
	ErrInvalidArgument = errors.New("invalid argument")
)

// UIError is the uniform message-string wrapper for errors crossing the UI
// boundary (spec §7's "propagation policy"). Wrap builds one from any
// error; engine.Engine's methods return their errors without wrapping them,
// so callers of engine.Engine receive the underlying errors, not UIErrors.
type UIError struct {
	Message string
	cause   error
}

func (e *UIError) Error() string { return e.Message }

func (e *UIError) Unwrap() error { return e.cause }

// Wrap converts any error into a UIError, preserving Is/As compatibility
// with the sentinels above via the wrapped cause.
func Wrap(err error) *UIError {
	if err == nil {
		return nil
	}
	return &UIError{Message: err.Error(), cause: err}
}
