package engine

import "errors"

var (
	// ErrUnsupported is returned when the platform lacks audio or capture
	// support, or a capture processing feature is requested from a raw
	// backend.
	ErrUnsupported = errors.New("engine: unsupported")

	// ErrDeviceUnavailable is returned when the input device cannot be
	// acquired, typically because permission was denied or it is missing.
	ErrDeviceUnavailable = errors.New("engine: device unavailable")

	// ErrAudioBlocked is returned when the output could not be resumed.
	ErrAudioBlocked = errors.New("engine: audio blocked")

	// ErrNotCapturing is returned by Snapshot when no capture is running.
	ErrNotCapturing = errors.New("engine: not capturing")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine: closed")
)
