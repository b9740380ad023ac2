package app

import "errors"

var (
	// ErrBusy is returned while a single-shot classification is running.
	ErrBusy = errors.New("app: busy")

	// ErrUnknownMode is returned for an unrecognised mode name.
	ErrUnknownMode = errors.New("app: unknown mode")

	// ErrWrongMode is returned when an action is not available in the current mode.
	ErrWrongMode = errors.New("app: action not available in this mode")

	// ErrNoLibrary is returned when no photo library is configured.
	ErrNoLibrary = errors.New("app: no photo library configured")
)
