package config

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	// ErrInvalidConfig covers unreadable or unparsable config files
	// and out-of-range settings.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrMissingRequired means a setting with no usable default was
	// left empty.
	ErrMissingRequired = errors.New("config: missing required field")
)
