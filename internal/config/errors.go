// Package config provides configuration types and defaults for mfboost.
package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrMissingInput indicates no input path was provided.
	ErrMissingInput = errors.New("missing input path")

	// ErrInvalidThreshold indicates a quality threshold outside its valid range.
	ErrInvalidThreshold = errors.New("invalid quality threshold")

	// ErrInvalidCacheCapacity indicates a non-positive cache capacity.
	ErrInvalidCacheCapacity = errors.New("invalid cache capacity")

	// ErrInvalidLockHorizon indicates a stale lock horizon under one hour.
	ErrInvalidLockHorizon = errors.New("invalid stale lock horizon")

	// ErrConflictingFlags indicates two mutually exclusive flags were set together.
	ErrConflictingFlags = errors.New("conflicting flags")
)
