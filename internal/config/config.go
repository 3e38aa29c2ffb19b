// Package config provides configuration types and defaults for mfboost.
package config

import (
	"fmt"
	"os"

	"github.com/five82/mfboost/internal/checkpoint"
	"github.com/five82/mfboost/internal/quality"
)

// Default constants.
const (
	// DefaultMinSSIM is the minimum acceptable luma SSIM.
	DefaultMinSSIM float64 = 0.95

	// DefaultMinMSSSIM is the minimum acceptable MS-SSIM.
	DefaultMinMSSSIM float64 = 0.90

	// DefaultMinPSNR is the minimum acceptable PSNR, in dB, used only as
	// an advisory cross-check and never as a search objective.
	DefaultMinPSNR float64 = 35.0

	// DefaultInitialAnchorCRF seeds phase 1 (GpuCoarse) before any
	// calibration anchors exist.
	DefaultInitialAnchorCRF float64 = 24.0

	// IterationHardCeiling is the absolute iteration cap regardless of
	// duration preset, mirrored from internal/guard.HardCeiling.
	IterationHardCeiling = 500

	// DefaultCacheCapacity bounds the in-process CRF cache's entry count.
	DefaultCacheCapacity = 4096

	// DefaultStaleLockHorizonHours expresses checkpoint.DefaultStaleLockHorizon
	// in a config-friendly unit for flag/env documentation.
	DefaultStaleLockHorizonHours = 2
)

// Mode selects which top-level command produced this Config: run, simple,
// or strategy.
type Mode int

const (
	ModeExplore Mode = iota
	ModeSimple
	ModeStrategy
)

// Config holds all configuration for a batch run.
type Config struct {
	// Input/output paths
	InputDir      string
	OutputDir     string
	LogDir        string
	TempDir       string // optional, defaults to OutputDir
	CheckpointDir string // optional, defaults to OutputDir

	// Run mode and search shape, driven by CLI flags
	Mode           Mode
	Recursive      bool
	Force          bool
	DeleteOriginal bool
	Explore        bool
	MatchQuality   bool
	Compress       bool
	Lossless       bool
	Ultimate       bool
	AppleCompat    bool
	CPUOnly        bool
	Verbose        bool

	// Quality thresholds
	Thresholds quality.Thresholds

	// Concurrency
	LowMemory     bool
	MultiInstance bool

	// Cache
	CacheCapacity int
	CachePath     string

	// Checkpoint
	StaleLockHorizonHours int
}

// NewConfig creates a new Config with default values.
func NewConfig(inputDir, outputDir, logDir string) *Config {
	return &Config{
		InputDir:              inputDir,
		OutputDir:             outputDir,
		LogDir:                logDir,
		Mode:                  ModeExplore,
		Explore:               true,
		Thresholds:            quality.DefaultThresholds(),
		CacheCapacity:         DefaultCacheCapacity,
		StaleLockHorizonHours: DefaultStaleLockHorizonHours,
	}
}

// ApplyEnv overlays the environment variables onto cfg.
// Flags set explicitly on the command line should be applied after this
// call so they take precedence.
func (c *Config) ApplyEnv() {
	if os.Getenv("MFB_LOW_MEMORY") == "1" {
		c.LowMemory = true
	}
	if os.Getenv("MFB_MULTI_INSTANCE") == "1" {
		c.MultiInstance = true
	}
	if os.Getenv("MODERN_FORMAT_BOOST_APPLE_COMPAT") == "1" {
		c.AppleCompat = true
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("%w: input path is required", ErrMissingInput)
	}
	if c.Thresholds.MinSSIM < 0 || c.Thresholds.MinSSIM > 1 {
		return fmt.Errorf("%w: min-ssim must be in [0,1], got %g", ErrInvalidThreshold, c.Thresholds.MinSSIM)
	}
	if c.Thresholds.MinMSSSIM < 0 || c.Thresholds.MinMSSSIM > 1 {
		return fmt.Errorf("%w: min-msssim must be in [0,1], got %g", ErrInvalidThreshold, c.Thresholds.MinMSSSIM)
	}
	if c.Thresholds.MinPSNR < 0 {
		return fmt.Errorf("%w: min-psnr must be non-negative, got %g", ErrInvalidThreshold, c.Thresholds.MinPSNR)
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("%w: cache capacity must be at least 1, got %d", ErrInvalidCacheCapacity, c.CacheCapacity)
	}
	if c.StaleLockHorizonHours < 1 {
		return fmt.Errorf("%w: stale lock horizon must be at least 1 hour, got %d", ErrInvalidLockHorizon, c.StaleLockHorizonHours)
	}
	if c.Lossless && (c.MatchQuality || c.Compress) {
		return fmt.Errorf("%w: --lossless cannot be combined with --match-quality or --compress", ErrConflictingFlags)
	}
	return nil
}

// GetTempDir returns the temp directory, falling back to OutputDir if not set.
func (c *Config) GetTempDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return c.OutputDir
}

// GetCheckpointDir returns the checkpoint directory, falling back to
// OutputDir if not set.
func (c *Config) GetCheckpointDir() string {
	if c.CheckpointDir != "" {
		return c.CheckpointDir
	}
	return c.OutputDir
}

// StaleLockHorizonHoursOrDefault returns the configured stale lock horizon
// in hours, falling back to internal/checkpoint's default when unset.
func (c *Config) StaleLockHorizonHoursOrDefault() int {
	if c.StaleLockHorizonHours <= 0 {
		return int(checkpoint.DefaultStaleLockHorizon.Hours())
	}
	return c.StaleLockHorizonHours
}
