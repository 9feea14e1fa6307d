// Package config provides the host-side configuration of a checker run: how artifacts
// are collected and where the checker options come from.
package config

import "fmt"

// ScanOptions controls how the command line host collects and feeds artifacts.
type ScanOptions struct {
	// MaxScanGoRoutines controls the number of artifacts scanned concurrently
	MaxScanGoRoutines int
	// MaxArtifactSize is the maximum size of a single artifact or archive to scan (in bytes)
	MaxArtifactSize int64
	// IncludeBinary scans artifacts that look like binary files (images, fonts, ...)
	IncludeBinary bool
	// ExtractArchives scans the entries of zip, tar and other archives
	ExtractArchives bool
}

// DefaultScanOptions returns sensible default values for scan options.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		MaxScanGoRoutines: 4,
		MaxArtifactSize:   500 * 1000 * 1000, // 500MB
		IncludeBinary:     false,
		ExtractArchives:   true,
	}
}

// Validate checks that the options are usable.
func (o ScanOptions) Validate() error {
	if err := ValidateThreadCount(o.MaxScanGoRoutines); err != nil {
		return err
	}
	if o.MaxArtifactSize <= 0 {
		return fmt.Errorf("max artifact size must be positive, got %d", o.MaxArtifactSize)
	}
	return nil
}
