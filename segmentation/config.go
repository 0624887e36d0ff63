package segmentation

import (
	"github.com/pkg/errors"
)

const (
	// SmoothingDisabled is the SmoothSize sentinel that turns the blur off.
	SmoothingDisabled = -1
	// UnboundedDiagnosticLog keeps every raw histogram for the lifetime of
	// the Segmenter.
	UnboundedDiagnosticLog = -1
	// HistogramChannel is the channel of the normalized frame that is counted
	// and backprojected (green in BGR order).
	HistogramChannel = 1
)

// Config contains the parameters of a Segmenter. It is validated once by New
// and never re-validated per frame.
type Config struct {
	// AccumSize is the number of recent histograms averaged into the
	// background estimate. Must be > 0.
	AccumSize int `json:"accum_size" yaml:"accum_size"`
	// Bins is the histogram resolution over [0, 255). Must be > 0.
	Bins int `json:"bins" yaml:"bins"`
	// SmoothSize is the Gaussian blur kernel size applied to the normalized
	// frame, an odd number >= 3, or SmoothingDisabled.
	SmoothSize int `json:"smooth_size" yaml:"smooth_size"`
	// ApplyMorphologic enables closing of the mask with a 3x3 cross.
	ApplyMorphologic bool `json:"apply_morphologic" yaml:"apply_morphologic"`
	// LegacyMorphology computes the closing but keeps the unclosed mask,
	// reproducing the historical tracker output bit for bit.
	LegacyMorphology bool `json:"legacy_morphology" yaml:"legacy_morphology"`
	// DiagnosticLogSize bounds the log of raw per-frame histograms.
	// 0 disables the log, UnboundedDiagnosticLog keeps everything.
	DiagnosticLogSize int `json:"diagnostic_log_size" yaml:"diagnostic_log_size"`
}

// DefaultConfig returns the configuration used by the tracker for broadcast
// footage.
func DefaultConfig() Config {
	return Config{
		AccumSize:         25,
		Bins:              64,
		SmoothSize:        5,
		ApplyMorphologic:  false,
		LegacyMorphology:  false,
		DiagnosticLogSize: 0,
	}
}

// Validate checks that the configuration values are valid. Every failure
// wraps ErrInvalidConfig.
func (c Config) Validate() error {
	if c.AccumSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "accum_size must be positive, got %d", c.AccumSize)
	}
	if c.Bins <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "bins must be positive, got %d", c.Bins)
	}
	if c.SmoothSize != SmoothingDisabled && (c.SmoothSize < 3 || c.SmoothSize%2 == 0) {
		return errors.Wrapf(ErrInvalidConfig, "smooth_size must be an odd number >= 3 or %d, got %d", SmoothingDisabled, c.SmoothSize)
	}
	if c.DiagnosticLogSize < UnboundedDiagnosticLog {
		return errors.Wrapf(ErrInvalidConfig, "diagnostic_log_size must be >= %d, got %d", UnboundedDiagnosticLog, c.DiagnosticLogSize)
	}
	return nil
}
