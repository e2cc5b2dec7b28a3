// Package errors provides error handling for flashbuild.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints shown to the operator next to a failure
//
// Usage:
//
//	// Wrap with context
//	if err := run(); err != nil {
//	    return errors.Wrap(err, "failed to convert ELF")
//	}
//
//	// Classify against the build taxonomy
//	if errors.Is(err, errors.ErrToolMissing) {
//	    // abort before any artifact work
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark

	WithSecondaryError = crdb.WithSecondaryError
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Build taxonomy sentinels.
// Wrap or Mark these so callers can classify with errors.Is().
var (
	// ErrConfig indicates a required identity (platform, target triple) is
	// missing or inconsistent. Always raised before any tool runs.
	ErrConfig = New("configuration error")

	// ErrToolMissing indicates the toolchain management tool is not installed
	ErrToolMissing = New("toolchain manager missing")

	// ErrBinaryNotFound indicates an external program is not on PATH.
	// The step that needed it decides how the failure is classified.
	ErrBinaryNotFound = New("program not found")

	// ErrToolOutdated indicates the toolchain management tool is older than required.
	// Self-healing: an update is attempted and the build continues.
	ErrToolOutdated = New("toolchain manager outdated")

	// ErrComponentMissing indicates a toolchain component was absent and the
	// remedial install reported a failure. Non-fatal.
	ErrComponentMissing = New("toolchain component missing")

	// ErrCompileFailed indicates the compile-and-link step exited non-zero
	ErrCompileFailed = New("compile failed")

	// ErrConversionFailed indicates an objcopy/objdump/copy step failed
	ErrConversionFailed = New("conversion failed")

	// ErrReportingFailed indicates the informational size report failed.
	// Never propagated as a build failure.
	ErrReportingFailed = New("size report failed")

	// ErrToolFailed indicates an external tool exited non-zero
	ErrToolFailed = New("tool exited with failure")
)

// IsFatal reports whether err must abort the invocation.
// Outdated tooling, missing components and reporting failures are self-healing.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsAny(err, ErrToolOutdated, ErrComponentMissing, ErrReportingFailed)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case !IsFatal(err):
		return 0
	case Is(err, ErrConfig):
		return 2
	case Is(err, ErrToolMissing):
		return 3
	default:
		return 1
	}
}

// NewConfigError creates a configuration error with a formatted message
func NewConfigError(format string, args ...interface{}) error {
	return Wrap(ErrConfig, Newf(format, args...).Error())
}
