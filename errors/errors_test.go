package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrap(ErrCompileFailed, "cargo build")

	assert.Contains(t, err.Error(), "cargo build")
	assert.True(t, Is(err, ErrCompileFailed))
	assert.False(t, Is(err, ErrConversionFailed))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"config", NewConfigError("platform is required"), true},
		{"tool missing", Wrap(ErrToolMissing, "rustup"), true},
		{"compile", Wrap(ErrCompileFailed, "cargo"), true},
		{"conversion", &StepError{Artifact: "release/imix.bin", Err: ErrConversionFailed}, true},
		{"outdated", Wrap(ErrToolOutdated, "rustup 1.9.0"), false},
		{"component", Wrap(ErrComponentMissing, "rust-src"), false},
		{"reporting", Wrap(ErrReportingFailed, "size"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 0, ExitCode(Wrap(ErrReportingFailed, "size")))
	assert.Equal(t, 2, ExitCode(NewConfigError("target is required")))
	assert.Equal(t, 3, ExitCode(Wrap(ErrToolMissing, "rustup")))
	assert.Equal(t, 1, ExitCode(Wrap(ErrConversionFailed, "objcopy")))
	assert.Equal(t, 1, ExitCode(Mark(Wrap(ErrBinaryNotFound, "arm-none-eabi-objcopy"), ErrConversionFailed)))
	assert.Equal(t, 1, ExitCode(New("anything else")))
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("missing %s", "board.platform")

	require.Error(t, err)
	assert.True(t, Is(err, ErrConfig))
	assert.Contains(t, err.Error(), "missing board.platform")
}

func TestStepError(t *testing.T) {
	base := Wrap(ErrConversionFailed, "objcopy exited 1")
	err := error(&StepError{Artifact: "release/imix.hex", Err: base})

	assert.Equal(t, "release/imix.hex: objcopy exited 1: conversion failed", err.Error())
	assert.True(t, Is(err, ErrConversionFailed))

	err = WithGoal(err, "build")
	assert.Equal(t, "goal build: release/imix.hex: objcopy exited 1: conversion failed", err.Error())

	var step *StepError
	require.True(t, As(err, &step))
	assert.Equal(t, "build", step.Goal)
}

func TestWithGoal_NonStepError(t *testing.T) {
	assert.Nil(t, WithGoal(nil, "build"))

	err := WithGoal(ErrToolMissing, "listing")
	assert.Contains(t, err.Error(), "goal listing")
	assert.True(t, Is(err, ErrToolMissing))
}

func TestWithHint(t *testing.T) {
	err := WithHint(NewConfigError("platform is required"), "set board.platform in flashbuild.toml")

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "set board.platform in flashbuild.toml", hints[0])
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithHint(nil, "hint"))
}

func ExampleWrap() {
	err := Wrap(New("exit status 1"), "objcopy")
	fmt.Println(err)
	// Output: objcopy: exit status 1
}
