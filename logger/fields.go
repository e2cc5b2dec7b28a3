package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across flashbuild.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldRunID = "run_id"
	FieldGoal  = "goal"

	// Build identity
	FieldPlatform = "platform"
	FieldTarget   = "target"
	FieldProfile  = "profile"
	FieldKind     = "kind"
	FieldArtifact = "artifact"
	FieldState    = "state"

	// Components
	FieldComponent = "component"
	FieldTool      = "tool"
	FieldArgs      = "args"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Versions
	FieldVersion    = "version"
	FieldMinVersion = "min_version"
	FieldStamp      = "stamp"

	// Files and paths
	FieldPath = "path"
)

// Context keys for propagating logging context
type contextKey string

const (
	runIDKey contextKey = "logger_run_id"
	goalKey  contextKey = "logger_goal"
)

// WithRunID adds an invocation ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithGoal adds the goal name to the context for logging
func WithGoal(ctx context.Context, goal string) context.Context {
	return context.WithValue(ctx, goalKey, goal)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, FieldRunID, runID)
	}
	if goal, ok := ctx.Value(goalKey).(string); ok && goal != "" {
		fields = append(fields, FieldGoal, goal)
	}

	return fields
}

// LoggerFromContext returns a logger with fields extracted from context.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return Logger
	}
	return Logger.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	v := toolchain.NewValidator(cfg, r, logger.ComponentLogger("toolchain"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
