package graph

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/flashbuild/artifact"
)

// ProgressEmitter receives build progress.
//
// Implementations include:
// - CLIEmitter: Pretty-printed terminal output using pterm
// - JSONEmitter: Structured JSON events for CI consumption
type ProgressEmitter interface {
	// EmitStep announces an artifact reaching state
	EmitStep(id artifact.ID, state artifact.State, path string, elapsed time.Duration)
	// EmitError reports the failure that aborted a step
	EmitError(step string, err error)
	// EmitInfo prints informational message
	EmitInfo(message string)
	// EmitComplete summarises a finished goal
	EmitComplete(summary map[string]interface{})
}

// ProgressEvent represents a structured JSON progress event
type ProgressEvent struct {
	Type      string                 `json:"type"`      // "step", "error", "info", "complete"
	Timestamp time.Time              `json:"timestamp"` // When this event occurred
	Data      map[string]interface{} `json:"data"`      // Event-specific data
}

// NopEmitter discards all progress
type NopEmitter struct{}

func (NopEmitter) EmitStep(artifact.ID, artifact.State, string, time.Duration) {}
func (NopEmitter) EmitError(string, error)                                     {}
func (NopEmitter) EmitInfo(string)                                             {}
func (NopEmitter) EmitComplete(map[string]interface{})                         {}

// CLIEmitter outputs pretty-printed progress to terminal using pterm
type CLIEmitter struct {
	verbosity int
	w         io.Writer
}

// NewCLIEmitter creates a CLI progress emitter writing to stderr, keeping
// stdout for tool output
func NewCLIEmitter(verbosity int) *CLIEmitter {
	return NewCLIEmitterWithWriter(os.Stderr, verbosity)
}

// NewCLIEmitterWithWriter creates a CLI emitter with an explicit sink
func NewCLIEmitterWithWriter(w io.Writer, verbosity int) *CLIEmitter {
	return &CLIEmitter{verbosity: verbosity, w: w}
}

// EmitStep prints rebuilt and produced artifacts; up-to-date ones only when verbose
func (e *CLIEmitter) EmitStep(id artifact.ID, state artifact.State, path string, elapsed time.Duration) {
	switch state {
	case artifact.Rebuilding:
		pterm.Fprintln(e.w, pterm.LightCyan("▸ ")+pterm.Sprintf("%s %s", stepVerb(id.Kind), id))
	case artifact.Produced:
		pterm.Fprintln(e.w, pterm.Green("✓ ")+pterm.Sprintf("%s %s", id, pterm.Gray("("+elapsed.Round(time.Millisecond).String()+")")))
	case artifact.UpToDate:
		if e.verbosity >= 1 {
			pterm.Fprintln(e.w, pterm.Gray("· "+id.String()+" up to date"))
		}
	case artifact.Failed:
		pterm.Fprintln(e.w, pterm.Red("✗ ")+id.String())
	}
}

// EmitError prints an error
func (e *CLIEmitter) EmitError(step string, err error) {
	pterm.Error.WithWriter(e.w).Printfln("%s: %v", step, err)
}

// EmitInfo prints informational message
func (e *CLIEmitter) EmitInfo(message string) {
	if e.verbosity >= 1 {
		pterm.Info.WithWriter(e.w).Println(message)
	}
}

// EmitComplete prints completion summary
func (e *CLIEmitter) EmitComplete(summary map[string]interface{}) {
	if path, ok := summary["path"].(string); ok && path != "" {
		pterm.Success.WithWriter(e.w).Println(path)
	} else {
		pterm.Success.WithWriter(e.w).Println("done")
	}
	if e.verbosity >= 2 {
		for key, value := range summary {
			pterm.Fprintln(e.w, pterm.Sprintf("  %s: %v", key, value))
		}
	}
}

func stepVerb(k artifact.Kind) string {
	switch k {
	case artifact.CompiledObject:
		return "compiling"
	case artifact.Listing:
		return "disassembling"
	default:
		return "converting"
	}
}

// JSONEmitter outputs one JSON event per line
type JSONEmitter struct {
	encoder *json.Encoder
}

// NewJSONEmitter creates a JSON progress emitter writing to w
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{encoder: json.NewEncoder(w)}
}

func (e *JSONEmitter) emit(eventType string, data map[string]interface{}) {
	e.encoder.Encode(ProgressEvent{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// EmitStep emits a step event as JSON
func (e *JSONEmitter) EmitStep(id artifact.ID, state artifact.State, path string, elapsed time.Duration) {
	data := map[string]interface{}{
		"artifact": id.String(),
		"kind":     id.Kind.String(),
		"profile":  id.Profile.String(),
		"state":    string(state),
		"path":     path,
	}
	if state == artifact.Produced {
		data["duration_ms"] = elapsed.Milliseconds()
	}
	e.emit("step", data)
}

// EmitError emits an error event as JSON
func (e *JSONEmitter) EmitError(step string, err error) {
	e.emit("error", map[string]interface{}{
		"step":  step,
		"error": err.Error(),
	})
}

// EmitInfo emits an info event as JSON
func (e *JSONEmitter) EmitInfo(message string) {
	e.emit("info", map[string]interface{}{"message": message})
}

// EmitComplete emits a completion event as JSON
func (e *JSONEmitter) EmitComplete(summary map[string]interface{}) {
	e.emit("complete", summary)
}
