// Package runner invokes the external toolchain programs.
//
// Every step of a build is an external process. The runner blocks until the
// process exits, passes its output through unmodified and classifies the
// outcome: a program that cannot be found is ErrBinaryNotFound, a non-zero exit
// is ErrToolFailed.
package runner

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/teranos/flashbuild/errors"
	"github.com/teranos/flashbuild/logger"
)

// Invocation describes one external process
type Invocation struct {
	// Argv is the program and any leading words from a tool override
	Argv []string
	// Args are appended after Argv
	Args []string
	// Env entries (KEY=VALUE) are added on top of the current environment
	Env []string
	// Dir is the working directory, empty for the current one
	Dir string

	// Stdout and Stderr default to the runner's streams when nil
	Stdout io.Writer
	Stderr io.Writer
}

// Command returns the full argument vector
func (inv Invocation) Command() []string {
	cmd := make([]string, 0, len(inv.Argv)+len(inv.Args))
	cmd = append(cmd, inv.Argv...)
	return append(cmd, inv.Args...)
}

// Name is the program's base name, used in logs and errors
func (inv Invocation) Name() string {
	if len(inv.Argv) == 0 {
		return ""
	}
	return filepath.Base(inv.Argv[0])
}

// String renders the invocation as a shell line, environment first
func (inv Invocation) String() string {
	words := append(append([]string{}, inv.Env...), inv.Command()...)
	return shellquote.Join(words...)
}

// Runner runs one invocation to completion
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExecRunner runs invocations as child processes
type ExecRunner struct {
	logger *zap.SugaredLogger

	// EchoCommands logs each command line before it runs (verbose mode)
	EchoCommands bool

	stdout io.Writer
	stderr io.Writer
}

// Option configures an ExecRunner
type Option func(*ExecRunner)

// WithEcho enables command echo
func WithEcho(echo bool) Option {
	return func(r *ExecRunner) { r.EchoCommands = echo }
}

// WithOutput replaces the default passthrough streams
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *ExecRunner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithLoggedOutput routes tool output through the logger line by line.
// Used with JSON logging so CI receives one structured stream.
func WithLoggedOutput() Option {
	return func(r *ExecRunner) {
		r.stdout = NewLineWriter(r.logger, "info")
		r.stderr = NewLineWriter(r.logger, "warn")
	}
}

// NewExecRunner creates a runner passing output through to the terminal
func NewExecRunner(log *zap.SugaredLogger, opts ...Option) *ExecRunner {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &ExecRunner{
		logger: log,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the invocation and waits for it to exit
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	argv := inv.Command()
	if len(argv) == 0 {
		return errors.New("empty invocation")
	}

	binary, err := exec.LookPath(argv[0])
	if err != nil {
		return errors.WithHintf(
			errors.Mark(errors.Wrapf(err, "%s not found", argv[0]), errors.ErrBinaryNotFound),
			"install %s or point the matching toolchain override at it", inv.Name())
	}

	if r.EchoCommands {
		r.logger.Infow(inv.String(), logger.FieldTool, inv.Name())
	}

	cmd := exec.CommandContext(ctx, binary, argv[1:]...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.Stdout = pick(inv.Stdout, r.stdout)
	cmd.Stderr = pick(inv.Stderr, r.stderr)

	start := time.Now()
	err = cmd.Run()
	if flusher, ok := cmd.Stdout.(interface{ Flush() }); ok {
		flusher.Flush()
	}
	if flusher, ok := cmd.Stderr.(interface{ Flush() }); ok {
		flusher.Flush()
	}

	r.logger.Debugw("Tool exited",
		logger.FieldTool, inv.Name(),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)

	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return errors.Wrapf(ctx.Err(), "%s interrupted", inv.Name())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errors.Mark(
			errors.Newf("%s exited with status %d", inv.Name(), exitErr.ExitCode()),
			errors.ErrToolFailed)
	}
	return errors.Wrapf(err, "failed to run %s", inv.Name())
}

func pick(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}

// Output runs inv and returns its trimmed stdout
func Output(ctx context.Context, r Runner, inv Invocation) (string, error) {
	var buf bytes.Buffer
	inv.Stdout = &buf
	err := r.Run(ctx, inv)
	return strings.TrimSpace(buf.String()), err
}
