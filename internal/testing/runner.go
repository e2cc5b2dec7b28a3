// Package testing provides fakes shared by flashbuild package tests.
package testing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/teranos/flashbuild/errors"
	"github.com/teranos/flashbuild/runner"
)

// Behavior scripts what a faked tool does when invoked
type Behavior func(inv runner.Invocation) error

// FakeRunner records every invocation and runs scripted behaviour instead of
// a process. Unscripted commands succeed silently.
//
// Scripts are keyed by command prefix: the program's base name followed by
// its arguments, e.g. "rustup component add". The longest matching prefix wins.
type FakeRunner struct {
	mu      sync.Mutex
	calls   []runner.Invocation
	scripts map[string]Behavior
	missing map[string]bool
}

// NewFakeRunner creates a runner with no scripted behaviour
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		scripts: make(map[string]Behavior),
		missing: make(map[string]bool),
	}
}

// On scripts commands starting with prefix
func (f *FakeRunner) On(prefix string, b Behavior) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[prefix] = b
	return f
}

// Missing makes tool behave as if it were not installed
func (f *FakeRunner) Missing(tool string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missing[tool] = true
	return f
}

// Run records inv and executes its script
func (f *FakeRunner) Run(ctx context.Context, inv runner.Invocation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	f.calls = append(f.calls, inv)
	missing := f.missing[inv.Name()]
	script := f.match(CommandLine(inv))
	f.mu.Unlock()

	if missing {
		return errors.Mark(errors.Newf("%s not found", inv.Name()), errors.ErrBinaryNotFound)
	}
	if script == nil {
		return nil
	}
	return script(inv)
}

func (f *FakeRunner) match(line string) Behavior {
	var best string
	var found Behavior
	for prefix, b := range f.scripts {
		if hasWordPrefix(line, prefix) && len(prefix) >= len(best) {
			best, found = prefix, b
		}
	}
	return found
}

// Calls returns every recorded invocation in order
func (f *FakeRunner) Calls() []runner.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Invocation(nil), f.calls...)
}

// CallsTo returns the invocations whose command line starts with prefix
func (f *FakeRunner) CallsTo(prefix string) []runner.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []runner.Invocation
	for _, inv := range f.calls {
		if hasWordPrefix(CommandLine(inv), prefix) {
			matched = append(matched, inv)
		}
	}
	return matched
}

// Count returns how many invocations start with prefix
func (f *FakeRunner) Count(prefix string) int {
	return len(f.CallsTo(prefix))
}

// Reset forgets recorded invocations, keeping scripts
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// CommandLine renders inv as "<base name> <args...>" for prefix matching
func CommandLine(inv runner.Invocation) string {
	cmd := inv.Command()
	if len(cmd) == 0 {
		return ""
	}
	return strings.Join(append([]string{inv.Name()}, cmd[1:]...), " ")
}

func hasWordPrefix(line, prefix string) bool {
	if !strings.HasPrefix(line, prefix) {
		return false
	}
	return len(line) == len(prefix) || line[len(prefix)] == ' '
}

// Fail exits with status like a failing tool, writing diag to stderr
func Fail(status int, diag string) Behavior {
	return func(inv runner.Invocation) error {
		if diag != "" && inv.Stderr != nil {
			fmt.Fprintln(inv.Stderr, diag)
		}
		return errors.Mark(errors.Newf("%s exited with status %d", inv.Name(), status), errors.ErrToolFailed)
	}
}

// Stdout writes text to the invocation's stdout
func Stdout(text string) Behavior {
	return func(inv runner.Invocation) error {
		if inv.Stdout != nil {
			_, err := io.WriteString(inv.Stdout, text)
			return err
		}
		return nil
	}
}

// Touch creates or refreshes the file at path
func Touch(path string) Behavior {
	return func(inv runner.Invocation) error {
		return TouchFile(path, time.Now())
	}
}

// WriteLastArg writes content to the path given as the final argument,
// the way objcopy writes its output file
func WriteLastArg(content string) Behavior {
	return func(inv runner.Invocation) error {
		cmd := inv.Command()
		path := cmd[len(cmd)-1]
		if !filepath.IsAbs(path) && inv.Dir != "" {
			path = filepath.Join(inv.Dir, path)
		}
		return os.WriteFile(path, []byte(content), 0644)
	}
}

// Chain runs behaviours in order, stopping at the first error
func Chain(bs ...Behavior) Behavior {
	return func(inv runner.Invocation) error {
		for _, b := range bs {
			if err := b(inv); err != nil {
				return err
			}
		}
		return nil
	}
}

// TouchFile creates path (and its parents) and sets its modification time
func TouchFile(path string, mtime time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString("\x7fELF"); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chtimes(path, mtime, mtime)
}
