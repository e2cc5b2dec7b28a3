package toolchain

import (
	"bufio"
	"context"
	"strings"

	"github.com/teranos/flashbuild/am"
	"github.com/teranos/flashbuild/runner"
)

// Manager is the toolchain management tool
type Manager interface {
	// Version returns the raw output of "<tool> --version"
	Version(ctx context.Context) (string, error)
	// Update upgrades the management tool and installed toolchains
	Update(ctx context.Context) error

	// Components lists installed components
	Components(ctx context.Context) ([]string, error)
	AddComponent(ctx context.Context, name string) error

	// Targets lists installed compilation targets
	Targets(ctx context.Context) ([]string, error)
	AddTarget(ctx context.Context, triple string) error
}

// Rustup drives rustup through a runner
type Rustup struct {
	argv   []string
	dir    string
	runner runner.Runner
}

// NewRustup resolves the rustup command from the configuration
func NewRustup(cfg *am.Config, r runner.Runner) (*Rustup, error) {
	argv, err := cfg.ToolCommand(am.ToolRustup)
	if err != nil {
		return nil, err
	}
	return &Rustup{argv: argv, dir: cfg.SourceDir(), runner: r}, nil
}

func (m *Rustup) invocation(args ...string) runner.Invocation {
	return runner.Invocation{Argv: m.argv, Args: args, Dir: m.dir}
}

func (m *Rustup) Version(ctx context.Context) (string, error) {
	return runner.Output(ctx, m.runner, m.invocation("--version"))
}

func (m *Rustup) Update(ctx context.Context) error {
	return m.runner.Run(ctx, m.invocation("update"))
}

func (m *Rustup) Components(ctx context.Context) ([]string, error) {
	out, err := runner.Output(ctx, m.runner, m.invocation("component", "list"))
	if err != nil {
		return nil, err
	}
	return installed(out), nil
}

func (m *Rustup) AddComponent(ctx context.Context, name string) error {
	return m.runner.Run(ctx, m.invocation("component", "add", name))
}

func (m *Rustup) Targets(ctx context.Context) ([]string, error) {
	out, err := runner.Output(ctx, m.runner, m.invocation("target", "list"))
	if err != nil {
		return nil, err
	}
	return installed(out), nil
}

func (m *Rustup) AddTarget(ctx context.Context, triple string) error {
	return m.runner.Run(ctx, m.invocation("target", "add", triple))
}

// installed picks "<name> (installed)" lines out of a rustup listing.
// rustup marks the host toolchain "(installed)" too, sometimes with "(default)".
func installed(listing string) []string {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(listing))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		name, rest, found := strings.Cut(line, " ")
		if !found || !strings.Contains(rest, "(installed)") {
			continue
		}
		names = append(names, name)
	}
	return names
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
