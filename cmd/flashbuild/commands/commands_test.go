package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/flashbuild/am"
	"github.com/teranos/flashbuild/errors"
	fbtest "github.com/teranos/flashbuild/internal/testing"
	"github.com/teranos/flashbuild/runner"
)

const triple = "thumbv7em-none-eabi"

var envNames = []string{
	"PLATFORM", "TARGET", "TOOLCHAIN", "CARGO", "RUSTUP", "OBJCOPY", "OBJDUMP", "SIZE", "V",
	"FLASHBUILD_BOARD_PLATFORM", "FLASHBUILD_BOARD_TARGET", "FLASHBUILD_TOOLCHAIN_PREFIX",
	"FLASHBUILD_LOG_JSON", "FLASHBUILD_LOG_VERBOSITY", "FLASHBUILD_MANAGER_SKIP",
}

type fixture struct {
	dir       string
	platform  string
	runner    *fbtest.FakeRunner
	verbosity int
}

// newFixture creates a project directory whose flashbuild.toml binds platform
func newFixture(t *testing.T, platform string) *fixture {
	t.Helper()
	for _, name := range envNames {
		// Setenv restores the original value after the test
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	f := &fixture{dir: t.TempDir(), platform: platform}
	if platform != "" {
		require.NoError(t, os.WriteFile(filepath.Join(f.dir, am.ProjectConfigFile), []byte(
			"[board]\nplatform = \""+platform+"\"\ntarget = \""+triple+"\"\n\n[manager]\nupdate_pause_seconds = 0\n",
		), 0644))
	}
	f.runner = f.toolchain(platform)
	return f
}

// toolchain fakes a provisioned rustup and a cargo that links platform's object
func (f *fixture) toolchain(platform string) *fbtest.FakeRunner {
	return fbtest.NewFakeRunner().
		On("rustup --version", fbtest.Stdout("rustup 1.27.1 (54dd3d00f 2024-04-24)")).
		On("rustup component list", fbtest.Stdout("rust-src (installed)\n")).
		On("rustup target list", fbtest.Stdout(triple+" (installed)\n")).
		On("cargo build", func(inv runner.Invocation) error {
			var root string
			for _, kv := range inv.Env {
				if v, ok := strings.CutPrefix(kv, "CARGO_TARGET_DIR="); ok {
					root = v
				}
			}
			obj := filepath.Join(root, triple, "release", platform)
			return fbtest.TouchFile(obj, time.Now().Add(-time.Minute))
		}).
		On("arm-none-eabi-objcopy", fbtest.WriteLastArg("image"))
}

func (f *fixture) app() *App {
	return &App{
		NewRunner: func(_ *zap.SugaredLogger, verbosity int, _ bool) runner.Runner {
			f.verbosity = verbosity
			return f.runner
		},
		Stamp:     func(dir, fallback string) string { return "v1.0" },
		Loader:    am.Loader{WorkDir: f.dir, HomeDir: f.dir},
		LogWriter: io.Discard,
	}
}

func (f *fixture) execute(args ...string) (string, string, error) {
	root := f.app().RootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (f *fixture) artifact(platform, suffix string) string {
	return filepath.Join(f.dir, "target", triple, "release", platform+suffix)
}

func TestBuild(t *testing.T) {
	f := newFixture(t, "hail")

	stdout, _, err := f.execute("build")
	require.NoError(t, err)
	assert.Equal(t, f.artifact("hail", ".bin"), strings.TrimSpace(stdout))
	assert.FileExists(t, f.artifact("hail", ".bin"))
	assert.Equal(t, 1, f.runner.Count("arm-none-eabi-objcopy"))

	// Second invocation only recompiles
	f.runner.Reset()
	_, _, err = f.execute("build")
	require.NoError(t, err)
	assert.Equal(t, 1, f.runner.Count("cargo build"))
	assert.Zero(t, f.runner.Count("arm-none-eabi-objcopy"))
}

func TestBuild_VerbosityReachesRunner(t *testing.T) {
	f := newFixture(t, "hail")
	_, _, err := f.execute("build", "-vv")
	require.NoError(t, err)
	assert.Equal(t, 2, f.verbosity)
}

func TestBuild_MissingPlatform(t *testing.T) {
	f := newFixture(t, "")

	_, _, err := f.execute("build", "--target", triple)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
	assert.Equal(t, 2, errors.ExitCode(err))
	assert.Empty(t, f.runner.Calls())
}

func TestBuild_FlagAndEnvPrecedence(t *testing.T) {
	f := newFixture(t, "hail")

	t.Setenv("PLATFORM", "imix")
	f.runner = f.toolchain("imix")
	stdout, _, err := f.execute("build")
	require.NoError(t, err)
	assert.Equal(t, f.artifact("imix", ".bin"), strings.TrimSpace(stdout), "environment beats project file")

	f.runner = f.toolchain("nrf52")
	stdout, _, err = f.execute("build", "--platform", "nrf52")
	require.NoError(t, err)
	assert.Equal(t, f.artifact("nrf52", ".bin"), strings.TrimSpace(stdout), "flag beats environment")
}

func TestBuild_ToolMissing(t *testing.T) {
	f := newFixture(t, "hail")
	f.runner.Missing("rustup")

	_, _, err := f.execute("hex")
	require.Error(t, err)
	assert.Equal(t, 3, errors.ExitCode(err))
	assert.Zero(t, f.runner.Count("cargo"))
}

func TestBuild_JSONEvents(t *testing.T) {
	f := newFixture(t, "hail")

	stdout, _, err := f.execute("build", "--json")
	require.NoError(t, err)

	var types []string
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		var event map[string]interface{}
		if json.Unmarshal([]byte(line), &event) == nil {
			if typ, ok := event["type"].(string); ok {
				types = append(types, typ)
			}
		}
	}
	assert.Contains(t, types, "step")
	assert.Contains(t, types, "complete")
}

func TestClean(t *testing.T) {
	f := newFixture(t, "hail")
	_, _, err := f.execute("build")
	require.NoError(t, err)

	f.runner.Reset()
	_, _, err = f.execute("clean")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(f.dir, "target"))
	assert.Empty(t, f.runner.Calls())
}

func TestStatus(t *testing.T) {
	f := newFixture(t, "hail")

	stdout, _, err := f.execute("status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "release/hail.bin")
	assert.Contains(t, stdout, "missing")

	_, _, err = f.execute("build")
	require.NoError(t, err)
	f.runner.Reset()

	stdout, _, err = f.execute("status", "build")
	require.NoError(t, err)
	assert.Contains(t, stdout, "up-to-date")
	assert.Empty(t, f.runner.Calls(), "status runs no tool")

	_, _, err = f.execute("status", "clean")
	assert.True(t, errors.Is(err, errors.ErrConfig))
	_, _, err = f.execute("status", "flash")
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestDoctor(t *testing.T) {
	f := newFixture(t, "hail")
	f.runner.On("rustup component list", fbtest.Stdout(""))

	stdout, _, err := f.execute("doctor", "--json")
	require.NoError(t, err)

	var out struct {
		Healthy     bool `json:"healthy"`
		Environment struct {
			Checks []struct {
				Name    string `json:"name"`
				Outcome string `json:"outcome"`
			} `json:"checks"`
		} `json:"environment"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.False(t, out.Healthy)
	assert.Equal(t, 1, f.runner.Count("rustup component add"))
	assert.Zero(t, f.runner.Count("cargo"))
}

func TestBoards(t *testing.T) {
	f := newFixture(t, "hail")
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "boards.toml"), []byte(`
[boards.hail]
description = "Hail development module"
targets = ["thumbv7em-none-eabi"]

[boards.imix]
linker_script = "imix_layout.ld"
`), 0644))

	stdout, _, err := f.execute("boards")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Hail development module")
	assert.Contains(t, stdout, "imix_layout.ld")
}

func TestAmShow(t *testing.T) {
	f := newFixture(t, "hail")

	stdout, _, err := f.execute("am", "show", "--format", "json")
	require.NoError(t, err)
	var cfg am.Config
	require.NoError(t, json.Unmarshal([]byte(stdout), &cfg))
	assert.Equal(t, "hail", cfg.Board.Platform)
	assert.Equal(t, am.DefaultToolchainPrefix, cfg.Toolchain.Prefix)

	stdout, _, err = f.execute("am", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[board]")

	_, _, err = f.execute("am", "show", "--format", "xml")
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestAmWhere(t *testing.T) {
	f := newFixture(t, "hail")

	stdout, _, err := f.execute("am", "where", "--json", "--target", "thumbv6m-none-eabi")
	require.NoError(t, err)

	var settings []am.SettingInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &settings))
	bySource := map[string]am.ConfigSource{}
	for _, s := range settings {
		bySource[s.Key] = s.Source
	}
	assert.Equal(t, am.SourceProject, bySource["board.platform"])
	assert.Equal(t, am.SourceFlag, bySource["board.target"])
	assert.Equal(t, am.SourceDefault, bySource["toolchain.prefix"])
}

func TestAmInit(t *testing.T) {
	f := newFixture(t, "")

	_, _, err := f.execute("am", "init", "--platform", "imix", "--target", triple)
	require.NoError(t, err)

	cfg, err := am.LoadFromFile(filepath.Join(f.dir, am.ProjectConfigFile))
	require.NoError(t, err)
	assert.Equal(t, "imix", cfg.Board.Platform)
	assert.Equal(t, triple, cfg.Board.Target)

	_, _, err = f.execute("am", "init", "--platform", "hail", "--target", triple)
	require.Error(t, err, "existing file is kept without --force")

	_, _, err = f.execute("am", "init", "--platform", "hail", "--target", triple, "--force")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.dir, am.ProjectConfigFile+".back1"))
}

func TestAmValidate(t *testing.T) {
	f := newFixture(t, "hail")
	_, _, err := f.execute("am", "validate")
	require.NoError(t, err)

	f = newFixture(t, "")
	_, _, err = f.execute("am", "validate")
	assert.Equal(t, 2, errors.ExitCode(err))
}

func TestVersion(t *testing.T) {
	f := newFixture(t, "")
	stdout, _, err := f.execute("version", "--json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.NotEmpty(t, info["go_version"])
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, errors.WithHint(errors.NewConfigError("platform is not set"), "pass --platform"))
	assert.Contains(t, buf.String(), "platform is not set")
	assert.Contains(t, buf.String(), "hint: pass --platform")
}

func TestWatch_CoversBoardDirectory(t *testing.T) {
	f := newFixture(t, "hail")
	crate := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "boards.toml"), []byte(
		"[boards.hail]\ndir = '"+crate+"'\ntargets = [\""+triple+"\"]\n",
	), 0644))

	app := f.app()
	cmd, _, err := app.RootCmd().Find([]string{"build"})
	require.NoError(t, err)
	require.NoError(t, app.setup(cmd, nil))

	w, err := app.newWatcher(context.Background(), cmd)
	require.NoError(t, err)
	defer w.Close()

	roots := w.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, crate, roots[1], "board crate outside the source directory is watched")
}
