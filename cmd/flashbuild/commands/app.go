// Package commands implements the flashbuild command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teranos/flashbuild/am"
	"github.com/teranos/flashbuild/errors"
	"github.com/teranos/flashbuild/goal"
	"github.com/teranos/flashbuild/graph"
	"github.com/teranos/flashbuild/logger"
	"github.com/teranos/flashbuild/runner"
)

// App carries what one invocation resolved before its command runs.
// Configuration is loaded once in the root's PersistentPreRunE.
type App struct {
	// NewRunner builds the process runner; tests substitute a fake
	NewRunner func(log *zap.SugaredLogger, verbosity int, jsonMode bool) runner.Runner
	// Stamp overrides the repository lookup for the version stamp
	Stamp func(dir, fallback string) string
	// Loader locates configuration files
	Loader am.Loader
	// LogWriter receives log output (default: stderr)
	LogWriter io.Writer

	cfg       *am.Config
	viper     *viper.Viper
	sources   am.Sources
	verbosity int
	jsonMode  bool
	runID     string
	log       *zap.SugaredLogger
}

// NewApp returns an App that runs real processes
func NewApp() *App {
	return &App{NewRunner: newExecRunner, LogWriter: os.Stderr}
}

func newExecRunner(log *zap.SugaredLogger, verbosity int, jsonMode bool) runner.Runner {
	opts := []runner.Option{runner.WithEcho(logger.ShouldEchoCommands(verbosity))}
	if jsonMode {
		opts = append(opts, runner.WithLoggedOutput())
	}
	return runner.NewExecRunner(log.Named("runner"), opts...)
}

// flagKeys binds persistent flags to configuration keys
var flagKeys = map[string]string{
	"platform":        "board.platform",
	"target":          "board.target",
	"prefix":          "toolchain.prefix",
	"source-dir":      "board.source_dir",
	"verbose":         "log.verbosity",
	"json":            "log.json",
	"skip-validation": "manager.skip",
}

// RootCmd builds the command tree
func (a *App) RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flashbuild",
		Short: "Build embedded Rust firmware images",
		Long: `flashbuild - firmware build orchestrator

Validates the Rust toolchain, then produces the requested firmware artifact
for one platform and target triple, rebuilding only what is out of date.

Artifacts (release/ or debug/ below <output root>/<target>):
  <platform>.elf   linked executable
  <platform>.bin   raw flash image
  <platform>.hex   Intel HEX image
  <platform>.lst   disassembly listing

Configuration sources (later overrides earlier):
  defaults, ~/.config/flashbuild/flashbuild.toml, ./flashbuild.toml
  (searched upwards), FLASHBUILD_* and legacy variables
  (PLATFORM, TARGET, TOOLCHAIN, CARGO, RUSTUP, OBJCOPY, OBJDUMP, SIZE, V),
  command-line flags.

Examples:
  flashbuild build --platform imix --target thumbv7em-none-eabi
  flashbuild debug-listing -v
  flashbuild status hex
  flashbuild build --watch`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.String("platform", "", "Firmware platform (board) to build")
	flags.String("target", "", "Target architecture triple, e.g. thumbv7em-none-eabi")
	flags.String("prefix", "", "Cross toolchain prefix (default arm-none-eabi)")
	flags.String("source-dir", "", "Crate directory the compile step runs in")
	flags.String("config", "", "Config file (default: flashbuild.toml searched upwards)")
	flags.CountP("verbose", "v", "Increase output verbosity (-v echoes every tool command, -vv debug)")
	flags.Bool("json", false, "Machine-readable output and JSON logs")
	flags.Bool("skip-validation", false, "Skip toolchain environment validation")

	for _, g := range goal.All() {
		root.AddCommand(a.goalCmd(g))
	}
	root.AddCommand(a.statusCmd())
	root.AddCommand(a.doctorCmd())
	root.AddCommand(a.boardsCmd())
	root.AddCommand(a.amCmd())
	root.AddCommand(a.versionCmd())
	return root
}

// setup loads configuration, applies flags and initializes logging
func (a *App) setup(cmd *cobra.Command, args []string) error {
	loader := a.Loader
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loader.ConfigFile = path
	}

	v, sources, err := loader.NewViper()
	if err != nil {
		return err
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := v.BindPFlag(key, f); err == nil && f.Changed {
			sources.RecordFlag(key, f.Name)
		}
	})

	cfg, err := am.LoadWithViper(v)
	if err != nil {
		return err
	}

	a.cfg, a.viper, a.sources = cfg, v, sources
	a.verbosity = cfg.Log.Verbosity
	a.jsonMode = cfg.Log.JSON
	a.runID = uuid.New().String()

	if cfg.Log.Theme != "" {
		logger.SetTheme(cfg.Log.Theme)
	}
	w := a.LogWriter
	if w == nil {
		w = os.Stderr
	}
	if err := logger.InitializeWithWriter(w, a.verbosity, a.jsonMode); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	if a.jsonMode {
		pterm.DisableStyling()
	}

	ctx := logger.WithRunID(a.context(cmd), a.runID)
	cmd.SetContext(ctx)
	a.log = logger.Logger.With(logger.FieldsFromContext(ctx)...)
	a.log.Debugw("Configuration loaded", "config", cfg.String(), "verbosity", logger.LevelName(a.verbosity))
	return nil
}

// emitter picks the progress renderer for this invocation
func (a *App) emitter(cmd *cobra.Command) graph.ProgressEmitter {
	if a.jsonMode {
		return graph.NewJSONEmitter(cmd.OutOrStdout())
	}
	return graph.NewCLIEmitterWithWriter(cmd.ErrOrStderr(), a.verbosity)
}

// session builds a fresh goal session; watch mode calls this once per rebuild
func (a *App) session(cmd *cobra.Command) *goal.Session {
	return &goal.Session{
		Config:  a.cfg,
		Runner:  a.NewRunner(a.log, a.verbosity, a.jsonMode),
		Emitter: a.emitter(cmd),
		Logger:  a.log,
		Stamp:   a.Stamp,
	}
}

// context returns the command context, never nil
func (a *App) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// PrintError writes err with its hints the way the operator should see it
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	pterm.Error.WithWriter(w).Println(err.Error())
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "  hint: %s\n", hint)
	}
}
