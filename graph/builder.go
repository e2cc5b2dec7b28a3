// Package graph resolves and produces build artifacts.
//
// A Builder is bound to one TargetSpec. Produce walks the fixed production
// edges from the requested artifact back to the compiled object, runs the
// steps whose outputs are missing or older than their inputs, and returns the
// path of the requested artifact.
//
// Concurrent builders over the same output root and identity are unsafe: the
// output tree is not locked.
package graph

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/flashbuild/am"
	"github.com/teranos/flashbuild/artifact"
	"github.com/teranos/flashbuild/boards"
	"github.com/teranos/flashbuild/errors"
	"github.com/teranos/flashbuild/logger"
	"github.com/teranos/flashbuild/runner"
)

// Options carries the collaborators of a Builder
type Options struct {
	Runner  runner.Runner
	Board   *boards.Board // nil uses the configured defaults
	Stamp   string        // exported to the compile step
	Emitter ProgressEmitter
	Logger  *zap.SugaredLogger
}

// Builder produces artifacts for one TargetSpec.
// Resolution results are memoized for the life of the Builder.
type Builder struct {
	spec   artifact.TargetSpec
	layout artifact.Layout
	board  *boards.Board

	dir   string
	stamp string

	stampVar    string
	linker      am.LinkerConfig
	objdumpArgs []string

	cargo   []string
	objcopy []string
	objdump []string
	size    []string

	runner  runner.Runner
	emitter ProgressEmitter
	logger  *zap.SugaredLogger

	states artifact.States
	memo   map[artifact.ID]result

	// rebuilt records what the current top-level Produce call (re)built
	rebuilt map[artifact.ID]bool
}

type result struct {
	path  string
	mtime time.Time
	err   error
}

// New creates a builder. Missing identity or unparseable tool overrides fail
// here with ErrConfig, before any tool runs.
func New(cfg *am.Config, opts Options) (*Builder, error) {
	spec := cfg.TargetSpec()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if opts.Runner == nil {
		return nil, errors.New("graph: runner is required")
	}

	tools := make(map[am.Tool][]string)
	for _, t := range []am.Tool{am.ToolCargo, am.ToolObjcopy, am.ToolObjdump, am.ToolSize} {
		argv, err := cfg.ToolCommand(t)
		if err != nil {
			return nil, err
		}
		tools[t] = argv
	}

	board := opts.Board
	if board == nil {
		board = &boards.Board{Name: spec.Platform}
	}
	dir := cfg.SourceDir()
	if board.Dir != "" {
		dir = board.Dir
	}

	root, err := filepath.Abs(cfg.OutputRoot())
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve output root")
	}

	linker := cfg.Linker
	if board.LinkerScript != "" {
		linker.Script = board.LinkerScript
	}
	if linker.Script == "" {
		linker.Script = am.DefaultLinkerScript
	}

	stampVar := cfg.Stamp.EnvVar
	if stampVar == "" {
		stampVar = am.DefaultStampEnvVar
	}
	stamp := opts.Stamp
	if stamp == "" {
		stamp = am.DefaultStampFallback
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = NopEmitter{}
	}

	return &Builder{
		spec:        spec,
		layout:      artifact.NewLayout(root, spec.Triple),
		board:       board,
		dir:         dir,
		stamp:       stamp,
		stampVar:    stampVar,
		linker:      linker,
		objdumpArgs: cfg.ObjdumpFlags(),
		cargo:       tools[am.ToolCargo],
		objcopy:     tools[am.ToolObjcopy],
		objdump:     tools[am.ToolObjdump],
		size:        tools[am.ToolSize],
		runner:      opts.Runner,
		emitter:     emitter,
		logger:      log,
		states:      artifact.States{},
		memo:        make(map[artifact.ID]result),
	}, nil
}

// Spec returns the identity the builder is bound to
func (b *Builder) Spec() artifact.TargetSpec { return b.spec }

// Layout returns the output layout
func (b *Builder) Layout() artifact.Layout { return b.layout }

// ID returns the artifact identity of kind for profile
func (b *Builder) ID(kind artifact.Kind, profile artifact.Profile) artifact.ID {
	return artifact.ID{Profile: profile, Platform: b.spec.Platform, Kind: kind}
}

// Path returns where kind for profile is written
func (b *Builder) Path(kind artifact.Kind, profile artifact.Profile) string {
	return b.layout.Path(b.ID(kind, profile))
}

// State returns the resolution state of an artifact in this invocation
func (b *Builder) State(id artifact.ID) artifact.State {
	return b.states.Get(id)
}

// Produce makes sure the requested artifact exists and is current, producing
// whatever is missing or stale along the way, and returns its path.
//
// When an ELF or final image was (re)built the size report runs afterwards.
// Its failure is logged and never returned.
func (b *Builder) Produce(ctx context.Context, kind artifact.Kind, profile artifact.Profile) (string, error) {
	if !validKind(kind) {
		return "", errors.Newf("unknown artifact kind %d", int(kind))
	}

	b.rebuilt = make(map[artifact.ID]bool)
	defer func() { b.rebuilt = nil }()

	id := b.ID(kind, profile)
	res := b.resolve(ctx, id)
	if res.err != nil {
		b.emitter.EmitError(id.String(), res.err)
		return "", res.err
	}

	elf := b.ID(artifact.ELF, profile)
	if b.rebuilt[elf] || (kind.IsFinal() && b.rebuilt[id]) {
		b.reportSize(ctx, b.layout.Path(elf))
	}
	return res.path, nil
}

func validKind(k artifact.Kind) bool {
	for _, known := range artifact.Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// resolve returns the memoized result for id, computing it on first use
func (b *Builder) resolve(ctx context.Context, id artifact.ID) result {
	if res, ok := b.memo[id]; ok {
		return res
	}
	res := b.compute(ctx, id)
	b.memo[id] = res
	return res
}

func (b *Builder) compute(ctx context.Context, id artifact.ID) result {
	path := b.layout.Path(id)
	log := b.logger.With(logger.FieldArtifact, id.String())

	if err := b.transition(id, artifact.Resolving); err != nil {
		return result{err: err}
	}

	if err := ctx.Err(); err != nil {
		return b.fail(id, err)
	}

	// CompiledObject has no incoming edge: the compile step decides staleness
	if id.Kind == artifact.CompiledObject {
		return b.rebuild(ctx, id, path, nil, log)
	}

	var sources []result
	for _, kind := range id.Kind.Sources() {
		src := b.resolve(ctx, b.ID(kind, id.Profile))
		if src.err != nil {
			return b.fail(id, src.err)
		}
		sources = append(sources, src)
	}

	if mtime, ok := upToDate(path, sources); ok {
		log.Debugw("Up to date", logger.FieldPath, path)
		if err := b.transition(id, artifact.UpToDate); err != nil {
			return result{err: err}
		}
		b.emitter.EmitStep(id, artifact.UpToDate, path, 0)
		return result{path: path, mtime: mtime}
	}

	return b.rebuild(ctx, id, path, sources, log)
}

func (b *Builder) rebuild(ctx context.Context, id artifact.ID, path string, sources []result, log *zap.SugaredLogger) result {
	if err := b.transition(id, artifact.Rebuilding); err != nil {
		return result{err: err}
	}
	b.emitter.EmitStep(id, artifact.Rebuilding, path, 0)

	start := time.Now()
	var err error
	if id.Kind == artifact.CompiledObject {
		err = b.compile(ctx, id)
	} else {
		err = b.convert(ctx, id, sources[0].path, path)
	}
	if err != nil {
		log.Debugw("Step failed", logger.FieldError, err)
		return b.fail(id, &errors.StepError{Artifact: id.String(), Err: err})
	}

	info, err := os.Stat(path)
	if err != nil {
		cause := errors.ErrConversionFailed
		if id.Kind == artifact.CompiledObject {
			cause = errors.ErrCompileFailed
		}
		return b.fail(id, &errors.StepError{
			Artifact: id.String(),
			Err:      errors.Mark(errors.Newf("step succeeded but %s was not produced", path), cause),
		})
	}

	if err := b.transition(id, artifact.Produced); err != nil {
		return result{err: err}
	}
	elapsed := time.Since(start)
	b.rebuilt[id] = true
	b.emitter.EmitStep(id, artifact.Produced, path, elapsed)
	log.Infow("Produced",
		logger.FieldKind, id.Kind.String(),
		logger.FieldPath, path,
		logger.FieldDurationMS, elapsed.Milliseconds(),
	)
	return result{path: path, mtime: info.ModTime()}
}

func (b *Builder) fail(id artifact.ID, err error) result {
	if terr := b.transition(id, artifact.Failed); terr != nil {
		b.logger.Debugw("State transition rejected", logger.FieldArtifact, id.String(), logger.FieldError, terr)
	}
	b.emitter.EmitStep(id, artifact.Failed, b.layout.Path(id), 0)
	return result{err: err}
}

func (b *Builder) transition(id artifact.ID, to artifact.State) error {
	if err := b.states.Transition(id, to); err != nil {
		return errors.WithStack(err)
	}
	b.logger.Debugw("State", logger.FieldArtifact, id.String(), logger.FieldState, string(to))
	return nil
}

// upToDate reports whether path exists and is not older than any source
func upToDate(path string, sources []result) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	mtime := info.ModTime()
	for _, src := range sources {
		if mtime.Before(src.mtime) {
			return mtime, false
		}
	}
	return mtime, true
}

// reportSize runs the size tool over the ELF. Informational only.
func (b *Builder) reportSize(ctx context.Context, elf string) {
	err := b.runner.Run(ctx, runner.Invocation{
		Argv: b.size,
		Args: []string{elf},
		Dir:  b.dir,
	})
	if err != nil {
		err = errors.Mark(errors.Wrap(err, "size report"), errors.ErrReportingFailed)
		b.logger.Warnw("Size report failed", logger.FieldPath, elf, logger.FieldError, err)
		b.emitter.EmitInfo("size report unavailable: " + err.Error())
	}
}
