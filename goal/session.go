package goal

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/flashbuild/am"
	"github.com/teranos/flashbuild/boards"
	"github.com/teranos/flashbuild/errors"
	"github.com/teranos/flashbuild/graph"
	"github.com/teranos/flashbuild/logger"
	"github.com/teranos/flashbuild/runner"
	"github.com/teranos/flashbuild/stamp"
	"github.com/teranos/flashbuild/toolchain"
)

// Session runs goals for one invocation.
// Config is read once and never modified.
type Session struct {
	Config  *am.Config
	Runner  runner.Runner
	Emitter graph.ProgressEmitter
	Logger  *zap.SugaredLogger

	// Manager defaults to rustup driven through Runner
	Manager toolchain.Manager
	// Catalog defaults to the configured boards.toml, if any
	Catalog *boards.Catalog
	// Stamp defaults to reading the repository around the source directory
	Stamp func(dir, fallback string) string
}

// Result describes a finished goal
type Result struct {
	Goal     string            `json:"goal"`
	Path     string            `json:"path,omitempty"`
	Report   *toolchain.Report `json:"environment,omitempty"`
	Stamp    string            `json:"stamp,omitempty"`
	Duration time.Duration     `json:"duration_ns"`
}

func (s *Session) logger() *zap.SugaredLogger {
	if s.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return s.Logger
}

func (s *Session) emitter() graph.ProgressEmitter {
	if s.Emitter == nil {
		return graph.NopEmitter{}
	}
	return s.Emitter
}

// Run executes g: configuration check, environment validation, then the goal's
// action. Errors from build steps carry the goal name.
func (s *Session) Run(ctx context.Context, g Goal) (*Result, error) {
	start := time.Now()
	ctx = logger.WithGoal(ctx, g.Name)
	log := s.logger().With(logger.FieldsFromContext(ctx)...)

	result, err := s.run(ctx, g, log)
	if err != nil {
		return result, errors.WithGoal(err, g.Name)
	}
	result.Duration = time.Since(start)

	s.emitter().EmitComplete(map[string]interface{}{
		"goal":        g.Name,
		"path":        result.Path,
		"duration_ms": result.Duration.Milliseconds(),
	})
	return result, nil
}

func (s *Session) run(ctx context.Context, g Goal, log *zap.SugaredLogger) (*Result, error) {
	result := &Result{Goal: g.Name}

	if g.Action == ActionClean {
		if err := s.Config.ValidateToolchain(); err != nil {
			return result, err
		}
		return result, graph.Clean(s.Config.OutputRoot(), s.Config.SourceDir(), log)
	}

	if err := s.Config.Validate(); err != nil {
		return result, err
	}
	board, err := s.board(ctx, log)
	if err != nil {
		return result, err
	}

	report, err := s.validateEnvironment(ctx, log)
	result.Report = report
	if err != nil {
		return result, err
	}

	result.Stamp = s.resolveStamp(log)
	b, err := graph.New(s.Config, graph.Options{
		Runner:  s.Runner,
		Board:   board,
		Stamp:   result.Stamp,
		Emitter: s.emitter(),
		Logger:  log.Named("graph"),
	})
	if err != nil {
		return result, err
	}

	switch g.Action {
	case ActionProduce:
		result.Path, err = b.Produce(ctx, g.Kind, g.Profile)
	case ActionCheck:
		err = b.Check(ctx, g.Profile)
	case ActionDoc:
		err = b.Doc(ctx)
	default:
		err = errors.Newf("goal %s has no action", g.Name)
	}
	return result, err
}

// Doctor runs only the environment validation
func (s *Session) Doctor(ctx context.Context) (*toolchain.Report, error) {
	if err := s.Config.Validate(); err != nil {
		return nil, err
	}
	return s.validate(ctx, s.logger())
}

// Builder returns a graph builder for read-only use such as planning.
// No environment validation and no stamp lookup happen.
func (s *Session) Builder(ctx context.Context) (*graph.Builder, error) {
	board, err := s.Board(ctx)
	if err != nil {
		return nil, err
	}
	return graph.New(s.Config, graph.Options{Runner: s.Runner, Board: board, Logger: s.logger().Named("graph")})
}

// Board returns the catalog entry for the configured platform
func (s *Session) Board(ctx context.Context) (*boards.Board, error) {
	if err := s.Config.Validate(); err != nil {
		return nil, err
	}
	return s.board(ctx, s.logger())
}

func (s *Session) board(ctx context.Context, log *zap.SugaredLogger) (*boards.Board, error) {
	catalog := s.Catalog
	if catalog == nil {
		path, explicit := s.Config.CatalogPath()
		if explicit {
			local, err := boards.Locate(ctx, path, s.Config.SourceDir(),
				filepath.Join(s.Config.OutputRoot(), ".catalog"), log.Named("boards"))
			if err != nil {
				return nil, err
			}
			path = local
		}
		var err error
		if catalog, err = boards.LoadOptional(path, explicit); err != nil {
			return nil, err
		}
	}
	return catalog.Resolve(s.Config.TargetSpec())
}

func (s *Session) validateEnvironment(ctx context.Context, log *zap.SugaredLogger) (*toolchain.Report, error) {
	if s.Config.Manager.Skip {
		log.Debugw("Environment validation skipped")
		return nil, nil
	}
	return s.validate(ctx, log)
}

func (s *Session) validate(ctx context.Context, log *zap.SugaredLogger) (*toolchain.Report, error) {
	manager := s.Manager
	if manager == nil {
		rustup, err := toolchain.NewRustup(s.Config, s.Runner)
		if err != nil {
			return nil, err
		}
		manager = rustup
	}

	report, err := toolchain.NewValidator(s.Config, manager, log.Named("toolchain")).Validate(ctx)
	if report != nil {
		for _, w := range report.Warnings() {
			s.emitter().EmitInfo(w.Error())
		}
	}
	return report, err
}

func (s *Session) resolveStamp(log *zap.SugaredLogger) string {
	fallback := s.Config.Stamp.Fallback
	if fallback == "" {
		fallback = am.DefaultStampFallback
	}
	if s.Stamp != nil {
		return s.Stamp(s.Config.GitDir(), fallback)
	}
	v := stamp.Resolve(s.Config.GitDir(), fallback, log)
	log.Debugw("Version stamp", logger.FieldStamp, v)
	return v
}
