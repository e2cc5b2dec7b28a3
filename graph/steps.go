package graph

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/teranos/flashbuild/am"
	"github.com/teranos/flashbuild/artifact"
	"github.com/teranos/flashbuild/errors"
	"github.com/teranos/flashbuild/logger"
	"github.com/teranos/flashbuild/runner"
)

// RustFlags returns the fixed link configuration handed to the compiler
func (b *Builder) RustFlags() []string {
	flags := []string{
		"-C", "link-arg=-T" + b.linker.Script,
		"-C", "linker=" + b.linker.Linker,
		"-C", "linker-flavor=" + b.linker.Flavor,
		"-C", "relocation-model=" + b.linker.RelocationModel,
	}
	if b.linker.MaxPageSize > 0 {
		flags = append(flags, "-C", "link-arg=-zmax-page-size="+strconv.Itoa(b.linker.MaxPageSize))
	}
	flags = append(flags, b.linker.ExtraArgs...)
	return append(flags, b.board.RustFlags...)
}

// objcopyFormats maps image kinds to objcopy output targets
var objcopyFormats = map[artifact.Kind]string{
	artifact.BIN: "binary",
	artifact.HEX: "ihex",
}

// compileEnv is the environment of every cargo invocation
func (b *Builder) compileEnv() []string {
	return []string{
		"RUSTFLAGS=" + strings.Join(b.RustFlags(), " "),
		"CARGO_TARGET_DIR=" + b.layout.Root,
		b.stampVar + "=" + b.stamp,
	}
}

func (b *Builder) cargoInvocation(subcommand string, profile artifact.Profile) runner.Invocation {
	args := []string{subcommand, "--target=" + b.spec.Triple}
	if profile == artifact.Release {
		args = append(args, "--release")
	}
	return runner.Invocation{
		Argv: b.cargo,
		Args: args,
		Env:  b.compileEnv(),
		Dir:  b.dir,
	}
}

// compile runs the compile-and-link step. Cargo writes the object under
// CARGO_TARGET_DIR, named after the platform.
func (b *Builder) compile(ctx context.Context, id artifact.ID) error {
	b.logger.Infow("Compiling",
		logger.FieldPlatform, b.spec.Platform,
		logger.FieldTarget, b.spec.Triple,
		logger.FieldProfile, id.Profile.String(),
		logger.FieldStamp, b.stamp,
	)
	if err := b.runner.Run(ctx, b.cargoInvocation("build", id.Profile)); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return errors.Mark(errors.Wrap(err, "compile"), errors.ErrCompileFailed)
	}
	return nil
}

// convert produces path from src. Output goes to a temporary sibling that is
// renamed into place only when the step succeeds.
func (b *Builder) convert(ctx context.Context, id artifact.ID, src, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), am.DefaultDirPermissions); err != nil {
		return errors.Mark(errors.Wrap(err, "failed to create output directory"), errors.ErrConversionFailed)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to create temporary output"), errors.ErrConversionFailed)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	switch id.Kind {
	case artifact.ELF:
		err = copyFile(src, tmp)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
	case artifact.BIN, artifact.HEX:
		tmp.Close()
		err = b.runner.Run(ctx, runner.Invocation{
			Argv: b.objcopy,
			Args: []string{"--output-target=" + objcopyFormats[id.Kind], src, tmpPath},
			Dir:  b.dir,
		})
	case artifact.Listing:
		err = b.runner.Run(ctx, runner.Invocation{
			Argv:   b.objdump,
			Args:   append(append([]string{}, b.objdumpArgs...), src),
			Dir:    b.dir,
			Stdout: tmp,
		})
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
	default:
		tmp.Close()
		err = errors.Newf("no conversion produces %s", id.Kind)
	}

	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return errors.Mark(errors.Wrapf(err, "%s conversion", id.Kind), errors.ErrConversionFailed)
	}

	if err := os.Chmod(tmpPath, outputMode(id.Kind, src)); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to set %s permissions", id.Kind), errors.ErrConversionFailed)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to move %s into place", id.Kind), errors.ErrConversionFailed)
	}
	committed = true
	return nil
}

// outputMode is the mode an artifact is published with. The ELF keeps the
// compiled object's mode; images and listings are plain readable files.
func outputMode(kind artifact.Kind, src string) os.FileMode {
	if kind == artifact.ELF {
		if info, err := os.Stat(src); err == nil {
			return info.Mode().Perm()
		}
	}
	return am.DefaultFilePermissions
}

// copyFile writes src into dst. The copy gets a fresh modification time.
func copyFile(src string, dst *os.File) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if _, err := io.Copy(dst, in); err != nil {
		return err
	}
	return dst.Sync()
}

// Check runs the compiler in verification mode without producing an object
func (b *Builder) Check(ctx context.Context, profile artifact.Profile) error {
	if err := b.runner.Run(ctx, b.cargoInvocation("check", profile)); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &errors.StepError{
			Artifact: b.ID(artifact.CompiledObject, profile).String(),
			Err:      errors.Mark(errors.Wrap(err, "type check"), errors.ErrCompileFailed),
		}
	}
	return nil
}

// Doc generates crate documentation. It is not part of the artifact graph.
func (b *Builder) Doc(ctx context.Context) error {
	inv := b.cargoInvocation("doc", artifact.Release)
	if err := b.runner.Run(ctx, inv); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &errors.StepError{
			Artifact: "documentation",
			Err:      errors.Mark(errors.Wrap(err, "cargo doc"), errors.ErrToolFailed),
		}
	}
	return nil
}
