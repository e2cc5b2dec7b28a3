// Package toolchain checks the host toolchain before any artifact is produced.
//
// The checks run in a fixed order: the management tool's version, the source
// component, then the compilation target component. Each failed check triggers
// one remedial action and validation moves on without re-verifying. Only a
// missing management tool stops the invocation.
package toolchain

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/flashbuild/am"
	"github.com/teranos/flashbuild/errors"
	"github.com/teranos/flashbuild/logger"
)

// Outcome is the result of one requirement check
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeUpdated       Outcome = "updated"
	OutcomeUpdateFailed  Outcome = "update_failed"
	OutcomeInstalled     Outcome = "installed"
	OutcomeInstallFailed Outcome = "install_failed"
	OutcomeMissing       Outcome = "missing" // management tool absent
)

// Check records one ComponentRequirement and what was done about it
type Check struct {
	Name        string  `json:"name"`
	Requirement string  `json:"requirement"`
	Found       string  `json:"found,omitempty"`
	Outcome     Outcome `json:"outcome"`
	Error       string  `json:"error,omitempty"`
}

// Report summarises a validation run
type Report struct {
	Manager        string  `json:"manager"`
	ManagerVersion string  `json:"manager_version"`
	MinVersion     string  `json:"min_version"`
	Checks         []Check `json:"checks"`

	warnings []error
}

// Warnings returns the non-fatal problems met during validation.
// Each is marked ErrToolOutdated or ErrComponentMissing.
func (r *Report) Warnings() []error {
	return r.warnings
}

// Healthy reports whether every requirement was already met
func (r *Report) Healthy() bool {
	for _, c := range r.Checks {
		if c.Outcome != OutcomeOK {
			return false
		}
	}
	return true
}

func (r *Report) add(c Check, warning error) {
	if warning != nil {
		c.Error = warning.Error()
		r.warnings = append(r.warnings, warning)
	}
	r.Checks = append(r.Checks, c)
}

// Validator runs the environment checks for one TargetSpec
type Validator struct {
	manager Manager
	logger  *zap.SugaredLogger

	managerName string
	minVersion  string
	component   string
	triple      string
	pause       time.Duration
}

// NewValidator creates a validator reading only the given configuration
func NewValidator(cfg *am.Config, manager Manager, log *zap.SugaredLogger) *Validator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	name := string(am.ToolRustup)
	if argv, err := cfg.ToolCommand(am.ToolRustup); err == nil {
		name = argv[0]
	}
	return &Validator{
		manager:     manager,
		logger:      log,
		managerName: name,
		minVersion:  cfg.Manager.MinVersion,
		component:   cfg.Manager.SourceComponent,
		triple:      cfg.Board.Target,
		pause:       cfg.UpdatePause(),
	}
}

// Validate checks the management tool, the source component and the target
// component, installing what is missing. The returned error is non-nil only
// when the management tool is absent, the minimum version is malformed or ctx
// is cancelled during the update window.
func (v *Validator) Validate(ctx context.Context) (*Report, error) {
	report := &Report{Manager: v.managerName, MinVersion: v.minVersion}

	if err := v.checkVersion(ctx, report); err != nil {
		return report, err
	}
	v.checkComponent(ctx, report)
	v.checkTarget(ctx, report)

	v.logger.Debugw("Environment validated",
		logger.FieldVersion, report.ManagerVersion,
		"warnings", len(report.warnings),
	)
	return report, nil
}

func (v *Validator) checkVersion(ctx context.Context, report *Report) error {
	min, err := ParseMinimum(v.minVersion)
	if err != nil {
		return err
	}

	check := Check{Name: v.managerName, Requirement: ">= " + min.String()}

	raw, err := v.manager.Version(ctx)
	if err != nil {
		if errors.IsAny(err, errors.ErrBinaryNotFound, errors.ErrToolMissing) {
			check.Outcome = OutcomeMissing
			check.Error = err.Error()
			report.Checks = append(report.Checks, check)
			return errors.WithHintf(errors.Mark(err, errors.ErrToolMissing),
				"install %s from https://rustup.rs", v.managerName)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// A failing version query is treated like unparseable output
		v.logger.Warnw("Version query failed", logger.FieldTool, v.managerName, logger.FieldError, err)
	}

	found, ok := ParseVersion(raw)
	if !ok {
		v.logger.Debugw("Unrecognised version output", logger.FieldTool, v.managerName, "output", raw)
	}
	report.ManagerVersion = found.String()
	check.Found = found.String()

	if !Outdated(found, min) {
		check.Outcome = OutcomeOK
		report.add(check, nil)
		return nil
	}

	v.logger.Warnw("Toolchain manager is older than required; updating",
		logger.FieldTool, v.managerName,
		logger.FieldVersion, found.String(),
		logger.FieldMinVersion, min.String(),
	)

	if v.pause > 0 {
		v.logger.Warnw("Press Ctrl-C to cancel the update", "seconds", v.pause.Seconds())
		timer := time.NewTimer(v.pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), "update cancelled")
		case <-timer.C:
		}
	}

	outdated := errors.Mark(
		errors.Newf("%s %s is older than %s", v.managerName, found, min),
		errors.ErrToolOutdated)

	if err := v.manager.Update(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, "update interrupted")
		}
		v.logger.Warnw("Update failed; continuing", logger.FieldTool, v.managerName, logger.FieldError, err)
		check.Outcome = OutcomeUpdateFailed
		report.add(check, errors.WithSecondaryError(outdated, err))
		return nil
	}

	check.Outcome = OutcomeUpdated
	report.add(check, outdated)
	return nil
}

func (v *Validator) checkComponent(ctx context.Context, report *Report) {
	check := Check{Name: v.component, Requirement: "installed"}

	names, err := v.manager.Components(ctx)
	if err != nil {
		v.logger.Debugw("Component listing failed", logger.FieldError, err)
	}
	if contains(names, v.component) {
		check.Outcome = OutcomeOK
		report.add(check, nil)
		return
	}

	v.logger.Infow("Installing component", logger.FieldComponent, v.component)
	if err := v.manager.AddComponent(ctx, v.component); err != nil {
		check.Outcome = OutcomeInstallFailed
		report.add(check, v.installWarning(v.component, err))
		return
	}
	check.Outcome = OutcomeInstalled
	report.add(check, nil)
}

func (v *Validator) checkTarget(ctx context.Context, report *Report) {
	check := Check{Name: v.triple, Requirement: "installed"}

	names, err := v.manager.Targets(ctx)
	if err != nil {
		v.logger.Debugw("Target listing failed", logger.FieldError, err)
	}
	if contains(names, v.triple) {
		check.Outcome = OutcomeOK
		report.add(check, nil)
		return
	}

	v.logger.Infow("Installing target", logger.FieldTarget, v.triple)
	if err := v.manager.AddTarget(ctx, v.triple); err != nil {
		check.Outcome = OutcomeInstallFailed
		report.add(check, v.installWarning(v.triple, err))
		return
	}
	check.Outcome = OutcomeInstalled
	report.add(check, nil)
}

// installWarning is recorded and logged; the compile step reports the real
// consequence if the component is truly absent
func (v *Validator) installWarning(name string, cause error) error {
	warning := errors.Mark(errors.Wrapf(cause, "failed to install %s", name), errors.ErrComponentMissing)
	v.logger.Warnw("Install failed; continuing", logger.FieldComponent, name, logger.FieldError, cause)
	return warning
}
