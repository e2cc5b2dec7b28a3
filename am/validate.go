package am

import (
	"github.com/teranos/flashbuild/errors"
)

// Validate checks that the configuration can drive a build.
// Every failure is an ErrConfig, raised before any tool runs.
func (c *Config) Validate() error {
	if err := c.TargetSpec().Validate(); err != nil {
		return err
	}
	return c.ValidateToolchain()
}

// ValidateToolchain checks everything except the target identity.
// Used by commands that do not build (clean, am show, boards).
func (c *Config) ValidateToolchain() error {
	for _, t := range Tools() {
		if _, err := c.ToolCommand(t); err != nil {
			return err
		}
	}

	if c.Linker.Script == "" {
		return errors.NewConfigError("linker.script cannot be empty")
	}
	// Page size: 0 = omit the argument, negative = invalid
	if c.Linker.MaxPageSize < 0 {
		return errors.NewConfigError("linker.max_page_size must be >= 0, got %d", c.Linker.MaxPageSize)
	}

	if c.Manager.UpdatePauseSeconds < 0 {
		return errors.NewConfigError("manager.update_pause_seconds must be >= 0, got %d", c.Manager.UpdatePauseSeconds)
	}
	if c.Manager.SourceComponent == "" {
		return errors.NewConfigError("manager.source_component cannot be empty")
	}

	if c.Output.Root == "" {
		return errors.NewConfigError("output.root cannot be empty")
	}
	if c.Stamp.EnvVar == "" {
		return errors.NewConfigError("stamp.env_var cannot be empty")
	}
	if c.Watch.DebounceMS < 0 {
		return errors.NewConfigError("watch.debounce_ms must be >= 0, got %d", c.Watch.DebounceMS)
	}

	return nil
}
