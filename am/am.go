// Package am loads the flashbuild configuration.
//
// Configuration is read once at invocation start and handed to every
// component as an immutable *Config. Nothing below the command layer reads
// the environment or viper directly.
package am

import (
	"fmt"
	"time"

	"github.com/teranos/flashbuild/artifact"
)

// Config represents the complete flashbuild configuration
type Config struct {
	Board     BoardConfig     `mapstructure:"board" toml:"board" json:"board" yaml:"board"`
	Toolchain ToolchainConfig `mapstructure:"toolchain" toml:"toolchain" json:"toolchain" yaml:"toolchain"`
	Linker    LinkerConfig    `mapstructure:"linker" toml:"linker" json:"linker" yaml:"linker"`
	Manager   ManagerConfig   `mapstructure:"manager" toml:"manager" json:"manager" yaml:"manager"`
	Output    OutputConfig    `mapstructure:"output" toml:"output" json:"output" yaml:"output"`
	Stamp     StampConfig     `mapstructure:"stamp" toml:"stamp" json:"stamp" yaml:"stamp"`
	Log       LogConfig       `mapstructure:"log" toml:"log" json:"log" yaml:"log"`
	Watch     WatchConfig     `mapstructure:"watch" toml:"watch" json:"watch" yaml:"watch"`
}

// BoardConfig binds the TargetSpec. Platform and Target have no defaults.
type BoardConfig struct {
	Platform  string `mapstructure:"platform" toml:"platform" json:"platform" yaml:"platform"`         // firmware variant, e.g. "imix"
	Target    string `mapstructure:"target" toml:"target" json:"target" yaml:"target"`                 // architecture triple, e.g. "thumbv7em-none-eabi"
	SourceDir string `mapstructure:"source_dir" toml:"source_dir" json:"source_dir" yaml:"source_dir"` // crate directory the compile step runs in (default: ".")
	Catalog   string `mapstructure:"catalog" toml:"catalog" json:"catalog" yaml:"catalog"`             // optional boards.toml (default: "boards.toml" when present)
}

// ToolchainConfig configures external tool names.
// Overrides are shell word lists, so "llvm-objcopy --strip-debug" is valid.
type ToolchainConfig struct {
	Prefix  string `mapstructure:"prefix" toml:"prefix" json:"prefix" yaml:"prefix"` // cross toolchain prefix (default: arm-none-eabi)
	Cargo   string `mapstructure:"cargo" toml:"cargo" json:"cargo" yaml:"cargo"`
	Rustup  string `mapstructure:"rustup" toml:"rustup" json:"rustup" yaml:"rustup"`
	Objcopy string `mapstructure:"objcopy" toml:"objcopy" json:"objcopy" yaml:"objcopy"` // empty = <prefix>-objcopy
	Objdump string `mapstructure:"objdump" toml:"objdump" json:"objdump" yaml:"objdump"` // empty = <prefix>-objdump
	Size    string `mapstructure:"size" toml:"size" json:"size" yaml:"size"`             // empty = <prefix>-size

	ObjdumpFlags []string `mapstructure:"objdump_flags" toml:"objdump_flags" json:"objdump_flags" yaml:"objdump_flags"`
}

// LinkerConfig is passed to the compile step as fixed link arguments
type LinkerConfig struct {
	Script          string   `mapstructure:"script" toml:"script" json:"script" yaml:"script"`                                         // default: layout.ld (boards.toml may override per platform)
	Linker          string   `mapstructure:"linker" toml:"linker" json:"linker" yaml:"linker"`                                         // default: rust-lld
	Flavor          string   `mapstructure:"flavor" toml:"flavor" json:"flavor" yaml:"flavor"`                                         // default: ld.lld
	RelocationModel string   `mapstructure:"relocation_model" toml:"relocation_model" json:"relocation_model" yaml:"relocation_model"` // default: dynamic-no-pic
	MaxPageSize     int      `mapstructure:"max_page_size" toml:"max_page_size" json:"max_page_size" yaml:"max_page_size"`             // default: 512
	ExtraArgs       []string `mapstructure:"extra_args" toml:"extra_args" json:"extra_args" yaml:"extra_args"`
}

// ManagerConfig configures the toolchain management tool checks
type ManagerConfig struct {
	MinVersion         string `mapstructure:"min_version" toml:"min_version" json:"min_version" yaml:"min_version"`                                     // default: 1.11.0
	SourceComponent    string `mapstructure:"source_component" toml:"source_component" json:"source_component" yaml:"source_component"`                 // default: rust-src
	UpdatePauseSeconds int    `mapstructure:"update_pause_seconds" toml:"update_pause_seconds" json:"update_pause_seconds" yaml:"update_pause_seconds"` // cancellation window before update (default: 3)
	Skip               bool   `mapstructure:"skip" toml:"skip" json:"skip" yaml:"skip"`                                                                 // skip environment validation entirely
}

// OutputConfig configures the output tree
type OutputConfig struct {
	Root string `mapstructure:"root" toml:"root" json:"root" yaml:"root"` // default: target (relative to source_dir)
}

// StampConfig configures the kernel version stamp
type StampConfig struct {
	EnvVar   string `mapstructure:"env_var" toml:"env_var" json:"env_var" yaml:"env_var"`     // default: KERNEL_VERSION
	Fallback string `mapstructure:"fallback" toml:"fallback" json:"fallback" yaml:"fallback"` // default: notgit
	Repo     string `mapstructure:"repo" toml:"repo" json:"repo" yaml:"repo"`                 // repository the stamp is read from (default: source_dir)
}

// LogConfig configures logging output
type LogConfig struct {
	Verbosity int    `mapstructure:"verbosity" toml:"verbosity" json:"verbosity" yaml:"verbosity"` // legacy V=1 maps here
	JSON      bool   `mapstructure:"json" toml:"json" json:"json" yaml:"json"`
	Theme     string `mapstructure:"theme" toml:"theme" json:"theme" yaml:"theme"`
}

// WatchConfig configures rebuild-on-change
type WatchConfig struct {
	DebounceMS int      `mapstructure:"debounce_ms" toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"` // default: 500
	Ignore     []string `mapstructure:"ignore" toml:"ignore" json:"ignore" yaml:"ignore"`                     // directory names never watched
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// TargetSpec returns the (platform, triple) pair bound by this config
func (c *Config) TargetSpec() artifact.TargetSpec {
	return artifact.TargetSpec{Platform: c.Board.Platform, Triple: c.Board.Target}
}

// UpdatePause returns the operator's cancellation window before a remedial update
func (c *Config) UpdatePause() time.Duration {
	if c.Manager.UpdatePauseSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Manager.UpdatePauseSeconds) * time.Second
}

// WatchDebounce returns the debounce period for watch mode
func (c *Config) WatchDebounce() time.Duration {
	if c.Watch.DebounceMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Board: %s@%s, Prefix: %s, Output: %s}",
		c.Board.Platform, c.Board.Target, c.Toolchain.Prefix, c.Output.Root)
}
