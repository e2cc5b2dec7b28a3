package am

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceUser        ConfigSource = "user"        // ~/.config/flashbuild/flashbuild.toml
	SourceProject     ConfigSource = "project"     // flashbuild.toml found by upward search
	SourceEnvironment ConfigSource = "environment" // FLASHBUILD_* or legacy env vars
	SourceFlag        ConfigSource = "flag"        // command line
)

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource `json:"source"`
	Path   string       `json:"path,omitempty"` // File path or environment variable name
}

// Sources maps dotted keys to the layer that supplied them
type Sources map[string]SourceInfo

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key"`
	Value      interface{}  `json:"value"`
	Source     ConfigSource `json:"source"`
	SourcePath string       `json:"source_path,omitempty"`
}

// legacyEnv lists the plain environment names bound by BindLegacyEnvVars
var legacyEnv = map[string][]string{
	"board.platform":    {"FLASHBUILD_BOARD_PLATFORM", "PLATFORM"},
	"board.target":      {"FLASHBUILD_BOARD_TARGET", "TARGET"},
	"toolchain.prefix":  {"FLASHBUILD_TOOLCHAIN_PREFIX", "TOOLCHAIN"},
	"toolchain.cargo":   {"FLASHBUILD_TOOLCHAIN_CARGO", "CARGO"},
	"toolchain.rustup":  {"FLASHBUILD_TOOLCHAIN_RUSTUP", "RUSTUP"},
	"toolchain.objcopy": {"FLASHBUILD_TOOLCHAIN_OBJCOPY", "OBJCOPY"},
	"toolchain.objdump": {"FLASHBUILD_TOOLCHAIN_OBJDUMP", "OBJDUMP"},
	"toolchain.size":    {"FLASHBUILD_TOOLCHAIN_SIZE", "SIZE"},
	"log.verbosity":     {"FLASHBUILD_LOG_VERBOSITY", "V"},
}

func (s Sources) recordDefaults(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s[key] = SourceInfo{Source: SourceDefault}
	}
}

// recordEnvironment marks keys whose value comes from an environment variable.
// Empty variables are ignored, as viper ignores them.
func (s Sources) recordEnvironment() {
	for key, names := range legacyEnv {
		for _, name := range names {
			if os.Getenv(name) != "" {
				s[key] = SourceInfo{Source: SourceEnvironment, Path: name}
				break
			}
		}
	}
	for _, kv := range os.Environ() {
		name, value, _ := strings.Cut(kv, "=")
		if value == "" || !strings.HasPrefix(name, "FLASHBUILD_") {
			continue
		}
		key := strings.ToLower(strings.Replace(strings.TrimPrefix(name, "FLASHBUILD_"), "_", ".", 1))
		if _, known := s[key]; known {
			s[key] = SourceInfo{Source: SourceEnvironment, Path: name}
		}
	}
}

// RecordFlag marks key as supplied on the command line
func (s Sources) RecordFlag(key, flag string) {
	s[key] = SourceInfo{Source: SourceFlag, Path: "--" + flag}
}

// Settings flattens the effective configuration with the source of each key,
// sorted by key for deterministic output.
func Settings(v *viper.Viper, sources Sources) []SettingInfo {
	keys := v.AllKeys()
	sort.Strings(keys)

	settings := make([]SettingInfo, 0, len(keys))
	for _, key := range keys {
		info, ok := sources[key]
		if !ok {
			info = SourceInfo{Source: SourceDefault}
		}
		settings = append(settings, SettingInfo{
			Key:        key,
			Value:      v.Get(key),
			Source:     info.Source,
			SourcePath: info.Path,
		})
	}
	return settings
}
