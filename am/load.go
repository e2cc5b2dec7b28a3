package am

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/flashbuild/errors"
)

// Loader builds a fresh viper instance per invocation.
// There is no package-level cache: each call to Load returns a new *Config.
type Loader struct {
	// WorkDir is where the upward search for flashbuild.toml starts (default: cwd)
	WorkDir string
	// HomeDir locates the user config (default: os.UserHomeDir)
	HomeDir string
	// ConfigFile, when set, replaces the upward search
	ConfigFile string
}

// Load reads configuration from defaults, config files and environment
func (l Loader) Load() (*Config, *viper.Viper, Sources, error) {
	v, sources, err := l.NewViper()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, v, sources, nil
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path, defaults
// applied, no environment binding
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	return LoadWithViper(v)
}

// NewViper initializes Viper with configuration sources and defaults.
// Precedence (lowest to highest): defaults < user < project < env vars < flags.
func (l Loader) NewViper() (*viper.Viper, Sources, error) {
	v := viper.New()

	v.SetEnvPrefix("FLASHBUILD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindLegacyEnvVars(v)

	SetDefaults(v)

	sources := Sources{}
	sources.recordDefaults(v)

	paths, err := l.configPaths()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		if err := mergeConfigFile(v, p.path, p.source, sources); err != nil {
			return nil, nil, err
		}
	}

	sources.recordEnvironment()
	return v, sources, nil
}

type configPath struct {
	path   string
	source ConfigSource
}

func (l Loader) configPaths() ([]configPath, error) {
	var paths []configPath

	home := l.HomeDir
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	if home != "" {
		paths = append(paths, configPath{filepath.Join(home, ".config", "flashbuild", ProjectConfigFile), SourceUser})
	}

	if l.ConfigFile != "" {
		if _, err := os.Stat(l.ConfigFile); err != nil {
			return nil, errors.Wrapf(errors.ErrConfig, "config file %s: %v", l.ConfigFile, err)
		}
		return append(paths, configPath{l.ConfigFile, SourceProject}), nil
	}

	if project := FindProjectConfig(l.WorkDir); project != "" {
		paths = append(paths, configPath{project, SourceProject})
	}
	return paths, nil
}

// FindProjectConfig searches for flashbuild.toml by walking up the directory tree
// Returns the path to the first config file found, or empty string if none found
func FindProjectConfig(start string) string {
	dir := start
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root, stop searching
			return ""
		}
		dir = parent
	}
}

// mergeConfigFile merges one toml file into v when it exists. Values land in
// viper's config layer, so environment variables and flags still win.
// Relative paths inside a project file are resolved against the file's directory.
func mergeConfigFile(v *viper.Viper, path string, source ConfigSource, sources Sources) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	tempViper := viper.New()
	tempViper.SetConfigFile(path)
	tempViper.SetConfigType("toml")
	if err := tempViper.ReadInConfig(); err != nil {
		return errors.Wrapf(errors.Wrap(errors.ErrConfig, err.Error()), "failed to parse %s", path)
	}

	baseDir := filepath.Dir(path)
	if source == SourceProject {
		for _, key := range tempViper.AllKeys() {
			if !isPathKey(key) {
				continue
			}
			if s := tempViper.GetString(key); s != "" && !filepath.IsAbs(s) && !isRemote(s) {
				tempViper.Set(key, filepath.Join(baseDir, s))
			}
		}
		// A project file anchors the crate: builds run next to it unless told otherwise
		if !tempViper.IsSet("board.source_dir") {
			v.SetDefault("board.source_dir", baseDir)
		}
	}

	if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
		return errors.Wrapf(err, "failed to merge %s", path)
	}
	for _, key := range tempViper.AllKeys() {
		sources[key] = SourceInfo{Source: source, Path: path}
	}
	return nil
}

// isRemote reports go-getter style sources such as git::https://... or s3::...
func isRemote(s string) bool {
	return strings.Contains(s, "://") || strings.Contains(s, "::")
}

// isPathKey reports keys whose values are filesystem paths
func isPathKey(key string) bool {
	switch key {
	case "board.source_dir", "board.catalog", "output.root", "stamp.repo":
		return true
	default:
		return false
	}
}
