package am

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/flashbuild/errors"
)

// starterFile is the subset of Config written by `am init`
type starterFile struct {
	Board     starterBoard     `toml:"board"`
	Toolchain starterToolchain `toml:"toolchain"`
}

type starterBoard struct {
	Platform string `toml:"platform"`
	Target   string `toml:"target"`
}

type starterToolchain struct {
	Prefix string `toml:"prefix"`
}

// WriteStarter creates a flashbuild.toml in dir binding platform and target.
// An existing file is kept as <file>.back1 when force is set, otherwise the
// call fails.
func WriteStarter(dir, platform, target, prefix string, force bool) (string, error) {
	if platform == "" || target == "" {
		return "", errors.NewConfigError("am init needs both --platform and --target")
	}
	if prefix == "" {
		prefix = DefaultToolchainPrefix
	}

	path := filepath.Join(dir, ProjectConfigFile)
	if _, err := os.Stat(path); err == nil {
		if !force {
			return "", errors.WithHint(errors.Newf("%s already exists", path), "pass --force to replace it")
		}
		if err := createBackup(path); err != nil {
			return "", err
		}
	}

	data, err := toml.Marshal(starterFile{
		Board:     starterBoard{Platform: platform, Target: target},
		Toolchain: starterToolchain{Prefix: prefix},
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal starter config")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# flashbuild project configuration\n# See `flashbuild am show` for every key and its default.\n\n")
	buf.Write(data)

	if err := os.WriteFile(path, buf.Bytes(), DefaultFilePermissions); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}
	return path, nil
}

// createBackup copies the current file to .back1 before it is replaced
func createBackup(configPath string) error {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(configPath+".back1", content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}
