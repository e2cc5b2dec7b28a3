package graph

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/teranos/flashbuild/errors"
	"github.com/teranos/flashbuild/logger"
)

// Clean removes the output root and everything under it.
// Removing a root that does not exist succeeds. Roots that would take the
// source tree with them are refused with ErrConfig.
func Clean(root, sourceDir string, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve %s", root)
	}
	if err := refuseRoot(abs, sourceDir); err != nil {
		return err
	}

	if _, err := os.Stat(abs); os.IsNotExist(err) {
		log.Debugw("Nothing to clean", logger.FieldPath, abs)
		return nil
	}

	if err := os.RemoveAll(abs); err != nil {
		return errors.Wrapf(err, "failed to remove %s", abs)
	}
	log.Infow("Removed output root", logger.FieldPath, abs)
	return nil
}

// refuseRoot rejects output roots that contain the sources, the home
// directory or the filesystem root
func refuseRoot(abs, sourceDir string) error {
	refuse := func() error {
		return errors.WithHint(
			errors.NewConfigError("refusing to remove %s", abs),
			"output.root must be a dedicated build directory")
	}

	if abs == filepath.Dir(abs) {
		return refuse()
	}
	if home, err := os.UserHomeDir(); err == nil && abs == filepath.Clean(home) {
		return refuse()
	}
	if sourceDir != "" {
		src, err := filepath.Abs(sourceDir)
		if err == nil {
			if rel, err := filepath.Rel(abs, src); err == nil && !isOutside(rel) {
				return refuse()
			}
		}
	}
	return nil
}

// isOutside reports whether a relative path climbs out of its base
func isOutside(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}
