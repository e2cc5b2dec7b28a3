package boards

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/teranos/flashbuild/errors"
)

// Locate returns a local path for the catalog source src.
//
// Local paths are returned unchanged. Anything go-getter recognises as remote
// (git::, https://, s3::, github.com/...) is fetched into cacheDir, so a team
// can share one catalog across crates.
func Locate(ctx context.Context, src, pwd, cacheDir string, log *zap.SugaredLogger) (string, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	detected, err := getter.Detect(src, pwd, getter.Detectors)
	if err != nil {
		return "", errors.Wrapf(errors.Wrap(errors.ErrConfig, err.Error()), "board catalog %s", src)
	}
	u, err := url.Parse(detected)
	if err != nil {
		return "", errors.Wrapf(errors.Wrap(errors.ErrConfig, err.Error()), "board catalog %s", src)
	}
	if u.Scheme == "" || u.Scheme == "file" {
		return src, nil
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", cacheDir)
	}
	dst := filepath.Join(cacheDir, "boards.toml")

	log.Infow("Fetching board catalog", "source", src, "detected", detected)
	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     dst,
		Pwd:     pwd,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
	}
	if err := client.Get(); err != nil {
		return "", errors.WithHint(
			errors.Wrapf(err, "failed to fetch board catalog %s", src),
			"check board.catalog, or point it at a local boards.toml")
	}
	return dst, nil
}
