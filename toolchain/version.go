package toolchain

import (
	"regexp"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/flashbuild/errors"
)

// versionPattern finds the first dotted version in tool output such as
// "rustup 1.27.1 (54dd3d00f 2024-04-24)"
var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?`)

// zeroVersion sorts below every real release
var zeroVersion = semver.MustParse("0.0.0")

// ParseVersion extracts a semantic version from tool output.
// Output with no recognisable version yields 0.0.0 so that the caller takes
// the update path; ok reports whether a version was found.
func ParseVersion(output string) (v *semver.Version, ok bool) {
	match := versionPattern.FindString(output)
	if match == "" {
		return zeroVersion, false
	}
	v, err := semver.NewVersion(match)
	if err != nil {
		return zeroVersion, false
	}
	return v, true
}

// ParseMinimum parses the configured minimum version
func ParseMinimum(min string) (*semver.Version, error) {
	v, err := semver.NewVersion(min)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(errors.ErrConfig, "invalid manager.min_version %q: %v", min, err),
			"use a dotted version such as 1.11.0")
	}
	return v, nil
}

// Outdated reports whether found is strictly older than min
func Outdated(found, min *semver.Version) bool {
	return found.LessThan(min)
}
