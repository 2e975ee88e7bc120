package git

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
)

// MinimumVersion is the oldest git release whose porcelain v1 status and
// branch header output the exec client parses.
var MinimumVersion = semver.MustParse("2.0.0")

var versionPattern = regexp.MustCompile(`git version (\d+\.\d+(?:\.\d+)?)`)

// ParseVersion extracts the semantic version from `git version` output such
// as "git version 2.39.3 (Apple Git-145)" or "git version 2.45.1.windows.1".
func ParseVersion(output string) (*semver.Version, error) {
	matches := versionPattern.FindStringSubmatch(output)
	if len(matches) != 2 {
		return nil, errors.Newf("unrecognized git version output %q", output)
	}
	v, err := semver.NewVersion(matches[1])
	if err != nil {
		return nil, errors.Wrapf(err, "invalid git version %q", matches[1])
	}
	return v, nil
}

// SupportsPorcelain reports whether v is at least MinimumVersion.
func SupportsPorcelain(v *semver.Version) bool {
	return v != nil && !v.LessThan(MinimumVersion)
}
