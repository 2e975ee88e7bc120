package git

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// RemoteURL represents a parsed git remote URL
type RemoteURL struct {
	Original string // Original input
	Protocol string // "ssh", "https", "http", "git", "file", or "local"
	Host     string // Empty for local paths
	Path     string // Repository path on the host, slash separated
	Name     string // Final path segment without the .git suffix
}

// scpLikeRegex matches the scp-style form git accepts for SSH remotes:
// [user@]host:path/to/repo.git
var scpLikeRegex = regexp.MustCompile(`^(?:[a-zA-Z0-9_.+-]+@)?([a-zA-Z0-9_.-]+):([^/\\].*|/.*)$`)

// windowsDriveRegex guards against reading "C:\repo" as host "C".
var windowsDriveRegex = regexp.MustCompile(`^[a-zA-Z]:[\\/]`)

// ParseRemoteURL parses the remote URL formats git accepts.
// Supported formats:
//   - URL: https://host/owner/repo.git, ssh://git@host:22/owner/repo.git, file:///srv/repo.git
//   - scp-like SSH: git@host:owner/repo.git
//   - Local path: /srv/git/repo.git, ../repo
func ParseRemoteURL(input string) (*RemoteURL, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("empty remote URL")
	}

	remote := &RemoteURL{Original: input}

	switch {
	case strings.Contains(input, "://"):
		u, err := url.Parse(input)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid remote URL %q", input)
		}
		remote.Protocol = strings.ToLower(u.Scheme)
		remote.Host = u.Hostname()
		remote.Path = strings.TrimPrefix(u.Path, "/")

	case !windowsDriveRegex.MatchString(input) && scpLikeRegex.MatchString(input):
		matches := scpLikeRegex.FindStringSubmatch(input)
		remote.Protocol = "ssh"
		remote.Host = matches[1]
		remote.Path = strings.TrimPrefix(matches[2], "/")

	default:
		remote.Protocol = "local"
		remote.Path = strings.ReplaceAll(input, "\\", "/")
	}

	remote.Name = repoName(remote.Path)
	if remote.Name == "" {
		return nil, errors.Newf("remote URL %q has no repository name", input)
	}

	return remote, nil
}

// RepoName returns the repository name encoded in a remote URL, or "" when
// none can be derived.
func RepoName(remoteURL string) string {
	remote, err := ParseRemoteURL(remoteURL)
	if err != nil {
		return ""
	}
	return remote.Name
}

func repoName(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	name := strings.TrimSuffix(path.Base(p), ".git")
	if name == "" || name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}
