package git

import (
	"os"
	"path/filepath"
	"strings"
)

// MarkerName is the entry whose presence makes a directory a repository root.
const MarkerName = ".git"

// IsGitRepo checks if a path is a git repository root
func IsGitRepo(path string) bool {
	// Check for .git directory or file (for worktrees and submodules)
	gitPath := filepath.Join(path, MarkerName)
	if info, err := os.Lstat(gitPath); err == nil {
		return info.IsDir() || info.Mode().IsRegular()
	}

	// Also check if it's a bare repo (contains HEAD, config, objects)
	headPath := filepath.Join(path, "HEAD")
	configPath := filepath.Join(path, "config")
	objectsPath := filepath.Join(path, "objects")
	if _, err := os.Stat(headPath); err == nil {
		if _, err := os.Stat(configPath); err == nil {
			if info, err := os.Stat(objectsPath); err == nil && info.IsDir() {
				return true
			}
		}
	}

	return false
}

// IsBareRepo reports whether path is a bare repository (no working tree).
func IsBareRepo(path string) bool {
	if _, err := os.Lstat(filepath.Join(path, MarkerName)); err == nil {
		return false
	}
	return IsGitRepo(path)
}

// IsWorkTreeRoot reports whether path is the root of a repository with a
// working tree. Bare repositories are excluded since they have no status to
// report.
func IsWorkTreeRoot(path string) bool {
	return IsGitRepo(path) && !IsBareRepo(path)
}

// GitDir returns the administrative directory for the repository rooted at
// path. A .git file ("gitdir: <path>") is followed for worktrees.
func GitDir(path string) (string, error) {
	gitPath := filepath.Join(path, MarkerName)
	info, err := os.Stat(gitPath)
	if err != nil {
		if IsGitRepo(path) {
			return path, nil
		}
		return "", err
	}
	if info.IsDir() {
		return gitPath, nil
	}

	data, err := os.ReadFile(gitPath)
	if err != nil {
		return "", err
	}
	target := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(data)), "gitdir:"))
	if !filepath.IsAbs(target) {
		target = filepath.Join(path, target)
	}
	return filepath.Clean(target), nil
}
