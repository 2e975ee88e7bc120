package git

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// ChangedPath is one entry of a porcelain status listing.
type ChangedPath struct {
	Code string // porcelain XY code, trimmed (e.g., "M", "A", "??")
	Path string // path relative to the repository root
}

// ParsePorcelain parses `git status --porcelain=v1` output. Every non-empty
// line other than the "## " branch header yields one entry, so the result
// length equals the number of reported changes. Lines too short to carry a
// path keep their raw text as the code.
func ParsePorcelain(output string) []ChangedPath {
	var changes []ChangedPath

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "## ") {
			continue
		}
		if len(line) < 4 {
			changes = append(changes, ChangedPath{Code: strings.TrimSpace(line)})
			continue
		}

		code := strings.TrimSpace(line[:2])
		path := strings.TrimSpace(line[3:])
		if strings.Contains(path, " -> ") {
			parts := strings.Split(path, " -> ")
			path = parts[len(parts)-1]
		}
		if strings.HasPrefix(path, "\"") {
			if decoded, err := strconv.Unquote(path); err == nil {
				path = decoded
			}
		}
		changes = append(changes, ChangedPath{Code: code, Path: path})
	}

	return changes
}

var aheadPattern = regexp.MustCompile(`\[[^\]]*\bahead (\d+)`)

// ParseAheadCount extracts N from the "[ahead N]" marker of the branch header
// printed by `git status --porcelain -b`. Anything unexpected yields 0:
// no header, no upstream, in sync, or malformed output.
func ParseAheadCount(output string) int {
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "## ") {
			continue
		}
		matches := aheadPattern.FindStringSubmatch(line)
		if len(matches) != 2 {
			return 0
		}
		n, err := strconv.Atoi(matches[1])
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return 0
}
