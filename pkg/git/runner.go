package git

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// CommandRunner executes external commands. Implementations must be safe for
// concurrent use.
type CommandRunner interface {
	// Output runs name with args inside dir and returns its stdout.
	Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// RealCommandRunner runs commands with os/exec.
type RealCommandRunner struct {
	// Env is appended to the inherited environment.
	Env []string
}

// readOnlyEnv keeps git from taking optional locks or prompting, and pins the
// locale so status output is stable for parsing.
var readOnlyEnv = []string{
	"GIT_OPTIONAL_LOCKS=0",
	"GIT_TERMINAL_PROMPT=0",
	"LC_ALL=C",
}

// Output implements CommandRunner.
func (r *RealCommandRunner) Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(append(os.Environ(), readOnlyEnv...), r.Env...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrapf(ctxErr, "%s %s", name, summarizeArgs(args))
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.Wrapf(err, "%s %s: %s", name, summarizeArgs(args), redactCredentials(msg))
	}

	return stdout.Bytes(), nil
}

var safeArgPattern = regexp.MustCompile(`^-{0,2}[a-z][a-z=.-]*$`)

// summarizeArgs keeps the leading subcommand tokens and drops anything that
// could be a path or URL.
func summarizeArgs(args []string) string {
	safe := make([]string, 0, 3)
	for _, a := range args {
		if !safeArgPattern.MatchString(a) || len(safe) == 3 {
			break
		}
		safe = append(safe, a)
	}
	if len(safe) == 0 {
		return "<redacted>"
	}
	return strings.Join(safe, " ")
}

var credentialURLPattern = regexp.MustCompile(`(https?://)[^\s/@]+@`)

func redactCredentials(s string) string {
	return credentialURLPattern.ReplaceAllString(s, "$1<redacted>@")
}

// exitCoder is satisfied by *exec.ExitError.
type exitCoder interface {
	ExitCode() int
}

// exitCode returns the process exit code carried by err, or -1.
func exitCode(err error) int {
	var exitErr exitCoder
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
