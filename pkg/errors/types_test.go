package errors

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestQueryError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *QueryError
		expected string
	}{
		{
			name: "with path",
			err: &QueryError{
				Operation: "ChangedPaths",
				Path:      "/home/me/src/app",
				Message:   "exit status 128",
			},
			expected: "query ChangedPaths for /home/me/src/app failed: exit status 128",
		},
		{
			name: "timeout",
			err: &QueryError{
				Operation: "AheadCount",
				Path:      "/mnt/slow/repo",
				Message:   "deadline exceeded",
				Timeout:   true,
			},
			expected: "query AheadCount for /mnt/slow/repo timed out: deadline exceeded",
		},
		{
			name: "without path",
			err: &QueryError{
				Operation: "Version",
				Message:   "git not found",
			},
			expected: "query Version failed: git not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.err.Error()
			if result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestNewQueryErrorWithCause_DetectsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	err := NewQueryErrorWithCause("AheadCount", "/repo", "git status", errors.Wrap(ctx.Err(), "run git"))
	if !err.Timeout {
		t.Error("expected Timeout to be set for a deadline-exceeded cause")
	}
	if !IsTimeout(err) {
		t.Error("IsTimeout() = false, want true")
	}

	plain := NewQueryErrorWithCause("AheadCount", "/repo", "git status", errors.New("exit status 1"))
	if plain.Timeout {
		t.Error("expected Timeout to be false for a plain cause")
	}
	if IsTimeout(plain) {
		t.Error("IsTimeout() = true, want false")
	}
}

func TestQueryError_Unwrap(t *testing.T) {
	cause := errors.New("underlying cause")
	err := NewQueryErrorWithCause("RemoteURL", "/repo", "failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause through Unwrap")
	}

	wrapped := errors.Wrap(err, "probe")
	var target *QueryError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find QueryError in a wrapped chain")
	}
	if target.Operation != "RemoteURL" {
		t.Errorf("Operation = %q, want %q", target.Operation, "RemoteURL")
	}
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		config  bool
		query   bool
		scan    bool
		timeout bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("boom")},
		{name: "config", err: NewConfigError("probe.timeout", "must be positive"), config: true},
		{name: "query", err: NewQueryError("ChangedPaths", "/r", "bad"), query: true},
		{name: "scan", err: errors.Wrap(NewScanError("/home", "busy"), "start"), scan: true},
		{name: "deadline", err: errors.Wrap(context.DeadlineExceeded, "wait"), timeout: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfigError(tt.err); got != tt.config {
				t.Errorf("IsConfigError() = %v, want %v", got, tt.config)
			}
			if got := IsQueryError(tt.err); got != tt.query {
				t.Errorf("IsQueryError() = %v, want %v", got, tt.query)
			}
			if got := IsScanError(tt.err); got != tt.scan {
				t.Errorf("IsScanError() = %v, want %v", got, tt.scan)
			}
			if got := IsTimeout(tt.err); got != tt.timeout {
				t.Errorf("IsTimeout() = %v, want %v", got, tt.timeout)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "config error",
			err:      NewConfigErrorWithCause("git.backend", "unsupported backend", errors.New("oneof")),
			contains: []string{"git.backend", "config.toml", "Underlying error: oneof"},
		},
		{
			name:     "query timeout",
			err:      &QueryError{Operation: "AheadCount", Path: "/r", Message: "slow", Timeout: true},
			contains: []string{"timed out", "probe.timeout"},
		},
		{
			name:     "scan error",
			err:      NewScanError("/nope", "root does not exist"),
			contains: []string{"/nope", "discovery.roots"},
		},
		{
			name:     "plain error",
			err:      errors.New("just text"),
			contains: []string{"just text"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FormatUserError(tt.err)
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("FormatUserError() = %q, should contain %q", msg, want)
				}
			}
		})
	}

	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}
