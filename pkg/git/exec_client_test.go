package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"4d63.com/testcli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rdErrors "thoreinstein.com/repodash/pkg/errors"
)

func TestExecClient_RemoteURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		output  func(args ...string) ([]byte, error)
		want    string
		wantErr bool
	}{
		{
			name: "origin configured",
			output: func(args ...string) ([]byte, error) {
				if args[0] == "config" && args[2] == "remote.origin.url" {
					return []byte("git@github.com:owner/alpha.git\n"), nil
				}
				return nil, errors.New("unexpected call")
			},
			want: "git@github.com:owner/alpha.git",
		},
		{
			name: "falls back to first remote",
			output: func(args ...string) ([]byte, error) {
				switch {
				case args[0] == "config" && args[2] == "remote.origin.url":
					return nil, &exitError{code: 1}
				case args[0] == "remote":
					return []byte("upstream\nfork\n"), nil
				case args[0] == "config" && args[2] == "remote.upstream.url":
					return []byte("https://example.com/beta.git\n"), nil
				}
				return nil, errors.New("unexpected call")
			},
			want: "https://example.com/beta.git",
		},
		{
			name: "no remotes",
			output: func(args ...string) ([]byte, error) {
				if args[0] == "config" {
					return nil, &exitError{code: 1}
				}
				return []byte(""), nil
			},
			want: "",
		},
		{
			name: "config failure",
			output: func(args ...string) ([]byte, error) {
				return nil, &exitError{code: 128}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := &MockCommandRunner{
				OutputFunc: func(dir string, name string, args ...string) ([]byte, error) {
					return tt.output(args...)
				},
			}
			client := NewExecClient(WithRunner(mock))

			got, err := client.RemoteURL(context.Background(), "/repos/alpha")
			if (err != nil) != tt.wantErr {
				t.Fatalf("RemoteURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !rdErrors.IsQueryError(err) {
					t.Errorf("RemoteURL() error should be a QueryError, got %T", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("RemoteURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecClient_ChangedPaths(t *testing.T) {
	t.Parallel()

	var gotDir string
	mock := &MockCommandRunner{
		OutputFunc: func(dir string, name string, args ...string) ([]byte, error) {
			gotDir = dir
			return []byte(" M main.go\n?? scratch.txt\n"), nil
		},
	}
	client := NewExecClient(WithRunner(mock), WithBinary("/opt/git/bin/git"))

	changes, err := client.ChangedPaths(context.Background(), "/repos/alpha")
	if err != nil {
		t.Fatalf("ChangedPaths() error = %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("ChangedPaths() returned %d entries, want 2", len(changes))
	}
	if gotDir != "/repos/alpha" {
		t.Errorf("command ran in %q, want /repos/alpha", gotDir)
	}

	call := mock.Calls[0]
	if call[0] != "/opt/git/bin/git" {
		t.Errorf("binary = %q, want /opt/git/bin/git", call[0])
	}
	if slices.Contains(call, "--untracked-files=no") {
		t.Error("untracked files should be included by default")
	}
}

func TestExecClient_ChangedPaths_ExcludeUntracked(t *testing.T) {
	t.Parallel()

	mock := &MockCommandRunner{}
	client := NewExecClient(WithRunner(mock), WithUntracked(false))

	if _, err := client.ChangedPaths(context.Background(), "/repos/alpha"); err != nil {
		t.Fatalf("ChangedPaths() error = %v", err)
	}
	if !slices.Contains(mock.Calls[0], "--untracked-files=no") {
		t.Errorf("expected --untracked-files=no in %v", mock.Calls[0])
	}
}

func TestExecClient_AheadCount(t *testing.T) {
	t.Parallel()

	mock := &MockCommandRunner{
		OutputFunc: func(dir string, name string, args ...string) ([]byte, error) {
			return []byte("## main...origin/main [ahead 2]\n"), nil
		},
	}
	client := NewExecClient(WithRunner(mock))

	ahead, err := client.AheadCount(context.Background(), "/repos/alpha")
	if err != nil {
		t.Fatalf("AheadCount() error = %v", err)
	}
	if ahead != 2 {
		t.Errorf("AheadCount() = %d, want 2", ahead)
	}
	if !slices.Contains(mock.Calls[0], "--branch") {
		t.Errorf("expected --branch in %v", mock.Calls[0])
	}
}

func TestExecClient_Timeout(t *testing.T) {
	t.Parallel()

	mock := &MockCommandRunner{
		OutputFunc: func(dir string, name string, args ...string) ([]byte, error) {
			return nil, context.DeadlineExceeded
		},
	}
	client := NewExecClient(WithRunner(mock))

	_, err := client.AheadCount(context.Background(), "/repos/slow")
	if err == nil {
		t.Fatal("AheadCount() expected error")
	}
	if !rdErrors.IsTimeout(err) {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestExecClient_Version(t *testing.T) {
	t.Parallel()

	mock := &MockCommandRunner{
		OutputFunc: func(dir string, name string, args ...string) ([]byte, error) {
			return []byte("git version 2.44.0\n"), nil
		},
	}
	client := NewExecClient(WithRunner(mock))

	v, err := client.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v.String() != "2.44.0" {
		t.Errorf("Version() = %s, want 2.44.0", v)
	}
}

func TestExecClient_IsRepositoryRoot(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	repo := filepath.Join(tmpDir, "repo")
	mustMkdir(t, filepath.Join(repo, ".git"))
	plain := filepath.Join(tmpDir, "plain")
	mustMkdir(t, plain)
	bare := filepath.Join(tmpDir, "srv.git")
	mustMkdir(t, filepath.Join(bare, "objects"))
	for _, name := range []string{"HEAD", "config"} {
		if err := os.WriteFile(filepath.Join(bare, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	client := NewExecClient()
	if !client.IsRepositoryRoot(repo) {
		t.Error("IsRepositoryRoot(repo) = false, want true")
	}
	if client.IsRepositoryRoot(plain) {
		t.Error("IsRepositoryRoot(plain) = true, want false")
	}
	if client.IsRepositoryRoot(bare) {
		t.Error("IsRepositoryRoot(bare) = true, want false")
	}
	if NewGoGitClient().IsRepositoryRoot(bare) {
		t.Error("GoGitClient.IsRepositoryRoot(bare) = true, want false")
	}
}

func setupGit(t *testing.T) {
	t.Helper()
	home := testcli.MkdirTemp(t)
	t.Setenv("HOME", home)
	testcli.Exec(t, "git config --global user.email 'tests@example.com'")
	testcli.Exec(t, "git config --global user.name 'Tests'")
	testcli.Exec(t, "git config --global init.defaultBranch main")
}

// TestExecClient_Integration runs against a real git binary when one is
// available.
func TestExecClient_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	setupGit(t)

	remote := testcli.MkdirTemp(t)
	testcli.Chdir(t, remote)
	testcli.Exec(t, "git init --bare")

	dir := testcli.MkdirTemp(t)
	testcli.Chdir(t, dir)
	testcli.Exec(t, "git init")
	testcli.Exec(t, "git remote add origin "+remote)
	testcli.WriteFile(t, "file1", []byte("content"))
	testcli.Exec(t, "git add .")
	testcli.Exec(t, "git commit -m 'Initial commit'")
	testcli.Exec(t, "git push -u origin main")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client := NewExecClient()
	assert.False(t, client.IsRepositoryRoot(remote), "bare remote must not be a repository root")

	url, err := client.RemoteURL(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, remote, url)

	changes, err := client.ChangedPaths(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, changes)

	ahead, err := client.AheadCount(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, ahead)

	testcli.WriteFile(t, "file2", []byte("more"))
	testcli.Exec(t, "git add file2")
	testcli.Exec(t, "git commit -m 'Second commit'")
	testcli.WriteFile(t, "file3", []byte("untracked"))

	changes, err = client.ChangedPaths(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []ChangedPath{{Code: "??", Path: "file3"}}, changes)

	ahead, err = client.AheadCount(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, ahead)

	v, err := client.Version(ctx)
	require.NoError(t, err)
	assert.True(t, SupportsPorcelain(v), "git %s is older than %s", v, MinimumVersion)
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}
