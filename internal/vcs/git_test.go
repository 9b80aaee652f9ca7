package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jacinta/internal/errors"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return strings.TrimSpace(string(out))
}

// newRemote creates a bare repository with one commit on its default branch.
func newRemote(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	remote := filepath.Join(root, "remote.git")
	seed := filepath.Join(root, "seed")

	run(t, root, "init", "--bare", remote)
	run(t, root, "clone", remote, seed)
	require.NoError(t, os.WriteFile(filepath.Join(seed, "README.md"), []byte("seed\n"), 0o644))
	run(t, seed, "add", "README.md")
	run(t, seed, "-c", "user.name=t", "-c", "user.email=t@t", "commit", "-m", "seed")
	run(t, seed, "push", "origin", "HEAD")
	return remote
}

func TestEnsureClonedAndCommitAndPush(t *testing.T) {
	requireGit(t)
	remote := newRemote(t)
	local := filepath.Join(t.TempDir(), "work")

	repo := New(Config{URL: remote, LocalPath: local, Token: "unused-for-file-remotes"})
	ctx := context.Background()

	require.NoError(t, repo.EnsureCloned(ctx))
	require.NoError(t, repo.EnsureCloned(ctx), "second call is a no-op")

	require.NoError(t, os.WriteFile(filepath.Join(local, "hello.py"), []byte("print('hi')\n"), 0o644))
	require.NoError(t, repo.CommitAndPush(ctx, "hello.py", "Auto-generated file: hello.py"))

	head, err := repo.HeadCommit(ctx)
	require.NoError(t, err)
	remoteHead := run(t, remote, "rev-parse", "HEAD")
	assert.Equal(t, remoteHead, head)
	assert.Equal(t, "Auto-generated file: hello.py", run(t, remote, "log", "-1", "--format=%s"))
	assert.Equal(t, "jacinta", run(t, remote, "log", "-1", "--format=%an"))
}

func TestCommitNothingFails(t *testing.T) {
	requireGit(t)
	remote := newRemote(t)
	local := filepath.Join(t.TempDir(), "work")

	repo := New(Config{URL: remote, LocalPath: local})
	require.NoError(t, repo.EnsureCloned(context.Background()))

	err := repo.CommitAndPush(context.Background(), "missing.py", "nothing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeExecVCS), "got %v", err)
}

func TestEnsureClonedWithoutURL(t *testing.T) {
	repo := New(Config{LocalPath: filepath.Join(t.TempDir(), "absent")})
	err := repo.EnsureCloned(context.Background())
	assert.True(t, errors.HasCode(err, errors.ErrCodeExecVCS))
}

func TestAuthArgs(t *testing.T) {
	repo := New(Config{Token: "tok"})

	args := repo.authArgs("https://github.com/o/r.git", "push", "origin", "HEAD")
	require.Len(t, args, 5)
	assert.Equal(t, "-c", args[0])
	assert.True(t, strings.HasPrefix(args[1], "http.extraHeader=Authorization: Basic "))
	assert.Equal(t, "push", subcommand(args))

	assert.Equal(t, []string{"push"}, repo.authArgs("git@github.com:o/r.git", "push"))
	assert.Equal(t, "fatal: *** rejected", repo.redact("fatal: tok rejected"))
}
