// Package vcs commits generated files into a git working copy and pushes
// them to the configured remote.
package vcs

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/felixgeelhaar/jacinta/internal/errors"
)

// Config describes the repository code jobs write into.
type Config struct {
	// URL is cloned into LocalPath when the working copy does not exist yet.
	URL       string `yaml:"url"`
	LocalPath string `yaml:"local_path"`
	Remote    string `yaml:"remote"`
	// Branch is the remote branch to push to; empty pushes to the branch
	// matching the current HEAD.
	Branch      string `yaml:"branch"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
	// Token authenticates HTTPS clone and push. It is sent as a header and
	// never written into the repository config.
	Token string `yaml:"-"`
}

// Repo runs git commands against one working copy. Operations are
// serialized; git's index cannot be shared by concurrent commits.
type Repo struct {
	cfg Config
	mu  sync.Mutex
}

// New returns a Repo with defaults applied. GITHUB_TOKEN is used when no
// token is configured.
func New(cfg Config) *Repo {
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.AuthorName == "" {
		cfg.AuthorName = "jacinta"
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = "jacinta@localhost"
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("GITHUB_TOKEN")
	}
	return &Repo{cfg: cfg}
}

// Dir is the working copy path.
func (r *Repo) Dir() string {
	return r.cfg.LocalPath
}

// EnsureCloned clones URL into LocalPath when LocalPath has no .git directory.
func (r *Repo) EnsureCloned(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.LocalPath == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "repository.local_path is required")
	}
	if _, err := os.Stat(filepath.Join(r.cfg.LocalPath, ".git")); err == nil {
		return nil
	}
	if r.cfg.URL == "" {
		return errors.New(errors.ErrCodeExecVCS, fmt.Sprintf("%s is not a git repository and no repository.url is configured", r.cfg.LocalPath))
	}
	if err := os.MkdirAll(filepath.Dir(r.cfg.LocalPath), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "create repository parent directory", err)
	}

	_, err := r.git(ctx, "", r.authArgs(r.cfg.URL, "clone", r.cfg.URL, r.cfg.LocalPath)...)
	return err
}

// CommitAndPush stages relPath, commits it with message and pushes HEAD.
func (r *Repo) CommitAndPush(ctx context.Context, relPath, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.git(ctx, r.cfg.LocalPath, "add", "--", relPath); err != nil {
		return err
	}
	if _, err := r.git(ctx, r.cfg.LocalPath,
		"-c", "user.name="+r.cfg.AuthorName,
		"-c", "user.email="+r.cfg.AuthorEmail,
		"commit", "-m", message, "--", relPath); err != nil {
		return err
	}

	refspec := "HEAD"
	if r.cfg.Branch != "" {
		refspec = "HEAD:" + r.cfg.Branch
	}
	remoteURL, _ := r.git(ctx, r.cfg.LocalPath, "remote", "get-url", r.cfg.Remote)
	_, err := r.git(ctx, r.cfg.LocalPath, r.authArgs(remoteURL, "push", r.cfg.Remote, refspec)...)
	return err
}

// HeadCommit returns the current HEAD commit hash.
func (r *Repo) HeadCommit(ctx context.Context) (string, error) {
	return r.git(ctx, r.cfg.LocalPath, "rev-parse", "HEAD")
}

// authArgs prefixes args with an Authorization header for HTTPS remotes when
// a token is available.
func (r *Repo) authArgs(remoteURL string, args ...string) []string {
	if r.cfg.Token == "" || !strings.HasPrefix(remoteURL, "https://") {
		return args
	}
	cred := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + r.cfg.Token))
	return append([]string{"-c", "http.extraHeader=Authorization: Basic " + cred}, args...)
}

func (r *Repo) git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Wrap(errors.ErrCodeExecVCS,
			fmt.Sprintf("git %s failed: %s", subcommand(args), strings.TrimSpace(r.redact(stderr.String()))), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (r *Repo) redact(s string) string {
	if r.cfg.Token == "" {
		return s
	}
	return strings.ReplaceAll(s, r.cfg.Token, "***")
}

func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-c" {
			i++
			continue
		}
		return args[i]
	}
	return ""
}
