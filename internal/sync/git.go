package sync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// commitMessage is used for every snapshot commit.
const commitMessage = "sync: update grid config export"

// GitDestination keeps the config snapshot as a file in a local clone and
// pushes it to origin.
type GitDestination struct {
	repo   string // local clone
	file   string // snapshot path within the repo
	branch string
}

// NewGitDestination returns a destination writing file on branch of the
// existing clone at repo.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch}
}

func (d *GitDestination) path() string { return filepath.Join(d.repo, d.file) }

// sync checks out the branch and fast-forwards it. The pull may fail while
// the remote branch does not exist yet, so its error is ignored.
func (d *GitDestination) sync(ctx context.Context) error {
	if err := d.git(ctx, "checkout", d.branch); err != nil {
		return fmt.Errorf("git checkout %s: %w", d.branch, err)
	}
	_ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)
	return nil
}

// Write replaces the snapshot file and commits and pushes it when it changed.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if err := d.sync(ctx); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.path()), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(d.path(), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", d.file, err)
	}

	if err := d.git(ctx, "add", d.file); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	// diff --cached --quiet exits 0 when nothing is staged.
	if d.git(ctx, "diff", "--cached", "--quiet") == nil {
		return nil
	}
	for _, step := range [][]string{
		{"commit", "-m", commitMessage},
		{"push", "origin", d.branch},
	} {
		if err := d.git(ctx, step...); err != nil {
			return fmt.Errorf("git %s: %w", step[0], err)
		}
	}
	return nil
}

// Read returns the snapshot file as of the remote branch head.
func (d *GitDestination) Read(ctx context.Context) ([]byte, error) {
	if err := d.sync(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.path())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.file, err)
	}
	return data, nil
}

// git runs a git subcommand in the clone. Its output is included in the
// error when it fails.
func (d *GitDestination) git(ctx context.Context, args ...string) error {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
