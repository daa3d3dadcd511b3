package sync

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alfredjeanlab/gridpanel/internal/store/memory"
)

// newRemote creates a bare repo with one commit on main and returns its path
// and a configured clone of it.
func newRemote(t *testing.T) (remote, clone string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remote = t.TempDir()
	run(t, remote, "git", "init", "--bare")
	run(t, remote, "git", "symbolic-ref", "HEAD", "refs/heads/main")
	clone = cloneOf(t, remote)

	if err := os.WriteFile(filepath.Join(clone, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	run(t, clone, "git", "add", ".")
	run(t, clone, "git", "commit", "-m", "init")
	run(t, clone, "git", "push", "origin", "main")
	return remote, clone
}

func cloneOf(t *testing.T, remote string) string {
	t.Helper()
	work := t.TempDir()
	run(t, work, "git", "clone", remote, "repo")
	dir := filepath.Join(work, "repo")
	run(t, dir, "git", "config", "user.email", "grids@example.com")
	run(t, dir, "git", "config", "user.name", "Grid Sync")
	run(t, dir, "git", "symbolic-ref", "HEAD", "refs/heads/main")
	return dir
}

func commitCount(t *testing.T, dir string) int {
	t.Helper()
	n, err := strconv.Atoi(strings.TrimSpace(output(t, dir, "git", "rev-list", "--count", "HEAD")))
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestGitDestination_Write(t *testing.T) {
	_, clone := newRemote(t)
	ctx := context.Background()

	for _, tc := range []struct {
		name    string
		file    string
		data    string
		commits int
	}{
		{"First", "gridpanel-configs.jsonl", `{"version":"1","type":"header"}` + "\n", 2},
		{"Unchanged", "gridpanel-configs.jsonl", `{"version":"1","type":"header"}` + "\n", 2},
		{"Changed", "gridpanel-configs.jsonl", `{"version":"1","type":"header","config_count":1}` + "\n", 3},
		{"SubDirectory", "data/gridpanel-configs.jsonl", `{"type":"header"}` + "\n", 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dest := NewGitDestination(clone, tc.file, "main")
			if err := dest.Write(ctx, []byte(tc.data)); err != nil {
				t.Fatalf("write: %v", err)
			}
			got, err := os.ReadFile(filepath.Join(clone, tc.file))
			if err != nil {
				t.Fatalf("read file: %v", err)
			}
			if string(got) != tc.data {
				t.Fatalf("file content = %q, want %q", got, tc.data)
			}
			if n := commitCount(t, clone); n != tc.commits {
				t.Fatalf("commits = %d, want %d", n, tc.commits)
			}
		})
	}
}

func TestGitDestination_RestoreFromOtherClone(t *testing.T) {
	remote, clone := newRemote(t)
	ctx := context.Background()

	src := memory.New()
	setConfigs(t, src, map[string]string{"books:columns": `[{"name":"title","width":120}]`})
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, src, &buf); err != nil {
		t.Fatal(err)
	}
	if err := NewGitDestination(clone, "gridpanel-configs.jsonl", "main").Write(ctx, buf.Bytes()); err != nil {
		t.Fatalf("write: %v", err)
	}

	other := NewGitDestination(cloneOf(t, remote), "gridpanel-configs.jsonl", "main")
	dst := memory.New()
	n, err := Restore(ctx, dst, other)
	if err != nil || n != 1 {
		t.Fatalf("Restore = %d, %v", n, err)
	}
	c, err := dst.GetConfig(ctx, "books:columns")
	if err != nil || string(c.Value) != `[{"name":"title","width":120}]` {
		t.Fatalf("restored config = %v, %v", c, err)
	}
}

func TestGitDestination_ReadMissingFile(t *testing.T) {
	_, clone := newRemote(t)
	if _, err := NewGitDestination(clone, "missing.jsonl", "main").Read(context.Background()); err == nil {
		t.Fatal("expected error for a missing snapshot")
	}
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	output(t, dir, name, args...)
}

func output(t *testing.T, dir string, name string, args ...string) string {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v failed: %v\n%s", name, args, err, out)
	}
	return string(out)
}
