// Package hooks runs the shell commands a grid configures in on_data_changed
// after its rows change.
package hooks

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/alfredjeanlab/gridpanel/internal/events"
)

// Bounds for a single hook run.
const (
	DefaultTimeout = 30 * time.Second
	MaxTimeout     = 5 * time.Minute
)

// Command is one on_data_changed entry bound to the event that triggered it.
type Command struct {
	Line    string
	Event   events.DataChanged
	Dir     string
	Timeout time.Duration
}

// Result is the outcome of one Command.
type Result struct {
	Output   string
	Err      error
	Duration time.Duration
}

func (c Command) timeout() time.Duration {
	switch {
	case c.Timeout <= 0:
		return DefaultTimeout
	case c.Timeout > MaxTimeout:
		return MaxTimeout
	}
	return c.Timeout
}

// Env lists the variables describing the event, as passed to the command.
func (c Command) Env() []string {
	return []string{
		"GRIDPANEL_GRID=" + c.Event.Grid,
		"GRIDPANEL_ENDPOINT=" + c.Event.Endpoint,
		"GRIDPANEL_SESSION=" + c.Event.Session,
	}
}

// Run executes the line with "sh -c". The output is the trimmed stdout, or
// stderr when the command printed nothing to stdout.
func (c Command) Run(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", c.Line) //nolint:gosec // lines come from the operator's grids file
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if c.Dir != "" {
		if fi, err := os.Stat(c.Dir); err == nil && fi.IsDir() {
			cmd.Dir = c.Dir
		}
	}
	cmd.Env = append(os.Environ(), c.Env()...)

	start := time.Now()
	err := cmd.Run()
	res := Result{Err: err, Duration: time.Since(start), Output: strings.TrimSpace(stdout.String())}
	if res.Output == "" {
		res.Output = strings.TrimSpace(stderr.String())
	}
	return res
}
