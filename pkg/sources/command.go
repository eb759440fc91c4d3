package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"harvester/pkg/runner"
)

// DefaultCommandTimeout bounds an external crawler that sets no timeout.
const DefaultCommandTimeout = 10 * time.Minute

// maxTallyLine caps how much of an unterminated stdout line is kept.
const maxTallyLine = 4 << 10

// Command runs an external crawler process. Stdout and stderr both land in
// the transcript. If the last stdout line is a JSON object such as
// {"found":3,"persisted":2}, it becomes the job's counts.
type Command struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

type tally struct {
	Found     *int `json:"found"`
	Persisted *int `json:"persisted"`
}

// Run implements runner.Contract.
func (c *Command) Run(ctx context.Context, out io.Writer) (runner.Batch, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	last := &lastLine{}
	cmd.Stdout = io.MultiWriter(out, last)
	cmd.Stderr = out

	// Own process group, so cancellation takes down anything the crawler forked.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s: %w", c.Path, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s exited with code %d", c.Path, exitErr.ExitCode())
		}
		return nil, fmt.Errorf("start %s: %w", c.Path, err)
	}

	return parseTally(last.String()), nil
}

func parseTally(line string) runner.Partial {
	var t tally
	if line == "" || line[0] != '{' || json.Unmarshal([]byte(line), &t) != nil || t.Found == nil {
		return runner.Partial{}
	}
	p := runner.Partial{Found: *t.Found, Persisted: *t.Found}
	if t.Persisted != nil {
		p.Persisted = *t.Persisted
	}
	return p
}

// lastLine remembers the most recent non-blank line written to it.
type lastLine struct {
	partial []byte
	line    []byte
}

func (l *lastLine) Write(p []byte) (int, error) {
	l.partial = append(l.partial, p...)
	for {
		i := bytes.IndexByte(l.partial, '\n')
		if i < 0 {
			break
		}
		if s := bytes.TrimSpace(l.partial[:i]); len(s) > 0 {
			l.line = append(l.line[:0], s...)
		}
		l.partial = l.partial[i+1:]
	}
	if len(l.partial) > maxTallyLine {
		l.partial = l.partial[len(l.partial)-maxTallyLine:]
	}
	return len(p), nil
}

func (l *lastLine) String() string {
	if s := bytes.TrimSpace(l.partial); len(s) > 0 {
		return string(s)
	}
	return string(l.line)
}
