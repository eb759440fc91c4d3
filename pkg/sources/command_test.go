package sources

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/pkg/capture"
	"harvester/pkg/models"
	"harvester/pkg/runner"
)

func shell(script string) *Command {
	return &Command{Path: "/bin/sh", Args: []string{"-c", script}, Timeout: 5 * time.Second}
}

func TestCommand_ReadsTally(t *testing.T) {
	var out bytes.Buffer
	batch, err := shell(`echo "crawling"; echo "oops" >&2; echo '{"found":3,"persisted":2}'`).Run(context.Background(), &out)
	require.NoError(t, err)

	assert.Equal(t, runner.Partial{Found: 3, Persisted: 2}, batch)
	assert.Contains(t, out.String(), "crawling\n")
	assert.Contains(t, out.String(), "oops\n")
}

func TestCommand_FoundOnlyCountsAsPersisted(t *testing.T) {
	batch, err := shell(`printf '{"found":4}'`).Run(context.Background(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, runner.Partial{Found: 4, Persisted: 4}, batch)
}

func TestCommand_NoTally(t *testing.T) {
	batch, err := shell(`echo done; echo`).Run(context.Background(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, runner.Partial{}, batch)
}

func TestCommand_Env(t *testing.T) {
	c := shell(`echo "{\"found\":$HARVEST_COUNT}"`)
	c.Env = []string{"HARVEST_COUNT=7"}

	batch, err := c.Run(context.Background(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 7, batch.Len())
}

func TestCommand_Failures(t *testing.T) {
	t.Run("non-zero exit", func(t *testing.T) {
		_, err := shell(`exit 3`).Run(context.Background(), io.Discard)
		assert.EqualError(t, err, "/bin/sh exited with code 3")
	})

	t.Run("missing binary", func(t *testing.T) {
		c := &Command{Path: "/nonexistent/crawler"}
		_, err := c.Run(context.Background(), io.Discard)
		assert.ErrorContains(t, err, "start /nonexistent/crawler")
	})

	t.Run("timeout", func(t *testing.T) {
		c := shell(`sleep 10`)
		c.Timeout = 100 * time.Millisecond

		start := time.Now()
		_, err := c.Run(context.Background(), io.Discard)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestLastLine(t *testing.T) {
	var l lastLine
	_, _ = l.Write([]byte("first\nsec"))
	_, _ = l.Write([]byte("ond\n\n  \n"))
	assert.Equal(t, "second", l.String())

	_, _ = l.Write([]byte("tail without newline"))
	assert.Equal(t, "tail without newline", l.String())
}

func TestParseTally(t *testing.T) {
	assert.Equal(t, runner.Partial{}, parseTally(""))
	assert.Equal(t, runner.Partial{}, parseTally("found 3"))
	assert.Equal(t, runner.Partial{}, parseTally(`{"persisted":1}`))
	assert.Equal(t, runner.Partial{}, parseTally(`{"found":`))
	assert.Equal(t, runner.Partial{Found: 2, Persisted: 0}, parseTally(`{"found":2,"persisted":0}`))
}

func TestRegistry_CommandSource(t *testing.T) {
	reg, err := ParseRegistry([]byte(`
sources:
  - name: legacy-spider
    kind: command
    command: ["/bin/sh", "-c", "echo '{\"found\":1}'"]
`))
	require.NoError(t, err)

	d := reg.Sources[0]
	assert.Equal(t, KindCommand, d.Kind)
	assert.Equal(t, `/bin/sh -c echo '{"found":1}'`, d.Target)

	r := runner.New(capture.New(io.Discard))
	require.NoError(t, reg.Register(r, nil, utc8))

	run, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Results, 1)
	assert.Equal(t, models.ResultSucceeded, run.Results[0].Status)
	assert.Equal(t, 1, run.Results[0].FoundCount)
}

func TestParseRegistry_CommandRequired(t *testing.T) {
	_, err := ParseRegistry([]byte("sources:\n  - name: x\n    kind: command\n"))
	assert.ErrorIs(t, err, ErrInvalidSource)
}
