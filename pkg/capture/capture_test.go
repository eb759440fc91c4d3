package capture_test

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/pkg/capture"
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("console closed")
}

func TestCapture_MirrorsToOriginAndBuffer(t *testing.T) {
	var console bytes.Buffer
	c := capture.New(&console)

	out := c.Begin()
	fmt.Fprintln(out, "first")
	fmt.Fprintln(out, "second")
	transcript := c.End()

	assert.Equal(t, "first\nsecond\n", transcript)
	assert.Equal(t, "first\nsecond\n", console.String())
}

func TestCapture_WritesAfterEndReachOriginOnly(t *testing.T) {
	var console bytes.Buffer
	c := capture.New(&console)

	out := c.Begin()
	fmt.Fprint(out, "during")
	require.Equal(t, "during", c.End())

	fmt.Fprint(out, "after")
	assert.Equal(t, "duringafter", console.String())
	assert.False(t, c.Active())
}

func TestCapture_BeginTwiceReturnsSameWriter(t *testing.T) {
	c := capture.New(nil)

	first := c.Begin()
	second := c.Begin()
	fmt.Fprint(first, "a")
	fmt.Fprint(second, "b")

	assert.Same(t, first, second)
	assert.Equal(t, "ab", c.End())
}

func TestCapture_NewWindowStartsEmpty(t *testing.T) {
	c := capture.New(nil)

	fmt.Fprint(c.Begin(), "run one")
	require.Equal(t, "run one", c.End())

	fmt.Fprint(c.Begin(), "run two")
	assert.Equal(t, "run two", c.End())
}

func TestCapture_OriginErrorDoesNotLoseTranscript(t *testing.T) {
	c := capture.New(failingWriter{})

	out := c.Begin()
	n, err := fmt.Fprint(out, "kept")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, "kept", c.End())
	assert.EqualError(t, c.Err(), "console closed")
}

func TestCapture_ConcurrentWritesAreWhole(t *testing.T) {
	c := capture.New(nil)
	out := c.Begin()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = out.Write([]byte("line\n"))
		}()
	}
	wg.Wait()

	transcript := c.End()
	assert.Equal(t, 20*len("line\n"), len(transcript))
	assert.Equal(t, 20, bytes.Count([]byte(transcript), []byte("line\n")))
}
