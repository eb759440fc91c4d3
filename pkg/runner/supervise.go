package runner

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
)

// Outcome is the typed result of a supervised job call: either the batch
// counts or the description of what went wrong.
type Outcome struct {
	Found     int
	Persisted int
	Err       error
	Stack     []byte // set only when the job panicked
}

// Failed reports whether the call returned an error or panicked.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// PanicError wraps a value recovered from a panicking job.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Supervise invokes the contract once and converts every failure mode,
// returned error or panic, into an Outcome. Counting the batch happens
// inside the same boundary since Len is job code too.
func Supervise(ctx context.Context, c Contract, out io.Writer) (o Outcome) {
	defer func() {
		if v := recover(); v != nil {
			o = Outcome{Err: &PanicError{Value: v}, Stack: debug.Stack()}
		}
	}()

	batch, err := c.Run(ctx, out)
	if err != nil {
		return Outcome{Err: err}
	}
	found, persisted := counts(batch)
	return Outcome{Found: found, Persisted: persisted}
}
