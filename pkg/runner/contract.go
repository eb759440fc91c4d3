package runner

import (
	"context"
	"io"
)

// Batch is the collection a job hands back after a successful run.
type Batch interface {
	Len() int
}

// PersistedCounter is implemented by batches that know how many of their
// items actually reached the store. Batches without it count every item
// as persisted.
type PersistedCounter interface {
	PersistedLen() int
}

// Contract is what every collection job satisfies. Run is called exactly
// once per pass; anything written to out becomes part of the transcript.
type Contract interface {
	Run(ctx context.Context, out io.Writer) (Batch, error)
}

// ContractFunc adapts a function to the Contract interface.
type ContractFunc func(ctx context.Context, out io.Writer) (Batch, error)

// Run implements Contract.
func (f ContractFunc) Run(ctx context.Context, out io.Writer) (Batch, error) {
	return f(ctx, out)
}

// Items is a plain slice batch.
type Items[T any] []T

// Len implements Batch.
func (i Items[T]) Len() int {
	return len(i)
}

// Partial reports found and persisted counts separately, for jobs whose
// store accepted only part of what was collected.
type Partial struct {
	Found     int
	Persisted int
}

// Len implements Batch.
func (p Partial) Len() int {
	return p.Found
}

// PersistedLen implements PersistedCounter.
func (p Partial) PersistedLen() int {
	return p.Persisted
}

func counts(b Batch) (found, persisted int) {
	if b == nil {
		return 0, 0
	}
	found = b.Len()
	persisted = found
	if pc, ok := b.(PersistedCounter); ok {
		persisted = pc.PersistedLen()
	}
	if found < 0 {
		found = 0
	}
	if persisted < 0 {
		persisted = 0
	}
	return found, persisted
}
