package runner

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

type nilLen struct{ items []int }

func (n *nilLen) Len() int { return len(n.items) }

type brokenErr struct{ msg string }

func (e *brokenErr) Error() string { return e.msg }

func TestSupervise_Success(t *testing.T) {
	o := Supervise(context.Background(), ContractFunc(func(ctx context.Context, out io.Writer) (Batch, error) {
		return Items[int]{1, 2, 3}, nil
	}), io.Discard)

	assert.False(t, o.Failed())
	assert.Equal(t, 3, o.Found)
	assert.Equal(t, 3, o.Persisted)
}

func TestSupervise_ReturnedError(t *testing.T) {
	o := Supervise(context.Background(), ContractFunc(func(ctx context.Context, out io.Writer) (Batch, error) {
		return Items[int]{1}, errors.New("timeout")
	}), io.Discard)

	assert.True(t, o.Failed())
	assert.EqualError(t, o.Err, "timeout")
	assert.Zero(t, o.Found)
	assert.Nil(t, o.Stack)
}

func TestSupervise_PanicInLen(t *testing.T) {
	o := Supervise(context.Background(), ContractFunc(func(ctx context.Context, out io.Writer) (Batch, error) {
		var b *nilLen
		return b, nil
	}), io.Discard)

	assert.True(t, o.Failed())
	var pe *PanicError
	assert.ErrorAs(t, o.Err, &pe)
	assert.NotEmpty(t, o.Stack)
}

func TestErrorMessage_TypedNilError(t *testing.T) {
	var e *brokenErr
	assert.Equal(t, "*runner.brokenErr", errorMessage(e))
}

func TestCounts(t *testing.T) {
	found, persisted := counts(nil)
	assert.Zero(t, found)
	assert.Zero(t, persisted)

	found, persisted = counts(Partial{Found: 5, Persisted: 2})
	assert.Equal(t, 5, found)
	assert.Equal(t, 2, persisted)

	found, persisted = counts(Partial{Found: -1, Persisted: -3})
	assert.Zero(t, found)
	assert.Zero(t, persisted)
}
