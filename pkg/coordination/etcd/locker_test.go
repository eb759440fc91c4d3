package etcd

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/pkg/coordination"
)

// Needs a live cluster: TEST_ETCD_ENDPOINTS=localhost:2379 go test ./pkg/coordination/etcd/
func TestLocker_SecondHolderIsRejected(t *testing.T) {
	raw := os.Getenv("TEST_ETCD_ENDPOINTS")
	if raw == "" {
		t.Skip("TEST_ETCD_ENDPOINTS not set")
	}
	endpoints := strings.Split(raw, ",")
	key := "/harvester/test-lock/" + uuid.NewString()

	first, err := NewLocker(endpoints, key, 5)
	require.NoError(t, err)
	defer first.Close()

	second, err := NewLocker(endpoints, key, 5)
	require.NoError(t, err)
	defer second.Close()

	ctx := context.Background()
	unlock, err := first.TryLock(ctx)
	require.NoError(t, err)

	_, err = second.TryLock(ctx)
	assert.ErrorIs(t, err, coordination.ErrLocked)

	require.NoError(t, unlock(ctx))

	unlock2, err := second.TryLock(ctx)
	require.NoError(t, err)
	assert.NoError(t, unlock2(ctx))
}

func TestNewLocker_RequiresEndpoints(t *testing.T) {
	_, err := NewLocker(nil, "/harvester/run-lock", 5)
	assert.Error(t, err)
}
