package settlement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-pos/internal/settlement"
)

func TestMemoryLockerLockAllIsAllOrNothing(t *testing.T) {
	m := settlement.NewMemoryLocker()
	ok, err := m.Lock(ctx, "table_lock:b", "other")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.LockAll(ctx, []string{"table_lock:a", "table_lock:b"}, "me")
	require.NoError(t, err)
	assert.False(t, ok)
	held, _ := m.IsLocked(ctx, "table_lock:a")
	assert.False(t, held, "no partial acquisition")

	require.NoError(t, m.Unlock(ctx, "table_lock:b", "other"))
	ok, err = m.LockAll(ctx, []string{"table_lock:a", "table_lock:b"}, "me")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.UnlockAll(ctx, []string{"table_lock:a", "table_lock:b"}, "someone-else"))
	held, _ = m.IsLocked(ctx, "table_lock:a")
	assert.True(t, held, "only the owner releases")

	require.NoError(t, m.UnlockAll(ctx, []string{"table_lock:a", "table_lock:b"}, "me"))
	held, _ = m.IsLocked(ctx, "table_lock:b")
	assert.False(t, held)
}
