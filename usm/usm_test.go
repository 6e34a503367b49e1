package usm

import (
	"testing"

	"github.com/gousm/gousm/target"
	"github.com/stretchr/testify/require"
)

// newTestQueue creates a queue on a simulated GPU offload device.
func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	cfg := target.DefaultConfig()
	device := NewDevice(cfg[target.BackendOffloadGPU], 0)
	q, err := device.NewQueue()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, q.Destroy()) })
	return q
}

func TestQueueIdentity(t *testing.T) {
	q1 := newTestQueue(t)
	q2 := newTestQueue(t)

	require.True(t, q1.Equal(q1))
	require.False(t, q1.Equal(q2))
	require.False(t, q1.Equal(nil))
	require.NotEqual(t, q1.ID(), q2.ID())
}

func TestQueueDestroy(t *testing.T) {
	cfg := target.DefaultConfig()
	q, err := NewDevice(cfg[target.BackendOffloadCPU], 0).NewQueue()
	require.NoError(t, err)
	require.True(t, q.IsValid())

	require.NoError(t, q.Destroy())
	require.False(t, q.IsValid())
	// Destroy is idempotent.
	require.NoError(t, q.Destroy())

	_, err = q.AllocMemory(MemShared, 64)
	require.ErrorIs(t, err, ErrInvalidQueueType)
}

func TestNonAddressableDevice(t *testing.T) {
	desc := target.DefaultConfig()[target.BackendOffloadGPU]
	desc.Addressable = false
	_, err := NewDevice(desc, 0).NewQueue()
	require.Error(t, err)
}
