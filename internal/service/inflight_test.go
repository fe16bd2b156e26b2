package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInflightSetDedup(t *testing.T) {
	t.Parallel()

	s := newInflightSet(5)
	require.True(t, s.TryAcquire("a"))
	require.False(t, s.TryAcquire("a"), "same id must not be admitted twice")

	s.Release("a")
	require.True(t, s.TryAcquire("a"))
}

func TestInflightSetCeiling(t *testing.T) {
	t.Parallel()

	s := newInflightSet(2)
	require.True(t, s.TryAcquire("a"))
	require.True(t, s.TryAcquire("b"))
	require.False(t, s.TryAcquire("c"), "ceiling of 2 must hold")

	require.Equal(t, 2, s.Len())
	require.Equal(t, 0, s.Free())

	s.Release("a")
	require.Equal(t, 1, s.Free())
	require.True(t, s.TryAcquire("c"))
}

func TestInflightSetReaddIgnoresCeiling(t *testing.T) {
	t.Parallel()

	s := newInflightSet(2)
	require.True(t, s.TryAcquire("a"))
	require.True(t, s.TryAcquire("b"))

	// A retrying goroutine dropped its dedup entry but still owns its slot.
	s.Release("a")
	require.True(t, s.TryAcquire("c"), "released slot is available")
	require.True(t, s.Readd("a"), "retry re-registration bypasses the ceiling")
	require.False(t, s.Readd("a"), "but not the dedup check")
}

func TestInflightSetMinimumCapacity(t *testing.T) {
	t.Parallel()

	s := newInflightSet(0)
	require.True(t, s.TryAcquire("a"))
	require.False(t, s.TryAcquire("b"))
}
