package aio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWaitCompletesNop(t *testing.T) {
	a, _ := newTestAIO(testConfig(8), Collaborators{})
	b, err := a.NewBackend()
	require.NoError(t, err)

	h := a.Acquire(b)
	a.StartNop(h)
	require.NoError(t, a.Wait(h))
	require.Equal(t, stateDone, h.state)
}

func TestWaitSurfacesHardFailureAsError(t *testing.T) {
	a, sp := newTestAIO(testConfig(8), Collaborators{})
	sp.setResult(-5) // -EIO

	b, err := a.NewBackend()
	require.NoError(t, err)

	buf := make([]byte, 16)
	h := a.Acquire(b)
	a.StartWriteGeneric(h, 3, 0, uint32(len(buf)), buf, false)

	err = a.Wait(h)
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeHardFailure))
	require.True(t, h.flags.has(flagHardFailure))
}

func TestWaitRetriesShortBufferReadThenSucceeds(t *testing.T) {
	a, sp := newTestAIO(testConfig(8), Collaborators{})

	b, err := a.NewBackend()
	require.NoError(t, err)

	buf := make([]byte, 100)
	h := a.Acquire(b)
	a.StartReadBuffer(h, RelationTag{}, 3, 0, uint32(len(buf)), buf, 1, ReadNormal)
	sp.setResultSequence(h.Index(), 40, 60) // short, then the remainder

	require.NoError(t, a.Wait(h))
	require.Equal(t, stateDone, h.state)
	require.True(t, h.flags.has(flagRetry))
}

func TestWaitRefRejectsStaleReference(t *testing.T) {
	a, _ := newTestAIO(testConfig(8), Collaborators{})
	b, err := a.NewBackend()
	require.NoError(t, err)

	h := a.Acquire(b)
	ref := Ref(h)
	a.StartNop(h)
	require.NoError(t, a.Wait(h))
	a.Release(h)

	err = a.WaitRef(ref, true)
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeStaleReference))
}
