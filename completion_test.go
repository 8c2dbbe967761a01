package aio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalCallbackFiresOnceHandleReachesLocalCompleted(t *testing.T) {
	a, _ := newTestAIO(testConfig(4), Collaborators{})
	b, err := a.NewBackend()
	require.NoError(t, err)

	var gotCtx any
	calls := 0
	h := a.Acquire(b)
	a.OnCompletionLocal(h, func(h *Handle, ctx any) {
		calls++
		gotCtx = ctx
	}, "marker")
	a.StartNop(h)

	require.NoError(t, a.Wait(h))
	require.Equal(t, 1, calls)
	require.Equal(t, "marker", gotCtx)
	require.True(t, h.flags.has(flagLocalCallbackCalled))
}

func TestCompletionNotifiesBufferHooksOnReadAndWrite(t *testing.T) {
	mock := NewMockCollaborators()
	a, sp := newTestAIO(testConfig(4), mock.AsCollaborators())
	sp.setResult(16) // full transfer for every op this test stages
	b, err := a.NewBackend()
	require.NoError(t, err)

	rbuf := make([]byte, 16)
	rh := a.Acquire(b)
	a.StartReadBuffer(rh, RelationTag{}, 3, 0, uint32(len(rbuf)), rbuf, 9, ReadZeroOnError)
	require.NoError(t, a.Wait(rh))

	wbuf := make([]byte, 16)
	wh := a.Acquire(b)
	a.StartWriteBuffer(wh, RelationTag{}, 3, 0, uint32(len(wbuf)), wbuf, 5)
	require.NoError(t, a.Wait(wh))

	reads := mock.ReadCompletes()
	require.Len(t, reads, 1)
	require.EqualValues(t, 9, reads[0].BufferNo)
	require.Equal(t, ReadZeroOnError, reads[0].Mode)
	require.False(t, reads[0].Failed)

	writes := mock.WriteCompletes()
	require.Len(t, writes, 1)
	require.EqualValues(t, 5, writes[0].BufferNo)
	require.False(t, writes[0].Failed)
}

func TestCompletionNotifiesWALHooks(t *testing.T) {
	mock := NewMockCollaborators()
	a, sp := newTestAIO(testConfig(4), mock.AsCollaborators())
	sp.setResult(16)
	b, err := a.NewBackend()
	require.NoError(t, err)

	buf := make([]byte, 16)
	h := a.Acquire(b)
	a.StartWriteWAL(h, 3, 1, 0, uint32(len(buf)), buf, false, 77)
	require.NoError(t, a.Wait(h))
	require.Equal(t, []WALWriteComplete{{WriteNo: 77}}, mock.WALWrites())

	fh := a.Acquire(b)
	a.StartFsyncWAL(fh, 3, 1, false, false, 88)
	require.NoError(t, a.Wait(fh))
	require.Equal(t, []FlushComplete{{FlushNo: 88}}, mock.FlushCompletes())
}

func TestReleaseRemovesHandleFromOwnerOutstandingList(t *testing.T) {
	a, _ := newTestAIO(testConfig(1), Collaborators{})
	b, err := a.NewBackend()
	require.NoError(t, err)

	h := a.Acquire(b)
	require.Equal(t, 1, b.outstanding.Len())

	a.Release(h)
	require.Equal(t, 0, b.outstanding.Len())
	require.False(t, h.userReferenced)
}

func TestReleaseFullyRecyclesACompletedHandle(t *testing.T) {
	a, _ := newTestAIO(testConfig(1), Collaborators{})
	b, err := a.NewBackend()
	require.NoError(t, err)

	h := a.Acquire(b)
	a.StartNop(h)
	require.NoError(t, a.Wait(h))
	require.False(t, h.systemReferenced, "the shared callback clears system_referenced once the handle is finished")

	gen := h.Generation()
	a.Release(h)
	require.EqualValues(t, 0, a.slab.Used(), "Release on an already-finished handle must recycle it immediately")
	require.NotEqual(t, gen, h.Generation())
}

func TestRecycleForciblyReturnsAUserHeldHandleToTheSlab(t *testing.T) {
	a, _ := newTestAIO(testConfig(1), Collaborators{})
	b, err := a.NewBackend()
	require.NoError(t, err)

	h := a.Acquire(b)
	a.StartNop(h)
	require.NoError(t, a.Wait(h))
	require.EqualValues(t, 1, a.slab.Used(), "Wait alone doesn't drop the caller's own user reference")

	gen := h.Generation()
	a.Recycle(h)
	require.EqualValues(t, 0, a.slab.Used())
	require.NotEqual(t, gen, h.Generation())
}

func TestAbandonedInFlightHandleAutoRecyclesOnCompletion(t *testing.T) {
	a, sp := newTestAIO(testConfig(1), Collaborators{})
	sp.setResult(16)
	b, err := a.NewBackend()
	require.NoError(t, err)

	buf := make([]byte, 16)
	h := a.Acquire(b)
	a.StartWriteGeneric(h, 3, 0, uint32(len(buf)), buf, false)

	// Abandon the handle before it's even submitted: nobody will ever
	// call Wait or Recycle on it again.
	a.Release(h)
	require.EqualValues(t, 1, a.slab.Used(), "still pending, so Release can't recycle yet")

	a.SubmitPending(b)
	require.EqualValues(t, 0, a.slab.Used(), "an abandoned in-flight handle must be fully recycled on completion, not stranded on foreign_completed")
}
