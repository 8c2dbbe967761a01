package aio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufAdvancesPastAlreadyDone(t *testing.T) {
	h := newHandle(0)
	h.payload = payload{Buf: []byte("hello world")}

	require.Equal(t, []byte("hello world"), h.Buf())

	h.payload.AlreadyDone = 6
	require.Equal(t, []byte("world"), h.Buf())

	h.payload.AlreadyDone = 99
	require.Nil(t, h.Buf(), "AlreadyDone past the buffer's length must not slice out of range")
}

func TestChainReturnsMergeChainHeadFirst(t *testing.T) {
	h1, h2, h3 := newHandle(0), newHandle(1), newHandle(2)
	h1.mergeWith = h2
	h2.mergeWith = h3

	require.Equal(t, []*Handle{h1, h2, h3}, h1.Chain())
	require.Equal(t, []*Handle{h2, h3}, h2.Chain())
}

func TestScratchRoundTrips(t *testing.T) {
	h := newHandle(0)
	require.Nil(t, h.Scratch())
	h.SetScratch(42)
	require.Equal(t, 42, h.Scratch())
}

func TestIsDoneTrueOnDoneOrSharedFailed(t *testing.T) {
	h := newHandle(0)
	require.False(t, h.IsDone())

	h.flags |= flagSharedFailed
	require.True(t, h.IsDone(), "a soft failure awaiting Retry must not block a provider's WaitOne forever")

	h.flags = 0
	h.state = stateDone
	require.True(t, h.IsDone())
}

func TestSetRingIDVisibleThroughRingID(t *testing.T) {
	h := newHandle(0)
	h.SetRingID(3)
	require.Equal(t, 3, h.RingID())
}
