package aio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func adjacentWriteHandles(n int, bufSize uint32) []*Handle {
	buf := make([]byte, int(bufSize)*n)
	out := make([]*Handle, n)
	for i := 0; i < n; i++ {
		h := newHandle(int32(i))
		h.op = OpWriteGeneric
		h.payload = payload{
			FD:     5,
			Offset: int64(i) * int64(bufSize),
			NBytes: bufSize,
			Buf:    buf[i*int(bufSize) : (i+1)*int(bufSize)],
		}
		out[i] = h
	}
	return out
}

func TestBuildMergeRunsCombinesAdjacentWrites(t *testing.T) {
	items := adjacentWriteHandles(3, 4096)
	heads := buildMergeRuns(items, true)

	require.Len(t, heads, 1)
	require.True(t, heads[0].flags.has(flagMerge))

	chain := mergeChain(heads[0])
	require.Len(t, chain, 3)
	require.Same(t, items[0], chain[0])
	require.Same(t, items[2], chain[2])
}

func TestBuildMergeRunsSplitsOnDifferentFd(t *testing.T) {
	items := adjacentWriteHandles(2, 4096)
	items[1].payload.FD = 9

	heads := buildMergeRuns(items, true)
	require.Len(t, heads, 2)
	require.False(t, heads[0].flags.has(flagMerge))
}

func TestBuildMergeRunsSplitsOnGapInOffset(t *testing.T) {
	items := adjacentWriteHandles(2, 4096)
	items[1].payload.Offset += 4096 // leave a hole

	heads := buildMergeRuns(items, true)
	require.Len(t, heads, 2)
}

func TestBuildMergeRunsRequiresContiguousBuffersWithoutScatterGather(t *testing.T) {
	items := adjacentWriteHandles(2, 4096)
	items[1].payload.Buf = make([]byte, 4096) // same offsets, but a detached buffer

	heads := buildMergeRuns(items, false)
	require.Len(t, heads, 2, "without scatter/gather support a merge also requires contiguous memory")
}

func TestBuildMergeRunsCapsAtMaxCombine(t *testing.T) {
	items := adjacentWriteHandles(20, 512)
	heads := buildMergeRuns(items, true)

	require.Len(t, heads, 2, "20 mergeable handles split into two chains once the 16-member cap is hit")
	require.Len(t, mergeChain(heads[0]), 16)
	require.Len(t, mergeChain(heads[1]), 4)
}

func TestCanMergeRejectsDifferentOp(t *testing.T) {
	items := adjacentWriteHandles(2, 4096)
	items[1].op = OpReadBuffer
	require.False(t, canMerge(items[0], items[1], true))
}

func TestCanMergeRejectsRetryFlagged(t *testing.T) {
	items := adjacentWriteHandles(2, 4096)
	items[0].flags |= flagRetry
	require.False(t, canMerge(items[0], items[1], true))
}

func TestUncombineSplitsSuccessInRequestOrder(t *testing.T) {
	items := adjacentWriteHandles(2, 100)
	chain := []*Handle{items[0], items[1]}

	uncombine(chain, 150)
	require.EqualValues(t, 100, items[0].result)
	require.EqualValues(t, 50, items[1].result)
}

func TestUncombineAppliesHardFailureToEveryMember(t *testing.T) {
	items := adjacentWriteHandles(2, 100)
	chain := []*Handle{items[0], items[1]}

	uncombine(chain, -5)
	require.EqualValues(t, -5, items[0].result)
	require.EqualValues(t, -5, items[1].result)
}
