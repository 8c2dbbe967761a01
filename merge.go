package aio

import "github.com/dbkit/aio/internal/constants"

// buildMergeRuns scans a backend's freshly-dequeued pending handles once
// and links adjacent compatible operations into merge chains (spec.md
// §4.2). It returns the chain heads in original order; non-head links
// are reachable by walking Handle.mergeWith.
//
// Only the backend that owns these handles calls this, from its own
// submission loop, and it only reads the handles and sets their
// mergeWith links; it takes no locks and changes no list membership.
func buildMergeRuns(items []*Handle, scatterGather bool) []*Handle {
	heads := make([]*Handle, 0, len(items))
	i := 0
	for i < len(items) {
		head := items[i]
		tail := head
		chainLen := 1
		j := i + 1
		for j < len(items) && chainLen < constants.MaxCombine {
			cur := items[j]
			if !canMerge(tail, cur, scatterGather) {
				break
			}
			tail.mergeWith = cur
			tail = cur
			chainLen++
			j++
		}
		if chainLen > 1 {
			head.flags |= flagMerge
		}
		heads = append(heads, head)
		i = j
	}
	return heads
}

// canMerge reports whether cur may be appended to a chain currently
// ending at tail (spec.md §4.2).
func canMerge(tail, cur *Handle, scatterGather bool) bool {
	if tail.op != cur.op {
		return false
	}
	if tail.flags.has(flagRetry) || cur.flags.has(flagRetry) {
		return false
	}
	if tail.payload.AlreadyDone != 0 || cur.payload.AlreadyDone != 0 {
		return false
	}
	if tail.payload.FD != cur.payload.FD {
		return false
	}
	if tail.payload.Offset+int64(tail.payload.NBytes) != cur.payload.Offset {
		return false
	}
	if !scatterGather {
		tailBufEnd := bufEndAddr(tail.payload.Buf)
		curBufStart := bufStartAddr(cur.payload.Buf)
		if tailBufEnd != curBufStart {
			return false
		}
	}
	switch tail.op {
	case OpReadBuffer:
		if tail.payload.ReadMode != cur.payload.ReadMode {
			return false
		}
	case OpWriteWAL, OpWriteGeneric:
		if tail.payload.NoReorder || cur.payload.NoReorder {
			return false
		}
	}
	return true
}

// mergeChain returns the handles in a head's chain, head first.
func mergeChain(head *Handle) []*Handle {
	chain := []*Handle{head}
	for h := head.mergeWith; h != nil; h = h.mergeWith {
		chain = append(chain, h)
	}
	return chain
}

// bufStartAddr/bufEndAddr give the first/one-past-last byte address of a
// buffer, used only for the contiguous-memory merge check on providers
// without scatter/gather; two empty buffers never compare equal so
// zero-length slices never merge, matching the data-carrying ops this
// check applies to.
func bufStartAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return addrOf(&b[0])
}

func bufEndAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 1 // sentinel that can never equal a real start address of 0
	}
	return addrOf(&b[0]) + uintptr(len(b))
}
