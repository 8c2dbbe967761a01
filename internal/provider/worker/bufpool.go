package worker

import "sync"

// iovecPool pools the []unix.Iovec-shaped scratch slices used to
// submit a merged chain as one readv/writev, bucketed by chain length
// so the common unmerged (length-1) case doesn't pay for an allocation
// at all. Grounded on the teacher's internal/queue/pool.go size-bucketed
// sync.Pool shape, rebucketed here by iovec count instead of byte size
// since these slices never hold the I/O data itself.
var iovecPool = struct {
	small sync.Pool // len <= 4
	large sync.Pool // len <= constants.MaxCombine
}{
	small: sync.Pool{New: func() any { s := make([][]byte, 0, 4); return &s }},
	large: sync.Pool{New: func() any { s := make([][]byte, 0, 16); return &s }},
}

func getIovecScratch(n int) *[][]byte {
	if n <= 4 {
		return iovecPool.small.Get().(*[][]byte)
	}
	return iovecPool.large.Get().(*[][]byte)
}

func putIovecScratch(s *[][]byte) {
	*s = (*s)[:0]
	if cap(*s) <= 4 {
		iovecPool.small.Put(s)
	} else {
		iovecPool.large.Put(s)
	}
}
