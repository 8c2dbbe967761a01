package aio

import "unsafe"

// addrOf returns the numeric address of a byte, used only to compare
// whether two buffers are memory-contiguous when merging I/Os on a
// provider without scatter/gather support (spec.md §4.2). The pointer
// itself is never dereferenced from the returned value.
func addrOf(p *byte) uintptr {
	return uintptr(unsafe.Pointer(p))
}
