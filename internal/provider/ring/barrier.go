//go:build linux && cgo

package ring

/*
#include <stdint.h>

static inline void sfence_impl(void) {
    __asm__ __volatile__("sfence" ::: "memory");
}

static inline void mfence_impl(void) {
    __asm__ __volatile__("mfence" ::: "memory");
}
*/
import "C"

// sfence issues a store fence, ensuring every SQE store made by submit
// is globally visible before the batch is handed to the kernel with
// Submit (spec.md §4.6, §5 "memory visibility across the shared ring").
func sfence() {
	C.sfence_impl()
}

// mfence issues a full memory fence around the SQ tail bump that
// follows a batched Submit, matching the fence the kernel's own
// io_uring_enter expects userspace to have issued first.
func mfence() {
	C.mfence_impl()
}
