//go:build !linux || !cgo

package ring

// sfence/mfence degrade to no-ops when cgo is unavailable; the atomic
// loads/stores already used elsewhere in this package provide Go-level
// ordering, just not the literal x86 fence the teacher's cgo path
// issues.
func sfence() {}
func mfence() {}
