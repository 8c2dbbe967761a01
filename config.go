package aio

import (
	"time"

	"github.com/dbkit/aio/internal/constants"
	"github.com/dbkit/aio/internal/logging"
)

// ProviderKind selects which completion model backs the subsystem.
type ProviderKind string

const (
	// ProviderWorker dispatches through an in-process worker pool.
	ProviderWorker ProviderKind = "worker"
	// ProviderKernelRing dispatches through a kernel completion ring
	// (io_uring).
	ProviderKernelRing ProviderKind = "kernel_ring"
	// ProviderPosix dispatches through signal-driven POSIX AIO.
	ProviderPosix ProviderKind = "posix"
	// ProviderIOCP dispatches through a Windows I/O completion port.
	ProviderIOCP ProviderKind = "iocp"
)

// Config carries the GUC-equivalent tunables from spec.md §6.
type Config struct {
	// ProviderKind selects the active provider.
	ProviderKind ProviderKind

	// Workers is the worker-pool provider's pool size (worker mode).
	Workers int

	// WorkerQueueSize is the shared submission queue depth (worker mode).
	WorkerQueueSize int

	// RingContexts is the number of independent ring contexts the
	// kernel-ring provider maintains (kernel_ring mode).
	RingContexts int

	// MaxInProgress is the total number of shared handle slots.
	MaxInProgress int

	// MaxInFlight is the per-provider-context in-flight cap.
	MaxInFlight int

	// MaxBounceBuffers is the size of the shared bounce-buffer pool.
	MaxBounceBuffers int

	// MaxConcurrency is the per-backend in-flight cap
	// (io_max_concurrency).
	MaxConcurrency int

	// BounceBufferSize is the size of each bounce buffer.
	BounceBufferSize int

	// MaxEintrRetries bounds how many times a buffer op's EAGAIN/EINTR
	// result is treated as a SOFT_FAILURE (left for Retry); once the bound
	// is reached the shared callback records a HARD_FAILURE instead.
	// Resolves the Open Question flagged in spec.md §9.
	MaxEintrRetries int

	// ForeignWaitTimeout bounds the cross-process CV wait used by the
	// POSIX provider when waiting on an I/O owned by another backend.
	ForeignWaitTimeout time.Duration

	// Observer receives latency/outcome samples; defaults to a fresh
	// *Metrics if nil.
	Observer Observer

	// Logger receives lifecycle and failure log lines; nil disables
	// logging.
	Logger *logging.Logger

	// FatalHook is invoked for failures spec.md §7 classifies as
	// durability-threatening (FSYNC/FSYNC_WAL/WRITE_WAL/WRITE_GENERIC).
	// Defaults to logging at error level; this package never calls
	// os.Exit or panics from non-test code on the embedder's behalf.
	FatalHook func(*Error)

	// ScatterGather tells the merge step whether the active provider can
	// submit a merged chain as one multi-segment syscall (readv/writev)
	// even when the chain's buffers aren't contiguous in memory. Kernel
	// ring and worker providers set this; POSIX AIO on platforms without
	// aio_readv/aio_writev does not (spec.md §4.2, §4.7).
	ScatterGather bool
}

// DefaultConfig returns the subsystem defaults from spec.md §6.
func DefaultConfig() *Config {
	return &Config{
		ProviderKind:       ProviderWorker,
		Workers:            constants.DefaultWorkers,
		WorkerQueueSize:    constants.DefaultWorkerQueueSize,
		RingContexts:       4,
		MaxInProgress:      constants.DefaultMaxInProgress,
		MaxInFlight:        constants.DefaultMaxInFlight,
		MaxBounceBuffers:   constants.DefaultMaxBounceBuffers,
		MaxConcurrency:     constants.DefaultMaxConcurrency,
		BounceBufferSize:   constants.BufferSizePerTag,
		MaxEintrRetries:    3,
		ForeignWaitTimeout: constants.ForeignWaitTimeout,
		ScatterGather:      true,
	}
}
