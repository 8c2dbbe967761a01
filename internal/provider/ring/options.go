package ring

import "github.com/pawelgaczynski/giouring"

// Option edits a set of io_uring setup params, the same
// functional-options shape the teacher's own ring.go (behrlich/go-iouring)
// uses, retargeted here from that hand-rolled sys.Params to giouring's
// real IOURingParams. Ring contexts do not take Options: each ring is
// created with giouring.CreateRing and its default params.
type Option func(*giouring.IOURingParams)

// WithSQPoll enables kernel-side SQ polling so steady submission load
// doesn't pay an io_uring_enter syscall per batch.
func WithSQPoll(idleMillis uint32) Option {
	return func(p *giouring.IOURingParams) {
		p.Flags |= giouring.IORING_SETUP_SQPOLL
		p.SqThreadIdle = idleMillis
	}
}

// WithCQSize requests a completion queue larger than the default 2x the
// submission queue size, useful when MaxInFlight is high relative to
// SubmitBatchSize.
func WithCQSize(size uint32) Option {
	return func(p *giouring.IOURingParams) {
		p.Flags |= giouring.IORING_SETUP_CQSIZE
		p.CqEntries = size
	}
}

// WithSingleIssuer marks the ring as only ever submitted to from the
// single goroutine that owns it, which a per-ring-context design
// satisfies by construction.
func WithSingleIssuer() Option {
	return func(p *giouring.IOURingParams) {
		p.Flags |= giouring.IORING_SETUP_SINGLE_ISSUER
	}
}

// WithCoopTaskrun enables cooperative task running, cutting the number
// of IPIs the kernel sends this process when completions post.
func WithCoopTaskrun() Option {
	return func(p *giouring.IOURingParams) {
		p.Flags |= giouring.IORING_SETUP_COOP_TASKRUN
	}
}
