package aio

import (
	"errors"
	"time"

	"github.com/dbkit/aio/internal/constants"
)

// SubmitPending drains b's pending list into the provider in merge-run
// batches, throttling on the backend's configured concurrency cap
// (spec.md §4.3 "Submission core").
func (a *AIO) SubmitPending(b *BackendState) {
	for !b.pending.Empty() {
		for int(b.InflightCount()) >= a.cfg.MaxConcurrency {
			victim := pickThrottleVictim(b)
			if victim == nil {
				return
			}
			if err := a.provider.WaitOne(victim); err != nil && a.log != nil {
				a.log.ForHandle(victim.Index(), victim.Op().String(), victim.RingID()).Warnf("throttle wait failed: %v", err)
			}
		}

		batch := make([]*Handle, 0, constants.SubmitBatchSize)
		for b.pending.Len() > 0 && len(batch) < constants.SubmitBatchSize {
			batch = append(batch, b.pending.PopFront())
		}

		heads := buildMergeRuns(batch, a.cfg.ScatterGather)
		a.dispatch(b, heads)
	}
}

// dispatch moves every handle in heads (and their merge-chain members)
// to issued or issued_abandoned and submits the chain heads as one
// provider call.
func (a *AIO) dispatch(b *BackendState, heads []*Handle) {
	for _, head := range heads {
		for _, h := range mergeChain(head) {
			h.mu.Lock()
			h.state = stateInflight
			h.submittedAt = time.Now()
			userRef := h.userReferenced
			h.mu.Unlock()
			if userRef {
				b.issued.PushBack(h)
			} else {
				b.issuedAbandoned.PushBack(h)
			}
			b.inflightCount.Add(1)
			b.stats.Issued++
		}
	}
	b.stats.Submissions++

	if err := a.provider.Submit(heads); err != nil {
		for _, head := range heads {
			a.onProviderCompletion(head, submitFailureResult(err))
		}
	}
}

// submitFailureResult converts a submission-layer error into the
// negative-errno result the completion pipeline expects, so a provider
// that rejects a batch outright still drives every handle to failure
// instead of leaving it stuck inflight (spec.md §4.3 "submission
// failure").
func submitFailureResult(err error) int64 {
	var aerr *Error
	if errors.As(err, &aerr) && aerr.Errno != 0 {
		return -int64(aerr.Errno)
	}
	return -1
}

// pickThrottleVictim returns the handle whose completion the submission
// loop should wait on to free a concurrency slot, preferring a
// still-user-referenced issued I/O over an abandoned one, oldest first
// (spec.md §9 Open Question: issued preferred over issued_abandoned).
func pickThrottleVictim(b *BackendState) *Handle {
	if h := b.issued.Front(); h != nil {
		return h
	}
	return b.issuedAbandoned.Front()
}
