package aio

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Observer receives latency/outcome samples as operations complete.
// Implementations must be safe for concurrent use: methods are called
// from whichever goroutine drains a completion (a worker goroutine, a
// ring reaper, or the POSIX provider's drain goroutine), mirroring the
// teacher's Observer contract.
type Observer interface {
	ObserveRead(bytes uint64, latency time.Duration, success bool)
	ObserveWrite(bytes uint64, latency time.Duration, success bool)
	ObserveFsync(latency time.Duration, success bool)
	ObserveQueueDepth(backend BackendID, depth int32)
}

// latencyBuckets mirrors the teacher's logarithmic histogram: 1us
// through 10s.
var latencyBuckets = []time.Duration{
	time.Microsecond,
	10 * time.Microsecond,
	100 * time.Microsecond,
	time.Millisecond,
	10 * time.Millisecond,
	100 * time.Millisecond,
	time.Second,
	10 * time.Second,
}

const numLatencyBuckets = 8

// Metrics is the default Observer: process-wide atomic counters plus a
// latency histogram, grounded on the teacher's metrics.go.
type Metrics struct {
	ReadOps, WriteOps, FsyncOps     atomic.Uint64
	ReadBytes, WriteBytes           atomic.Uint64
	ReadErrors, WriteErrors         atomic.Uint64
	FsyncErrors                     atomic.Uint64
	TotalLatencyNs, OpCount         atomic.Uint64
	LatencyHist                     [numLatencyBuckets]atomic.Uint64
}

// NewMetrics creates a zeroed Metrics instance.
func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) recordLatency(d time.Duration) {
	m.TotalLatencyNs.Add(uint64(d))
	m.OpCount.Add(1)
	for i, bucket := range latencyBuckets {
		if d <= bucket {
			m.LatencyHist[i].Add(1)
			break
		}
	}
}

func (m *Metrics) ObserveRead(bytes uint64, latency time.Duration, success bool) {
	m.ReadOps.Add(1)
	if success {
		m.ReadBytes.Add(bytes)
	} else {
		m.ReadErrors.Add(1)
	}
	m.recordLatency(latency)
}

func (m *Metrics) ObserveWrite(bytes uint64, latency time.Duration, success bool) {
	m.WriteOps.Add(1)
	if success {
		m.WriteBytes.Add(bytes)
	} else {
		m.WriteErrors.Add(1)
	}
	m.recordLatency(latency)
}

func (m *Metrics) ObserveFsync(latency time.Duration, success bool) {
	m.FsyncOps.Add(1)
	if !success {
		m.FsyncErrors.Add(1)
	}
	m.recordLatency(latency)
}

func (m *Metrics) ObserveQueueDepth(BackendID, int32) {}

// AverageLatency returns the mean observed latency across all ops.
func (m *Metrics) AverageLatency() time.Duration {
	n := m.OpCount.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(m.TotalLatencyNs.Load() / n)
}

// HandleDump is one row of the per-handle observability table
// (spec.md §6 Observability: "id, op, flag string, ring, owner pid,
// generation, result, op-specific description").
type HandleDump struct {
	Index      int32
	Op         string
	Flags      string
	RingID     int
	Owner      int32
	Generation uint64
	Result     int64
	Desc       string
}

func (d HandleDump) String() string {
	return fmt.Sprintf("#%d op=%s flags=%s ring=%d owner=%d gen=%d result=%d (%s)",
		d.Index, d.Op, d.Flags, d.RingID, d.Owner, d.Generation, d.Result, d.Desc)
}

// DumpHandles returns a snapshot of every in-use handle, for the
// per-handle observability dump.
func (a *AIO) DumpHandles() []HandleDump {
	var out []HandleDump
	for _, h := range a.slab.handles {
		flags := h.flagString() // takes h.mu itself
		h.mu.Lock()
		if h.state == stateUnused {
			h.mu.Unlock()
			continue
		}
		out = append(out, HandleDump{
			Index:      h.index,
			Op:         h.op.String(),
			Flags:      flags,
			RingID:     h.ringID,
			Owner:      h.owner,
			Generation: h.generation.Load(),
			Result:     h.result,
			Desc:       describePayload(h.op, h.payload),
		})
		h.mu.Unlock()
	}
	return out
}

func describePayload(op OpKind, p payload) string {
	switch op {
	case OpReadBuffer, OpWriteBuffer:
		return fmt.Sprintf("fd=%d off=%d n=%d done=%d buffer=%d", p.FD, p.Offset, p.NBytes, p.AlreadyDone, p.BufferNo)
	case OpWriteWAL:
		return fmt.Sprintf("fd=%d off=%d n=%d seg=%d tli=%d writeNo=%d", p.FD, p.Offset, p.NBytes, p.SegNo, p.Timeline, p.WriteNo)
	case OpFsyncWAL:
		return fmt.Sprintf("fd=%d seg=%d flushNo=%d datasync=%t", p.FD, p.SegNo, p.FlushNo, p.Datasync)
	case OpFsync:
		return fmt.Sprintf("fd=%d datasync=%t barrier=%t", p.FD, p.Datasync, p.Barrier)
	case OpWriteGeneric:
		return fmt.Sprintf("fd=%d off=%d n=%d noReorder=%t", p.FD, p.Offset, p.NBytes, p.NoReorder)
	case OpFlushRange:
		return fmt.Sprintf("fd=%d off=%d n=%d", p.FD, p.Offset, p.NBytes)
	default:
		return ""
	}
}

// Stats returns every backend's counters snapshot, keyed by id.
func (a *AIO) Stats() map[BackendID]BackendStats {
	a.backendsMu.RLock()
	defer a.backendsMu.RUnlock()
	out := make(map[BackendID]BackendStats, len(a.backends))
	for id, b := range a.backends {
		out[id] = b.Stats()
	}
	return out
}
