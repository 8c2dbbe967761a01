package aio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricsObserveReadWriteFsync(t *testing.T) {
	m := NewMetrics()
	m.ObserveRead(100, time.Millisecond, true)
	m.ObserveRead(0, time.Millisecond, false)
	m.ObserveWrite(50, 2*time.Millisecond, true)
	m.ObserveFsync(time.Microsecond, false)

	require.EqualValues(t, 2, m.ReadOps.Load())
	require.EqualValues(t, 100, m.ReadBytes.Load())
	require.EqualValues(t, 1, m.ReadErrors.Load())
	require.EqualValues(t, 1, m.WriteOps.Load())
	require.EqualValues(t, 50, m.WriteBytes.Load())
	require.EqualValues(t, 1, m.FsyncOps.Load())
	require.EqualValues(t, 1, m.FsyncErrors.Load())
	require.Greater(t, m.AverageLatency(), time.Duration(0))
}

func TestMetricsAverageLatencyZeroWithNoSamples(t *testing.T) {
	m := NewMetrics()
	require.Equal(t, time.Duration(0), m.AverageLatency())
}

func TestDumpHandlesSkipsUnusedSlots(t *testing.T) {
	a, _ := newTestAIO(testConfig(4), Collaborators{})
	b, err := a.NewBackend()
	require.NoError(t, err)

	h := a.Acquire(b)
	a.StartFsync(h, 7, 2, true)

	dump := a.DumpHandles()
	require.Len(t, dump, 1)
	require.Equal(t, "FSYNC", dump[0].Op)
	require.Contains(t, dump[0].Desc, "fd=7")
}

func TestStatsTracksPerBackendCounters(t *testing.T) {
	a, sp := newTestAIO(testConfig(4), Collaborators{})
	sp.setResult(16)
	b, err := a.NewBackend()
	require.NoError(t, err)

	buf := make([]byte, 16)
	h := a.Acquire(b)
	a.StartWriteGeneric(h, 3, 0, uint32(len(buf)), buf, false)
	require.NoError(t, a.Wait(h))

	stats := a.Stats()[b.ID()]
	require.EqualValues(t, 1, stats.Issued)
	require.EqualValues(t, 1, stats.Submissions)
}
