package aio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbkit/aio/internal/logging"
)

func TestFinishBufferOpHardFailureLogsAndNotifiesFailed(t *testing.T) {
	var buf bytes.Buffer
	mock := NewMockCollaborators()
	a, sp := newTestAIO(testConfig(4), mock.AsCollaborators())
	a.log = logging.NewLogger(&logging.Config{Level: logging.LevelWarn, Output: &buf})
	sp.setResult(-5) // -EIO, not transient: no room left for a soft-failure retry

	b, err := a.NewBackend()
	require.NoError(t, err)

	rbuf := make([]byte, 16)
	h := a.Acquire(b)
	a.StartReadBuffer(h, RelationTag{}, 3, 0, uint32(len(rbuf)), rbuf, 9, ReadNormal)

	werr := a.Wait(h)
	require.Error(t, werr)
	require.True(t, h.flags.has(flagHardFailure))

	out := buf.String()
	require.True(t, strings.Contains(out, "buffer hard failure"), "expected a warning log on buffer hard failure, got %q", out)
	require.Contains(t, out, "block=9")
	require.Contains(t, out, "handle=")
	require.Contains(t, out, "op=read_buffer")

	reads := mock.ReadCompletes()
	require.Len(t, reads, 1)
	require.True(t, reads[0].Failed, "the completion hook must see failed=true on a buffer hard failure")
}

func TestReportHardFailureInvokesFatalHookInsteadOfLogging(t *testing.T) {
	var buf bytes.Buffer
	a, sp := newTestAIO(testConfig(4), Collaborators{})
	a.log = logging.NewLogger(&logging.Config{Level: logging.LevelWarn, Output: &buf})

	var caught *Error
	a.cfg.FatalHook = func(e *Error) { caught = e }
	sp.setResult(-5)

	b, err := a.NewBackend()
	require.NoError(t, err)

	h := a.Acquire(b)
	a.StartFsync(h, 3, 0, false)

	err2 := a.Wait(h)
	require.Error(t, err2)
	require.NotNil(t, caught, "a configured FatalHook must receive the durability failure")
	require.Equal(t, 0, buf.Len(), "FatalHook takes over from the logger when configured")
}

func TestReportHardFailureLogsWhenNoFatalHookConfigured(t *testing.T) {
	var buf bytes.Buffer
	a, sp := newTestAIO(testConfig(4), Collaborators{})
	a.log = logging.NewLogger(&logging.Config{Level: logging.LevelWarn, Output: &buf})
	sp.setResult(-5)

	b, err := a.NewBackend()
	require.NoError(t, err)

	h := a.Acquire(b)
	a.StartFsync(h, 3, 0, false)

	require.Error(t, a.Wait(h))
	out := buf.String()
	require.Contains(t, out, "durability-threatening I/O failure")
	require.Contains(t, out, "op=fsync")
}
