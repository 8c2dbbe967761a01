package aio_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbkit/aio"
	_ "github.com/dbkit/aio/internal/provider/worker"
)

// TestNewResolvesRegisteredWorkerProvider exercises the self-registering
// ProviderFactory path (RegisterProvider/lookupProvider) end to end: an
// external test package, like a real embedder, only needs the blank
// import to make ProviderWorker available to Config.ProviderKind.
func TestNewResolvesRegisteredWorkerProvider(t *testing.T) {
	mock := aio.NewMockCollaborators()
	sys, err := aio.New(nil, mock.AsCollaborators())
	require.NoError(t, err)
	defer sys.Close()
}

func TestEndToEndWriteFsyncRead(t *testing.T) {
	f, err := os.CreateTemp("", "aio-e2e-*.dat")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	defer f.Close()
	fd := int(f.Fd())

	cfg := aio.DefaultConfig()
	mock := aio.NewMockCollaborators()

	sys, err := aio.New(cfg, mock.AsCollaborators())
	require.NoError(t, err)
	defer sys.Close()

	b, err := sys.NewBackend()
	require.NoError(t, err)

	payload := []byte("payload for the end to end smoke test")
	wh := sys.Acquire(b)
	sys.StartWriteGeneric(wh, fd, 0, uint32(len(payload)), payload, false)
	require.NoError(t, sys.Wait(wh))
	sys.Release(wh)

	sh := sys.Acquire(b)
	sys.StartFsync(sh, fd, 0, false)
	require.NoError(t, sys.Wait(sh))
	sys.Release(sh)

	readBuf := make([]byte, len(payload))
	rh := sys.Acquire(b)
	sys.StartReadBuffer(rh, aio.RelationTag{RelID: 1}, fd, 0, uint32(len(readBuf)), readBuf, 1, aio.ReadNormal)
	require.NoError(t, sys.Wait(rh))
	sys.Release(rh)

	require.Equal(t, payload, readBuf)

	reads := mock.ReadCompletes()
	require.Len(t, reads, 1)
	require.False(t, reads[0].Failed)

	sys.AtCommit(b)
}

func TestAtCommitReleasesLeakedUserReferences(t *testing.T) {
	mock := aio.NewMockCollaborators()
	sys, err := aio.New(nil, mock.AsCollaborators())
	require.NoError(t, err)
	defer sys.Close()

	b, err := sys.NewBackend()
	require.NoError(t, err)

	// Acquire a handle and never release it explicitly: AtCommit must
	// release any leaked outstanding reference on the backend's behalf.
	_ = sys.Acquire(b)
	sys.AtCommit(b)
}
