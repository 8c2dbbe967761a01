// Command aiodemo exercises the shared AIO subsystem end to end against
// a scratch file: one backend acquires a handle, stages a write, an
// fsync, and a read, then waits out each and prints the result.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dbkit/aio"
	"github.com/dbkit/aio/internal/logging"
	_ "github.com/dbkit/aio/internal/provider/worker"
)

func main() {
	var (
		path    = flag.String("file", "", "scratch file to exercise (created if absent)")
		size    = flag.Int("size", 4096, "payload size in bytes")
		verbose = flag.Bool("v", false, "verbose logging")
		kind    = flag.String("provider", string(aio.ProviderWorker), "provider kind (only worker is linked into this binary)")
	)
	flag.Parse()

	if *path == "" {
		f, err := os.CreateTemp("", "aiodemo-*.dat")
		if err != nil {
			log.Fatalf("create scratch file: %v", err)
		}
		*path = f.Name()
		f.Close()
		defer os.Remove(*path)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	fd, err := os.OpenFile(*path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		log.Fatalf("open %s: %v", *path, err)
	}
	defer fd.Close()

	cfg := aio.DefaultConfig()
	cfg.ProviderKind = aio.ProviderKind(*kind)
	cfg.Logger = logger

	mock := aio.NewMockCollaborators()
	sys, err := aio.New(cfg, mock.AsCollaborators())
	if err != nil {
		log.Fatalf("aio.New: %v", err)
	}
	defer sys.Close()

	backend, err := sys.NewBackend()
	if err != nil {
		log.Fatalf("NewBackend: %v", err)
	}

	payload := make([]byte, *size)
	for i := range payload {
		payload[i] = byte(i)
	}

	writeHandle := sys.Acquire(backend)
	sys.StartWriteGeneric(writeHandle, int(fd.Fd()), 0, uint32(len(payload)), payload, false)
	if err := sys.Wait(writeHandle); err != nil {
		log.Fatalf("write failed: %v", err)
	}
	fmt.Printf("wrote %d bytes\n", len(payload))
	sys.Release(writeHandle)

	syncHandle := sys.Acquire(backend)
	sys.StartFsync(syncHandle, int(fd.Fd()), 0, false)
	if err := sys.Wait(syncHandle); err != nil {
		log.Fatalf("fsync failed: %v", err)
	}
	fmt.Println("fsync complete")
	sys.Release(syncHandle)

	readBuf := make([]byte, *size)
	readHandle := sys.Acquire(backend)
	sys.StartReadBuffer(readHandle, aio.RelationTag{}, int(fd.Fd()), 0, uint32(len(readBuf)), readBuf, 1, aio.ReadNormal)
	if err := sys.Wait(readHandle); err != nil {
		log.Fatalf("read failed: %v", err)
	}
	fmt.Printf("read back %d bytes, matches=%v\n", len(readBuf), equal(payload, readBuf))
	sys.Release(readHandle)

	sys.AtCommit(backend)
}

func equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
