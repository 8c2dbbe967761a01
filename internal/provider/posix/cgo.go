//go:build linux && cgo

// Package posix implements the aio.Provider backed by POSIX signal-driven
// AIO (aio_read/aio_write/aio_fsync, SIGEV_SIGNAL completion notification).
package posix

/*
#include <aio.h>
#include <signal.h>
#include <string.h>
#include <stdint.h>
#include <stdlib.h>
#include <errno.h>
#include <fcntl.h>

#define AIO_RING_CAP 4096

static volatile uint64_t aio_ring[AIO_RING_CAP];
static volatile uint32_t aio_ring_head = 0;
static volatile uint32_t aio_ring_tail = 0;

// aio_sigev_handler is the SA_SIGINFO handler registered for the
// dedicated completion signal. It must be async-signal-safe: no
// allocation, no libc calls beyond atomics, no call back into Go.
static void aio_sigev_handler(int sig, siginfo_t *si, void *ucontext) {
    uint32_t tail = __atomic_load_n(&aio_ring_tail, __ATOMIC_RELAXED);
    uint64_t token = (uint64_t)(uintptr_t)si->si_value.sival_ptr;
    aio_ring[tail % AIO_RING_CAP] = token;
    __atomic_store_n(&aio_ring_tail, tail + 1, __ATOMIC_RELEASE);
}

static int aio_install_handler(int sig) {
    struct sigaction sa;
    memset(&sa, 0, sizeof(sa));
    sa.sa_sigaction = aio_sigev_handler;
    sa.sa_flags = SA_SIGINFO | SA_RESTART;
    sigemptyset(&sa.sa_mask);
    return sigaction(sig, &sa, NULL);
}

// aio_ring_pop drains one completion token pushed by the signal handler.
// Called only from the Go-side drain loop, never from the handler
// itself.
static uint64_t aio_ring_pop(int *ok) {
    uint32_t head = __atomic_load_n(&aio_ring_head, __ATOMIC_RELAXED);
    uint32_t tail = __atomic_load_n(&aio_ring_tail, __ATOMIC_ACQUIRE);
    if (head == tail) {
        *ok = 0;
        return 0;
    }
    uint64_t val = aio_ring[head % AIO_RING_CAP];
    __atomic_store_n(&aio_ring_head, head + 1, __ATOMIC_RELAXED);
    *ok = 1;
    return val;
}

static struct aiocb *aio_alloc_cb(void) {
    struct aiocb *cb = calloc(1, sizeof(struct aiocb));
    return cb;
}

static void aio_free_cb(struct aiocb *cb) {
    free(cb);
}

static int aio_submit_read(struct aiocb *cb, int fd, void *buf, size_t n, long long off, int sig, uint64_t token) {
    cb->aio_fildes = fd;
    cb->aio_buf = buf;
    cb->aio_nbytes = n;
    cb->aio_offset = off;
    cb->aio_sigevent.sigev_notify = SIGEV_SIGNAL;
    cb->aio_sigevent.sigev_signo = sig;
    cb->aio_sigevent.sigev_value.sival_ptr = (void *)(uintptr_t)token;
    return aio_read(cb);
}

static int aio_submit_write(struct aiocb *cb, int fd, void *buf, size_t n, long long off, int sig, uint64_t token) {
    cb->aio_fildes = fd;
    cb->aio_buf = buf;
    cb->aio_nbytes = n;
    cb->aio_offset = off;
    cb->aio_sigevent.sigev_notify = SIGEV_SIGNAL;
    cb->aio_sigevent.sigev_signo = sig;
    cb->aio_sigevent.sigev_value.sival_ptr = (void *)(uintptr_t)token;
    return aio_write(cb);
}

static int aio_submit_fsync(struct aiocb *cb, int fd, int op, int sig, uint64_t token) {
    cb->aio_fildes = fd;
    cb->aio_sigevent.sigev_notify = SIGEV_SIGNAL;
    cb->aio_sigevent.sigev_signo = sig;
    cb->aio_sigevent.sigev_value.sival_ptr = (void *)(uintptr_t)token;
    return aio_fsync(op, cb);
}

static long long aio_fetch_result(struct aiocb *cb, int *errnum) {
    int e = aio_error(cb);
    *errnum = e;
    if (e != 0) {
        return -1;
    }
    return (long long)aio_return(cb);
}
*/
import "C"

import (
	"unsafe"
)

type cAiocb = C.struct_aiocb

func allocCB() *cAiocb {
	return (*cAiocb)(unsafe.Pointer(C.aio_alloc_cb()))
}

func freeCB(cb *cAiocb) {
	C.aio_free_cb((*C.struct_aiocb)(unsafe.Pointer(cb)))
}

func installHandler(sig int) error {
	rc, errno := C.aio_install_handler(C.int(sig))
	if rc != 0 {
		return errno
	}
	return nil
}

func submitRead(cb *cAiocb, fd int, buf []byte, off int64, sig int, token uint64) error {
	var ptr unsafe.Pointer
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}
	rc, errno := C.aio_submit_read((*C.struct_aiocb)(unsafe.Pointer(cb)), C.int(fd), ptr, C.size_t(len(buf)), C.longlong(off), C.int(sig), C.uint64_t(token))
	if rc != 0 {
		return errno
	}
	return nil
}

func submitWrite(cb *cAiocb, fd int, buf []byte, off int64, sig int, token uint64) error {
	var ptr unsafe.Pointer
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}
	rc, errno := C.aio_submit_write((*C.struct_aiocb)(unsafe.Pointer(cb)), C.int(fd), ptr, C.size_t(len(buf)), C.longlong(off), C.int(sig), C.uint64_t(token))
	if rc != 0 {
		return errno
	}
	return nil
}

func submitFsync(cb *cAiocb, fd int, datasync bool, sig int, token uint64) error {
	op := C.O_SYNC
	if datasync {
		op = C.O_DSYNC
	}
	rc, errno := C.aio_submit_fsync((*C.struct_aiocb)(unsafe.Pointer(cb)), C.int(fd), C.int(op), C.int(sig), C.uint64_t(token))
	if rc != 0 {
		return errno
	}
	return nil
}

// fetchResult returns (bytes, errno, stillPending); bytes is 0 while
// still pending and -1 when errno is set.
func fetchResult(cb *cAiocb) (int64, int, bool) {
	var errnum C.int
	n := C.aio_fetch_result((*C.struct_aiocb)(unsafe.Pointer(cb)), &errnum)
	if int(errnum) == int(C.EINPROGRESS) {
		return 0, 0, true
	}
	return int64(n), int(errnum), false
}

func ringPop() (uint64, bool) {
	var ok C.int
	v := C.aio_ring_pop(&ok)
	return uint64(v), ok != 0
}
