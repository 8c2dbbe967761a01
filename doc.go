// Package aio implements the shared, process-pooled asynchronous I/O
// facility used by a multi-process database server.
//
// Any worker process can stage file reads, writes, and fsyncs through a
// fixed-size slab of generation-stamped handles held in shared memory,
// let neighbouring requests merge before dispatch, and observe their
// completion through one of several pluggable providers: an in-process
// worker pool, a kernel completion ring (io_uring), signal-driven POSIX
// AIO, or (on Windows) an I/O completion port.
//
// The package does not open files, read pages into a buffer pool, or
// flush a write-ahead log; those are represented as the Collaborators
// interfaces the embedding application supplies to New.
package aio
