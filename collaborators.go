package aio

// Collaborators bundles the external systems this package calls into
// but does not implement (spec.md §1 "Deliberately OUT of scope",
// §6 "External collaborators"). The embedding application supplies one
// implementation of each to New.
type Collaborators struct {
	Buffers  BufferCompletionHooks
	WAL      WALCompletionHooks
	Relation RelationResolver
	Segments WALSegmentResolver
}

// BufferCompletionHooks are the buffer-manager completion callbacks
// invoked by the READ_BUFFER/WRITE_BUFFER shared-phase callbacks
// (spec.md §4.9, §6).
type BufferCompletionHooks interface {
	// ReadBufferCompleteRead is called once a buffer read finishes (or
	// hard-fails). mode is the ReadMode the read was started with.
	ReadBufferCompleteRead(bufferNo uint32, mode ReadMode, failed bool)

	// ReadBufferCompleteWrite is called once a buffer write finishes (or
	// hard-fails).
	ReadBufferCompleteWrite(bufferNo uint32, failed bool)
}

// WALCompletionHooks are the WAL bookkeeping callbacks invoked by the
// FSYNC_WAL/WRITE_WAL shared-phase callbacks (spec.md §4.9, §6).
type WALCompletionHooks interface {
	// XLogFlushComplete notifies the WAL subsystem that the fsync for
	// flushNo has completed.
	XLogFlushComplete(h *Handle, flushNo uint64)

	// XLogWriteComplete notifies the WAL subsystem that the write for
	// writeNo has completed.
	XLogWriteComplete(h *Handle, writeNo uint64)
}

// RelationResolver resolves a relation tag to an open file descriptor,
// used both for the initial start_read_buffer/start_write_buffer call
// and to re-resolve the fd on retry, since the relation may have moved
// to a different segment (spec.md §4.11, §6 "smgropen"/"smgrfd").
type RelationResolver interface {
	ResolveRelation(tag RelationTag) (fd int, fileOffset int64, err error)
}

// WALSegmentResolver resolves a (timeline, segment) pair to an open WAL
// segment file descriptor, used to re-resolve WAL ops on retry
// (spec.md §6 "XLogFileOpen").
type WALSegmentResolver interface {
	ResolveWALSegment(timeline, segNo uint32) (fd int, err error)
}
