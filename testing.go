package aio

import "sync"

// MockCollaborators implements every interface in Collaborators,
// recording each call for assertion in tests that exercise the shared
// completion pipeline end to end without a real buffer manager, WAL,
// or smgr. Grounded on the teacher's own MockBackend (testing.go):
// same call-tracking-under-a-mutex shape, generalized from one
// Backend interface to the four small Collaborators interfaces.
type MockCollaborators struct {
	mu sync.Mutex

	fds        map[RelationTag]mockFd
	walSegs    map[uint64]mockFd // key: timeline<<32 | segNo
	failResolve bool

	readCompletes  []ReadComplete
	writeCompletes []BufferWriteComplete
	flushCompletes []FlushComplete
	walWrites      []WALWriteComplete
}

type mockFd struct {
	fd         int
	fileOffset int64
}

type ReadComplete struct {
	BufferNo uint32
	Mode     ReadMode
	Failed   bool
}

type BufferWriteComplete struct {
	BufferNo uint32
	Failed   bool
}

type FlushComplete struct {
	FlushNo uint64
}

type WALWriteComplete struct {
	WriteNo uint64
}

// NewMockCollaborators returns a ready-to-use mock with no relations or
// WAL segments registered; tests add them with RegisterRelation /
// RegisterWALSegment before exercising a Start* call that needs fd
// resolution.
func NewMockCollaborators() *MockCollaborators {
	return &MockCollaborators{
		fds:     make(map[RelationTag]mockFd),
		walSegs: make(map[uint64]mockFd),
	}
}

// AsCollaborators bundles m into a Collaborators value satisfying all
// four roles, for passing straight to New.
func (m *MockCollaborators) AsCollaborators() Collaborators {
	return Collaborators{
		Buffers:  m,
		WAL:      m,
		Relation: m,
		Segments: m,
	}
}

// RegisterRelation makes tag resolve to fd/fileOffset via
// ResolveRelation.
func (m *MockCollaborators) RegisterRelation(tag RelationTag, fd int, fileOffset int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fds[tag] = mockFd{fd: fd, fileOffset: fileOffset}
}

// RegisterWALSegment makes (timeline, segNo) resolve to fd via
// ResolveWALSegment.
func (m *MockCollaborators) RegisterWALSegment(timeline, segNo uint32, fd int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.walSegs[walKey(timeline, segNo)] = mockFd{fd: fd}
}

// FailResolution makes every subsequent ResolveRelation/ResolveWALSegment
// call return an error, for exercising Retry's failure path.
func (m *MockCollaborators) FailResolution(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failResolve = fail
}

func walKey(timeline, segNo uint32) uint64 {
	return uint64(timeline)<<32 | uint64(segNo)
}

// ResolveRelation implements RelationResolver.
func (m *MockCollaborators) ResolveRelation(tag RelationTag) (int, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failResolve {
		return 0, 0, NewError("resolve_relation", ErrCodeResolveFailed, "mock configured to fail resolution")
	}
	entry, ok := m.fds[tag]
	if !ok {
		return 0, 0, NewError("resolve_relation", ErrCodeResolveFailed, "relation tag not registered with mock")
	}
	return entry.fd, entry.fileOffset, nil
}

// ResolveWALSegment implements WALSegmentResolver.
func (m *MockCollaborators) ResolveWALSegment(timeline, segNo uint32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failResolve {
		return 0, NewError("resolve_wal_segment", ErrCodeResolveFailed, "mock configured to fail resolution")
	}
	entry, ok := m.walSegs[walKey(timeline, segNo)]
	if !ok {
		return 0, NewError("resolve_wal_segment", ErrCodeResolveFailed, "wal segment not registered with mock")
	}
	return entry.fd, nil
}

// ReadBufferCompleteRead implements BufferCompletionHooks.
func (m *MockCollaborators) ReadBufferCompleteRead(bufferNo uint32, mode ReadMode, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCompletes = append(m.readCompletes, ReadComplete{BufferNo: bufferNo, Mode: mode, Failed: failed})
}

// ReadBufferCompleteWrite implements BufferCompletionHooks.
func (m *MockCollaborators) ReadBufferCompleteWrite(bufferNo uint32, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCompletes = append(m.writeCompletes, BufferWriteComplete{BufferNo: bufferNo, Failed: failed})
}

// XLogFlushComplete implements WALCompletionHooks.
func (m *MockCollaborators) XLogFlushComplete(h *Handle, flushNo uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushCompletes = append(m.flushCompletes, FlushComplete{FlushNo: flushNo})
}

// XLogWriteComplete implements WALCompletionHooks.
func (m *MockCollaborators) XLogWriteComplete(h *Handle, writeNo uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.walWrites = append(m.walWrites, WALWriteComplete{WriteNo: writeNo})
}

// ReadCompletes returns a snapshot of every ReadBufferCompleteRead call
// observed so far.
func (m *MockCollaborators) ReadCompletes() []ReadComplete {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ReadComplete, len(m.readCompletes))
	copy(out, m.readCompletes)
	return out
}

// WriteCompletes returns a snapshot of every ReadBufferCompleteWrite
// call observed so far.
func (m *MockCollaborators) WriteCompletes() []BufferWriteComplete {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BufferWriteComplete, len(m.writeCompletes))
	copy(out, m.writeCompletes)
	return out
}

// FlushCompletes returns a snapshot of every XLogFlushComplete call
// observed so far.
func (m *MockCollaborators) FlushCompletes() []FlushComplete {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FlushComplete, len(m.flushCompletes))
	copy(out, m.flushCompletes)
	return out
}

// WALWrites returns a snapshot of every XLogWriteComplete call observed
// so far.
func (m *MockCollaborators) WALWrites() []WALWriteComplete {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WALWriteComplete, len(m.walWrites))
	copy(out, m.walWrites)
	return out
}
