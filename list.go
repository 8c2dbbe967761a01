package aio

// handleList is an intrusive doubly-linked list of *Handle, threaded
// through either the io-list pointers (pending/reaped/completed) or the
// owner-list pointers (outstanding/issued/issued_abandoned/unused),
// matching spec.md §3's invariant that a handle belongs to at most one
// list of each kind at a time.
//
// The two list kinds share this implementation via the prev/next
// accessor functions passed at construction, rather than duplicating the
// splice logic per kind.
type handleList struct {
	head, tail *Handle
	length     int

	prev func(*Handle) *Handle
	setPrev func(*Handle, *Handle)
	next func(*Handle) *Handle
	setNext func(*Handle, *Handle)
}

func newIOList() *handleList {
	return &handleList{
		prev:    func(h *Handle) *Handle { return h.ioPrev },
		setPrev: func(h, v *Handle) { h.ioPrev = v },
		next:    func(h *Handle) *Handle { return h.ioNext },
		setNext: func(h, v *Handle) { h.ioNext = v },
	}
}

func newOwnerList() *handleList {
	return &handleList{
		prev:    func(h *Handle) *Handle { return h.ownerPrev },
		setPrev: func(h, v *Handle) { h.ownerPrev = v },
		next:    func(h *Handle) *Handle { return h.ownerNext },
		setNext: func(h, v *Handle) { h.ownerNext = v },
	}
}

func (l *handleList) Len() int { return l.length }

func (l *handleList) Empty() bool { return l.length == 0 }

func (l *handleList) PushBack(h *Handle) {
	l.setPrev(h, l.tail)
	l.setNext(h, nil)
	if l.tail != nil {
		l.setNext(l.tail, h)
	} else {
		l.head = h
	}
	l.tail = h
	l.length++
}

func (l *handleList) PopFront() *Handle {
	h := l.head
	if h == nil {
		return nil
	}
	l.Remove(h)
	return h
}

func (l *handleList) Front() *Handle { return l.head }

// Remove splices h out of the list. h must currently be a member; it is
// a no-op (leaving h's own links as found) if the list is empty. Call
// sites either check membership with handleOnList or know h's list from
// its state before calling Remove.
func (l *handleList) Remove(h *Handle) {
	if l.length == 0 {
		return
	}
	p, n := l.prev(h), l.next(h)
	if p != nil {
		l.setNext(p, n)
	} else if l.head == h {
		l.head = n
	}
	if n != nil {
		l.setPrev(n, p)
	} else if l.tail == h {
		l.tail = p
	}
	l.setPrev(h, nil)
	l.setNext(h, nil)
	l.length--
}

// Each calls fn for every handle currently in the list, front to back.
// fn must not mutate this list's membership; callers that need to drain
// while iterating use PopFront in a loop instead.
func (l *handleList) Each(fn func(*Handle)) {
	for h := l.head; h != nil; h = l.next(h) {
		fn(h)
	}
}
