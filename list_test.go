package aio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleListPushPopFIFO(t *testing.T) {
	l := newIOList()
	h1, h2, h3 := newHandle(0), newHandle(1), newHandle(2)

	l.PushBack(h1)
	l.PushBack(h2)
	l.PushBack(h3)
	require.Equal(t, 3, l.Len())
	require.Same(t, h1, l.Front())

	require.Same(t, h1, l.PopFront())
	require.Same(t, h2, l.PopFront())
	require.Equal(t, 1, l.Len())
	require.False(t, l.Empty())

	require.Same(t, h3, l.PopFront())
	require.True(t, l.Empty())
	require.Nil(t, l.PopFront())
}

func TestHandleListRemoveMiddle(t *testing.T) {
	l := newOwnerList()
	h1, h2, h3 := newHandle(0), newHandle(1), newHandle(2)
	l.PushBack(h1)
	l.PushBack(h2)
	l.PushBack(h3)

	l.Remove(h2)
	require.Equal(t, 2, l.Len())

	var seen []*Handle
	l.Each(func(h *Handle) { seen = append(seen, h) })
	require.Equal(t, []*Handle{h1, h3}, seen)
}

func TestHandleListIOAndOwnerLinksAreIndependent(t *testing.T) {
	io := newIOList()
	owner := newOwnerList()
	h := newHandle(0)

	io.PushBack(h)
	owner.PushBack(h)
	require.Equal(t, 1, io.Len())
	require.Equal(t, 1, owner.Len())

	io.Remove(h)
	require.Equal(t, 0, io.Len())
	require.Equal(t, 1, owner.Len(), "removing from the io-list must not disturb the owner-list linkage")
}
