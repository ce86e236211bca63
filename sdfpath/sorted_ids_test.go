package sdfpath

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortedIDs_DeferredSort(t *testing.T) {
	s := NewSortedIDs()
	for _, id := range MustParseAll("/World/c", "/World/a", "/Other", "/World/b") {
		s.Insert(id)
	}
	assert.Equal(t, MustParseAll("/Other", "/World/a", "/World/b", "/World/c"), s.IDs())
	assert.True(t, s.Contains(MustParse("/World/b")))
	assert.False(t, s.Contains(MustParse("/World/z")))
}

func TestSortedIDs_LargeBatchUsesFullSort(t *testing.T) {
	s := NewSortedIDs()
	for i := 99; i >= 0; i-- {
		s.Insert(MustParse(fmt.Sprintf("/p%03d", i)))
	}
	ids := s.IDs()
	assert.Len(t, ids, 100)
	for i := 1; i < len(ids); i++ {
		assert.True(t, Less(ids[i-1], ids[i]))
	}
}

func TestSortedIDs_Remove(t *testing.T) {
	s := NewSortedIDs()
	for _, id := range MustParseAll("/a", "/b", "/c") {
		s.Insert(id)
	}
	assert.True(t, s.Remove(MustParse("/b")))
	assert.False(t, s.Remove(MustParse("/b")))
	assert.Equal(t, MustParseAll("/a", "/c"), s.IDs())
}

func TestSortedIDs_PrefixRange(t *testing.T) {
	s := NewSortedIDs()
	for _, id := range MustParseAll("/World/a", "/World/hidden/b", "/World/c", "/Worldwide", "/Z") {
		s.Insert(id)
	}

	lo, hi := s.PrefixRange(MustParse("/World"))
	assert.Equal(t, MustParseAll("/World/a", "/World/c", "/World/hidden/b"), s.IDs()[lo:hi])

	lo, hi = s.PrefixRange(MustParse("/World/hidden"))
	assert.Equal(t, MustParseAll("/World/hidden/b"), s.IDs()[lo:hi])

	lo, hi = s.PrefixRange(MustParse("/Missing"))
	assert.Equal(t, lo, hi)

	lo, hi = s.PrefixRange(AbsoluteRoot())
	assert.Equal(t, 0, lo)
	assert.Equal(t, s.Len(), hi)
}

func TestSortedIDs_RemoveSubtree(t *testing.T) {
	s := NewSortedIDs()
	for _, id := range MustParseAll("/World/a", "/World/a/x", "/World/b") {
		s.Insert(id)
	}
	removed := s.RemoveSubtree(MustParse("/World/a"))
	assert.Equal(t, MustParseAll("/World/a", "/World/a/x"), removed)
	assert.Equal(t, MustParseAll("/World/b"), s.IDs())

	s.Clear()
	assert.Equal(t, 0, s.Len())
}
