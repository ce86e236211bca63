package sdfpath

import (
	"slices"
	"sort"
)

// insertSortThreshold is the largest unsorted tail that is merged with an
// insertion sort instead of a full re-sort.
const insertSortThreshold = 32

// SortedIDs keeps a set of paths in sorted order.
//
// Sorting is deferred: Insert appends in O(1) and the next read sorts the
// pending tail. Populating an index inserts many ids at once, so paying for
// one sort instead of one shift per insert matters.
//
// SortedIDs is not safe for concurrent use; the render index mutates it
// only from its single structural-writer goroutine.
type SortedIDs struct {
	ids         []Path
	sortedCount int
}

// NewSortedIDs returns an empty container.
func NewSortedIDs() *SortedIDs {
	return &SortedIDs{}
}

// Insert adds id. Inserting an id twice is the caller's error; the index
// never does it because it checks its prim map first.
func (s *SortedIDs) Insert(id Path) {
	s.ids = append(s.ids, id)
}

// Remove deletes id if present and reports whether it was found.
func (s *SortedIDs) Remove(id Path) bool {
	s.sort()
	i, found := s.search(id)
	if !found {
		return false
	}
	s.ids = slices.Delete(s.ids, i, i+1)
	s.sortedCount = len(s.ids)
	return true
}

// RemoveSubtree deletes prefix and all of its descendants and returns the
// removed ids in sorted order.
func (s *SortedIDs) RemoveSubtree(prefix Path) []Path {
	lo, hi := s.PrefixRange(prefix)
	if lo == hi {
		return nil
	}
	removed := slices.Clone(s.ids[lo:hi])
	s.ids = slices.Delete(s.ids, lo, hi)
	s.sortedCount = len(s.ids)
	return removed
}

// IDs returns the sorted ids. The slice is owned by the container and is
// valid until the next mutation.
func (s *SortedIDs) IDs() []Path {
	s.sort()
	return s.ids
}

// Len returns the number of ids.
func (s *SortedIDs) Len() int {
	return len(s.ids)
}

// Contains reports whether id is present.
func (s *SortedIDs) Contains(id Path) bool {
	s.sort()
	_, found := s.search(id)
	return found
}

// Clear removes all ids.
func (s *SortedIDs) Clear() {
	s.ids = s.ids[:0]
	s.sortedCount = 0
}

// PrefixRange returns the half-open index range [lo, hi) of IDs() holding
// prefix and its descendants.
func (s *SortedIDs) PrefixRange(prefix Path) (lo, hi int) {
	s.sort()
	if prefix.IsEmpty() {
		return 0, 0
	}
	lo = sort.Search(len(s.ids), func(i int) bool {
		return Compare(s.ids[i], prefix) >= 0
	})
	hi = lo + sort.Search(len(s.ids)-lo, func(i int) bool {
		return !s.ids[lo+i].HasPrefix(prefix)
	})
	return lo, hi
}

func (s *SortedIDs) search(id Path) (int, bool) {
	return slices.BinarySearchFunc(s.ids, id, Compare)
}

func (s *SortedIDs) sort() {
	unsorted := len(s.ids) - s.sortedCount
	if unsorted == 0 {
		return
	}
	if unsorted <= insertSortThreshold {
		for i := s.sortedCount; i < len(s.ids); i++ {
			v := s.ids[i]
			j := i
			for j > 0 && Compare(s.ids[j-1], v) > 0 {
				s.ids[j] = s.ids[j-1]
				j--
			}
			s.ids[j] = v
		}
	} else {
		slices.SortFunc(s.ids, Compare)
	}
	s.sortedCount = len(s.ids)
}
