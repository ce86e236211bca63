// Package sdfpath provides the hierarchical identifiers used to name
// primitives in a render index.
//
// A Path is an absolute, slash-separated sequence of name segments such as
// "/World/Set/chair". Paths are immutable values and can be used directly as
// map keys.
//
// Ordering is element-wise lexicographic: a parent sorts immediately before
// its descendants, and all descendants of a path form one contiguous range
// of a sorted slice. SortedIDs relies on that property to answer prefix
// queries with two binary searches.
package sdfpath
