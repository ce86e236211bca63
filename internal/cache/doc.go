// Package cache provides a sharded, concurrency-safe LRU map.
//
// The render index uses it to share one dirty list between render passes
// whose collections are equal, keyed by the collection's content hash:
//
//	lists := cache.NewSharded[uint64, *DirtyList](64, cache.Uint64Hasher)
//	dl := lists.GetOrCreate(col.Hash(), func() *DirtyList { return newDirtyList(col) })
//
// Entries are spread over 16 shards, each with its own lock and its own
// recency list, so lookups for different keys rarely contend.
package cache
