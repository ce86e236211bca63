// Package trace records scoped timing events and folds them into call
// trees.
//
// A Collector is created explicitly and handed to the component being
// measured; there is no process-wide collector. Its linear event trace is
// turned into an EventTree (one node per scope, in call order) with
// BuildEventTree, and an EventTree is folded into an AggregateTree (one
// node per distinct call path, with counts and inclusive/exclusive time)
// with Aggregate.
//
// Both trees are arenas: nodes live in one slice, refer to each other by
// index, and are released together with the tree.
package trace
