package trace

import "time"

// AggregateNode accumulates every call made through one call path.
type AggregateNode struct {
	Key string
	// Count is the number of calls.
	Count int
	// ExclusiveCount is the number of calls not made recursively through
	// an ancestor with the same key.
	ExclusiveCount int
	// Inclusive is the total time of the calls, children included.
	Inclusive time.Duration
	// Recursive marks a node whose key also appears on an ancestor.
	Recursive bool

	Parent   NodeID
	Children []NodeID
	byKey    map[string]NodeID
}

// AggregateTree is a call tree folded by path: repeated calls through the
// same path share one node.
type AggregateTree struct {
	nodes []AggregateNode
}

// NewAggregateTree returns a tree holding only the root.
func NewAggregateTree() *AggregateTree {
	return &AggregateTree{nodes: []AggregateNode{{Key: "root", Parent: NoNode}}}
}

// Root returns the id of the root node.
func (t *AggregateTree) Root() NodeID { return 0 }

// Node returns the node with the given id.
func (t *AggregateTree) Node(id NodeID) *AggregateNode { return &t.nodes[id] }

// Len returns the number of nodes, root included.
func (t *AggregateTree) Len() int { return len(t.nodes) }

// Child returns the child of parent with the given key.
func (t *AggregateTree) Child(parent NodeID, key string) (NodeID, bool) {
	id, ok := t.nodes[parent].byKey[key]
	return id, ok
}

// Append records one call of key under parent, creating the child on
// first use, and returns the child.
func (t *AggregateTree) Append(parent NodeID, key string, d time.Duration) NodeID {
	id, ok := t.Child(parent, key)
	if !ok {
		id = NodeID(len(t.nodes))
		t.nodes = append(t.nodes, AggregateNode{Key: key, Parent: parent})
		p := &t.nodes[parent]
		p.Children = append(p.Children, id)
		if p.byKey == nil {
			p.byKey = make(map[string]NodeID)
		}
		p.byKey[key] = id
	}
	n := &t.nodes[id]
	n.Count++
	n.ExclusiveCount++
	n.Inclusive += d
	if parent == t.Root() {
		t.nodes[0].Inclusive += d
	}
	return id
}

// ExclusiveTime returns the node's inclusive time minus its children's.
func (t *AggregateTree) ExclusiveTime(id NodeID) time.Duration {
	n := &t.nodes[id]
	d := n.Inclusive
	for _, c := range n.Children {
		d -= t.nodes[c].Inclusive
	}
	return max(d, 0)
}

// Path returns the keys from the root's child down to id.
func (t *AggregateTree) Path(id NodeID) []string {
	var keys []string
	for ; id > 0; id = t.nodes[id].Parent {
		keys = append(keys, t.nodes[id].Key)
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

// Walk visits nodes depth first, parents before children. Returning
// false from fn skips the node's children.
func (t *AggregateTree) Walk(fn func(id NodeID, depth int) bool) {
	var visit func(NodeID, int)
	visit = func(id NodeID, depth int) {
		if !fn(id, depth) {
			return
		}
		for _, c := range t.nodes[id].Children {
			visit(c, depth+1)
		}
	}
	visit(t.Root(), 0)
}

// MarkRecursiveChildren flags every node that has an ancestor with the
// same key and removes its calls from that ancestor's exclusive count, so
// ExclusiveCount reports calls made from outside the recursion.
func (t *AggregateTree) MarkRecursiveChildren() {
	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		for a := n.Parent; a > 0; a = t.nodes[a].Parent {
			if t.nodes[a].Key == n.Key {
				n.Recursive = true
				t.nodes[a].ExclusiveCount -= n.Count
				break
			}
		}
	}
	for i := range t.nodes {
		t.nodes[i].ExclusiveCount = max(t.nodes[i].ExclusiveCount, 0)
	}
}

// Aggregate folds an event tree. Thread nodes are dropped so calls on
// different threads through the same path merge. Markers count as calls
// of zero duration.
func Aggregate(et *EventTree) *AggregateTree {
	t := NewAggregateTree()
	var fold func(ev NodeID, into NodeID)
	fold = func(ev NodeID, into NodeID) {
		for _, c := range et.Node(ev).Children {
			n := et.Node(c)
			id := t.Append(into, n.Key, n.Duration())
			fold(c, id)
		}
	}
	for _, thread := range et.Node(et.Root()).Children {
		fold(thread, t.Root())
	}
	return t
}
