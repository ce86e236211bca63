package trace

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnbalanced is returned when an End event does not match the
// innermost open scope of its thread.
var ErrUnbalanced = errors.New("trace: unbalanced end event")

// NodeID addresses a node within its tree. The root is 0.
type NodeID int32

// NoNode is the parent of the root.
const NoNode NodeID = -1

// EventNode is one scope of an EventTree.
type EventNode struct {
	Key      string
	Begin    time.Time
	End      time.Time
	Marker   bool
	Parent   NodeID
	Children []NodeID
}

// Duration returns End minus Begin.
func (n *EventNode) Duration() time.Duration { return n.End.Sub(n.Begin) }

// EventTree holds scopes in call order. Node 0 is a synthetic root whose
// children are the per-thread roots.
type EventTree struct {
	nodes []EventNode
}

// Root returns the id of the root node.
func (t *EventTree) Root() NodeID { return 0 }

// Node returns the node with the given id.
func (t *EventTree) Node(id NodeID) *EventNode { return &t.nodes[id] }

// Len returns the number of nodes, root included.
func (t *EventTree) Len() int { return len(t.nodes) }

func (t *EventTree) add(n EventNode) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	if n.Parent != NoNode {
		p := &t.nodes[n.Parent]
		p.Children = append(p.Children, id)
	}
	return id
}

// BuildEventTree nests the events of a linear trace. Each thread gets a
// child of the root keyed by the thread label. Scopes still open at the
// end of the trace are closed at the last event's time.
func BuildEventTree(events []Event) (*EventTree, error) {
	t := &EventTree{}
	t.add(EventNode{Key: "root", Parent: NoNode})

	threads := make(map[string]NodeID)
	open := make(map[string][]NodeID)
	var last time.Time

	for i, ev := range events {
		if ev.Time.After(last) {
			last = ev.Time
		}
		tr, ok := threads[ev.Thread]
		if !ok {
			tr = t.add(EventNode{Key: ev.Thread, Begin: ev.Time, Parent: t.Root()})
			threads[ev.Thread] = tr
		}
		stack := open[ev.Thread]
		parent := tr
		if len(stack) > 0 {
			parent = stack[len(stack)-1]
		}

		switch ev.Type {
		case EventBegin:
			open[ev.Thread] = append(stack, t.add(EventNode{Key: ev.Key, Begin: ev.Time, Parent: parent}))
		case EventEnd:
			if len(stack) == 0 || t.nodes[parent].Key != ev.Key {
				return nil, fmt.Errorf("%w: event %d %q on thread %q", ErrUnbalanced, i, ev.Key, ev.Thread)
			}
			t.nodes[parent].End = ev.Time
			open[ev.Thread] = stack[:len(stack)-1]
		case EventMarker:
			t.add(EventNode{Key: ev.Key, Begin: ev.Time, End: ev.Time, Marker: true, Parent: parent})
		}
		t.nodes[tr].End = ev.Time
	}

	for _, stack := range open {
		for _, id := range stack {
			t.nodes[id].End = last
		}
	}
	if len(t.nodes) > 1 {
		t.nodes[0].Begin = t.nodes[t.nodes[0].Children[0]].Begin
		t.nodes[0].End = last
	}
	return t, nil
}
