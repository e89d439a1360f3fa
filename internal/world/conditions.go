package world

import (
	"errors"
	"fmt"

	"github.com/agentic-research/dirworld/internal/graph"
	"github.com/google/uuid"
)

var ErrUnknownCondition = errors.New("unknown condition")

type ConditionKind int

const (
	CondTrue ConditionKind = iota
	CondChildOf
	CondParentOf
	CondDescendantOf
	CondAncestorOf
	CondInRoom
	CondObjectInRoom
)

var conditionNames = map[ConditionKind]string{
	CondTrue:         "conditional_true",
	CondChildOf:      "conditional_child_of",
	CondParentOf:     "conditional_parent_of",
	CondDescendantOf: "conditional_descendant_of",
	CondAncestorOf:   "conditional_ancestor_of",
	CondInRoom:       "conditional_in_room",
	CondObjectInRoom: "conditional_object_in_room",
}

// Condition is a predicate over the live world that scripts can query.
// Entities are named by payload ID. Subject is the child, descendant, room
// or object; Object is the parent or ancestor.
type Condition struct {
	Kind    ConditionKind
	Subject uuid.UUID
	Object  uuid.UUID
}

func ChildOf(child, parent uuid.UUID) Condition {
	return Condition{Kind: CondChildOf, Subject: child, Object: parent}
}

func ParentOf(parent, child uuid.UUID) Condition {
	return Condition{Kind: CondParentOf, Subject: child, Object: parent}
}

func DescendantOf(descendant, ancestor uuid.UUID) Condition {
	return Condition{Kind: CondDescendantOf, Subject: descendant, Object: ancestor}
}

func AncestorOf(ancestor, descendant uuid.UUID) Condition {
	return Condition{Kind: CondAncestorOf, Subject: descendant, Object: ancestor}
}

func InRoom(room uuid.UUID) Condition {
	return Condition{Kind: CondInRoom, Subject: room}
}

func ObjectInRoom(object uuid.UUID) Condition {
	return Condition{Kind: CondObjectInRoom, Subject: object}
}

// FunctionName is the script-facing name of the condition.
func (c Condition) FunctionName() string {
	return conditionNames[c.Kind]
}

// ParseCondition builds a condition from a script call. Arguments follow
// the order in the function name: parent_of takes (parent, child) while
// child_of takes (child, parent).
func ParseCondition(name string, args []string) (Condition, error) {
	ids := make([]uuid.UUID, len(args))
	for i, a := range args {
		id, err := uuid.Parse(a)
		if err != nil {
			return Condition{}, fmt.Errorf("%s: argument %d: %w", name, i, err)
		}
		ids[i] = id
	}
	need := func(n int) error {
		if len(ids) < n {
			return fmt.Errorf("%s: want %d arguments, got %d", name, n, len(ids))
		}
		return nil
	}

	switch name {
	case conditionNames[CondTrue]:
		return Condition{Kind: CondTrue}, nil
	case conditionNames[CondChildOf]:
		if err := need(2); err != nil {
			return Condition{}, err
		}
		return ChildOf(ids[0], ids[1]), nil
	case conditionNames[CondParentOf]:
		if err := need(2); err != nil {
			return Condition{}, err
		}
		return ParentOf(ids[0], ids[1]), nil
	case conditionNames[CondDescendantOf]:
		if err := need(2); err != nil {
			return Condition{}, err
		}
		return DescendantOf(ids[0], ids[1]), nil
	case conditionNames[CondAncestorOf]:
		if err := need(2); err != nil {
			return Condition{}, err
		}
		return AncestorOf(ids[0], ids[1]), nil
	case conditionNames[CondInRoom]:
		if err := need(1); err != nil {
			return Condition{}, err
		}
		return InRoom(ids[0]), nil
	case conditionNames[CondObjectInRoom]:
		if err := need(1); err != nil {
			return Condition{}, err
		}
		return ObjectInRoom(ids[0]), nil
	}
	return Condition{}, fmt.Errorf("%q: %w", name, ErrUnknownCondition)
}

// Evaluate checks c against the live graph and the current room.
func (w *World) Evaluate(c Condition) bool {
	switch c.Kind {
	case CondTrue:
		return true
	case CondChildOf, CondParentOf:
		child, ok1 := w.nodeByPayloadID(c.Subject)
		parent, ok2 := w.nodeByPayloadID(c.Object)
		return ok1 && ok2 && child.Parent == parent.ID
	case CondDescendantOf, CondAncestorOf:
		desc, ok1 := w.nodeByPayloadID(c.Subject)
		anc, ok2 := w.nodeByPayloadID(c.Object)
		if !ok1 || !ok2 {
			return false
		}
		for _, id := range graph.Ancestors(w.graph, desc.ID) {
			if id == anc.ID {
				return true
			}
		}
		return false
	case CondInRoom:
		return w.roomPayload != nil && w.roomPayload.ID == c.Subject
	case CondObjectInRoom:
		_, ok := w.nodeByPayloadID(c.Subject)
		return ok
	}
	return false
}

func (w *World) nodeByPayloadID(id uuid.UUID) (*graph.Node, bool) {
	for _, n := range w.graph.Nodes() {
		if n.Payload != nil && n.Payload.ID == id {
			return n, true
		}
	}
	return nil, false
}
