package tree

import "fmt"

// ApplyMove returns a new forest reflecting an accepted move. Callers
// validate with CheckMove first. The input forest is not modified and the
// dragged node's subtree is carried over untouched. The moved node gets its
// new ParentID and Position, and the sibling lists it left and joined are
// renumbered so positions match array order.
func ApplyMove(forest []*Node, m Move) ([]*Node, error) {
	rest, dragged := detach(forest, m.DraggedID)
	if dragged == nil {
		return nil, fmt.Errorf("dragged %q: %w", m.DraggedID, ErrNodeNotFound)
	}

	var parentID string
	var pos int
	switch m.Target.Zone {
	case ZoneOn:
		parentID, pos = m.Target.TargetID, 0
	case ZoneBefore, ZoneAfter:
		p, ok := PlacementOf(rest, m.Target.TargetID)
		if !ok {
			return nil, fmt.Errorf("target %q: %w", m.Target.TargetID, ErrNodeNotFound)
		}
		parentID, pos = p.ParentID, p.Position
		if m.Target.Zone == ZoneAfter {
			pos++
		}
	default:
		_, err := ParseZone(string(m.Target.Zone))
		return nil, err
	}

	out, ok := insertAt(rest, parentID, pos, dragged)
	if !ok {
		return nil, fmt.Errorf("target %q: %w", m.Target.TargetID, ErrNodeNotFound)
	}
	return out, nil
}

// PlacementOf locates id and returns its parent id and index among its
// siblings. This is the post-hoc persistence computation for a move.
func PlacementOf(forest []*Node, id string) (Placement, bool) {
	return placementIn(forest, "", id)
}

func placementIn(nodes []*Node, parentID, id string) (Placement, bool) {
	for i, n := range nodes {
		if n.ID == id {
			return Placement{ParentID: parentID, Position: i}, true
		}
	}
	for _, n := range nodes {
		if p, ok := placementIn(n.Children, n.ID, id); ok {
			return p, true
		}
	}
	return Placement{}, false
}

// ApplyPlacement moves id to an explicit placement, as the server would
// when handed move persistence parameters. Positions past the end of the
// sibling list append.
func ApplyPlacement(forest []*Node, id string, p Placement) ([]*Node, error) {
	rest, node := detach(forest, id)
	if node == nil {
		return nil, fmt.Errorf("node %q: %w", id, ErrNodeNotFound)
	}
	out, ok := insertAt(rest, p.ParentID, p.Position, node)
	if !ok {
		return nil, fmt.Errorf("parent %q: %w", p.ParentID, ErrNodeNotFound)
	}
	return out, nil
}

// InsertNode splices a node (typically one just created by the server) at
// its ParentID/Position.
func InsertNode(forest []*Node, node *Node) ([]*Node, error) {
	out, ok := insertAt(forest, node.ParentID, node.Position, node)
	if !ok {
		return nil, fmt.Errorf("parent %q: %w", node.ParentID, ErrNodeNotFound)
	}
	return out, nil
}

// UpdateNode applies fn to a copy of the node with the given id and
// returns the rebuilt forest. ok is false if id is absent.
func UpdateNode(forest []*Node, id string, fn func(n *Node)) ([]*Node, bool) {
	for i, n := range forest {
		if n.ID == id {
			cp := *n
			fn(&cp)
			return replaceAt(forest, i, &cp), true
		}
		if kids, ok := UpdateNode(n.Children, id, fn); ok {
			cp := *n
			cp.Children = kids
			return replaceAt(forest, i, &cp), true
		}
	}
	return forest, false
}

// detach removes id by recursive filter-and-rebuild, returning the new
// forest and the removed node with its subtree intact. The siblings that
// followed it are renumbered.
func detach(nodes []*Node, id string) ([]*Node, *Node) {
	out := make([]*Node, 0, len(nodes))
	var removed *Node
	for i, n := range nodes {
		if removed != nil {
			out = append(out, n)
			continue
		}
		if n.ID == id {
			removed = n
			out = append(out, nodes[i+1:]...)
			return renumber(out, i), removed
		}
		kids, r := detach(n.Children, id)
		if r != nil {
			removed = r
			cp := *n
			cp.Children = kids
			out = append(out, &cp)
			continue
		}
		out = append(out, n)
	}
	return out, removed
}

// insertAt splices a copy of node into parentID's children (or the root
// list when parentID is empty) at pos, clamped to the list bounds.
func insertAt(nodes []*Node, parentID string, pos int, node *Node) ([]*Node, bool) {
	if parentID == "" {
		return spliceAt(nodes, pos, node, ""), true
	}
	for i, n := range nodes {
		if n.ID == parentID {
			cp := *n
			cp.Children = spliceAt(n.Children, pos, node, n.ID)
			return replaceAt(nodes, i, &cp), true
		}
		if kids, ok := insertAt(n.Children, parentID, pos, node); ok {
			cp := *n
			cp.Children = kids
			return replaceAt(nodes, i, &cp), true
		}
	}
	return nodes, false
}

func spliceAt(list []*Node, pos int, node *Node, parentID string) []*Node {
	if pos < 0 {
		pos = 0
	}
	if pos > len(list) {
		pos = len(list)
	}
	cp := *node
	cp.ParentID = parentID
	cp.Position = pos

	out := make([]*Node, 0, len(list)+1)
	out = append(out, list[:pos]...)
	out = append(out, &cp)
	out = append(out, list[pos:]...)
	return renumber(out, pos+1)
}

// renumber sets Position = index for list[from:] in place, copying any
// node whose position changes. list must be freshly allocated.
func renumber(list []*Node, from int) []*Node {
	for i := from; i < len(list); i++ {
		if list[i].Position != i {
			cp := *list[i]
			cp.Position = i
			list[i] = &cp
		}
	}
	return list
}

func replaceAt(list []*Node, i int, n *Node) []*Node {
	out := make([]*Node, len(list))
	copy(out, list)
	out[i] = n
	return out
}
