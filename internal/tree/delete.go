package tree

import "fmt"

// ApplyDelete returns the forest with id removed according to policy.
//
//   - delete_only: children take the node's slot, levels unchanged
//   - delete_subtree: node and all descendants disappear
//   - reparent_children: children take the node's slot and every promoted
//     subtree moves one level up
func ApplyDelete(forest []*Node, id string, policy Policy) ([]*Node, error) {
	p, ok := PlacementOf(forest, id)
	if !ok {
		return nil, fmt.Errorf("node %q: %w", id, ErrNodeNotFound)
	}
	rest, removed := detach(forest, id)

	var promoted []*Node
	switch policy {
	case PolicyDeleteSubtree:
		return rest, nil
	case PolicyDeleteOnly:
		promoted = removed.Children
	case PolicyReparentChildren:
		promoted = make([]*Node, len(removed.Children))
		for i, c := range removed.Children {
			promoted[i] = promoteSubtree(c)
		}
	default:
		_, err := ParsePolicy(string(policy))
		return nil, err
	}

	out := rest
	for i, c := range promoted {
		var ok bool
		out, ok = insertAt(out, p.ParentID, p.Position+i, c)
		if !ok {
			return nil, fmt.Errorf("parent %q: %w", p.ParentID, ErrNodeNotFound)
		}
	}
	return out, nil
}

// promoteSubtree returns a copy of n with n and every descendant moved one
// level up. Epics stay epics.
func promoteSubtree(n *Node) *Node {
	cp := *n
	if up, ok := n.Level.Prev(); ok {
		cp.Level = up
	}
	if len(n.Children) > 0 {
		cp.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = promoteSubtree(c)
		}
	}
	return &cp
}

// RestoreSubtree puts a previously deleted subtree back at placement.
// Any of its descendants still present elsewhere (promoted by delete_only
// or reparent_children) are pulled out first, so the result matches the
// forest before the delete.
func RestoreSubtree(forest []*Node, subtree *Node, at Placement) ([]*Node, error) {
	out := forest
	var pull func(n *Node)
	pull = func(n *Node) {
		for _, c := range n.Children {
			out, _ = detach(out, c.ID)
			pull(c)
		}
	}
	out, _ = detach(out, subtree.ID)
	pull(subtree)

	restored, ok := insertAt(out, at.ParentID, at.Position, subtree)
	if !ok {
		return nil, fmt.Errorf("parent %q: %w", at.ParentID, ErrNodeNotFound)
	}
	return restored, nil
}
