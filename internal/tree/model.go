package tree

// Index maps node ids to nodes for O(1) parent walks. It is rebuilt per
// operation; trees in this domain hold hundreds of nodes, not millions.
type Index map[string]*Node

// FindNode returns the node with the given id, or nil.
func FindNode(forest []*Node, id string) *Node {
	for _, n := range forest {
		if n.ID == id {
			return n
		}
		if found := FindNode(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// CountDescendants returns the number of nodes strictly under node.
func CountDescendants(node *Node) int {
	if node == nil {
		return 0
	}
	total := 0
	for _, c := range node.Children {
		total += 1 + CountDescendants(c)
	}
	return total
}

// Flatten builds an id index over the whole forest.
func Flatten(forest []*Node) Index {
	idx := make(Index)
	Walk(forest, func(n *Node, _ int) bool {
		idx[n.ID] = n
		return true
	})
	return idx
}

// Walk visits every node depth-first in display order. Returning false
// from fn skips that node's children.
func Walk(forest []*Node, fn func(n *Node, depth int) bool) {
	var walk func(nodes []*Node, depth int)
	walk = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			if fn(n, depth) {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(forest, 0)
}

// IsAncestor reports whether candidateID appears on the parent chain of
// nodeID. A node is never its own ancestor. The walk is bounded by the
// index size so corrupt data with a parent cycle cannot loop forever.
func IsAncestor(idx Index, candidateID, nodeID string) bool {
	node, ok := idx[nodeID]
	if !ok {
		return false
	}
	parentID := node.ParentID
	for steps := 0; parentID != "" && steps <= len(idx); steps++ {
		if parentID == candidateID {
			return true
		}
		parent, ok := idx[parentID]
		if !ok {
			return false
		}
		parentID = parent.ParentID
	}
	return false
}

// Ancestors returns the ids on nodeID's parent chain, nearest first.
func Ancestors(idx Index, nodeID string) []string {
	var out []string
	node, ok := idx[nodeID]
	if !ok {
		return nil
	}
	parentID := node.ParentID
	for steps := 0; parentID != "" && steps <= len(idx); steps++ {
		out = append(out, parentID)
		parent, ok := idx[parentID]
		if !ok {
			break
		}
		parentID = parent.ParentID
	}
	return out
}

// Clone returns a deep copy of the forest.
func Clone(forest []*Node) []*Node {
	if forest == nil {
		return nil
	}
	out := make([]*Node, len(forest))
	for i, n := range forest {
		cp := *n
		cp.Children = Clone(n.Children)
		out[i] = &cp
	}
	return out
}

// Size returns the total number of nodes in the forest.
func Size(forest []*Node) int {
	total := 0
	for _, n := range forest {
		total += 1 + CountDescendants(n)
	}
	return total
}
