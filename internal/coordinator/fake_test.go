package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/HendryAvila/foundry/internal/tree"
)

// fakeBackend is an in-memory Backend built on the tree transforms.
// fail injects an error per operation; hooks run inside an operation
// before it takes effect.
type fakeBackend struct {
	mu      sync.Mutex
	forest  []*tree.Node
	deleted map[string]deletedEntry
	nextID  int

	fail  map[string]error
	hooks map[string]func()
	calls []string
}

type deletedEntry struct {
	subtree *tree.Node
	at      tree.Placement
}

func newFakeBackend(forest []*tree.Node) *fakeBackend {
	return &fakeBackend{
		forest:  forest,
		deleted: make(map[string]deletedEntry),
		fail:    make(map[string]error),
		hooks:   make(map[string]func()),
	}
}

// enter records the call, runs its hook and returns any injected error.
func (f *fakeBackend) enter(op string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	hook := f.hooks[op]
	err := f.fail[op]
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeBackend) mutate(fn func(forest []*tree.Node) ([]*tree.Node, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := fn(f.forest)
	if err != nil {
		return err
	}
	f.forest = normalize(next, "")
	return nil
}

// normalize renumbers sibling positions the way the store does.
func normalize(nodes []*tree.Node, parentID string) []*tree.Node {
	if nodes == nil {
		return nil
	}
	out := make([]*tree.Node, len(nodes))
	for i, n := range nodes {
		cp := *n
		cp.ParentID = parentID
		cp.Position = i
		cp.Children = normalize(n.Children, n.ID)
		out[i] = &cp
	}
	return out
}

func (f *fakeBackend) FetchTree(_ context.Context, _ string) ([]*tree.Node, error) {
	if err := f.enter("fetch"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return tree.Clone(f.forest), nil
}

func (f *fakeBackend) CreateNode(_ context.Context, _ string, parentID, title string) (*tree.Node, error) {
	if err := f.enter("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n := &tree.Node{
		ID:       fmt.Sprintf("N%d", f.nextID),
		ParentID: parentID,
		Title:    title,
		Level:    tree.LevelEpic,
		Status:   tree.StatusNotStarted,
	}
	siblings := f.forest
	if parentID != "" {
		parent := tree.FindNode(f.forest, parentID)
		if parent == nil {
			return nil, tree.ErrNodeNotFound
		}
		next, _ := parent.Level.Next()
		n.Level = next
		siblings = parent.Children
	}
	n.Position = len(siblings)
	next, err := tree.InsertNode(f.forest, n)
	if err != nil {
		return nil, err
	}
	f.forest = normalize(next, "")
	cp := *n
	return &cp, nil
}

func (f *fakeBackend) RenameNode(_ context.Context, id, title string) error {
	if err := f.enter("rename"); err != nil {
		return err
	}
	return f.mutate(update(id, func(n *tree.Node) { n.Title = title }))
}

func (f *fakeBackend) DeleteNode(_ context.Context, id string, policy tree.Policy) error {
	if err := f.enter("delete"); err != nil {
		return err
	}
	return f.mutate(func(forest []*tree.Node) ([]*tree.Node, error) {
		n := tree.FindNode(forest, id)
		if n == nil {
			return nil, tree.ErrNodeNotFound
		}
		at, _ := tree.PlacementOf(forest, id)
		f.deleted[id] = deletedEntry{subtree: n, at: at}
		return tree.ApplyDelete(forest, id, policy)
	})
}

func (f *fakeBackend) RestoreNode(_ context.Context, id string) error {
	if err := f.enter("restore"); err != nil {
		return err
	}
	return f.mutate(func(forest []*tree.Node) ([]*tree.Node, error) {
		d, ok := f.deleted[id]
		if !ok {
			return nil, tree.ErrNodeNotFound
		}
		delete(f.deleted, id)
		return tree.RestoreSubtree(forest, d.subtree, d.at)
	})
}

func (f *fakeBackend) SetStatus(_ context.Context, id string, status tree.Status) error {
	if err := f.enter("status"); err != nil {
		return err
	}
	return f.mutate(update(id, func(n *tree.Node) { n.Status = status }))
}

func (f *fakeBackend) SetLevel(_ context.Context, id string, level tree.Level) error {
	if err := f.enter("level"); err != nil {
		return err
	}
	return f.mutate(update(id, func(n *tree.Node) { n.Level = level }))
}

func (f *fakeBackend) MoveNode(_ context.Context, id, parentID string, position int) error {
	if err := f.enter("move"); err != nil {
		return err
	}
	return f.mutate(func(forest []*tree.Node) ([]*tree.Node, error) {
		return tree.ApplyPlacement(forest, id, tree.Placement{ParentID: parentID, Position: position})
	})
}

// --- Fixtures ---

func node(id string, level tree.Level, children ...*tree.Node) *tree.Node {
	return &tree.Node{ID: id, Title: id, Level: level, Status: tree.StatusNotStarted, Children: children}
}

func link(roots ...*tree.Node) []*tree.Node {
	var walk func(nodes []*tree.Node, parentID string)
	walk = func(nodes []*tree.Node, parentID string) {
		for i, n := range nodes {
			n.ParentID = parentID
			n.Position = i
			walk(n.Children, n.ID)
		}
	}
	walk(roots, "")
	return roots
}

// sample:
//
//	E1
//	  F1
//	    S1
//	      T1
//	    S2
//	  F2
//	E2
//	  F3
func sample() []*tree.Node {
	return link(
		node("E1", tree.LevelEpic,
			node("F1", tree.LevelFeature,
				node("S1", tree.LevelSubFeature, node("T1", tree.LevelTask)),
				node("S2", tree.LevelSubFeature),
			),
			node("F2", tree.LevelFeature),
		),
		node("E2", tree.LevelEpic, node("F3", tree.LevelFeature)),
	)
}

func ids(nodes []*tree.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
