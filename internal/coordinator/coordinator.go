// Package coordinator orchestrates feature-tree mutations for one project
// session: it applies changes to the local forest optimistically, persists
// them through a Backend, rolls back with a full snapshot swap on failure,
// and offers time-boxed undo.
//
// Lifecycle of every mutation:
//
//	idle -> optimistic-applied -> confirmed | rolled-back
//
// The forest is guarded by a mutex that is never held across a Backend
// call. A refetch that starts later supersedes an earlier one. A mutation
// response that arrives after a refetch installed a new forest is
// discarded.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/HendryAvila/foundry/internal/filter"
	"github.com/HendryAvila/foundry/internal/tree"
)

// Coordinator errors.
var (
	ErrStale         = errors.New("response superseded by a newer refetch")
	ErrDragActive    = errors.New("a drag is already in progress")
	ErrNoDrag        = errors.New("no drag in progress")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrUndoExpired   = errors.New("undo window has expired")
)

// Default undo windows.
const (
	DefaultMoveUndoWindow   = 5 * time.Second
	DefaultDeleteUndoWindow = 10 * time.Second
)

// Options configures a Coordinator. Zero values pick defaults.
type Options struct {
	Logger           *slog.Logger
	Notifier         Notifier
	MoveUndoWindow   time.Duration
	DeleteUndoWindow time.Duration
}

// editState tracks a node whose title is being authored.
type editState struct {
	// created is set for nodes made by Create in this session.
	created bool
}

// Coordinator owns the current forest for one project session.
type Coordinator struct {
	projectID string
	backend   Backend
	notifier  Notifier
	log       *slog.Logger
	opts      Options

	mu       sync.Mutex
	forest   []*tree.Node
	loaded   bool
	epoch    uint64
	editing  map[string]editState
	expanded map[string]bool
	criteria filter.Criteria
	drag     *DragState
	undo     *PendingUndo

	// generation counts forests installed by Refetch.
	generation uint64
}

// New creates a coordinator for projectID. Call Refetch to load the tree.
func New(projectID string, backend Backend, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	if opts.MoveUndoWindow <= 0 {
		opts.MoveUndoWindow = DefaultMoveUndoWindow
	}
	if opts.DeleteUndoWindow <= 0 {
		opts.DeleteUndoWindow = DefaultDeleteUndoWindow
	}
	return &Coordinator{
		projectID: projectID,
		backend:   backend,
		notifier:  opts.Notifier,
		log:       opts.Logger.With("project", projectID),
		opts:      opts,
		editing:   make(map[string]editState),
		expanded:  make(map[string]bool),
		criteria:  filter.NewCriteria(),
	}
}

// ProjectID returns the project this coordinator serves.
func (c *Coordinator) ProjectID() string { return c.projectID }

// Refetch loads the authoritative forest. It supersedes every response
// still in flight: their effects are discarded when they resolve.
func (c *Coordinator) Refetch(ctx context.Context) error {
	c.mu.Lock()
	c.epoch++
	mine := c.epoch
	c.mu.Unlock()

	start := time.Now()
	nodes, err := c.backend.FetchTree(ctx, c.projectID)
	refetchDuration.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	if mine != c.epoch {
		c.mu.Unlock()
		refetchTotal.WithLabelValues("stale").Inc()
		c.log.Debug("discarding superseded refetch", "epoch", mine)
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		refetchTotal.WithLabelValues("error").Inc()
		c.notify(Notification{Severity: SeverityError, Op: "refetch", Message: fmt.Sprintf("Failed to load tree: %v", err)})
		return fmt.Errorf("fetching tree: %w", err)
	}
	c.forest = nodes
	c.loaded = true
	c.generation++
	idx := tree.Flatten(nodes)
	for id := range c.editing {
		if _, ok := idx[id]; !ok {
			delete(c.editing, id)
		}
	}
	c.mu.Unlock()

	refetchTotal.WithLabelValues("ok").Inc()
	c.log.Debug("tree refetched", "nodes", len(idx), "epoch", mine)
	return nil
}

// Forest returns a deep copy of the current forest.
func (c *Coordinator) Forest() []*tree.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tree.Clone(c.forest)
}

// SetFilter replaces the active search/filter criteria.
func (c *Coordinator) SetFilter(criteria filter.Criteria) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.criteria = criteria
}

// ToggleExpanded flips the user expansion state of id and returns it.
func (c *Coordinator) ToggleExpanded(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expanded[id] = !c.expanded[id]
	return c.expanded[id]
}

// View is everything the view collaborator needs to render.
type View struct {
	ProjectID string
	Loaded    bool
	Forest    []*tree.Node
	Filter    filter.Result
	// Expanded holds user-expanded ids plus ancestors of filter matches.
	Expanded map[string]bool
	Editing  map[string]bool
	Drag     *DragState
	Undo     *PendingUndo
}

// View returns a consistent snapshot of the render state.
func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := filter.Compute(c.forest, c.criteria)
	expanded := make(map[string]bool, len(c.expanded))
	for id, open := range c.expanded {
		if open {
			expanded[id] = true
		}
	}
	for id := range res.AutoExpand() {
		expanded[id] = true
	}
	editing := make(map[string]bool, len(c.editing))
	for id := range c.editing {
		editing[id] = true
	}

	v := View{
		ProjectID: c.projectID,
		Loaded:    c.loaded,
		Forest:    tree.Clone(c.forest),
		Filter:    res,
		Expanded:  expanded,
		Editing:   editing,
	}
	if c.drag != nil {
		d := *c.drag
		v.Drag = &d
	}
	if c.undo != nil && timeNow().Before(c.undo.ExpiresAt) {
		u := *c.undo
		u.subtree = nil
		v.Undo = &u
	}
	return v
}

// IsEditing reports whether id is in title-authoring state.
func (c *Coordinator) IsEditing(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.editing[id]
	return ok
}

// --- Optimistic mutation core ---

type mutation struct {
	op     string
	nodeID string
	// apply computes the optimistic forest; an error is a validation
	// rejection and nothing reaches the backend.
	apply  func(forest []*tree.Node) ([]*tree.Node, error)
	remote func(ctx context.Context) error
}

// run applies m optimistically, persists it, and either confirms or swaps
// the pre-mutation snapshot back in. persisted reports whether the backend
// accepted the change; current reports whether the response still applies
// to the forest this mutation changed. A response that arrives after a
// refetch installed a newer forest is discarded: no rollback, no
// notification, current=false and a nil error.
func (c *Coordinator) run(ctx context.Context, m mutation) (persisted, current bool, err error) {
	c.mu.Lock()
	snapshot, gen := c.forest, c.generation
	next, err := m.apply(snapshot)
	if err != nil {
		c.mu.Unlock()
		mutationsTotal.WithLabelValues(m.op, outcomeRejected).Inc()
		c.log.Debug("mutation rejected", "op", m.op, "node", m.nodeID, "error", err)
		return false, false, err
	}
	c.forest = next
	c.mu.Unlock()
	c.log.Debug("optimistic apply", "op", m.op, "node", m.nodeID)

	remoteErr := m.remote(ctx)

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		mutationsTotal.WithLabelValues(m.op, outcomeStale).Inc()
		c.log.Debug("discarding response", "op", m.op, "node", m.nodeID, "reason", ErrStale, "remote_error", remoteErr)
		return remoteErr == nil, false, nil
	}
	if remoteErr != nil {
		c.forest = snapshot
		c.mu.Unlock()
		mutationsTotal.WithLabelValues(m.op, outcomeRolledBack).Inc()
		c.log.Warn("mutation rolled back", "op", m.op, "node", m.nodeID, "error", remoteErr)
		c.notify(Notification{
			Severity: SeverityError,
			Op:       m.op,
			NodeID:   m.nodeID,
			Message:  fmt.Sprintf("Could not %s: %v", m.op, remoteErr),
		})
		return false, false, fmt.Errorf("%s %s: %w", m.op, m.nodeID, remoteErr)
	}
	c.mu.Unlock()
	mutationsTotal.WithLabelValues(m.op, outcomeConfirmed).Inc()
	return true, true, nil
}

// reconcile refetches after a confirmed mutation. Refetch failures are
// already notified; the mutation itself stays confirmed.
func (c *Coordinator) reconcile(ctx context.Context) {
	if err := c.Refetch(ctx); err != nil {
		c.log.Warn("refetch after mutation failed", "error", err)
	}
}

func (c *Coordinator) notify(n Notification) {
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
}

// lookup returns the current node with id under the lock.
func (c *Coordinator) lookup(id string) (*tree.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := tree.FindNode(c.forest, id)
	if n == nil {
		return nil, fmt.Errorf("node %q: %w", id, tree.ErrNodeNotFound)
	}
	return n, nil
}
