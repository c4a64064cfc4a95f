package coordinator

import (
	"context"
	"errors"
	"sync"
)

// ErrNoProject is returned when no project session has been opened.
var ErrNoProject = errors.New("no project open")

// Workspace holds the active project session. Opening another project
// replaces the session and its local state.
type Workspace struct {
	backend Backend
	opts    Options

	mu      sync.Mutex
	current *Coordinator
}

// NewWorkspace creates an empty workspace over backend.
func NewWorkspace(backend Backend, opts Options) *Workspace {
	return &Workspace{backend: backend, opts: opts}
}

// Open loads projectID into a fresh session. If the initial fetch fails
// the previous session stays current.
func (w *Workspace) Open(ctx context.Context, projectID string) (*Coordinator, error) {
	c := New(projectID, w.backend, w.opts)
	if err := c.Refetch(ctx); err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.current = c
	w.mu.Unlock()
	return c, nil
}

// Current returns the active session.
func (w *Workspace) Current() (*Coordinator, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil, ErrNoProject
	}
	return w.current, nil
}

// Close drops the active session.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = nil
}
