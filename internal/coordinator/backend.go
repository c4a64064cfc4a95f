package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/HendryAvila/foundry/internal/tree"
)

// Backend is the remote persistence collaborator. Implementations decide
// transport and format; the coordinator only relies on these operations.
// parentID is empty for the root list.
type Backend interface {
	FetchTree(ctx context.Context, projectID string) ([]*tree.Node, error)
	CreateNode(ctx context.Context, projectID, parentID, title string) (*tree.Node, error)
	RenameNode(ctx context.Context, id, title string) error
	DeleteNode(ctx context.Context, id string, policy tree.Policy) error
	RestoreNode(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status tree.Status) error
	SetLevel(ctx context.Context, id string, level tree.Level) error
	MoveNode(ctx context.Context, id, parentID string, position int) error
}

// --- Notifications ---

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Notification is a non-blocking message for the view (a toast).
type Notification struct {
	Severity Severity `json:"severity"`
	Op       string   `json:"op"`
	NodeID   string   `json:"nodeId,omitempty"`
	Message  string   `json:"message"`
	// CanUndo is set when a time-boxed undo is available for this result.
	CanUndo bool `json:"canUndo,omitempty"`
}

// Notifier receives notifications. It is called without the coordinator
// lock held, so implementations may call back into the coordinator.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"op", n.Op, "node", n.NodeID, "can_undo", n.CanUndo}
	if n.Severity == SeverityError {
		logger.Warn(n.Message, attrs...)
		return
	}
	logger.Info(n.Message, attrs...)
}

// Buffer collects notifications until drained. Safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	items []Notification
}

// Notify implements Notifier.
func (b *Buffer) Notify(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
}

// Drain returns and clears the collected notifications.
func (b *Buffer) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(n Notification) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(n)
		}
	}
}
