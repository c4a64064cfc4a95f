package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/foundry/internal/filter"
	"github.com/HendryAvila/foundry/internal/tree"
)

// --- Helpers ---

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) (*Coordinator, *fakeBackend, *Buffer) {
	t.Helper()
	fb := newFakeBackend(sample())
	buf := &Buffer{}
	c := New("p1", fb, Options{Logger: quietLogger(), Notifier: buf})
	require.NoError(t, c.Refetch(context.Background()))
	return c, fb, buf
}

// freezeTime pins timeNow; advance the returned pointer to move the clock.
func freezeTime(t *testing.T) *time.Time {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = orig })
	return &now
}

func mv(dragged, target string, zone tree.Zone) tree.Move {
	return tree.Move{DraggedID: dragged, Target: tree.DropTarget{TargetID: target, Zone: zone}}
}

func errorNotes(notes []Notification) []Notification {
	var out []Notification
	for _, n := range notes {
		if n.Severity == SeverityError {
			out = append(out, n)
		}
	}
	return out
}

// --- Refetch ---

func TestRefetch_LoadsForest(t *testing.T) {
	c, _, _ := setup(t)
	v := c.View()
	assert.True(t, v.Loaded)
	assert.Equal(t, []string{"E1", "E2"}, ids(v.Forest))
	assert.Equal(t, "p1", v.ProjectID)
}

func TestRefetch_FailureKeepsForestAndNotifies(t *testing.T) {
	c, fb, buf := setup(t)
	before := c.Forest()

	fb.fail["fetch"] = errors.New("connection refused")
	err := c.Refetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, before, c.Forest())
	require.Len(t, errorNotes(buf.Drain()), 1)
}

func TestRefetch_PrunesEditingForVanishedNodes(t *testing.T) {
	ctx := context.Background()
	c, fb, _ := setup(t)

	n, err := c.Create(ctx, "F2")
	require.NoError(t, err)
	require.True(t, c.IsEditing(n.ID))

	require.NoError(t, fb.mutate(func(f []*tree.Node) ([]*tree.Node, error) {
		return tree.ApplyDelete(f, n.ID, tree.PolicyDeleteOnly)
	}))
	require.NoError(t, c.Refetch(ctx))
	assert.False(t, c.IsEditing(n.ID))
}

// --- Move ---

func TestMove_ReordersRoots(t *testing.T) {
	ctx := context.Background()
	c, fb, buf := setup(t)

	moved, err := c.Move(ctx, mv("E2", "E1", tree.ZoneBefore))
	require.NoError(t, err)
	assert.True(t, moved)

	forest := c.Forest()
	assert.Equal(t, []string{"E2", "E1"}, ids(forest))
	assert.Equal(t, 0, forest[0].Position)
	assert.Equal(t, 1, forest[1].Position)
	assert.Equal(t, 1, fb.count("move"))
	assert.Equal(t, 2, fb.count("fetch"), "move success must refetch")

	notes := buf.Drain()
	require.Len(t, notes, 1)
	assert.True(t, notes[0].CanUndo)
}

func TestMove_OptimisticPositionsFollowOrder(t *testing.T) {
	c, fb, _ := setup(t)

	var during []*tree.Node
	fb.hooks["move"] = func() { during = c.Forest() }
	_, err := c.Move(context.Background(), mv("E2", "E1", tree.ZoneBefore))
	require.NoError(t, err)

	require.Equal(t, []string{"E2", "E1"}, ids(during))
	assert.Equal(t, 0, during[0].Position)
	assert.Equal(t, 1, during[1].Position)
}

func TestMove_InvalidIsIgnored(t *testing.T) {
	c, fb, buf := setup(t)
	before := c.Forest()

	moved, err := c.Move(context.Background(), mv("T1", "E1", tree.ZoneOn))
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, before, c.Forest())
	assert.Zero(t, fb.count("move"))
	assert.Empty(t, buf.Drain())
}

func TestMove_FailureRestoresSnapshotExactly(t *testing.T) {
	c, fb, buf := setup(t)
	before := c.Forest()

	fb.fail["move"] = errors.New("server unavailable")
	moved, err := c.Move(context.Background(), mv("S2", "F3", tree.ZoneOn))
	require.Error(t, err)
	assert.False(t, moved)
	assert.Equal(t, before, c.Forest())
	assert.Nil(t, c.View().Undo, "failed move must not offer undo")

	notes := errorNotes(buf.Drain())
	require.Len(t, notes, 1)
	assert.Equal(t, "move", notes[0].Op)
	assert.Equal(t, "S2", notes[0].NodeID)
}

func TestMove_StaleFailureIsDiscarded(t *testing.T) {
	ctx := context.Background()
	c, fb, buf := setup(t)

	fb.fail["move"] = errors.New("server unavailable")
	fb.hooks["move"] = func() {
		require.NoError(t, fb.mutate(update("E1", func(n *tree.Node) { n.Title = "Renamed elsewhere" })))
		require.NoError(t, c.Refetch(ctx))
	}

	moved, err := c.Move(ctx, mv("E2", "E1", tree.ZoneBefore))
	require.NoError(t, err)
	assert.False(t, moved)

	forest := c.Forest()
	assert.Equal(t, []string{"E1", "E2"}, ids(forest))
	assert.Equal(t, "Renamed elsewhere", forest[0].Title, "refetched forest must survive the late response")
	assert.Empty(t, errorNotes(buf.Drain()))
}

func TestMove_StaleSuccessOffersNoUndo(t *testing.T) {
	ctx := context.Background()
	c, fb, buf := setup(t)

	fb.hooks["move"] = func() {
		require.NoError(t, c.Refetch(ctx))
	}
	moved, err := c.Move(ctx, mv("E2", "E1", tree.ZoneBefore))
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"E2", "E1"}, ids(c.Forest()))
	assert.Nil(t, c.View().Undo)
	for _, n := range buf.Drain() {
		assert.False(t, n.CanUndo, "superseded move offered undo: %+v", n)
	}
}

func TestMove_FailureAfterInFlightRefetchKeepsServerForest(t *testing.T) {
	ctx := context.Background()
	c, fb, buf := setup(t)
	require.NoError(t, fb.mutate(update("E1", func(n *tree.Node) { n.Title = "server title" })))

	fetchEntered, releaseFetch := make(chan struct{}), make(chan struct{})
	moveEntered, releaseMove := make(chan struct{}), make(chan struct{})
	fb.hooks["fetch"] = func() {
		close(fetchEntered)
		<-releaseFetch
	}
	fb.hooks["move"] = func() {
		close(moveEntered)
		<-releaseMove
	}
	fb.fail["move"] = errors.New("server unavailable")

	refetched := make(chan error, 1)
	go func() { refetched <- c.Refetch(ctx) }()
	<-fetchEntered

	type result struct {
		moved bool
		err   error
	}
	done := make(chan result, 1)
	go func() {
		moved, err := c.Move(ctx, mv("E2", "E1", tree.ZoneBefore))
		done <- result{moved, err}
	}()
	<-moveEntered

	close(releaseFetch)
	require.NoError(t, <-refetched)
	require.Equal(t, "server title", tree.FindNode(c.Forest(), "E1").Title)

	close(releaseMove)
	res := <-done
	require.NoError(t, res.err)
	assert.False(t, res.moved)

	forest := c.Forest()
	assert.Equal(t, []string{"E1", "E2"}, ids(forest))
	assert.Equal(t, "server title", forest[0].Title, "late failure must not restore the pre-refetch snapshot")
	assert.Empty(t, errorNotes(buf.Drain()))
}

// --- Undo ---

func TestUndo_MoveWithinWindow(t *testing.T) {
	ctx := context.Background()
	now := freezeTime(t)
	c, fb, _ := setup(t)

	_, err := c.Move(ctx, mv("E2", "E1", tree.ZoneBefore))
	require.NoError(t, err)
	u := c.View().Undo
	require.NotNil(t, u)
	assert.Equal(t, UndoMove, u.Kind)
	assert.Equal(t, tree.Placement{Position: 1}, u.From)

	*now = now.Add(4 * time.Second)
	require.NoError(t, c.Undo(ctx))
	assert.Equal(t, []string{"E1", "E2"}, ids(c.Forest()))
	assert.Equal(t, 2, fb.count("move"))

	assert.ErrorIs(t, c.Undo(ctx), ErrNothingToUndo)
}

func TestUndo_MoveExpires(t *testing.T) {
	ctx := context.Background()
	now := freezeTime(t)
	c, fb, _ := setup(t)

	_, err := c.Move(ctx, mv("E2", "E1", tree.ZoneBefore))
	require.NoError(t, err)

	*now = now.Add(DefaultMoveUndoWindow)
	assert.Nil(t, c.View().Undo)
	assert.ErrorIs(t, c.Undo(ctx), ErrUndoExpired)
	assert.Equal(t, []string{"E2", "E1"}, ids(c.Forest()))
	assert.Equal(t, 1, fb.count("move"))
}

func TestUndo_DeleteRestoresSubtree(t *testing.T) {
	ctx := context.Background()
	now := freezeTime(t)
	c, fb, _ := setup(t)
	before := c.Forest()

	require.NoError(t, c.Delete(ctx, "F1", tree.PolicyDeleteSubtree))
	assert.Nil(t, tree.FindNode(c.Forest(), "T1"))

	*now = now.Add(9 * time.Second)
	require.NoError(t, c.Undo(ctx))
	assert.Equal(t, before, c.Forest())
	assert.Equal(t, 1, fb.count("restore"))
}

func TestUndo_DeleteExpiresAfterWindow(t *testing.T) {
	ctx := context.Background()
	now := freezeTime(t)
	c, fb, _ := setup(t)

	require.NoError(t, c.Delete(ctx, "F2", ""))
	*now = now.Add(DefaultDeleteUndoWindow + time.Millisecond)
	assert.ErrorIs(t, c.Undo(ctx), ErrUndoExpired)
	assert.Zero(t, fb.count("restore"))
}

func TestUndo_NewerMutationReplacesOffer(t *testing.T) {
	ctx := context.Background()
	freezeTime(t)
	c, _, _ := setup(t)

	_, err := c.Move(ctx, mv("E2", "E1", tree.ZoneBefore))
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "F2", ""))

	u := c.View().Undo
	require.NotNil(t, u)
	assert.Equal(t, UndoDelete, u.Kind)
	assert.Equal(t, "F2", u.NodeID)
}

func TestUndo_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	freezeTime(t)
	c, fb, buf := setup(t)

	require.NoError(t, c.Delete(ctx, "F2", ""))
	afterDelete := c.Forest()
	buf.Drain()

	fb.fail["restore"] = errors.New("gone")
	require.Error(t, c.Undo(ctx))
	assert.Equal(t, afterDelete, c.Forest())
	assert.Len(t, errorNotes(buf.Drain()), 1)
}

// --- Delete ---

func TestDelete_RequiresPolicyForParents(t *testing.T) {
	c, fb, _ := setup(t)
	err := c.Delete(context.Background(), "F1", "")
	assert.ErrorIs(t, err, tree.ErrPolicyRequired)
	assert.Zero(t, fb.count("delete"))
}

func TestDelete_LeafDefaultsToDeleteOnly(t *testing.T) {
	c, _, buf := setup(t)
	require.NoError(t, c.Delete(context.Background(), "F2", ""))
	assert.Nil(t, tree.FindNode(c.Forest(), "F2"))
	u := c.View().Undo
	require.NotNil(t, u)
	assert.Equal(t, tree.PolicyDeleteOnly, u.Policy)

	notes := buf.Drain()
	require.Len(t, notes, 1)
	assert.True(t, notes[0].CanUndo)
}

func TestDelete_FailureRestoresSnapshot(t *testing.T) {
	c, fb, _ := setup(t)
	before := c.Forest()
	fb.fail["delete"] = errors.New("locked")

	require.Error(t, c.Delete(context.Background(), "F1", tree.PolicyDeleteSubtree))
	assert.Equal(t, before, c.Forest())
	assert.Nil(t, c.View().Undo)
}

func TestDelete_StaleSuccessOffersNoUndo(t *testing.T) {
	ctx := context.Background()
	c, fb, _ := setup(t)

	fb.hooks["delete"] = func() {
		require.NoError(t, c.Refetch(ctx))
	}
	require.NoError(t, c.Delete(ctx, "F2", ""))
	assert.Nil(t, tree.FindNode(c.Forest(), "F2"), "reconcile picks up the persisted delete")
	assert.Nil(t, c.View().Undo)
}

// --- Create and title authoring ---

func TestCreate_EntersEditing(t *testing.T) {
	c, _, _ := setup(t)
	n, err := c.Create(context.Background(), "F2")
	require.NoError(t, err)

	assert.Equal(t, tree.LevelSubFeature, n.Level)
	assert.True(t, c.IsEditing(n.ID))
	f2 := tree.FindNode(c.Forest(), "F2")
	require.NotNil(t, f2)
	assert.Equal(t, []string{n.ID}, ids(f2.Children))
	assert.True(t, c.View().Expanded["F2"])
}

func TestCreate_UnderTaskRejected(t *testing.T) {
	c, fb, _ := setup(t)
	_, err := c.Create(context.Background(), "T1")
	assert.ErrorIs(t, err, tree.ErrNoChildren)
	assert.Zero(t, fb.count("create"))
}

func TestCreate_FailureNotifies(t *testing.T) {
	c, fb, buf := setup(t)
	fb.fail["create"] = errors.New("quota exceeded")

	_, err := c.Create(context.Background(), "")
	require.Error(t, err)
	assert.Empty(t, c.View().Editing)
	assert.Len(t, errorNotes(buf.Drain()), 1)
}

func TestConfirmTitle_EmptyDeletesFreshNode(t *testing.T) {
	ctx := context.Background()
	c, fb, buf := setup(t)
	n, err := c.Create(ctx, "F2")
	require.NoError(t, err)

	require.NoError(t, c.ConfirmTitle(ctx, n.ID, "   "))
	assert.Nil(t, tree.FindNode(c.Forest(), n.ID))
	assert.False(t, c.IsEditing(n.ID))
	assert.Equal(t, 1, fb.count("delete"))
	assert.Zero(t, fb.count("rename"))
	assert.Nil(t, c.View().Undo, "authoring cleanup is not undoable")
	for _, note := range buf.Drain() {
		assert.False(t, note.CanUndo)
	}
}

func TestConfirmTitle_Renames(t *testing.T) {
	ctx := context.Background()
	c, fb, _ := setup(t)
	n, err := c.Create(ctx, "F2")
	require.NoError(t, err)

	require.NoError(t, c.ConfirmTitle(ctx, n.ID, "  Login flow  "))
	got := tree.FindNode(c.Forest(), n.ID)
	require.NotNil(t, got)
	assert.Equal(t, "Login flow", got.Title)
	assert.False(t, c.IsEditing(n.ID))
	assert.Equal(t, 1, fb.count("rename"))
}

func TestConfirmTitle_UnchangedSkipsBackend(t *testing.T) {
	c, fb, _ := setup(t)
	require.NoError(t, c.StartEditing("E1"))
	require.NoError(t, c.ConfirmTitle(context.Background(), "E1", "E1"))
	assert.False(t, c.IsEditing("E1"))
	assert.Zero(t, fb.count("rename"))
}

func TestConfirmTitle_FailureKeepsEditing(t *testing.T) {
	c, fb, _ := setup(t)
	require.NoError(t, c.StartEditing("E1"))
	fb.fail["rename"] = errors.New("timeout")

	require.Error(t, c.ConfirmTitle(context.Background(), "E1", "Checkout"))
	assert.Equal(t, "E1", tree.FindNode(c.Forest(), "E1").Title)
	assert.True(t, c.IsEditing("E1"))
}

func TestCancelEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("untitled new node is deleted", func(t *testing.T) {
		c, fb, _ := setup(t)
		n, err := c.Create(ctx, "")
		require.NoError(t, err)

		require.NoError(t, c.CancelEdit(ctx, n.ID))
		assert.Nil(t, tree.FindNode(c.Forest(), n.ID))
		assert.Equal(t, 1, fb.count("delete"))
	})

	t.Run("existing node reverts", func(t *testing.T) {
		c, fb, _ := setup(t)
		require.NoError(t, c.StartEditing("E2"))

		require.NoError(t, c.CancelEdit(ctx, "E2"))
		assert.NotNil(t, tree.FindNode(c.Forest(), "E2"))
		assert.False(t, c.IsEditing("E2"))
		assert.Zero(t, fb.count("delete"))
	})

	t.Run("not editing is a no-op", func(t *testing.T) {
		c, fb, _ := setup(t)
		require.NoError(t, c.CancelEdit(ctx, "E2"))
		assert.Zero(t, fb.count("delete"))
	})
}

// --- Status and level ---

func TestSetStatus_RefetchesOnSuccess(t *testing.T) {
	c, fb, _ := setup(t)
	require.NoError(t, c.SetStatus(context.Background(), "T1", tree.StatusComplete))
	assert.Equal(t, tree.StatusComplete, tree.FindNode(c.Forest(), "T1").Status)
	assert.Equal(t, 2, fb.count("fetch"))
}

func TestSetStatus_InvalidRejectedLocally(t *testing.T) {
	c, fb, _ := setup(t)
	require.Error(t, c.SetStatus(context.Background(), "T1", tree.Status("done")))
	assert.Zero(t, fb.count("status"))
}

func TestSetStatus_FailureReverts(t *testing.T) {
	c, fb, _ := setup(t)
	fb.fail["status"] = errors.New("nope")
	require.Error(t, c.SetStatus(context.Background(), "T1", tree.StatusBlocked))
	assert.Equal(t, tree.StatusNotStarted, tree.FindNode(c.Forest(), "T1").Status)
	assert.Equal(t, 1, fb.count("fetch"))
}

func TestSetLevel(t *testing.T) {
	ctx := context.Background()

	t.Run("single step", func(t *testing.T) {
		c, fb, _ := setup(t)
		require.NoError(t, c.SetLevel(ctx, "S2", tree.LevelTask))
		assert.Equal(t, tree.LevelTask, tree.FindNode(c.Forest(), "S2").Level)
		assert.Equal(t, 1, fb.count("level"))
	})

	t.Run("task with children blocked", func(t *testing.T) {
		c, fb, _ := setup(t)
		assert.ErrorIs(t, c.SetLevel(ctx, "S1", tree.LevelTask), tree.ErrHasChildren)
		assert.Zero(t, fb.count("level"))
	})

	t.Run("multi step blocked", func(t *testing.T) {
		c, fb, _ := setup(t)
		assert.ErrorIs(t, c.SetLevel(ctx, "F2", tree.LevelTask), tree.ErrLevelStep)
		assert.Zero(t, fb.count("level"))
	})
}

// --- Drag ---

func TestDrag_InvalidDropIsNoop(t *testing.T) {
	ctx := context.Background()
	c, fb, _ := setup(t)
	before := c.Forest()

	require.NoError(t, c.BeginDrag("E2"))
	assert.ErrorIs(t, c.BeginDrag("E1"), ErrDragActive)

	st, err := c.DragOver(tree.DropTarget{TargetID: "E1", Zone: tree.ZoneOn})
	require.NoError(t, err)
	assert.False(t, st.Valid)
	assert.Equal(t, before, c.Forest(), "drag preview must not touch the forest")

	moved, err := c.Drop(ctx)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Zero(t, fb.count("move"))
	assert.Nil(t, c.View().Drag)
}

func TestDrag_ValidDropMoves(t *testing.T) {
	ctx := context.Background()
	c, _, _ := setup(t)

	require.NoError(t, c.BeginDrag("F2"))
	st, err := c.DragOver(tree.DropTarget{TargetID: "F3", Zone: tree.ZoneAfter})
	require.NoError(t, err)
	assert.True(t, st.Valid)

	moved, err := c.Drop(ctx)
	require.NoError(t, err)
	assert.True(t, moved)
	e2 := tree.FindNode(c.Forest(), "E2")
	assert.Equal(t, []string{"F3", "F2"}, ids(e2.Children))
}

func TestDrag_WithoutBegin(t *testing.T) {
	c, _, _ := setup(t)
	_, err := c.DragOver(tree.DropTarget{TargetID: "E1", Zone: tree.ZoneBefore})
	assert.ErrorIs(t, err, ErrNoDrag)
	_, err = c.Drop(context.Background())
	assert.ErrorIs(t, err, ErrNoDrag)

	require.NoError(t, c.BeginDrag("E1"))
	c.CancelDrag()
	require.NoError(t, c.BeginDrag("E2"))
}

// --- View ---

func TestView_FilterAutoExpandsAncestors(t *testing.T) {
	c, _, _ := setup(t)
	crit := filter.NewCriteria()
	crit.Query = "t1"
	c.SetFilter(crit)

	v := c.View()
	assert.True(t, v.Filter.Active)
	assert.True(t, v.Filter.Visible("T1"))
	assert.False(t, v.Filter.Visible("E2"))
	for _, id := range []string{"E1", "F1", "S1"} {
		assert.True(t, v.Expanded[id], id)
	}
}

func TestToggleExpanded(t *testing.T) {
	c, _, _ := setup(t)
	assert.True(t, c.ToggleExpanded("E1"))
	assert.True(t, c.View().Expanded["E1"])
	assert.False(t, c.ToggleExpanded("E1"))
	assert.False(t, c.View().Expanded["E1"])
}

// --- Concurrency ---

func TestConcurrentMutationsAndRefetch(t *testing.T) {
	ctx := context.Background()
	c, _, _ := setup(t)

	statuses := []tree.Status{tree.StatusInProgress, tree.StatusComplete, tree.StatusBlocked}
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.SetStatus(ctx, "T1", statuses[i%len(statuses)]))
		}(i)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Refetch(ctx))
		}()
	}
	wg.Wait()

	require.NoError(t, c.Refetch(ctx))
	assert.Equal(t, 8, tree.Size(c.Forest()))
}

// --- Workspace ---

func TestWorkspace_OpenReplacesSession(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBackend(sample())
	ws := NewWorkspace(fb, Options{Logger: quietLogger(), Notifier: &Buffer{}})

	_, err := ws.Current()
	assert.ErrorIs(t, err, ErrNoProject)

	first, err := ws.Open(ctx, "p1")
	require.NoError(t, err)
	cur, err := ws.Current()
	require.NoError(t, err)
	assert.Same(t, first, cur)

	fb.fail["fetch"] = errors.New("down")
	_, err = ws.Open(ctx, "p2")
	require.Error(t, err)
	cur, err = ws.Current()
	require.NoError(t, err)
	assert.Equal(t, "p1", cur.ProjectID())

	ws.Close()
	_, err = ws.Current()
	assert.ErrorIs(t, err, ErrNoProject)
}
