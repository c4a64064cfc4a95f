package filter

import (
	"testing"

	"github.com/HendryAvila/foundry/internal/tree"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func n(id, title string, level tree.Level, status tree.Status, children ...*tree.Node) *tree.Node {
	node := &tree.Node{ID: id, Title: title, Level: level, Status: status, Children: children}
	for i, c := range children {
		c.ParentID = id
		c.Position = i
	}
	return node
}

// Login epic
//
//	Auth feature
//	  OAuth sub feature
//	    Token refresh task (blocked)
//	  Password reset sub feature (complete)
//
// Billing epic
//
//	Invoices feature
func sample() []*tree.Node {
	return []*tree.Node{
		n("E1", "Login", tree.LevelEpic, tree.StatusInProgress,
			n("F1", "Auth", tree.LevelFeature, tree.StatusInProgress,
				n("S1", "OAuth", tree.LevelSubFeature, tree.StatusInProgress,
					n("T1", "Token refresh", tree.LevelTask, tree.StatusBlocked),
				),
				n("S2", "Password reset", tree.LevelSubFeature, tree.StatusComplete),
			),
		),
		n("E2", "Billing", tree.LevelEpic, tree.StatusNotStarted,
			n("F2", "Invoices", tree.LevelFeature, tree.StatusNotStarted),
		),
	}
}

func TestCriteria_ActiveDefaults(t *testing.T) {
	assert.False(t, NewCriteria().Active())

	c := NewCriteria()
	c.Query = "  "
	assert.False(t, c.Active(), "whitespace query is no query")

	c.Query = "auth"
	assert.True(t, c.Active())
	assert.True(t, NewCriteria().WithStatuses(tree.StatusBlocked).Active())
	assert.True(t, NewCriteria().WithLevels(tree.LevelTask).Active())
}

func TestCompute_EmptySelectionMatchesNothing(t *testing.T) {
	for name, c := range map[string]Criteria{
		"no statuses": NewCriteria().WithStatuses(),
		"no levels":   NewCriteria().WithLevels(),
		"zero value":  {},
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, c.Active())
			res := Compute(sample(), c)
			assert.Empty(t, res.Matching)
			assert.Empty(t, res.Display)
			assert.False(t, res.Visible("E1"))
		})
	}
}

func TestCompute_InactiveShowsEverything(t *testing.T) {
	res := Compute(sample(), NewCriteria())
	assert.False(t, res.Active)
	assert.Empty(t, res.Matching)
	assert.True(t, res.Visible("T1"))
	assert.True(t, res.Visible("anything"))
}

func TestCompute_QueryKeepsAncestorChain(t *testing.T) {
	c := NewCriteria()
	c.Query = "TOKEN"
	res := Compute(sample(), c)

	assert.Equal(t, map[string]bool{"T1": true}, res.Matching)
	assert.Equal(t, map[string]bool{"T1": true, "S1": true, "F1": true, "E1": true}, res.Display)
	assert.Equal(t, map[string]bool{"S1": true, "F1": true, "E1": true}, res.AutoExpand())
	assert.False(t, res.Visible("E2"))
	assert.False(t, res.Visible("S2"))
}

func TestCompute_MatchesDescription(t *testing.T) {
	f := sample()
	f[1].Children[0].Description = "Monthly PDF export"
	c := NewCriteria()
	c.Query = "pdf"
	res := Compute(f, c)
	assert.True(t, res.Matching["F2"])
	assert.True(t, res.Display["E2"])
}

func TestCompute_AllPredicatesMustHold(t *testing.T) {
	c := NewCriteria().WithStatuses(tree.StatusComplete, tree.StatusBlocked).WithLevels(tree.LevelSubFeature)
	res := Compute(sample(), c)
	assert.Equal(t, map[string]bool{"S2": true}, res.Matching)
	assert.True(t, res.Display["F1"])
	assert.False(t, res.Display["T1"], "blocked task fails the level predicate")
}

func TestCompute_MatchingAncestorIsNotAutoExpanded(t *testing.T) {
	c := NewCriteria()
	c.Query = "o" // Login, OAuth, Token refresh, Password reset, Invoices
	res := Compute(sample(), c)
	assert.True(t, res.Matching["E1"])
	assert.False(t, res.AutoExpand()["E1"])
	assert.True(t, res.AutoExpand()["F1"], "Auth has no 'o' but holds matches")
}

func TestProperty_DisplayContainsMatchingAndAncestors(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := sample()
		c := NewCriteria()
		c.Query = rapid.SampledFrom([]string{"", "a", "o", "re", "x", "in"}).Draw(t, "query")
		if rapid.Bool().Draw(t, "status") {
			c = c.WithStatuses(rapid.SampledFrom(tree.AllStatuses).Draw(t, "st"))
		}
		res := Compute(f, c)
		if !res.Active {
			if len(res.Matching) != 0 {
				t.Fatalf("inactive filter produced matches")
			}
			return
		}
		idx := tree.Flatten(f)
		for id := range res.Matching {
			if !res.Display[id] {
				t.Fatalf("match %s not displayed", id)
			}
			for _, a := range tree.Ancestors(idx, id) {
				if !res.Display[a] {
					t.Fatalf("ancestor %s of %s not displayed", a, id)
				}
			}
		}
	})
}
