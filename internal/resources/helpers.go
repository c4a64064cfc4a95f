package resources

import (
	"sort"

	"github.com/HendryAvila/foundry/internal/coordinator"
	"github.com/HendryAvila/foundry/internal/tree"
)

// snapshot is the JSON shape of the tree resource. Id sets are flattened
// into sorted lists so output is stable.
type snapshot struct {
	Project  string                   `json:"project"`
	Loaded   bool                     `json:"loaded"`
	Nodes    int                      `json:"nodes"`
	Forest   []*tree.Node             `json:"forest"`
	Filtered bool                     `json:"filtered"`
	Matching []string                 `json:"matching,omitempty"`
	Expanded []string                 `json:"expanded,omitempty"`
	Editing  []string                 `json:"editing,omitempty"`
	Undo     *coordinator.PendingUndo `json:"undo,omitempty"`
}

func snapshotOf(v coordinator.View) snapshot {
	forest := v.Forest
	if forest == nil {
		forest = []*tree.Node{}
	}
	return snapshot{
		Project:  v.ProjectID,
		Loaded:   v.Loaded,
		Nodes:    tree.Size(v.Forest),
		Forest:   forest,
		Filtered: v.Filter.Active,
		Matching: keys(v.Filter.Matching),
		Expanded: keys(v.Expanded),
		Editing:  keys(v.Editing),
		Undo:     v.Undo,
	}
}

// keys returns the set members of m in sorted order.
func keys(m map[string]bool) []string {
	var out []string
	for k, ok := range m {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
