package actiongraph

import (
	"container/heap"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// idHeap is a min-heap of action ids.
type idHeap []action.ID

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(action.ID)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// order runs Kahn's algorithm, always taking the smallest eligible id. It
// returns the order and the ids that could not be scheduled.
func order(g *Graph) (out, unresolved []action.ID) {
	indeg := make([]int, len(g.actions))
	for e := range g.edges {
		indeg[e.To]++
	}

	ready := &idHeap{}
	for id, n := range indeg {
		if n == 0 {
			*ready = append(*ready, action.ID(id))
		}
	}
	heap.Init(ready)

	out = make([]action.ID, 0, len(g.actions))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(action.ID)
		out = append(out, id)
		for _, next := range g.succ[id] {
			indeg[next]--
			if indeg[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(out) < len(g.actions) {
		for id, n := range indeg {
			if n > 0 {
				unresolved = append(unresolved, action.ID(id))
			}
		}
	}
	return out, unresolved
}

// Schedule returns a commit order that respects every edge of g, breaking
// ties by smallest insertion index. It freezes g and moves every pending
// action to Scheduled. Scheduling a frozen graph again returns the same order.
//
// If the graph is cyclic no order is returned and the error is a
// [*CycleError].
func Schedule(g *Graph) ([]action.ID, error) {
	out, unresolved := order(g)
	if len(unresolved) > 0 {
		return nil, newCycleError(g, unresolved)
	}

	g.frozen = true
	for _, id := range out {
		a := g.actions[id]
		if a.State() != action.Pending {
			continue
		}
		if err := a.Transition(action.Scheduled); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "schedule")
		}
	}
	return out, nil
}

// checkAcyclic fails with a [*CycleError] if g has a cycle.
func checkAcyclic(g *Graph) error {
	if _, unresolved := order(g); len(unresolved) > 0 {
		return newCycleError(g, unresolved)
	}
	return nil
}
