package actiongraph

import (
	"fmt"
	"strings"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// CycleError reports that the action graph cannot be linearized.
type CycleError struct {
	// Unresolved holds every action the scheduler could not place,
	// ascending. It includes actions merely blocked behind a cycle.
	Unresolved []action.ID

	// Cycle is one shortest cycle among the unresolved actions as a closed
	// edge list, starting at its smallest id.
	Cycle []Edge

	// Kinds maps the ids of Cycle to their action kinds for display.
	Kinds map[action.ID]action.Kind
}

// Code implements errors.Coder.
func (e *CycleError) Code() errors.Code { return errors.ErrCodeCycleDetected }

func (e *CycleError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d actions cannot be ordered", errors.ErrCodeCycleDetected, len(e.Unresolved))
	if len(e.Cycle) > 0 {
		b.WriteString(", cycle: ")
		for i, edge := range e.Cycle {
			if i == 0 {
				fmt.Fprintf(&b, "#%d %s", edge.From, e.Kinds[edge.From])
			}
			fmt.Fprintf(&b, " -> #%d %s", edge.To, e.Kinds[edge.To])
		}
	}
	return b.String()
}

func newCycleError(g *Graph, unresolved []action.ID) *CycleError {
	cycle := shortestCycle(g, unresolved)
	kinds := make(map[action.ID]action.Kind, len(cycle))
	for _, e := range cycle {
		kinds[e.From] = g.actions[e.From].Kind
		kinds[e.To] = g.actions[e.To].Kind
	}
	return &CycleError{Unresolved: unresolved, Cycle: cycle, Kinds: kinds}
}

// shortestCycle finds a shortest cycle in the subgraph induced by nodes. Of
// equally short cycles the one through the smallest id wins. Every node left
// over by Kahn's algorithm has a predecessor in the set, so a cycle exists
// whenever nodes is non-empty.
func shortestCycle(g *Graph, nodes []action.ID) []Edge {
	in := make(map[action.ID]bool, len(nodes))
	for _, id := range nodes {
		in[id] = true
	}

	var best []action.ID
	for _, start := range nodes {
		// BFS from start back to start, restricted to nodes.
		prev := map[action.ID]action.ID{}
		queue := []action.ID{start}
		seen := map[action.ID]bool{start: true}
		found := false
		for len(queue) > 0 && !found {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range g.Successors(cur) {
				if !in[next] {
					continue
				}
				if next == start {
					prev[start] = cur
					found = true
					break
				}
				if !seen[next] {
					seen[next] = true
					prev[next] = cur
					queue = append(queue, next)
				}
			}
		}
		if !found {
			continue
		}

		path := []action.ID{start}
		for at := prev[start]; at != start; at = prev[at] {
			path = append(path, at)
		}
		// path is start, then predecessors walking backwards; reverse the
		// tail so the cycle reads forward from start.
		for i, j := 1, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		if best == nil || len(path) < len(best) {
			best = path
		}
	}

	if best == nil {
		return nil
	}
	edges := make([]Edge, len(best))
	for i, id := range best {
		edges[i] = Edge{From: id, To: best[(i+1)%len(best)]}
	}
	return edges
}
