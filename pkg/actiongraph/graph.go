package actiongraph

import (
	"cmp"
	"maps"
	"slices"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/diff"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// Edge is a dependency: From commits before To.
type Edge struct {
	From action.ID
	To   action.ID
}

// Compare orders edges by From, then To.
func (e Edge) Compare(o Edge) int {
	if c := cmp.Compare(e.From, o.From); c != 0 {
		return c
	}
	return cmp.Compare(e.To, o.To)
}

// Chain is the actions one unit contributed, in chain order.
type Chain struct {
	ID      action.ChainID
	Unit    action.Unit
	SID     devicegraph.SID
	Holder  *devicegraph.Holder
	Actions []action.ID
}

// Head returns the first action of the chain.
func (c *Chain) Head() action.ID { return c.Actions[0] }

// Tail returns the last action of the chain.
func (c *Chain) Tail() action.ID { return c.Actions[len(c.Actions)-1] }

// ready returns the last non-trailing action of c, or its tail if every
// action is trailing. Contained devices start after it.
func (g *Graph) ready(c *Chain) action.ID {
	for i := len(c.Actions) - 1; i >= 0; i-- {
		if !g.actions[c.Actions[i]].Trailing {
			return c.Actions[i]
		}
	}
	return c.Tail()
}

// Graph is a DAG of actions for one diff. It is built by [Build] and frozen
// by [Schedule].
type Graph struct {
	diff    *diff.Result
	actions []*action.Action
	succ    [][]action.ID
	pred    [][]action.ID
	edges   map[Edge]struct{}
	chains  []*Chain
	bySID   map[devicegraph.SID]*Chain
	anchors map[action.Anchor]action.ID
	frozen  bool
}

func newGraph(d *diff.Result) *Graph {
	return &Graph{
		diff:    d,
		edges:   make(map[Edge]struct{}),
		bySID:   make(map[devicegraph.SID]*Chain),
		anchors: make(map[action.Anchor]action.ID),
	}
}

// Diff returns the diff the graph was built from.
func (g *Graph) Diff() *diff.Result { return g.diff }

// Len returns the number of actions.
func (g *Graph) Len() int { return len(g.actions) }

// Action returns the action with the given id, or nil.
func (g *Graph) Action(id action.ID) *action.Action {
	if id < 0 || int(id) >= len(g.actions) {
		return nil
	}
	return g.actions[id]
}

// Actions returns all actions in insertion order.
func (g *Graph) Actions() []*action.Action { return slices.Clone(g.actions) }

// Chains returns all chains in contribution order.
func (g *Graph) Chains() []*Chain { return slices.Clone(g.chains) }

// ChainOf returns the device chain contributed for sid.
func (g *Graph) ChainOf(sid devicegraph.SID) (*Chain, bool) {
	c, ok := g.bySID[sid]
	return c, ok
}

// ActionsOf returns the actions of the device chain for sid.
func (g *Graph) ActionsOf(sid devicegraph.SID) []*action.Action {
	c, ok := g.bySID[sid]
	if !ok {
		return nil
	}
	out := make([]*action.Action, len(c.Actions))
	for i, id := range c.Actions {
		out[i] = g.actions[id]
	}
	return out
}

// Find returns the first action of the given kind in the chain for sid.
func (g *Graph) Find(sid devicegraph.SID, kind action.Kind) (*action.Action, bool) {
	for _, a := range g.ActionsOf(sid) {
		if a.Kind == kind {
			return a, true
		}
	}
	return nil, false
}

// Provider returns the action providing anchor.
func (g *Graph) Provider(anchor action.Anchor) (action.ID, bool) {
	id, ok := g.anchors[anchor]
	return id, ok
}

// Edges returns all dependency edges sorted by (From, To).
func (g *Graph) Edges() []Edge {
	return slices.SortedFunc(maps.Keys(g.edges), Edge.Compare)
}

// NumEdges returns the number of dependency edges.
func (g *Graph) NumEdges() int { return len(g.edges) }

// HasEdge reports whether from -> to exists.
func (g *Graph) HasEdge(from, to action.ID) bool {
	_, ok := g.edges[Edge{from, to}]
	return ok
}

// Successors returns the ids that depend on id, ascending.
func (g *Graph) Successors(id action.ID) []action.ID {
	return slices.Sorted(slices.Values(g.succ[id]))
}

// Predecessors returns the ids id depends on, ascending.
func (g *Graph) Predecessors(id action.ID) []action.ID {
	return slices.Sorted(slices.Values(g.pred[id]))
}

// Frozen reports whether scheduling has begun.
func (g *Graph) Frozen() bool { return g.frozen }

// AddEdge adds the dependency from -> to. Adding an existing edge is a no-op.
// The graph must not be frozen.
func (g *Graph) AddEdge(from, to action.ID) error {
	if g.frozen {
		return errors.New(errors.ErrCodeInternal, "action graph is frozen")
	}
	if g.Action(from) == nil || g.Action(to) == nil {
		return errors.NotFound("edge %d -> %d: unknown action", from, to)
	}
	if from == to {
		return errors.Structural("edge %d -> %d: self loop", from, to)
	}
	e := Edge{from, to}
	if _, ok := g.edges[e]; ok {
		return nil
	}
	g.edges[e] = struct{}{}
	g.succ[from] = append(g.succ[from], to)
	g.pred[to] = append(g.pred[to], from)
	return nil
}

func (g *Graph) addChain(unit action.Unit, sid devicegraph.SID, h *devicegraph.Holder, actions []*action.Action) (*Chain, error) {
	c := &Chain{ID: action.ChainID(len(g.chains)), Unit: unit, SID: sid, Holder: h}
	for i, a := range actions {
		id := action.ID(len(g.actions))
		if err := a.Bind(id, action.Position{Unit: unit, Chain: c.ID, Ordinal: i, Len: len(actions)}); err != nil {
			return nil, err
		}
		g.actions = append(g.actions, a)
		g.succ = append(g.succ, nil)
		g.pred = append(g.pred, nil)
		c.Actions = append(c.Actions, id)
		for _, anchor := range a.Provides {
			if _, taken := g.anchors[anchor]; !taken {
				g.anchors[anchor] = id
			}
		}
	}
	for i := 1; i < len(c.Actions); i++ {
		if err := g.AddEdge(c.Actions[i-1], c.Actions[i]); err != nil {
			return nil, err
		}
	}
	g.chains = append(g.chains, c)
	if h == nil {
		g.bySID[sid] = c
	}
	return c, nil
}
