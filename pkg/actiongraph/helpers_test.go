package actiongraph

import (
	"context"
	"testing"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

type nop struct{}

func (nop) Commit(context.Context, *action.Env, *action.Action) error { return nil }

func (nop) Text(_ *action.Env, a *action.Action, _ action.Tense) string { return string(a.Kind) }

type step struct {
	kind     action.Kind
	trailing bool
	provides action.Anchor
	requires action.Anchor
}

// node is a configurable device implementing every capability.
type node struct {
	devicegraph.Base
	kind   devicegraph.Kind
	name   string
	label  string
	create []step
	remove []step
	assign bool
	refuse bool
	extra  func(g *Graph) []Edge
}

func newNode(kind devicegraph.Kind, name string) *node {
	return &node{
		Base:   devicegraph.NewBase(),
		kind:   kind,
		name:   name,
		create: []step{{kind: action.Create}},
		remove: []step{{kind: action.Delete}},
	}
}

func (n *node) Kind() devicegraph.Kind    { return n.kind }
func (n *node) Name() string              { return n.name }
func (n *node) Clone() devicegraph.Device { c := *n; return &c }

func (n *node) Equal(other devicegraph.Device) bool {
	o, ok := other.(*node)
	return ok && o.name == n.name && o.label == n.label
}

func (n *node) chain(steps []step, side action.Side) []*action.Action {
	out := make([]*action.Action, 0, len(steps))
	for _, s := range steps {
		a := action.New(s.kind, n.SID(), side, nop{})
		if s.trailing {
			a.AsTrailing()
		}
		if s.provides != "" {
			a.Providing(s.provides)
		}
		if s.requires != "" {
			a.Requiring(s.requires)
		}
		out = append(out, a)
	}
	return out
}

func (n *node) CreateActions(*devicegraph.Graph) []*action.Action {
	return n.chain(n.create, action.RHS)
}

func (n *node) DeleteActions(*devicegraph.Graph) []*action.Action {
	return n.chain(n.remove, action.LHS)
}

func (n *node) ModifyActions(_ *devicegraph.Graph, old devicegraph.Device, _ *devicegraph.Graph) []*action.Action {
	if old.(*node).label != n.label {
		return []*action.Action{action.New(action.SetLabel, n.SID(), action.RHS, nop{})}
	}
	return nil
}

func (n *node) ExtraDependencies(g *Graph) []Edge {
	if n.extra == nil {
		return nil
	}
	return n.extra(g)
}

func (n *node) AddHolderActions(h devicegraph.Holder, _, _ *devicegraph.Graph) []*action.Action {
	if !n.assign {
		return nil
	}
	return []*action.Action{action.New(action.AssignQgroup, n.SID(), action.RHS, nop{}).ForHolder(h)}
}

func (n *node) RemoveHolderActions(h devicegraph.Holder, _, _ *devicegraph.Graph) []*action.Action {
	if !n.assign {
		return nil
	}
	return []*action.Action{action.New(action.UnassignQgroup, n.SID(), action.LHS, nop{}).ForHolder(h)}
}

func (n *node) Validate(_, _ devicegraph.Device) error {
	if n.refuse {
		return errors.Unsupported(string(n.kind), "this change")
	}
	return nil
}

// inert implements no capability at all.
type inert struct {
	devicegraph.Base
}

func (inert) Kind() devicegraph.Kind            { return devicegraph.KindDisk }
func (inert) Name() string                      { return "inert" }
func (i inert) Clone() devicegraph.Device       { return i }
func (i inert) Equal(o devicegraph.Device) bool { return o.SID() == i.SID() }

func mountStep() []step {
	return []step{
		{kind: action.Mount, provides: action.AnchorRootMounted},
		{kind: action.AddToEtcFstab, trailing: true, requires: action.AnchorRootMounted},
	}
}

func cryptStep() []step {
	return []step{
		{kind: action.Create},
		{kind: action.Activate},
		{kind: action.AddToEtcCrypttab, trailing: true, requires: action.AnchorRootMounted},
	}
}

func add(t *testing.T, g *devicegraph.Graph, devs ...devicegraph.Device) {
	t.Helper()
	for _, d := range devs {
		if err := g.AddDevice(d.Clone()); err != nil {
			t.Fatal(err)
		}
	}
}

func link(t *testing.T, g *devicegraph.Graph, parent, child devicegraph.Device, ht devicegraph.HolderType) {
	t.Helper()
	if err := g.AddHolder(devicegraph.Holder{Source: parent.SID(), Target: child.SID(), Type: ht}); err != nil {
		t.Fatal(err)
	}
}

func kinds(g *Graph, order []action.ID) []action.Kind {
	out := make([]action.Kind, len(order))
	for i, id := range order {
		out[i] = g.Action(id).Kind
	}
	return out
}

// assertTopological fails if order violates an edge of g.
func assertTopological(t *testing.T, g *Graph, order []action.ID) {
	t.Helper()
	if len(order) != g.Len() {
		t.Fatalf("order has %d actions, graph has %d", len(order), g.Len())
	}
	pos := make(map[action.ID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, e := range g.Edges() {
		if pos[e.From] >= pos[e.To] {
			t.Errorf("edge %d -> %d violated: positions %d, %d", e.From, e.To, pos[e.From], pos[e.To])
		}
	}
}
