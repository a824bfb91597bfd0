package actiongraph

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/diff"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// BuildOption configures [Build].
type BuildOption func(*buildConfig)

type buildConfig struct {
	logger *log.Logger
}

// WithLogger sets the logger for build diagnostics.
func WithLogger(l *log.Logger) BuildOption {
	return func(c *buildConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Build compiles d into an action graph. It fails with a STRUCTURAL error for
// inconsistent diffs, with UNSUPPORTED_OPERATION when a device refuses a
// change, and with a [*CycleError] when the dependency rules are cyclic.
func Build(ctx context.Context, d *diff.Result, opts ...BuildOption) (*Graph, error) {
	cfg := buildConfig{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeAborted, err, "build action graph")
	}

	start := time.Now()
	if err := Validate(d); err != nil {
		return nil, err
	}

	g := newGraph(d)
	if err := g.contribute(); err != nil {
		return nil, err
	}
	if err := g.applyRules(); err != nil {
		return nil, err
	}
	if err := g.applyExtraDependencies(); err != nil {
		return nil, err
	}
	if err := checkAcyclic(g); err != nil {
		return nil, err
	}

	cfg.logger.Debug("built action graph",
		"actions", g.Len(),
		"edges", g.NumEdges(),
		"chains", len(g.chains),
		"duration", time.Since(start))
	return g, nil
}

// Validate runs the soft pre-checks of every changed device without building
// anything. It reports kind changes as STRUCTURAL errors, devices that cannot
// be changed at all as UNSUPPORTED_OPERATION, and [Validator] refusals as is.
func Validate(d *diff.Result) error {
	for _, c := range d.Changes() {
		if c.Status == diff.Modified && c.LHS.Kind() != c.RHS.Kind() {
			return errors.Structural("device %d changed kind from %s to %s", c.SID, c.LHS.Kind(), c.RHS.Kind())
		}
		cur := c.Device()
		if _, ok := cur.(Contributor); !ok {
			return errors.Unsupported(string(cur.Kind()), c.Status.String())
		}
		if v, ok := cur.(Validator); ok {
			if err := v.Validate(c.LHS, c.RHS); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) contribute() error {
	lhs, rhs := g.diff.LHS, g.diff.RHS
	for _, c := range g.diff.Changes() {
		var (
			unit    action.Unit
			actions []*action.Action
		)
		switch c.Status {
		case diff.Created:
			unit, actions = action.UnitCreate, c.RHS.(Contributor).CreateActions(rhs)
		case diff.Deleted:
			unit, actions = action.UnitDelete, c.LHS.(Contributor).DeleteActions(lhs)
		case diff.Modified:
			unit, actions = action.UnitModify, c.RHS.(Contributor).ModifyActions(lhs, c.LHS, rhs)
		}
		if len(actions) == 0 {
			continue
		}
		if _, err := g.addChain(unit, c.SID, nil, actions); err != nil {
			return err
		}
	}

	for _, hc := range g.diff.HolderChanges() {
		h := hc.Holder
		var (
			unit    action.Unit
			actions []*action.Action
		)
		switch hc.Status {
		case diff.Created:
			if t, ok := findHolderContributor(rhs, h.Target); ok {
				unit, actions = action.UnitHolderCreate, t.AddHolderActions(h, lhs, rhs)
			}
		case diff.Deleted:
			if t, ok := findHolderContributor(lhs, h.Target); ok {
				unit, actions = action.UnitHolderDelete, t.RemoveHolderActions(h, lhs, rhs)
			}
		}
		if len(actions) == 0 {
			continue
		}
		if _, err := g.addChain(unit, h.Target, &h, actions); err != nil {
			return err
		}
	}
	return nil
}

func findHolderContributor(dg *devicegraph.Graph, sid devicegraph.SID) (HolderContributor, bool) {
	d, ok := dg.Find(sid)
	if !ok {
		return nil, false
	}
	hc, ok := d.(HolderContributor)
	return hc, ok
}

func (g *Graph) applyRules() error {
	lhs, rhs := g.diff.LHS, g.diff.RHS

	// Containment create.
	for _, h := range rhs.Holders() {
		if !h.Type.Hierarchical() {
			continue
		}
		child, ok := g.bySID[h.Target]
		if !ok || child.Unit != action.UnitCreate {
			continue
		}
		if parent, ok := g.bySID[h.Source]; ok {
			if err := g.AddEdge(g.ready(parent), child.Head()); err != nil {
				return err
			}
		}
	}

	// Containment delete.
	for _, h := range lhs.Holders() {
		if !h.Type.Hierarchical() {
			continue
		}
		child, ok := g.bySID[h.Target]
		if !ok || child.Unit != action.UnitDelete {
			continue
		}
		parent, ok := g.bySID[h.Source]
		if !ok || (parent.Unit != action.UnitDelete && parent.Unit != action.UnitModify) {
			continue
		}
		if err := g.AddEdge(child.Tail(), parent.Head()); err != nil {
			return err
		}
	}

	// Holder units.
	for _, c := range g.chains {
		if c.Holder == nil {
			continue
		}
		for _, end := range []devicegraph.SID{c.Holder.Source, c.Holder.Target} {
			dev, ok := g.bySID[end]
			if !ok {
				continue
			}
			var err error
			if c.Unit == action.UnitHolderCreate {
				err = g.AddEdge(dev.Tail(), c.Head())
			} else {
				err = g.AddEdge(c.Tail(), dev.Head())
			}
			if err != nil {
				return err
			}
		}
	}

	// Anchors.
	for _, a := range g.actions {
		for _, anchor := range a.Requires {
			if p, ok := g.anchors[anchor]; ok && p != a.ID() {
				if err := g.AddEdge(p, a.ID()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (g *Graph) applyExtraDependencies() error {
	for _, c := range g.chains {
		if c.Holder != nil {
			continue
		}
		change, ok := g.diff.Lookup(c.SID)
		if !ok {
			continue
		}
		dc, ok := change.Device().(DependencyContributor)
		if !ok {
			continue
		}
		for _, e := range dc.ExtraDependencies(g) {
			if err := g.AddEdge(e.From, e.To); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "extra dependency of device %d", c.SID)
			}
		}
	}
	return nil
}
