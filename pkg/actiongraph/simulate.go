package actiongraph

import (
	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/diff"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// Simulate replays order on a clone of the diff's old graph and returns the
// resulting entity graph. It applies the structural effect of each chain at
// the point a real commit would:
//
//   - the head of a create chain adds the new snapshot of the device,
//   - the head of a modify chain replaces the device with its new snapshot,
//   - the tail of a delete chain removes the device.
//
// Deleted holders are dropped up front and created holders are added as soon
// as both endpoints exist. Actions that do not change the graph's shape
// (mounts, fstab edits, activation) only have to be present in order.
//
// For a correct plan the result is structurally equal to the diff's new
// graph. Simulate fails with STRUCTURAL if a step is impossible, e.g. a
// device is deleted while a child still exists.
func Simulate(g *Graph, order []action.ID) (*devicegraph.Graph, error) {
	d := g.diff
	sim := d.LHS.Clone()

	var pending []devicegraph.Holder
	for _, hc := range d.Holders {
		switch hc.Status {
		case diff.Deleted:
			if err := sim.RemoveHolder(hc.Holder); err != nil {
				return nil, err
			}
		case diff.Created:
			pending = append(pending, hc.Holder)
		}
	}

	attach := func() error {
		rest := pending[:0]
		for _, h := range pending {
			if sim.Has(h.Source) && sim.Has(h.Target) {
				if err := sim.AddHolder(h); err != nil {
					return err
				}
				continue
			}
			rest = append(rest, h)
		}
		pending = rest
		return nil
	}
	if err := attach(); err != nil {
		return nil, err
	}

	seen := make(map[action.ID]bool, len(order))
	for _, id := range order {
		a := g.Action(id)
		if a == nil {
			return nil, errors.NotFound("action %d not in graph", id)
		}
		if seen[id] {
			return nil, errors.Structural("action %d scheduled twice", id)
		}
		seen[id] = true

		if a.Holder != nil {
			continue
		}
		pos := a.Position()
		switch {
		case pos.Unit == action.UnitCreate && a.First():
			dev, err := d.RHS.Get(a.SID)
			if err != nil {
				return nil, err
			}
			if err := sim.AddDevice(dev.Clone()); err != nil {
				return nil, err
			}
			if err := attach(); err != nil {
				return nil, err
			}
		case pos.Unit == action.UnitModify && a.First():
			dev, err := d.RHS.Get(a.SID)
			if err != nil {
				return nil, err
			}
			if err := sim.Replace(dev.Clone()); err != nil {
				return nil, err
			}
		case pos.Unit == action.UnitDelete && a.Last():
			if err := sim.RemoveDevice(a.SID, devicegraph.RemoveStrict); err != nil {
				return nil, err
			}
		}
	}
	if len(seen) != g.Len() {
		return nil, errors.Structural("order covers %d of %d actions", len(seen), g.Len())
	}

	// Modified devices without actions keep their old snapshot; that is a
	// contributor bug the equality check below will surface.
	if len(pending) > 0 {
		return nil, errors.Structural("holder %s never had both endpoints", pending[0])
	}
	return sim, nil
}

// RoundTrip simulates order and reports whether the result equals the diff's
// new graph.
func RoundTrip(g *Graph, order []action.ID) (bool, error) {
	sim, err := Simulate(g, order)
	if err != nil {
		return false, err
	}
	return sim.StructuralEqual(g.diff.RHS), nil
}
