package devices

import (
	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/actiongraph"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/diff"
)

// blockDevice is implemented by devices that expose a block special file.
type blockDevice interface {
	BlockPath(g *devicegraph.Graph) string
}

// sized is implemented by devices whose size can change.
type sized interface {
	bytes() uint64
}

// parentOf returns the first hierarchical parent of sid.
func parentOf(g *devicegraph.Graph, sid devicegraph.SID) (devicegraph.Device, bool) {
	ps := g.Parents(sid)
	if len(ps) == 0 {
		return nil, false
	}
	return g.Find(ps[0])
}

// parentsOf returns all hierarchical parents of sid in sid order.
func parentsOf(g *devicegraph.Graph, sid devicegraph.SID) []devicegraph.Device {
	var out []devicegraph.Device
	for _, p := range g.Parents(sid) {
		if d, ok := g.Find(p); ok {
			out = append(out, d)
		}
	}
	return out
}

// childrenOf returns the hierarchical children of sid with the given kind.
func childrenOf(g *devicegraph.Graph, sid devicegraph.SID, kind devicegraph.Kind) []devicegraph.Device {
	var out []devicegraph.Device
	for _, c := range g.Children(sid) {
		if d, ok := g.Find(c); ok && d.Kind() == kind {
			out = append(out, d)
		}
	}
	return out
}

// pathOf returns the block special file of d, falling back to its name.
func pathOf(g *devicegraph.Graph, d devicegraph.Device) string {
	if b, ok := d.(blockDevice); ok {
		return b.BlockPath(g)
	}
	return d.Name()
}

// underlying returns the block special file of sid's first parent.
func underlying(g *devicegraph.Graph, sid devicegraph.SID) string {
	p, ok := parentOf(g, sid)
	if !ok {
		return ""
	}
	return pathOf(g, p)
}

// underlyingAll returns the block special files of all parents of sid.
func underlyingAll(g *devicegraph.Graph, sid devicegraph.SID) []string {
	var out []string
	for _, p := range parentsOf(g, sid) {
		out = append(out, pathOf(g, p))
	}
	return out
}

// newest returns the graph holding the newest snapshot of sid.
func newest(d *diff.Result, sid devicegraph.SID) *devicegraph.Graph {
	if d.RHS.Has(sid) {
		return d.RHS
	}
	return d.LHS
}

// container returns the sid of the newest first parent of sid, or 0.
func container(d *diff.Result, sid devicegraph.SID) devicegraph.SID {
	ps := newest(d, sid).Parents(sid)
	if len(ps) == 0 {
		return 0
	}
	return ps[0]
}

// outerResize returns the resize action of the nearest device below sid.
// Encryption layers carry no size of their own and are looked through; any
// other unresized device ends the search.
func outerResize(g *actiongraph.Graph, sid devicegraph.SID) (*action.Action, bool) {
	d := g.Diff()
	for p := container(d, sid); p != 0; p = container(d, p) {
		if a, ok := g.Find(p, action.Resize); ok {
			return a, true
		}
		dev, ok := newest(d, p).Find(p)
		if !ok || dev.Kind() != devicegraph.KindEncryption {
			break
		}
	}
	return nil, false
}

// resizeDirection reports whether the modified device sid grows or shrinks.
func resizeDirection(d *diff.Result, sid devicegraph.SID) (grow, shrink bool) {
	c, ok := d.Lookup(sid)
	if !ok || c.Status != diff.Modified {
		return false, false
	}
	o, ok1 := c.LHS.(sized)
	n, ok2 := c.RHS.(sized)
	if !ok1 || !ok2 {
		return false, false
	}
	return n.bytes() > o.bytes(), n.bytes() < o.bytes()
}

// freesSpace returns the action after which sid no longer occupies space it
// gives up: the tail of a delete chain or a shrinking resize.
func freesSpace(g *actiongraph.Graph, sid devicegraph.SID) (action.ID, bool) {
	c, ok := g.ChainOf(sid)
	if !ok {
		return 0, false
	}
	switch c.Unit {
	case action.UnitDelete:
		return c.Tail(), true
	case action.UnitModify:
		if _, shrink := resizeDirection(g.Diff(), sid); shrink {
			if a, ok := g.Find(sid, action.Resize); ok {
				return a.ID(), true
			}
		}
	}
	return 0, false
}

// claimsSpace returns the first action of sid that needs additional space:
// the head of a create chain or a growing resize.
func claimsSpace(g *actiongraph.Graph, sid devicegraph.SID) (action.ID, bool) {
	c, ok := g.ChainOf(sid)
	if !ok {
		return 0, false
	}
	switch c.Unit {
	case action.UnitCreate:
		return c.Head(), true
	case action.UnitModify:
		if grow, _ := resizeDirection(g.Diff(), sid); grow {
			if a, ok := g.Find(sid, action.Resize); ok {
				return a.ID(), true
			}
		}
	}
	return 0, false
}

// spaceDependencies orders siblings sharing one container: every sibling
// of the same kind that frees space precedes self claiming space.
func spaceDependencies(g *actiongraph.Graph, self devicegraph.SID) []actiongraph.Edge {
	to, ok := claimsSpace(g, self)
	if !ok {
		return nil
	}
	d := g.Diff()
	parent := container(d, self)
	selfDev, found := newest(d, self).Find(self)
	if parent == 0 || !found {
		return nil
	}

	var out []actiongraph.Edge
	for _, c := range g.Chains() {
		if c.Holder != nil || c.SID == self || container(d, c.SID) != parent {
			continue
		}
		sib, ok := newest(d, c.SID).Find(c.SID)
		if !ok || sib.Kind() != selfDev.Kind() {
			continue
		}
		if from, ok := freesSpace(g, c.SID); ok {
			out = append(out, actiongraph.Edge{From: from, To: to})
		}
	}
	return out
}

// mountPointOf returns the active, non-swap mount point mounting the
// filesystem or subvolume sid.
func mountPointOf(g *devicegraph.Graph, sid devicegraph.SID) (*MountPoint, bool) {
	for _, d := range childrenOf(g, sid, devicegraph.KindMountPoint) {
		if mp := d.(*MountPoint); mp.Active && mp.Path != SwapPath {
			return mp, true
		}
	}
	return nil, false
}
