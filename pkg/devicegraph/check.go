package devicegraph

import (
	"github.com/hashicorp/go-multierror"

	"github.com/matzehuels/storagegraph/pkg/errors"
)

// Check verifies graph integrity and returns nil if the graph is valid.
// It verifies that:
//
//  1. Every holder references existing devices
//  2. Hierarchical holders form no cycle
//  3. Devices implementing [Checker] accept their neighbourhood
//
// All problems found are reported together; the returned error is a
// *multierror.Error whose entries are STRUCTURAL errors. Check never repairs
// anything.
func (g *Graph) Check() error {
	var result *multierror.Error

	for _, h := range g.Holders() {
		if !g.Has(h.Source) {
			result = multierror.Append(result, errors.Structural("holder %s: dangling source", h))
		}
		if !g.Has(h.Target) {
			result = multierror.Append(result, errors.Structural("holder %s: dangling target", h))
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		result = multierror.Append(result, errors.Structural("containment cycle through devices %v", cycle))
	}

	for _, d := range g.Devices() {
		if c, ok := d.(Checker); ok {
			if err := c.Check(g); err != nil {
				result = multierror.Append(result, errors.Wrap(errors.ErrCodeStructural, err, "device %d (%s)", d.SID(), d.Name()))
			}
		}
	}

	return result.ErrorOrNil()
}

// findCycle returns the sids of one hierarchical cycle, or nil. Cycles are
// detected using depth-first search with white/gray/black coloring.
func (g *Graph) findCycle() []SID {
	const (
		white = iota
		gray
		black
	)

	color := make(map[SID]int, len(g.devices))
	var path []SID
	var cycle []SID

	var dfs func(sid SID) bool
	dfs = func(sid SID) bool {
		color[sid] = gray
		path = append(path, sid)
		for _, child := range g.Children(sid) {
			switch color[child] {
			case white:
				if dfs(child) {
					return true
				}
			case gray:
				for i, p := range path {
					if p == child {
						cycle = append([]SID(nil), path[i:]...)
						break
					}
				}
				return true
			}
		}
		path = path[:len(path)-1]
		color[sid] = black
		return false
	}

	for _, sid := range g.SIDs() {
		if color[sid] == white && dfs(sid) {
			return cycle
		}
	}
	return nil
}
