package devicegraph

import (
	"maps"
	"slices"

	"github.com/matzehuels/storagegraph/pkg/errors"
)

// RemovePolicy selects how [Graph.RemoveDevice] treats hierarchical children.
type RemovePolicy int

const (
	// RemoveStrict refuses to remove a device that still has hierarchical
	// children.
	RemoveStrict RemovePolicy = iota
	// RemoveCascade removes the device together with all its hierarchical
	// descendants.
	RemoveCascade
)

// Graph is the owning collection of devices and holders for one storage
// configuration snapshot.
//
// The zero value is not usable - use New to create a valid Graph instance.
// Graph is not safe for concurrent use without external synchronization.
type Graph struct {
	devices map[SID]Device
	holders map[Holder]struct{}
	out     map[SID][]Holder // source sid -> holders
	in      map[SID][]Holder // target sid -> holders
	gen     uint64
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		devices: make(map[SID]Device),
		holders: make(map[Holder]struct{}),
		out:     make(map[SID][]Holder),
		in:      make(map[SID][]Holder),
	}
}

// Generation returns a counter that changes whenever the graph is mutated.
func (g *Graph) Generation() uint64 { return g.gen }

// AddDevice adds d to the graph. Adding a nil device or a device whose sid is
// already present is a structural error.
func (g *Graph) AddDevice(d Device) error {
	if d == nil {
		return errors.Structural("cannot add nil device")
	}
	if _, exists := g.devices[d.SID()]; exists {
		return errors.Structural("duplicate sid %d (%s)", d.SID(), d.Name())
	}
	g.devices[d.SID()] = d
	g.gen++
	return nil
}

// Replace swaps the device stored under d's sid for d, keeping all holders.
func (g *Graph) Replace(d Device) error {
	if d == nil {
		return errors.Structural("cannot replace with nil device")
	}
	old, ok := g.devices[d.SID()]
	if !ok {
		return errors.NotFound("device %d not found", d.SID())
	}
	if old.Kind() != d.Kind() {
		return errors.Structural("device %d: cannot replace %s with %s", d.SID(), old.Kind(), d.Kind())
	}
	g.devices[d.SID()] = d
	g.gen++
	return nil
}

// RemoveDevice removes the device and all its incident holders.
//
// With RemoveStrict the call fails with a structural error if the device
// still has hierarchical children. With RemoveCascade all hierarchical
// descendants are removed as well.
func (g *Graph) RemoveDevice(sid SID, policy RemovePolicy) error {
	d, ok := g.devices[sid]
	if !ok {
		return errors.NotFound("device %d not found", sid)
	}

	children := g.Children(sid)
	if len(children) > 0 && policy != RemoveCascade {
		return errors.Structural("device %d (%s) still has %d children", sid, d.Name(), len(children))
	}

	victims := []SID{sid}
	if policy == RemoveCascade {
		victims = append(victims, g.Descendants(sid)...)
	}
	for _, v := range victims {
		g.detach(v)
		delete(g.devices, v)
	}
	g.gen++
	return nil
}

func (g *Graph) detach(sid SID) {
	for _, h := range slices.Clone(g.out[sid]) {
		g.unlink(h)
	}
	for _, h := range slices.Clone(g.in[sid]) {
		g.unlink(h)
	}
	delete(g.out, sid)
	delete(g.in, sid)
}

func (g *Graph) unlink(h Holder) {
	delete(g.holders, h)
	g.out[h.Source] = slices.DeleteFunc(g.out[h.Source], func(o Holder) bool { return o == h })
	g.in[h.Target] = slices.DeleteFunc(g.in[h.Target], func(o Holder) bool { return o == h })
}

// AddHolder adds a holder between two existing devices.
//
// It is a structural error if an endpoint is unknown, if the holder is a self
// loop, if the same holder already exists, or if a hierarchical holder would
// close a containment cycle.
func (g *Graph) AddHolder(h Holder) error {
	if _, ok := g.devices[h.Source]; !ok {
		return errors.Structural("holder %s: unknown source device", h)
	}
	if _, ok := g.devices[h.Target]; !ok {
		return errors.Structural("holder %s: unknown target device", h)
	}
	if h.Source == h.Target {
		return errors.Structural("holder %s: self loop", h)
	}
	if _, exists := g.holders[h]; exists {
		return errors.Structural("holder %s: already exists", h)
	}
	if h.Type.Hierarchical() && g.reaches(h.Target, h.Source) {
		return errors.Structural("holder %s: would create a containment cycle", h)
	}

	g.holders[h] = struct{}{}
	g.out[h.Source] = append(g.out[h.Source], h)
	g.in[h.Target] = append(g.in[h.Target], h)
	g.gen++
	return nil
}

// RemoveHolder removes h. Removing a holder that does not exist is a
// NOT_FOUND error.
func (g *Graph) RemoveHolder(h Holder) error {
	if _, ok := g.holders[h]; !ok {
		return errors.NotFound("holder %s not found", h)
	}
	g.unlink(h)
	g.gen++
	return nil
}

// HasHolder reports whether h is part of the graph.
func (g *Graph) HasHolder(h Holder) bool {
	_, ok := g.holders[h]
	return ok
}

// reaches reports whether to is reachable from from over hierarchical holders.
func (g *Graph) reaches(from, to SID) bool {
	if from == to {
		return true
	}
	seen := map[SID]bool{from: true}
	stack := []SID{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, h := range g.out[cur] {
			if !h.Type.Hierarchical() || seen[h.Target] {
				continue
			}
			if h.Target == to {
				return true
			}
			seen[h.Target] = true
			stack = append(stack, h.Target)
		}
	}
	return false
}

// Find returns the device with the given sid and true, or nil and false if
// the graph has no such device.
func (g *Graph) Find(sid SID) (Device, bool) {
	d, ok := g.devices[sid]
	return d, ok
}

// Get returns the device with the given sid or a NOT_FOUND error.
func (g *Graph) Get(sid SID) (Device, error) {
	d, ok := g.devices[sid]
	if !ok {
		return nil, errors.NotFound("device %d not found", sid)
	}
	return d, nil
}

// Has reports whether the graph contains a device with the given sid.
func (g *Graph) Has(sid SID) bool {
	_, ok := g.devices[sid]
	return ok
}

// FindByName returns the device with the lowest sid whose Name matches.
func (g *Graph) FindByName(name string) (Device, bool) {
	for _, d := range g.Devices() {
		if d.Name() == name {
			return d, true
		}
	}
	return nil, false
}

// Update runs fn on the device with the given sid. It is the sanctioned way
// to mutate device attributes in place because it invalidates derived caches.
func (g *Graph) Update(sid SID, fn func(Device) error) error {
	d, ok := g.devices[sid]
	if !ok {
		return errors.NotFound("device %d not found", sid)
	}
	g.gen++
	return fn(d)
}

// Devices returns all devices sorted by sid.
func (g *Graph) Devices() []Device {
	out := make([]Device, 0, len(g.devices))
	for _, sid := range g.SIDs() {
		out = append(out, g.devices[sid])
	}
	return out
}

// DevicesOfKind returns the devices of the given kind sorted by sid.
func (g *Graph) DevicesOfKind(kind Kind) []Device {
	var out []Device
	for _, d := range g.Devices() {
		if d.Kind() == kind {
			out = append(out, d)
		}
	}
	return out
}

// SIDs returns all device sids in ascending order.
func (g *Graph) SIDs() []SID {
	return slices.Sorted(maps.Keys(g.devices))
}

// Holders returns all holders sorted by (source, target, type).
func (g *Graph) Holders() []Holder {
	return slices.SortedFunc(maps.Keys(g.holders), Holder.Compare)
}

// NumDevices returns the number of devices in the graph.
func (g *Graph) NumDevices() int { return len(g.devices) }

// NumHolders returns the number of holders in the graph.
func (g *Graph) NumHolders() int { return len(g.holders) }

// InHolders returns all holders targeting sid, of any type, sorted.
func (g *Graph) InHolders(sid SID) []Holder {
	return slices.SortedFunc(slices.Values(g.in[sid]), Holder.Compare)
}

// OutHolders returns all holders originating at sid, of any type, sorted.
func (g *Graph) OutHolders(sid SID) []Holder {
	return slices.SortedFunc(slices.Values(g.out[sid]), Holder.Compare)
}

// Parents returns the sids of the hierarchical parents of sid in ascending
// order. Returns nil for unknown sids and roots.
func (g *Graph) Parents(sid SID) []SID {
	var out []SID
	for _, h := range g.in[sid] {
		if h.Type.Hierarchical() {
			out = append(out, h.Source)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Children returns the sids of the hierarchical children of sid in ascending
// order. Returns nil for unknown sids and leaves.
func (g *Graph) Children(sid SID) []SID {
	var out []SID
	for _, h := range g.out[sid] {
		if h.Type.Hierarchical() {
			out = append(out, h.Target)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Descendants returns all sids reachable from sid over hierarchical holders,
// excluding sid itself, in ascending order.
func (g *Graph) Descendants(sid SID) []SID {
	return g.collect(sid, g.Children)
}

// Ancestors returns all sids from which sid is reachable over hierarchical
// holders, excluding sid itself, in ascending order.
func (g *Graph) Ancestors(sid SID) []SID {
	return g.collect(sid, g.Parents)
}

func (g *Graph) collect(start SID, next func(SID) []SID) []SID {
	seen := map[SID]bool{start: true}
	queue := []SID{start}
	var out []SID
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range next(cur) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
				queue = append(queue, n)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Roots returns the devices without hierarchical parents, sorted by sid.
func (g *Graph) Roots() []Device {
	var out []Device
	for _, d := range g.Devices() {
		if len(g.Parents(d.SID())) == 0 {
			out = append(out, d)
		}
	}
	return out
}

// Clone returns a deep copy of the graph. Device sids are preserved, and
// mutating the copy never affects the original.
func (g *Graph) Clone() *Graph {
	c := New()
	for sid, d := range g.devices {
		c.devices[sid] = d.Clone()
	}
	for h := range g.holders {
		c.holders[h] = struct{}{}
	}
	for sid, hs := range g.out {
		c.out[sid] = slices.Clone(hs)
	}
	for sid, hs := range g.in {
		c.in[sid] = slices.Clone(hs)
	}
	return c
}

// StructuralEqual reports whether both graphs contain the same sids with
// equal persistent attributes and the same holders.
func (g *Graph) StructuralEqual(other *Graph) bool {
	if other == nil || len(g.devices) != len(other.devices) || len(g.holders) != len(other.holders) {
		return false
	}
	for sid, d := range g.devices {
		o, ok := other.devices[sid]
		if !ok || d.Kind() != o.Kind() || !d.Equal(o) {
			return false
		}
	}
	for h := range g.holders {
		if _, ok := other.holders[h]; !ok {
			return false
		}
	}
	return true
}
