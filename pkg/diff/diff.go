// Package diff compares two entity graphs by sid and classifies every device
// and holder as unchanged, created, deleted or modified.
//
// Matching is purely by identity: a device in the left-hand graph (usually
// the probed system) and a device in the right-hand graph (the staging
// target) are the same entity exactly when they share a sid. Holders have no
// state of their own and are keyed by (source, target, type), so an added or
// removed holder is its own unit, independent of its endpoints.
//
// Results are deterministic: devices are reported in ascending sid order and
// holders in ascending (source, target, type) order, which the action graph
// builder relies on for reproducible plans.
package diff

import (
	"fmt"
	"maps"
	"slices"

	"github.com/matzehuels/storagegraph/pkg/devicegraph"
)

// Status classifies one diff unit.
type Status int

const (
	Unchanged Status = iota
	Created
	Deleted
	Modified
)

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// DeviceChange is the classification of one sid. LHS is nil for created
// devices and RHS is nil for deleted ones; both are set otherwise.
type DeviceChange struct {
	SID    devicegraph.SID
	Status Status
	LHS    devicegraph.Device
	RHS    devicegraph.Device
}

// Device returns the most recent snapshot of the device: RHS if present,
// LHS otherwise.
func (c DeviceChange) Device() devicegraph.Device {
	if c.RHS != nil {
		return c.RHS
	}
	return c.LHS
}

// HolderChange is the classification of one holder key. Holders are only
// ever Created, Deleted or Unchanged.
type HolderChange struct {
	Holder devicegraph.Holder
	Status Status
}

// Result holds the classification of every device and holder of both graphs.
type Result struct {
	LHS     *devicegraph.Graph
	RHS     *devicegraph.Graph
	Devices []DeviceChange // ascending sid, including unchanged
	Holders []HolderChange // ascending holder key, including unchanged
}

// Compare classifies the union of sids and holder keys of lhs and rhs.
func Compare(lhs, rhs *devicegraph.Graph) *Result {
	r := &Result{LHS: lhs, RHS: rhs}

	sids := make(map[devicegraph.SID]struct{}, lhs.NumDevices()+rhs.NumDevices())
	for _, sid := range lhs.SIDs() {
		sids[sid] = struct{}{}
	}
	for _, sid := range rhs.SIDs() {
		sids[sid] = struct{}{}
	}

	for _, sid := range slices.Sorted(maps.Keys(sids)) {
		l, inL := lhs.Find(sid)
		rd, inR := rhs.Find(sid)
		c := DeviceChange{SID: sid, LHS: l, RHS: rd}
		switch {
		case inL && !inR:
			c.Status = Deleted
		case !inL && inR:
			c.Status = Created
		case l.Kind() != rd.Kind() || !l.Equal(rd):
			c.Status = Modified
		default:
			c.Status = Unchanged
		}
		r.Devices = append(r.Devices, c)
	}

	holders := make(map[devicegraph.Holder]Status)
	for _, h := range lhs.Holders() {
		holders[h] = Deleted
	}
	for _, h := range rhs.Holders() {
		if _, ok := holders[h]; ok {
			holders[h] = Unchanged
		} else {
			holders[h] = Created
		}
	}
	for _, h := range slices.SortedFunc(maps.Keys(holders), devicegraph.Holder.Compare) {
		r.Holders = append(r.Holders, HolderChange{Holder: h, Status: holders[h]})
	}

	return r
}

// Empty reports whether the two graphs are structurally equal.
func (r *Result) Empty() bool {
	return len(r.Changes()) == 0 && len(r.HolderChanges()) == 0
}

// Changes returns the device units that are not unchanged, in sid order.
func (r *Result) Changes() []DeviceChange {
	var out []DeviceChange
	for _, c := range r.Devices {
		if c.Status != Unchanged {
			out = append(out, c)
		}
	}
	return out
}

// HolderChanges returns the holder units that are not unchanged.
func (r *Result) HolderChanges() []HolderChange {
	var out []HolderChange
	for _, c := range r.Holders {
		if c.Status != Unchanged {
			out = append(out, c)
		}
	}
	return out
}

// ByStatus returns the device units with the given status, in sid order.
func (r *Result) ByStatus(s Status) []DeviceChange {
	var out []DeviceChange
	for _, c := range r.Devices {
		if c.Status == s {
			out = append(out, c)
		}
	}
	return out
}

// Lookup returns the change recorded for sid.
func (r *Result) Lookup(sid devicegraph.SID) (DeviceChange, bool) {
	i, ok := slices.BinarySearchFunc(r.Devices, sid, func(c DeviceChange, s devicegraph.SID) int {
		switch {
		case c.SID < s:
			return -1
		case c.SID > s:
			return 1
		}
		return 0
	})
	if !ok {
		return DeviceChange{}, false
	}
	return r.Devices[i], true
}

// Counts summarizes the number of device units per status.
func (r *Result) Counts() map[Status]int {
	out := make(map[Status]int, 4)
	for _, c := range r.Devices {
		out[c.Status]++
	}
	return out
}

// String returns a one-line summary such as "2 created, 1 deleted, 0 modified, 3 holder changes".
func (r *Result) String() string {
	n := r.Counts()
	return fmt.Sprintf("%d created, %d deleted, %d modified, %d holder changes",
		n[Created], n[Deleted], n[Modified], len(r.HolderChanges()))
}
