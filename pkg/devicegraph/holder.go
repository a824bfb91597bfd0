package devicegraph

import (
	"cmp"
	"fmt"
)

// HolderType is the relationship kind of a [Holder].
type HolderType int

const (
	// Subdevice is structural containment, e.g. disk -> partition.
	Subdevice HolderType = iota
	// User is usage, e.g. partition -> LVM physical volume.
	User
	// FilesystemUser attaches a filesystem to its block device or a mount
	// point to its filesystem.
	FilesystemUser
	// Snapshot links a snapshot to its origin.
	Snapshot
	// Qgroup assigns a btrfs qgroup or subvolume to a parent qgroup.
	Qgroup
)

var holderTypeNames = [...]string{
	Subdevice:      "subdevice",
	User:           "user",
	FilesystemUser: "filesystem_user",
	Snapshot:       "snapshot",
	Qgroup:         "qgroup",
}

// String returns the persisted name of the holder type.
func (t HolderType) String() string {
	if t < 0 || int(t) >= len(holderTypeNames) {
		return fmt.Sprintf("HolderType(%d)", int(t))
	}
	return holderTypeNames[t]
}

// Hierarchical reports whether the holder type expresses containment.
func (t HolderType) Hierarchical() bool {
	return t == Subdevice || t == User || t == FilesystemUser
}

// ParseHolderType is the inverse of [HolderType.String].
func ParseHolderType(s string) (HolderType, error) {
	for i, name := range holderTypeNames {
		if name == s {
			return HolderType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown holder type %q", s)
}

// Holder is a typed directed edge between two devices. A holder has no state
// beyond its endpoints and type, so the value itself is its diff key.
type Holder struct {
	Source SID
	Target SID
	Type   HolderType
}

// String returns e.g. "3 -> 7 (subdevice)".
func (h Holder) String() string {
	return fmt.Sprintf("%d -> %d (%s)", h.Source, h.Target, h.Type)
}

// Compare orders holders by source, target and type.
func (h Holder) Compare(o Holder) int {
	if c := cmp.Compare(h.Source, o.Source); c != 0 {
		return c
	}
	if c := cmp.Compare(h.Target, o.Target); c != 0 {
		return c
	}
	return cmp.Compare(h.Type, o.Type)
}
