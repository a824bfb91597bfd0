package devicegraph

// Kind is the type tag of a device variant.
type Kind string

// Device kinds known to storagegraph.
const (
	KindDisk           Kind = "disk"
	KindPartition      Kind = "partition"
	KindEncryption     Kind = "encryption"
	KindLvmVg          Kind = "lvm_vg"
	KindLvmPv          Kind = "lvm_pv"
	KindLvmLv          Kind = "lvm_lv"
	KindMd             Kind = "md"
	KindFilesystem     Kind = "filesystem"
	KindMountPoint     Kind = "mount_point"
	KindBtrfsSubvolume Kind = "btrfs_subvolume"
	KindBtrfsQgroup    Kind = "btrfs_qgroup"
)

// Device is one storage entity. Implementations hold only their own
// attributes; relationships are expressed as holders in the owning graph.
type Device interface {
	// SID returns the device's stable identity.
	SID() SID

	// Kind returns the variant type tag.
	Kind() Kind

	// Name returns a short human-readable name, e.g. "/dev/sda1" or "/home".
	Name() string

	// Clone returns a deep copy with the same sid.
	Clone() Device

	// Equal reports whether other has the same kind and persistent
	// attributes. Transient or cached fields are ignored.
	Equal(other Device) bool
}

// Checker is implemented by devices that impose constraints on their
// neighbourhood, e.g. a mount point needs exactly one mountable parent.
type Checker interface {
	Check(g *Graph) error
}

// Base carries the sid and is meant to be embedded by device implementations.
type Base struct {
	sid SID
}

// NewBase returns a Base with a freshly allocated sid.
func NewBase() Base { return Base{sid: NextSID()} }

// BaseWithSID returns a Base with the given sid and reserves it.
func BaseWithSID(sid SID) Base {
	ReserveSID(sid)
	return Base{sid: sid}
}

// SID returns the device's stable identity.
func (b Base) SID() SID { return b.sid }

// Restore sets the sid of a freshly decoded device and reserves it. It must
// not be called on a device that is already part of a graph.
func (b *Base) Restore(sid SID) {
	ReserveSID(sid)
	b.sid = sid
}
