package devices

import (
	"slices"

	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// restorer is implemented by every device through its embedded Base.
type restorer interface {
	Restore(sid devicegraph.SID)
}

var factories = map[devicegraph.Kind]func() devicegraph.Device{
	devicegraph.KindDisk:           func() devicegraph.Device { return &Disk{} },
	devicegraph.KindPartition:      func() devicegraph.Device { return &Partition{} },
	devicegraph.KindEncryption:     func() devicegraph.Device { return &Encryption{} },
	devicegraph.KindLvmPv:          func() devicegraph.Device { return &LvmPv{} },
	devicegraph.KindLvmVg:          func() devicegraph.Device { return &LvmVg{} },
	devicegraph.KindLvmLv:          func() devicegraph.Device { return &LvmLv{} },
	devicegraph.KindMd:             func() devicegraph.Device { return &Md{} },
	devicegraph.KindFilesystem:     func() devicegraph.Device { return &Filesystem{} },
	devicegraph.KindMountPoint:     func() devicegraph.Device { return &MountPoint{} },
	devicegraph.KindBtrfsSubvolume: func() devicegraph.Device { return &BtrfsSubvolume{} },
	devicegraph.KindBtrfsQgroup:    func() devicegraph.Device { return &BtrfsQgroup{} },
}

// New returns an empty device of the given kind carrying sid. Decoders fill
// in the attributes afterwards.
func New(kind devicegraph.Kind, sid devicegraph.SID) (devicegraph.Device, error) {
	f, ok := factories[kind]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown device kind %q", kind)
	}
	d := f()
	d.(restorer).Restore(sid)
	return d, nil
}

// Kinds returns all known device kinds in sorted order.
func Kinds() []devicegraph.Kind {
	out := make([]devicegraph.Kind, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
