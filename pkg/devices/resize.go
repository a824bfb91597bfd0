package devices

import (
	"fmt"

	"github.com/matzehuels/storagegraph/pkg/devicegraph"
)

const (
	mib = 1 << 20

	// gptTrailer is reserved at the end of a GPT disk for the backup table.
	gptTrailer = 1 * mib
	// luks2Header is the default LUKS2 header and keyslot area.
	luks2Header = 16 * mib
	luks1Header = 2 * mib
	// defaultExtent is the LVM default physical extent size.
	defaultExtent = 4 * mib
)

// Smallest sizes mkfs accepts.
var fsMinSize = map[string]uint64{
	FsExt2:  1 * mib,
	FsExt3:  2 * mib,
	FsExt4:  2 * mib,
	FsXfs:   300 * mib,
	FsBtrfs: 256 * mib,
}

// ResizeInfo is the range a device can be resized to in its graph.
type ResizeInfo struct {
	Resizable bool
	// Reason explains why the device is not resizable.
	Reason string
	Min    uint64
	Max    uint64
}

// Contains reports whether size lies in the range.
func (r ResizeInfo) Contains(size uint64) bool {
	return r.Resizable && size >= r.Min && size <= r.Max
}

func fixed(format string, args ...any) ResizeInfo {
	return ResizeInfo{Reason: fmt.Sprintf(format, args...)}
}

func limits(lo, hi uint64) ResizeInfo {
	if hi < lo {
		return fixed("no space to resize into")
	}
	return ResizeInfo{Resizable: true, Min: lo, Max: hi}
}

// ResizeLimits computes the resize range of sid from the sizes recorded in
// g. Ranges depend on siblings and parents, so they must be recomputed
// whenever g changes.
func ResizeLimits(g *devicegraph.Graph, sid devicegraph.SID) (ResizeInfo, error) {
	d, err := g.Get(sid)
	if err != nil {
		return ResizeInfo{}, err
	}
	switch v := d.(type) {
	case *Partition:
		return partitionLimits(g, v), nil
	case *LvmLv:
		return lvLimits(g, v), nil
	case *Filesystem:
		return fsLimits(g, v), nil
	}
	return fixed("%s cannot be resized", d.Kind()), nil
}

func partitionLimits(g *devicegraph.Graph, p *Partition) ResizeInfo {
	parent, ok := parentOf(g, p.SID())
	if !ok {
		return fixed("partition %s has no disk", p.Path)
	}
	end := capacity(g, parent)
	if disk, ok := parent.(*Disk); ok && disk.PtType == PtGPT && end > gptTrailer {
		end -= gptTrailer
	}
	for _, c := range childrenOf(g, parent.SID(), devicegraph.KindPartition) {
		sib := c.(*Partition)
		if sib.Start > p.Start && sib.Start < end {
			end = sib.Start
		}
	}
	if end <= p.Start {
		return fixed("partition %s lies beyond the end of %s", p.Path, parent.Name())
	}

	lo := uint64(mib)
	for _, c := range childrenOf(g, p.SID(), devicegraph.KindFilesystem) {
		if fs := c.(*Filesystem); fs.Type == FsXfs || fs.Type == FsVfat || fs.Type == FsSwap {
			lo = p.Size
		}
	}
	return limits(lo, end-p.Start)
}

func lvLimits(g *devicegraph.Graph, l *LvmLv) ResizeInfo {
	parent, ok := parentOf(g, l.SID())
	vg, isVG := parent.(*LvmVg)
	if !ok || !isVG {
		return fixed("logical volume %s has no volume group", l.LvName)
	}
	extent := vg.ExtentSize
	if extent == 0 {
		extent = defaultExtent
	}

	var total, used uint64
	for _, pv := range parentsOf(g, vg.SID()) {
		total += capacity(g, pv) / extent * extent
	}
	for _, c := range childrenOf(g, vg.SID(), devicegraph.KindLvmLv) {
		used += c.(*LvmLv).Size
	}
	if used > total {
		return fixed("volume group %s is overcommitted", vg.VgName)
	}
	return limits(extent, l.Size+total-used)
}

func fsLimits(g *devicegraph.Graph, f *Filesystem) ResizeInfo {
	switch f.Type {
	case FsVfat, FsSwap:
		return fixed("resizing %s is not supported", f.Type)
	}
	parent, ok := parentOf(g, f.SID())
	if !ok {
		return fixed("filesystem %s has no block device", f.Name())
	}
	hi := capacity(g, parent)
	if hi == 0 {
		return fixed("size of %s is unknown", parent.Name())
	}
	if f.Type == FsXfs {
		return limits(f.Size, hi)
	}
	return limits(fsMinSize[f.Type], hi)
}

// capacity returns the usable size of d in bytes, or 0 if it is unknown.
func capacity(g *devicegraph.Graph, d devicegraph.Device) uint64 {
	switch v := d.(type) {
	case *Disk:
		return v.Size
	case *Encryption:
		header := uint64(luks2Header)
		if v.luksType() == "luks1" {
			header = luks1Header
		}
		if c := parentCapacity(g, v.SID()); c > header {
			return c - header
		}
		return 0
	case *LvmPv:
		return parentCapacity(g, v.SID())
	case sized:
		return v.bytes()
	}
	return 0
}

func parentCapacity(g *devicegraph.Graph, sid devicegraph.SID) uint64 {
	p, ok := parentOf(g, sid)
	if !ok {
		return 0
	}
	return capacity(g, p)
}
