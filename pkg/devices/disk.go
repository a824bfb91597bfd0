package devices

import (
	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// Partition table types accepted by [Disk].
const (
	PtGPT   = "gpt"
	PtMSDOS = "msdos"
)

// Disk is a physical block device. Disks are probed, never created or
// deleted; the only change the planner can make is writing a new partition
// table.
type Disk struct {
	devicegraph.Base `json:"-" yaml:"-"`

	Path   string `json:"path" yaml:"path"`
	Size   uint64 `json:"size" yaml:"size"`
	PtType string `json:"pt_type,omitempty" yaml:"pt_type,omitempty"`
}

// NewDisk returns a disk with a fresh sid.
func NewDisk(path string, size uint64, ptType string) *Disk {
	return &Disk{Base: devicegraph.NewBase(), Path: path, Size: size, PtType: ptType}
}

func (d *Disk) Kind() devicegraph.Kind    { return devicegraph.KindDisk }
func (d *Disk) Name() string              { return d.Path }
func (d *Disk) Clone() devicegraph.Device { c := *d; return &c }

func (d *Disk) Equal(other devicegraph.Device) bool {
	o, ok := other.(*Disk)
	return ok && *o == *d
}

// BlockPath returns the disk's block special file.
func (d *Disk) BlockPath(*devicegraph.Graph) string { return d.Path }

func (d *Disk) CreateActions(*devicegraph.Graph) []*action.Action { return nil }

func (d *Disk) DeleteActions(*devicegraph.Graph) []*action.Action { return nil }

func (d *Disk) ModifyActions(_ *devicegraph.Graph, old devicegraph.Device, _ *devicegraph.Graph) []*action.Action {
	prev := old.(*Disk)
	if prev.PtType == d.PtType {
		return nil
	}
	return []*action.Action{
		act(action.CreatePartitionTable, d.SID(), action.RHS, action.FeaturePartition,
			action.VerbCreate, d.PtType+" partition table on "+d.Path,
			command([]string{"parted", "--script", d.Path, "mklabel", d.PtType})),
	}
}

func (d *Disk) Validate(old, cur devicegraph.Device) error {
	switch {
	case old == nil:
		return errors.Unsupported("disk "+d.Path, "creation")
	case cur == nil:
		return errors.Unsupported("disk "+d.Path, "deletion")
	}
	prev := old.(*Disk)
	if prev.Path != d.Path || prev.Size != d.Size {
		return errors.Unsupported("disk "+prev.Path, "resizing or renaming")
	}
	if d.PtType != PtGPT && d.PtType != PtMSDOS {
		return errors.New(errors.ErrCodeInvalidInput, "disk %s: unknown partition table type %q", d.Path, d.PtType)
	}
	return nil
}
