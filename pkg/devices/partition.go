package devices

import (
	"strconv"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/actiongraph"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// Partition type aliases understood by sfdisk.
const (
	IDLinux = "linux"
	IDSwap  = "swap"
	IDLvm   = "lvm"
	IDRaid  = "raid"
	IDEsp   = "uefi"
)

// Partition is a slice of a [Disk] or a partitioned [Md].
type Partition struct {
	devicegraph.Base `json:"-" yaml:"-"`

	Path   string `json:"path" yaml:"path"`
	Number int    `json:"number" yaml:"number"`
	Start  uint64 `json:"start" yaml:"start"`
	Size   uint64 `json:"size" yaml:"size"`
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
}

// NewPartition returns a Linux partition with a fresh sid.
func NewPartition(path string, number int, start, size uint64) *Partition {
	return &Partition{Base: devicegraph.NewBase(), Path: path, Number: number, Start: start, Size: size, ID: IDLinux}
}

func (p *Partition) Kind() devicegraph.Kind    { return devicegraph.KindPartition }
func (p *Partition) Name() string              { return p.Path }
func (p *Partition) Clone() devicegraph.Device { c := *p; return &c }
func (p *Partition) bytes() uint64             { return p.Size }

func (p *Partition) Equal(other devicegraph.Device) bool {
	o, ok := other.(*Partition)
	return ok && *o == *p
}

// BlockPath returns the partition's block special file.
func (p *Partition) BlockPath(*devicegraph.Graph) string { return p.Path }

func (p *Partition) idOrLinux() string {
	if p.ID == "" {
		return IDLinux
	}
	return p.ID
}

func (p *Partition) end() uint64 { return p.Start + p.Size - 1 }

func (p *Partition) setID(disk string) *action.Action {
	return act(action.SetPartitionID, p.SID(), action.RHS, action.FeaturePartition,
		action.VerbSet, "type of partition "+p.Path+" to "+p.idOrLinux(),
		command([]string{"sfdisk", "--part-type", disk, strconv.Itoa(p.Number), p.idOrLinux()}))
}

func (p *Partition) CreateActions(rhs *devicegraph.Graph) []*action.Action {
	disk := underlying(rhs, p.SID())
	chain := []*action.Action{
		act(action.Create, p.SID(), action.RHS, action.FeaturePartition,
			action.VerbCreate, "partition "+p.Path+" ("+size(p.Size)+")",
			command([]string{"parted", "--script", "--align=none", disk, "mkpart", "primary", inBytes(p.Start), inBytes(p.end())})),
	}
	if p.idOrLinux() != IDLinux {
		chain = append(chain, p.setID(disk))
	}
	return chain
}

func (p *Partition) DeleteActions(lhs *devicegraph.Graph) []*action.Action {
	disk := underlying(lhs, p.SID())
	return []*action.Action{
		act(action.Delete, p.SID(), action.LHS, action.FeaturePartition,
			action.VerbDelete, "partition "+p.Path+" ("+size(p.Size)+")",
			command([]string{"parted", "--script", disk, "rm", strconv.Itoa(p.Number)})),
	}
}

func (p *Partition) ModifyActions(_ *devicegraph.Graph, old devicegraph.Device, rhs *devicegraph.Graph) []*action.Action {
	prev := old.(*Partition)
	disk := underlying(rhs, p.SID())

	var chain []*action.Action
	if prev.Size != p.Size {
		verb := action.VerbGrow
		if p.Size < prev.Size {
			verb = action.VerbShrink
		}
		chain = append(chain, act(action.Resize, p.SID(), action.RHS, action.FeaturePartition,
			verb, "partition "+p.Path+" from "+size(prev.Size)+" to "+size(p.Size),
			command([]string{"parted", "--script", disk, "resizepart", strconv.Itoa(p.Number), inBytes(p.end())})))
	}
	if prev.idOrLinux() != p.idOrLinux() {
		chain = append(chain, p.setID(disk))
	}
	return chain
}

// ExtraDependencies lets deletes and shrinks of other partitions on the
// same disk run before this partition claims space.
func (p *Partition) ExtraDependencies(g *actiongraph.Graph) []actiongraph.Edge {
	return spaceDependencies(g, p.SID())
}

func (p *Partition) Validate(old, cur devicegraph.Device) error {
	if cur == nil {
		return nil
	}
	if err := errors.ValidateDeviceName(p.Path); err != nil {
		return err
	}
	if p.Size == 0 || p.Number <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "partition %s: number and size must be positive", p.Path)
	}
	if old == nil {
		return nil
	}
	prev := old.(*Partition)
	if prev.Path != p.Path || prev.Number != p.Number || prev.Start != p.Start {
		return errors.Unsupported("partition "+prev.Path, "moving or renumbering")
	}
	return nil
}

// Check requires exactly one parent, a disk or a RAID.
func (p *Partition) Check(g *devicegraph.Graph) error {
	ps := parentsOf(g, p.SID())
	if len(ps) != 1 {
		return errors.Structural("partition %s has %d parents, want 1", p.Path, len(ps))
	}
	if k := ps[0].Kind(); k != devicegraph.KindDisk && k != devicegraph.KindMd {
		return errors.Structural("partition %s cannot live on %s", p.Path, k)
	}
	return nil
}
