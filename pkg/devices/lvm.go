package devices

import (
	"strconv"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/actiongraph"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// =============================================================================
// Physical volumes
// =============================================================================

// LvmPv marks a block device as an LVM physical volume. It is the User of
// its block device and holds a User holder to its volume group.
type LvmPv struct {
	devicegraph.Base `json:"-" yaml:"-"`
}

// NewLvmPv returns a physical volume with a fresh sid.
func NewLvmPv() *LvmPv { return &LvmPv{Base: devicegraph.NewBase()} }

func (p *LvmPv) Kind() devicegraph.Kind    { return devicegraph.KindLvmPv }
func (p *LvmPv) Name() string              { return "PV " + strconv.FormatUint(uint64(p.SID()), 10) }
func (p *LvmPv) Clone() devicegraph.Device { c := *p; return &c }

func (p *LvmPv) Equal(other devicegraph.Device) bool {
	_, ok := other.(*LvmPv)
	return ok
}

// BlockPath returns the block device the physical volume lives on.
func (p *LvmPv) BlockPath(g *devicegraph.Graph) string { return underlying(g, p.SID()) }

func (p *LvmPv) CreateActions(rhs *devicegraph.Graph) []*action.Action {
	blk := p.BlockPath(rhs)
	return []*action.Action{
		act(action.Create, p.SID(), action.RHS, action.FeatureLvm,
			action.VerbCreate, "physical volume on "+blk,
			command([]string{"lvm", "pvcreate", "--force", blk})),
	}
}

func (p *LvmPv) DeleteActions(lhs *devicegraph.Graph) []*action.Action {
	blk := p.BlockPath(lhs)
	return []*action.Action{
		act(action.Delete, p.SID(), action.LHS, action.FeatureLvm,
			action.VerbDelete, "physical volume on "+blk,
			command([]string{"lvm", "pvremove", "--force", blk})),
	}
}

func (p *LvmPv) ModifyActions(*devicegraph.Graph, devicegraph.Device, *devicegraph.Graph) []*action.Action {
	return nil
}

// =============================================================================
// Volume groups
// =============================================================================

// LvmVg is an LVM volume group. Its parents are physical volumes.
type LvmVg struct {
	devicegraph.Base `json:"-" yaml:"-"`

	VgName     string `json:"vg_name" yaml:"vg_name"`
	ExtentSize uint64 `json:"extent_size,omitempty" yaml:"extent_size,omitempty"`
}

// NewLvmVg returns a volume group with a fresh sid.
func NewLvmVg(name string) *LvmVg { return &LvmVg{Base: devicegraph.NewBase(), VgName: name} }

func (v *LvmVg) Kind() devicegraph.Kind    { return devicegraph.KindLvmVg }
func (v *LvmVg) Name() string              { return v.VgName }
func (v *LvmVg) Clone() devicegraph.Device { c := *v; return &c }

func (v *LvmVg) Equal(other devicegraph.Device) bool {
	o, ok := other.(*LvmVg)
	return ok && *o == *v
}

func (v *LvmVg) CreateActions(rhs *devicegraph.Graph) []*action.Action {
	argv := []string{"lvm", "vgcreate"}
	if v.ExtentSize > 0 {
		argv = append(argv, "--physicalextentsize", inBytes(v.ExtentSize))
	}
	argv = append(argv, v.VgName)
	argv = append(argv, underlyingAll(rhs, v.SID())...)
	return []*action.Action{
		act(action.Create, v.SID(), action.RHS, action.FeatureLvm,
			action.VerbCreate, "volume group "+v.VgName, command(argv)),
	}
}

func (v *LvmVg) DeleteActions(*devicegraph.Graph) []*action.Action {
	return []*action.Action{
		act(action.Delete, v.SID(), action.LHS, action.FeatureLvm,
			action.VerbDelete, "volume group "+v.VgName,
			command([]string{"lvm", "vgremove", "--force", v.VgName})),
	}
}

func (v *LvmVg) ModifyActions(_ *devicegraph.Graph, old devicegraph.Device, _ *devicegraph.Graph) []*action.Action {
	prev := old.(*LvmVg)
	if prev.VgName == v.VgName {
		return nil
	}
	return []*action.Action{
		act(action.Rename, v.SID(), action.RHS, action.FeatureLvm,
			action.VerbRename, "volume group "+prev.VgName+" to "+v.VgName,
			command([]string{"lvm", "vgrename", prev.VgName, v.VgName})),
	}
}

// AddHolderActions extends an existing volume group by a physical volume.
// A volume group created in the same plan already includes its volumes.
func (v *LvmVg) AddHolderActions(h devicegraph.Holder, lhs, rhs *devicegraph.Graph) []*action.Action {
	if h.Type != devicegraph.User || !lhs.Has(v.SID()) {
		return nil
	}
	pv, ok := rhs.Find(h.Source)
	if !ok {
		return nil
	}
	blk := pathOf(rhs, pv)
	return []*action.Action{
		act(action.Reallot, v.SID(), action.RHS, action.FeatureLvm,
			action.VerbExtend, "volume group "+v.VgName+" by "+blk,
			command([]string{"lvm", "vgextend", v.VgName, blk})).ForHolder(h),
	}
}

// RemoveHolderActions reduces a surviving volume group by a physical volume.
func (v *LvmVg) RemoveHolderActions(h devicegraph.Holder, lhs, rhs *devicegraph.Graph) []*action.Action {
	if h.Type != devicegraph.User || !rhs.Has(v.SID()) {
		return nil
	}
	pv, ok := lhs.Find(h.Source)
	if !ok {
		return nil
	}
	blk := pathOf(lhs, pv)
	return []*action.Action{
		act(action.Reallot, v.SID(), action.LHS, action.FeatureLvm,
			action.VerbReduce, "volume group "+v.VgName+" by "+blk,
			command([]string{"lvm", "vgreduce", v.VgName, blk})).ForHolder(h),
	}
}

func (v *LvmVg) Validate(old, cur devicegraph.Device) error {
	if cur == nil {
		return nil
	}
	if err := errors.ValidateDmName(v.VgName); err != nil {
		return err
	}
	if old != nil && old.(*LvmVg).ExtentSize != v.ExtentSize {
		return errors.Unsupported("volume group "+v.VgName, "changing the extent size")
	}
	return nil
}

// Check requires every parent to be a physical volume.
func (v *LvmVg) Check(g *devicegraph.Graph) error {
	for _, p := range parentsOf(g, v.SID()) {
		if p.Kind() != devicegraph.KindLvmPv {
			return errors.Structural("volume group %s cannot use %s %s", v.VgName, p.Kind(), p.Name())
		}
	}
	return nil
}

// =============================================================================
// Logical volumes
// =============================================================================

// LvmLv is an LVM logical volume inside the volume group it is a
// Subdevice of.
type LvmLv struct {
	devicegraph.Base `json:"-" yaml:"-"`

	LvName string `json:"lv_name" yaml:"lv_name"`
	Size   uint64 `json:"size" yaml:"size"`
}

// NewLvmLv returns a logical volume with a fresh sid.
func NewLvmLv(name string, size uint64) *LvmLv {
	return &LvmLv{Base: devicegraph.NewBase(), LvName: name, Size: size}
}

func (l *LvmLv) Kind() devicegraph.Kind    { return devicegraph.KindLvmLv }
func (l *LvmLv) Name() string              { return l.LvName }
func (l *LvmLv) Clone() devicegraph.Device { c := *l; return &c }
func (l *LvmLv) bytes() uint64             { return l.Size }

func (l *LvmLv) Equal(other devicegraph.Device) bool {
	o, ok := other.(*LvmLv)
	return ok && *o == *l
}

func vgName(g *devicegraph.Graph, sid devicegraph.SID) string {
	if p, ok := parentOf(g, sid); ok {
		return p.Name()
	}
	return ""
}

// BlockPath returns /dev/<vg>/<lv>.
func (l *LvmLv) BlockPath(g *devicegraph.Graph) string {
	return "/dev/" + vgName(g, l.SID()) + "/" + l.LvName
}

func (l *LvmLv) CreateActions(rhs *devicegraph.Graph) []*action.Action {
	return []*action.Action{
		act(action.Create, l.SID(), action.RHS, action.FeatureLvm,
			action.VerbCreate, "logical volume "+l.BlockPath(rhs)+" ("+size(l.Size)+")",
			command([]string{"lvm", "lvcreate", "--yes", "--name", l.LvName, "--size", inBytes(l.Size), vgName(rhs, l.SID())})),
	}
}

func (l *LvmLv) DeleteActions(lhs *devicegraph.Graph) []*action.Action {
	return []*action.Action{
		act(action.Delete, l.SID(), action.LHS, action.FeatureLvm,
			action.VerbDelete, "logical volume "+l.BlockPath(lhs)+" ("+size(l.Size)+")",
			command([]string{"lvm", "lvremove", "--force", vgName(lhs, l.SID()) + "/" + l.LvName})),
	}
}

func (l *LvmLv) ModifyActions(_ *devicegraph.Graph, old devicegraph.Device, rhs *devicegraph.Graph) []*action.Action {
	prev := old.(*LvmLv)
	vg := vgName(rhs, l.SID())

	var chain []*action.Action
	if prev.LvName != l.LvName {
		chain = append(chain, act(action.Rename, l.SID(), action.RHS, action.FeatureLvm,
			action.VerbRename, "logical volume "+prev.LvName+" to "+l.LvName,
			command([]string{"lvm", "lvrename", vg, prev.LvName, l.LvName})))
	}
	if prev.Size != l.Size {
		verb := action.VerbGrow
		if l.Size < prev.Size {
			verb = action.VerbShrink
		}
		chain = append(chain, act(action.Resize, l.SID(), action.RHS, action.FeatureLvm,
			verb, "logical volume "+l.BlockPath(rhs)+" from "+size(prev.Size)+" to "+size(l.Size),
			command([]string{"lvm", "lvresize", "--force", "--size", inBytes(l.Size), vg + "/" + l.LvName})))
	}
	return chain
}

// ExtraDependencies orders space inside the volume group and keeps volume
// group renames between the operations that use the old and the new name.
func (l *LvmLv) ExtraDependencies(g *actiongraph.Graph) []actiongraph.Edge {
	out := spaceDependencies(g, l.SID())

	c, ok := g.ChainOf(l.SID())
	if !ok {
		return out
	}
	vg := container(g.Diff(), l.SID())
	rename, ok := g.Find(vg, action.Rename)
	if !ok {
		return out
	}
	if c.Unit == action.UnitDelete {
		return append(out, actiongraph.Edge{From: c.Tail(), To: rename.ID()})
	}
	return append(out, actiongraph.Edge{From: rename.ID(), To: c.Head()})
}

func (l *LvmLv) Validate(old, cur devicegraph.Device) error {
	if cur == nil {
		return nil
	}
	if err := errors.ValidateDmName(l.LvName); err != nil {
		return err
	}
	if l.Size == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "logical volume %s: size must be positive", l.LvName)
	}
	return nil
}

// Check requires exactly one volume group parent.
func (l *LvmLv) Check(g *devicegraph.Graph) error {
	ps := parentsOf(g, l.SID())
	if len(ps) != 1 || ps[0].Kind() != devicegraph.KindLvmVg {
		return errors.Structural("logical volume %s needs exactly one volume group", l.LvName)
	}
	return nil
}
