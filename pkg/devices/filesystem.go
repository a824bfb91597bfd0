package devices

import (
	"context"
	"strconv"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/actiongraph"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// Filesystem types.
const (
	FsExt2  = "ext2"
	FsExt3  = "ext3"
	FsExt4  = "ext4"
	FsXfs   = "xfs"
	FsBtrfs = "btrfs"
	FsVfat  = "vfat"
	FsSwap  = "swap"
)

var fsFeatures = map[string]action.Features{
	FsExt2:  action.FeatureExt,
	FsExt3:  action.FeatureExt,
	FsExt4:  action.FeatureExt,
	FsXfs:   action.FeatureXfs,
	FsBtrfs: action.FeatureBtrfs,
	FsVfat:  action.FeatureVfat,
	FsSwap:  action.FeatureSwap,
}

// Filesystem is a filesystem (or swap signature) on a block device. It is
// linked to the block device by a FilesystemUser holder. Size zero means the
// filesystem fills its device.
type Filesystem struct {
	devicegraph.Base `json:"-" yaml:"-"`

	Type  string `json:"type" yaml:"type"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	UUID  string `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Size  uint64 `json:"size,omitempty" yaml:"size,omitempty"`
}

// NewFilesystem returns a filesystem of the given type with a fresh sid.
func NewFilesystem(fsType string) *Filesystem {
	return &Filesystem{Base: devicegraph.NewBase(), Type: fsType}
}

func (f *Filesystem) Kind() devicegraph.Kind    { return devicegraph.KindFilesystem }
func (f *Filesystem) Clone() devicegraph.Device { c := *f; return &c }
func (f *Filesystem) bytes() uint64             { return f.Size }

func (f *Filesystem) Name() string {
	if f.Label == "" {
		return f.Type
	}
	return f.Type + " " + f.Label
}

func (f *Filesystem) Equal(other devicegraph.Device) bool {
	o, ok := other.(*Filesystem)
	return ok && *o == *f
}

func (f *Filesystem) features() action.Features { return fsFeatures[f.Type] }

func (f *Filesystem) isExt() bool { return f.Type == FsExt2 || f.Type == FsExt3 || f.Type == FsExt4 }

func (f *Filesystem) mkfs(blk string) []string {
	switch f.Type {
	case FsSwap:
		return []string{"mkswap", "--force", blk}
	case FsXfs, FsBtrfs:
		return []string{"mkfs." + f.Type, "-f", blk}
	case FsVfat:
		return []string{"mkfs.vfat", blk}
	default:
		return []string{"mkfs." + f.Type, "-F", blk}
	}
}

func (f *Filesystem) labelCmd(blk string) []string {
	switch f.Type {
	case FsXfs:
		label := f.Label
		if label == "" {
			label = "--"
		}
		return []string{"xfs_admin", "-L", label, blk}
	case FsBtrfs:
		return []string{"btrfs", "filesystem", "label", blk, f.Label}
	case FsVfat:
		return []string{"fatlabel", blk, f.Label}
	case FsSwap:
		return []string{"swaplabel", "--label", f.Label, blk}
	default:
		return []string{"tune2fs", "-L", f.Label, blk}
	}
}

func (f *Filesystem) uuidCmd(blk string) []string {
	switch f.Type {
	case FsXfs:
		return []string{"xfs_admin", "-U", f.UUID, blk}
	case FsBtrfs:
		return []string{"btrfstune", "-f", "-U", f.UUID, blk}
	case FsSwap:
		return []string{"swaplabel", "--uuid", f.UUID, blk}
	default:
		return []string{"tune2fs", "-U", f.UUID, blk}
	}
}

func (f *Filesystem) setLabel(blk string) *action.Action {
	return act(action.SetLabel, f.SID(), action.RHS, f.features(),
		action.VerbSet, "label of "+f.Type+" on "+blk+" to "+strconv.Quote(f.Label),
		command(f.labelCmd(blk)))
}

func (f *Filesystem) setUUID(blk string) *action.Action {
	return act(action.SetUuid, f.SID(), action.RHS, f.features(),
		action.VerbSet, "UUID of "+f.Type+" on "+blk+" to "+f.UUID,
		command(f.uuidCmd(blk)))
}

// resize grows or shrinks the filesystem. xfs and btrfs resize online
// through their mount point.
func (f *Filesystem) resize(blk string) runFunc {
	switch f.Type {
	case FsXfs:
		return f.online(func(mnt string) []string { return []string{"xfs_growfs", mnt} })
	case FsBtrfs:
		return f.online(func(mnt string) []string {
			return []string{"btrfs", "filesystem", "resize", strconv.FormatUint(f.Size, 10), mnt}
		})
	default:
		return command([]string{"resize2fs", blk, strconv.FormatUint(f.Size/1024, 10) + "K"})
	}
}

func (f *Filesystem) online(argv func(mnt string) []string) runFunc {
	return func(ctx context.Context, env *action.Env, a *action.Action) error {
		mnt, err := mountedPath(env, a, f.SID())
		if err != nil {
			return err
		}
		return command(argv(mnt))(ctx, env, a)
	}
}

func (f *Filesystem) CreateActions(rhs *devicegraph.Graph) []*action.Action {
	blk := underlying(rhs, f.SID())
	chain := []*action.Action{
		act(action.Create, f.SID(), action.RHS, f.features(),
			action.VerbCreate, f.Type+" on "+blk, command(f.mkfs(blk))),
	}
	if f.Label != "" {
		chain = append(chain, f.setLabel(blk))
	}
	if f.UUID != "" {
		chain = append(chain, f.setUUID(blk))
	}
	return chain
}

func (f *Filesystem) DeleteActions(lhs *devicegraph.Graph) []*action.Action {
	blk := underlying(lhs, f.SID())
	return []*action.Action{
		act(action.Delete, f.SID(), action.LHS, f.features(),
			action.VerbDelete, f.Type+" on "+blk,
			command([]string{"wipefs", "--all", blk})),
	}
}

func (f *Filesystem) ModifyActions(_ *devicegraph.Graph, old devicegraph.Device, rhs *devicegraph.Graph) []*action.Action {
	prev := old.(*Filesystem)
	blk := underlying(rhs, f.SID())

	var chain []*action.Action
	if prev.Size != f.Size {
		verb := action.VerbGrow
		if f.Size < prev.Size {
			verb = action.VerbShrink
		}
		run, features := f.resize(blk), f.features()
		if e, ok := encryptionBelow(rhs, f.SID()); ok {
			features |= action.FeatureLuks
			if f.Size > prev.Size {
				run = sequence(command(e.resizeCmd(0)), run)
			} else {
				run = sequence(run, command(e.resizeCmd(f.Size)))
			}
		}
		chain = append(chain, act(action.Resize, f.SID(), action.RHS, features,
			verb, f.Type+" on "+blk+" from "+size(prev.Size)+" to "+size(f.Size), run))
	}
	if prev.Label != f.Label {
		chain = append(chain, f.setLabel(blk))
	}
	if prev.UUID != f.UUID {
		chain = append(chain, f.setUUID(blk))
	}
	return chain
}

// ExtraDependencies grows the filesystem after the device it lives on and
// shrinks it before. Encryption layers in between are looked through.
func (f *Filesystem) ExtraDependencies(g *actiongraph.Graph) []actiongraph.Edge {
	resize, ok := g.Find(f.SID(), action.Resize)
	if !ok {
		return nil
	}
	outer, ok := outerResize(g, f.SID())
	if !ok {
		return nil
	}
	grow, shrink := resizeDirection(g.Diff(), f.SID())
	switch {
	case grow:
		return []actiongraph.Edge{{From: outer.ID(), To: resize.ID()}}
	case shrink:
		return []actiongraph.Edge{{From: resize.ID(), To: outer.ID()}}
	}
	return nil
}

func (f *Filesystem) Validate(old, cur devicegraph.Device) error {
	if cur == nil {
		return nil
	}
	if _, ok := fsFeatures[f.Type]; !ok {
		return errors.New(errors.ErrCodeInvalidInput, "unknown filesystem type %q", f.Type)
	}
	if err := errors.ValidateLabel(f.Type, f.Label); err != nil {
		return err
	}
	if f.UUID != "" && f.Type != FsVfat {
		if err := errors.ValidateUUID(f.UUID); err != nil {
			return err
		}
	}
	if old == nil {
		return nil
	}

	prev := old.(*Filesystem)
	switch {
	case prev.Type != f.Type:
		return errors.Unsupported(prev.Type, "changing the filesystem type")
	case prev.UUID != f.UUID && f.Type == FsVfat:
		return errors.Unsupported(f.Type, "changing the UUID")
	case prev.Size != f.Size && (f.Type == FsVfat || f.Type == FsSwap):
		return errors.Unsupported(f.Type, "resizing")
	case f.Size < prev.Size && f.Type == FsXfs:
		return errors.Unsupported(f.Type, "shrinking")
	case prev.Size != f.Size && (prev.Size == 0 || f.Size == 0):
		return errors.New(errors.ErrCodeInvalidInput, "%s: resizing needs an explicit old and new size", f.Name())
	}
	return nil
}

// Check requires exactly one block device.
func (f *Filesystem) Check(g *devicegraph.Graph) error {
	if n := len(g.Parents(f.SID())); n != 1 {
		return errors.Structural("%s has %d block devices, want 1", f.Name(), n)
	}
	return nil
}

// mountedPath resolves the active mount point of the filesystem sid in the
// graph a is committed against, below the target root.
func mountedPath(env *action.Env, a *action.Action, sid devicegraph.SID) (string, error) {
	g := env.Graph(env.Side(a))
	if g == nil {
		return "", errors.New(errors.ErrCodeInternal, "no %s graph in environment", env.Side(a))
	}
	mp, ok := mountPointOf(g, sid)
	if !ok {
		return "", errors.New(errors.ErrCodeUnsupportedOperation, "filesystem %d is not mounted", sid)
	}
	return env.Path(mp.Path), nil
}
