package devices

import (
	"context"
	"strings"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/actiongraph"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// SwapPath is the mount path of swap spaces.
const SwapPath = "swap"

// MountPoint mounts a [Filesystem] or a [BtrfsSubvolume], its only parent.
// A mount point is active, listed in /etc/fstab, or both.
type MountPoint struct {
	devicegraph.Base `json:"-" yaml:"-"`

	Path    string   `json:"path" yaml:"path"`
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
	Active  bool     `json:"active" yaml:"active"`
	InFstab bool     `json:"in_fstab" yaml:"in_fstab"`
}

// NewMountPoint returns an active mount point listed in /etc/fstab.
func NewMountPoint(path string, options ...string) *MountPoint {
	return &MountPoint{Base: devicegraph.NewBase(), Path: path, Options: options, Active: true, InFstab: true}
}

func (m *MountPoint) Kind() devicegraph.Kind { return devicegraph.KindMountPoint }
func (m *MountPoint) Name() string           { return m.Path }

func (m *MountPoint) Clone() devicegraph.Device {
	c := *m
	c.Options = append([]string(nil), m.Options...)
	return &c
}

func (m *MountPoint) Equal(other devicegraph.Device) bool {
	o, ok := other.(*MountPoint)
	return ok && o.Path == m.Path && o.Active == m.Active && o.InFstab == m.InFstab &&
		o.options() == m.options()
}

func (m *MountPoint) options() string {
	if len(m.Options) == 0 {
		return "defaults"
	}
	return strings.Join(m.Options, ",")
}

func (m *MountPoint) swap() bool { return m.Path == SwapPath }

// target describes what gets mounted: the block device, the filesystem
// type, and the fstab source.
type target struct {
	blk    string
	fsType string
	spec   string
	subvol string
}

func (m *MountPoint) resolve(g *devicegraph.Graph) target {
	p, ok := parentOf(g, m.SID())
	if !ok {
		return target{}
	}
	var t target
	fsSID := p.SID()
	if sv, ok := p.(*BtrfsSubvolume); ok {
		t.subvol = sv.SubPath
		if fs, ok := parentOf(g, sv.SID()); ok {
			fsSID = fs.SID()
		}
	}
	t.blk = underlying(g, fsSID)
	t.spec = t.blk
	if d, ok := g.Find(fsSID); ok {
		if fs, ok := d.(*Filesystem); ok {
			t.fsType = fs.Type
			if fs.UUID != "" {
				t.spec = "UUID=" + fs.UUID
			}
		}
	}
	return t
}

func (m *MountPoint) mountOptions(t target) string {
	opts := m.options()
	if t.subvol != "" {
		opts += ",subvol=" + t.subvol
	}
	return opts
}

func (m *MountPoint) fstabEntry(t target) []string {
	pass := "2"
	switch {
	case m.Path == "/":
		pass = "1"
	case m.swap() || t.fsType == FsBtrfs || t.fsType == FsXfs:
		pass = "0"
	}
	return []string{t.spec, m.Path, t.fsType, m.mountOptions(t), "0", pass}
}

func (m *MountPoint) mount(g *devicegraph.Graph, side action.Side) *action.Action {
	t := m.resolve(g)
	var run runFunc
	if m.swap() {
		run = command([]string{"swapon", t.blk})
	} else {
		run = func(ctx context.Context, env *action.Env, a *action.Action) error {
			return command([]string{"mount", "--mkdir", "-t", t.fsType, "-o", m.mountOptions(t), t.blk, env.Path(m.Path)})(ctx, env, a)
		}
	}
	a := act(action.Mount, m.SID(), side, action.FeatureMount,
		action.VerbMount, t.blk+" at "+m.Path, run)
	if m.Path == "/" {
		a.Providing(action.AnchorRootMounted)
	}
	return a
}

func (m *MountPoint) umount(g *devicegraph.Graph, side action.Side) *action.Action {
	t := m.resolve(g)
	var run runFunc
	if m.swap() {
		run = command([]string{"swapoff", t.blk})
	} else {
		run = func(ctx context.Context, env *action.Env, a *action.Action) error {
			return command([]string{"umount", env.Path(m.Path)})(ctx, env, a)
		}
	}
	return act(action.Umount, m.SID(), side, action.FeatureMount,
		action.VerbUnmount, t.blk+" from "+m.Path, run)
}

// rewritesFstab reports whether the change from prev writes m's fstab
// entry anyway.
func (m *MountPoint) rewritesFstab(prev *MountPoint) bool {
	return m.InFstab && (!prev.InFstab || prev.Path != m.Path || prev.options() != m.options())
}

// fstabMountPoints returns the mount points listed in fstab that mount the
// filesystem sid or one of its subvolumes.
func fstabMountPoints(g *devicegraph.Graph, sid devicegraph.SID) []*MountPoint {
	var out []*MountPoint
	collect := func(parent devicegraph.SID) {
		for _, d := range childrenOf(g, parent, devicegraph.KindMountPoint) {
			if mp := d.(*MountPoint); mp.InFstab {
				out = append(out, mp)
			}
		}
	}
	collect(sid)
	for _, sv := range childrenOf(g, sid, devicegraph.KindBtrfsSubvolume) {
		collect(sv.SID())
	}
	return out
}

func (m *MountPoint) addToFstab(g *devicegraph.Graph) *action.Action {
	return act(action.AddToEtcFstab, m.SID(), action.RHS, action.FeatureMount,
		action.VerbAdd, m.Path+" to "+action.EtcFstab,
		tabSet(action.EtcFstab, 1, m.fstabEntry(m.resolve(g)))).
		AsTrailing().
		Requiring(action.AnchorRootMounted)
}

func (m *MountPoint) removeFromFstab(side action.Side) *action.Action {
	return act(action.RemoveFromEtcFstab, m.SID(), side, action.FeatureMount,
		action.VerbRemove, m.Path+" from "+action.EtcFstab,
		tabRemove(action.EtcFstab, 1, m.Path))
}

func (m *MountPoint) CreateActions(rhs *devicegraph.Graph) []*action.Action {
	var chain []*action.Action
	if m.Active {
		chain = append(chain, m.mount(rhs, action.RHS))
	}
	if m.InFstab {
		chain = append(chain, m.addToFstab(rhs))
	}
	return chain
}

func (m *MountPoint) DeleteActions(lhs *devicegraph.Graph) []*action.Action {
	var chain []*action.Action
	if m.Active {
		chain = append(chain, m.umount(lhs, action.LHS))
	}
	if m.InFstab {
		chain = append(chain, m.removeFromFstab(action.LHS))
	}
	return chain
}

func (m *MountPoint) ModifyActions(lhs *devicegraph.Graph, old devicegraph.Device, rhs *devicegraph.Graph) []*action.Action {
	prev := old.(*MountPoint)
	moved := prev.Path != m.Path || prev.options() != m.options()

	var chain []*action.Action
	switch {
	case prev.Active && !m.Active:
		chain = append(chain, prev.umount(lhs, action.LHS))
	case !prev.Active && m.Active:
		chain = append(chain, m.mount(rhs, action.RHS))
	case prev.Active && m.Active && moved:
		chain = append(chain, m.remount(prev, rhs))
	}

	switch {
	case prev.InFstab && !m.InFstab:
		chain = append(chain, prev.removeFromFstab(action.RHS))
	case !prev.InFstab && m.InFstab:
		chain = append(chain, m.addToFstab(rhs))
	case prev.InFstab && m.InFstab && moved:
		chain = append(chain, m.updateFstab(prev, rhs))
	}
	return chain
}

// remount applies new options in place, or moves the mount to a new path.
func (m *MountPoint) remount(prev *MountPoint, rhs *devicegraph.Graph) *action.Action {
	t := m.resolve(rhs)
	run := func(ctx context.Context, env *action.Env, a *action.Action) error {
		if prev.Path != m.Path {
			if err := command([]string{"mount", "--mkdir", "--move", env.Path(prev.Path), env.Path(m.Path)})(ctx, env, a); err != nil {
				return err
			}
		}
		if prev.options() != m.options() {
			return command([]string{"mount", "-o", "remount," + m.mountOptions(t), env.Path(m.Path)})(ctx, env, a)
		}
		return nil
	}
	a := act(action.Remount, m.SID(), action.RHS, action.FeatureMount,
		action.VerbRemount, t.blk+" at "+m.Path, run)
	if m.Path == "/" && prev.Path != "/" {
		a.Providing(action.AnchorRootMounted)
	}
	return a
}

func (m *MountPoint) updateFstab(prev *MountPoint, rhs *devicegraph.Graph) *action.Action {
	set := tabSet(action.EtcFstab, 1, m.fstabEntry(m.resolve(rhs)))
	run := set
	if prev.Path != m.Path {
		run = sequence(tabRemove(action.EtcFstab, 1, prev.Path), set)
	}
	return act(action.UpdateInEtcFstab, m.SID(), action.RHS, action.FeatureMount,
		action.VerbUpdate, m.Path+" in "+action.EtcFstab, run).
		AsTrailing().
		Requiring(action.AnchorRootMounted)
}

// ExtraDependencies mounts parents of nested paths first and unmounts
// children first.
func (m *MountPoint) ExtraDependencies(g *actiongraph.Graph) []actiongraph.Edge {
	var out []actiongraph.Edge
	if a, ok := g.Find(m.SID(), action.Mount); ok {
		for _, c := range g.Chains() {
			if c.Holder != nil || c.SID == m.SID() {
				continue
			}
			other, ok := g.Find(c.SID, action.Mount)
			if !ok {
				continue
			}
			if p := mountedAt(g, c.SID, action.RHS); p != "" && nested(p, m.Path) {
				out = append(out, actiongraph.Edge{From: other.ID(), To: a.ID()})
			}
		}
	}
	if a, ok := g.Find(m.SID(), action.Umount); ok {
		for _, c := range g.Chains() {
			if c.Holder != nil || c.SID == m.SID() {
				continue
			}
			other, ok := g.Find(c.SID, action.Umount)
			if !ok {
				continue
			}
			if p := mountedAt(g, c.SID, action.LHS); p != "" && nested(p, m.lhsPath(g)) {
				out = append(out, actiongraph.Edge{From: a.ID(), To: other.ID()})
			}
		}
	}
	return out
}

func (m *MountPoint) lhsPath(g *actiongraph.Graph) string {
	return mountedAt(g, m.SID(), action.LHS)
}

// mountedAt returns the path of the mount point sid on the given side.
func mountedAt(g *actiongraph.Graph, sid devicegraph.SID, side action.Side) string {
	dg := g.Diff().RHS
	if side == action.LHS {
		dg = g.Diff().LHS
	}
	d, ok := dg.Find(sid)
	if !ok {
		return ""
	}
	mp, ok := d.(*MountPoint)
	if !ok || mp.swap() {
		return ""
	}
	return mp.Path
}

// nested reports whether child lies strictly below parent.
func nested(parent, child string) bool {
	if parent == "" || child == "" || parent == child || child == SwapPath {
		return false
	}
	if parent == "/" {
		return strings.HasPrefix(child, "/")
	}
	return strings.HasPrefix(child, parent+"/")
}

func (m *MountPoint) Validate(old, cur devicegraph.Device) error {
	if !m.Active && !m.InFstab {
		return errors.Unsupported("mount point "+m.Path, "being neither mounted nor listed in fstab")
	}
	if cur == nil {
		return nil
	}
	if err := errors.ValidateMountPath(m.Path); err != nil {
		return err
	}
	if old != nil && old.(*MountPoint).swap() != m.swap() {
		return errors.Unsupported("mount point "+m.Path, "switching between swap and a filesystem")
	}
	return nil
}

// Check requires exactly one parent, a filesystem or a btrfs subvolume.
func (m *MountPoint) Check(g *devicegraph.Graph) error {
	ps := parentsOf(g, m.SID())
	if len(ps) != 1 {
		return errors.Structural("mount point %s has %d parents, want 1", m.Path, len(ps))
	}
	if k := ps[0].Kind(); k != devicegraph.KindFilesystem && k != devicegraph.KindBtrfsSubvolume {
		return errors.Structural("mount point %s cannot mount %s", m.Path, k)
	}
	return nil
}
