package devices

import (
	"context"
	"path"
	"strconv"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/actiongraph"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// btrfsFS returns the btrfs filesystem sid of a subvolume or qgroup.
func btrfsFS(g *devicegraph.Graph, sid devicegraph.SID) devicegraph.SID {
	p, ok := parentOf(g, sid)
	if !ok {
		return 0
	}
	return p.SID()
}

// inMount runs the command built by argv with the mount path of the btrfs
// filesystem fs, resolved on the side a is committed against.
func inMount(fs devicegraph.SID, argv func(mnt string) []string) runFunc {
	return func(ctx context.Context, env *action.Env, a *action.Action) error {
		mnt, err := mountedPath(env, a, fs)
		if err != nil {
			return err
		}
		return command(argv(mnt))(ctx, env, a)
	}
}

// afterMount orders c between the mount and the unmount of the btrfs
// filesystem fs.
func afterMount(g *actiongraph.Graph, c *actiongraph.Chain, fs devicegraph.SID) []actiongraph.Edge {
	var out []actiongraph.Edge
	for _, side := range []*devicegraph.Graph{g.Diff().LHS, g.Diff().RHS} {
		mp, ok := mountPointOf(side, fs)
		if !ok {
			continue
		}
		if a, ok := g.Find(mp.SID(), action.Mount); ok && c.Unit != action.UnitDelete {
			out = append(out, actiongraph.Edge{From: a.ID(), To: c.Head()})
		}
		if a, ok := g.Find(mp.SID(), action.Umount); ok {
			out = append(out, actiongraph.Edge{From: c.Tail(), To: a.ID()})
		}
	}
	return out
}

// =============================================================================
// Subvolumes
// =============================================================================

// BtrfsSubvolume is a subvolume of the btrfs filesystem it is a Subdevice
// of. SubPath is relative to the top-level subvolume.
type BtrfsSubvolume struct {
	devicegraph.Base `json:"-" yaml:"-"`

	SubPath string `json:"path" yaml:"path"`
	Nocow   bool   `json:"nocow,omitempty" yaml:"nocow,omitempty"`
}

// NewBtrfsSubvolume returns a subvolume with a fresh sid.
func NewBtrfsSubvolume(subPath string) *BtrfsSubvolume {
	return &BtrfsSubvolume{Base: devicegraph.NewBase(), SubPath: subPath}
}

func (s *BtrfsSubvolume) Kind() devicegraph.Kind    { return devicegraph.KindBtrfsSubvolume }
func (s *BtrfsSubvolume) Name() string              { return s.SubPath }
func (s *BtrfsSubvolume) Clone() devicegraph.Device { c := *s; return &c }

func (s *BtrfsSubvolume) Equal(other devicegraph.Device) bool {
	o, ok := other.(*BtrfsSubvolume)
	return ok && *o == *s
}

func (s *BtrfsSubvolume) setNocow(g *devicegraph.Graph, side action.Side) *action.Action {
	flag, what := "+C", "copy-on-write off for subvolume "+s.SubPath
	if !s.Nocow {
		flag, what = "-C", "copy-on-write on for subvolume "+s.SubPath
	}
	return act(action.SetNocow, s.SID(), side, action.FeatureBtrfs,
		action.VerbSet, what,
		inMount(btrfsFS(g, s.SID()), func(mnt string) []string {
			return []string{"chattr", flag, path.Join(mnt, s.SubPath)}
		}))
}

func (s *BtrfsSubvolume) CreateActions(rhs *devicegraph.Graph) []*action.Action {
	chain := []*action.Action{
		act(action.Create, s.SID(), action.RHS, action.FeatureBtrfs,
			action.VerbCreate, "subvolume "+s.SubPath,
			inMount(btrfsFS(rhs, s.SID()), func(mnt string) []string {
				return []string{"btrfs", "subvolume", "create", path.Join(mnt, s.SubPath)}
			})),
	}
	if s.Nocow {
		chain = append(chain, s.setNocow(rhs, action.RHS))
	}
	return chain
}

func (s *BtrfsSubvolume) DeleteActions(lhs *devicegraph.Graph) []*action.Action {
	return []*action.Action{
		act(action.Delete, s.SID(), action.LHS, action.FeatureBtrfs,
			action.VerbDelete, "subvolume "+s.SubPath,
			inMount(btrfsFS(lhs, s.SID()), func(mnt string) []string {
				return []string{"btrfs", "subvolume", "delete", path.Join(mnt, s.SubPath)}
			})),
	}
}

func (s *BtrfsSubvolume) ModifyActions(_ *devicegraph.Graph, old devicegraph.Device, rhs *devicegraph.Graph) []*action.Action {
	if old.(*BtrfsSubvolume).Nocow == s.Nocow {
		return nil
	}
	return []*action.Action{s.setNocow(rhs, action.RHS)}
}

// ExtraDependencies runs subvolume operations while the filesystem is
// mounted.
func (s *BtrfsSubvolume) ExtraDependencies(g *actiongraph.Graph) []actiongraph.Edge {
	c, ok := g.ChainOf(s.SID())
	if !ok {
		return nil
	}
	return afterMount(g, c, container(g.Diff(), s.SID()))
}

func (s *BtrfsSubvolume) Validate(old, cur devicegraph.Device) error {
	if cur == nil {
		return nil
	}
	if s.SubPath == "" || path.IsAbs(s.SubPath) || path.Clean(s.SubPath) != s.SubPath {
		return errors.New(errors.ErrCodeInvalidPath, "invalid subvolume path %q", s.SubPath)
	}
	if old != nil && old.(*BtrfsSubvolume).SubPath != s.SubPath {
		return errors.Unsupported("subvolume "+old.Name(), "renaming")
	}
	return nil
}

// Check requires a btrfs filesystem parent.
func (s *BtrfsSubvolume) Check(g *devicegraph.Graph) error {
	p, ok := parentOf(g, s.SID())
	if !ok {
		return errors.Structural("subvolume %s has no filesystem", s.SubPath)
	}
	if fs, ok := p.(*Filesystem); !ok || fs.Type != FsBtrfs {
		return errors.Structural("subvolume %s needs a btrfs parent, got %s", s.SubPath, p.Name())
	}
	return nil
}

// =============================================================================
// Qgroups
// =============================================================================

// BtrfsQgroup is a btrfs quota group. Limits of zero mean unlimited.
// Qgroup holders point from a member qgroup to the qgroup containing it.
type BtrfsQgroup struct {
	devicegraph.Base `json:"-" yaml:"-"`

	ID         string `json:"id" yaml:"id"`
	Referenced uint64 `json:"referenced,omitempty" yaml:"referenced,omitempty"`
	Exclusive  uint64 `json:"exclusive,omitempty" yaml:"exclusive,omitempty"`
}

// NewBtrfsQgroup returns a qgroup such as "1/100" with a fresh sid.
func NewBtrfsQgroup(id string) *BtrfsQgroup {
	return &BtrfsQgroup{Base: devicegraph.NewBase(), ID: id}
}

func (q *BtrfsQgroup) Kind() devicegraph.Kind    { return devicegraph.KindBtrfsQgroup }
func (q *BtrfsQgroup) Name() string              { return "qgroup " + q.ID }
func (q *BtrfsQgroup) Clone() devicegraph.Device { c := *q; return &c }

func (q *BtrfsQgroup) Equal(other devicegraph.Device) bool {
	o, ok := other.(*BtrfsQgroup)
	return ok && *o == *q
}

func limit(n uint64) string {
	if n == 0 {
		return "none"
	}
	return strconv.FormatUint(n, 10)
}

func (q *BtrfsQgroup) limited() bool { return q.Referenced != 0 || q.Exclusive != 0 }

func (q *BtrfsQgroup) setLimits(g *devicegraph.Graph) *action.Action {
	fs := btrfsFS(g, q.SID())
	return act(action.SetLimits, q.SID(), action.RHS, action.FeatureBtrfs,
		action.VerbSet, "limits of qgroup "+q.ID+" to "+limit(q.Referenced)+" referenced, "+limit(q.Exclusive)+" exclusive",
		sequence(
			inMount(fs, func(mnt string) []string {
				return []string{"btrfs", "qgroup", "limit", limit(q.Referenced), q.ID, mnt}
			}),
			inMount(fs, func(mnt string) []string {
				return []string{"btrfs", "qgroup", "limit", "-e", limit(q.Exclusive), q.ID, mnt}
			}),
		))
}

func (q *BtrfsQgroup) CreateActions(rhs *devicegraph.Graph) []*action.Action {
	chain := []*action.Action{
		act(action.Create, q.SID(), action.RHS, action.FeatureBtrfs,
			action.VerbCreate, "qgroup "+q.ID,
			inMount(btrfsFS(rhs, q.SID()), func(mnt string) []string {
				return []string{"btrfs", "qgroup", "create", q.ID, mnt}
			})),
	}
	if q.limited() {
		chain = append(chain, q.setLimits(rhs))
	}
	return chain
}

func (q *BtrfsQgroup) DeleteActions(lhs *devicegraph.Graph) []*action.Action {
	return []*action.Action{
		act(action.Delete, q.SID(), action.LHS, action.FeatureBtrfs,
			action.VerbDelete, "qgroup "+q.ID,
			inMount(btrfsFS(lhs, q.SID()), func(mnt string) []string {
				return []string{"btrfs", "qgroup", "destroy", q.ID, mnt}
			})),
	}
}

func (q *BtrfsQgroup) ModifyActions(_ *devicegraph.Graph, old devicegraph.Device, rhs *devicegraph.Graph) []*action.Action {
	prev := old.(*BtrfsQgroup)
	if prev.Referenced == q.Referenced && prev.Exclusive == q.Exclusive {
		return nil
	}
	return []*action.Action{q.setLimits(rhs)}
}

func (q *BtrfsQgroup) assignment(h devicegraph.Holder, g *devicegraph.Graph, kind action.Kind, verb action.Verb, side action.Side) *action.Action {
	d, ok := g.Find(h.Source)
	if !ok {
		return nil
	}
	member, ok := d.(*BtrfsQgroup)
	if !ok {
		return nil
	}
	id := member.ID
	sub := "assign"
	if kind == action.UnassignQgroup {
		sub = "remove"
	}
	return act(kind, q.SID(), side, action.FeatureBtrfs,
		verb, id+" to qgroup "+q.ID,
		inMount(btrfsFS(g, q.SID()), func(mnt string) []string {
			return []string{"btrfs", "qgroup", sub, id, q.ID, mnt}
		})).ForHolder(h)
}

// AddHolderActions assigns a member to the qgroup.
func (q *BtrfsQgroup) AddHolderActions(h devicegraph.Holder, _, rhs *devicegraph.Graph) []*action.Action {
	if h.Type != devicegraph.Qgroup {
		return nil
	}
	if a := q.assignment(h, rhs, action.AssignQgroup, action.VerbAssign, action.RHS); a != nil {
		return []*action.Action{a}
	}
	return nil
}

// RemoveHolderActions removes a member from a surviving qgroup. Destroying
// a qgroup drops its assignments.
func (q *BtrfsQgroup) RemoveHolderActions(h devicegraph.Holder, lhs, rhs *devicegraph.Graph) []*action.Action {
	if h.Type != devicegraph.Qgroup || !rhs.Has(q.SID()) || !rhs.Has(h.Source) {
		return nil
	}
	if a := q.assignment(h, lhs, action.UnassignQgroup, action.VerbUnassign, action.LHS); a != nil {
		return []*action.Action{a}
	}
	return nil
}

// ExtraDependencies runs qgroup operations while the filesystem is mounted
// and sets limits only after all sibling qgroups exist.
func (q *BtrfsQgroup) ExtraDependencies(g *actiongraph.Graph) []actiongraph.Edge {
	c, ok := g.ChainOf(q.SID())
	if !ok {
		return nil
	}
	fs := container(g.Diff(), q.SID())
	out := afterMount(g, c, fs)

	limits, ok := g.Find(q.SID(), action.SetLimits)
	if !ok {
		return out
	}
	for _, sib := range childrenOf(g.Diff().RHS, fs, devicegraph.KindBtrfsQgroup) {
		if sib.SID() == q.SID() {
			continue
		}
		if sc, ok := g.ChainOf(sib.SID()); ok && sc.Unit == action.UnitCreate {
			out = append(out, actiongraph.Edge{From: sc.Head(), To: limits.ID()})
		}
	}
	return out
}

func (q *BtrfsQgroup) Validate(old, cur devicegraph.Device) error {
	if cur == nil {
		return nil
	}
	if !validQgroupID(q.ID) {
		return errors.New(errors.ErrCodeInvalidName, "invalid qgroup id %q", q.ID)
	}
	if old != nil && old.(*BtrfsQgroup).ID != q.ID {
		return errors.Unsupported(old.Name(), "renaming")
	}
	return nil
}

// Check requires a btrfs filesystem parent.
func (q *BtrfsQgroup) Check(g *devicegraph.Graph) error {
	p, ok := parentOf(g, q.SID())
	if fs, isFS := p.(*Filesystem); !ok || !isFS || fs.Type != FsBtrfs {
		return errors.Structural("%s needs a btrfs filesystem parent", q.Name())
	}
	return nil
}

// validQgroupID accepts "<level>/<id>".
func validQgroupID(id string) bool {
	for i := 0; i < len(id); i++ {
		if id[i] != '/' {
			continue
		}
		_, err1 := strconv.ParseUint(id[:i], 10, 16)
		_, err2 := strconv.ParseUint(id[i+1:], 10, 64)
		return err1 == nil && err2 == nil
	}
	return false
}
