package devices

import (
	"strconv"
	"strings"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// Md is a Linux software RAID. Its parents are the member block devices,
// each linked by a User holder.
type Md struct {
	devicegraph.Base `json:"-" yaml:"-"`

	Path       string `json:"path" yaml:"path"`
	Level      string `json:"level" yaml:"level"`
	UUID       string `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Metadata   string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	InEtcMdadm bool   `json:"in_etc_mdadm" yaml:"in_etc_mdadm"`
}

// NewMd returns a RAID with a fresh sid.
func NewMd(path, level string) *Md {
	return &Md{Base: devicegraph.NewBase(), Path: path, Level: level}
}

func (m *Md) Kind() devicegraph.Kind    { return devicegraph.KindMd }
func (m *Md) Name() string              { return m.Path }
func (m *Md) Clone() devicegraph.Device { c := *m; return &c }

func (m *Md) Equal(other devicegraph.Device) bool {
	o, ok := other.(*Md)
	return ok && *o == *m
}

// BlockPath returns the RAID's block special file.
func (m *Md) BlockPath(*devicegraph.Graph) string { return m.Path }

var mdLevels = map[string]int{
	"raid0":  2,
	"raid1":  2,
	"raid4":  3,
	"raid5":  3,
	"raid6":  4,
	"raid10": 2,
}

func (m *Md) metadata() string {
	if m.Metadata == "" {
		return "1.0"
	}
	return m.Metadata
}

func (m *Md) mdadmEntry() []string {
	entry := []string{"ARRAY", m.Path, "metadata=" + m.metadata()}
	if m.UUID != "" {
		entry = append(entry, "UUID="+m.UUID)
	}
	return entry
}

func (m *Md) addToMdadm(side action.Side) *action.Action {
	return act(action.AddToEtcMdadm, m.SID(), side, action.FeatureMd,
		action.VerbAdd, m.Path+" to "+action.EtcMdadm,
		tabSet(action.EtcMdadm, 1, m.mdadmEntry())).
		AsTrailing().
		Requiring(action.AnchorRootMounted)
}

func (m *Md) removeFromMdadm(side action.Side) *action.Action {
	return act(action.RemoveFromEtcMdadm, m.SID(), side, action.FeatureMd,
		action.VerbRemove, m.Path+" from "+action.EtcMdadm,
		tabRemove(action.EtcMdadm, 1, m.Path))
}

func (m *Md) CreateActions(rhs *devicegraph.Graph) []*action.Action {
	members := underlyingAll(rhs, m.SID())
	argv := []string{
		"mdadm", "--create", m.Path, "--run",
		"--level=" + m.Level,
		"--metadata=" + m.metadata(),
		"--raid-devices=" + strconv.Itoa(len(members)),
	}
	if m.UUID != "" {
		argv = append(argv, "--uuid="+m.UUID)
	}
	argv = append(argv, members...)

	chain := []*action.Action{
		act(action.Create, m.SID(), action.RHS, action.FeatureMd,
			action.VerbCreate, m.Level+" "+m.Path+" from "+strings.Join(members, ", "),
			command(argv)),
	}
	if m.InEtcMdadm {
		chain = append(chain, m.addToMdadm(action.RHS))
	}
	return chain
}

func (m *Md) DeleteActions(lhs *devicegraph.Graph) []*action.Action {
	members := underlyingAll(lhs, m.SID())

	var chain []*action.Action
	if m.InEtcMdadm {
		chain = append(chain, m.removeFromMdadm(action.LHS))
	}
	return append(chain, act(action.Delete, m.SID(), action.LHS, action.FeatureMd,
		action.VerbDelete, m.Level+" "+m.Path,
		command(
			[]string{"mdadm", "--stop", m.Path},
			append([]string{"mdadm", "--zero-superblock"}, members...),
		)))
}

func (m *Md) ModifyActions(_ *devicegraph.Graph, old devicegraph.Device, _ *devicegraph.Graph) []*action.Action {
	prev := old.(*Md)
	switch {
	case prev.InEtcMdadm && !m.InEtcMdadm:
		return []*action.Action{m.removeFromMdadm(action.RHS)}
	case !prev.InEtcMdadm && m.InEtcMdadm:
		return []*action.Action{m.addToMdadm(action.RHS)}
	}
	return nil
}

func (m *Md) Validate(old, cur devicegraph.Device) error {
	if cur == nil {
		return nil
	}
	if err := errors.ValidateDeviceName(m.Path); err != nil {
		return err
	}
	if _, ok := mdLevels[m.Level]; !ok {
		return errors.New(errors.ErrCodeInvalidInput, "raid %s: unknown level %q", m.Path, m.Level)
	}
	if old == nil {
		return nil
	}
	prev := old.(*Md)
	if prev.Path != m.Path || prev.Level != m.Level || prev.UUID != m.UUID || prev.metadata() != m.metadata() {
		return errors.Unsupported("raid "+prev.Path, "reshaping")
	}
	return nil
}

// Check requires at least as many members as the RAID level needs.
func (m *Md) Check(g *devicegraph.Graph) error {
	want, ok := mdLevels[m.Level]
	if !ok {
		return nil
	}
	if n := len(g.Parents(m.SID())); n < want {
		return errors.Structural("%s %s has %d members, needs at least %d", m.Level, m.Path, n, want)
	}
	return nil
}
