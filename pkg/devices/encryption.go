package devices

import (
	"strconv"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// Encryption is a LUKS container on a block device and its dm-crypt
// mapping.
type Encryption struct {
	devicegraph.Base `json:"-" yaml:"-"`

	DmName     string `json:"dm_name" yaml:"dm_name"`
	Type       string `json:"type,omitempty" yaml:"type,omitempty"`
	UUID       string `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	KeyFile    string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
	InCrypttab bool   `json:"in_crypttab" yaml:"in_crypttab"`
}

// NewEncryption returns a LUKS2 container with a fresh sid.
func NewEncryption(dmName string) *Encryption {
	return &Encryption{Base: devicegraph.NewBase(), DmName: dmName, Type: "luks2"}
}

func (e *Encryption) Kind() devicegraph.Kind    { return devicegraph.KindEncryption }
func (e *Encryption) Name() string              { return e.mapping() }
func (e *Encryption) Clone() devicegraph.Device { c := *e; return &c }

func (e *Encryption) Equal(other devicegraph.Device) bool {
	o, ok := other.(*Encryption)
	return ok && *o == *e
}

func (e *Encryption) mapping() string { return "/dev/mapper/" + e.DmName }

// BlockPath returns the dm-crypt mapping.
func (e *Encryption) BlockPath(*devicegraph.Graph) string { return e.mapping() }

func (e *Encryption) luksType() string {
	if e.Type == "" {
		return "luks2"
	}
	return e.Type
}

func (e *Encryption) crypttabEntry(blk string) []string {
	spec := blk
	if e.UUID != "" {
		spec = "UUID=" + e.UUID
	}
	key := e.KeyFile
	if key == "" {
		key = "none"
	}
	return []string{e.DmName, spec, key, "luks"}
}

// resizeCmd resizes the active mapping to sz bytes, or to fill its device
// when sz is zero.
func (e *Encryption) resizeCmd(sz uint64) []string {
	argv := []string{"cryptsetup", "resize"}
	if sz > 0 {
		argv = append(argv, "--size", strconv.FormatUint(sz/512, 10))
	}
	if e.KeyFile != "" {
		argv = append(argv, "--key-file", e.KeyFile)
	}
	return append(argv, e.DmName)
}

// encryptionBelow returns the encryption layer sid sits on directly.
func encryptionBelow(g *devicegraph.Graph, sid devicegraph.SID) (*Encryption, bool) {
	p, ok := parentOf(g, sid)
	if !ok {
		return nil, false
	}
	e, ok := p.(*Encryption)
	return e, ok
}

// refreshFstab rewrites the fstab entries that name the mapping by its
// path. Mount points that rewrite their own entry in this plan are left to
// do so.
func (e *Encryption) refreshFstab(lhs, rhs *devicegraph.Graph) []*action.Action {
	var out []*action.Action
	for _, d := range childrenOf(rhs, e.SID(), devicegraph.KindFilesystem) {
		if d.(*Filesystem).UUID != "" {
			continue
		}
		for _, mp := range fstabMountPoints(rhs, d.SID()) {
			old, ok := lhs.Find(mp.SID())
			if !ok || mp.rewritesFstab(old.(*MountPoint)) {
				continue
			}
			out = append(out, act(action.UpdateInEtcFstab, e.SID(), action.RHS, action.FeatureMount,
				action.VerbUpdate, mp.Path+" in "+action.EtcFstab,
				tabSet(action.EtcFstab, 1, mp.fstabEntry(mp.resolve(rhs)))).
				AsTrailing().
				Requiring(action.AnchorRootMounted))
		}
	}
	return out
}

func (e *Encryption) addToCrypttab(blk string) *action.Action {
	return act(action.AddToEtcCrypttab, e.SID(), action.RHS, action.FeatureLuks,
		action.VerbAdd, e.DmName+" to "+action.EtcCrypttab,
		tabSet(action.EtcCrypttab, 0, e.crypttabEntry(blk))).
		AsTrailing().
		Requiring(action.AnchorRootMounted)
}

func (e *Encryption) removeFromCrypttab(side action.Side) *action.Action {
	return act(action.RemoveFromEtcCrypttab, e.SID(), side, action.FeatureLuks,
		action.VerbRemove, e.DmName+" from "+action.EtcCrypttab,
		tabRemove(action.EtcCrypttab, 0, e.DmName))
}

func (e *Encryption) CreateActions(rhs *devicegraph.Graph) []*action.Action {
	blk := underlying(rhs, e.SID())

	format := []string{"cryptsetup", "--batch-mode", "luksFormat", "--type", e.luksType()}
	if e.UUID != "" {
		format = append(format, "--uuid", e.UUID)
	}
	format = append(format, blk)
	open := []string{"cryptsetup", "open", "--type", "luks", blk, e.DmName}
	if e.KeyFile != "" {
		format = append(format, e.KeyFile)
		open = append(open, "--key-file", e.KeyFile)
	}

	chain := []*action.Action{
		act(action.Create, e.SID(), action.RHS, action.FeatureLuks,
			action.VerbCreate, "encryption layer on "+blk, command(format)),
		act(action.Activate, e.SID(), action.RHS, action.FeatureLuks,
			action.VerbActivate, "encryption layer "+e.mapping(), command(open)),
	}
	if e.InCrypttab {
		chain = append(chain, e.addToCrypttab(blk))
	}
	return chain
}

func (e *Encryption) DeleteActions(lhs *devicegraph.Graph) []*action.Action {
	blk := underlying(lhs, e.SID())

	var chain []*action.Action
	if e.InCrypttab {
		chain = append(chain, e.removeFromCrypttab(action.LHS))
	}
	return append(chain,
		act(action.Deactivate, e.SID(), action.LHS, action.FeatureLuks,
			action.VerbDeactivate, "encryption layer "+e.mapping(),
			command([]string{"cryptsetup", "close", e.DmName})),
		act(action.Delete, e.SID(), action.LHS, action.FeatureLuks,
			action.VerbDelete, "encryption layer on "+blk,
			command([]string{"wipefs", "--all", blk})),
	)
}

func (e *Encryption) ModifyActions(lhs *devicegraph.Graph, old devicegraph.Device, rhs *devicegraph.Graph) []*action.Action {
	prev := old.(*Encryption)
	blk := underlying(rhs, e.SID())

	var chain []*action.Action
	if prev.DmName != e.DmName {
		chain = append(chain, act(action.Rename, e.SID(), action.RHS, action.FeatureLuks,
			action.VerbRename, "encryption layer "+prev.mapping()+" to "+e.mapping(),
			command([]string{"dmsetup", "rename", prev.DmName, e.DmName})))
		if prev.InCrypttab && e.InCrypttab {
			chain = append(chain, prev.removeFromCrypttab(action.RHS), e.addToCrypttab(blk))
		}
	}
	switch {
	case prev.InCrypttab && !e.InCrypttab:
		chain = append(chain, prev.removeFromCrypttab(action.RHS))
	case !prev.InCrypttab && e.InCrypttab:
		chain = append(chain, e.addToCrypttab(blk))
	}
	if prev.DmName != e.DmName {
		chain = append(chain, e.refreshFstab(lhs, rhs)...)
	}
	return chain
}

func (e *Encryption) Validate(old, cur devicegraph.Device) error {
	if cur == nil {
		return nil
	}
	if err := errors.ValidateDmName(e.DmName); err != nil {
		return err
	}
	if e.UUID != "" {
		if err := errors.ValidateUUID(e.UUID); err != nil {
			return err
		}
	}
	if old == nil {
		return nil
	}
	prev := old.(*Encryption)
	if prev.luksType() != e.luksType() || prev.UUID != e.UUID || prev.KeyFile != e.KeyFile {
		return errors.Unsupported("encryption layer "+prev.mapping(), "reformatting")
	}
	return nil
}
