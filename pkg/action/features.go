package action

import "strings"

// Features is a bit set of system facilities an action exercises. The commit
// pre-check maps them to the external tools that must be installed.
type Features uint64

const (
	FeaturePartition Features = 1 << iota
	FeatureExt
	FeatureXfs
	FeatureBtrfs
	FeatureVfat
	FeatureSwap
	FeatureLuks
	FeatureLvm
	FeatureMd
	FeatureMount
)

var featureNames = []struct {
	f    Features
	name string
}{
	{FeaturePartition, "partition"},
	{FeatureExt, "ext"},
	{FeatureXfs, "xfs"},
	{FeatureBtrfs, "btrfs"},
	{FeatureVfat, "vfat"},
	{FeatureSwap, "swap"},
	{FeatureLuks, "luks"},
	{FeatureLvm, "lvm"},
	{FeatureMd, "md"},
	{FeatureMount, "mount"},
}

// Has reports whether all bits of o are set in f.
func (f Features) Has(o Features) bool { return f&o == o }

// Names returns the names of the set bits in bit order.
func (f Features) Names() []string {
	var out []string
	for _, fn := range featureNames {
		if f&fn.f != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

func (f Features) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Names(), ",")
}

// Union returns the combined feature bits of all actions.
func Union(actions []*Action) Features {
	var f Features
	for _, a := range actions {
		f |= a.Features
	}
	return f
}
