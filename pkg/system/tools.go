package system

import (
	"os/exec"
	"slices"
	"strings"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// toolsByFeature lists the external tools each feature needs.
var toolsByFeature = map[action.Features][]string{
	action.FeaturePartition: {"parted", "sfdisk", "wipefs"},
	action.FeatureExt:       {"mkfs.ext4", "resize2fs", "tune2fs", "wipefs"},
	action.FeatureXfs:       {"mkfs.xfs", "xfs_admin", "xfs_growfs", "wipefs"},
	action.FeatureBtrfs:     {"mkfs.btrfs", "btrfs", "btrfstune", "chattr", "wipefs"},
	action.FeatureVfat:      {"mkfs.vfat", "fatlabel", "wipefs"},
	action.FeatureSwap:      {"mkswap", "swaplabel", "swapon", "swapoff", "wipefs"},
	action.FeatureLuks:      {"cryptsetup", "dmsetup"},
	action.FeatureLvm:       {"lvm"},
	action.FeatureMd:        {"mdadm"},
	action.FeatureMount:     {"mount", "umount"},
}

// RequiredTools returns the sorted tool names needed for f.
func RequiredTools(f action.Features) []string {
	var out []string
	for feat, tools := range toolsByFeature {
		if f&feat != 0 {
			out = append(out, tools...)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// MissingTools returns the tools needed for f that lookPath cannot find.
// A nil lookPath uses exec.LookPath.
func MissingTools(f action.Features, lookPath func(string) (string, error)) []string {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	var missing []string
	for _, tool := range RequiredTools(f) {
		if _, err := lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	return missing
}

// CheckTools fails with UNSUPPORTED_OPERATION if a tool needed for f is not
// installed. It has the signature of a commit pre-check.
func CheckTools(f action.Features) error {
	if missing := MissingTools(f, nil); len(missing) > 0 {
		return errors.New(errors.ErrCodeUnsupportedOperation,
			"missing tools for %s: %s", f, strings.Join(missing, ", "))
	}
	return nil
}
