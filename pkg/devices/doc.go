// Package devices implements the concrete storage device types.
//
// Every type embeds [devicegraph.Base], carries only its own persistent
// attributes, and implements the planner capabilities of package actiongraph:
//
//   - [actiongraph.Contributor] to turn create, delete and modify units into
//     ordered action chains
//   - [actiongraph.Validator] to refuse transformations the underlying tools
//     cannot perform
//   - [actiongraph.DependencyContributor] where ordering depends on siblings
//     (partitions sharing a disk, nested mount points)
//   - [actiongraph.HolderContributor] for relationships that are changed in
//     place (volume group membership, qgroup assignment)
//
// Command lines are assembled while the action graph is built, from the
// snapshot the action belongs to. Only paths below the target root are
// resolved at commit time through [action.Env].
//
// # Types
//
//	Disk            /dev/sda           partition table only
//	Partition       /dev/sda1          parted, sfdisk
//	Encryption      /dev/mapper/cr     cryptsetup, dmsetup
//	LvmPv, LvmVg    vg0                lvm
//	LvmLv           /dev/vg0/root      lvm
//	Md              /dev/md0           mdadm
//	Filesystem      ext4, xfs, ...     mkfs.*, tune tools, wipefs
//	MountPoint      /home, swap        mount, swapon, /etc/fstab
//	BtrfsSubvolume  @/home             btrfs subvolume
//	BtrfsQgroup     1/100              btrfs qgroup
//
// Use [New] to create a zero device of a given kind, e.g. when decoding.
package devices
