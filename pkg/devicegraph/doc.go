// Package devicegraph provides the entity graph that models one storage
// configuration snapshot: disks, partitions, volume groups, filesystems,
// encryption layers, RAIDs, btrfs subvolumes and qgroups, and mount points.
//
// # Overview
//
// A [Graph] owns a set of [Device] nodes and typed [Holder] edges between
// them. Devices never reference each other directly; every relationship is a
// holder addressed by the stable surrogate identity ([SID]) of its endpoints.
// Looking up a sid that is not part of the graph is a NOT_FOUND condition,
// never a dangling pointer.
//
// Holders come in two families. Hierarchical holders ([Subdevice], [User],
// [FilesystemUser]) express structural containment and must stay acyclic.
// Auxiliary holders ([Snapshot], [Qgroup]) may connect arbitrary devices but
// are ignored by the containment traversals ([Graph.Parents],
// [Graph.Children], [Graph.Descendants], [Graph.Ancestors]).
//
// # Basic Usage
//
//	g := devicegraph.New()
//	_ = g.AddDevice(disk)
//	_ = g.AddDevice(part)
//	_ = g.AddHolder(devicegraph.Holder{Source: disk.SID(), Target: part.SID(), Type: devicegraph.Subdevice})
//
// # Identity
//
// Sids are allocated by [NextSID] from a process-wide counter and are never
// reused. [Graph.Clone] preserves them, which is what lets the diff engine
// match a device in the system graph with its counterpart in a staging clone.
// Decoders that load persisted sids must call [ReserveSID] so later
// allocations cannot collide.
//
// # Derived Attributes
//
// Values that are expensive to compute from a graph (resize limits, for
// instance) are memoized in a [Cache] bound to one graph. The cache drops its
// contents whenever the graph is mutated.
//
// # Concurrency
//
// Graph instances are not safe for concurrent use. All mutation is synchronous
// and in-process; there is no concurrent-writer support for one graph.
package devicegraph
