// Package action defines the atomic low-level storage operations produced by
// diffing two entity graphs.
//
// An [Action] references the device it operates on by sid together with the
// diff side the sid must be resolved against. The work itself is delegated to
// an [Op] supplied by the device type that contributed the action; this
// package only carries identity, chain position, anchors, feature bits and
// the commit state machine:
//
//	Pending -> Scheduled -> Committed
//	                     \-> Failed
//
// Scheduled is set by the scheduler, Committed and Failed by the commit
// driver. There is no path back to Pending.
//
// # Chains
//
// Every device change contributes an ordered chain of actions. Instead of
// boolean first/last markers each action carries an explicit [Position]:
// the chain id, its ordinal inside the chain and the chain length. First and
// Last are derived from that, so a chain always has exactly one first and one
// last action.
//
// # Environment
//
// [Env] is the explicit context an Op commits against: both diff graphs, the
// external command [Runner], the [TabEditor] for fstab-like files, the logger
// and the root prefix. Nothing in an Op reaches for globals.
package action
