// Package actiongraph compiles a diff of two entity graphs into a DAG of
// actions and linearizes it into a deterministic commit order.
//
// # Building
//
// [Build] asks every changed device for its action chain through the
// [Contributor] capability and then wires the chains together with rules
// that do not depend on any device type:
//
//  1. Chain linearity: chain[i] -> chain[i+1].
//  2. Containment create: for a hierarchical holder p -> c in the new graph,
//     ready(p) -> head(c) when c is created and p contributed actions.
//     ready is the last action of the chain that is not trailing.
//  3. Containment delete: for a hierarchical holder p -> c in the old graph,
//     tail(c) -> head(p) when c is deleted and p is deleted or modified.
//  4. Holder units run after both endpoint chains when created and before
//     them when deleted.
//  5. Actions requiring an [action.Anchor] run after its provider.
//  6. [DependencyContributor] edges are added last. They can only add.
//
// Capability refusals surface from [Validator] before any action exists.
// If the combined edges are cyclic, Build fails with a [*CycleError] that
// names one shortest offending cycle; no edge is ever dropped.
//
// # Scheduling
//
// [Schedule] runs Kahn's algorithm and always picks the eligible action with
// the smallest insertion index, so scheduling the same graph twice yields the
// same order. Scheduling freezes the graph.
//
// # Simulation
//
// [Simulate] replays a schedule on a copy of the old entity graph. For a
// correct plan the result is structurally equal to the new graph, which is
// how the planner is tested.
package actiongraph
