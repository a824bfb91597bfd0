// Package render draws device graphs and action graphs as Graphviz
// diagrams.
//
// # DOT
//
// [DevicegraphDOT] draws devices as boxes labelled with kind and name and
// holders as arrows styled by holder type. With [Options.Diff] set, the
// union of both sides of a diff is drawn and devices are coloured by
// change status:
//
//	dot := render.DevicegraphDOT(plan.Diff.RHS, render.Options{Diff: plan.Diff})
//
// [ActiongraphDOT] draws actions grouped by the chain that contributed
// them, numbered by their position in the scheduled order and coloured by
// commit state.
//
// # Output formats
//
// [RenderSVG] and [RenderPNG] lay out DOT source in-process with
// [github.com/goccy/go-graphviz]; no Graphviz installation is needed.
// [Render] dispatches on a [Format].
package render
