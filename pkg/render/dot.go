package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/actiongraph"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/diff"
)

// Options configures DOT generation.
type Options struct {
	// Detailed adds sids and persisted attributes to device labels.
	Detailed bool

	// Diff, if set, makes DevicegraphDOT draw the union of both sides of
	// the diff, coloured by change status. The graph argument is ignored.
	Diff *diff.Result
}

var statusFill = map[diff.Status]string{
	diff.Unchanged: "white",
	diff.Created:   "\"#d4f4dd\"",
	diff.Deleted:   "\"#f8d7da\"",
	diff.Modified:  "\"#fff3cd\"",
}

var stateFill = map[action.State]string{
	action.Pending:   "white",
	action.Scheduled: "white",
	action.Committed: "\"#d4f4dd\"",
	action.Failed:    "\"#f8d7da\"",
}

func header(buf *bytes.Buffer, name string) {
	fmt.Fprintf(buf, "digraph %s {\n", name)
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")
}

// DevicegraphDOT converts a device graph to Graphviz DOT. Devices and
// holders are emitted in sid order.
func DevicegraphDOT(g *devicegraph.Graph, opts Options) string {
	var buf bytes.Buffer
	header(&buf, "devicegraph")

	if opts.Diff != nil {
		for _, c := range opts.Diff.Devices {
			attrs := deviceAttrs(c.Device(), opts.Detailed)
			attrs = append(attrs, "fillcolor="+statusFill[c.Status])
			if c.Status == diff.Deleted {
				attrs = append(attrs, "style=\"rounded,filled,dashed\"")
			}
			fmt.Fprintf(&buf, "  %q [%s];\n", c.SID.String(), strings.Join(attrs, ", "))
		}
		buf.WriteString("\n")
		for _, c := range opts.Diff.Holders {
			attrs := holderAttrs(c.Holder.Type)
			switch c.Status {
			case diff.Created:
				attrs = append(attrs, "color=\"#2e7d32\"")
			case diff.Deleted:
				attrs = append(attrs, "color=\"#c62828\"", "style=dashed")
			}
			writeHolder(&buf, c.Holder, attrs)
		}
		buf.WriteString("}\n")
		return buf.String()
	}

	for _, d := range g.Devices() {
		fmt.Fprintf(&buf, "  %q [%s];\n", d.SID().String(), strings.Join(deviceAttrs(d, opts.Detailed), ", "))
	}
	buf.WriteString("\n")
	for _, h := range g.Holders() {
		writeHolder(&buf, h, holderAttrs(h.Type))
	}
	buf.WriteString("}\n")
	return buf.String()
}

func deviceAttrs(d devicegraph.Device, detailed bool) []string {
	return []string{fmt.Sprintf("label=%q", deviceLabel(d, detailed))}
}

func deviceLabel(d devicegraph.Device, detailed bool) string {
	label := string(d.Kind()) + "\n" + d.Name()
	if !detailed {
		return label
	}

	parts := []string{"sid: " + d.SID().String()}
	raw, err := json.Marshal(d)
	if err != nil {
		return label + "\n" + parts[0]
	}
	var attrs map[string]any
	if json.Unmarshal(raw, &attrs) == nil {
		for _, k := range slices.Sorted(maps.Keys(attrs)) {
			parts = append(parts, fmt.Sprintf("%s: %v", k, attrs[k]))
		}
	}
	return label + "\n" + strings.Join(parts, "\n")
}

func holderAttrs(t devicegraph.HolderType) []string {
	switch t {
	case devicegraph.FilesystemUser:
		return []string{"penwidth=2"}
	case devicegraph.Snapshot:
		return []string{"style=dotted", "label=\"snapshot\""}
	case devicegraph.Qgroup:
		return []string{"style=dashed", "arrowhead=empty", "label=\"qgroup\""}
	}
	return nil
}

func writeHolder(buf *bytes.Buffer, h devicegraph.Holder, attrs []string) {
	if len(attrs) == 0 {
		fmt.Fprintf(buf, "  %q -> %q;\n", h.Source.String(), h.Target.String())
		return
	}
	fmt.Fprintf(buf, "  %q -> %q [%s];\n", h.Source.String(), h.Target.String(), strings.Join(attrs, ", "))
}

// ActiongraphDOT converts an action graph to Graphviz DOT. Actions of one
// chain share a cluster labelled with the unit and device. If order is
// non-nil, labels are prefixed with the 1-based step number.
func ActiongraphDOT(g *actiongraph.Graph, order []action.ID) string {
	step := make(map[action.ID]int, len(order))
	for i, id := range order {
		step[id] = i + 1
	}

	var buf bytes.Buffer
	header(&buf, "actiongraph")

	for _, c := range g.Chains() {
		fmt.Fprintf(&buf, "  subgraph \"cluster_%d\" {\n", c.ID)
		fmt.Fprintf(&buf, "    label=%q;\n", chainLabel(g, c))
		buf.WriteString("    style=\"rounded,dashed\";\n    color=grey;\n")
		for _, id := range c.Actions {
			a := g.Action(id)
			label := a.Describe(nil, action.TenseSimplePresent)
			if n, ok := step[id]; ok {
				label = fmt.Sprintf("%d. %s", n, label)
			}
			attrs := []string{fmt.Sprintf("label=%q", label), "fillcolor=" + stateFill[a.State()]}
			if a.Trailing {
				attrs = append(attrs, "style=\"rounded,filled,dashed\"")
			}
			fmt.Fprintf(&buf, "    \"a%d\" [%s];\n", id, strings.Join(attrs, ", "))
		}
		buf.WriteString("  }\n")
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  \"a%d\" -> \"a%d\";\n", e.From, e.To)
	}
	buf.WriteString("}\n")
	return buf.String()
}

func chainLabel(g *actiongraph.Graph, c *actiongraph.Chain) string {
	if c.Holder != nil {
		return fmt.Sprintf("%s %s", c.Unit, c.Holder)
	}
	name := c.SID.String()
	if ch, ok := g.Diff().Lookup(c.SID); ok {
		name = ch.Device().Name()
	}
	return fmt.Sprintf("%s %s", c.Unit, name)
}
