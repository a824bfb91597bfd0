package cli

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/devices"
	sgio "github.com/matzehuels/storagegraph/pkg/io"
)

// checkCommand creates the check command.
func (c *CLI) checkCommand() *cobra.Command {
	var resize bool

	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Validate device graph files",
		Long: `Check imports each device graph file and verifies its structure: holder
endpoints exist, hierarchical holders form no cycle and every device kind
has parents it can live on. All decoding problems of a file are reported
together.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				g, err := sgio.Import(path)
				if err != nil {
					failed++
					printError("%s", path)
					printDetail("%v", err)
					continue
				}
				printSuccess("%s", path)
				printDetail("%d devices · %d holders · %s", g.NumDevices(), g.NumHolders(), kindSummary(g))
				if resize {
					printResizeLimits(g)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files invalid", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&resize, "resize", false, "also print the resize range of partitions, logical volumes and filesystems")

	return cmd
}

// kindSummary counts devices per kind, e.g. "1 disk, 2 partition".
func kindSummary(g *devicegraph.Graph) string {
	counts := map[devicegraph.Kind]int{}
	for _, d := range g.Devices() {
		counts[d.Kind()]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	out := ""
	for i, k := range kinds {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d %s", counts[devicegraph.Kind(k)], k)
	}
	return out
}

func printResizeLimits(g *devicegraph.Graph) {
	for _, d := range g.Devices() {
		switch d.(type) {
		case *devices.Partition, *devices.LvmLv, *devices.Filesystem:
		default:
			continue
		}
		info, err := devices.ResizeLimits(g, d.SID())
		if err != nil {
			continue
		}
		if !info.Resizable {
			printKeyValue(d.Name(), StyleDim.Render(info.Reason))
			continue
		}
		printKeyValue(d.Name(), fmt.Sprintf("%s – %s", humanize.IBytes(info.Min), humanize.IBytes(info.Max)))
	}
}
