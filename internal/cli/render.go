package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/storagegraph/pkg/errors"
	sgio "github.com/matzehuels/storagegraph/pkg/io"
	"github.com/matzehuels/storagegraph/pkg/pipeline"
	"github.com/matzehuels/storagegraph/pkg/render"
)

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		graph    string
		format   string
		output   string
		detailed bool
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "render GRAPH | render SYSTEM STAGING",
		Short: "Draw a device graph or the action graph of a plan",
		Long: `Render draws graphs with Graphviz.

With one file it draws that device graph. With two files it plans the
transition and draws either the action graph (--graph actions, one cluster
per device chain) or the staging device graph annotated with the diff
(--graph devices: created green, deleted red and dashed, modified amber).`,
		Example: `  storagegraph render system.yaml -f svg -o system.svg
  storagegraph render system.yaml staging.yaml --graph devices -f png -o diff.png
  storagegraph render system.yaml staging.yaml | dot -Tpdf > plan.pdf`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if format == "" {
				format = string(render.FormatDOT)
				if output != "" {
					format = c.Config.Render.Format
				}
			}
			f, err := render.ParseFormat(format)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "--format")
			}
			if f != render.FormatDOT && output == "" && isTerminal(os.Stdout) {
				return errors.New(errors.ErrCodeInvalidInput, "refusing to write %s to a terminal, use -o", f)
			}
			detailed = detailed || c.Config.Render.Detailed

			var (
				data   []byte
				cached bool
			)
			spinner := newSpinner(ctx, os.Stderr, fmt.Sprintf("Rendering %s...", f))
			if f != render.FormatDOT && isTerminal(os.Stderr) {
				spinner.Start()
			}
			if len(args) == 1 {
				data, err = renderFile(ctx, args[0], f, detailed)
			} else {
				data, cached, err = c.renderPlan(ctx, args, pipeline.RenderOptions{
					Graph:    graph,
					Format:   f,
					Detailed: detailed,
				}, noCache)
			}
			spinner.Stop()
			if err != nil {
				return err
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", output)
			}
			status := "fresh"
			if cached {
				status = "cached"
			}
			printSuccess("Rendered %s %s", f, StyleDim.Render("("+status+")"))
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&graph, "graph", "g", pipeline.GraphActions, "graph to draw for a plan: actions or devices")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: dot, svg or png (default: dot, or render.format from the config with -o)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include sids and attributes in device labels")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) renderPlan(ctx context.Context, args []string, opts pipeline.RenderOptions, noCache bool) ([]byte, bool, error) {
	lhs, rhs, err := loadGraphs(ctx, args[0], args[1])
	if err != nil {
		return nil, false, err
	}
	runner := c.newRunner(ctx, noCache)
	defer runner.Close()

	p, err := runner.Plan(ctx, lhs, rhs)
	if err != nil {
		return nil, false, err
	}
	return runner.Render(ctx, p, opts)
}

func renderFile(ctx context.Context, path string, f render.Format, detailed bool) ([]byte, error) {
	g, err := sgio.Import(path)
	if err != nil {
		return nil, err
	}
	data, err := render.Render(ctx, render.DevicegraphDOT(g, render.Options{Detailed: detailed}), f)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", path, err)
	}
	return data, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd())
}
