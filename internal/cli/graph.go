package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/pipeline"
)

// graphFlags holds flag values for the graph command.
type graphFlags struct {
	format        string
	output        string
	codes         bool
	allowExternal bool
	monitors      string
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var flags graphFlags

	cmd := &cobra.Command{
		Use:   "graph FILE",
		Short: "Draw the identifier usage graph",
		Long: `Graph writes the usage graph of a project: one node per target, block,
variable, list and broadcast identifier, with an edge for every reference.
DOT output goes to stdout unless -o is given. SVG output is rendered with
Graphviz and always needs -o.`,
		Example: `  sb3min graph game.sb3 | dot -Tpng > game.png
  sb3min graph game.sb3 --format svg -o game.svg --codes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.format, "format", "dot", "output format: dot or svg")
	f.StringVarP(&flags.output, "output", "o", "", "output file (default stdout for dot)")
	f.BoolVar(&flags.codes, "codes", false, "label identifiers with the codes compaction would assign")
	f.BoolVar(&flags.allowExternal, "allow-external", false, "keep references to identifiers declared elsewhere")
	f.StringVar(&flags.monitors, "monitors", pipeline.DefaultMonitors, "monitors to leave out: none or all")
	cmd.ValidArgsFunction = completeContainers(1)
	completeFlagValues(cmd, map[string][]string{
		"format":   {"dot", "svg"},
		"monitors": {"none", "all"},
	})

	return cmd
}

func (c *CLI) runGraph(cmd *cobra.Command, file string, flags graphFlags) error {
	ctx := cmd.Context()

	format := strings.ToLower(flags.format)
	if format != "dot" && format != "svg" {
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want dot or svg)", flags.format)
	}
	if format == "svg" && flags.output == "" {
		return errors.New(errors.ErrCodeInvalidInput, "--format svg needs --output")
	}

	runner, err := c.newRunner(ctx, true)
	if err != nil {
		return err
	}
	defer runner.Close()

	opts := c.Config.PipelineOptions()
	opts.Monitors = flags.monitors
	if cmd.Flags().Changed("allow-external") {
		opts.AllowExternal = flags.allowExternal
	}
	opts.Logger = c.Logger

	archive, err := runner.Load(ctx, file, opts)
	if err != nil {
		return err
	}
	g, names, err := runner.Graph(ctx, archive, opts, flags.codes)
	if err != nil {
		return err
	}

	var data []byte
	if format == "svg" {
		data, err = g.RenderSVG(ctx, names)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "render graph")
		}
	} else {
		data = []byte(g.ToDOT(names))
	}

	if flags.output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(flags.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", flags.output, err)
	}
	if !c.quiet {
		printSuccess("Graph with %d identifiers", g.Len())
		printFile(flags.output)
	}
	return nil
}
