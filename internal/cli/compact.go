package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/sb3min/pkg/pipeline"
	"github.com/matzehuels/sb3min/pkg/report"
)

// compactFlags holds flag values for the compact command.
type compactFlags struct {
	overwrite      bool
	debugJSON      bool
	noRename       bool
	monitors       string
	removeMonitors bool
	enumeration    string
	alphabet       string
	allowExternal  bool
	noCache        bool
	report         string
}

// compactCommand creates the compact command.
func (c *CLI) compactCommand() *cobra.Command {
	var flags compactFlags

	cmd := &cobra.Command{
		Use:   "compact [source] [destination]",
		Short: "Rewrite a project with the shortest possible identifiers",
		Long: `Compact renames every block, variable, list and broadcast identifier of a
project or sprite, giving the most referenced identifiers the shortest codes,
and writes the result to a new container.

The source defaults to project.sb3. The destination defaults to the source
with ".min" before the extension. The source is never modified.`,
		Example: `  # Compact project.sb3 into project.min.sb3
  sb3min compact

  # Write to a chosen file, replacing it if it exists
  sb3min compact game.sb3 out.sb3 -f

  # Also drop hidden monitors
  sb3min compact game.sb3 --monitors hidden`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := pipeline.DefaultSource
			var dest string
			if len(args) > 0 {
				source = args[0]
			}
			if len(args) > 1 {
				dest = args[1]
			}
			opts := c.compactOptions(cmd, flags)
			return c.runCompact(cmd, source, dest, opts, flags)
		},
	}

	bindCompactFlags(cmd.Flags(), &flags)
	cmd.ValidArgsFunction = completeContainers(2)
	completeFlagValues(cmd, map[string][]string{
		"monitors":    {"none", "all", "hidden"},
		"enumeration": {"product", "combinations"},
	})

	return cmd
}

func bindCompactFlags(f *pflag.FlagSet, flags *compactFlags) {
	f.BoolVarP(&flags.overwrite, "overwrite", "f", false, "replace the destination if it exists")
	f.BoolVar(&flags.debugJSON, "debug-json", false, "with --overwrite, also write the rewritten JSON next to the source")
	f.BoolVar(&flags.noRename, "no-rename", false, "keep identifiers, only prune monitors")
	f.StringVar(&flags.monitors, "monitors", pipeline.DefaultMonitors, "monitors to remove: none, all or hidden")
	f.BoolVar(&flags.removeMonitors, "remove-monitors", false, "shorthand for --monitors all")
	f.StringVar(&flags.enumeration, "enumeration", pipeline.DefaultEnumeration, "code order: product or combinations")
	f.StringVar(&flags.alphabet, "alphabet", "", "symbols codes are built from")
	f.BoolVar(&flags.allowExternal, "allow-external", false, "keep references to identifiers declared elsewhere")
	f.BoolVar(&flags.noCache, "no-cache", false, "do not read or write the result cache")
	f.StringVar(&flags.report, "report", "", "append a JSON run report to this file")
}

// compactOptions starts from the config file and applies the flags the user
// actually set.
func (c *CLI) compactOptions(cmd *cobra.Command, flags compactFlags) pipeline.Options {
	opts := c.Config.PipelineOptions()
	set := cmd.Flags().Changed

	if set("overwrite") {
		opts.Overwrite = flags.overwrite
	}
	if set("debug-json") {
		opts.DebugJSON = flags.debugJSON
	}
	if set("no-rename") {
		opts.NoRename = flags.noRename
	}
	if set("monitors") {
		opts.Monitors = flags.monitors
	}
	if flags.removeMonitors {
		opts.Monitors = "all"
	}
	if set("enumeration") {
		opts.Enumeration = flags.enumeration
	}
	if set("alphabet") {
		opts.Alphabet = flags.alphabet
	}
	if set("allow-external") {
		opts.AllowExternal = flags.allowExternal
	}
	if flags.noCache {
		opts.NoCache = true
	}
	opts.Logger = loggerFromContext(cmd.Context())
	return opts
}

func (c *CLI) runCompact(cmd *cobra.Command, source, dest string, opts pipeline.Options, flags compactFlags) error {
	ctx := cmd.Context()

	runner, err := c.newRunner(ctx, opts.NoCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	sink, err := c.newReportSink(ctx, flags.report)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close(ctx)
	}

	prog := newProgress(c.Logger)
	result, err := runner.Execute(ctx, source, dest, opts)
	if err != nil {
		return err
	}
	prog.done("compacted", "source", source, "identifiers", result.Stats.Identifiers)

	if sink != nil {
		if err := sink.Write(ctx, report.NewRecord(source, opts, result)); err != nil {
			c.Logger.Warn("failed to write report", "error", err)
		}
	}

	if !c.quiet {
		printCompactResult(result)
	}
	return nil
}

func printCompactResult(result *pipeline.Result) {
	s := result.Stats
	printSuccess("Wrote %s", result.Output.Path)
	printStats([]string{
		fmt.Sprintf("%d identifiers", s.Identifiers),
		fmt.Sprintf("%d references", s.Sites),
		fmt.Sprintf("JSON %s %s %s", formatBytes(int64(s.InputJSONBytes)), iconArrow, formatBytes(int64(s.OutputJSONBytes))),
		fmt.Sprintf("archive %s %s %s", formatBytes(s.InputBytes), iconArrow, formatBytes(s.OutputBytes)),
	}, result.CacheInfo.ResultHit)
	if result.Monitors.Removed > 0 {
		printDetail("removed %d monitors", result.Monitors.Removed)
	}
}
