package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/pipeline"
)

// inspectFlags holds flag values for the inspect command.
type inspectFlags struct {
	top         int
	interactive bool
	json        bool
	noCache     bool
}

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var flags inspectFlags

	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Show identifier statistics without changing anything",
		Long: `Inspect reads one or more containers and reports how many identifiers they
declare, how often they are referenced and how many bytes compaction would
save. Files are read in parallel.`,
		Example: `  sb3min inspect game.sb3 cat.sprite3
  sb3min inspect game.sb3 --top 25
  sb3min inspect game.sb3 --interactive`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.interactive && len(args) != 1 {
				return errors.New(errors.ErrCodeInvalidInput, "--interactive takes exactly one file")
			}
			return c.runInspect(cmd, args, flags)
		},
	}

	cmd.Flags().IntVar(&flags.top, "top", pipeline.DefaultTop, "number of most referenced identifiers to list (0 for none)")
	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "browse identifiers interactively")
	cmd.Flags().BoolVar(&flags.json, "json", false, "print statistics as JSON")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "do not read or write the statistics cache")
	cmd.ValidArgsFunction = completeContainers(-1)

	return cmd
}

func (c *CLI) runInspect(cmd *cobra.Command, files []string, flags inspectFlags) error {
	ctx := cmd.Context()

	runner, err := c.newRunner(ctx, flags.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	var spinner *Spinner
	if !c.quiet && !flags.json {
		spinner = newSpinner(ctx, os.Stderr, "Inspecting", len(files))
		spinner.Start()
	}

	results := make([]*pipeline.Inspection, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			archive, err := runner.Load(gctx, file, pipeline.Options{})
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			in, err := runner.Inspect(gctx, archive)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			results[i] = in
			if spinner != nil {
				spinner.Step()
			}
			return nil
		})
	}
	err = g.Wait()
	if spinner != nil {
		switch {
		case spinner.Cancelled():
			spinner.Stop()
		case err != nil:
			spinner.StopWithError("Inspection failed")
		default:
			spinner.StopWithSuccess(fmt.Sprintf("Inspected %d file(s)", len(files)))
		}
	}
	if err != nil {
		return err
	}

	if flags.json {
		for _, in := range results {
			if flags.top > 0 {
				in.Ranked = in.Top(flags.top)
			} else {
				in.Ranked = nil
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if flags.interactive {
		model := NewIDListModel(results[0])
		_, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen()).Run()
		return err
	}

	printInspections(results)
	if flags.top > 0 {
		for _, in := range results {
			printRanked(in, flags.top)
		}
	}
	return nil
}

func printInspections(results []*pipeline.Inspection) {
	rows := make([][]string, 0, len(results))
	for _, in := range results {
		g := in.Graph
		rows = append(rows, []string{
			truncate(in.Source, 32),
			in.Kind,
			strconv.Itoa(in.Counts.Targets),
			strconv.Itoa(g.Blocks),
			strconv.Itoa(g.Variables),
			strconv.Itoa(g.Lists),
			strconv.Itoa(g.Broadcasts),
			strconv.Itoa(g.Sites),
			strconv.Itoa(g.External),
			formatBytes(int64(in.JSONBytes)),
			formatBytes(int64(in.Savings)) + " (" + formatPercent(in.Savings, in.JSONBytes) + ")",
		})
	}
	fmt.Println(renderTable(
		[]string{"File", "Kind", "Targets", "Blocks", "Vars", "Lists", "Msgs", "Refs", "External", "JSON", "Savings"},
		rows, 2, 3, 4, 5, 6, 7, 8, 9, 10))
}

func printRanked(in *pipeline.Inspection, n int) {
	top := in.Top(n)
	if len(top) == 0 {
		return
	}
	rows := make([][]string, 0, len(top))
	for i, r := range top {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			truncate(r.ID, 28),
			r.Category,
			strconv.Itoa(r.Uses),
			r.Code,
		})
	}
	fmt.Println()
	fmt.Println(StyleTitle.Render(in.Source) + StyleDim.Render(fmt.Sprintf(" · top %d of %d", len(top), len(in.Ranked))))
	fmt.Println(renderTable([]string{"#", "Identifier", "Category", "Uses", "Code"}, rows, 0, 3))
}
