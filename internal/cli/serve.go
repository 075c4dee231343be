package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/sb3min/pkg/buildinfo"
	"github.com/matzehuels/sb3min/pkg/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve compaction over HTTP",
		Long: `Serve starts an HTTP server. POST a container body to /v1/compact to get
the compacted container back, or to /v1/inspect for statistics as JSON.
Defaults come from the [compact] section of the config file and can be
overridden per request with query parameters.`,
		Example: `  sb3min serve --addr :9000
  curl --data-binary @game.sb3 -o game.min.sb3 localhost:9000/v1/compact?monitors=all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("addr") {
				addr = c.Config.Server.Addr
			}

			runner, err := c.newRunner(ctx, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			sink, err := c.newReportSink(ctx, "")
			if err != nil {
				return err
			}
			if sink != nil {
				defer sink.Close(ctx)
			}

			srv := server.New(runner, server.Options{
				Defaults:     c.Config.PipelineOptions(),
				MaxBodyBytes: c.Config.Server.MaxBodyBytes(),
				Reports:      sink,
				Logger:       c.Logger,
			})

			printKeyValue("Version", buildinfo.Get().Version)
			printKeyValue("Listening", addr)
			printKeyValue("Max body", formatBytes(c.Config.Server.MaxBodyBytes()))
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not read or write the result cache")

	return cmd
}
