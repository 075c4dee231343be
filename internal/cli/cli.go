package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sb3min/pkg/buildinfo"
	"github.com/matzehuels/sb3min/pkg/cache"
	"github.com/matzehuels/sb3min/pkg/config"
	"github.com/matzehuels/sb3min/pkg/observability"
	"github.com/matzehuels/sb3min/pkg/pipeline"
	"github.com/matzehuels/sb3min/pkg/report"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is the loaded configuration file, or the defaults.
	Config config.Config

	configPath string
	verbosity  int
	quiet      bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level. Timestamps follow debug level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	c.Logger.SetReportTimestamp(level <= log.DebugLevel)
}

// Verbosity returns how many times --verbose was given.
func (c *CLI) Verbosity() int { return c.verbosity }

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "sb3min shrinks Scratch 3 projects by compacting identifiers",
		Long: `sb3min rewrites the project.json (or sprite.json) inside .sb3 and .sprite3
files so that every block, variable, list and broadcast identifier is replaced
by the shortest code available, most referenced identifiers first. Assets are
copied unchanged.`,
		Version:           buildinfo.Get().Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.CountVarP(&c.verbosity, "verbose", "v", "more output (-v debug, -vv debug with full error chains)")
	flags.BoolVarP(&c.quiet, "quiet", "q", false, "only print warnings and errors")
	flags.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/sb3min/config.toml)")

	// Register all subcommands
	root.AddCommand(c.compactCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup runs before every command: it applies the log level, loads the
// config file and registers logging hooks.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	switch {
	case c.quiet:
		c.SetLogLevel(LogWarn)
	case c.verbosity > 0:
		c.SetLogLevel(LogDebug)
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.Config = cfg

	hooks := &logHooks{logger: c.Logger}
	observability.SetPipelineHooks(hooks)
	observability.SetCacheHooks(hooks)
	observability.SetServerHooks(hooks)

	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	store, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), buildinfo.Get().Version+":")
	r := pipeline.NewRunner(store, keyer, c.Logger)
	if ttl := c.Config.Cache.TTL.Duration; ttl > 0 {
		r.ResultTTL = ttl
	}
	return r, nil
}

func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cfg := c.Config.Cache
	if noCache || cfg.Disabled {
		return cache.NewNullCache(), nil
	}
	if cfg.RedisURL != "" {
		return cache.NewRedisCache(ctx, cfg.RedisURL)
	}
	dir := cfg.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			c.Logger.Debug("no cache directory, caching disabled", "error", err)
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	return cache.NewFileCache(dir)
}

// newReportSink returns the sinks configured for run reports, with path
// taking precedence over the configured report file. It returns nil when
// reporting is off.
func (c *CLI) newReportSink(ctx context.Context, path string) (report.Sink, error) {
	cfg := c.Config.Report
	if path == "" {
		path = cfg.Path
	}
	var sinks []report.Sink
	if path != "" {
		s, err := report.NewFileSink(path)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.MongoURI != "" {
		s, err := report.NewMongoSink(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			for _, open := range sinks {
				_ = open.Close(ctx)
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return report.Multi(sinks...), nil
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/sb3min/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
