// Package cli implements the npmlens command-line interface.
//
// # Commands
//
//   - info, compare: merged package summaries
//   - deps: direct dependencies as text, DOT or SVG
//   - trend, size, similar, suggest, popular, versions: exploration queries
//   - fav: the favorites list kept in the configured store
//   - config: show where settings come from
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Library
// events (upstream requests, absorbed optional-source failures, store
// access) reach the logger through observability hooks registered before
// each command runs.
package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/npmlens/internal/config"
	"github.com/matzehuels/npmlens/pkg/aggregate"
	"github.com/matzehuels/npmlens/pkg/buildinfo"
	pkgerrors "github.com/matzehuels/npmlens/pkg/errors"
	"github.com/matzehuels/npmlens/pkg/explore"
	"github.com/matzehuels/npmlens/pkg/favorites"
	"github.com/matzehuels/npmlens/pkg/httputil"
	"github.com/matzehuels/npmlens/pkg/integrations"
	"github.com/matzehuels/npmlens/pkg/integrations/bundlephobia"
	"github.com/matzehuels/npmlens/pkg/integrations/npm"
	"github.com/matzehuels/npmlens/pkg/integrations/npms"
	"github.com/matzehuels/npmlens/pkg/integrations/npmstats"
	"github.com/matzehuels/npmlens/pkg/kv"
	"github.com/matzehuels/npmlens/pkg/observability"
)

// appName is the application name used for display.
const appName = "npmlens"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Out    io.Writer

	// interactive enables spinners; off when output is not the terminal.
	interactive bool

	flags struct {
		verbose bool
		config  string
		store   string
		json    bool
	}
	cfg *config.Config
}

// New creates a new CLI instance writing results to out and logs to stderr.
func New(out io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:      newLogger(os.Stderr, level),
		Out:         out,
		interactive: out == os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "npmlens inspects npm packages from the terminal",
		Long: `npmlens merges registry metadata, download counts and quality scores
of npm packages into one view, and explores trends, bundle sizes, similar
packages and version history.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.SetOut(c.Out)

	pf := root.PersistentFlags()
	pf.BoolVarP(&c.flags.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&c.flags.config, "config", "", "config file (default "+config.DefaultPath()+")")
	pf.StringVar(&c.flags.store, "store", "", "favorites store URL (memory:, file:, sqlite:, redis://, mongodb://)")
	pf.BoolVar(&c.flags.json, "json", false, "print results as JSON")

	root.AddGroup(
		&cobra.Group{ID: "packages", Title: "Packages:"},
		&cobra.Group{ID: "explore", Title: "Explore:"},
	)
	for _, cmd := range []*cobra.Command{c.infoCommand(), c.compareCommand(), c.depsCommand(), c.versionsCommand()} {
		cmd.GroupID = "packages"
		root.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{c.trendCommand(), c.sizeCommand(), c.similarCommand(), c.suggestCommand(), c.popularCommand()} {
		cmd.GroupID = "explore"
		root.AddCommand(cmd)
	}
	root.AddCommand(c.favCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the configuration, applies flags and wires logging hooks.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.flags.config)
	if err != nil {
		return err
	}
	if c.flags.store != "" {
		cfg.Store = c.flags.store
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	c.cfg = cfg

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	if c.flags.verbose {
		level = log.DebugLevel
	}
	c.SetLogLevel(level)

	hooks := &logHooks{logger: c.Logger}
	observability.SetResolveHooks(hooks)
	observability.SetHTTPHooks(hooks)
	observability.SetStoreHooks(hooks)

	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	if cfg.Path != "" {
		c.Logger.Debug("Loaded config", "path", cfg.Path)
	}
	return nil
}

// =============================================================================
// Service Factories
// =============================================================================

// services holds the upstream-backed services of one command run.
type services struct {
	agg     *aggregate.Aggregator
	explore *explore.Service

	registry  *npm.Client
	scores    *npms.Client
	downloads *npmstats.Client
}

// newServices builds clients for the configured upstreams. The registry is
// authoritative and never circuit-broken; the optional upstreams share one
// breaker set so a dead host fails fast for the rest of the run.
func (c *CLI) newServices() *services {
	hc := httputil.NewClient(time.Duration(c.cfg.Timeout))
	base := []integrations.Option{integrations.WithHTTPClient(hc)}
	optional := slices.Concat(base, []integrations.Option{integrations.WithBreakers(integrations.NewBreakers())})

	registry := npm.NewClient(c.cfg.RegistryURL, base...)
	downloads := npmstats.NewClient(c.cfg.DownloadsURL, optional...)
	scores := npms.NewClient(c.cfg.NpmsURL, optional...)
	bundles := bundlephobia.NewClient(c.cfg.BundlephobiaURL, optional...)

	return &services{
		agg: aggregate.New(aggregate.NpmSources(registry, scores, downloads)),
		explore: explore.New(explore.Clients{
			Registry:  registry,
			Downloads: downloads,
			Npms:      scores,
			Bundles:   bundles,
		}),
		registry:  registry,
		scores:    scores,
		downloads: downloads,
	}
}

// resolveWithPopularity resolves name like agg.Resolve and also returns the
// popularity carried by the npms document the score was read from. The
// popularity is nil when npms failed.
func (s *services) resolveWithPopularity(ctx context.Context, name string) (*aggregate.Summary, *npms.Popularity, error) {
	var pop *npms.Popularity
	src := aggregate.NpmSources(s.registry, s.scores, s.downloads)
	src.Score = aggregate.NpmsSource{
		Client:     s.scores,
		Popularity: func(p *npms.Popularity) { pop = p },
	}
	sum, err := aggregate.New(src).Resolve(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return sum, pop, nil
}

// openFavorites opens the configured store. The caller closes the returned
// store.
func (c *CLI) openFavorites(ctx context.Context) (*favorites.List, kv.Store, error) {
	store, err := kv.Open(ctx, c.cfg.Store, kv.Options{MongoDatabase: c.cfg.MongoDatabase})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.ErrCodeStore, err, "open store %s", c.cfg.Store)
	}
	return favorites.New(store), store, nil
}

// =============================================================================
// Input and Output Helpers
// =============================================================================

// packageArg validates a package name typed on the command line.
func packageArg(name string) (string, error) {
	key := integrations.NormalizePkgName(name)
	if err := pkgerrors.ValidatePackageName(key); err != nil {
		return "", err
	}
	return key, nil
}

// printJSON writes v as indented JSON.
func (c *CLI) printJSON(v any) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withSpinner runs fn while a spinner shows msg on interactive terminals.
func withSpinner[T any](c *CLI, ctx context.Context, msg string, fn func() (T, error)) (T, error) {
	if !c.interactive || c.flags.json {
		return fn()
	}
	s := newSpinnerWithContext(ctx, msg)
	s.Start()
	defer s.Stop()
	return fn()
}
