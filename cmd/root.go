package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/agentic-research/crater/api"
	"github.com/agentic-research/crater/internal/config"
	"github.com/agentic-research/crater/internal/ctxlog"
	"github.com/agentic-research/crater/internal/export"
	"github.com/agentic-research/crater/internal/facts"
	"github.com/agentic-research/crater/internal/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app is the state shared by the subcommands of one invocation.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	logger  *slog.Logger
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"schema":       "schema",
	"facts":        "facts.path",
	"facts-format": "facts.format",
	"selector":     "facts.selector",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"base-dir":     "export.base_dir",
	"output":       "export.output_dir",
	"set-path":     "export.set_path",
	"title":        "export.title",
	"metrics-file": "metrics.textfile",
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "crater",
		Short: "Export research project answers as RO-Crates",
		Long: `crater maps a project's recorded answers through a schema file into an
RO-Crate: a folder per dataset, a ro-crate-metadata.json manifest and a zip
archive of both.

Configuration sources, highest precedence first:
  1. command line flags
  2. CRATER_* environment variables (CRATER_FACTS_PATH, CRATER_EXPORT_BASE_DIR, ...)
  3. the --config file, or ./crater.yaml when present
  4. built-in defaults`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Path to a YAML config file")
	pf.StringP("schema", "s", "", "Path to the mapping schema (TOML, YAML, JSON or HCL); built-in schema if empty")
	pf.StringP("facts", "d", "", "Path to the fact store (.db or .json)")
	pf.String("facts-format", "auto", "Fact store format: auto, sqlite or json")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.String("log-format", "text", "Log format: text or json")

	root.AddCommand(
		newExportCmd(a),
		newSetsCmd(a),
		newValidateCmd(a),
		newBuildFactsCmd(a),
		newInspectCmd(a),
	)
	return root
}

// setup layers config sources and installs the logger on the command's
// context.
func (a *app) setup(cmd *cobra.Command) error {
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	logger, err := ctxlog.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.v, a.cfg, a.logger = v, cfg, logger

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(ctxlog.WithLogger(ctx, logger))
	return nil
}

// bindFlags binds the flags present on fs to their config keys.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (a *app) loadSchema() (*api.Schema, error) {
	if a.cfg.Schema == "" {
		a.logger.Debug("using built-in schema")
		return schema.Default()
	}
	return schema.Load(a.cfg.Schema)
}

func (a *app) openFacts() (facts.Store, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := facts.Open(a.cfg.Facts.Path, a.cfg.Facts.Format, a.cfg.Facts.Selector)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("fact store opened", "path", a.cfg.Facts.Path, "format", a.cfg.Facts.Format)
	return store, nil
}

func (a *app) newBuilder(store facts.Store) *export.Builder {
	b := export.NewBuilder(facts.NewAdapter(store))
	b.SetPath = a.cfg.Export.SetPath
	b.Title = a.cfg.Export.Title
	return b
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
