// Package cmd provides the CLI commands for resourcesearch.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resourcesearch/internal/config"
	"github.com/Aman-CERP/resourcesearch/internal/errors"
	"github.com/Aman-CERP/resourcesearch/internal/logging"
	"github.com/Aman-CERP/resourcesearch/internal/profiling"
	"github.com/Aman-CERP/resourcesearch/pkg/version"
)

// globalOptions holds the persistent flags and the state set up from them.
type globalOptions struct {
	debug     bool
	configDir string
	profile   profiling.Options

	cfg            *config.Config
	logger         *slog.Logger
	loggingCleanup func()
	profiler       *profiling.Profiler
}

// NewRootCmd creates the root command for resourcesearch CLI.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "resourcesearch",
		Short: "Reactive full-text search over named resource collections",
		Long: `resourcesearch indexes named collections of documents and keeps
their search results in a state store.

Collections are read from YAML, JSON or TOML data files. Every collection is
indexed on the fields its file names, and reindexed when the file changes
under 'resourcesearch watch'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("resourcesearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging to ~/.resourcesearch/logs/")
	cmd.PersistentFlags().StringVar(&g.configDir, "config-dir", ".", "Directory holding .resourcesearch.yaml")
	cmd.PersistentFlags().StringVar(&g.profile.CPUProfile, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&g.profile.MemProfile, "memprofile", "", "Write a heap profile to this file on exit")
	cmd.PersistentFlags().StringVar(&g.profile.Trace, "trace", "", "Write an execution trace to this file")
	_ = cmd.PersistentFlags().MarkHidden("trace")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return g.setup(cmd)
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return g.teardown()
	}

	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads configuration and starts logging. The config command is
// allowed to run against an invalid file so it can be inspected and fixed.
func (g *globalOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(g.configDir)
	if err != nil {
		if !isConfigCmd(cmd) {
			return errors.ConfigError(fmt.Sprintf("load configuration: %v", err), err)
		}
		cfg = config.NewConfig()
	}
	g.cfg = cfg

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	if g.debug {
		logCfg = logging.DebugConfig()
		logCfg.MaxSizeMB = cfg.Log.MaxSizeMB
		logCfg.MaxFiles = cfg.Log.MaxFiles
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	g.logger = logger
	g.loggingCleanup = cleanup
	slog.SetDefault(logger)

	if g.debug {
		logger.Info("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}

	if g.profile.Enabled() {
		p, err := profiling.Start(g.profile)
		if err != nil {
			return errors.InternalError(fmt.Sprintf("start profiling: %v", err), err)
		}
		g.profiler = p
		logger.Debug("profiling_started",
			slog.String("cpu", g.profile.CPUProfile),
			slog.String("mem", g.profile.MemProfile),
			slog.String("trace", g.profile.Trace))
	}
	return nil
}

func (g *globalOptions) teardown() error {
	var err error
	if g.profiler != nil {
		err = g.profiler.Stop()
		g.profiler = nil
		if g.logger != nil {
			g.logger.Debug("profiling_stopped",
				slog.String("heap_in_use", profiling.FormatBytes(profiling.HeapInUse())))
		}
	}
	if g.loggingCleanup != nil {
		g.loggingCleanup()
		g.loggingCleanup = nil
	}
	return err
}

func isConfigCmd(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return true
		}
	}
	return false
}

// Execute runs the root command and prints any error for the CLI.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprint(root.ErrOrStderr(), errors.FormatForCLI(err))
	}
	return err
}
