package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/resourcesearch/internal/config"
	"github.com/Aman-CERP/resourcesearch/internal/output"
)

func newConfigCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage resourcesearch configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/resourcesearch/config.yaml)
  3. Project config (.resourcesearch.yaml in --config-dir)
  4. Environment variables (RESOURCESEARCH_*)`,
		Example: `  # Write a project config with the defaults
  resourcesearch config init

  # Show effective configuration (merged from all sources)
  resourcesearch config show --json`,
	}

	cmd.AddCommand(newConfigInitCmd(g))
	cmd.AddCommand(newConfigShowCmd(g))
	cmd.AddCommand(newConfigPathCmd(g))

	return cmd
}

func newConfigInitCmd(g *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create project configuration file",
		Long: `Write .resourcesearch.yaml with the default settings into --config-dir.

An existing file is kept unless --force is given, in which case it is
backed up first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, g, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func newConfigShowCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, g, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration file paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\n", config.GetUserConfigPath())
			fmt.Fprintf(cmd.OutOrStdout(), "project: %s\n", projectConfigPath(g))
			return nil
		},
	}
}

func projectConfigPath(g *globalOptions) string {
	return filepath.Join(g.configDir, config.ProjectConfigName)
}

func runConfigInit(cmd *cobra.Command, g *globalOptions, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := projectConfigPath(g)

	if fileExists(path) && !force {
		out.Warning("Configuration already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Newline()
		out.Status("💡", "Use --force to overwrite it (a backup is kept)")
		return nil
	}

	backupPath, err := config.BackupFile(path)
	if err != nil {
		return fmt.Errorf("failed to backup config: %w", err)
	}

	if err := config.NewConfig().WriteYAML(path); err != nil {
		return err
	}

	out.Success("Created project configuration")
	out.Statusf("📁", "Location: %s", path)
	if backupPath != "" {
		out.Statusf("💾", "Backup: %s", backupPath)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, g *globalOptions, jsonOutput bool) error {
	// Reload so an invalid file is reported here instead of silently
	// replaced by the defaults the root command fell back to.
	cfg, err := config.Load(g.configDir)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
