package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/flashbuild/am"
	"github.com/teranos/flashbuild/display"
	"github.com/teranos/flashbuild/errors"
)

func (a *App) amCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "am",
		Short: "Manage flashbuild configuration",
		Long: `am - Manage flashbuild configuration ("I am")

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (FLASHBUILD_* prefix, then PLATFORM, TARGET, ...)
3. Project config (./flashbuild.toml, searched upwards)
4. User config (~/.config/flashbuild/flashbuild.toml)
5. Default values

Examples:
  flashbuild am show                    # Show current configuration
  flashbuild am show --format json      # Show configuration in JSON format
  flashbuild am where                   # Which source supplied each key
  flashbuild am init --platform hail --target thumbv7em-none-eabi`,
	}
	cmd.AddCommand(a.amShowCmd(), a.amWhereCmd(), a.amValidateCmd(), a.amInitCmd())
	return cmd
}

func (a *App) amShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				data, err := json.MarshalIndent(a.cfg, "", "  ")
				if err != nil {
					return errors.Wrap(err, "failed to marshal config to JSON")
				}
				fmt.Fprintln(out, string(data))
			case "yaml":
				data, err := yaml.Marshal(a.cfg)
				if err != nil {
					return errors.Wrap(err, "failed to marshal config to YAML")
				}
				fmt.Fprintf(out, "# flashbuild configuration\n%s", data)
			case "toml":
				data, err := toml.Marshal(a.cfg)
				if err != nil {
					return errors.Wrap(err, "failed to marshal config to TOML")
				}
				fmt.Fprintf(out, "# flashbuild configuration\n%s", data)
			default:
				return errors.NewConfigError("unsupported format: %s (supported: toml, json, yaml)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "toml", "Output format: toml, json, yaml")
	return cmd
}

func (a *App) amWhereCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "where",
		Short: "Show where each configuration value comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := am.Settings(a.viper, a.sources)
			if display.ShouldOutputJSON(cmd, a.viper) {
				return display.WriteJSON(cmd.OutOrStdout(), settings)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
			fmt.Fprintln(out, "  1. [default]      Built-in defaults")
			fmt.Fprintln(out, "  2. [user]         ~/.config/flashbuild/flashbuild.toml")
			fmt.Fprintln(out, "  3. [project]      ./flashbuild.toml (searches up directories)")
			fmt.Fprintln(out, "  4. [environment]  FLASHBUILD_* and legacy variables")
			fmt.Fprintln(out, "  5. [flag]         command line")
			fmt.Fprintln(out)

			rows := make([][]string, 0, len(settings))
			for _, s := range settings {
				rows = append(rows, []string{s.Key, fmt.Sprint(s.Value), string(s.Source), s.SourcePath})
			}
			return display.Table(out, []string{"KEY", "VALUE", "SOURCE", "FROM"}, rows)
		},
	}
}

func (a *App) amValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return errors.Wrap(err, "configuration validation failed")
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Configuration is valid for %s", a.cfg.TargetSpec())
			return nil
		},
	}
}

func (a *App) amInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter flashbuild.toml",
		Long: `Write flashbuild.toml in the current directory, binding the platform
and target triple given by --platform and --target (or the environment).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.Loader.WorkDir
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return errors.Wrap(err, "failed to get working directory")
				}
				dir = wd
			}
			path, err := am.WriteStarter(dir, a.cfg.Board.Platform, a.cfg.Board.Target, a.cfg.Toolchain.Prefix, force)
			if err != nil {
				return err
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Wrote %s", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing file (the old one is kept as .back1)")
	return cmd
}
