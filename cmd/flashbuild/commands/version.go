package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/flashbuild/display"
	"github.com/teranos/flashbuild/version"
)

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show flashbuild version information",
		Long:  `Display version, build time, commit hash, and platform information for the flashbuild binary.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if display.ShouldOutputJSON(cmd, a.viper) {
				return display.WriteJSON(cmd.OutOrStdout(), info)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, info.String())
			fmt.Fprintf(out, "Platform: %s\n", info.Platform)
			fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
			return nil
		},
	}
}
