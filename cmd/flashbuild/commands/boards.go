package commands

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/flashbuild/boards"
	"github.com/teranos/flashbuild/display"
)

func (a *App) boardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List the platforms in the board catalog",
		Long: `List the platforms described by boards.toml (or board.catalog).

Platforms missing from the catalog still build with the configured linker
script and any target triple.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, explicit := a.cfg.CatalogPath()
			catalog, err := boards.LoadOptional(path, explicit)
			if err != nil {
				return err
			}

			list := make([]*boards.Board, 0, len(catalog.Boards))
			for _, name := range catalog.Names() {
				b, _ := catalog.Lookup(name)
				list = append(list, b)
			}

			if display.ShouldOutputJSON(cmd, a.viper) {
				return display.WriteJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				pterm.Info.WithWriter(cmd.OutOrStdout()).Printfln("No board catalog at %s", path)
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, b := range list {
				targets := strings.Join(b.Targets, ", ")
				if targets == "" {
					targets = "any"
				}
				rows = append(rows, []string{b.Name, targets, b.LinkerScript, b.Description})
			}
			return display.Table(cmd.OutOrStdout(), []string{"PLATFORM", "TARGETS", "LINKER SCRIPT", "DESCRIPTION"}, rows)
		},
	}
}
