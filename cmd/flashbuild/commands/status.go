package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/flashbuild/artifact"
	"github.com/teranos/flashbuild/display"
	"github.com/teranos/flashbuild/errors"
	"github.com/teranos/flashbuild/goal"
	"github.com/teranos/flashbuild/graph"
)

func (a *App) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [goal]",
		Short: "Show what a goal would rebuild, without running any tool",
		Long: `Show every artifact the goal depends on, sources first, as missing,
stale or up-to-date. The compiled object is always handed to the compiler,
which decides on its own staleness.

Examples:
  flashbuild status              # artifacts behind "build"
  flashbuild status debug-hex
  flashbuild status listing --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "build"
			if len(args) == 1 {
				name = args[0]
			}
			g, err := goal.Lookup(name)
			if err != nil {
				return err
			}

			kind := g.Kind
			switch g.Action {
			case goal.ActionProduce:
			case goal.ActionCheck, goal.ActionDoc:
				kind = artifact.CompiledObject
			default:
				return errors.WithHint(errors.NewConfigError("goal %s produces no artifact", g.Name),
					"pick one of build, listing, hex or their debug- variants")
			}

			b, err := a.session(cmd).Builder(a.context(cmd))
			if err != nil {
				return err
			}
			plan := b.Plan(kind, g.Profile)

			if display.ShouldOutputJSON(cmd, a.viper) {
				return display.WriteJSON(cmd.OutOrStdout(), plan)
			}
			return renderPlan(cmd, plan)
		},
	}
}

func renderPlan(cmd *cobra.Command, plan []graph.PlanEntry) error {
	rows := make([][]string, 0, len(plan))
	for _, e := range plan {
		modified := "-"
		if !e.Modified.IsZero() {
			modified = e.Modified.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{e.Artifact, statusColor(e.Status), modified, e.Path})
	}
	return display.Table(cmd.OutOrStdout(), []string{"ARTIFACT", "STATUS", "MODIFIED", "PATH"}, rows)
}

func statusColor(s graph.Status) string {
	switch s {
	case graph.StatusUpToDate:
		return pterm.Green(string(s))
	case graph.StatusStale:
		return pterm.Yellow(string(s))
	case graph.StatusMissing:
		return pterm.Red(string(s))
	default:
		return pterm.Gray(string(s))
	}
}
