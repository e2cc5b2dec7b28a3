package commands

import (
	"context"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/flashbuild/display"
	"github.com/teranos/flashbuild/goal"
	"github.com/teranos/flashbuild/logger"
	"github.com/teranos/flashbuild/watch"
)

// goalCmd builds the subcommand for one goal
func (a *App) goalCmd(g goal.Goal) *cobra.Command {
	cmd := &cobra.Command{
		Use:   g.Name,
		Short: g.Description,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			watching, _ := cmd.Flags().GetBool("watch")
			if watching {
				return a.watchGoal(cmd, g)
			}
			return a.runGoal(a.context(cmd), cmd, g)
		},
	}
	if g.NeedsEnvironment() {
		cmd.Flags().Bool("watch", false, "Rebuild whenever files under the source directory change")
	}
	return cmd
}

func (a *App) runGoal(ctx context.Context, cmd *cobra.Command, g goal.Goal) error {
	result, err := a.session(cmd).Run(ctx, g)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd, a.viper) {
		return display.WriteJSON(cmd.OutOrStdout(), result)
	}
	if result.Path != "" {
		pterm.Fprintln(cmd.OutOrStdout(), result.Path)
	}
	return nil
}

// watchGoal runs g once, then again after every change under the source
// directory or the board crate. Each run is a fresh session so nothing is
// memoized across runs.
func (a *App) watchGoal(cmd *cobra.Command, g goal.Goal) error {
	w, err := a.newWatcher(a.context(cmd), cmd)
	if err != nil {
		return err
	}
	defer w.Close()

	a.log.Infow("Watching for changes", logger.FieldPath, strings.Join(w.Roots(), ", "), logger.FieldGoal, g.Name)
	return w.Run(a.context(cmd), func(ctx context.Context) error {
		err := a.runGoal(ctx, cmd, g)
		if err != nil {
			PrintError(cmd.ErrOrStderr(), err)
		}
		return err
	})
}

// newWatcher watches the source directory and, when the catalog places the
// board crate elsewhere, that directory too
func (a *App) newWatcher(ctx context.Context, cmd *cobra.Command) (*watch.Watcher, error) {
	w, err := watch.New(a.cfg.SourceDir(), a.cfg.OutputRoot(), a.cfg.Watch.Ignore,
		a.cfg.WatchDebounce(), a.log.Named("watch"))
	if err != nil {
		return nil, err
	}

	board, err := a.session(cmd).Board(ctx)
	if err != nil {
		// The first run reports the configuration problem
		a.log.Debugw("Board directory not resolved for watching", logger.FieldError, err)
		return w, nil
	}
	if board.Dir != "" {
		if err := w.AddRoot(board.Dir); err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}
