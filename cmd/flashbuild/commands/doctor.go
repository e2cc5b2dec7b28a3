package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/flashbuild/display"
	"github.com/teranos/flashbuild/logger"
	"github.com/teranos/flashbuild/toolchain"
)

// doctorOutput is the JSON shape of `flashbuild doctor`
type doctorOutput struct {
	Host        *toolchain.Host   `json:"host,omitempty"`
	Environment *toolchain.Report `json:"environment"`
	Healthy     bool              `json:"healthy"`
}

func (a *App) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate the toolchain environment and report what was done",
		Long: `Run only the environment validation: check the rustup version
(updating it when too old), the rust source component and the target's
standard library, installing what is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			report, err := a.session(cmd).Doctor(ctx)
			if err != nil {
				return err
			}

			host, herr := toolchain.DescribeHost(ctx)
			if herr != nil {
				a.log.Debugw("Host facts incomplete", logger.FieldError, herr)
			}

			if display.ShouldOutputJSON(cmd, a.viper) {
				return display.WriteJSON(cmd.OutOrStdout(), doctorOutput{
					Host:        host,
					Environment: report,
					Healthy:     report.Healthy(),
				})
			}
			return renderDoctor(cmd, host, report)
		},
	}
}

func renderDoctor(cmd *cobra.Command, host *toolchain.Host, report *toolchain.Report) error {
	out := cmd.OutOrStdout()

	if host != nil && host.OS != "" {
		display.Section(out, "Host")
		fmt.Fprintf(out, "  %s %s (%s), kernel %s\n", host.Platform, host.PlatformVersion, host.Arch, host.KernelVersion)
		fmt.Fprintf(out, "  %d CPUs, %s of %s memory available\n\n",
			host.CPUs, humanBytes(host.MemoryAvailable), humanBytes(host.MemoryTotal))
	}

	display.Section(out, "Toolchain")
	fmt.Fprintf(out, "  %s %s (minimum %s)\n\n", report.Manager, report.ManagerVersion, report.MinVersion)

	rows := make([][]string, 0, len(report.Checks))
	for _, c := range report.Checks {
		outcome := pterm.Green(string(c.Outcome))
		if c.Outcome != toolchain.OutcomeOK {
			outcome = pterm.Yellow(string(c.Outcome))
		}
		rows = append(rows, []string{c.Name, c.Requirement, c.Found, outcome, c.Error})
	}
	if err := display.Table(out, []string{"CHECK", "REQUIRES", "FOUND", "OUTCOME", "ERROR"}, rows); err != nil {
		return err
	}

	if report.Healthy() {
		pterm.Success.WithWriter(out).Println("Environment ready")
	} else {
		pterm.Warning.WithWriter(out).Println("Environment was repaired or needs attention")
	}
	return nil
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
