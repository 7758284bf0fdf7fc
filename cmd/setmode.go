// -- cmd/setmode.go --
package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jakoleksy/ecobeectl/internal/runner"
)

// The four canned commands mirror the deployment scripts that have always
// invoked the automation one operation per process.
func init() {
	rootCmd.AddCommand(
		cannedModeCommand("main-floor-aux", "Main Floor", "aux"),
		cannedModeCommand("main-floor-heat", "Main Floor", "heat"),
		cannedModeCommand("upstairs-aux", "Upstairs", "aux"),
		cannedModeCommand("upstairs-heat", "Upstairs", "heat"),
		setModeCmd(),
		setTemperatureCmd(),
	)
}

func cannedModeCommand(use, device, mode string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Set the %s thermostat to %s mode", device, mode),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchRun(cmd, runner.SetMode(device, mode))
		},
	}
}

func setModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-mode <device> <mode>",
		Short: "Set a named thermostat to a named operating mode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchRun(cmd, runner.SetMode(args[0], args[1]))
		},
	}
}

func setTemperatureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-temperature <device> <temperature>",
		Short: "Step a named thermostat's target temperature to a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid temperature %q", args[1])
			}
			return dispatchRun(cmd, runner.SetTemperature(args[0], target))
		},
	}
}

// dispatchRun executes one operation and turns a failed run into a command
// error so the process exits non-zero for the calling scripts.
func dispatchRun(cmd *cobra.Command, op runner.Operation) error {
	res, err := runs.Run(cmd.Context(), op)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s failed: %s", op, res.Reason)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s succeeded in %s\n", op, res.Duration.Round(runDurationPrecision))
	return nil
}
