// -- cmd/status.go --
package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jakoleksy/ecobeectl/internal/runner"
)

const runDurationPrecision = 100 * time.Millisecond

func init() {
	rootCmd.AddCommand(statusCmd())
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Read the currently displayed temperatures and operating mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runs.Run(cmd.Context(), runner.ReadStatus())
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("status read failed: %s", res.Reason)
			}
			out, err := json.MarshalIndent(res.Status, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
