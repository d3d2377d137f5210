package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getstubd/stubd/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "Validate a config file without starting the simulator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (ingress :%d, default scenario %q)\n",
			args[0], cfg.HTTP.Port, cfg.DefaultScenario)
		return nil
	},
}
