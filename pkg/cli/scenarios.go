package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var scenariosFlags struct {
	adminURL string
	starters bool
	params   string
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List scenarios registered on a running simulator",
	Example: `  # List all scenario names
  stubd scenarios

  # Only scenarios that can be launched on demand
  stubd scenarios --starters

  # Show the launch parameters of a starter
  stubd scenarios --params orderGenerator`,
	RunE: runScenarios,
}

func init() {
	f := &scenariosFlags
	scenariosCmd.Flags().StringVar(&f.adminURL, "admin-url", "http://localhost:4681", "Admin API base URL")
	scenariosCmd.Flags().BoolVar(&f.starters, "starters", false, "List only starter scenarios")
	scenariosCmd.Flags().StringVar(&f.params, "params", "", "Show launch parameters for the named scenario")
}

func runScenarios(cmd *cobra.Command, _ []string) error {
	client := newAdminClient(scenariosFlags.adminURL)

	if scenariosFlags.params != "" {
		var params []struct {
			Name        string `json:"name"`
			Value       string `json:"value"`
			Required    bool   `json:"required"`
			ControlHint string `json:"controlHint"`
		}
		path := fmt.Sprintf("/api/scenarios/%s/parameters", scenariosFlags.params)
		if err := client.get(path, &params); err != nil {
			return err
		}
		if len(params) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no parameters")
			return nil
		}
		for _, p := range params {
			required := ""
			if p.Required {
				required = " (required)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s%s\n", p.Name, p.Value, required)
		}
		return nil
	}

	path := "/api/scenarios"
	if scenariosFlags.starters {
		path += "?kind=starter"
	}
	var names []string
	if err := client.get(path, &names); err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no scenarios registered")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
	return nil
}
