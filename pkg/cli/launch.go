package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var launchFlags struct {
	adminURL string
	params   []string
}

var launchCmd = &cobra.Command{
	Use:   "launch <scenario>",
	Short: "Launch a starter scenario on a running simulator",
	Args:  cobra.ExactArgs(1),
	Example: `  # Launch with declared defaults
  stubd launch orderGenerator

  # Override launch parameters
  stubd launch orderGenerator -P customer=acme -P count=5`,
	RunE: runLaunch,
}

func init() {
	f := &launchFlags
	launchCmd.Flags().StringVar(&f.adminURL, "admin-url", "http://localhost:4681", "Admin API base URL")
	launchCmd.Flags().StringArrayVarP(&f.params, "param", "P", nil, "Launch parameter as name=value (repeatable)")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	params := make(map[string]string, len(launchFlags.params))
	for _, kv := range launchFlags.params {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid parameter %q, expected name=value", kv)
		}
		params[name] = value
	}

	client := newAdminClient(launchFlags.adminURL)
	var resp struct {
		ExecutionID int64 `json:"executionId"`
	}
	body := map[string]any{"parameters": params}
	if err := client.post(fmt.Sprintf("/api/scenarios/%s/launch", args[0]), body, &resp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "execution %d started\n", resp.ExecutionID)
	return nil
}
