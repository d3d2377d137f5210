package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var executionsFlags struct {
	adminURL string
	scenario string
	status   string
	limit    int
}

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "List scenario executions on a running simulator",
	Example: `  # Most recent executions
  stubd executions --limit 20

  # Failed runs of one scenario
  stubd executions --scenario createOrder --status FAILED`,
	RunE: runExecutions,
}

func init() {
	f := &executionsFlags
	executionsCmd.Flags().StringVar(&f.adminURL, "admin-url", "http://localhost:4681", "Admin API base URL")
	executionsCmd.Flags().StringVar(&f.scenario, "scenario", "", "Filter by scenario name")
	executionsCmd.Flags().StringVar(&f.status, "status", "", "Filter by status (ACTIVE, SUCCESS, FAILED)")
	executionsCmd.Flags().IntVar(&f.limit, "limit", 50, "Maximum executions to list")
}

func runExecutions(cmd *cobra.Command, _ []string) error {
	q := url.Values{}
	if executionsFlags.scenario != "" {
		q.Set("scenario", executionsFlags.scenario)
	}
	if executionsFlags.status != "" {
		q.Set("status", executionsFlags.status)
	}
	if executionsFlags.limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", executionsFlags.limit))
	}

	var records []struct {
		ID           int64  `json:"id"`
		ScenarioName string `json:"scenarioName"`
		Status       string `json:"status"`
		StartedAt    string `json:"startedAt"`
		ErrorMessage string `json:"errorMessage"`
	}
	client := newAdminClient(executionsFlags.adminURL)
	if err := client.get("/api/executions?"+q.Encode(), &records); err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no executions")
		return nil
	}
	for _, rec := range records {
		line := fmt.Sprintf("%d\t%s\t%s\t%s", rec.ID, rec.ScenarioName, rec.Status, rec.StartedAt)
		if rec.ErrorMessage != "" {
			line += "\t" + rec.ErrorMessage
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
