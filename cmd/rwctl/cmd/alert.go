package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/reportwatch/internal/alerting"
	"github.com/good-yellow-bee/reportwatch/internal/models"
)

var (
	alertSearch   string
	alertStatuses []string
	alertActive   string
	alertSort     string
	alertDir      string
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Alert inspection commands",
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts",
	Long: `List alerts with the same filters as the dashboard.

Sort keys: name, cost, triggerCount, failureCount, successRate,
createdAt, lastRunAt.

Examples:
  rwctl alert list --search revenue
  rwctl alert list --status warning,failed --active true
  rwctl alert list --sort successRate --dir desc -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := alertFilter(alertSearch, alertStatuses, alertActive, alertSort, alertDir)
		if err != nil {
			return err
		}

		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		all, err := store.Alerts().List(context.Background())
		if err != nil {
			return fmt.Errorf("list alerts: %w", err)
		}
		list := alerting.Apply(all, filter)
		PrintVerbose("%d of %d alerts match", len(list), len(all))

		if GetOutput() == "json" {
			return json.NewEncoder(os.Stdout).Encode(list)
		}
		if len(list) == 0 {
			fmt.Println("No alerts found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-28s  %-9s  %-6s  %6s  %8s  %8s  %s\n",
			"ID", "NAME", "STATUS", "ACTIVE", "RUNS", "SUCCESS", "COST", "LAST RUN")
		fmt.Println(strings.Repeat("-", 130))
		for _, a := range list {
			fmt.Printf("%-36s  %-28s  %-9s  %-6t  %6d  %7.1f%%  %8.2f  %s\n",
				a.ID, truncate(a.Name, 28), a.Status, a.Active, a.RunCount,
				a.SuccessRate, a.Cost, lastRun(a))
		}
		fmt.Printf("\nTotal: %d alert(s)\n", len(list))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(alertCmd)
	alertCmd.AddCommand(alertListCmd)

	alertListCmd.Flags().StringVar(&alertSearch, "search", "", "match name or description")
	alertListCmd.Flags().StringSliceVar(&alertStatuses, "status", nil, "statuses to include (pending, success, warning, failed, inactive)")
	alertListCmd.Flags().StringVar(&alertActive, "active", "", "true or false, empty for both")
	alertListCmd.Flags().StringVar(&alertSort, "sort", "", "sort key")
	alertListCmd.Flags().StringVar(&alertDir, "dir", "asc", "sort direction: asc or desc")
}

// alertFilter builds a filter from command-line values. Unlike the query
// string parser it rejects unknown values instead of ignoring them.
func alertFilter(search string, statuses []string, active, sort, dir string) (alerting.Filter, error) {
	f := alerting.Filter{Search: search, SortDir: alerting.SortAsc}

	for _, s := range statuses {
		st, ok := models.ParseAlertStatus(strings.TrimSpace(s))
		if !ok {
			return f, fmt.Errorf("unknown status %q", s)
		}
		f.Statuses = append(f.Statuses, st)
	}
	if active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			return f, fmt.Errorf("--active must be true or false")
		}
		f.Active = &v
	}
	if sort != "" {
		key, ok := alerting.ParseSortKey(sort)
		if !ok {
			return f, fmt.Errorf("unknown sort key %q", sort)
		}
		f.SortBy = key
	}
	switch strings.ToLower(dir) {
	case "", string(alerting.SortAsc):
	case string(alerting.SortDesc):
		f.SortDir = alerting.SortDesc
	default:
		return f, fmt.Errorf("--dir must be asc or desc")
	}
	return f, nil
}

func lastRun(a *models.Alert) string {
	if a.LastRunAt.IsZero() {
		return "never"
	}
	return a.LastRunAt.Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
