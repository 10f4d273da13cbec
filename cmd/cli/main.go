// A one-shot cost report against a running exporter. Fetches the JSON
// metrics body and prints a per-service cost table to stdout.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brilliant-almazov/railway-exporter/pkg/models/api"
	"github.com/spf13/cobra"
)

var exporterURL string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "railway-cost",
		Short: "Print the current Railway cost report",
		RunE:  runReport,
	}

	rootCmd.Flags().StringVarP(&exporterURL, "url", "u", "http://localhost:9333",
		"Base URL of a running railway-exporter")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runReport(cmd *cobra.Command, _ []string) error {
	client := &http.Client{Timeout: 10 * time.Second}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, exporterURL+"/metrics", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach exporter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("exporter has no data yet, try again after the first scrape")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exporter returned HTTP %d", resp.StatusCode)
	}

	var metrics api.MetricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		return fmt.Errorf("failed to parse metrics: %w", err)
	}

	fmt.Printf("Project: %s (day %d, %d days remaining)\n\n",
		metrics.Project.Name, metrics.Project.DaysElapsed, metrics.Project.DaysRemaining)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tGROUP\tCOST\tEST/MONTH\t")
	for _, svc := range metrics.Services {
		name := svc.Name
		if svc.IsDeleted {
			name += " (deleted)"
		}
		fmt.Fprintf(w, "%s\t%s\t$%.2f\t$%.2f\t\n",
			name, svc.Group, svc.CostUSD, svc.EstimatedMonthlyUSD)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nCurrent: $%.2f  Estimated monthly: $%.2f  Daily average: $%.2f\n",
		metrics.Project.CurrentUsageUSD,
		metrics.Project.EstimatedMonthlyUSD,
		metrics.Project.DailyAverageUSD)
	return nil
}
