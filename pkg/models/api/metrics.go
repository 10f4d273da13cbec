// Package api defines the wire types served to the dashboard and other
// consumers. Field names are part of the public contract and must not change.
package api

// ServiceData is one service's row in the metrics response.
type ServiceData struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Icon                string  `json:"icon"`
	Group               string  `json:"group"`
	CPUUsage            float64 `json:"cpu_usage"`
	MemoryUsage         float64 `json:"memory_usage"`
	DiskUsage           float64 `json:"disk_usage"`
	NetworkTx           float64 `json:"network_tx"`
	NetworkRx           float64 `json:"network_rx"`
	CostUSD             float64 `json:"cost_usd"`
	EstimatedMonthlyUSD float64 `json:"estimated_monthly_usd"`
	// Kept camelCase for compatibility with the dashboard.
	IsDeleted bool `json:"isDeleted"`
}

// ProjectSummary is the project-level aggregate in the metrics response.
type ProjectSummary struct {
	Name                string  `json:"name"`
	CurrentUsageUSD     float64 `json:"current_usage_usd"`
	EstimatedMonthlyUSD float64 `json:"estimated_monthly_usd"`
	DailyAverageUSD     float64 `json:"daily_average_usd"`
	DaysElapsed         int     `json:"days_elapsed"`
	DaysRemaining       int     `json:"days_remaining"`
}

// MetricsResponse is the full GET /metrics JSON body.
type MetricsResponse struct {
	Project               ProjectSummary `json:"project"`
	Services              []ServiceData  `json:"services"`
	ScrapeTimestamp       int64          `json:"scrape_timestamp"`
	ScrapeDurationSeconds float64        `json:"scrape_duration_seconds"`
}
