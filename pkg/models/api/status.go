package api

// ServerStatus is the GET /status response body.
type ServerStatus struct {
	Version       string          `json:"version"`
	ProjectName   string          `json:"project_name"`
	UptimeSeconds uint64          `json:"uptime_seconds"`
	Endpoints     EndpointStatus  `json:"endpoints"`
	Config        ConfigStatus    `json:"config"`
	Process       ProcessStatus   `json:"process"`
	API           APIStatus       `json:"api"`
	IconCache     *IconCacheStats `json:"icon_cache,omitempty"`
}

// EndpointStatus reports which endpoints are enabled.
type EndpointStatus struct {
	Prometheus bool `json:"prometheus"`
	JSON       bool `json:"json"`
	Websocket  bool `json:"websocket"`
	Health     bool `json:"health"`
}

// ConfigStatus exposes the active configuration to the dashboard.
type ConfigStatus struct {
	Plan                  string          `json:"plan"`
	ScrapeIntervalSeconds int             `json:"scrape_interval_seconds"`
	APIURL                string          `json:"api_url"`
	ServiceGroups         []string        `json:"service_groups"`
	Prices                PriceValues     `json:"prices"`
	Gzip                  GzipStatus      `json:"gzip"`
	IconCache             IconCacheConfig `json:"icon_cache"`
}

// PriceValues is the active per-unit pricing table.
type PriceValues struct {
	CPU     float64 `json:"cpu"`
	Memory  float64 `json:"memory"`
	Disk    float64 `json:"disk"`
	Network float64 `json:"network"`
}

// GzipStatus reports the response compression settings.
type GzipStatus struct {
	Enabled bool `json:"enabled"`
	MinSize int  `json:"min_size"`
	Level   int  `json:"level"`
}

// IconCacheConfig reports the icon cache settings. Link-mode-only fields are
// omitted in base64 mode.
type IconCacheConfig struct {
	Enabled  bool    `json:"enabled"`
	Mode     string  `json:"mode"`
	MaxCount int     `json:"max_count"`
	MaxAge   *int    `json:"max_age,omitempty"`
	BaseURL  *string `json:"base_url,omitempty"`
}

// ProcessStatus reports exporter process resource usage.
type ProcessStatus struct {
	PID        int32   `json:"pid"`
	MemoryMB   float64 `json:"memory_mb"`
	CPUPercent float64 `json:"cpu_percent"`
}

// APIStatus reports upstream scrape health.
type APIStatus struct {
	LastSuccess   *int64  `json:"last_success"`
	LastError     *string `json:"last_error"`
	TotalScrapes  uint64  `json:"total_scrapes"`
	FailedScrapes uint64  `json:"failed_scrapes"`
}

// IconCacheStats reports resident icon cache usage.
type IconCacheStats struct {
	Count       int   `json:"count"`
	TotalBytes  int64 `json:"total_bytes"`
	MinBytes    int64 `json:"min_bytes"`
	MaxBytes    int64 `json:"max_bytes"`
	MedianBytes int64 `json:"median_bytes"`
	AvgBytes    int64 `json:"avg_bytes"`
}
